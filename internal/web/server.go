// Package web serves the local HTTP surfaces: the captive provisioning
// portal while the device has no usable network, and the control page plus
// JSON API once it is connected.
package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"ok-to-wake/internal/connectivity"
	"ok-to-wake/internal/device"
	"ok-to-wake/internal/events"
)

// Controls is the command surface of the device.
type Controls interface {
	Dispatch(cmd device.Command) (device.Result, error)
	Snapshot() device.Snapshot
}

// Provisioner is the part of the connectivity controller the portal drives.
type Provisioner interface {
	CurrentState() connectivity.State
	SubmitCredentials(name, secret string) error
	Scan(ctx context.Context) ([]connectivity.AccessPoint, error)
}

// ServerOption configures the web server.
type ServerOption func(*Server)

// WithAPIKey enables API key authentication on /api/ routes and /setColor.
func WithAPIKey(key string) ServerOption {
	return func(s *Server) {
		s.apiKey = key
	}
}

// WithAllowedOrigins sets allowed CORS and WebSocket origin patterns.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithVersion sets the version string reported by /api/version.
func WithVersion(v string) ServerOption {
	return func(s *Server) {
		s.version = v
	}
}

// WithPortalIP sets the address captive clients are redirected to.
func WithPortalIP(ip string) ServerOption {
	return func(s *Server) {
		s.portalIP = ip
	}
}

// WithProvisioningRestart sets the callback run after a forget-network
// command has been answered.
func WithProvisioningRestart(fn func()) ServerOption {
	return func(s *Server) {
		s.restart = fn
	}
}

// Server is the HTTP server for both surfaces.
type Server struct {
	dev    Controls
	prov   Provisioner
	logger *slog.Logger

	control *http.ServeMux
	portal  *http.ServeMux
	pages   *template.Template
	wsHub   *WSHub

	apiKey         string
	allowedOrigins []string
	version        string
	portalIP       string
	restart        func()

	wg          sync.WaitGroup
	unsubEvents func()
}

// NewServer creates the web server and starts its WebSocket hub.
func NewServer(dev Controls, prov Provisioner, bus *events.Bus, logger *slog.Logger, opts ...ServerOption) (*Server, error) {
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}

	s := &Server{
		dev:      dev,
		prov:     prov,
		logger:   logger,
		control:  http.NewServeMux(),
		portal:   http.NewServeMux(),
		pages:    pages,
		portalIP: "4.3.2.1",
		version:  "dev",
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wsHub = NewWSHub(logger)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.wsHub.Run()
	}()

	if bus != nil {
		s.unsubEvents = bus.OnAll(func(e events.Event) {
			s.wsHub.Broadcast(e)
		})
	}

	s.controlRoutes()
	s.portalRoutes()
	return s, nil
}

// Stop shuts down the WebSocket hub and waits for it.
func (s *Server) Stop() {
	if s.unsubEvents != nil {
		s.unsubEvents()
	}
	s.wsHub.Stop()
	s.wg.Wait()
}

func (s *Server) controlRoutes() {
	s.control.HandleFunc("GET /{$}", s.handleControlPage)
	s.control.HandleFunc("GET /setColor", s.handleSetColorLegacy)

	s.control.HandleFunc("GET /api/state", s.handleAPIState)
	s.control.HandleFunc("POST /api/color", s.handleAPIColor)
	s.control.HandleFunc("POST /api/brightness", s.handleAPIBrightness)
	s.control.HandleFunc("PUT /api/windows", s.handleAPISetWindows)
	s.control.HandleFunc("DELETE /api/windows", s.handleAPIClearWindows)
	s.control.HandleFunc("POST /api/manual", s.handleAPIManual)
	s.control.HandleFunc("POST /api/network/forget", s.handleAPIForget)
	s.control.HandleFunc("GET /api/version", s.handleAPIVersion)

	s.control.HandleFunc("GET /ws", s.handleWS)
}

// provisioning reports whether requests should get the captive portal.
func (s *Server) provisioning() bool {
	if s.prov == nil {
		return false
	}
	switch s.prov.CurrentState() {
	case connectivity.ProvisioningMode, connectivity.ConnectFailed, connectivity.Connecting:
		return true
	}
	return false
}

// ServeHTTP implements http.Handler. The portal surface is unauthenticated;
// the control surface gets CORS and API key checks.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.provisioning() {
		s.portal.ServeHTTP(w, r)
		return
	}

	if len(s.allowedOrigins) > 0 {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if r.Method == http.MethodOptions {
				if s.isOriginAllowed(origin) {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
					w.Header().Set("Access-Control-Max-Age", "3600")
					w.WriteHeader(http.StatusNoContent)
					return
				}
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			if r.Method != http.MethodGet {
				if !s.isOriginAllowed(origin) {
					http.Error(w, "Forbidden", http.StatusForbidden)
					return
				}
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
		}
	}

	if s.apiKey != "" && requiresKey(r.URL.Path) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}
	s.control.ServeHTTP(w, r)
}

// requiresKey reports whether path changes or reads device state through
// the API, including the legacy color route.
func requiresKey(path string) bool {
	return strings.HasPrefix(path, "/api/") || path == "/setColor"
}

func (s *Server) isOriginAllowed(origin string) bool {
	for _, allowed := range s.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("write json response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// render executes into a buffer first so a failed template never leaves a
// half-written page.
func (s *Server) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("render template", "name", name, "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Debug("write page", "name", name, "err", err)
	}
}
