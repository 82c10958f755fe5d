package web

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"ok-to-wake/internal/connectivity"
)

const scanTimeout = 10 * time.Second

func (s *Server) portalRoutes() {
	s.portal.HandleFunc("GET /{$}", s.handlePortalPage)
	s.portal.HandleFunc("POST /save", s.handlePortalSave)

	// OS connectivity probes.
	s.portal.HandleFunc("/generate_204", s.redirectToPortal)
	s.portal.HandleFunc("GET /hotspot-detect.html", plainText("text/html", "OK"))
	s.portal.HandleFunc("GET /ncsi.txt", plainText("text/plain", "Microsoft NCSI"))
	s.portal.HandleFunc("GET /connecttest.txt", plainText("text/plain", "Success"))
	s.portal.HandleFunc("GET /success.txt", plainText("text/plain", "Success"))
	s.portal.HandleFunc("GET /captiveportal", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusFound)
	})

	s.portal.HandleFunc("/", s.redirectToPortal)
}

func (s *Server) handlePortalPage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), scanTimeout)
	defer cancel()

	aps, err := s.prov.Scan(ctx)
	if err != nil {
		s.logger.Warn("scan networks", "err", err)
	}
	sort.SliceStable(aps, func(i, j int) bool { return aps[i].SignalDBm > aps[j].SignalDBm })

	s.render(w, "portal.html", map[string]any{
		"Title":    "Ok-to-wake setup",
		"Networks": aps,
	})
}

func (s *Server) handlePortalSave(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	if !r.PostForm.Has("ssid") || !r.PostForm.Has("password") {
		http.Error(w, "Missing SSID or Password", http.StatusBadRequest)
		return
	}

	err := s.prov.SubmitCredentials(r.PostForm.Get("ssid"), r.PostForm.Get("password"))
	switch {
	case errors.Is(err, connectivity.ErrInvalidCredentials):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		s.logger.Error("save credentials", "err", err)
		http.Error(w, "Could not save credentials", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("WiFi credentials saved, connecting..."))
}

func (s *Server) redirectToPortal(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("captive redirect", "host", r.Host, "path", r.URL.Path)
	http.Redirect(w, r, "http://"+s.portalIP+"/", http.StatusFound)
}

func plainText(contentType, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(body))
	}
}
