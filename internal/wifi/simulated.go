package wifi

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ok-to-wake/internal/connectivity"
)

// Simulated is an in-memory radio for development machines.
type Simulated struct {
	// Networks maps SSID to secret. An empty map accepts any profile.
	Networks  map[string]string
	JoinDelay time.Duration

	mu      sync.Mutex
	status  connectivity.LinkStatus
	hosting string
	joined  string
	timer   *time.Timer
	logger  *slog.Logger
}

// NewSimulated returns a simulated radio that knows networks.
func NewSimulated(networks map[string]string, joinDelay time.Duration, logger *slog.Logger) *Simulated {
	return &Simulated{Networks: networks, JoinDelay: joinDelay, logger: logger.With("component", "sim-wifi")}
}

func (s *Simulated) Connect(_ context.Context, p connectivity.NetworkProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.status = connectivity.LinkConnecting
	s.joined = ""
	if secret, known := s.Networks[p.Name]; len(s.Networks) > 0 && (!known || secret != p.Secret) {
		s.logger.Info("simulated join will not complete", "ssid", p.Name)
		return nil
	}
	s.timer = time.AfterFunc(s.JoinDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.status = connectivity.LinkConnected
		s.joined = p.Name
		s.hosting = ""
	})
	return nil
}

func (s *Simulated) HostAccessPoint(_ context.Context, ssid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hosting = ssid
	s.logger.Info("simulated access point up", "ssid", ssid)
	return nil
}

func (s *Simulated) Status() connectivity.LinkStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Simulated) Scan(context.Context) ([]connectivity.AccessPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	aps := make([]connectivity.AccessPoint, 0, len(s.Networks))
	signal := -40
	for ssid, secret := range s.Networks {
		aps = append(aps, connectivity.AccessPoint{SSID: ssid, SignalDBm: signal, Secured: secret != ""})
		signal -= 7
	}
	return aps, nil
}

// Drop simulates losing the link.
func (s *Simulated) Drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.status = connectivity.LinkDisconnected
	s.joined = ""
}

// Hosting returns the SSID of the hosted access point, if any.
func (s *Simulated) Hosting() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hosting
}
