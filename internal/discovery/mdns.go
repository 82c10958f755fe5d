// Package discovery advertises the control page on the local network so it
// can be reached as <hostname>.local while the device is connected.
package discovery

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/hashicorp/mdns"
)

const (
	// ServiceType is the DNS-SD type of the control page.
	ServiceType = "_http._tcp"
	domain      = "local."
)

// Config describes what to advertise.
type Config struct {
	Hostname string   // bare host label, e.g. "otw"
	Port     int      // HTTP port
	IPs      []net.IP // addresses to publish; local unicast addresses when empty
	Info     []string // TXT records
}

// Advertiser runs an mDNS responder for one HTTP service.
type Advertiser struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	server *mdns.Server
}

// NewAdvertiser creates a stopped advertiser.
func NewAdvertiser(cfg Config, logger *slog.Logger) *Advertiser {
	if cfg.Hostname == "" {
		cfg.Hostname = "otw"
	}
	if cfg.Port == 0 {
		cfg.Port = 80
	}
	return &Advertiser{cfg: cfg, logger: logger}
}

// Service builds the zone the responder answers from.
func (a *Advertiser) Service() (*mdns.MDNSService, error) {
	ips := a.cfg.IPs
	if len(ips) == 0 {
		var err error
		if ips, err = localIPs(); err != nil {
			return nil, err
		}
	}
	svc, err := mdns.NewMDNSService(a.cfg.Hostname, ServiceType, domain, a.cfg.Hostname+"."+domain, a.cfg.Port, ips, a.cfg.Info)
	if err != nil {
		return nil, fmt.Errorf("mdns service: %w", err)
	}
	return svc, nil
}

// Start begins answering queries. Starting a running advertiser is a no-op.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		return nil
	}

	svc, err := a.Service()
	if err != nil {
		return err
	}
	srv, err := mdns.NewServer(&mdns.Config{Zone: svc})
	if err != nil {
		return fmt.Errorf("mdns server: %w", err)
	}
	a.server = srv
	a.logger.Info("mdns advertising", "host", a.cfg.Hostname+".local", "port", a.cfg.Port)
	return nil
}

// Stop withdraws the advertisement.
func (a *Advertiser) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server == nil {
		return nil
	}
	err := a.server.Shutdown()
	a.server = nil
	if err != nil {
		return fmt.Errorf("mdns shutdown: %w", err)
	}
	a.logger.Info("mdns stopped")
	return nil
}

func localIPs() ([]net.IP, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("interface addrs: %w", err)
	}
	var ips []net.IP
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() || ipnet.IP.IsLinkLocalUnicast() {
			continue
		}
		ips = append(ips, ipnet.IP)
	}
	if len(ips) == 0 {
		return nil, errors.New("no usable local address")
	}
	return ips, nil
}
