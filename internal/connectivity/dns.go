package connectivity

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// CaptiveDNS answers every A query with the portal address so that any
// lookup made by a provisioning client lands on the device.
type CaptiveDNS struct {
	addr   string
	ip     net.IP
	ttl    uint32
	logger *slog.Logger

	mu     sync.Mutex
	server *dns.Server
}

// NewCaptiveDNS returns a responder that will listen on addr (UDP).
func NewCaptiveDNS(addr string, portalIP net.IP, ttl time.Duration, logger *slog.Logger) *CaptiveDNS {
	return &CaptiveDNS{
		addr:   addr,
		ip:     portalIP.To4(),
		ttl:    uint32(ttl / time.Second),
		logger: logger.With("component", "captive-dns"),
	}
}

// ServeDNS implements dns.Handler.
func (d *CaptiveDNS) ServeDNS(w dns.ResponseWriter, r *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(r)
	m.Authoritative = true
	for _, q := range r.Question {
		if q.Qclass != dns.ClassINET || (q.Qtype != dns.TypeA && q.Qtype != dns.TypeANY) {
			continue
		}
		m.Answer = append(m.Answer, &dns.A{
			Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: d.ttl},
			A:   d.ip,
		})
	}
	if err := w.WriteMsg(m); err != nil {
		d.logger.Debug("write dns reply", "err", err)
	}
}

// Start binds the socket and serves in the background.
func (d *CaptiveDNS) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.server != nil {
		return nil
	}
	pc, err := net.ListenPacket("udp", d.addr)
	if err != nil {
		return fmt.Errorf("listen dns %s: %w", d.addr, err)
	}
	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: d, NotifyStartedFunc: func() { close(started) }}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ActivateAndServe()
	}()
	select {
	case <-started:
	case err := <-errc:
		pc.Close()
		return fmt.Errorf("serve dns: %w", err)
	}
	d.server = srv
	d.logger.Info("captive dns started", "addr", pc.LocalAddr().String(), "answer", d.ip.String())
	return nil
}

// Stop shuts the responder down.
func (d *CaptiveDNS) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.server == nil {
		return nil
	}
	err := d.server.Shutdown()
	d.server = nil
	d.logger.Info("captive dns stopped")
	return err
}

// Addr returns the bound address, or "" when stopped.
func (d *CaptiveDNS) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.server == nil || d.server.PacketConn == nil {
		return ""
	}
	return d.server.PacketConn.LocalAddr().String()
}
