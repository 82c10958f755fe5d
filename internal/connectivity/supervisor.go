package connectivity

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff"
)

// SupervisorConfig controls link monitoring.
type SupervisorConfig struct {
	MonitorInterval time.Duration // link poll period while connected
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
}

// Supervisor drives the controller: the boot attempt, retries after new
// credentials, and reconnects with exponential backoff after link loss.
type Supervisor struct {
	ctrl   *Controller
	net    Network
	cfg    SupervisorConfig
	logger *slog.Logger
}

// NewSupervisor returns a supervisor for ctrl.
func NewSupervisor(ctrl *Controller, network Network, cfg SupervisorConfig, logger *slog.Logger) *Supervisor {
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = 5 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 5 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Minute
	}
	return &Supervisor{ctrl: ctrl, net: network, cfg: cfg, logger: logger.With("component", "supervisor")}
}

func (s *Supervisor) newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialBackoff
	b.MaxInterval = s.cfg.MaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Run blocks until ctx is done.
func (s *Supervisor) Run(ctx context.Context) {
	b := s.newBackoff()
	monitor := time.NewTicker(s.cfg.MonitorInterval)
	defer monitor.Stop()

	var retryTimer *time.Timer
	var retryC <-chan time.Time
	stopRetry := func() {
		if retryTimer != nil {
			retryTimer.Stop()
		}
		retryTimer, retryC = nil, nil
	}
	defer stopRetry()

	scheduleRetry := func() {
		stopRetry()
		if !s.ctrl.HasCredentials() {
			return
		}
		wait := b.NextBackOff()
		s.logger.Info("reconnect scheduled", "in", wait)
		retryTimer = time.NewTimer(wait)
		retryC = retryTimer.C
	}

	s.ctrl.AttemptConnect(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.ctrl.Retry():
			stopRetry()
			b.Reset()
			s.ctrl.AttemptConnect(ctx)

		case <-monitor.C:
			if s.ctrl.CurrentState() != Connected || s.net.Status() == LinkConnected {
				continue
			}
			s.logger.Warn("link lost, reconnecting")
			if s.ctrl.AttemptConnect(ctx) == Connected {
				b.Reset()
				continue
			}
			scheduleRetry()

		case <-retryC:
			retryTimer, retryC = nil, nil
			if s.ctrl.AttemptConnect(ctx) == Connected {
				b.Reset()
				continue
			}
			scheduleRetry()
		}
	}
}
