package main

import (
	"context"
	"log/slog"

	"ok-to-wake/internal/connectivity"
)

// onlineService runs only while the device has a network link.
type onlineService interface {
	start()
	stop()
}

type nopService struct{}

func (nopService) start() {}
func (nopService) stop()  {}

// onlineServices starts its services on entering Connected and stops them on
// leaving it. State changes only signal; run re-reads the current state, so
// a burst of transitions collapses into one reconcile.
type onlineServices struct {
	services []onlineService
	notify   chan struct{}
	logger   *slog.Logger
}

func newOnlineServices(logger *slog.Logger, services ...onlineService) *onlineServices {
	return &onlineServices{
		services: services,
		notify:   make(chan struct{}, 1),
		logger:   logger,
	}
}

func (o *onlineServices) signal() {
	select {
	case o.notify <- struct{}{}:
	default:
	}
}

func (o *onlineServices) run(state func() connectivity.State) func(context.Context) {
	return func(ctx context.Context) {
		running := false
		for {
			select {
			case <-ctx.Done():
				if running {
					o.stopAll()
				}
				return
			case <-o.notify:
			}

			want := state() == connectivity.Connected
			switch {
			case want && !running:
				o.logger.Info("network up, starting online services")
				for _, s := range o.services {
					s.start()
				}
			case !want && running:
				o.logger.Info("network down, stopping online services")
				o.stopAll()
			}
			running = want
		}
	}
}

func (o *onlineServices) stopAll() {
	for i := len(o.services) - 1; i >= 0; i-- {
		o.services[i].stop()
	}
}
