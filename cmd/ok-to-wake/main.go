package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"ok-to-wake/internal/automation"
	"ok-to-wake/internal/clock"
	"ok-to-wake/internal/connectivity"
	"ok-to-wake/internal/device"
	"ok-to-wake/internal/discovery"
	"ok-to-wake/internal/events"
	"ok-to-wake/internal/led"
	"ok-to-wake/internal/light"
	"ok-to-wake/internal/schedule"
	"ok-to-wake/internal/store"
	"ok-to-wake/internal/web"
	"ok-to-wake/internal/wifi"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Temporary logger for config loading errors.
	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfgPath := "config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		bootLogger.Error("load config", "err", err)
		os.Exit(1)
	}
	cfg.applyEnv(bootLogger)
	if err := cfg.validate(); err != nil {
		bootLogger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("ok-to-wake starting", "version", version)

	loc, _ := time.LoadLocation(cfg.Schedule.Timezone)
	clk := clock.NewRealClock(loc)

	db, err := store.NewBoltStore(cfg.Store.Path)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	drv, err := led.New(cfg.LED, logger)
	if err != nil {
		logger.Error("open led driver", "err", err)
		os.Exit(1)
	}
	defer drv.Close()

	ls := light.NewState(db, drv, logger)
	bus := events.NewBus(logger)

	network := newNetwork(cfg, logger)
	creds := connectivity.NewCredentialStore(db)
	captive := connectivity.NewCaptiveDNS(cfg.DNS.Listen, net.ParseIP(cfg.Device.PortalIP), cfg.DNS.TTL, logger)
	ctrl := connectivity.NewController(connectivity.Config{
		SSID:           cfg.Device.SSID,
		ConnectTimeout: cfg.Network.ConnectTimeout,
		PollInterval:   cfg.Network.PollInterval,
	}, creds, network, captive, logger)
	supervisor := connectivity.NewSupervisor(ctrl, network, connectivity.SupervisorConfig{
		MonitorInterval: cfg.Network.MonitorInterval,
		MaxBackoff:      cfg.Network.MaxBackoff,
	}, logger)

	wake, _ := light.ParseColor(cfg.Schedule.WakeColor)
	sleep, _ := light.ParseColor(cfg.Schedule.SleepColor)
	dev := device.New(device.Config{
		Palette:      schedule.Palette{Wake: wake, Sleep: sleep},
		PollInterval: cfg.Schedule.PollInterval,
	}, ls, schedule.NewStore(db, logger), creds, ctrl, bus, clk, logger)

	if hook := initHook(dev, cfg, logger); hook != nil {
		defer hook.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	online := newOnlineServices(logger,
		newMQTTService(dev, bus, cfg, logger),
		newMDNSService(cfg, logger),
	)
	ctrl.OnStateChange(func(s connectivity.State) {
		dev.ConnectivityChanged(s)
		online.signal()
	})

	var webOpts []web.ServerOption
	if cfg.Web.APIKey != "" {
		webOpts = append(webOpts, web.WithAPIKey(cfg.Web.APIKey))
	}
	if len(cfg.Web.AllowedOrigins) > 0 {
		webOpts = append(webOpts, web.WithAllowedOrigins(cfg.Web.AllowedOrigins))
	}
	webOpts = append(webOpts,
		web.WithVersion(version),
		web.WithPortalIP(cfg.Device.PortalIP),
		web.WithProvisioningRestart(func() {
			if err := ctrl.Reset(ctx); err != nil {
				logger.Error("restart provisioning", "err", err)
			}
		}),
	)

	webServer, err := web.NewServer(dev, ctrl, bus, logger.With("component", "web"), webOpts...)
	if err != nil {
		logger.Error("create web server", "err", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:         cfg.Web.Listen,
		Handler:      webServer,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		logger.Info("web server starting", "addr", cfg.Web.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", "err", err)
		}
	}()

	var wg sync.WaitGroup
	for _, run := range []func(context.Context){supervisor.Run, dev.RunAutomation, online.run(ctrl.CurrentState)} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(ctx)
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	signal.Stop(sigCh)
	logger.Info("shutting down", "signal", sig)

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "err", err)
	}
	webServer.Stop()
	wg.Wait()
	if err := captive.Stop(); err != nil {
		logger.Warn("captive dns stop", "err", err)
	}

	logger.Info("goodbye")
}

// initHook loads the optional Lua hook. Builds with the no_automation tag
// only warn when a script is configured.
func initHook(dev *device.Device, cfg *Config, logger *slog.Logger) *automation.Hook {
	if cfg.Schedule.HookScript == "" {
		return nil
	}
	if !automation.Enabled {
		logger.Warn("hook_script set but this build has no automation support")
		return nil
	}
	hook, err := automation.Load(cfg.Schedule.HookScript, logger)
	if err != nil {
		logger.Error("load hook script, using plain schedule", "path", cfg.Schedule.HookScript, "err", err)
		return nil
	}
	dev.SetHook(hook)
	logger.Info("hook script loaded", "path", cfg.Schedule.HookScript)
	return hook
}

func newNetwork(cfg *Config, logger *slog.Logger) connectivity.Network {
	switch cfg.Network.Backend {
	case "sim":
		logger.Info("using simulated network", "networks", len(cfg.Network.SimNetworks))
		return wifi.NewSimulated(cfg.Network.SimNetworks, time.Second, logger)
	default:
		logger.Info("using NetworkManager", "interface", cfg.Network.Interface)
		return wifi.NewNMCLI(cfg.Network.Interface, cfg.Device.PortalIP, cfg.Network.ConnectTimeout, logger)
	}
}

// webPort extracts the port from a listen address such as ":80".
func webPort(listen string) (int, error) {
	_, port, err := net.SplitHostPort(listen)
	if err != nil {
		return 0, fmt.Errorf("web.listen: %w", err)
	}
	return strconv.Atoi(port)
}

type mdnsService struct {
	adv    *discovery.Advertiser
	logger *slog.Logger
}

func newMDNSService(cfg *Config, logger *slog.Logger) onlineService {
	port, err := webPort(cfg.Web.Listen)
	if err != nil {
		logger.Warn("mdns disabled", "err", err)
		return nopService{}
	}
	return &mdnsService{
		adv:    discovery.NewAdvertiser(discovery.Config{Hostname: cfg.Device.Hostname, Port: port, Info: []string{"version=" + version}}, logger.With("component", "mdns")),
		logger: logger,
	}
}

func (m *mdnsService) start() {
	if err := m.adv.Start(); err != nil {
		m.logger.Warn("mdns start", "err", err)
	}
}

func (m *mdnsService) stop() {
	if err := m.adv.Stop(); err != nil {
		m.logger.Warn("mdns stop", "err", err)
	}
}
