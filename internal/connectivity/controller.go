package connectivity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Config controls connection attempts.
type Config struct {
	SSID           string        // access point name while provisioning
	ConnectTimeout time.Duration // bound on one attempt
	PollInterval   time.Duration // link status poll period during an attempt
}

func (c Config) withDefaults() Config {
	if c.SSID == "" {
		c.SSID = "OTWU"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 15 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	return c
}

// Controller owns the connectivity state.
type Controller struct {
	cfg       Config
	creds     *CredentialStore
	net       Network
	responder Responder
	logger    *slog.Logger

	mu          sync.Mutex
	state       State
	attempt     uint64
	cancel      context.CancelFunc
	responderUp bool
	listeners   []func(State)

	retry chan struct{}
}

// NewController returns a controller in the Uninitialized state. responder
// may be nil.
func NewController(cfg Config, creds *CredentialStore, network Network, responder Responder, logger *slog.Logger) *Controller {
	return &Controller{
		cfg:       cfg.withDefaults(),
		creds:     creds,
		net:       network,
		responder: responder,
		logger:    logger.With("component", "connectivity"),
		retry:     make(chan struct{}, 1),
	}
}

// OnStateChange registers fn to be called after every transition.
func (c *Controller) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// CurrentState returns the current state.
func (c *Controller) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Retry receives a value whenever new credentials are submitted.
func (c *Controller) Retry() <-chan struct{} {
	return c.retry
}

// HasCredentials reports whether a profile is stored.
func (c *Controller) HasCredentials() bool {
	_, ok, err := c.creds.Load()
	return ok && err == nil
}

// Scan lists nearby networks for the portal.
func (c *Controller) Scan(ctx context.Context) ([]AccessPoint, error) {
	return c.net.Scan(ctx)
}

// AttemptConnect tries the stored profile and returns the resulting state:
// Connected, or ProvisioningMode when there is no profile or the attempt
// fails. An attempt superseded by SubmitCredentials or Reset returns the
// state left by whoever superseded it.
func (c *Controller) AttemptConnect(ctx context.Context) State {
	attemptCtx, id := c.begin(ctx)
	defer c.end(id)

	profile, ok, err := c.creds.Load()
	if err != nil {
		c.logger.Warn("read credentials, treating as absent", "err", err)
	}
	if !ok {
		c.logger.Info("no stored network, entering provisioning")
		c.enterProvisioning(attemptCtx, id)
		return c.CurrentState()
	}

	c.transition(id, Connecting)
	c.logger.Info("connecting", "ssid", profile.Name, "timeout", c.cfg.ConnectTimeout)

	err = c.waitConnected(attemptCtx, profile)
	switch {
	case err == nil:
		c.stopResponder()
		c.transition(id, Connected)
		c.logger.Info("connected", "ssid", profile.Name)
	case attemptCtx.Err() != nil && !errors.Is(err, ErrConnectTimeout):
		c.logger.Debug("connect attempt abandoned", "ssid", profile.Name)
	default:
		c.logger.Warn("connect failed", "ssid", profile.Name, "err", err)
		c.transition(id, ConnectFailed)
		c.enterProvisioning(attemptCtx, id)
	}
	return c.CurrentState()
}

// SubmitCredentials stores a new profile, abandons any attempt in progress
// and signals Retry.
func (c *Controller) SubmitCredentials(name, secret string) error {
	p := NetworkProfile{Name: name, Secret: secret}
	if err := p.Validate(); err != nil {
		return err
	}
	if err := c.creds.Save(p); err != nil {
		return err
	}
	c.abandon()
	select {
	case c.retry <- struct{}{}:
	default:
	}
	c.logger.Info("credentials submitted", "ssid", name)
	return nil
}

// Reset forgets the stored profile and re-enters provisioning.
func (c *Controller) Reset(ctx context.Context) error {
	err := c.creds.Clear()
	id := c.abandon()
	c.enterProvisioning(ctx, id)
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	c.logger.Info("network forgotten")
	return nil
}

func (c *Controller) waitConnected(ctx context.Context, p NetworkProfile) error {
	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	timedOut := func() error {
		if ctx.Err() == nil {
			return fmt.Errorf("%w after %s", ErrConnectTimeout, c.cfg.ConnectTimeout)
		}
		return ctx.Err()
	}

	if err := c.net.Connect(waitCtx, p); err != nil {
		if waitCtx.Err() != nil {
			return timedOut()
		}
		return fmt.Errorf("connect %q: %w", p.Name, err)
	}

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if c.net.Status() == LinkConnected {
			return nil
		}
		select {
		case <-waitCtx.Done():
			return timedOut()
		case <-ticker.C:
		}
	}
}

func (c *Controller) enterProvisioning(ctx context.Context, id uint64) {
	if !c.current(id) {
		return
	}
	if err := c.net.HostAccessPoint(ctx, c.cfg.SSID); err != nil {
		c.logger.Error("host access point", "ssid", c.cfg.SSID, "err", err)
	}
	c.startResponder()
	c.transition(id, ProvisioningMode)
}

func (c *Controller) startResponder() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.responder == nil || c.responderUp {
		return
	}
	if err := c.responder.Start(); err != nil {
		c.logger.Error("start captive responder", "err", err)
		return
	}
	c.responderUp = true
}

func (c *Controller) stopResponder() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.responder == nil || !c.responderUp {
		return
	}
	if err := c.responder.Stop(); err != nil {
		c.logger.Warn("stop captive responder", "err", err)
	}
	c.responderUp = false
}

// begin registers a new attempt, cancelling the previous one.
func (c *Controller) begin(ctx context.Context) (context.Context, uint64) {
	attemptCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	c.attempt++
	c.cancel = cancel
	return attemptCtx, c.attempt
}

func (c *Controller) end(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attempt == id && c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// abandon cancels any running attempt and returns a fresh attempt id so
// the stale attempt can no longer change state.
func (c *Controller) abandon() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.attempt++
	return c.attempt
}

func (c *Controller) current(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt == id
}

// transition sets the state if attempt id is still current.
func (c *Controller) transition(id uint64, s State) {
	c.mu.Lock()
	if c.attempt != id || c.state == s {
		c.mu.Unlock()
		return
	}
	prev := c.state
	c.state = s
	listeners := append([]func(State){}, c.listeners...)
	c.mu.Unlock()

	c.logger.Debug("state change", "from", prev, "to", s)
	for _, fn := range listeners {
		fn(s)
	}
}
