// Package device is the single owned context of the indicator: it routes
// commands, runs the schedule, and keeps color and manual override
// consistent between the two.
package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ok-to-wake/internal/clock"
	"ok-to-wake/internal/connectivity"
	"ok-to-wake/internal/events"
	"ok-to-wake/internal/light"
	"ok-to-wake/internal/schedule"
)

const (
	MinPollInterval = time.Second
	HookTimeout     = 100 * time.Millisecond
)

// HookInput is what a palette hook sees on each tick.
type HookInput struct {
	Now    time.Time
	Minute schedule.TimeOfDay
	Active bool
	Wake   light.Color
	Sleep  light.Color
}

// Hook may replace the color the schedule picked. An error keeps the
// schedule's choice.
type Hook interface {
	Choose(ctx context.Context, in HookInput) (light.Color, error)
}

// ConnState reports connectivity. Automation only runs while Connected.
type ConnState interface {
	CurrentState() connectivity.State
}

// Forgetter erases the stored network profile.
type Forgetter interface {
	Clear() error
}

// Config tunes the device.
type Config struct {
	Palette      schedule.Palette
	PollInterval time.Duration
}

// Device serializes every mutation of color and manual override. Events
// leave in the order their mutations were applied.
type Device struct {
	cfg    Config
	light  *light.State
	sched  *schedule.Store
	creds  Forgetter
	conn   ConnState
	bus    *events.Bus
	clock  clock.Clock
	logger *slog.Logger

	mu     sync.Mutex
	manual bool
	hook   Hook

	// emitMu is taken before mu is released so delivery order matches
	// mutation order without holding mu during delivery.
	emitMu sync.Mutex
}

// New wires a device. conn may be nil, in which case automation always runs.
func New(cfg Config, ls *light.State, sched *schedule.Store, creds Forgetter, conn ConnState, bus *events.Bus, clk clock.Clock, logger *slog.Logger) *Device {
	if cfg.PollInterval < MinPollInterval {
		cfg.PollInterval = MinPollInterval
	}
	return &Device{
		cfg:    cfg,
		light:  ls,
		sched:  sched,
		creds:  creds,
		conn:   conn,
		bus:    bus,
		clock:  clk,
		logger: logger.With("component", "device"),
	}
}

// SetHook installs a palette hook; nil removes it.
func (d *Device) SetHook(h Hook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hook = h
}

// Dispatch applies one command atomically with respect to Tick.
func (d *Device) Dispatch(cmd Command) (Result, error) {
	d.mu.Lock()
	evs, restart, err := d.apply(cmd)
	res := Result{
		Color:               d.light.Color(),
		Brightness:          d.light.Brightness(),
		Manual:              d.manual,
		RestartProvisioning: restart,
	}
	d.emitMu.Lock()
	d.mu.Unlock()
	d.emit(evs)
	d.emitMu.Unlock()

	if err != nil {
		d.logger.Warn("command failed", "cmd", cmd, "err", err)
		return res, err
	}
	d.logger.Info("command applied", "cmd", cmd)
	return res, nil
}

// apply runs with d.mu held.
func (d *Device) apply(cmd Command) (evs []events.Event, restart bool, err error) {
	switch c := cmd.(type) {
	case SetColor:
		d.light.Apply(c.Color)
		evs = append(evs, colorEvent(c.Color, events.SourceCommand))
		evs = d.setManual(true, evs)

	case SetBrightness:
		p := d.light.SetBrightness(c.Percent)
		evs = append(evs, events.Event{Type: events.BrightnessChanged, Data: events.BrightnessChange{Percent: p}})

	case SetWindows:
		if err := d.sched.SetWindows(c.Windows); err != nil {
			return nil, false, err
		}
		evs = append(evs, scheduleEvent(c.Windows))

	case ClearWindows:
		if err := d.sched.Clear(); err != nil {
			return nil, false, err
		}
		sleep := d.cfg.Palette.Sleep
		if d.light.Color() != sleep {
			d.light.Apply(sleep)
			evs = append(evs, colorEvent(sleep, events.SourceSchedule))
		}
		evs = append(evs, scheduleEvent(nil))
		evs = d.setManual(false, evs)

	case ToggleManual:
		evs = d.setManual(c.Enabled, evs)

	case ForgetNetwork:
		if d.creds != nil {
			if err := d.creds.Clear(); err != nil {
				return nil, false, err
			}
		}
		restart = true

	default:
		return nil, false, fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
	return evs, restart, nil
}

func (d *Device) setManual(on bool, evs []events.Event) []events.Event {
	if d.manual == on {
		return evs
	}
	d.manual = on
	return append(evs, events.Event{Type: events.ManualOverride, Data: events.OverrideChange{Enabled: on}})
}

// Tick evaluates the schedule once at now, re-reading the stored windows,
// and applies the result if it differs from the current color. It reports
// whether the color changed.
func (d *Device) Tick(now time.Time) bool {
	d.mu.Lock()
	if d.manual {
		d.mu.Unlock()
		return false
	}
	windows := d.sched.Windows()
	current := d.light.Color()
	minute := schedule.At(now)
	target := d.cfg.Palette.Evaluate(minute, schedule.Config{Windows: windows}, current)
	if d.hook != nil {
		target = d.consultHook(now, minute, windows, target)
	}
	if target == current {
		d.mu.Unlock()
		return false
	}
	d.light.Apply(target)
	d.emitMu.Lock()
	d.mu.Unlock()
	d.emit([]events.Event{colorEvent(target, events.SourceSchedule)})
	d.emitMu.Unlock()

	d.logger.Info("schedule applied", "color", target, "at", minute)
	return true
}

func (d *Device) consultHook(now time.Time, minute schedule.TimeOfDay, windows []schedule.Window, fallback light.Color) light.Color {
	ctx, cancel := context.WithTimeout(context.Background(), HookTimeout)
	defer cancel()
	c, err := d.hook.Choose(ctx, HookInput{
		Now:    now,
		Minute: minute,
		Active: schedule.Active(minute, windows),
		Wake:   d.cfg.Palette.Wake,
		Sleep:  d.cfg.Palette.Sleep,
	})
	if err != nil {
		d.logger.Warn("palette hook failed, using schedule color", "err", err)
		return fallback
	}
	return c
}

// RunAutomation ticks every poll interval until ctx is done. Ticks are
// skipped unless connectivity is Connected.
func (d *Device) RunAutomation(ctx context.Context) {
	d.logger.Info("automation started", "interval", d.cfg.PollInterval)
	for {
		if d.conn == nil || d.conn.CurrentState() == connectivity.Connected {
			d.Tick(d.clock.Now())
		}
		select {
		case <-ctx.Done():
			d.logger.Info("automation stopped")
			return
		case <-d.clock.After(d.cfg.PollInterval):
		}
	}
}

// Snapshot is a consistent read of the device.
type Snapshot struct {
	Color        light.Color       `json:"color"`
	Brightness   int               `json:"brightness"`
	Windows      []schedule.Window `json:"windows"`
	Manual       bool              `json:"manual"`
	Connectivity string            `json:"connectivity"`
}

// Snapshot returns the current state.
func (d *Device) Snapshot() Snapshot {
	d.mu.Lock()
	s := Snapshot{
		Color:      d.light.Color(),
		Brightness: d.light.Brightness(),
		Windows:    d.sched.Windows(),
		Manual:     d.manual,
	}
	d.mu.Unlock()
	if s.Windows == nil {
		s.Windows = []schedule.Window{}
	}
	if d.conn != nil {
		s.Connectivity = d.conn.CurrentState().String()
	}
	return s
}

// ConnectivityChanged publishes a connectivity transition on the bus.
func (d *Device) ConnectivityChanged(s connectivity.State) {
	d.emitMu.Lock()
	defer d.emitMu.Unlock()
	d.emit([]events.Event{{Type: events.Connectivity, Data: events.ConnectivityChange{State: s.String()}}})
}

func (d *Device) emit(evs []events.Event) {
	if d.bus == nil {
		return
	}
	for _, e := range evs {
		d.bus.Emit(e)
	}
}

func colorEvent(c light.Color, source string) events.Event {
	return events.Event{Type: events.ColorChanged, Data: events.ColorChange{Color: c.String(), Source: source}}
}

func scheduleEvent(windows []schedule.Window) events.Event {
	names := make([]string, len(windows))
	for i, w := range windows {
		names[i] = w.String()
	}
	return events.Event{Type: events.ScheduleChanged, Data: events.ScheduleChange{Windows: names}}
}
