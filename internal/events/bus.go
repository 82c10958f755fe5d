// Package events carries device state changes to the transports (web
// socket clients, MQTT) without the core knowing about them.
package events

import (
	"log/slog"
	"sync"
)

// Event types.
const (
	ColorChanged      = "color_changed"
	BrightnessChanged = "brightness_changed"
	ScheduleChanged   = "schedule_changed"
	ManualOverride    = "manual_override"
	Connectivity      = "connectivity"
)

// Sources of a color change.
const (
	SourceCommand  = "command"
	SourceSchedule = "schedule"
)

// Event is one notification. Data is one of the payload structs below.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ColorChange is the payload of ColorChanged.
type ColorChange struct {
	Color  string `json:"color"`
	Source string `json:"source"`
}

// BrightnessChange is the payload of BrightnessChanged.
type BrightnessChange struct {
	Percent int `json:"percent"`
}

// ScheduleChange is the payload of ScheduleChanged.
type ScheduleChange struct {
	Windows []string `json:"windows"`
}

// OverrideChange is the payload of ManualOverride.
type OverrideChange struct {
	Enabled bool `json:"enabled"`
}

// ConnectivityChange is the payload of Connectivity.
type ConnectivityChange struct {
	State string `json:"state"`
}

// Handler receives events synchronously on the emitting goroutine.
type Handler func(Event)

type subscription struct {
	id      uint64
	typ     string // empty = all
	handler Handler
}

// Bus is a synchronous pub/sub hub. A panicking handler is logged and does
// not stop delivery to the others.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
	logger *slog.Logger
}

// NewBus returns an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{logger: logger.With("component", "events")}
}

// On subscribes to one event type and returns an unsubscribe func.
func (b *Bus) On(eventType string, h Handler) func() {
	return b.subscribe(eventType, h)
}

// OnAll subscribes to every event type.
func (b *Bus) OnAll(h Handler) func() {
	return b.subscribe("", h)
}

func (b *Bus) subscribe(eventType string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscription{id: id, typ: eventType, handler: h})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers e to matching handlers in subscription order.
func (b *Bus) Emit(e Event) {
	b.mu.RLock()
	matched := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if s.typ == "" || s.typ == e.Type {
			matched = append(matched, s.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range matched {
		b.deliver(h, e)
	}
}

func (b *Bus) deliver(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panic", "type", e.Type, "panic", r)
		}
	}()
	h(e)
}
