package light

import (
	"log/slog"
	"strconv"
	"sync"

	"ok-to-wake/internal/store"
)

const (
	keyBrightness     = "brightness"
	DefaultBrightness = 100
)

// Renderer drives the physical light.
type Renderer interface {
	Render(c Color, brightnessPercent int) error
}

// State is the current color and brightness of the indicator. Color is not
// persisted and starts as Off; brightness is persisted in the led namespace.
type State struct {
	mu         sync.Mutex
	color      Color
	brightness int
	kv         store.KV
	renderer   Renderer
	logger     *slog.Logger

	// unsaved is set when the last brightness write failed; the next
	// mutation retries it.
	unsaved bool
}

// NewState loads the stored brightness (default 100%) and renders Off.
func NewState(kv store.KV, r Renderer, logger *slog.Logger) *State {
	s := &State{
		color:      Off,
		brightness: DefaultBrightness,
		kv:         kv,
		renderer:   r,
		logger:     logger.With("component", "light"),
	}

	raw, err := store.GetOr(kv, store.NamespaceLED, keyBrightness, []byte(strconv.Itoa(DefaultBrightness)))
	if err != nil {
		s.logger.Warn("read brightness, using default", "err", err, "default", DefaultBrightness)
	}
	if n, convErr := strconv.Atoi(string(raw)); convErr == nil {
		s.brightness = ClampPercent(n)
	} else {
		s.logger.Warn("stored brightness unreadable, using default", "value", string(raw))
	}

	s.mu.Lock()
	s.render()
	s.mu.Unlock()
	return s
}

// Apply switches to color c and renders it. Applying the current color again
// re-renders without changing state.
func (s *State) Apply(c Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.color = c
	s.retryPersist()
	s.render()
}

// SetBrightness clamps p to [0,100], persists it, and re-renders the current
// color immediately. It returns the clamped value.
func (s *State) SetBrightness(p int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brightness = ClampPercent(p)
	s.persist()
	s.render()
	return s.brightness
}

// Color returns the current color.
func (s *State) Color() Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.color
}

// Brightness returns the current brightness percent.
func (s *State) Brightness() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.brightness
}

func (s *State) persist() {
	err := s.kv.Put(store.NamespaceLED, keyBrightness, []byte(strconv.Itoa(s.brightness)))
	if err != nil {
		s.unsaved = true
		s.logger.Warn("persist brightness, will retry on next write", "err", err, "brightness", s.brightness)
		return
	}
	s.unsaved = false
}

func (s *State) retryPersist() {
	if s.unsaved {
		s.persist()
	}
}

func (s *State) render() {
	if s.renderer == nil {
		return
	}
	if err := s.renderer.Render(s.color, s.brightness); err != nil {
		s.logger.Warn("render failed", "err", err, "color", s.color, "brightness", s.brightness)
	}
}
