package schedule

import "ok-to-wake/internal/light"

// Config is the input to one evaluation.
type Config struct {
	Windows        []Window
	ManualOverride bool
}

// Palette names the colors shown inside and outside active windows.
type Palette struct {
	Wake  light.Color
	Sleep light.Color
}

// DefaultPalette is green while any window is active, red otherwise.
var DefaultPalette = Palette{Wake: light.Green, Sleep: light.Red}

// Active reports whether any non-degenerate window contains now.
func Active(now TimeOfDay, windows []Window) bool {
	for _, w := range windows {
		if w.Contains(now) {
			return true
		}
	}
	return false
}

// Evaluate returns the target color at now. With manual override on it
// returns current unchanged.
func (p Palette) Evaluate(now TimeOfDay, cfg Config, current light.Color) light.Color {
	if cfg.ManualOverride {
		return current
	}
	if Active(now, cfg.Windows) {
		return p.Wake
	}
	return p.Sleep
}

// Evaluate is DefaultPalette.Evaluate.
func Evaluate(now TimeOfDay, cfg Config, current light.Color) light.Color {
	return DefaultPalette.Evaluate(now, cfg, current)
}
