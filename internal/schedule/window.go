// Package schedule evaluates daily active windows into a target light color.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedEntry marks a window string that could not be parsed.
var ErrMalformedEntry = errors.New("malformed schedule entry")

// MinutesPerDay bounds TimeOfDay.
const MinutesPerDay = 24 * 60

// TimeOfDay is minutes since local midnight, 0-1439.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM" (24h). A single-digit hour is accepted.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	hs, ms, ok := strings.Cut(s, ":")
	if !ok || len(hs) < 1 || len(hs) > 2 || len(ms) != 2 {
		return 0, fmt.Errorf("%w: time %q", ErrMalformedEntry, s)
	}
	h, herr := strconv.Atoi(hs)
	m, merr := strconv.Atoi(ms)
	if herr != nil || merr != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: time %q", ErrMalformedEntry, s)
	}
	return TimeOfDay(h*60 + m), nil
}

// At returns the TimeOfDay of t in t's location.
func At(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

// Valid reports whether t is within 00:00-23:59.
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < MinutesPerDay
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Window is a daily interval [Start, End). Start > End wraps past midnight;
// Start == End is an empty window.
type Window struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// Degenerate reports whether the window is empty.
func (w Window) Degenerate() bool {
	return w.Start == w.End
}

// Wraps reports whether the window spans midnight.
func (w Window) Wraps() bool {
	return w.Start > w.End
}

// Contains reports whether now falls inside the window. Degenerate windows
// never contain anything.
func (w Window) Contains(now TimeOfDay) bool {
	switch {
	case w.Degenerate():
		return false
	case w.Start < w.End:
		return w.Start <= now && now < w.End
	default:
		return now >= w.Start || now < w.End
	}
}

func (w Window) String() string {
	return w.Start.String() + "-" + w.End.String()
}

// ParseWindow parses "HH:MM-HH:MM".
func ParseWindow(s string) (Window, error) {
	start, end, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Window{}, fmt.Errorf("%w: %q", ErrMalformedEntry, s)
	}
	st, err := ParseTimeOfDay(start)
	if err != nil {
		return Window{}, err
	}
	en, err := ParseTimeOfDay(end)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: st, End: en}, nil
}

// ParseWindows parses the persisted "s-e,s-e" form. Malformed entries are
// skipped individually and reported in errs; the valid remainder is
// returned in order.
func ParseWindows(s string) (windows []Window, errs []error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		w, err := ParseWindow(part)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		windows = append(windows, w)
	}
	return windows, errs
}

// FormatWindows renders windows in the persisted "s-e,s-e" form.
func FormatWindows(windows []Window) string {
	parts := make([]string, len(windows))
	for i, w := range windows {
		parts[i] = w.String()
	}
	return strings.Join(parts, ",")
}

// MarshalText encodes the window as "HH:MM-HH:MM".
func (w Window) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

// UnmarshalText decodes "HH:MM-HH:MM".
func (w *Window) UnmarshalText(b []byte) error {
	v, err := ParseWindow(string(b))
	if err != nil {
		return err
	}
	*w = v
	return nil
}
