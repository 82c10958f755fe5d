package schedule

import (
	"fmt"
	"log/slog"

	"ok-to-wake/internal/store"
)

const keyWindows = "windows"

// Store persists the window list in the schedule namespace. The manual
// override flag is deliberately not stored.
type Store struct {
	kv     store.KV
	logger *slog.Logger
}

// NewStore returns a schedule store backed by kv.
func NewStore(kv store.KV, logger *slog.Logger) *Store {
	return &Store{kv: kv, logger: logger.With("component", "schedule")}
}

// Windows reads the persisted windows. Unreadable storage yields an empty
// schedule; malformed entries are logged and skipped.
func (s *Store) Windows() []Window {
	raw, err := store.GetOr(s.kv, store.NamespaceSchedule, keyWindows, nil)
	if err != nil {
		s.logger.Warn("read windows, treating schedule as empty", "err", err)
	}
	windows, errs := ParseWindows(string(raw))
	for _, e := range errs {
		s.logger.Warn("skipping schedule entry", "err", e)
	}
	return windows
}

// SetWindows replaces the stored windows.
func (s *Store) SetWindows(windows []Window) error {
	for _, w := range windows {
		if !w.Start.Valid() || !w.End.Valid() {
			return fmt.Errorf("%w: window %d-%d out of range", ErrMalformedEntry, w.Start, w.End)
		}
	}
	if err := s.kv.Put(store.NamespaceSchedule, keyWindows, []byte(FormatWindows(windows))); err != nil {
		return fmt.Errorf("save windows: %w", err)
	}
	return nil
}

// Clear removes all windows.
func (s *Store) Clear() error {
	if err := s.kv.Delete(store.NamespaceSchedule, keyWindows); err != nil {
		return fmt.Errorf("clear windows: %w", err)
	}
	return nil
}
