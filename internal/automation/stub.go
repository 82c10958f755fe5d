//go:build no_automation

package automation

import (
	"context"
	"errors"
	"log/slog"

	"ok-to-wake/internal/device"
	"ok-to-wake/internal/light"
)

// Enabled reports whether this build includes the Lua hook.
const Enabled = false

var errDisabled = errors.New("automation disabled")

// Hook is a no-op when automation is compiled out.
type Hook struct{}

// Load always fails when automation is disabled.
func Load(_ string, _ *slog.Logger) (*Hook, error) { return nil, errDisabled }

// New always fails when automation is disabled.
func New(_, _ string, _ *slog.Logger) (*Hook, error) { return nil, errDisabled }

// Choose returns an error so the schedule color is kept.
func (h *Hook) Choose(_ context.Context, _ device.HookInput) (light.Color, error) {
	return light.Off, errDisabled
}

// Close is a no-op.
func (h *Hook) Close() {}
