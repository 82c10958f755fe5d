package device

import (
	"errors"
	"fmt"

	"ok-to-wake/internal/light"
	"ok-to-wake/internal/schedule"
)

// ErrUnknownCommand is returned by Dispatch for values outside the command set.
var ErrUnknownCommand = errors.New("unknown command")

// Command is one of SetColor, SetBrightness, SetWindows, ClearWindows,
// ToggleManual or ForgetNetwork.
type Command interface {
	command()
}

// SetColor shows a color and turns manual override on.
type SetColor struct {
	Color light.Color
}

// SetBrightness changes brightness; the value is clamped to 0-100.
type SetBrightness struct {
	Percent int
}

// SetWindows replaces the stored schedule.
type SetWindows struct {
	Windows []schedule.Window
}

// ClearWindows empties the schedule, hands control back to automation and
// shows the sleep color.
type ClearWindows struct{}

// ToggleManual sets or releases manual override.
type ToggleManual struct {
	Enabled bool
}

// ForgetNetwork erases the stored network profile.
type ForgetNetwork struct{}

func (SetColor) command()      {}
func (SetBrightness) command() {}
func (SetWindows) command()    {}
func (ClearWindows) command()  {}
func (ToggleManual) command()  {}
func (ForgetNetwork) command() {}

func (c SetColor) String() string      { return "set_color(" + c.Color.String() + ")" }
func (c SetBrightness) String() string { return fmt.Sprintf("set_brightness(%d)", c.Percent) }
func (c SetWindows) String() string    { return "set_windows(" + schedule.FormatWindows(c.Windows) + ")" }
func (ClearWindows) String() string    { return "clear_windows" }
func (c ToggleManual) String() string  { return fmt.Sprintf("toggle_manual(%t)", c.Enabled) }
func (ForgetNetwork) String() string   { return "forget_network" }

// Result is the device state after a command.
type Result struct {
	Color      light.Color `json:"color"`
	Brightness int         `json:"brightness"`
	Manual     bool        `json:"manual"`

	// RestartProvisioning asks the caller to put connectivity back into
	// provisioning mode once its reply is delivered.
	RestartProvisioning bool `json:"restart_provisioning,omitempty"`
}
