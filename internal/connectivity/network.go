// Package connectivity brings the device onto a network, falling back to a
// self-hosted provisioning access point with a captive portal.
package connectivity

import (
	"context"
	"errors"
)

// ErrConnectTimeout is returned when the link does not come up in time.
var ErrConnectTimeout = errors.New("connect timeout")

// State is the connectivity state machine state.
type State int

const (
	Uninitialized State = iota
	ProvisioningMode
	Connecting
	Connected
	ConnectFailed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case ProvisioningMode:
		return "provisioning"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case ConnectFailed:
		return "connect_failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// LinkStatus is what the radio reports.
type LinkStatus int

const (
	LinkDisconnected LinkStatus = iota
	LinkConnecting
	LinkConnected
)

func (l LinkStatus) String() string {
	switch l {
	case LinkConnecting:
		return "connecting"
	case LinkConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// AccessPoint is one scan result.
type AccessPoint struct {
	SSID      string `json:"ssid"`
	SignalDBm int    `json:"signal_dbm"`
	Secured   bool   `json:"secured"`
}

// Network is the radio. Connect starts joining a network and may return
// before the link is up; callers poll Status.
type Network interface {
	Connect(ctx context.Context, p NetworkProfile) error
	HostAccessPoint(ctx context.Context, ssid string) error
	Status() LinkStatus
	Scan(ctx context.Context) ([]AccessPoint, error)
}

// Responder is started while provisioning and stopped once connected.
type Responder interface {
	Start() error
	Stop() error
}
