// Package wifi provides connectivity.Network backends.
package wifi

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"ok-to-wake/internal/connectivity"
)

// PortalConnection is the NetworkManager connection name of the
// provisioning access point.
const PortalConnection = "otw-portal"

type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s %s: %w: %s", name, strings.Join(redactArgs(args), " "), err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

// redactArgs masks the value following a "password" argument.
func redactArgs(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i < len(out)-1; i++ {
		if out[i] == "password" {
			out[i+1] = "***"
			i++
		}
	}
	return out
}

// NMCLI drives NetworkManager through the nmcli binary.
type NMCLI struct {
	Interface string
	PortalIP  string
	Timeout   time.Duration // per command

	run    runner
	logger *slog.Logger
}

// NewNMCLI returns a backend for the given wireless interface.
func NewNMCLI(iface, portalIP string, timeout time.Duration, logger *slog.Logger) *NMCLI {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NMCLI{
		Interface: iface,
		PortalIP:  portalIP,
		Timeout:   timeout,
		run:       execRunner,
		logger:    logger.With("component", "nmcli"),
	}
}

func (n *NMCLI) nmcli(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, n.Timeout)
	defer cancel()
	return n.run(ctx, "nmcli", args...)
}

// Connect asks NetworkManager to join p without waiting for activation.
func (n *NMCLI) Connect(ctx context.Context, p connectivity.NetworkProfile) error {
	_, _ = n.nmcli(ctx, "connection", "down", PortalConnection)
	_, err := n.nmcli(ctx, "--wait", "0", "device", "wifi", "connect", p.Name,
		"password", p.Secret, "ifname", n.Interface)
	return err
}

// HostAccessPoint (re)creates an open shared-mode access point.
func (n *NMCLI) HostAccessPoint(ctx context.Context, ssid string) error {
	_, _ = n.nmcli(ctx, "connection", "delete", PortalConnection)
	_, err := n.nmcli(ctx, "connection", "add",
		"type", "wifi",
		"ifname", n.Interface,
		"con-name", PortalConnection,
		"autoconnect", "no",
		"ssid", ssid,
		"802-11-wireless.mode", "ap",
		"ipv4.method", "shared",
		"ipv4.addresses", n.PortalIP+"/24",
	)
	if err != nil {
		return err
	}
	_, err = n.nmcli(ctx, "connection", "up", PortalConnection)
	return err
}

// Status reports LinkConnected only for a station connection; the portal
// access point counts as disconnected.
func (n *NMCLI) Status() connectivity.LinkStatus {
	out, err := n.nmcli(context.Background(), "-t", "-f", "GENERAL.STATE,GENERAL.CONNECTION", "device", "show", n.Interface)
	if err != nil {
		n.logger.Debug("device status", "err", err)
		return connectivity.LinkDisconnected
	}
	return parseDeviceShow(string(out))
}

func parseDeviceShow(out string) connectivity.LinkStatus {
	var code int
	var conn string
	for _, line := range strings.Split(out, "\n") {
		key, val, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		switch key {
		case "GENERAL.STATE":
			// "100 (connected)"
			num, _, _ := strings.Cut(val, " ")
			code, _ = strconv.Atoi(num)
		case "GENERAL.CONNECTION":
			conn = val
		}
	}
	switch {
	case code == 100 && conn != PortalConnection:
		return connectivity.LinkConnected
	case code >= 40 && code < 100 && conn != PortalConnection:
		return connectivity.LinkConnecting
	default:
		return connectivity.LinkDisconnected
	}
}

// Scan lists visible networks, strongest first as nmcli reports them.
func (n *NMCLI) Scan(ctx context.Context) ([]connectivity.AccessPoint, error) {
	out, err := n.nmcli(ctx, "-t", "-f", "SSID,SIGNAL,SECURITY", "device", "wifi", "list", "ifname", n.Interface)
	if err != nil {
		return nil, err
	}
	return parseWifiList(string(out)), nil
}

func parseWifiList(out string) []connectivity.AccessPoint {
	seen := make(map[string]bool)
	var aps []connectivity.AccessPoint
	for _, line := range strings.Split(out, "\n") {
		fields := splitTerse(line)
		if len(fields) < 3 || fields[0] == "" || seen[fields[0]] {
			continue
		}
		signal, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		seen[fields[0]] = true
		sec := strings.TrimSpace(fields[2])
		aps = append(aps, connectivity.AccessPoint{
			SSID:      fields[0],
			SignalDBm: signal/2 - 100,
			Secured:   sec != "" && sec != "--",
		})
	}
	return aps
}

// splitTerse splits one line of nmcli -t output, honouring "\:" escapes.
func splitTerse(line string) []string {
	var fields []string
	var b strings.Builder
	for i := 0; i < len(line); i++ {
		switch {
		case line[i] == '\\' && i+1 < len(line):
			i++
			b.WriteByte(line[i])
		case line[i] == ':':
			fields = append(fields, b.String())
			b.Reset()
		default:
			b.WriteByte(line[i])
		}
	}
	if line != "" {
		fields = append(fields, b.String())
	}
	return fields
}
