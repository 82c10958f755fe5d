package wifi

import (
	"context"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ok-to-wake/internal/connectivity"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseDeviceShow(t *testing.T) {
	tests := []struct {
		out  string
		want connectivity.LinkStatus
	}{
		{"GENERAL.STATE:100 (connected)\nGENERAL.CONNECTION:home\n", connectivity.LinkConnected},
		{"GENERAL.STATE:100 (connected)\nGENERAL.CONNECTION:otw-portal\n", connectivity.LinkDisconnected},
		{"GENERAL.STATE:70 (connecting (getting IP configuration))\nGENERAL.CONNECTION:home\n", connectivity.LinkConnecting},
		{"GENERAL.STATE:30 (disconnected)\nGENERAL.CONNECTION:\n", connectivity.LinkDisconnected},
		{"", connectivity.LinkDisconnected},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseDeviceShow(tt.out), "output %q", tt.out)
	}
}

func TestParseWifiList(t *testing.T) {
	out := strings.Join([]string{
		"home:80:WPA2",
		"cafe\\:guest:40:",
		"home:30:WPA2",
		":55:WPA2",
		"open:100:--",
	}, "\n")

	aps := parseWifiList(out)

	require.Len(t, aps, 3)
	assert.Equal(t, connectivity.AccessPoint{SSID: "home", SignalDBm: -60, Secured: true}, aps[0])
	assert.Equal(t, connectivity.AccessPoint{SSID: "cafe:guest", SignalDBm: -80, Secured: false}, aps[1])
	assert.Equal(t, connectivity.AccessPoint{SSID: "open", SignalDBm: -50, Secured: false}, aps[2])
}

func TestNMCLIConnectArgs(t *testing.T) {
	n := NewNMCLI("wlan0", "4.3.2.1", time.Second, testLogger())
	var calls []string
	n.run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, name+" "+strings.Join(args, " "))
		return nil, nil
	}

	require.NoError(t, n.Connect(context.Background(), connectivity.NetworkProfile{Name: "home", Secret: "pw"}))
	require.NoError(t, n.HostAccessPoint(context.Background(), "OTWU"))

	assert.Contains(t, calls, "nmcli --wait 0 device wifi connect home password pw ifname wlan0")
	assert.Contains(t, calls, "nmcli connection up otw-portal")
	var add string
	for _, c := range calls {
		if strings.HasPrefix(c, "nmcli connection add") {
			add = c
		}
	}
	assert.Contains(t, add, "ssid OTWU")
	assert.Contains(t, add, "ipv4.addresses 4.3.2.1/24")
}

func TestRedactArgs(t *testing.T) {
	args := []string{"device", "wifi", "connect", "home", "password", "hunter2", "ifname", "wlan0"}
	got := redactArgs(args)
	assert.Equal(t, []string{"device", "wifi", "connect", "home", "password", "***", "ifname", "wlan0"}, got)
	assert.Equal(t, "hunter2", args[5], "input must not be modified")

	assert.Equal(t, []string{"password"}, redactArgs([]string{"password"}))
}

func TestExecRunnerErrorHidesSecret(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available")
	}
	_, err := execRunner(context.Background(), "false", "device", "wifi", "connect", "home", "password", "hunter2")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "hunter2")
	assert.Contains(t, err.Error(), "connect home password ***")
}

func TestSimulatedJoin(t *testing.T) {
	s := NewSimulated(map[string]string{"home": "pw"}, 0, testLogger())

	require.NoError(t, s.Connect(context.Background(), connectivity.NetworkProfile{Name: "home", Secret: "wrong"}))
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, connectivity.LinkConnecting, s.Status())

	require.NoError(t, s.Connect(context.Background(), connectivity.NetworkProfile{Name: "home", Secret: "pw"}))
	require.Eventually(t, func() bool { return s.Status() == connectivity.LinkConnected }, time.Second, time.Millisecond)

	s.Drop()
	assert.Equal(t, connectivity.LinkDisconnected, s.Status())
}
