package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"ok-to-wake/internal/connectivity"
	"ok-to-wake/internal/device"
	"ok-to-wake/internal/events"
	"ok-to-wake/internal/light"
	"ok-to-wake/internal/schedule"
)

type stubControls struct {
	mu   sync.Mutex
	cmds []device.Command
	res  device.Result
	err  error
	snap device.Snapshot
}

func (s *stubControls) Dispatch(cmd device.Command) (device.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cmds = append(s.cmds, cmd)
	return s.res, s.err
}

func (s *stubControls) Snapshot() device.Snapshot { return s.snap }

func (s *stubControls) last() device.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.cmds) == 0 {
		return nil
	}
	return s.cmds[len(s.cmds)-1]
}

type stubProvisioner struct {
	mu        sync.Mutex
	state     connectivity.State
	aps       []connectivity.AccessPoint
	submitted []connectivity.NetworkProfile
}

func (p *stubProvisioner) CurrentState() connectivity.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *stubProvisioner) SubmitCredentials(name, secret string) error {
	prof := connectivity.NetworkProfile{Name: name, Secret: secret}
	if err := prof.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submitted = append(p.submitted, prof)
	return nil
}

func (p *stubProvisioner) Scan(context.Context) ([]connectivity.AccessPoint, error) {
	return p.aps, nil
}

func newTestServer(t *testing.T, state connectivity.State, opts ...ServerOption) (*Server, *stubControls, *stubProvisioner, *events.Bus) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dev := &stubControls{snap: device.Snapshot{Color: light.Green, Brightness: 80, Windows: []schedule.Window{}}}
	prov := &stubProvisioner{state: state}
	bus := events.NewBus(logger)
	s, err := NewServer(dev, prov, bus, logger, opts...)
	require.NoError(t, err)
	t.Cleanup(s.Stop)
	return s, dev, prov, bus
}

func do(s http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestControlPage(t *testing.T) {
	s, _, _, _ := newTestServer(t, connectivity.Connected)
	rec := do(s, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "setColor('red')")
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
}

func TestLegacySetColor(t *testing.T) {
	s, dev, _, _ := newTestServer(t, connectivity.Connected)

	rec := do(s, http.MethodGet, "/setColor?color=Blue", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Color changed to blue", rec.Body.String())
	assert.Equal(t, device.SetColor{Color: light.Blue}, dev.last())

	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodGet, "/setColor", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodGet, "/setColor?color=purple", "", nil).Code)
}

func TestAPICommands(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   device.Command
	}{
		{"color", http.MethodPost, "/api/color", `{"color":"red"}`, device.SetColor{Color: light.Red}},
		{"brightness", http.MethodPost, "/api/brightness", `{"percent":40}`, device.SetBrightness{Percent: 40}},
		{"clear windows", http.MethodDelete, "/api/windows", "", device.ClearWindows{}},
		{"manual off", http.MethodPost, "/api/manual", `{"enabled":false}`, device.ToggleManual{Enabled: false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, dev, _, _ := newTestServer(t, connectivity.Connected)
			rec := do(s, tt.method, tt.path, tt.body, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.want, dev.last())
		})
	}
}

func TestAPIRejectsBadInput(t *testing.T) {
	s, dev, _, _ := newTestServer(t, connectivity.Connected)

	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodPost, "/api/color", `{"color":"teal"}`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodPost, "/api/color", `not json`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodPost, "/api/brightness", `{}`, nil).Code)
	assert.Nil(t, dev.last())
}

func TestAPISetWindowsSkipsMalformed(t *testing.T) {
	s, dev, _, _ := newTestServer(t, connectivity.Connected)

	rec := do(s, http.MethodPut, "/api/windows", `{"windows":"07:00-09:00,bogus"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Windows string   `json:"windows"`
		Skipped []string `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "07:00-09:00", body.Windows)
	assert.Len(t, body.Skipped, 1)

	cmd, ok := dev.last().(device.SetWindows)
	require.True(t, ok)
	assert.Equal(t, []schedule.Window{{Start: 7 * 60, End: 9 * 60}}, cmd.Windows)
}

func TestAPIDispatchErrors(t *testing.T) {
	s, dev, _, _ := newTestServer(t, connectivity.Connected)

	dev.err = schedule.ErrMalformedEntry
	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodPost, "/api/manual", `{"enabled":true}`, nil).Code)

	dev.err = errors.New("disk gone")
	assert.Equal(t, http.StatusInternalServerError, do(s, http.MethodPost, "/api/manual", `{"enabled":true}`, nil).Code)
}

func TestAPIForgetRestartsProvisioning(t *testing.T) {
	restarted := make(chan struct{}, 1)
	s, dev, _, _ := newTestServer(t, connectivity.Connected, WithProvisioningRestart(func() { restarted <- struct{}{} }))
	dev.res = device.Result{RestartProvisioning: true}

	rec := do(s, http.MethodPost, "/api/network/forget", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, device.ForgetNetwork{}, dev.last())

	select {
	case <-restarted:
	case <-time.After(time.Second):
		t.Fatal("restart callback not called")
	}
}

func TestAPIState(t *testing.T) {
	s, _, _, _ := newTestServer(t, connectivity.Connected)
	rec := do(s, http.MethodGet, "/api/state", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"color":"green","brightness":80,"windows":[],"manual":false,"connectivity":""}`, rec.Body.String())
}

func TestAPIKeyAuth(t *testing.T) {
	s, _, _, _ := newTestServer(t, connectivity.Connected, WithAPIKey("secret"), WithVersion("1.2.3"))

	assert.Equal(t, http.StatusUnauthorized, do(s, http.MethodGet, "/api/version", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(s, http.MethodGet, "/api/version", "", map[string]string{"X-API-Key": "wrong"}).Code)

	rec := do(s, http.MethodGet, "/api/version", "", map[string]string{"X-API-Key": "secret"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"version":"1.2.3"}`, rec.Body.String())

	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/api/version?api_key=secret", "", nil).Code)
	// pages stay reachable
	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/", "", nil).Code)
}

func TestAPIKeyGuardsLegacySetColor(t *testing.T) {
	s, dev, _, _ := newTestServer(t, connectivity.Connected, WithAPIKey("secret"))

	assert.Equal(t, http.StatusUnauthorized, do(s, http.MethodGet, "/setColor?color=red", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(s, http.MethodGet, "/setColor?color=red&api_key=wrong", "", nil).Code)
	assert.Nil(t, dev.last())

	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/setColor?color=red&api_key=secret", "", nil).Code)
	assert.Equal(t, device.SetColor{Color: light.Red}, dev.last())

	rec := do(s, http.MethodGet, "/setColor?color=blue", "", map[string]string{"X-API-Key": "secret"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, device.SetColor{Color: light.Blue}, dev.last())
}

func TestCORS(t *testing.T) {
	s, _, _, _ := newTestServer(t, connectivity.Connected, WithAllowedOrigins([]string{"http://otw.local"}))

	rec := do(s, http.MethodOptions, "/api/color", "", map[string]string{"Origin": "http://otw.local"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://otw.local", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(s, http.MethodPost, "/api/color", `{"color":"red"}`, map[string]string{"Origin": "http://evil.example"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPortalServedWhileProvisioning(t *testing.T) {
	for _, st := range []connectivity.State{connectivity.ProvisioningMode, connectivity.ConnectFailed, connectivity.Connecting} {
		t.Run(st.String(), func(t *testing.T) {
			s, _, prov, _ := newTestServer(t, st)
			prov.aps = []connectivity.AccessPoint{
				{SSID: "weak", SignalDBm: -80, Secured: true},
				{SSID: "home", SignalDBm: -40, Secured: true},
				{SSID: "cafe", SignalDBm: -60},
			}
			rec := do(s, http.MethodGet, "/", "", nil)
			require.Equal(t, http.StatusOK, rec.Code)
			body := rec.Body.String()
			assert.Contains(t, body, "home (-40 dBm)")
			assert.Contains(t, body, "cafe (-60 dBm, open)")
			assert.Less(t, strings.Index(body, "home"), strings.Index(body, "weak"))
		})
	}
}

func TestPortalEmptyScan(t *testing.T) {
	s, _, _, _ := newTestServer(t, connectivity.ProvisioningMode)
	rec := do(s, http.MethodGet, "/", "", nil)
	assert.Contains(t, rec.Body.String(), "No networks found")
}

func TestPortalSave(t *testing.T) {
	s, _, prov, _ := newTestServer(t, connectivity.ProvisioningMode)
	form := url.Values{"ssid": {"home"}, "password": {"hunter22"}}.Encode()

	rec := do(s, http.MethodPost, "/save", form, map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []connectivity.NetworkProfile{{Name: "home", Secret: "hunter22"}}, prov.submitted)

	rec = do(s, http.MethodPost, "/save", "ssid=home", map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, http.MethodPost, "/save", "ssid=+&password=x", map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, prov.submitted, 1)
}

func TestPortalDetectionRoutes(t *testing.T) {
	s, _, _, _ := newTestServer(t, connectivity.ProvisioningMode, WithPortalIP("4.3.2.1"))

	tests := []struct {
		path     string
		code     int
		body     string
		location string
	}{
		{"/hotspot-detect.html", http.StatusOK, "OK", ""},
		{"/ncsi.txt", http.StatusOK, "Microsoft NCSI", ""},
		{"/connecttest.txt", http.StatusOK, "Success", ""},
		{"/success.txt", http.StatusOK, "Success", ""},
		{"/generate_204", http.StatusFound, "", "http://4.3.2.1/"},
		{"/captiveportal", http.StatusFound, "", "/"},
		{"/some/where/else", http.StatusFound, "", "http://4.3.2.1/"},
		{"/api/state", http.StatusFound, "", "http://4.3.2.1/"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(s, http.MethodGet, tt.path, "", nil)
			assert.Equal(t, tt.code, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
			if tt.location != "" {
				assert.Equal(t, tt.location, rec.Header().Get("Location"))
			}
		})
	}
}

func TestWebSocketReceivesBusEvents(t *testing.T) {
	s, _, _, bus := newTestServer(t, connectivity.Connected)
	ts := httptest.NewServer(s)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return s.wsHub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	bus.Emit(events.Event{Type: events.ColorChanged, Data: events.ColorChange{Color: "red", Source: events.SourceCommand}})

	_, msg, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"color_changed","data":{"color":"red","source":"command"}}`, string(msg))
}
