package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(writeFile(t, "config.yaml", "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "OTWU", cfg.Device.SSID)
	assert.Equal(t, "4.3.2.1", cfg.Device.PortalIP)
	assert.Equal(t, "otw", cfg.Device.Hostname)
	assert.Equal(t, 15*time.Second, cfg.Network.ConnectTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Network.PollInterval)
	assert.Equal(t, time.Hour, cfg.DNS.TTL)
	assert.Equal(t, ":80", cfg.Web.Listen)
	assert.Equal(t, "ok_to_wake", cfg.MQTT.TopicPrefix)
	assert.Equal(t, 10*time.Second, cfg.MQTT.PingInterval)
	assert.Equal(t, time.Second, cfg.Schedule.PollInterval)
	assert.Equal(t, "green", cfg.Schedule.WakeColor)
	assert.Equal(t, "red", cfg.Schedule.SleepColor)
	assert.Equal(t, "log", cfg.LED.Driver)
	assert.NoError(t, cfg.validate())
}

func TestLoadConfigValues(t *testing.T) {
	cfg, err := loadConfig(writeFile(t, "config.yaml", `
device:
  ssid: Nursery
network:
  backend: sim
  connect_timeout: 20s
  sim_networks:
    home: hunter22
led:
  driver: hue
  hue:
    host: 192.168.1.2
    light_id: 4
schedule:
  timezone: Europe/Berlin
  wake_color: blue
`))
	require.NoError(t, err)
	assert.Equal(t, "Nursery", cfg.Device.SSID)
	assert.Equal(t, "sim", cfg.Network.Backend)
	assert.Equal(t, 20*time.Second, cfg.Network.ConnectTimeout)
	assert.Equal(t, map[string]string{"home": "hunter22"}, cfg.Network.SimNetworks)
	assert.Equal(t, 4, cfg.LED.Hue.LightID)
	assert.Equal(t, "blue", cfg.Schedule.WakeColor)
	assert.NoError(t, cfg.validate())
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = loadConfig(writeFile(t, "bad.yaml", "device: [\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"blank ssid", func(c *Config) { c.Device.SSID = "  " }},
		{"bad portal ip", func(c *Config) { c.Device.PortalIP = "portal" }},
		{"ipv6 portal ip", func(c *Config) { c.Device.PortalIP = "::1" }},
		{"unknown backend", func(c *Config) { c.Network.Backend = "wpa" }},
		{"poll longer than timeout", func(c *Config) { c.Network.PollInterval = time.Minute }},
		{"schedule poll below minimum", func(c *Config) { c.Schedule.PollInterval = 100 * time.Millisecond }},
		{"unknown timezone", func(c *Config) { c.Schedule.Timezone = "Mars/Olympus" }},
		{"unknown wake color", func(c *Config) { c.Schedule.WakeColor = "purple" }},
		{"unknown sleep color", func(c *Config) { c.Schedule.SleepColor = "pink" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.applyDefaults()
			tt.mutate(&cfg)
			assert.Error(t, cfg.validate())
		})
	}
}

func TestApplyEnvOverridesSecrets(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()
	cfg.MQTT.Password = "from-yaml"
	cfg.Web.APIKey = "from-yaml"

	envFile := writeFile(t, ".env", "OTW_WEB_API_KEY=from-dotenv\n")
	t.Setenv("OTW_MQTT_PASSWORD", "from-env")
	t.Setenv("OTW_HUE_USER", "hue-user")
	t.Cleanup(func() { os.Unsetenv("OTW_WEB_API_KEY") })

	cfg.applyEnv(slog.New(slog.NewTextHandler(io.Discard, nil)), envFile)

	assert.Equal(t, "from-env", cfg.MQTT.Password)
	assert.Equal(t, "from-dotenv", cfg.Web.APIKey)
	assert.Equal(t, "hue-user", cfg.LED.Hue.User)
	assert.Empty(t, cfg.MQTT.Username)
}

func TestWebPort(t *testing.T) {
	p, err := webPort(":80")
	require.NoError(t, err)
	assert.Equal(t, 80, p)

	p, err = webPort("0.0.0.0:8080")
	require.NoError(t, err)
	assert.Equal(t, 8080, p)

	_, err = webPort("80")
	assert.Error(t, err)
}
