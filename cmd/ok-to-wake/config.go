package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ok-to-wake/internal/device"
	"ok-to-wake/internal/led"
	"ok-to-wake/internal/light"
)

type Config struct {
	Device struct {
		SSID     string `yaml:"ssid"`
		PortalIP string `yaml:"portal_ip"`
		Hostname string `yaml:"hostname"`
	} `yaml:"device"`
	Network struct {
		Backend         string            `yaml:"backend"` // nmcli, sim
		Interface       string            `yaml:"interface"`
		ConnectTimeout  time.Duration     `yaml:"connect_timeout"`
		PollInterval    time.Duration     `yaml:"poll_interval"`
		MonitorInterval time.Duration     `yaml:"monitor_interval"`
		MaxBackoff      time.Duration     `yaml:"max_backoff"`
		SimNetworks     map[string]string `yaml:"sim_networks"` // ssid -> password, sim backend only
	} `yaml:"network"`
	DNS struct {
		Listen string        `yaml:"listen"`
		TTL    time.Duration `yaml:"ttl"`
	} `yaml:"dns"`
	Web struct {
		Listen         string   `yaml:"listen"`
		APIKey         string   `yaml:"api_key"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"web"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
	MQTT struct {
		Enabled      bool          `yaml:"enabled"`
		Broker       string        `yaml:"broker"`
		Username     string        `yaml:"username"`
		Password     string        `yaml:"password"`
		TopicPrefix  string        `yaml:"topic_prefix"`
		PingInterval time.Duration `yaml:"ping_interval"`
	} `yaml:"mqtt"`
	LED      led.Config `yaml:"led"`
	Schedule struct {
		PollInterval time.Duration `yaml:"poll_interval"`
		Timezone     string        `yaml:"timezone"`
		WakeColor    string        `yaml:"wake_color"`
		SleepColor   string        `yaml:"sleep_color"`
		HookScript   string        `yaml:"hook_script"`
	} `yaml:"schedule"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Device.SSID == "" {
		c.Device.SSID = "OTWU"
	}
	if c.Device.PortalIP == "" {
		c.Device.PortalIP = "4.3.2.1"
	}
	if c.Device.Hostname == "" {
		c.Device.Hostname = "otw"
	}
	if c.Network.Backend == "" {
		c.Network.Backend = "nmcli"
	}
	if c.Network.Interface == "" {
		c.Network.Interface = "wlan0"
	}
	if c.Network.ConnectTimeout == 0 {
		c.Network.ConnectTimeout = 15 * time.Second
	}
	if c.Network.PollInterval == 0 {
		c.Network.PollInterval = 500 * time.Millisecond
	}
	if c.Network.MonitorInterval == 0 {
		c.Network.MonitorInterval = 5 * time.Second
	}
	if c.Network.MaxBackoff == 0 {
		c.Network.MaxBackoff = 5 * time.Minute
	}
	if c.DNS.Listen == "" {
		c.DNS.Listen = ":53"
	}
	if c.DNS.TTL == 0 {
		c.DNS.TTL = time.Hour
	}
	if c.Web.Listen == "" {
		c.Web.Listen = ":80"
	}
	if c.Store.Path == "" {
		c.Store.Path = "ok-to-wake.db"
	}
	if c.MQTT.Broker == "" {
		c.MQTT.Broker = "tcp://broker.emqx.io:1883"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "ok_to_wake"
	}
	if c.MQTT.PingInterval == 0 {
		c.MQTT.PingInterval = 10 * time.Second
	}
	if c.LED.Driver == "" {
		c.LED.Driver = "log"
	}
	if c.Schedule.PollInterval == 0 {
		c.Schedule.PollInterval = device.MinPollInterval
	}
	if c.Schedule.WakeColor == "" {
		c.Schedule.WakeColor = light.Green.String()
	}
	if c.Schedule.SleepColor == "" {
		c.Schedule.SleepColor = light.Red.String()
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// applyEnv loads an optional .env file and lets the environment override
// secrets from the YAML file.
func (c *Config) applyEnv(logger *slog.Logger, envFiles ...string) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("load .env", "err", err)
	}
	for env, dst := range map[string]*string{
		"OTW_MQTT_USERNAME": &c.MQTT.Username,
		"OTW_MQTT_PASSWORD": &c.MQTT.Password,
		"OTW_WEB_API_KEY":   &c.Web.APIKey,
		"OTW_HUE_USER":      &c.LED.Hue.User,
	} {
		if v, ok := os.LookupEnv(env); ok {
			*dst = v
		}
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Device.SSID) == "" {
		return fmt.Errorf("device.ssid must not be blank")
	}
	if ip := net.ParseIP(c.Device.PortalIP); ip == nil || ip.To4() == nil {
		return fmt.Errorf("device.portal_ip must be an IPv4 address, got %q", c.Device.PortalIP)
	}
	switch c.Network.Backend {
	case "nmcli", "sim":
	default:
		return fmt.Errorf("network.backend must be nmcli or sim, got %q", c.Network.Backend)
	}
	if c.Network.PollInterval >= c.Network.ConnectTimeout {
		return fmt.Errorf("network.poll_interval (%s) must be shorter than network.connect_timeout (%s)", c.Network.PollInterval, c.Network.ConnectTimeout)
	}
	if c.Schedule.PollInterval < device.MinPollInterval {
		return fmt.Errorf("schedule.poll_interval must be at least %s, got %s", device.MinPollInterval, c.Schedule.PollInterval)
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("schedule.timezone: %w", err)
	}
	if _, err := light.ParseColor(c.Schedule.WakeColor); err != nil {
		return fmt.Errorf("schedule.wake_color: %w", err)
	}
	if _, err := light.ParseColor(c.Schedule.SleepColor); err != nil {
		return fmt.Errorf("schedule.sleep_color: %w", err)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	return nil
}

func newLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
