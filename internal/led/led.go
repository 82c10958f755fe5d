// Package led contains the light.Renderer implementations that drive the
// physical indicator.
package led

import (
	"fmt"
	"log/slog"
	"time"

	"ok-to-wake/internal/light"
)

// Driver is a Renderer that owns a resource.
type Driver interface {
	light.Renderer
	Close() error
}

// Config selects and configures a driver.
type Config struct {
	Driver string     `yaml:"driver"` // log, serial, lifx, hue
	Serial SerialConf `yaml:"serial"`
	LIFX   LIFXConf   `yaml:"lifx"`
	Hue    HueConf    `yaml:"hue"`
}

type SerialConf struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

type LIFXConf struct {
	Label           string        `yaml:"label"`
	DiscoverTimeout time.Duration `yaml:"discover_timeout"`
}

type HueConf struct {
	Host    string `yaml:"host"`
	User    string `yaml:"user"`
	LightID int    `yaml:"light_id"`
}

// New builds the configured driver.
func New(cfg Config, logger *slog.Logger) (Driver, error) {
	logger = logger.With("component", "led", "driver", cfg.Driver)
	switch cfg.Driver {
	case "", "log":
		return NewLogDriver(logger), nil
	case "serial":
		return OpenSerial(cfg.Serial.Port, cfg.Serial.Baud, logger)
	case "lifx":
		return NewLIFXDriver(cfg.LIFX.Label, cfg.LIFX.DiscoverTimeout, logger), nil
	case "hue":
		return NewHueDriver(cfg.Hue.Host, cfg.Hue.User, cfg.Hue.LightID, logger), nil
	default:
		return nil, fmt.Errorf("unknown led driver %q", cfg.Driver)
	}
}

// LogDriver only logs; used when no hardware is attached.
type LogDriver struct {
	logger *slog.Logger
}

func NewLogDriver(logger *slog.Logger) *LogDriver {
	return &LogDriver{logger: logger}
}

func (d *LogDriver) Render(c light.Color, brightness int) error {
	r, g, b := c.RGB()
	d.logger.Info("render", "color", c, "brightness", brightness, "r", r, "g", g, "b", b)
	return nil
}

func (d *LogDriver) Close() error { return nil }
