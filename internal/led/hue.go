package led

import (
	"fmt"
	"log/slog"

	"github.com/amimof/huego"

	"ok-to-wake/internal/light"
)

// HueDriver drives one light behind a Philips Hue bridge.
type HueDriver struct {
	bridge  *huego.Bridge
	lightID int
	logger  *slog.Logger
}

func NewHueDriver(host, user string, lightID int, logger *slog.Logger) *HueDriver {
	return &HueDriver{bridge: huego.New(host, user), lightID: lightID, logger: logger}
}

func hueState(c light.Color, brightness int) huego.State {
	if c == light.Off || brightness == 0 {
		return huego.State{On: false}
	}
	return huego.State{
		On:  true,
		Bri: uint8(1 + light.ClampPercent(brightness)*253/100),
		Hue: uint16(c.Hue() / 360.0 * 65535),
		Sat: 254,
	}
}

func (d *HueDriver) Render(c light.Color, brightness int) error {
	if _, err := d.bridge.SetLightState(d.lightID, hueState(c, brightness)); err != nil {
		return fmt.Errorf("hue light %d: %w", d.lightID, err)
	}
	return nil
}

func (d *HueDriver) Close() error { return nil }
