package led

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"go.yhsif.com/lifxlan"
	lifxlight "go.yhsif.com/lifxlan/light"

	"ok-to-wake/internal/light"
)

var errBulbNotFound = errors.New("lifx bulb not found")

const (
	lifxTransition = 200 * time.Millisecond
	lifxKelvin     = 3500
)

// LIFXDriver drives one LIFX bulb found by label on the LAN. The first
// match is cached and rediscovered when dialing fails.
type LIFXDriver struct {
	label   string
	timeout time.Duration
	logger  *slog.Logger

	mu   sync.Mutex
	bulb lifxlight.Device
}

func NewLIFXDriver(label string, discoverTimeout time.Duration, logger *slog.Logger) *LIFXDriver {
	if discoverTimeout <= 0 {
		discoverTimeout = 5 * time.Second
	}
	return &LIFXDriver{label: label, timeout: discoverTimeout, logger: logger}
}

func (d *LIFXDriver) discover(ctx context.Context) (lifxlight.Device, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	ch := make(chan lifxlan.Device)
	go func() {
		_ = lifxlan.Discover(ctx, ch, "")
	}()

	for dev := range ch {
		wrapCtx, wrapCancel := context.WithTimeout(ctx, 2*time.Second)
		ld, err := lifxlight.Wrap(wrapCtx, dev, false)
		wrapCancel()
		if err != nil {
			continue
		}
		name := ld.Label().String()
		if d.label == "" || name == d.label {
			d.logger.Info("lifx bulb found", "label", name, "target", dev.Target().String())
			cancel()
			for range ch {
			}
			return ld, nil
		}
	}
	return nil, fmt.Errorf("%w: label %q", errBulbNotFound, d.label)
}

func (d *LIFXDriver) get(ctx context.Context, refresh bool) (lifxlight.Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bulb != nil && !refresh {
		return d.bulb, nil
	}
	ld, err := d.discover(ctx)
	if err != nil {
		return nil, err
	}
	d.bulb = ld
	return ld, nil
}

func lifxColor(c light.Color, brightness int) lifxlan.Color {
	return lifxlan.Color{
		Hue:        uint16(c.Hue() / 360.0 * math.MaxUint16),
		Saturation: math.MaxUint16,
		Brightness: uint16(light.ClampPercent(brightness) * math.MaxUint16 / 100),
		Kelvin:     lifxKelvin,
	}
}

func (d *LIFXDriver) Render(c light.Color, brightness int) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout+2*time.Second)
	defer cancel()

	ld, err := d.get(ctx, false)
	if err != nil {
		return err
	}
	conn, err := ld.Dial()
	if err != nil {
		d.logger.Warn("lifx dial failed, rediscovering", "err", err)
		if ld, err = d.get(ctx, true); err != nil {
			return err
		}
		if conn, err = ld.Dial(); err != nil {
			return fmt.Errorf("lifx dial: %w", err)
		}
	}
	defer conn.Close()

	if c == light.Off || brightness == 0 {
		return ld.SetLightPower(ctx, conn, lifxlan.PowerOff, lifxTransition, false)
	}
	if err := ld.SetLightPower(ctx, conn, lifxlan.PowerOn, lifxTransition, false); err != nil {
		return fmt.Errorf("lifx power: %w", err)
	}
	color := lifxColor(c, brightness)
	if err := ld.SetColor(ctx, conn, &color, lifxTransition, false); err != nil {
		return fmt.Errorf("lifx color: %w", err)
	}
	return nil
}

func (d *LIFXDriver) Close() error { return nil }
