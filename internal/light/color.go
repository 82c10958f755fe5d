// Package light holds the indicator's color and brightness and pushes every
// change through a Renderer.
package light

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownColor is returned by ParseColor for names outside the palette.
var ErrUnknownColor = errors.New("unknown color")

// Color is the indicator color. The zero value is Off.
type Color uint8

const (
	Off Color = iota
	Green
	Red
	Blue
)

var colorNames = [...]string{
	Off:   "off",
	Green: "green",
	Red:   "red",
	Blue:  "blue",
}

func (c Color) String() string {
	if int(c) < len(colorNames) {
		return colorNames[c]
	}
	return fmt.Sprintf("color(%d)", uint8(c))
}

// ParseColor maps a color name (case-insensitive, surrounding space ignored)
// to a Color.
func ParseColor(s string) (Color, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range colorNames {
		if n == name {
			return Color(i), nil
		}
	}
	return Off, fmt.Errorf("%w: %q", ErrUnknownColor, s)
}

// RGB returns the full-intensity channel values for the color.
func (c Color) RGB() (r, g, b uint8) {
	switch c {
	case Green:
		return 0, 255, 0
	case Red:
		return 255, 0, 0
	case Blue:
		return 0, 0, 255
	default:
		return 0, 0, 0
	}
}

// Hue returns the hue angle in degrees; Off reports 0.
func (c Color) Hue() float64 {
	switch c {
	case Green:
		return 120
	case Blue:
		return 240
	default:
		return 0
	}
}

func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Color) UnmarshalText(b []byte) error {
	v, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ClampPercent limits p to [0,100].
func ClampPercent(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// PercentToByte maps 0-100% linearly onto 0-255.
func PercentToByte(p int) uint8 {
	return uint8(ClampPercent(p) * 255 / 100)
}
