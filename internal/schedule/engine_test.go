package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ok-to-wake/internal/light"
)

func TestEvaluate(t *testing.T) {
	morning := Window{Start: 7 * 60, End: 9 * 60}
	night := Window{Start: 22 * 60, End: 6 * 60}
	empty := Window{Start: 12 * 60, End: 12 * 60}

	tests := []struct {
		name    string
		now     TimeOfDay
		cfg     Config
		current light.Color
		want    light.Color
	}{
		{"inside forward window", 8 * 60, Config{Windows: []Window{morning}}, light.Off, light.Green},
		{"at window start", 7 * 60, Config{Windows: []Window{morning}}, light.Off, light.Green},
		{"at window end", 9 * 60, Config{Windows: []Window{morning}}, light.Green, light.Red},
		{"outside all windows", 12 * 60, Config{Windows: []Window{morning, night}}, light.Green, light.Red},
		{"wraparound late", 23 * 60, Config{Windows: []Window{night}}, light.Red, light.Green},
		{"wraparound early", 5 * 60, Config{Windows: []Window{night}}, light.Red, light.Green},
		{"degenerate is skipped", 12 * 60, Config{Windows: []Window{empty}}, light.Off, light.Red},
		{"overlap is any-active", 8 * 60, Config{Windows: []Window{morning, {Start: 8 * 60, End: 7 * 60}}}, light.Off, light.Green},
		{"no windows sleeps", 8 * 60, Config{}, light.Green, light.Red},
		{"manual override keeps current", 8 * 60, Config{Windows: []Window{morning}, ManualOverride: true}, light.Blue, light.Blue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.now, tt.cfg, tt.current))
		})
	}
}

func TestPaletteEvaluate(t *testing.T) {
	p := Palette{Wake: light.Blue, Sleep: light.Off}
	w := []Window{{Start: 60, End: 120}}

	assert.Equal(t, light.Blue, p.Evaluate(90, Config{Windows: w}, light.Red))
	assert.Equal(t, light.Off, p.Evaluate(200, Config{Windows: w}, light.Red))
}
