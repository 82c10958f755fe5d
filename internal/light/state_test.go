package light

import (
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ok-to-wake/internal/store"
)

type renderCall struct {
	color      Color
	brightness int
}

type recordingRenderer struct {
	mu    sync.Mutex
	calls []renderCall
}

func (r *recordingRenderer) Render(c Color, p int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, renderCall{c, p})
	return nil
}

func (r *recordingRenderer) last() renderCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewStateDefaults(t *testing.T) {
	kv := store.NewMemoryStore()
	r := &recordingRenderer{}

	s := NewState(kv, r, testLogger())

	assert.Equal(t, Off, s.Color())
	assert.Equal(t, DefaultBrightness, s.Brightness())
	assert.Equal(t, renderCall{Off, 100}, r.last(), "boot renders Off")
}

func TestNewStateLoadsStoredBrightness(t *testing.T) {
	kv := store.NewMemoryStore()
	require.NoError(t, kv.Put(store.NamespaceLED, "brightness", []byte("35")))

	s := NewState(kv, &recordingRenderer{}, testLogger())

	assert.Equal(t, 35, s.Brightness())
}

func TestNewStateStorageUnavailable(t *testing.T) {
	kv := store.NewMemoryStore()
	kv.FailReads = true

	s := NewState(kv, &recordingRenderer{}, testLogger())

	assert.Equal(t, DefaultBrightness, s.Brightness())
}

func TestSetBrightnessClamps(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{150, 100},
		{-5, 0},
		{0, 0},
		{100, 100},
		{57, 57},
	}

	for _, tt := range tests {
		kv := store.NewMemoryStore()
		s := NewState(kv, &recordingRenderer{}, testLogger())

		got := s.SetBrightness(tt.in)
		assert.Equal(t, tt.want, got, "SetBrightness(%d)", tt.in)
		assert.Equal(t, tt.want, s.Brightness())

		raw, err := kv.Get(store.NamespaceLED, "brightness")
		require.NoError(t, err)
		assert.Equal(t, []byte(strconv.Itoa(tt.want)), raw, "persisted value for %d", tt.in)
	}
}

func TestSetBrightnessRendersCurrentColor(t *testing.T) {
	r := &recordingRenderer{}
	s := NewState(store.NewMemoryStore(), r, testLogger())
	s.Apply(Green)

	s.SetBrightness(20)

	assert.Equal(t, renderCall{Green, 20}, r.last())
}

func TestApplySameColorIsSafe(t *testing.T) {
	r := &recordingRenderer{}
	s := NewState(store.NewMemoryStore(), r, testLogger())

	s.Apply(Blue)
	s.Apply(Blue)

	assert.Equal(t, Blue, s.Color())
	assert.Equal(t, renderCall{Blue, 100}, r.last())
}

func TestFailedBrightnessWriteIsRetried(t *testing.T) {
	kv := store.NewMemoryStore()
	s := NewState(kv, &recordingRenderer{}, testLogger())

	kv.FailWrites = true
	assert.Equal(t, 40, s.SetBrightness(40), "failed write still updates the live value")

	kv.FailWrites = false
	s.Apply(Red)

	raw, err := kv.Get(store.NamespaceLED, "brightness")
	require.NoError(t, err)
	assert.Equal(t, "40", string(raw))
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    Color
		wantErr bool
	}{
		{"green", Green, false},
		{" RED\n", Red, false},
		{"Blue", Blue, false},
		{"off", Off, false},
		{"purple", Off, true},
		{"", Off, true},
	}

	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnknownColor, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestPercentToByte(t *testing.T) {
	assert.Equal(t, uint8(0), PercentToByte(0))
	assert.Equal(t, uint8(127), PercentToByte(50))
	assert.Equal(t, uint8(255), PercentToByte(100))
	assert.Equal(t, uint8(255), PercentToByte(300))
}
