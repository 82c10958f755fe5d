package schedule

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ok-to-wake/internal/store"
)

func newTestScheduleStore(t *testing.T) (*Store, *store.MemoryStore) {
	t.Helper()
	kv := store.NewMemoryStore()
	return NewStore(kv, slog.New(slog.NewTextHandler(io.Discard, nil))), kv
}

func TestStoreSetAndReadWindows(t *testing.T) {
	s, kv := newTestScheduleStore(t)

	err := s.SetWindows([]Window{{Start: 420, End: 540}, {Start: 1320, End: 360}})
	require.NoError(t, err)

	raw, err := kv.Get(store.NamespaceSchedule, "windows")
	require.NoError(t, err)
	assert.Equal(t, "07:00-09:00,22:00-06:00", string(raw))

	assert.Equal(t, []Window{{Start: 420, End: 540}, {Start: 1320, End: 360}}, s.Windows())
}

func TestStoreRejectsOutOfRange(t *testing.T) {
	s, _ := newTestScheduleStore(t)

	err := s.SetWindows([]Window{{Start: 420, End: MinutesPerDay}})
	assert.ErrorIs(t, err, ErrMalformedEntry)
}

func TestStoreMalformedEntriesSkipped(t *testing.T) {
	s, kv := newTestScheduleStore(t)
	require.NoError(t, kv.Put(store.NamespaceSchedule, "windows", []byte("bad,07:00-08:00")))

	assert.Equal(t, []Window{{Start: 420, End: 480}}, s.Windows())
}

func TestStoreUnavailableReadsEmpty(t *testing.T) {
	s, kv := newTestScheduleStore(t)
	require.NoError(t, s.SetWindows([]Window{{Start: 1, End: 2}}))
	kv.FailReads = true

	assert.Empty(t, s.Windows())
}

func TestStoreClear(t *testing.T) {
	s, _ := newTestScheduleStore(t)
	require.NoError(t, s.SetWindows([]Window{{Start: 1, End: 2}}))

	require.NoError(t, s.Clear())
	assert.Empty(t, s.Windows())
}
