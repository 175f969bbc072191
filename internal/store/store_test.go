package store_test

import (
	"testing"
	"time"

	"github.com/mcp2everything/PID-agent/internal/errors"
	"github.com/mcp2everything/PID-agent/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAt(ts time.Time, temp float64) store.Sample {
	return store.Sample{Timestamp: ts, Temperature: temp, TargetTemp: 50.0}
}

func TestAppendAndWindow(t *testing.T) {
	s := store.New(2)
	base := time.Now().Add(-10 * time.Second)

	for i := 0; i < 5; i++ {
		err := s.Append(0, sampleAt(base.Add(time.Duration(i)*time.Second), 25.0+float64(i)))
		require.NoError(t, err)
	}

	window, err := s.Window(0, 0)
	require.NoError(t, err)
	require.Len(t, window, 5)
	for i := 1; i < len(window); i++ {
		assert.True(t, window[i].Timestamp.After(window[i-1].Timestamp), "timestamps must be strictly increasing")
	}

	// Channel 1 is valid but has no data yet.
	window, err = s.Window(1, 0)
	require.NoError(t, err)
	assert.Empty(t, window)
}

func TestAppendInvalidChannel(t *testing.T) {
	s := store.New(2)

	err := s.Append(2, sampleAt(time.Now(), 25.0))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, store.ErrInvalidChannel))

	err = s.Append(-1, sampleAt(time.Now(), 25.0))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, store.ErrInvalidChannel))
}

func TestAppendRejectsOutOfOrder(t *testing.T) {
	s := store.New(1)
	base := time.Now()

	require.NoError(t, s.Append(0, sampleAt(base, 25.0)))

	err := s.Append(0, sampleAt(base.Add(-time.Second), 26.0))
	require.Error(t, err, "older timestamp must be rejected")
	assert.True(t, errors.HasCode(err, store.ErrOutOfOrder))

	window, err := s.Window(0, 0)
	require.NoError(t, err)
	assert.Len(t, window, 1, "rejected appends must not change the series")
}

func TestAppendKeepsEqualTimestamps(t *testing.T) {
	s := store.New(1)
	base := time.Now()

	// A device clock ticking slower than the poll interval repeats
	// timestamps; those samples still count.
	require.NoError(t, s.Append(0, sampleAt(base, 25.0)))
	require.NoError(t, s.Append(0, sampleAt(base, 25.5)))
	require.NoError(t, s.Append(0, sampleAt(base.Add(time.Second), 26.0)))

	window, err := s.Window(0, 0)
	require.NoError(t, err)
	require.Len(t, window, 3)
	assert.InDelta(t, 25.5, window[1].Temperature, 1e-9)
}

func TestEvictionByCount(t *testing.T) {
	s := store.NewWithRetention(1, 3, time.Hour)
	base := time.Now().Add(-time.Minute)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(0, sampleAt(base.Add(time.Duration(i)*time.Second), float64(i))))
	}

	window, err := s.Window(0, 0)
	require.NoError(t, err)
	require.Len(t, window, 3)
	assert.InDelta(t, 2.0, window[0].Temperature, 1e-9, "oldest samples must be evicted first")
}

func TestEvictionByAge(t *testing.T) {
	s := store.NewWithRetention(1, 100, 10*time.Second)
	base := time.Now().Add(-time.Minute)

	require.NoError(t, s.Append(0, sampleAt(base, 1.0)))
	require.NoError(t, s.Append(0, sampleAt(base.Add(5*time.Second), 2.0)))
	// This append puts the first sample outside the age bound.
	require.NoError(t, s.Append(0, sampleAt(base.Add(12*time.Second), 3.0)))

	window, err := s.Window(0, 0)
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.InDelta(t, 2.0, window[0].Temperature, 1e-9)
}

func TestWindowDuration(t *testing.T) {
	s := store.New(1)
	now := time.Now()

	require.NoError(t, s.Append(0, sampleAt(now.Add(-30*time.Second), 1.0)))
	require.NoError(t, s.Append(0, sampleAt(now.Add(-10*time.Second), 2.0)))
	require.NoError(t, s.Append(0, sampleAt(now.Add(-1*time.Second), 3.0)))

	window, err := s.Window(0, 15*time.Second)
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.InDelta(t, 2.0, window[0].Temperature, 1e-9)
}

func TestClear(t *testing.T) {
	s := store.New(2)
	now := time.Now()
	require.NoError(t, s.Append(0, sampleAt(now, 1.0)))
	require.NoError(t, s.Append(1, sampleAt(now, 2.0)))

	require.NoError(t, s.Clear(0))
	window, err := s.Window(0, 0)
	require.NoError(t, err)
	assert.Empty(t, window)

	latest, ok, err := s.Latest(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 2.0, latest.Temperature, 1e-9)

	s.ClearAll()
	_, ok, err = s.Latest(1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.Error(t, s.Clear(5))
}
