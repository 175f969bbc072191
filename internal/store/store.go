// Package store holds the bounded in-memory telemetry history the
// analyzer reads from. Retention is bounded both ways: at most
// maxSamples entries and at most maxAge of history per channel, with
// eviction performed lazily on append.
package store

import (
	"sync"
	"time"

	"github.com/mcp2everything/PID-agent/internal/channel"
	"github.com/mcp2everything/PID-agent/internal/errors"
)

const (
	// DefaultMaxSamples bounds each channel series by count.
	DefaultMaxSamples = 10000
	// DefaultMaxAge bounds each channel series by age.
	DefaultMaxAge = time.Hour
)

// Sample is one immutable telemetry observation for one channel.
type Sample struct {
	Timestamp   time.Time
	Temperature float64
	TargetTemp  float64
	Gains       channel.Gains
	Heating     bool
}

// Store owns one bounded, timestamp-ordered series per channel. Append
// is the only mutator; readers receive copies.
type Store struct {
	mu         sync.RWMutex
	series     [][]Sample
	maxSamples int
	maxAge     time.Duration
}

// New creates a store for numChannels channels with the default
// retention bounds.
func New(numChannels int) *Store {
	return NewWithRetention(numChannels, DefaultMaxSamples, DefaultMaxAge)
}

// NewWithRetention creates a store with explicit retention bounds.
func NewWithRetention(numChannels, maxSamples int, maxAge time.Duration) *Store {
	return &Store{
		series:     make([][]Sample, numChannels),
		maxSamples: maxSamples,
		maxAge:     maxAge,
	}
}

// NumChannels returns the number of channels the store was sized for.
func (s *Store) NumChannels() int {
	return len(s.series)
}

// Append adds a sample to the channel's series, keeping timestamps
// non-decreasing, and evicts samples outside the retention bounds.
// Equal timestamps are retained; the device clock may tick slower
// than the poll interval. Samples older than the latest retained one
// are rejected.
func (s *Store) Append(channelID int, sample Sample) error {
	errFactory := errors.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	if channelID < 0 || channelID >= len(s.series) {
		return errFactory.WithData(ErrInvalidChannel, channelID)
	}

	series := s.series[channelID]
	if n := len(series); n > 0 && sample.Timestamp.Before(series[n-1].Timestamp) {
		return errFactory.WithData(ErrOutOfOrder, sample.Timestamp)
	}

	series = append(series, sample)

	cutoff := sample.Timestamp.Add(-s.maxAge)
	start := 0
	for start < len(series) && series[start].Timestamp.Before(cutoff) {
		start++
	}
	if overflow := len(series) - start - s.maxSamples; overflow > 0 {
		start += overflow
	}
	if start > 0 {
		series = append([]Sample(nil), series[start:]...)
	}

	s.series[channelID] = series

	return nil
}

// Window returns a copy of the channel's samples within
// [now-duration, now]. A zero duration returns the full series. A
// valid channel with no data yields an empty slice, not an error.
func (s *Store) Window(channelID int, duration time.Duration) ([]Sample, error) {
	errFactory := errors.New()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if channelID < 0 || channelID >= len(s.series) {
		return nil, errFactory.WithData(ErrInvalidChannel, channelID)
	}

	series := s.series[channelID]
	if duration <= 0 || len(series) == 0 {
		return append([]Sample(nil), series...), nil
	}

	cutoff := time.Now().Add(-duration)
	start := 0
	for start < len(series) && series[start].Timestamp.Before(cutoff) {
		start++
	}

	return append([]Sample(nil), series[start:]...), nil
}

// Latest returns the most recent sample for the channel, or false if
// the series is empty.
func (s *Store) Latest(channelID int) (Sample, bool, error) {
	errFactory := errors.New()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if channelID < 0 || channelID >= len(s.series) {
		return Sample{}, false, errFactory.WithData(ErrInvalidChannel, channelID)
	}

	series := s.series[channelID]
	if len(series) == 0 {
		return Sample{}, false, nil
	}

	return series[len(series)-1], true, nil
}

// Clear discards all samples for one channel.
func (s *Store) Clear(channelID int) error {
	errFactory := errors.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	if channelID < 0 || channelID >= len(s.series) {
		return errFactory.WithData(ErrInvalidChannel, channelID)
	}

	s.series[channelID] = nil

	return nil
}

// ClearAll discards all samples for every channel.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.series {
		s.series[i] = nil
	}
}
