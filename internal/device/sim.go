package device

import (
	"context"
	"sync"
	"time"

	"github.com/mcp2everything/PID-agent/internal/channel"
	"github.com/mcp2everything/PID-agent/internal/errors"
	"github.com/mcp2everything/PID-agent/internal/logger"
	"github.com/mcp2everything/PID-agent/internal/protocol"
)

// Simulator is an in-process device: it hosts the channel model
// population and speaks the same wire protocol as real firmware. Each
// Receive advances every channel by the elapsed wall time; the channel
// model itself throttles simulation cadence, independent of how often
// the caller polls.
type Simulator struct {
	mu       sync.Mutex
	channels []*channel.Channel
	open     bool
	now      func() time.Time
}

// NewSimulator creates a simulator with numChannels channels sharing
// the given model parameters.
func NewSimulator(numChannels int, params channel.Params) *Simulator {
	channels := make([]*channel.Channel, numChannels)
	for i := range channels {
		channels[i] = channel.New(i, params)
	}

	return &Simulator{
		channels: channels,
		now:      time.Now,
	}
}

func (s *Simulator) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	logger.Debug().Int("channels", len(s.channels)).Msg("Simulated device opened")

	return nil
}

func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false

	return nil
}

// Send applies one command line to the simulated channels. Commands
// addressing a channel outside the configured range are rejected.
func (s *Simulator) Send(_ context.Context, command string) error {
	errFactory := errors.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return errFactory.New(ErrNotConnected)
	}

	cmd, err := protocol.ParseCommand(command)
	if err != nil {
		return err
	}

	if cmd.ChannelID() < 0 || cmd.ChannelID() >= len(s.channels) {
		return errFactory.WithData(ErrInvalidChannel, cmd.ChannelID())
	}

	switch c := cmd.(type) {
	case protocol.SetGainsCommand:
		ch := s.channels[c.Channel]
		ch.SetGains(c.Kp, c.Ki, c.Kd, c.TargetTemp)
		ch.SetPeriodDuty(c.ControlPeriod, c.MaxDuty)
	case protocol.SetHeatingCommand:
		s.channels[c.Channel].SetHeating(c.On)
	}

	return nil
}

// Receive advances every channel one step and returns the resulting
// telemetry line.
func (s *Simulator) Receive(_ context.Context) ([]byte, error) {
	errFactory := errors.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil, errFactory.New(ErrNotConnected)
	}

	now := s.now()
	statuses := make([]protocol.ChannelStatus, len(s.channels))
	for i, ch := range s.channels {
		temp := ch.Step(now)
		state := ch.State()
		statuses[i] = protocol.ChannelStatus{
			ID:          state.ID,
			Temperature: temp,
			PIDParams: protocol.PIDParams{
				Kp:            state.Gains.Kp,
				Ki:            state.Gains.Ki,
				Kd:            state.Gains.Kd,
				TargetTemp:    state.TargetTemp,
				ControlPeriod: state.ControlPeriodMS,
				MaxDuty:       state.MaxDutyPct,
			},
			Heating: state.Heating,
		}
	}

	return protocol.EncodeTelemetry(protocol.SystemSnapshot{
		Timestamp: now,
		Status:    "running",
		Channels:  statuses,
	})
}

// AddDisturbance perturbs one simulated channel. Only meaningful on
// the simulator; real firmware has real disturbances.
func (s *Simulator) AddDisturbance(channelID int, magnitude float64) error {
	errFactory := errors.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	if channelID < 0 || channelID >= len(s.channels) {
		return errFactory.WithData(ErrInvalidChannel, channelID)
	}

	s.channels[channelID].AddDisturbance(magnitude)

	return nil
}

// Reset restores one channel, or all channels when channelID is
// negative, to the documented defaults.
func (s *Simulator) Reset(channelID int) error {
	errFactory := errors.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	if channelID < 0 {
		for _, ch := range s.channels {
			ch.Reset()
		}
		return nil
	}

	if channelID >= len(s.channels) {
		return errFactory.WithData(ErrInvalidChannel, channelID)
	}

	s.channels[channelID].Reset()

	return nil
}
