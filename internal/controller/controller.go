// Package controller binds the device, store, analyzer and optimizer
// together: it runs the periodic ingestion loop (the sole writer of
// channel history) and exposes the integration surface the outer API
// layer consumes.
package controller

import (
	"context"
	"sync"
	"time"

	"github.com/mcp2everything/PID-agent/internal/advisor"
	"github.com/mcp2everything/PID-agent/internal/analysis"
	"github.com/mcp2everything/PID-agent/internal/channel"
	"github.com/mcp2everything/PID-agent/internal/device"
	"github.com/mcp2everything/PID-agent/internal/errors"
	"github.com/mcp2everything/PID-agent/internal/logger"
	"github.com/mcp2everything/PID-agent/internal/optimize"
	"github.com/mcp2everything/PID-agent/internal/protocol"
	"github.com/mcp2everything/PID-agent/internal/store"
	"github.com/mcp2everything/PID-agent/internal/telemetry"
)

// Controller owns the last known-good snapshot and coordinates all
// access to the device. Decode failures never discard the previous
// snapshot.
type Controller struct {
	dev          device.Device
	store        *store.Store
	orchestrator *optimize.Orchestrator
	collector    telemetry.Collector
	numChannels  int
	pollInterval time.Duration

	mu           sync.RWMutex
	lastSnapshot protocol.SystemSnapshot
	hasSnapshot  bool
}

// Config holds the controller tuning.
type Config struct {
	Channels     int
	PollInterval time.Duration
}

// New creates a controller. The telemetry collector is optional; nil
// disables history recording.
func New(dev device.Device, st *store.Store, orch *optimize.Orchestrator, collector telemetry.Collector, cfg Config) *Controller {
	return &Controller{
		dev:          dev,
		store:        st,
		orchestrator: orch,
		collector:    collector,
		numChannels:  cfg.Channels,
		pollInterval: cfg.PollInterval,
	}
}

// Run drives the ingestion loop until the context is canceled.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Poll(ctx)
		}
	}
}

// Poll reads one telemetry line, updates the snapshot and appends the
// samples to the store. Read and decode failures are reported as
// warnings and leave the previous snapshot in place.
func (c *Controller) Poll(ctx context.Context) {
	readCtx, cancel := context.WithTimeout(ctx, c.pollInterval)
	defer cancel()

	line, err := c.dev.Receive(readCtx)
	if err != nil {
		logger.Warn().Err(err).Msg("Device read failed, keeping last snapshot")
		return
	}

	snapshot, err := protocol.Decode(line)
	if err != nil {
		logger.Warn().Err(err).Msg("Telemetry decode failed, keeping last snapshot")
		return
	}

	c.mu.Lock()
	c.lastSnapshot = snapshot
	c.hasSnapshot = true
	c.mu.Unlock()

	for _, ch := range snapshot.Channels {
		sample := store.Sample{
			Timestamp:   snapshot.Timestamp,
			Temperature: ch.Temperature,
			TargetTemp:  ch.PIDParams.TargetTemp,
			Gains:       channelGains(ch),
			Heating:     ch.Heating,
		}
		if err := c.store.Append(ch.ID, sample); err != nil {
			logger.Warn().Err(err).Int("channel", ch.ID).Msg("Dropped telemetry sample")
		}
	}

	if c.collector != nil {
		if err := c.collector.Record(ctx, &snapshot); err != nil {
			logger.Warn().Err(err).Msg("Telemetry recording failed")
		}
	}
}

// Status returns one channel's entry from the last known-good
// snapshot.
func (c *Controller) Status(channelID int) (protocol.ChannelStatus, error) {
	errFactory := errors.New()

	if channelID < 0 || channelID >= c.numChannels {
		return protocol.ChannelStatus{}, errFactory.WithData(ErrInvalidChannel, channelID)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.hasSnapshot {
		return protocol.ChannelStatus{}, errFactory.New(ErrNoSnapshot)
	}

	for _, ch := range c.lastSnapshot.Channels {
		if ch.ID == channelID {
			return ch, nil
		}
	}

	return protocol.ChannelStatus{}, errFactory.WithData(ErrChannelMissing, channelID)
}

// Snapshot returns the full last known-good snapshot.
func (c *Controller) Snapshot() (protocol.SystemSnapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.hasSnapshot {
		return protocol.SystemSnapshot{}, errors.New().New(ErrNoSnapshot)
	}

	return c.lastSnapshot, nil
}

// SetGains sends a PID command for one channel. Gains travel to the
// device unclamped; period and duty are clamped by the device side.
func (c *Controller) SetGains(ctx context.Context, channelID int, kp, ki, kd, targetTemp float64, controlPeriodMS, maxDutyPct int) error {
	if err := c.checkChannel(channelID); err != nil {
		return err
	}

	return c.dev.Send(ctx, protocol.EncodeSetGains(channelID, kp, ki, kd, targetTemp, controlPeriodMS, maxDutyPct))
}

// SetHeating sends a HEAT command for one channel.
func (c *Controller) SetHeating(ctx context.Context, channelID int, on bool) error {
	if err := c.checkChannel(channelID); err != nil {
		return err
	}

	return c.dev.Send(ctx, protocol.EncodeSetHeating(channelID, on))
}

// Metrics analyzes the channel's history over the given window. A zero
// window analyzes the full retained series.
func (c *Controller) Metrics(channelID int, window time.Duration) (analysis.Metrics, error) {
	samples, err := c.store.Window(channelID, window)
	if err != nil {
		return analysis.Metrics{}, err
	}

	return analysis.Analyze(samples), nil
}

// CoolingCurve analyzes the channel's full retained series for its
// most recent cooling phase.
func (c *Controller) CoolingCurve(channelID int) (analysis.CoolingMetrics, error) {
	samples, err := c.store.Window(channelID, 0)
	if err != nil {
		return analysis.CoolingMetrics{}, err
	}

	return analysis.CoolingCurve(samples), nil
}

// Optimize runs one advisor round trip for the channel and applies an
// accepted suggestion back through the device. A fallback result is
// returned as-is and applies nothing.
func (c *Controller) Optimize(ctx context.Context, channelID int, window time.Duration) (optimize.Result, error) {
	status, err := c.Status(channelID)
	if err != nil {
		return optimize.Result{}, err
	}

	metrics, err := c.Metrics(channelID, window)
	if err != nil {
		return optimize.Result{}, err
	}

	result := c.orchestrator.Optimize(ctx, advisor.Request{
		Channel:     channelID,
		Gains:       channelGains(status),
		TargetTemp:  status.PIDParams.TargetTemp,
		CurrentTemp: status.Temperature,
		Metrics:     metrics,
	})

	if result.Fallback {
		return result, nil
	}

	err = c.SetGains(ctx, channelID,
		result.Gains.Kp, result.Gains.Ki, result.Gains.Kd,
		status.PIDParams.TargetTemp,
		status.PIDParams.ControlPeriod, status.PIDParams.MaxDuty)
	if err != nil {
		return result, errors.New().Wrap(ErrApplyFailed, err)
	}

	logger.Info().
		Int("channel", channelID).
		Str("run_id", result.ID.String()).
		Float64("kp", result.Gains.Kp).
		Float64("ki", result.Gains.Ki).
		Float64("kd", result.Gains.Kd).
		Msg("Applied optimized gains")

	return result, nil
}

// OptimizeAll optimizes every channel sequentially. Each channel is an
// independent unit of work: cancellation stops before the next channel
// and never rolls back or half-applies a finished one.
func (c *Controller) OptimizeAll(ctx context.Context, window time.Duration) ([]optimize.Result, error) {
	results := make([]optimize.Result, 0, c.numChannels)

	for channelID := 0; channelID < c.numChannels; channelID++ {
		if err := ctx.Err(); err != nil {
			return results, errors.New().Wrap(errors.ErrTimeout, err)
		}

		result, err := c.Optimize(ctx, channelID, window)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}

	return results, nil
}

// Clear discards one channel's history from the store and, when
// recording is enabled, from the telemetry database.
func (c *Controller) Clear(channelID int) error {
	if err := c.store.Clear(channelID); err != nil {
		return err
	}

	if clearer, ok := c.collector.(telemetry.Clearer); ok && c.collector != nil {
		return clearer.ClearChannel(channelID)
	}

	return nil
}

// ClearAll discards every channel's history.
func (c *Controller) ClearAll() error {
	c.store.ClearAll()

	if clearer, ok := c.collector.(telemetry.Clearer); ok && c.collector != nil {
		return clearer.ClearAll()
	}

	return nil
}

func (c *Controller) checkChannel(channelID int) error {
	if channelID < 0 || channelID >= c.numChannels {
		return errors.New().WithData(ErrInvalidChannel, channelID)
	}

	return nil
}

func channelGains(status protocol.ChannelStatus) channel.Gains {
	return channel.Gains{
		Kp: status.PIDParams.Kp,
		Ki: status.PIDParams.Ki,
		Kd: status.PIDParams.Kd,
	}
}
