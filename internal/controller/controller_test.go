package controller_test

import (
	"context"
	"testing"
	"time"

	"github.com/mcp2everything/PID-agent/internal/advisor"
	"github.com/mcp2everything/PID-agent/internal/controller"
	"github.com/mcp2everything/PID-agent/internal/errors"
	"github.com/mcp2everything/PID-agent/internal/optimize"
	"github.com/mcp2everything/PID-agent/internal/protocol"
	"github.com/mcp2everything/PID-agent/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	lines   [][]byte
	sent    []string
	sendErr error
}

func (f *fakeDevice) Open() error  { return nil }
func (f *fakeDevice) Close() error { return nil }

func (f *fakeDevice) Send(_ context.Context, command string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, command)
	return nil
}

func (f *fakeDevice) Receive(_ context.Context) ([]byte, error) {
	if len(f.lines) == 0 {
		return nil, errors.New().New(errors.ErrTimeout)
	}
	line := f.lines[0]
	f.lines = f.lines[1:]
	return line, nil
}

func (f *fakeDevice) queue(line []byte) {
	f.lines = append(f.lines, line)
}

type stubAdvisor struct {
	suggestion advisor.Suggestion
	err        error
}

func (s *stubAdvisor) Suggest(_ context.Context, _ advisor.Request) (advisor.Suggestion, error) {
	return s.suggestion, s.err
}

func f64(v float64) *float64 { return &v }

func str(v string) *string { return &v }

func telemetryLine(t *testing.T, ts time.Time, temps ...float64) []byte {
	t.Helper()

	channels := make([]protocol.ChannelStatus, len(temps))
	for i, temp := range temps {
		channels[i] = protocol.ChannelStatus{
			ID:          i,
			Temperature: temp,
			PIDParams: protocol.PIDParams{
				Kp: 2.0, Ki: 0.15, Kd: 0.05,
				TargetTemp: 50.0, ControlPeriod: 100, MaxDuty: 80,
			},
			Heating: true,
		}
	}

	line, err := protocol.EncodeTelemetry(protocol.SystemSnapshot{
		Timestamp: ts,
		Status:    "running",
		Channels:  channels,
	})
	require.NoError(t, err)
	return line
}

func newController(dev *fakeDevice, adv advisor.Advisor, channels int) (*controller.Controller, *store.Store) {
	st := store.New(channels)
	orch := optimize.New(adv, time.Second)
	ctrl := controller.New(dev, st, orch, nil, controller.Config{
		Channels:     channels,
		PollInterval: 100 * time.Millisecond,
	})
	return ctrl, st
}

func TestPollUpdatesSnapshotAndStore(t *testing.T) {
	dev := &fakeDevice{}
	ctrl, st := newController(dev, &stubAdvisor{}, 2)

	ts := time.Now().Truncate(time.Second)
	dev.queue(telemetryLine(t, ts, 30.0, 31.5))

	ctrl.Poll(context.Background())

	status, err := ctrl.Status(0)
	require.NoError(t, err)
	assert.InDelta(t, 30.0, status.Temperature, 1e-9)
	assert.True(t, status.Heating)

	window, err := st.Window(1, 0)
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.InDelta(t, 31.5, window[0].Temperature, 1e-9)
	assert.InDelta(t, 50.0, window[0].TargetTemp, 1e-9)
	assert.InDelta(t, 2.0, window[0].Gains.Kp, 1e-9)
}

func TestPollRetainsSameSecondSamples(t *testing.T) {
	dev := &fakeDevice{}
	ctrl, st := newController(dev, &stubAdvisor{}, 1)

	// Polling every 100ms produces many samples per wall-clock
	// second; every one of them must reach the analyzer's window.
	base := time.Now().Truncate(time.Second)
	for i := 0; i < 10; i++ {
		dev.queue(telemetryLine(t, base.Add(time.Duration(i)*100*time.Millisecond), 30.0+float64(i)))
		ctrl.Poll(context.Background())
	}

	window, err := st.Window(0, 0)
	require.NoError(t, err)
	assert.Len(t, window, 10)
}

func TestDecodeErrorKeepsLastSnapshot(t *testing.T) {
	dev := &fakeDevice{}
	ctrl, _ := newController(dev, &stubAdvisor{}, 2)

	ts := time.Now().Truncate(time.Second)
	dev.queue(telemetryLine(t, ts, 30.0, 31.5))
	ctrl.Poll(context.Background())

	before, err := ctrl.Status(0)
	require.NoError(t, err)

	// Missing channels key: a decode error, not a reset.
	dev.queue([]byte(`{"timestamp":"2025-03-01T12:00:00","status":"running"}`))
	ctrl.Poll(context.Background())

	after, err := ctrl.Status(0)
	require.NoError(t, err)
	assert.Equal(t, before, after, "decode failure must keep the last known-good snapshot")
}

func TestStatusErrors(t *testing.T) {
	ctrl, _ := newController(&fakeDevice{}, &stubAdvisor{}, 2)

	_, err := ctrl.Status(0)
	require.Error(t, err, "no snapshot yet")
	assert.True(t, errors.HasCode(err, controller.ErrNoSnapshot))

	_, err = ctrl.Status(7)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, controller.ErrInvalidChannel))
}

func TestSetGainsAndHeating(t *testing.T) {
	dev := &fakeDevice{}
	ctrl, _ := newController(dev, &stubAdvisor{}, 2)
	ctx := context.Background()

	require.NoError(t, ctrl.SetGains(ctx, 1, 2.5, 0.2, 0.1, 60.0, 200, 80))
	require.NoError(t, ctrl.SetHeating(ctx, 1, true))

	require.Len(t, dev.sent, 2)
	assert.Equal(t, "PID:1:2.5,0.2,0.1,60,200,80", dev.sent[0])
	assert.Equal(t, "HEAT:1:1", dev.sent[1])

	err := ctrl.SetHeating(ctx, 9, true)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, controller.ErrInvalidChannel))
	assert.Len(t, dev.sent, 2, "invalid channel must not reach the device")
}

func TestMetricsOverWindow(t *testing.T) {
	dev := &fakeDevice{}
	ctrl, st := newController(dev, &stubAdvisor{}, 1)

	base := time.Now().Add(-10 * time.Second)
	temps := []float64{25, 40, 49.5, 49.8, 50.2}
	for i, temp := range temps {
		require.NoError(t, st.Append(0, store.Sample{
			Timestamp:   base.Add(time.Duration(i) * time.Second),
			Temperature: temp,
			TargetTemp:  50.0,
		}))
	}

	metrics, err := ctrl.Metrics(0, 0)
	require.NoError(t, err)
	require.NotNil(t, metrics.SettlingTime)
	assert.InDelta(t, 2.0, *metrics.SettlingTime, 1e-9)

	_, err = ctrl.Metrics(4, 0)
	require.Error(t, err)
}

func TestOptimizeAppliesAcceptedGains(t *testing.T) {
	dev := &fakeDevice{}
	adv := &stubAdvisor{suggestion: advisor.Suggestion{
		Kp:          f64(3.0),
		Ki:          f64(0.25),
		Kd:          f64(0.1),
		Explanation: str("tuned"),
	}}
	ctrl, _ := newController(dev, adv, 1)

	dev.queue(telemetryLine(t, time.Now().Truncate(time.Second), 48.0))
	ctrl.Poll(context.Background())
	dev.sent = nil

	result, err := ctrl.Optimize(context.Background(), 0, 0)
	require.NoError(t, err)

	assert.False(t, result.Fallback)
	assert.InDelta(t, 3.0, result.Gains.Kp, 1e-9)
	require.Len(t, dev.sent, 1)
	assert.Equal(t, "PID:0:3,0.25,0.1,50,100,80", dev.sent[0],
		"accepted gains are applied with the channel's existing target, period and duty")
}

func TestOptimizeFallbackAppliesNothing(t *testing.T) {
	dev := &fakeDevice{}
	adv := &stubAdvisor{suggestion: advisor.Suggestion{
		Kp:          f64(3.0),
		Ki:          f64(0.25),
		Explanation: str("kd missing"),
	}}
	ctrl, _ := newController(dev, adv, 1)

	dev.queue(telemetryLine(t, time.Now().Truncate(time.Second), 48.0))
	ctrl.Poll(context.Background())
	dev.sent = nil

	result, err := ctrl.Optimize(context.Background(), 0, 0)
	require.NoError(t, err)

	assert.True(t, result.Fallback)
	assert.Equal(t, optimize.FallbackExplanation, result.Explanation)
	assert.InDelta(t, 2.0, result.Gains.Kp, 1e-9, "fallback keeps the channel's current gains")
	assert.Empty(t, dev.sent, "fallback must not send any command")
}

func TestOptimizeAllStopsOnCancellation(t *testing.T) {
	dev := &fakeDevice{}
	adv := &stubAdvisor{suggestion: advisor.Suggestion{
		Kp: f64(3.0), Ki: f64(0.25), Kd: f64(0.1), Explanation: str("tuned"),
	}}
	ctrl, _ := newController(dev, adv, 3)

	dev.queue(telemetryLine(t, time.Now().Truncate(time.Second), 48.0, 47.0, 46.0))
	ctrl.Poll(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := ctrl.OptimizeAll(ctx, 0)
	require.Error(t, err)
	assert.Empty(t, results, "a canceled batch must not start any channel")
}

func TestOptimizeAll(t *testing.T) {
	dev := &fakeDevice{}
	adv := &stubAdvisor{suggestion: advisor.Suggestion{
		Kp: f64(3.0), Ki: f64(0.25), Kd: f64(0.1), Explanation: str("tuned"),
	}}
	ctrl, _ := newController(dev, adv, 3)

	dev.queue(telemetryLine(t, time.Now().Truncate(time.Second), 48.0, 47.0, 46.0))
	ctrl.Poll(context.Background())
	dev.sent = nil

	results, err := ctrl.OptimizeAll(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Len(t, dev.sent, 3)
	for i, result := range results {
		assert.Equal(t, i, result.Channel)
		assert.False(t, result.Fallback)
	}
}

func TestClear(t *testing.T) {
	dev := &fakeDevice{}
	ctrl, st := newController(dev, &stubAdvisor{}, 2)

	dev.queue(telemetryLine(t, time.Now().Truncate(time.Second), 30.0, 31.0))
	ctrl.Poll(context.Background())

	require.NoError(t, ctrl.Clear(0))
	window, err := st.Window(0, 0)
	require.NoError(t, err)
	assert.Empty(t, window)

	window, err = st.Window(1, 0)
	require.NoError(t, err)
	assert.Len(t, window, 1, "clearing one channel must not touch others")

	require.NoError(t, ctrl.ClearAll())
	window, err = st.Window(1, 0)
	require.NoError(t, err)
	assert.Empty(t, window)

	require.Error(t, ctrl.Clear(9))
}
