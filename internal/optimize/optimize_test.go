package optimize_test

import (
	"context"
	"testing"
	"time"

	"github.com/mcp2everything/PID-agent/internal/advisor"
	"github.com/mcp2everything/PID-agent/internal/channel"
	"github.com/mcp2everything/PID-agent/internal/optimize"
	"github.com/stretchr/testify/assert"
)

type stubAdvisor struct {
	suggestion advisor.Suggestion
	err        error
	delay      time.Duration
	calls      int
}

func (s *stubAdvisor) Suggest(ctx context.Context, _ advisor.Request) (advisor.Suggestion, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return advisor.Suggestion{}, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	return s.suggestion, s.err
}

func f64(v float64) *float64 { return &v }

func str(v string) *string { return &v }

func request() advisor.Request {
	return advisor.Request{
		Channel:     2,
		Gains:       channel.Gains{Kp: 2.0, Ki: 0.15, Kd: 0.05},
		TargetTemp:  50.0,
		CurrentTemp: 49.0,
	}
}

func TestOptimizeAcceptsValidSuggestion(t *testing.T) {
	stub := &stubAdvisor{suggestion: advisor.Suggestion{
		Kp:          f64(3.0),
		Ki:          f64(0.25),
		Kd:          f64(0.1),
		Explanation: str("raised kp for faster rise"),
	}}

	result := optimize.New(stub, time.Second).Optimize(context.Background(), request())

	assert.False(t, result.Fallback)
	assert.Equal(t, 2, result.Channel)
	assert.InDelta(t, 3.0, result.Gains.Kp, 1e-9)
	assert.InDelta(t, 0.25, result.Gains.Ki, 1e-9)
	assert.InDelta(t, 0.1, result.Gains.Kd, 1e-9)
	assert.Equal(t, "raised kp for faster rise", result.Explanation)
	assert.NotEqual(t, result.ID.String(), "00000000-0000-0000-0000-000000000000")
}

func TestOptimizeClampsAcceptedGains(t *testing.T) {
	stub := &stubAdvisor{suggestion: advisor.Suggestion{
		Kp:          f64(500.0),
		Ki:          f64(-2.0),
		Kd:          f64(50.0),
		Explanation: str("aggressive"),
	}}

	result := optimize.New(stub, time.Second).Optimize(context.Background(), request())

	assert.False(t, result.Fallback)
	assert.InDelta(t, channel.MaxKp, result.Gains.Kp, 1e-9)
	assert.InDelta(t, channel.MinKi, result.Gains.Ki, 1e-9)
	assert.InDelta(t, channel.MaxKd, result.Gains.Kd, 1e-9)
}

func TestOptimizeFallbackOnMissingGain(t *testing.T) {
	stub := &stubAdvisor{suggestion: advisor.Suggestion{
		Kp:          f64(1.5),
		Ki:          f64(0.1),
		Explanation: str("no kd provided"),
	}}

	result := optimize.New(stub, time.Second).Optimize(context.Background(), request())

	assert.True(t, result.Fallback)
	assert.Equal(t, request().Gains, result.Gains, "fallback keeps the current gains unchanged")
	assert.Equal(t, optimize.FallbackExplanation, result.Explanation)
}

func TestOptimizeFallbackOnMissingExplanation(t *testing.T) {
	stub := &stubAdvisor{suggestion: advisor.Suggestion{
		Kp: f64(1.5), Ki: f64(0.1), Kd: f64(0.05),
	}}

	result := optimize.New(stub, time.Second).Optimize(context.Background(), request())

	assert.True(t, result.Fallback)
	assert.Equal(t, optimize.FallbackExplanation, result.Explanation)
}

func TestOptimizeFallbackOnAdvisorError(t *testing.T) {
	stub := &stubAdvisor{err: context.DeadlineExceeded}

	result := optimize.New(stub, time.Second).Optimize(context.Background(), request())

	assert.True(t, result.Fallback)
	assert.Equal(t, request().Gains, result.Gains)
	assert.Equal(t, 1, stub.calls, "a failed advisor call is never retried")
}

func TestOptimizeTimesOut(t *testing.T) {
	stub := &stubAdvisor{
		delay: 500 * time.Millisecond,
		suggestion: advisor.Suggestion{
			Kp: f64(1.5), Ki: f64(0.1), Kd: f64(0.05), Explanation: str("late"),
		},
	}

	start := time.Now()
	result := optimize.New(stub, 50*time.Millisecond).Optimize(context.Background(), request())

	assert.True(t, result.Fallback)
	assert.Less(t, time.Since(start), 400*time.Millisecond, "timeout must bound the call")
}
