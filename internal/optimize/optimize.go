// Package optimize orchestrates advisor-driven gain tuning: it builds
// the advisor request from current state and metrics, validates the
// response, and clamps accepted gains. Any advisor failure degrades to
// the unchanged current gains, never to a partial application.
package optimize

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/mcp2everything/PID-agent/internal/advisor"
	"github.com/mcp2everything/PID-agent/internal/channel"
	"github.com/mcp2everything/PID-agent/internal/errors"
	"github.com/mcp2everything/PID-agent/internal/logger"
)

// FallbackExplanation is the documented explanation attached to every
// fallback result.
const FallbackExplanation = "optimization failed, parameters unchanged"

const defaultTimeout = 60 * time.Second

// Result is the outcome of one optimization run. Fallback marks a run
// whose advisor call failed or returned an invalid response; in that
// case Gains equals the unchanged input gains.
type Result struct {
	ID          uuid.UUID     `json:"id"`
	Channel     int           `json:"channel"`
	Gains       channel.Gains `json:"gains"`
	Explanation string        `json:"explanation"`
	Fallback    bool          `json:"fallback"`
}

// Orchestrator runs single-channel optimizations against an advisor.
type Orchestrator struct {
	advisor advisor.Advisor
	timeout time.Duration
}

// New creates an orchestrator. A non-positive timeout selects the
// default advisor timeout.
func New(adv advisor.Advisor, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Orchestrator{
		advisor: adv,
		timeout: timeout,
	}
}

// Optimize performs one advisor round trip for the request. The
// returned gains are either the validated, clamped suggestion or the
// unchanged current gains with the documented fallback explanation.
// The call is bounded by the orchestrator timeout and never retried.
func (o *Orchestrator) Optimize(ctx context.Context, req advisor.Request) Result {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	suggestion, err := o.advisor.Suggest(ctx, req)
	if err != nil {
		logger.Warn().
			Int("channel", req.Channel).
			Err(errors.New().Wrap(ErrAdvisorFailed, err)).
			Msg("Advisor call failed, keeping current gains")
		return o.fallback(req)
	}

	gains, err := validate(suggestion)
	if err != nil {
		logger.Warn().
			Int("channel", req.Channel).
			Err(err).
			Msg("Advisor response invalid, keeping current gains")
		return o.fallback(req)
	}

	return Result{
		ID:          uuid.New(),
		Channel:     req.Channel,
		Gains:       gains.Clamped(),
		Explanation: *suggestion.Explanation,
	}
}

func (o *Orchestrator) fallback(req advisor.Request) Result {
	return Result{
		ID:          uuid.New(),
		Channel:     req.Channel,
		Gains:       req.Gains,
		Explanation: FallbackExplanation,
		Fallback:    true,
	}
}

// validate checks that all three gains are present finite numbers and
// the explanation is present.
func validate(s advisor.Suggestion) (channel.Gains, error) {
	errFactory := errors.New()

	fields := map[string]*float64{"kp": s.Kp, "ki": s.Ki, "kd": s.Kd}
	for name, value := range fields {
		if value == nil {
			return channel.Gains{}, errFactory.WithData(ErrMissingGain, name)
		}
		if math.IsNaN(*value) || math.IsInf(*value, 0) {
			return channel.Gains{}, errFactory.WithData(ErrNonNumericGain, name)
		}
	}

	if s.Explanation == nil {
		return channel.Gains{}, errFactory.New(ErrMissingExplanation)
	}

	return channel.Gains{Kp: *s.Kp, Ki: *s.Ki, Kd: *s.Kd}, nil
}
