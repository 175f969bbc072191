package advisor

import (
	"context"
	"fmt"
	"strings"
)

// Rule-based tuning thresholds.
const (
	highOvershootPct   = 10.0
	largeSteadyError   = 1.0
	oscillationStdDev  = 1.0
	gainAdjustFraction = 0.2
)

// RuleAdvisor is a local heuristic advisor used when no LLM endpoint
// is configured. It nudges the gains based on the classic symptoms:
// overshoot lowers kp and raises kd, steady-state error raises ki,
// oscillation lowers kp.
type RuleAdvisor struct{}

func NewRule() *RuleAdvisor {
	return &RuleAdvisor{}
}

func (*RuleAdvisor) Suggest(_ context.Context, req Request) (Suggestion, error) {
	gains := req.Gains
	var reasons []string

	if req.Metrics.OvershootPct != nil && *req.Metrics.OvershootPct > highOvershootPct {
		gains.Kp *= 1 - gainAdjustFraction
		gains.Kd *= 1 + gainAdjustFraction
		reasons = append(reasons, fmt.Sprintf("overshoot %.1f%% above %.0f%%: reduced kp, increased kd",
			*req.Metrics.OvershootPct, highOvershootPct))
	}

	if req.Metrics.SteadyStateError != nil && *req.Metrics.SteadyStateError > largeSteadyError {
		gains.Ki *= 1 + gainAdjustFraction
		reasons = append(reasons, fmt.Sprintf("steady-state error %.2f above %.1f: increased ki",
			*req.Metrics.SteadyStateError, largeSteadyError))
	}

	if req.Metrics.TemperatureStd != nil && *req.Metrics.TemperatureStd > oscillationStdDev &&
		req.Metrics.SettlingTime == nil {
		gains.Kp *= 1 - gainAdjustFraction
		reasons = append(reasons, fmt.Sprintf("temperature never settles (std %.2f): reduced kp",
			*req.Metrics.TemperatureStd))
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "response within tolerances, parameters kept")
	}

	clamped := gains.Clamped()
	explanation := strings.Join(reasons, "; ")

	return Suggestion{
		Kp:          &clamped.Kp,
		Ki:          &clamped.Ki,
		Kd:          &clamped.Kd,
		Explanation: &explanation,
	}, nil
}

var _ Advisor = (*RuleAdvisor)(nil)
