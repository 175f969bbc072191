package optimize

import "github.com/mcp2everything/PID-agent/internal/errors"

const (
	ErrAdvisorFailed      = errors.ErrorCode("optimize_advisor_failed")
	ErrMissingGain        = errors.ErrorCode("optimize_missing_gain")
	ErrNonNumericGain     = errors.ErrorCode("optimize_non_numeric_gain")
	ErrMissingExplanation = errors.ErrorCode("optimize_missing_explanation")
)
