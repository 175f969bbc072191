package advisor

import "github.com/mcp2everything/PID-agent/internal/errors"

const (
	ErrInvalidConfig   = errors.ErrorCode("advisor_invalid_config")
	ErrRequestFailed   = errors.ErrorCode("advisor_request_failed")
	ErrBadStatus       = errors.ErrorCode("advisor_bad_status")
	ErrEmptyResponse   = errors.ErrorCode("advisor_empty_response")
	ErrMalformedAnswer = errors.ErrorCode("advisor_malformed_answer")
)
