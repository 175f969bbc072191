package protocol

import "github.com/mcp2everything/PID-agent/internal/errors"

const (
	// Telemetry decode errors
	ErrDecodeFailed = errors.ErrorCode("protocol_decode_failed")
	ErrMissingField = errors.ErrorCode("protocol_missing_field")
	ErrBadTimestamp = errors.ErrorCode("protocol_bad_timestamp")
	ErrEncodeFailed = errors.ErrorCode("protocol_encode_failed")

	// Command parse errors
	ErrBadCommand     = errors.ErrorCode("protocol_bad_command")
	ErrUnknownCommand = errors.ErrorCode("protocol_unknown_command")
)
