package device

import "github.com/mcp2everything/PID-agent/internal/errors"

const (
	ErrNotConnected   = errors.ErrorCode("device_not_connected")
	ErrOpenFailed     = errors.ErrorCode("device_open_failed")
	ErrReadFailed     = errors.ErrorCode("device_read_failed")
	ErrWriteFailed    = errors.ErrorCode("device_write_failed")
	ErrCloseFailed    = errors.ErrorCode("device_close_failed")
	ErrInvalidChannel = errors.ErrorCode("device_invalid_channel")
)
