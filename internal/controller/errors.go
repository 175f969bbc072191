package controller

import "github.com/mcp2everything/PID-agent/internal/errors"

const (
	ErrInvalidChannel = errors.ErrorCode("controller_invalid_channel")
	ErrNoSnapshot     = errors.ErrorCode("controller_no_snapshot")
	ErrChannelMissing = errors.ErrorCode("controller_channel_missing")
	ErrApplyFailed    = errors.ErrorCode("controller_apply_failed")
)
