package store

import "github.com/mcp2everything/PID-agent/internal/errors"

const (
	ErrInvalidChannel = errors.ErrorCode("store_invalid_channel")
	ErrOutOfOrder     = errors.ErrorCode("store_out_of_order_sample")
)
