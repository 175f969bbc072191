package telemetry

import (
	"context"

	"github.com/mcp2everything/PID-agent/internal/protocol"
)

// Collector defines the core domain interface: it persists decoded
// telemetry snapshots as per-channel history rows.
type Collector interface {
	Record(ctx context.Context, snapshot *protocol.SystemSnapshot) error
	Close() error
}

// Clearer is implemented by collectors that can discard recorded
// history.
type Clearer interface {
	ClearChannel(channelID int) error
	ClearAll() error
}
