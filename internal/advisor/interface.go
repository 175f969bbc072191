// Package advisor defines the gain-tuning advisor contract. The
// advisor itself is external; this package only fixes the request and
// response shapes and ships two clients: an HTTP client for an
// OpenAI-compatible LLM endpoint and a local rule-based fallback.
package advisor

import (
	"context"

	"github.com/mcp2everything/PID-agent/internal/analysis"
	"github.com/mcp2everything/PID-agent/internal/channel"
)

// Request carries one channel's current state and derived metrics.
type Request struct {
	Channel     int
	Gains       channel.Gains
	TargetTemp  float64
	CurrentTemp float64
	Metrics     analysis.Metrics
}

// Suggestion is the advisor's raw response. Pointer fields make
// missing values distinguishable from zeros; the orchestrator
// validates presence and clamps ranges.
type Suggestion struct {
	Kp          *float64 `json:"kp"`
	Ki          *float64 `json:"ki"`
	Kd          *float64 `json:"kd"`
	Explanation *string  `json:"explanation"`
}

// Advisor produces a gain suggestion for one channel. A failing call
// or an unusable response is reported as an error; the caller decides
// the fallback.
type Advisor interface {
	Suggest(ctx context.Context, req Request) (Suggestion, error)
}
