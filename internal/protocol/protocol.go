// Package protocol implements the device wire protocol: newline-
// terminated colon-delimited ASCII commands outbound, JSON-lines
// telemetry inbound. The formats are bit-exact contracts with the
// device firmware and the simulator.
package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mcp2everything/PID-agent/internal/errors"
)

// wireTimestampLayout is the emitted telemetry timestamp format:
// zoneless ISO 8601 with microseconds, trailing zeros trimmed.
// Sub-second precision keeps consecutive polls distinguishable even
// at fast poll intervals.
const wireTimestampLayout = "2006-01-02T15:04:05.999999"

// Accepted telemetry timestamp layouts. Older firmware emits seconds
// precision without a zone; RFC3339 variants are accepted too.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	wireTimestampLayout,
	"2006-01-02T15:04:05",
}

// PIDParams mirrors the pid_params object of the telemetry schema.
type PIDParams struct {
	Kp            float64 `json:"kp"`
	Ki            float64 `json:"ki"`
	Kd            float64 `json:"kd"`
	TargetTemp    float64 `json:"target_temp"`
	ControlPeriod int     `json:"control_period"`
	MaxDuty       int     `json:"max_duty"`
}

// ChannelStatus is one channel's entry in a telemetry line.
type ChannelStatus struct {
	ID          int       `json:"id"`
	Temperature float64   `json:"temperature"`
	PIDParams   PIDParams `json:"pid_params"`
	Heating     bool      `json:"heating"`
}

// SystemSnapshot is one decoded telemetry line.
type SystemSnapshot struct {
	Timestamp time.Time
	Status    string
	Channels  []ChannelStatus
}

// rawSnapshot uses pointer fields so missing keys are distinguishable
// from zero values.
type rawSnapshot struct {
	Timestamp *string       `json:"timestamp"`
	Status    *string       `json:"status"`
	Channels  *[]rawChannel `json:"channels"`
}

type rawChannel struct {
	ID          *int       `json:"id"`
	Temperature *float64   `json:"temperature"`
	PIDParams   *PIDParams `json:"pid_params"`
	Heating     *bool      `json:"heating"`
}

// Decode parses one telemetry line. Malformed JSON or missing fields
// yield a decode error; callers are expected to keep their last
// known-good snapshot in that case.
func Decode(line []byte) (SystemSnapshot, error) {
	errFactory := errors.New()

	var raw rawSnapshot
	if err := json.Unmarshal(line, &raw); err != nil {
		return SystemSnapshot{}, errFactory.Wrap(ErrDecodeFailed, err)
	}

	if raw.Timestamp == nil {
		return SystemSnapshot{}, errFactory.WithData(ErrMissingField, "timestamp")
	}
	if raw.Status == nil {
		return SystemSnapshot{}, errFactory.WithData(ErrMissingField, "status")
	}
	if raw.Channels == nil {
		return SystemSnapshot{}, errFactory.WithData(ErrMissingField, "channels")
	}

	timestamp, err := parseTimestamp(*raw.Timestamp)
	if err != nil {
		return SystemSnapshot{}, err
	}

	snapshot := SystemSnapshot{
		Timestamp: timestamp,
		Status:    *raw.Status,
		Channels:  make([]ChannelStatus, 0, len(*raw.Channels)),
	}

	for i, ch := range *raw.Channels {
		if ch.ID == nil {
			return SystemSnapshot{}, errFactory.WithData(ErrMissingField, fmt.Sprintf("channels[%d].id", i))
		}
		if ch.Temperature == nil {
			return SystemSnapshot{}, errFactory.WithData(ErrMissingField, fmt.Sprintf("channels[%d].temperature", i))
		}
		if ch.PIDParams == nil {
			return SystemSnapshot{}, errFactory.WithData(ErrMissingField, fmt.Sprintf("channels[%d].pid_params", i))
		}

		heating := false
		if ch.Heating != nil {
			heating = *ch.Heating
		}

		snapshot.Channels = append(snapshot.Channels, ChannelStatus{
			ID:          *ch.ID,
			Temperature: *ch.Temperature,
			PIDParams:   *ch.PIDParams,
			Heating:     heating,
		})
	}

	return snapshot, nil
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}

	return time.Time{}, errors.New().WithData(ErrBadTimestamp, value)
}

// EncodeTelemetry builds one telemetry line (without the trailing
// newline) from a snapshot. This is the simulator's side of the wire.
func EncodeTelemetry(snapshot SystemSnapshot) ([]byte, error) {
	payload := struct {
		Timestamp string          `json:"timestamp"`
		Channels  []ChannelStatus `json:"channels"`
		Status    string          `json:"status"`
	}{
		Timestamp: snapshot.Timestamp.Format(wireTimestampLayout),
		Channels:  snapshot.Channels,
		Status:    snapshot.Status,
	}

	line, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.New().Wrap(ErrEncodeFailed, err)
	}

	return line, nil
}

// EncodeSetGains builds a PID command. It never fails; callers are
// responsible for range-checking values before encoding.
func EncodeSetGains(channelID int, kp, ki, kd, targetTemp float64, controlPeriodMS, maxDutyPct int) string {
	return fmt.Sprintf("PID:%d:%s,%s,%s,%s,%d,%d",
		channelID,
		formatFloat(kp),
		formatFloat(ki),
		formatFloat(kd),
		formatFloat(targetTemp),
		controlPeriodMS,
		maxDutyPct,
	)
}

// EncodeSetHeating builds a HEAT command. It never fails.
func EncodeSetHeating(channelID int, on bool) string {
	state := 0
	if on {
		state = 1
	}

	return fmt.Sprintf("HEAT:%d:%d", channelID, state)
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'g', -1, 64)
}
