// Package analysis derives control-performance metrics from telemetry
// windows. All functions are pure: they never mutate their input and
// are deterministic for a given window.
//
// Metric fields are nil whenever the underlying window has
// insufficient data; no sentinel numerics are used.
package analysis

import (
	"math"

	"github.com/mcp2everything/PID-agent/internal/store"
)

const (
	// SettlingBandPct is the tolerance band for settling time,
	// expressed as a fraction of the target temperature. The 2% band
	// is used consistently across the analyzer.
	SettlingBandPct = 0.02

	// steadyStateWindow is the number of trailing samples averaged for
	// the steady-state error.
	steadyStateWindow = 10

	riseLowFraction  = 0.1
	riseHighFraction = 0.9
)

// Metrics holds the derived step-response characteristics of one
// telemetry window. Fields are nil when undefined.
type Metrics struct {
	RiseTime         *float64 `json:"rise_time"`
	OvershootPct     *float64 `json:"overshoot"`
	SettlingTime     *float64 `json:"settling_time"`
	SteadyStateError *float64 `json:"steady_state_error"`
	TemperatureStd   *float64 `json:"temperature_std"`
}

// Analyze computes the step-response metrics of a window. The target
// temperature is taken from the window's last sample.
func Analyze(window []store.Sample) Metrics {
	if len(window) == 0 {
		return Metrics{}
	}

	target := window[len(window)-1].TargetTemp

	return Metrics{
		RiseTime:         riseTime(window),
		OvershootPct:     overshootPct(window, target),
		SettlingTime:     settlingTime(window, target),
		SteadyStateError: steadyStateError(window, target),
		TemperatureStd:   temperatureStd(window),
	}
}

// riseTime is the elapsed time between the first samples reaching 10%
// and 90% of the window's own temperature range.
func riseTime(window []store.Sample) *float64 {
	if len(window) < 2 {
		return nil
	}

	minTemp, maxTemp := window[0].Temperature, window[0].Temperature
	for _, s := range window[1:] {
		minTemp = math.Min(minTemp, s.Temperature)
		maxTemp = math.Max(maxTemp, s.Temperature)
	}

	tempRange := maxTemp - minTemp
	lowThreshold := minTemp + riseLowFraction*tempRange
	highThreshold := minTemp + riseHighFraction*tempRange

	lowIdx, highIdx := -1, -1
	for i, s := range window {
		if lowIdx < 0 && s.Temperature >= lowThreshold {
			lowIdx = i
		}
		if s.Temperature >= highThreshold {
			highIdx = i
			break
		}
	}
	if lowIdx < 0 || highIdx < 0 {
		return nil
	}

	rise := window[highIdx].Timestamp.Sub(window[lowIdx].Timestamp).Seconds()

	return &rise
}

// overshootPct is the peak excursion above target as a percentage of
// target, 0 when the peak never exceeds it, nil for a zero target.
func overshootPct(window []store.Sample, target float64) *float64 {
	if target == 0 {
		return nil
	}

	maxTemp := window[0].Temperature
	for _, s := range window[1:] {
		maxTemp = math.Max(maxTemp, s.Temperature)
	}

	overshoot := 0.0
	if maxTemp > target {
		overshoot = (maxTemp - target) / target * 100
	}

	return &overshoot
}

// settlingTime is the elapsed time from the window start to the first
// sample after which every subsequent sample stays within the 2% band
// around target. Nil if the band is not sustained through the window
// end.
func settlingTime(window []store.Sample, target float64) *float64 {
	tolerance := math.Abs(target) * SettlingBandPct

	lastOutside := -1
	for i, s := range window {
		if math.Abs(s.Temperature-target) > tolerance {
			lastOutside = i
		}
	}
	if lastOutside == len(window)-1 {
		return nil
	}

	settled := window[lastOutside+1].Timestamp.Sub(window[0].Timestamp).Seconds()

	return &settled
}

// steadyStateError is target minus the mean of the trailing samples.
func steadyStateError(window []store.Sample, target float64) *float64 {
	tail := window
	if len(tail) > steadyStateWindow {
		tail = tail[len(tail)-steadyStateWindow:]
	}

	sum := 0.0
	for _, s := range tail {
		sum += s.Temperature
	}

	sse := target - sum/float64(len(tail))

	return &sse
}

// temperatureStd is the population standard deviation of the window's
// temperatures.
func temperatureStd(window []store.Sample) *float64 {
	mean := 0.0
	for _, s := range window {
		mean += s.Temperature
	}
	mean /= float64(len(window))

	variance := 0.0
	for _, s := range window {
		diff := s.Temperature - mean
		variance += diff * diff
	}
	variance /= float64(len(window))

	std := math.Sqrt(variance)

	return &std
}
