package analysis

import "github.com/mcp2everything/PID-agent/internal/store"

// coolingSlopeSamples is the number of post-transition samples the
// cooling rate slope is fitted over.
const coolingSlopeSamples = 10

// timeConstantFraction is the fractional temperature drop marking one
// time constant of a first-order decay.
const timeConstantFraction = 0.632

// CoolingMetrics characterizes the most recent cooling phase of a
// channel series. Fields are nil when undefined.
type CoolingMetrics struct {
	CoolingRate  *float64 `json:"cooling_rate"`
	TimeConstant *float64 `json:"time_constant"`
	FinalTemp    *float64 `json:"final_temp"`
}

// CoolingCurve analyzes the series from the most recent heating
// true-to-false transition onward. With no such transition, or fewer
// than two post-transition samples, all metrics are undefined.
func CoolingCurve(series []store.Sample) CoolingMetrics {
	start := -1
	for i := 1; i < len(series); i++ {
		if series[i-1].Heating && !series[i].Heating {
			start = i
		}
	}
	if start < 0 {
		return CoolingMetrics{}
	}

	cooling := series[start:]
	if len(cooling) < 2 {
		return CoolingMetrics{}
	}

	finalTemp := cooling[len(cooling)-1].Temperature

	return CoolingMetrics{
		CoolingRate:  coolingRate(cooling),
		TimeConstant: timeConstant(cooling, finalTemp),
		FinalTemp:    &finalTemp,
	}
}

// coolingRate is the average temperature slope over the first few
// post-transition samples.
func coolingRate(cooling []store.Sample) *float64 {
	head := cooling
	if len(head) > coolingSlopeSamples {
		head = head[:coolingSlopeSamples]
	}

	elapsed := head[len(head)-1].Timestamp.Sub(head[0].Timestamp).Seconds()
	if elapsed <= 0 {
		return nil
	}

	rate := (head[len(head)-1].Temperature - head[0].Temperature) / elapsed

	return &rate
}

// timeConstant is the elapsed time until the temperature first drops
// to 63.2% of the way from the initial to the final value.
func timeConstant(cooling []store.Sample, finalTemp float64) *float64 {
	initial := cooling[0].Temperature
	threshold := initial - timeConstantFraction*(initial-finalTemp)

	for _, s := range cooling {
		if s.Temperature <= threshold {
			tau := s.Timestamp.Sub(cooling[0].Timestamp).Seconds()
			return &tau
		}
	}

	return nil
}
