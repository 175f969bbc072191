package channel

import (
	"math/rand"
	"sync"
	"time"

	"github.com/mcp2everything/PID-agent/internal/logger"
)

// Gain bounds enforced on the optimizer path. Manual commands trust
// the caller and pass gains through unclamped.
const (
	MinKp = 0.1
	MaxKp = 100.0
	MinKi = 0.0
	MaxKi = 10.0
	MinKd = 0.0
	MaxKd = 10.0

	MinControlPeriodMS = 10
	MaxControlPeriodMS = 1000
	MinDutyPct         = 0
	MaxDutyPct         = 100
)

// Channel defaults, restored by Reset.
const (
	DefaultTemperature     = 25.0
	DefaultTargetTemp      = 25.0
	DefaultKp              = 1.0
	DefaultKi              = 0.1
	DefaultKd              = 0.05
	DefaultControlPeriodMS = 100
	DefaultMaxDutyPct      = 100
)

// Gains holds the PID coefficients of one channel.
type Gains struct {
	Kp float64
	Ki float64
	Kd float64
}

// Clamped returns the gains clamped to their documented bounds.
func (g Gains) Clamped() Gains {
	return Gains{
		Kp: clampFloat(g.Kp, MinKp, MaxKp),
		Ki: clampFloat(g.Ki, MinKi, MaxKi),
		Kd: clampFloat(g.Kd, MinKd, MaxKd),
	}
}

// InBounds reports whether all three gains are within their bounds.
func (g Gains) InBounds() bool {
	return g == g.Clamped()
}

// Params holds the physical model tuning shared by all channels.
type Params struct {
	Ambient        float64
	TimeConstant   float64 // seconds
	SampleInterval time.Duration
	MaxPower       float64
	CoolingFactor  float64
	NoiseAmplitude float64
	// IntegralLimit caps the accumulator magnitude when non-zero. The
	// default of 0 preserves the stock behavior: the accumulator grows
	// unbounded while the output is saturated (no anti-windup), which
	// is a known control-quality limitation.
	IntegralLimit float64
}

func DefaultParams() Params {
	return Params{
		Ambient:        25.0,
		TimeConstant:   5.0,
		SampleInterval: 100 * time.Millisecond,
		MaxPower:       100.0,
		CoolingFactor:  0.1,
		NoiseAmplitude: 0.1,
	}
}

// State is a read-only snapshot of one channel.
type State struct {
	ID              int
	Temperature     float64
	TargetTemp      float64
	Gains           Gains
	ControlPeriodMS int
	MaxDutyPct      int
	Heating         bool
}

// Channel models one thermal zone: a first-order plant driven by a
// discrete PID controller. The integral accumulator and last error are
// internal state and are never exposed.
type Channel struct {
	mu sync.Mutex

	id     int
	params Params
	rng    *rand.Rand

	current         float64
	target          float64
	gains           Gains
	controlPeriodMS int
	maxDutyPct      int
	heating         bool

	integral    float64
	lastError   float64
	disturbance float64
	lastSample  time.Time
	lastControl time.Time
}

// New creates a channel with the documented defaults. The current time
// seeds the sample and control clocks.
func New(id int, params Params) *Channel {
	now := time.Now()

	return &Channel{
		id:              id,
		params:          params,
		rng:             rand.New(rand.NewSource(now.UnixNano() + int64(id))),
		current:         DefaultTemperature,
		target:          DefaultTargetTemp,
		gains:           Gains{Kp: DefaultKp, Ki: DefaultKi, Kd: DefaultKd},
		controlPeriodMS: DefaultControlPeriodMS,
		maxDutyPct:      DefaultMaxDutyPct,
		lastSample:      now,
		lastControl:     now,
	}
}

func (c *Channel) ID() int {
	return c.id
}

// Step advances the channel by the elapsed time since the previous
// sample and returns the resulting temperature. Calls within the
// minimum sample interval are no-ops. While heating, the PID output is
// only recomputed once per control period; between control ticks the
// previous temperature is held.
func (c *Channel) Step(now time.Time) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	dt := now.Sub(c.lastSample).Seconds()
	if dt < c.params.SampleInterval.Seconds() {
		return c.current
	}

	if !c.heating {
		c.current -= c.params.CoolingFactor * (c.current - c.params.Ambient) * (dt / c.params.TimeConstant)
		c.lastSample = now
		return c.current
	}

	if now.Sub(c.lastControl) < time.Duration(c.controlPeriodMS)*time.Millisecond {
		return c.current
	}

	err := c.target - c.current

	pTerm := c.gains.Kp * err

	c.integral += err * dt
	if c.params.IntegralLimit > 0 {
		c.integral = clampFloat(c.integral, -c.params.IntegralLimit, c.params.IntegralLimit)
	}
	iTerm := c.gains.Ki * c.integral

	dTerm := 0.0
	if dt > 0 {
		dTerm = c.gains.Kd * (err - c.lastError) / dt
	}

	output := clampFloat(pTerm+iTerm+dTerm, 0, c.params.MaxPower*float64(c.maxDutyPct)/100)

	delta := (output/c.params.MaxPower)*(c.target-c.current)*(dt/c.params.TimeConstant) +
		c.disturbance*(dt/c.params.TimeConstant)

	noise := 0.0
	if c.params.NoiseAmplitude > 0 {
		noise = c.rng.NormFloat64() * c.params.NoiseAmplitude
	}

	c.current += delta + noise
	c.disturbance = 0 // one-shot, consumed by this control tick
	c.lastError = err
	c.lastControl = now
	c.lastSample = now

	return c.current
}

// SetGains applies gains and target temperature from a manual command.
// Out-of-bounds gains are passed through unchanged but reported.
func (c *Channel) SetGains(kp, ki, kd, target float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	gains := Gains{Kp: kp, Ki: ki, Kd: kd}
	if !gains.InBounds() {
		logger.Warn().
			Int("channel", c.id).
			Float64("kp", kp).
			Float64("ki", ki).
			Float64("kd", kd).
			Msg("Gains outside recommended bounds")
	}

	c.gains = gains
	c.target = target
}

// SetPeriodDuty applies the control period and duty limit, clamping
// both to their bounds. Returns true if either value was clamped.
func (c *Channel) SetPeriodDuty(periodMS, dutyPct int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	clampedPeriod := clampInt(periodMS, MinControlPeriodMS, MaxControlPeriodMS)
	clampedDuty := clampInt(dutyPct, MinDutyPct, MaxDutyPct)
	clamped := clampedPeriod != periodMS || clampedDuty != dutyPct
	if clamped {
		logger.Warn().
			Int("channel", c.id).
			Int("control_period", periodMS).
			Int("max_duty", dutyPct).
			Msg("Control period or duty out of range, clamped")
	}

	c.controlPeriodMS = clampedPeriod
	c.maxDutyPct = clampedDuty

	return clamped
}

func (c *Channel) SetHeating(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.heating = on
}

// AddDisturbance sets a one-shot perturbation applied on the next
// control tick and then cleared.
func (c *Channel) AddDisturbance(magnitude float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disturbance = magnitude
}

// Reset restores the documented defaults and zeroes the controller
// internal state. The channel itself is never deallocated.
func (c *Channel) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.current = DefaultTemperature
	c.target = DefaultTargetTemp
	c.gains = Gains{Kp: DefaultKp, Ki: DefaultKi, Kd: DefaultKd}
	c.controlPeriodMS = DefaultControlPeriodMS
	c.maxDutyPct = DefaultMaxDutyPct
	c.heating = false
	c.integral = 0
	c.lastError = 0
	c.disturbance = 0
	c.lastSample = now
	c.lastControl = now
}

// State returns a consistent snapshot of the channel.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return State{
		ID:              c.id,
		Temperature:     c.current,
		TargetTemp:      c.target,
		Gains:           c.gains,
		ControlPeriodMS: c.controlPeriodMS,
		MaxDutyPct:      c.maxDutyPct,
		Heating:         c.heating,
	}
}

func clampFloat(value, minValue, maxValue float64) float64 {
	if value < minValue {
		return minValue
	}
	if value > maxValue {
		return maxValue
	}

	return value
}

func clampInt(value, minValue, maxValue int) int {
	if value < minValue {
		return minValue
	}
	if value > maxValue {
		return maxValue
	}

	return value
}
