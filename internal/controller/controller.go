// Package controller implements the top-level owner (spec.md §4.5): a
// PID, the pit and food probes, the active cook profile, the manual
// override state machine, and the per-minute stats ring. Grounded on
// the teacher's cmd/main.go Application struct (single owner wiring
// together the board's subsystems, driving them off scheduled
// callbacks rather than ad-hoc goroutines).
package controller

import (
	"sort"
	"time"

	"github.com/Caligatio/smokematic/internal/errs"
	"github.com/Caligatio/smokematic/internal/scheduler"
)

// StatsPeriod is the cadence at which profile reapplication and stat
// recording run.
const StatsPeriod = 60 * time.Second

// State is the controller's operating mode.
type State int

const (
	Uninitialized State = iota
	ProfileRunning
	Override
)

func (s State) String() string {
	switch s {
	case ProfileRunning:
		return "PROFILE_RUNNING"
	case Override:
		return "OVERRIDE"
	default:
		return "UNINITIALIZED"
	}
}

// PID is the subset of *pid.PID the Controller drives.
type PID interface {
	SetCoefficients(kp, ki, kd float64)
	GetCoefficients() (kp, ki, kd float64)
	SetSetpoint(t float64) error
	GetSetpoint() (float64, bool)
}

// Probe is the subset of *probe.Probe the Controller reads.
type Probe interface {
	GetTemp() (float64, error)
}

// Blower is the subset of *blower.Blower the Controller reads for
// stats recording.
type Blower interface {
	GetSpeed() int
}

// StatPoint is one minute of recorded cook history.
type StatPoint struct {
	PitTemp     float64   `json:"pit_temp"`
	Setpoint    float64   `json:"setpoint"`
	BlowerSpeed int       `json:"blower_speed"`
	FoodTemps   []float64 `json:"food_temps"`
}

// nowFunc is overridable in tests; production uses time.Now.
var nowFunc = time.Now

// Controller owns the PID, probes, cook profile, and stats history.
type Controller struct {
	pid        PID
	blower     Blower
	pitProbe   Probe
	foodProbes []Probe
	sched      *scheduler.Scheduler

	profile      map[int]float64
	profileStart time.Time
	state        State

	stats map[int]StatPoint

	profileHandle scheduler.Handle
	statsHandle   scheduler.Handle

	foodAlarms []float64
}

// New constructs a Controller in the UNINITIALIZED state. food_alarms
// start unset (zero value per food probe).
func New(sched *scheduler.Scheduler, p PID, b Blower, pitProbe Probe, foodProbes []Probe) *Controller {
	return &Controller{
		sched:      sched,
		pid:        p,
		blower:     b,
		pitProbe:   pitProbe,
		foodProbes: foodProbes,
		stats:      make(map[int]StatPoint),
		foodAlarms: make([]float64, len(foodProbes)),
	}
}

// GetFoodAlarms returns the per-food-probe alarm thresholds.
func (c *Controller) GetFoodAlarms() []float64 {
	return c.foodAlarms
}

// SetFoodAlarms replaces the alarm thresholds. Length must equal the
// number of food probes (spec.md §6 /alarms).
func (c *Controller) SetFoodAlarms(alarms []float64) error {
	if len(alarms) != len(c.foodProbes) {
		return &errs.RangeError{Field: "food_alarms", Value: len(alarms), Msg: "length must equal number of food probes"}
	}
	c.foodAlarms = alarms
	return nil
}

// FoodAlarmStates reports, per food probe, whether its current
// temperature has reached its alarm threshold (0 means no alarm set).
func (c *Controller) FoodAlarmStates() []bool {
	states := make([]bool, len(c.foodProbes))
	for i, p := range c.foodProbes {
		if c.foodAlarms[i] == 0 {
			continue
		}
		if t, err := p.GetTemp(); err == nil && t >= c.foodAlarms[i] {
			states[i] = true
		}
	}
	return states
}

// SetPIDCoefficients forwards to the PID.
func (c *Controller) SetPIDCoefficients(kp, ki, kd float64) {
	c.pid.SetCoefficients(kp, ki, kd)
}

// GetPIDCoefficients forwards to the PID.
func (c *Controller) GetPIDCoefficients() (kp, ki, kd float64) {
	return c.pid.GetCoefficients()
}

// GetState returns the current operating mode.
func (c *Controller) GetState() State {
	return c.state
}

// GetSetpoint forwards to the PID.
func (c *Controller) GetSetpoint() (float64, bool) {
	return c.pid.GetSetpoint()
}

// SetProfile installs a new cook profile, keyed by integer minute
// offset. Key 0 is required. Resets stats history and enters
// PROFILE_RUNNING.
func (c *Controller) SetProfile(profile map[int]float64) error {
	if _, ok := profile[0]; !ok {
		return &errs.ConfigError{Msg: "profile must contain key 0"}
	}

	c.sched.Cancel(c.profileHandle)
	c.sched.Cancel(c.statsHandle)

	c.profile = profile
	c.profileStart = nowFunc()
	c.stats = make(map[int]StatPoint)

	c.applySetpointFromProfile()

	c.profileHandle = c.sched.Every(StatsPeriod, c.applySetpointFromProfile)
	c.statsHandle = c.sched.Every(StatsPeriod, c.recordStat)

	c.recordStatAt(0)
	c.state = ProfileRunning
	return nil
}

// OverrideTemp cancels profile reapplication (stats recording keeps
// running), forces the PID setpoint, and enters OVERRIDE.
func (c *Controller) OverrideTemp(t float64) error {
	c.sched.Cancel(c.profileHandle)
	c.profileHandle = 0
	if err := c.pid.SetSetpoint(t); err != nil {
		return err
	}
	c.state = Override
	return nil
}

// ResumeProfile cancels any leftover profile-tick, reapplies the
// profile's current setpoint, re-arms the profile tick, and returns to
// PROFILE_RUNNING.
func (c *Controller) ResumeProfile() {
	c.sched.Cancel(c.profileHandle)
	c.applySetpointFromProfile()
	c.profileHandle = c.sched.Every(StatsPeriod, c.applySetpointFromProfile)
	c.state = ProfileRunning
}

// GetStatHistory returns stats history filtered to minutes divisible by
// sampleRateMin.
func (c *Controller) GetStatHistory(sampleRateMin int) map[int]StatPoint {
	if sampleRateMin <= 0 {
		sampleRateMin = 1
	}
	out := make(map[int]StatPoint)
	for minute, sp := range c.stats {
		if minute%sampleRateMin == 0 {
			out[minute] = sp
		}
	}
	return out
}

// applySetpointFromProfile implements spec.md §4.5's
// setpoint-from-profile algorithm.
func (c *Controller) applySetpointFromProfile() {
	if c.profile == nil {
		return
	}
	tOffset := nowFunc().Sub(c.profileStart).Minutes()

	keys := make([]int, 0, len(c.profile))
	for k := range c.profile {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	chosen := keys[0]
	for _, k := range keys {
		if float64(k) <= tOffset {
			chosen = k
		} else {
			break
		}
	}

	target := c.profile[chosen]
	if current, ok := c.pid.GetSetpoint(); !ok || current != target {
		_ = c.pid.SetSetpoint(target)
	}
}

// recordStat assigns the next monotone minute and records a StatPoint.
func (c *Controller) recordStat() {
	minute := 0
	if len(c.stats) > 0 {
		max := 0
		for k := range c.stats {
			if k > max {
				max = k
			}
		}
		minute = max + 1
	}
	c.recordStatAt(minute)
}

func (c *Controller) recordStatAt(minute int) {
	pitTemp, _ := c.pitProbe.GetTemp()
	setpoint, _ := c.pid.GetSetpoint()
	foodTemps := make([]float64, len(c.foodProbes))
	for i, p := range c.foodProbes {
		temp, _ := p.GetTemp()
		foodTemps[i] = temp
	}
	c.stats[minute] = StatPoint{
		PitTemp:     pitTemp,
		Setpoint:    setpoint,
		BlowerSpeed: c.blower.GetSpeed(),
		FoodTemps:   foodTemps,
	}
}
