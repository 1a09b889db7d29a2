// Package pid implements the closed-loop blower controller (spec.md
// §4.4): a PID loop with an asymmetric hot-bias integrator leak and
// directional anti-windup, ticking on the shared scheduler. Hand-written
// to the spec's exact arithmetic rather than adapted from an off-the-
// shelf PID library, since none of the example repos' PID
// implementations (felixge/pidctrl, konradreiche/pid) implement this
// hot-bias-leak/anti-windup combination; the tick-as-scheduled-callback
// shape is grounded on the teacher's periodic actor pattern.
package pid

import (
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Caligatio/smokematic/internal/errs"
	"github.com/Caligatio/smokematic/internal/scheduler"
)

// Interval is the PID tick cadence.
const Interval = 60 * time.Second

// Blower is the actuator a PID drives; satisfied by *blower.Blower.
type Blower interface {
	GetSpeed() int
	SetSpeed(int) error
}

// Probe is the temperature source a PID reads from; satisfied by
// *probe.Probe.
type Probe interface {
	GetTemp() (float64, error)
}

// PID is a closed-loop controller driving a Blower off a Probe reading.
type PID struct {
	probe  Probe
	blower Blower
	sched  *scheduler.Scheduler

	kp, ki, kd float64
	haveCoeffs bool

	setpoint   *float64
	ci         float64
	lastError  *float64
	enabled    bool
	tickHandle scheduler.Handle
}

// New constructs a disabled PID driving blower off probe's readings.
func New(sched *scheduler.Scheduler, probe Probe, blower Blower) *PID {
	return &PID{probe: probe, blower: blower, sched: sched}
}

// SetCoefficients stores the P/I/D gains.
func (p *PID) SetCoefficients(kp, ki, kd float64) {
	p.kp, p.ki, p.kd = kp, ki, kd
	p.haveCoeffs = true
}

// GetCoefficients returns the stored P/I/D gains.
func (p *PID) GetCoefficients() (kp, ki, kd float64) {
	return p.kp, p.ki, p.kd
}

// SetSetpoint requires T > 32 (freezing guard), resets the integrator
// and last-error memory, and enables the loop.
func (p *PID) SetSetpoint(t float64) error {
	if t <= 32 {
		return &errs.RangeError{Field: "setpoint", Value: t, Msg: "must be > 32"}
	}
	p.setpoint = &t
	p.ci = 0
	p.lastError = nil
	return p.Enable()
}

// GetSetpoint returns the current setpoint, if any.
func (p *PID) GetSetpoint() (float64, bool) {
	if p.setpoint == nil {
		return 0, false
	}
	return *p.setpoint, true
}

// Enable arms the periodic tick. Requires non-zero coefficients and a
// setpoint to already be set. Idempotent.
func (p *PID) Enable() error {
	if !p.haveCoeffs || p.kp == 0 || p.ki == 0 || p.kd == 0 {
		return &errs.ConfigError{Msg: "pid: coefficients must be set and non-zero before enable"}
	}
	if p.setpoint == nil {
		return &errs.ConfigError{Msg: "pid: setpoint must be set before enable"}
	}
	if p.enabled {
		return nil
	}
	p.enabled = true
	p.tickHandle = p.sched.Every(Interval, p.tick)
	return nil
}

// Disable cancels the tick. Idempotent.
func (p *PID) Disable() {
	if !p.enabled {
		return
	}
	p.enabled = false
	p.sched.Cancel(p.tickHandle)
	p.tickHandle = 0
}

// SetManualSpeed disables the loop and directly commands the blower.
func (p *PID) SetManualSpeed(s int) error {
	p.Disable()
	return p.blower.SetSpeed(s)
}

// IsEnabled reports whether the periodic tick is currently armed.
func (p *PID) IsEnabled() bool {
	return p.enabled
}

// tick runs the spec.md §4.4 control algorithm once.
func (p *PID) tick() {
	if p.setpoint == nil {
		return
	}
	t, err := p.probe.GetTemp()
	if err != nil {
		log.WithError(err).Warn("pid: probe read failed, skipping tick")
		return
	}
	u := p.blower.GetSpeed()
	setpoint := *p.setpoint

	e := setpoint - t

	// hot-bias leak: aggressively drain the integrator while overshooting.
	if t >= setpoint {
		p.ci *= 0.10
	}

	prop := p.kp * e

	// directional anti-windup: only accumulate while the actuator isn't
	// already saturated in the direction the error is pushing it.
	if (e > 0 && u < 100) || (e < 0 && u > 0) {
		p.ci += e * Interval.Seconds()
	}
	integral := p.ki * p.ci

	var deriv float64
	if p.lastError != nil {
		deriv = p.kd * (e - *p.lastError) / Interval.Seconds()
	}

	raw := prop + integral + deriv
	newU := clampTruncate(raw, 0, 100)

	if err := p.blower.SetSpeed(newU); err != nil {
		log.WithError(err).Warn("pid: set_speed failed, blower unchanged")
	}
	p.lastError = &e
}

// clampTruncate truncates v toward zero (spec.md §4.4 step 8) and
// clamps to [lo, hi].
func clampTruncate(v float64, lo, hi int) int {
	truncated := int(math.Trunc(v))
	if truncated < lo {
		return lo
	}
	if truncated > hi {
		return hi
	}
	return truncated
}
