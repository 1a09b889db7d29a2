// Package blower implements the forced-air blower actuator (spec.md
// §4.2): native PWM for ordinary speeds, a software low-speed toggle
// for speeds at or below LowSpeed, and a cold-start kick when coming up
// from a speed below LowSpeed. Directly grounded on the teacher's pkg/hardware/fan.go split
// between hardwarePWMFan and softwarePWMFan, generalized to the spec's
// single get_speed/set_speed contract and driven off the shared
// scheduler instead of its own goroutine/ticker.
package blower

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Caligatio/smokematic/internal/errs"
	"github.com/Caligatio/smokematic/internal/hardware"
	"github.com/Caligatio/smokematic/internal/scheduler"
)

// PWMFrequency is the native PWM drive frequency.
const PWMFrequency = 18000

// LowSpeed is the low-speed threshold for this fan class: speeds at or
// below it use the software toggle instead of native PWM.
const LowSpeed = 15

// kickDuration is how long the cold-start kick drives 100% before the
// target speed is applied.
const kickDuration = 1 * time.Second

// lowSpeedOnPhase accounts for motor spin-up consuming ~1s of the
// on-phase during software low-speed toggling.
const lowSpeedOnPhase = 2 * time.Second

// Blower is the forced-air blower actuator.
type Blower struct {
	pwm   hardware.PWM
	sched *scheduler.Scheduler

	speed        int
	toggleHandle scheduler.Handle
	toggleOn     bool
}

// New constructs a Blower driving pwm, initially stopped (speed 0).
func New(sched *scheduler.Scheduler, pwm hardware.PWM) *Blower {
	return &Blower{pwm: pwm, sched: sched}
}

// GetSpeed returns the last accepted command (0-100), not the
// instantaneous duty cycle during low-speed toggling.
func (b *Blower) GetSpeed() int {
	return b.speed
}

// SetSpeed accepts 0 <= s <= 100. It cancels any pending low-speed
// toggle timer, applies the cold-start kick when coming up from a
// stopped/near-stopped state, and otherwise applies the target speed
// immediately.
func (b *Blower) SetSpeed(s int) error {
	if s < 0 || s > 100 {
		return &errs.RangeError{Field: "speed", Value: s, Msg: "must be between 0 and 100"}
	}

	prev := b.speed
	b.sched.Cancel(b.toggleHandle)
	b.toggleHandle = 0

	b.speed = s

	if prev < LowSpeed && s > 0 {
		if err := b.pwm.Start(100, PWMFrequency); err != nil {
			log.WithError(err).Warn("blower: cold-start kick failed")
		}
		b.toggleHandle = b.sched.After(kickDuration, func() {
			b.applyTarget(s)
		})
		return nil
	}

	return b.applyTarget(s)
}

func (b *Blower) applyTarget(s int) error {
	switch {
	case s > LowSpeed:
		return b.pwm.Start(s, PWMFrequency)
	case s > 0:
		b.armLowSpeedToggle(s)
		return nil
	default:
		return b.pwm.Stop()
	}
}

// armLowSpeedToggle toggles the PWM output between 100% and 0% with
// period T=100/s seconds, on-phase 2s, off-phase T-1s, rescheduling
// itself until a new SetSpeed cancels it (spec.md §4.2).
func (b *Blower) armLowSpeedToggle(s int) {
	period := time.Duration(float64(100)/float64(s)*1000) * time.Millisecond
	offPhase := period - time.Second
	if offPhase < 0 {
		offPhase = 0
	}

	b.toggleOn = true
	if err := b.pwm.Start(100, PWMFrequency); err != nil {
		log.WithError(err).Warn("blower: low-speed toggle on-phase failed")
	}
	b.toggleHandle = b.sched.After(lowSpeedOnPhase, func() {
		b.lowSpeedOff(offPhase, s)
	})
}

func (b *Blower) lowSpeedOff(offPhase time.Duration, s int) {
	b.toggleOn = false
	if err := b.pwm.Stop(); err != nil {
		log.WithError(err).Warn("blower: low-speed toggle off-phase failed")
	}
	b.toggleHandle = b.sched.After(offPhase, func() {
		b.armLowSpeedToggle(s)
	})
}

// Cleanup releases the PWM subsystem's OS-level resources.
func (b *Blower) Cleanup() error {
	b.sched.Cancel(b.toggleHandle)
	return b.pwm.Cleanup()
}
