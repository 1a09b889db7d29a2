// Package baster implements the periodic solenoid baster (spec.md
// §4.3): opens a solenoid for a configured duration at a configured
// cadence. Grounded on raphaelreyna-pi-heater's coil.go OnOff/cancel-
// channel pulsing pattern, adapted to the shared scheduler instead of a
// dedicated goroutine+channel actor.
package baster

import (
	"time"

	"github.com/Caligatio/smokematic/internal/errs"
	"github.com/Caligatio/smokematic/internal/hardware"
	"github.com/Caligatio/smokematic/internal/scheduler"
)

// Baster periodically opens a solenoid valve for a fixed duration.
type Baster struct {
	gpio  hardware.GPIO
	sched *scheduler.Scheduler

	frequencyMin float64
	durationSec  float64
	active       bool

	periodicHandle scheduler.Handle
	offHandle      scheduler.Handle
}

// New constructs a Baster controlling gpio, initially unconfigured
// (frequency 0, solenoid closed).
func New(sched *scheduler.Scheduler, g hardware.GPIO) (*Baster, error) {
	if err := g.ConfigureOutput(); err != nil {
		return nil, &errs.HardwareError{Op: "baster.ConfigureOutput", Err: err}
	}
	if err := g.Write(hardware.Low); err != nil {
		return nil, &errs.HardwareError{Op: "baster.Write", Err: err}
	}
	return &Baster{gpio: g, sched: sched}, nil
}

// Config validates and installs a new frequency/duration and
// (re)arms the periodic baste schedule. Any exit path leaves the
// solenoid closed no later than durationSec after the last baste it
// triggers (spec.md §4.3 invariant).
func (b *Baster) Config(frequencyMin, durationSec float64) error {
	if frequencyMin < 0 {
		return &errs.RangeError{Field: "frequency", Value: frequencyMin, Msg: "must be >= 0"}
	}
	if frequencyMin > 0 && durationSec <= 0 {
		return &errs.RangeError{Field: "duration", Value: durationSec, Msg: "must be > 0 when frequency > 0"}
	}
	if durationSec < 0 {
		return &errs.RangeError{Field: "duration", Value: durationSec, Msg: "must be >= 0"}
	}

	b.sched.Cancel(b.periodicHandle)
	b.sched.Cancel(b.offHandle)
	b.periodicHandle = 0
	b.offHandle = 0
	if err := b.gpio.Write(hardware.Low); err != nil {
		return &errs.HardwareError{Op: "baster.Write", Err: err}
	}
	b.active = false

	b.frequencyMin = frequencyMin
	b.durationSec = durationSec

	if frequencyMin > 0 {
		b.periodicHandle = b.sched.Every(time.Duration(frequencyMin*60*float64(time.Second)), b.baste)
		b.baste()
	}
	return nil
}

// GetSettings returns the configured frequency (minutes) and duration
// (seconds).
func (b *Baster) GetSettings() (frequencyMin, durationSec float64) {
	return b.frequencyMin, b.durationSec
}

// IsActive reports whether the solenoid is currently open.
func (b *Baster) IsActive() bool {
	return b.active
}

// baste cancels any pending baste-off, opens the solenoid, and schedules
// a one-shot close after durationSec.
func (b *Baster) baste() {
	b.sched.Cancel(b.offHandle)
	if err := b.gpio.Write(hardware.High); err != nil {
		return
	}
	b.active = true
	b.offHandle = b.sched.After(time.Duration(b.durationSec*float64(time.Second)), func() {
		b.active = false
		_ = b.gpio.Write(hardware.Low)
	})
}
