package blower

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Caligatio/smokematic/internal/errs"
	"github.com/Caligatio/smokematic/internal/hardware"
	"github.com/Caligatio/smokematic/internal/scheduler"
)

func runFor(sched *scheduler.Scheduler, d time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	sched.Run(ctx)
}

func TestSetSpeedRejectsOutOfRange(t *testing.T) {
	sched := scheduler.New()
	pwm := hardware.NewFakePWM()
	b := New(sched, pwm)

	err := b.SetSpeed(-1)
	require.Error(t, err)
	assert.IsType(t, &errs.RangeError{}, err)

	err = b.SetSpeed(101)
	require.Error(t, err)
	assert.Equal(t, 0, b.GetSpeed())
}

func TestGetSpeedReflectsLastAcceptedCommand(t *testing.T) {
	sched := scheduler.New()
	pwm := hardware.NewFakePWM()
	b := New(sched, pwm)

	require.NoError(t, b.SetSpeed(50))
	assert.Equal(t, 50, b.GetSpeed())

	require.NoError(t, b.SetSpeed(50))
	assert.Equal(t, 50, b.GetSpeed())
}

func TestColdStartKickThenTargetSpeed(t *testing.T) {
	sched := scheduler.New()
	pwm := hardware.NewFakePWM()
	b := New(sched, pwm)

	require.NoError(t, b.SetSpeed(30))
	assert.Equal(t, 30, b.GetSpeed(), "get_speed returns commanded value immediately")
	assert.Equal(t, 100, pwm.CurrentDuty(), "kick drives 100% immediately")

	runFor(sched, 1500*time.Millisecond)
	assert.Equal(t, 30, pwm.CurrentDuty(), "target speed applied after the kick")
}

func TestNoKickWhenAlreadyRunning(t *testing.T) {
	sched := scheduler.New()
	pwm := hardware.NewFakePWM()
	b := New(sched, pwm)

	require.NoError(t, b.SetSpeed(50))
	runFor(sched, 10*time.Millisecond)
	require.NoError(t, b.SetSpeed(60))

	assert.Equal(t, 60, pwm.CurrentDuty(), "no kick: target applied directly")
}

func TestLowSpeedSoftwareToggle(t *testing.T) {
	sched := scheduler.New()
	pwm := hardware.NewFakePWM()
	b := New(sched, pwm)

	// come up from a stop at a low speed: triggers the kick first
	require.NoError(t, b.SetSpeed(10))
	runFor(sched, 1200*time.Millisecond)
	assert.Equal(t, 100, pwm.CurrentDuty(), "low-speed on-phase drives 100%")

	runFor(sched, 2*time.Second)
	assert.Equal(t, 0, pwm.CurrentDuty(), "low-speed off-phase drives 0%")
}

func TestZeroSpeedStopsPWM(t *testing.T) {
	sched := scheduler.New()
	pwm := hardware.NewFakePWM()
	b := New(sched, pwm)

	require.NoError(t, b.SetSpeed(50))
	runFor(sched, 5*time.Millisecond)
	require.NoError(t, b.SetSpeed(0))
	assert.True(t, pwm.Stopped)
	assert.Equal(t, 0, b.GetSpeed())
}

func TestSetSpeedCancelsPendingToggle(t *testing.T) {
	sched := scheduler.New()
	pwm := hardware.NewFakePWM()
	b := New(sched, pwm)

	require.NoError(t, b.SetSpeed(10))
	runFor(sched, 1200*time.Millisecond) // now in low-speed on-phase, toggle armed

	require.NoError(t, b.SetSpeed(80))
	runFor(sched, 3*time.Second)
	assert.Equal(t, 80, pwm.CurrentDuty(), "re-arming cancels the stale low-speed toggle")
}
