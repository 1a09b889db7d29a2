// Package probe implements the temperature acquisition pipeline
// (spec.md §4.1): raw ADC sample -> Steinhart-Hart equation -> EMA
// smoothed °F reading. Grounded on the teacher's fan.go temperature
// cache/read pattern (cached reads driven off a periodic ticker),
// generalized to the thermistor math the spec describes and driven off
// the shared scheduler instead of its own ticker.
package probe

import (
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Caligatio/smokematic/internal/errs"
	"github.com/Caligatio/smokematic/internal/hardware"
	"github.com/Caligatio/smokematic/internal/scheduler"
)

// SamplePeriod is the cadence at which a Probe reads its ADC channel.
const SamplePeriod = 3 * time.Second

// HighResist is the pull-up resistor value, in ohms, used to convert a
// normalized ADC reading into a thermistor resistance (spec.md §4.1
// step 2).
const HighResist = 10000.0

// emaWindowSeconds is the nominal EMA effective window; alpha is
// derived from it and SamplePeriod (spec.md §4.1 step 5).
const emaWindowSeconds = 60.0

// Probe continuously samples one ADC channel and exposes an
// exponentially smoothed °F reading.
type Probe struct {
	adc     hardware.ADC
	channel string
	a, b, c float64

	sched *scheduler.Scheduler
	alpha float64

	mu      sync.RWMutex
	lastRaw *float64
	ema     *float64
	handle  scheduler.Handle
}

// New constructs a Probe and arms periodic sampling at SamplePeriod. It
// blocks for one immediate sample, as spec.md §4.1 recommends, so
// GetTemp never needs to fail with NotReadyError for a caller that
// waits for construction to return.
func New(sched *scheduler.Scheduler, adc hardware.ADC, channel string, shA, shB, shC float64) *Probe {
	p := &Probe{
		adc:     adc,
		channel: channel,
		a:       shA,
		b:       shB,
		c:       shC,
		sched:   sched,
		alpha:   2.0 / (emaWindowSeconds/SamplePeriod.Seconds() + 1.0),
	}
	p.sample()
	p.handle = sched.Every(SamplePeriod, p.sample)
	return p
}

// GetTemp returns the current EMA temperature in °F. It fails with
// NotReadyError only if called before the first sample completed.
func (p *Probe) GetTemp() (float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.ema == nil {
		return 0, &errs.NotReadyError{Component: "probe:" + p.channel}
	}
	return *p.ema, nil
}

// Stop cancels periodic sampling.
func (p *Probe) Stop() {
	p.sched.Cancel(p.handle)
}

func (p *Probe) sample() {
	v, err := p.adc.Read(p.channel)
	if err != nil {
		log.WithError(err).WithField("channel", p.channel).Warn("probe: ADC read failed, skipping sample")
		return
	}
	if v >= 1 || v <= 0 {
		log.WithField("channel", p.channel).WithField("value", v).Warn("probe: ADC reading out of range, skipping sample")
		return
	}

	r := HighResist * v / (1 - v)
	lnR := math.Log(r)
	invTK := p.a + p.b*lnR + p.c*lnR*lnR*lnR
	tK := 1 / invTK
	tF := (9.0/5.0)*(tK-273.15) + 32

	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastRaw = &v
	if p.ema == nil {
		ema := tF
		p.ema = &ema
	} else {
		ema := *p.ema + p.alpha*(tF-*p.ema)
		p.ema = &ema
	}
}
