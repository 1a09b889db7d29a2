// Package scheduler implements the single cooperative executor the
// control stack runs on: one goroutine owns every armed timer and runs
// callbacks serially, so no two callbacks are ever concurrent. Every
// control component (probe, blower, PID, baster, controller) is handed
// a *Scheduler instead of starting its own goroutine/ticker, which is
// what makes the "no locking needed" concurrency model hold in
// practice rather than just in principle.
package scheduler

import (
	"context"
	"sync"
	"time"
)

// Handle identifies a previously scheduled timer so it can be
// cancelled. The zero Handle is never issued by After/Every.
type Handle uint64

type timer struct {
	handle   Handle
	fn       func()
	fireAt   time.Time
	period   time.Duration // 0 for one-shot
	cancelled bool
}

// Scheduler is a single-actor timer wheel. All exported methods are
// safe to call from any goroutine; the actual callback execution and
// bookkeeping happens only on the goroutine running Run.
type Scheduler struct {
	mu      sync.Mutex
	timers  map[Handle]*timer
	nextID  Handle
	wake    chan struct{}
	nowFunc func() time.Time
}

// New creates a Scheduler. Call Run on a dedicated goroutine to start
// executing callbacks.
func New() *Scheduler {
	return &Scheduler{
		timers:  make(map[Handle]*timer),
		wake:    make(chan struct{}, 1),
		nowFunc: time.Now,
	}
}

func (s *Scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// After arms a one-shot timer that invokes fn after delay, on the
// scheduler's executor goroutine.
func (s *Scheduler) After(delay time.Duration, fn func()) Handle {
	return s.arm(delay, 0, fn)
}

// Every arms a periodic timer that invokes fn every period, starting
// after one period has elapsed, on the scheduler's executor goroutine.
// Cancel and re-arm to change cadence; Every never auto-cancels.
func (s *Scheduler) Every(period time.Duration, fn func()) Handle {
	return s.arm(period, period, fn)
}

func (s *Scheduler) arm(delay, period time.Duration, fn func()) Handle {
	s.mu.Lock()
	s.nextID++
	h := s.nextID
	s.timers[h] = &timer{
		handle: h,
		fn:     fn,
		fireAt: s.nowFunc().Add(delay),
		period: period,
	}
	s.mu.Unlock()
	s.poke()
	return h
}

// Cancel disarms a timer. It is idempotent and safe to call with a
// Handle that already fired or was already cancelled. Cancelling a
// timer whose fire has been queued but not yet run suppresses the
// pending callback.
func (s *Scheduler) Cancel(h Handle) {
	if h == 0 {
		return
	}
	s.mu.Lock()
	if t, ok := s.timers[h]; ok {
		t.cancelled = true
		delete(s.timers, h)
	}
	s.mu.Unlock()
}

// Run executes due callbacks until ctx is cancelled. Callbacks run
// strictly one at a time on this goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		d, due := s.dueOrNextWake()
		if len(due) > 0 {
			for _, t := range due {
				if !t.cancelled {
					t.fn()
				}
			}
			s.rearm(due)
			continue
		}

		tmr := time.NewTimer(d)
		select {
		case <-ctx.Done():
			tmr.Stop()
			return
		case <-tmr.C:
		case <-s.wake:
			if !tmr.Stop() {
				drain(tmr)
			}
		}
	}
}

func drain(t *time.Timer) {
	select {
	case <-t.C:
	default:
	}
}

// dueOrNextWake returns the due timers if any timer has already
// elapsed (duration 0 for immediate re-poll), or the wait duration
// until the next scheduled fire otherwise.
func (s *Scheduler) dueOrNextWake() (time.Duration, []*timer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	var due []*timer
	var next time.Time
	for _, t := range s.timers {
		if t.cancelled {
			continue
		}
		if !t.fireAt.After(now) {
			due = append(due, t)
			continue
		}
		if next.IsZero() || t.fireAt.Before(next) {
			next = t.fireAt
		}
	}
	if len(due) > 0 {
		return 0, due
	}
	if next.IsZero() {
		return time.Hour, nil
	}
	d := next.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, nil
}

func (s *Scheduler) rearm(fired []*timer) {
	if len(fired) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range fired {
		if t.cancelled {
			continue
		}
		if _, ok := s.timers[t.handle]; !ok {
			continue // cancelled and removed during/just after firing
		}
		if t.period == 0 {
			delete(s.timers, t.handle)
			continue
		}
		t.fireAt = t.fireAt.Add(t.period)
		if !t.fireAt.After(s.nowFunc()) {
			t.fireAt = s.nowFunc().Add(t.period)
		}
	}
}
