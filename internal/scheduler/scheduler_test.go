package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runFor(t *testing.T, s *Scheduler, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	s.Run(ctx)
}

func TestAfterFiresOnce(t *testing.T) {
	s := New()
	var n int32
	s.After(10*time.Millisecond, func() { atomic.AddInt32(&n, 1) })
	runFor(t, s, 100*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&n))
}

func TestEveryFiresRepeatedly(t *testing.T) {
	s := New()
	var n int32
	s.Every(5*time.Millisecond, func() { atomic.AddInt32(&n, 1) })
	runFor(t, s, 55*time.Millisecond)
	got := atomic.LoadInt32(&n)
	require.GreaterOrEqual(t, got, int32(5))
}

func TestCancelSuppressesPendingFire(t *testing.T) {
	s := New()
	var n int32
	h := s.After(10*time.Millisecond, func() { atomic.AddInt32(&n, 1) })
	s.Cancel(h)
	runFor(t, s, 50*time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&n))
}

func TestCancelIsIdempotent(t *testing.T) {
	s := New()
	h := s.After(time.Millisecond, func() {})
	s.Cancel(h)
	assert.NotPanics(t, func() { s.Cancel(h) })
	assert.NotPanics(t, func() { s.Cancel(Handle(0)) })
}

func TestCallbacksNeverOverlap(t *testing.T) {
	s := New()
	var running int32
	var overlapped int32
	work := func() {
		if atomic.AddInt32(&running, 1) > 1 {
			atomic.AddInt32(&overlapped, 1)
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&running, -1)
	}
	s.Every(1*time.Millisecond, work)
	s.Every(1*time.Millisecond, work)
	runFor(t, s, 50*time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&overlapped))
}
