// Package clock abstracts time so that every timer a component creates can be
// delivered on a single goroutine and counted in tests.
package clock

import (
	"sync/atomic"
	"time"
)

// Timer is a pending one-shot or repeating callback.
type Timer interface {
	// Stop cancels the timer and reports whether it was still active.
	// A stopped timer never runs its callback again, even if a firing was
	// already queued.
	Stop() bool
}

// Clock creates timers and reports the current time.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
	Every(d time.Duration, f func()) Timer
}

// Poster enqueues fn for execution on the owning goroutine. It returns false
// when the owner has stopped and fn will never run.
type Poster func(fn func()) bool

// Real is a wall-clock Clock whose callbacks are delivered through a Poster.
type Real struct {
	post Poster
}

// New returns a Real clock delivering callbacks through post.
func New(post Poster) *Real {
	return &Real{post: post}
}

// Now implements Clock.Now.
func (c *Real) Now() time.Time { return time.Now() }

// AfterFunc implements Clock.AfterFunc.
func (c *Real) AfterFunc(d time.Duration, f func()) Timer {
	rt := &realTimer{}
	rt.active.Store(true)
	rt.timer = time.AfterFunc(d, func() {
		c.post(func() {
			if rt.active.CompareAndSwap(true, false) {
				f()
			}
		})
	})
	return rt
}

// Every implements Clock.Every.
func (c *Real) Every(d time.Duration, f func()) Timer {
	rt := &realTimer{
		ticker: time.NewTicker(d),
		done:   make(chan struct{}),
	}
	rt.active.Store(true)
	go func() {
		for {
			select {
			case <-rt.ticker.C:
				c.post(func() {
					if rt.active.Load() {
						f()
					}
				})
			case <-rt.done:
				return
			}
		}
	}()
	return rt
}

type realTimer struct {
	active atomic.Bool
	timer  *time.Timer
	ticker *time.Ticker
	done   chan struct{}
}

func (t *realTimer) Stop() bool {
	if !t.active.CompareAndSwap(true, false) {
		return false
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	if t.ticker != nil {
		t.ticker.Stop()
		close(t.done)
	}
	return true
}
