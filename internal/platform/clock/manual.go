package clock

import (
	"sync"
	"time"
)

// Manual is a Clock driven explicitly by Advance. Callbacks run synchronously
// on the goroutine calling Advance, in deadline order.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers map[*manualTimer]struct{}
}

// NewManual returns a Manual clock starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start, timers: make(map[*manualTimer]struct{})}
}

type manualTimer struct {
	m     *Manual
	at    time.Time
	every time.Duration
	seq   uint64
	f     func()
}

func (t *manualTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if _, ok := t.m.timers[t]; !ok {
		return false
	}
	delete(t.m.timers, t)
	return true
}

// Now implements Clock.Now.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AfterFunc implements Clock.AfterFunc.
func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	return m.add(d, 0, f)
}

// Every implements Clock.Every.
func (m *Manual) Every(d time.Duration, f func()) Timer {
	return m.add(d, d, f)
}

func (m *Manual) add(d, every time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{m: m, at: m.now.Add(d), every: every, seq: m.seq, f: f}
	m.timers[t] = struct{}{}
	return t
}

// Advance moves the clock forward by d, firing every timer that falls due.
// Timers created by callbacks fire in the same call if they fall due.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next := m.nextLocked(target)
		if next == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = next.at
		if next.every > 0 {
			next.at = next.at.Add(next.every)
		} else {
			delete(m.timers, next)
		}
		f := next.f
		m.mu.Unlock()
		f()
	}
}

func (m *Manual) nextLocked(limit time.Time) *manualTimer {
	var next *manualTimer
	for t := range m.timers {
		if t.at.After(limit) {
			continue
		}
		if next == nil || t.at.Before(next.at) || (t.at.Equal(next.at) && t.seq < next.seq) {
			next = t
		}
	}
	return next
}

// Active returns the number of timers that have not fired or been stopped.
// Repeating timers count until stopped.
func (m *Manual) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}
