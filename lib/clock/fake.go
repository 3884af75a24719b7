// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a deterministic Clock frozen at initial. Time moves only
// through Advance, which fires every pending wait whose deadline falls
// within the new time, in deadline order.
//
// FakeClock is safe for concurrent use.
func Fake(initial time.Time) *FakeClock {
	c := &FakeClock{now: initial}
	c.registered = sync.NewCond(&c.mu)
	return c
}

// FakeClock implements Clock with manually controlled time.
//
// AfterFunc callbacks run synchronously inside Advance, so a callback
// must not itself call Advance or Sleep on the same clock; that
// deadlocks. The recording watchdog and everything else in this system
// keeps such callbacks lock-scoped and short, which is also the
// production requirement.
type FakeClock struct {
	mu         sync.Mutex
	now        time.Time
	pending    []*fakeWait
	registered *sync.Cond
}

// fakeWait is one pending After, AfterFunc, Sleep, or Ticker deadline.
type fakeWait struct {
	deadline time.Time
	period   time.Duration  // non-zero for tickers: rescheduled after firing
	ch       chan time.Time // delivery channel; nil for AfterFunc waits
	fn       func()         // callback; nil for channel waits
	stopped  bool
	fired    bool
}

var _ Clock = (*FakeClock)(nil)

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After registers a one-shot wait. A non-positive d delivers the
// current time immediately without registering anything.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.add(&fakeWait{deadline: c.now.Add(d), ch: ch})
	return ch
}

// AfterFunc registers a one-shot callback. A non-positive d runs f
// synchronously before returning.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	c.mu.Lock()
	if d <= 0 {
		c.mu.Unlock()
		f()
		return &Timer{stop: func() bool { return false }}
	}

	w := &fakeWait{deadline: c.now.Add(d), fn: f}
	c.add(w)
	c.mu.Unlock()

	return &Timer{stop: func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if w.stopped || w.fired {
			return false
		}
		w.stopped = true
		return true
	}}
}

// NewTicker registers a periodic wait. Panics if d <= 0.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive ticker interval")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	w := &fakeWait{deadline: c.now.Add(d), period: d, ch: ch}
	c.add(w)

	return &Ticker{C: ch, stop: func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		w.stopped = true
	}}
}

// Sleep blocks until the clock advances past the deadline.
func (c *FakeClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	<-c.After(d)
}

// add appends a wait and wakes WaitForTimers callers. Caller holds mu.
func (c *FakeClock) add(w *fakeWait) {
	c.pending = append(c.pending, w)
	c.registered.Broadcast()
}

// Advance moves the clock forward by d, firing expired waits in
// deadline order. Channel deliveries are non-blocking (a full buffer
// drops the tick, matching time.Ticker); callbacks run synchronously
// in the calling goroutine. Tickers whose period fits multiple times
// into d fire once per elapsed period.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now
	c.mu.Unlock()

	// Loop because firing a callback can register new waits that are
	// already expired at the target time.
	for {
		due := c.takeDue(target)
		if len(due) == 0 {
			return
		}
		sort.Slice(due, func(i, j int) bool {
			return due[i].deadline.Before(due[j].deadline)
		})
		for _, w := range due {
			switch {
			case w.fn != nil:
				w.fn()
			case w.ch != nil:
				select {
				case w.ch <- target:
				default:
				}
			}
		}
	}
}

// takeDue removes waits whose deadline has passed, reschedules tickers,
// and drops stopped waits.
func (c *FakeClock) takeDue(target time.Time) []*fakeWait {
	c.mu.Lock()
	defer c.mu.Unlock()

	var due, keep []*fakeWait
	for _, w := range c.pending {
		switch {
		case w.stopped:
			// dropped
		case !w.deadline.After(target):
			due = append(due, w)
		default:
			keep = append(keep, w)
		}
	}
	for _, w := range due {
		if w.period > 0 {
			w.deadline = w.deadline.Add(w.period)
			keep = append(keep, w)
		} else {
			w.fired = true
		}
	}
	c.pending = keep
	return due
}

// WaitForTimers blocks until at least n waits are registered and
// un-stopped. Call it between starting the code under test and
// Advance, so the deadline exists before time moves.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.activeLocked() < n {
		c.registered.Wait()
	}
}

// PendingCount returns the number of registered, un-stopped waits.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeLocked()
}

func (c *FakeClock) activeLocked() int {
	n := 0
	for _, w := range c.pending {
		if !w.stopped {
			n++
		}
	}
	return n
}
