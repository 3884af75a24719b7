// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the time surface used by timer-driven components. It covers
// exactly the operations this system performs: reading the current
// time, one-shot waits (After, Sleep), scheduled callbacks (AfterFunc,
// the watchdog primitive), and periodic ticks (heartbeats, telemetry
// polling).
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the fire time once d has
	// elapsed. A non-positive d delivers immediately.
	After(d time.Duration) <-chan time.Time

	// AfterFunc schedules f to run once d has elapsed and returns a
	// Timer whose Stop cancels the pending call. The callback runs on
	// its own goroutine under Real; under Fake it runs synchronously
	// inside Advance.
	AfterFunc(d time.Duration, f func()) *Timer

	// NewTicker returns a Ticker delivering on C every d. Panics if
	// d <= 0, matching time.NewTicker.
	NewTicker(d time.Duration) *Ticker

	// Sleep blocks the calling goroutine for at least d.
	Sleep(d time.Duration)
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stop func() bool
}

// Stop cancels the pending call. It reports whether the call was still
// pending: false means the callback already ran or was stopped before.
func (t *Timer) Stop() bool { return t.stop() }

// Ticker delivers periodic ticks on C. C is buffered with capacity 1;
// if the consumer falls behind, ticks are dropped, not queued.
type Ticker struct {
	C <-chan time.Time

	stop func()
}

// Stop ends tick delivery. C is not closed.
func (t *Ticker) Stop() { t.stop() }
