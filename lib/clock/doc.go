// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction so that
// timer-driven logic can be tested deterministically.
//
// The recording handshake watchdog, channel heartbeats, and the
// simulated-delay queue all fire on wall-clock deadlines. Production
// code takes a Clock (usually as a struct field) instead of calling
// the time package directly; Real() supplies standard behavior, and
// tests supply Fake() and move time explicitly with Advance.
//
// # Wiring pattern
//
//	type RecordingSession struct {
//	    clock clock.Clock
//	    // ...
//	}
//
// In production:
//
//	session := NewRecordingSession(clock.Real(), ...)
//
// In tests:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	session := NewRecordingSession(c, ...)
//	session.Start()
//	c.WaitForTimers(1)           // watchdog registered
//	c.Advance(5 * time.Second)   // watchdog fires, no sleeping
//
// WaitForTimers removes the race between a goroutine registering a
// timer and the test advancing past its deadline; without it a test
// can Advance before the code under test has armed anything.
package clock
