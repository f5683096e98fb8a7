// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// Everything in this codebase that ticks or times out — presence
// heartbeats, peer pruning, vote deadlines, lobby listing expiry — goes
// through a Clock instead of the time package. In production, Real()
// delegates to the standard library. In tests, Fake() provides a
// deterministic clock that advances only when Advance is called, so a
// test can run "25 seconds" of protocol in microseconds and never flake
// on scheduler timing.
//
// # Wiring Pattern
//
// Add a Clock field to structs that use time:
//
//	type Session struct {
//	    clock clock.Clock
//	    // ...
//	}
//
// In production:
//
//	s := &Session{clock: clock.Real()}
//
// In tests:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	s := &Session{clock: c}
//	// ... start the session loop ...
//	c.WaitForTimers(1)            // loop has registered its tick
//	c.Advance(5 * time.Second)    // fire one heartbeat deterministically
//
// # FakeClock Synchronization
//
// When a goroutine calls After or NewTicker on a FakeClock, it registers
// a pending waiter. Use WaitForTimers to block until a specific number
// of waiters are registered before calling Advance. This eliminates the
// race between timer registration and time advancement that plagues
// tests using time.Sleep for synchronization.
package clock
