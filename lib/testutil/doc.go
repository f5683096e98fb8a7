// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for driftroom packages.
//
// [RequireReceive], [RequireSend], and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so
// that individual tests do not need direct time.After calls.
// [RequireNoReceive] asserts the opposite: that a channel stays silent
// for a short window, which protocol tests use to prove that a vetoed
// vote published no configuration and a deduplicated message produced
// no second event. These helpers are the only place in the test suite
// where real wall-clock timeouts appear; everything else drives a
// clock.FakeClock.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation. Use it instead of time.Now() when tests need message
// bodies or room names distinguishable across subtests.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no driftroom-internal dependencies.
package testutil
