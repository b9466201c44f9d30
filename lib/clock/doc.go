// Copyright 2026 The Scenic Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Components that stamp annotations, run flush timers, or back off
// between shipping attempts take a Clock instead of calling the time
// package directly. Production code passes Real(); tests pass a
// FakeClock and move time forward explicitly:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go relay.runFlushLoop(ctx, 5*time.Second)
//	fake.WaitForTimers(1)       // the loop has registered its ticker
//	fake.Advance(5 * time.Second)
package clock
