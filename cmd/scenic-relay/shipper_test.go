// Copyright 2026 The Scenic Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/scenic-foundation/scenic/lib/clock"
	"github.com/scenic-foundation/scenic/lib/segment"
	"github.com/scenic-foundation/scenic/lib/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSink records Ship calls and returns configurable errors. The
// called channel is signalled after every Ship so tests can
// synchronize without polling.
type fakeSink struct {
	mu       sync.Mutex
	shipped  []*segment.Segment
	errorSeq []error // returned in order; nil entries mean success
	index    int
	called   chan struct{}
}

func newFakeSink(errorSeq []error, expectedCalls int) *fakeSink {
	return &fakeSink{
		errorSeq: errorSeq,
		called:   make(chan struct{}, expectedCalls),
	}
}

func (f *fakeSink) Ship(_ context.Context, sealed *segment.Segment) error {
	f.mu.Lock()
	var err error
	if f.index < len(f.errorSeq) {
		err = f.errorSeq[f.index]
		f.index++
	}
	if err == nil {
		f.shipped = append(f.shipped, sealed)
	}
	f.mu.Unlock()

	select {
	case f.called <- struct{}{}:
	default:
	}
	return err
}

func (f *fakeSink) shippedSequences() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	sequences := make([]uint64, len(f.shipped))
	for i, sealed := range f.shipped {
		sequences[i] = sealed.Sequence
	}
	return sequences
}

func (f *fakeSink) waitForCalls(t *testing.T, count int) {
	t.Helper()
	for i := range count {
		testutil.RequireReceive(t, f.called, 5*time.Second, "ship call %d of %d", i+1, count)
	}
}

func testEpoch() time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
}

func TestShipperSuccessfulDrain(t *testing.T) {
	queue := NewQueue(1 << 20)
	for sequence := uint64(1); sequence <= 5; sequence++ {
		if err := queue.Push(sizedSegment(sequence, 8)); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}

	sink := newFakeSink(nil, 5)
	var shipped atomic.Uint64
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		runShipper(ctx, queue, sink, clock.Fake(testEpoch()), &shipped, testLogger())
		close(done)
	}()

	sink.waitForCalls(t, 5)
	cancel()
	<-done

	if shipped.Load() != 5 {
		t.Fatalf("shipped = %d, want 5", shipped.Load())
	}
	got := sink.shippedSequences()
	for i, sequence := range got {
		if sequence != uint64(i+1) {
			t.Fatalf("shipped out of order: %v", got)
		}
	}
	if queue.Len() != 0 {
		t.Fatalf("queue still holds %d segments", queue.Len())
	}
}

func TestShipperRetryWithBackoff(t *testing.T) {
	queue := NewQueue(1 << 20)
	queue.Push(sizedSegment(1, 8))

	retryError := errors.New("sink unavailable")
	sink := newFakeSink([]error{retryError, retryError, nil}, 3)
	var shipped atomic.Uint64
	fakeClock := clock.Fake(testEpoch())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		runShipper(ctx, queue, sink, fakeClock, &shipped, testLogger())
		close(done)
	}()

	// First failure: backoff of initialBackoff.
	sink.waitForCalls(t, 1)
	fakeClock.WaitForTimers(1)
	fakeClock.Advance(initialBackoff - time.Millisecond)
	if shipped.Load() != 0 || fakeClock.PendingCount() != 1 {
		t.Fatal("shipper retried before the backoff elapsed")
	}
	fakeClock.Advance(time.Millisecond)

	// Second failure: the backoff doubles.
	sink.waitForCalls(t, 1)
	fakeClock.WaitForTimers(1)
	fakeClock.Advance(initialBackoff)
	if fakeClock.PendingCount() != 1 {
		t.Fatal("second backoff did not double")
	}
	fakeClock.Advance(initialBackoff)

	sink.waitForCalls(t, 1)
	cancel()
	<-done

	if shipped.Load() != 1 {
		t.Fatalf("shipped = %d, want 1", shipped.Load())
	}
	if queue.Len() != 0 {
		t.Fatalf("queue still holds %d segments", queue.Len())
	}
}

func TestShipperDrainsOnShutdown(t *testing.T) {
	queue := NewQueue(1 << 20)
	sink := newFakeSink(nil, 3)
	var shipped atomic.Uint64
	ctx, cancel := context.WithCancel(context.Background())

	// Cancel before anything is queued and before the shipper runs:
	// only the drain pass can ship these.
	cancel()
	for sequence := uint64(1); sequence <= 3; sequence++ {
		queue.Push(sizedSegment(sequence, 8))
	}
	// Consume the notification so the loop takes the ctx branch.
	<-queue.Notify()

	runShipper(ctx, queue, sink, clock.Fake(testEpoch()), &shipped, testLogger())

	if shipped.Load() != 3 {
		t.Fatalf("drain shipped %d, want 3", shipped.Load())
	}
}

func TestDrainAbandonsAfterFailure(t *testing.T) {
	queue := NewQueue(1 << 20)
	for sequence := uint64(1); sequence <= 3; sequence++ {
		queue.Push(sizedSegment(sequence, 8))
	}

	sink := newFakeSink([]error{nil, errors.New("disk full")}, 3)
	var shipped atomic.Uint64
	drainQueue(queue, sink, &shipped, testLogger())

	if shipped.Load() != 1 {
		t.Fatalf("shipped = %d, want 1", shipped.Load())
	}
	if queue.Len() != 2 {
		t.Fatalf("queue holds %d, want the 2 unshipped segments", queue.Len())
	}
}
