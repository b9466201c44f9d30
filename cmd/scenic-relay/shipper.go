// Copyright 2026 The Scenic Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/scenic-foundation/scenic/lib/clock"
	"github.com/scenic-foundation/scenic/lib/segment"
)

// Backoff for the shipper retry loop: doubles on each consecutive
// failure, capped at maxBackoff, reset on success.
const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// drainTimeout bounds the final pass made after shutdown.
const drainTimeout = 5 * time.Second

// runShipper moves segments from the queue to the sink for the life of
// the relay. It peeks at the oldest segment, ships it, and pops it on
// success; on failure it backs off (1s, 2s, 4s, ... 30s). When ctx is
// cancelled it makes one drain pass and returns.
//
// shipped is read concurrently by the status handler and the metrics
// collector.
func runShipper(ctx context.Context, queue *Queue, sink segment.Sink, clk clock.Clock, shipped *atomic.Uint64, logger *slog.Logger) {
	backoff := initialBackoff

	for {
		select {
		case <-queue.Notify():
		case <-ctx.Done():
			drainQueue(queue, sink, shipped, logger)
			return
		}

		for {
			sealed := queue.Peek()
			if sealed == nil {
				break
			}

			if err := sink.Ship(ctx, sealed); err != nil {
				if ctx.Err() != nil {
					drainQueue(queue, sink, shipped, logger)
					return
				}
				logger.Warn("segment ship failed, will retry",
					"error", err,
					"sequence", sealed.Sequence,
					"backoff", backoff,
					"queue_entries", queue.Len(),
				)
				select {
				case <-clk.After(backoff):
				case <-ctx.Done():
					drainQueue(queue, sink, shipped, logger)
					return
				}
				backoff = min(backoff*2, maxBackoff)
				continue
			}

			queue.Pop(sealed)
			shipped.Add(1)
			backoff = initialBackoff
		}
	}
}

// drainQueue makes one best-effort pass through the queue after
// shutdown. The first failure abandons the rest.
func drainQueue(queue *Queue, sink segment.Sink, shipped *atomic.Uint64, logger *slog.Logger) {
	drainContext, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for {
		sealed := queue.Peek()
		if sealed == nil {
			return
		}
		if err := sink.Ship(drainContext, sealed); err != nil {
			logger.Warn("drain: segment ship failed, abandoning remaining",
				"error", err,
				"remaining", queue.Len(),
			)
			return
		}
		queue.Pop(sealed)
		shipped.Add(1)
	}
}
