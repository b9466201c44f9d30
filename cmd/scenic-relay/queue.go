// Copyright 2026 The Scenic Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"sync"

	"github.com/scenic-foundation/scenic/lib/segment"
)

// Queue is a size-bounded FIFO of sealed segments waiting to ship.
// When a Push would exceed the byte limit, the oldest segments are
// dropped until the new one fits: the relay loses old data rather than
// exhausting memory while the sink is down.
//
// The notify channel (capacity 1) wakes the shipper when a segment
// arrives.
//
// Thread-safe: all methods may be called concurrently.
type Queue struct {
	mu        sync.Mutex
	entries   []*segment.Segment
	totalSize int
	maxSize   int
	dropped   uint64
	notify    chan struct{}
}

// NewQueue creates a Queue holding at most maxSize encoded segment
// bytes. maxSize must be positive.
func NewQueue(maxSize int) *Queue {
	if maxSize <= 0 {
		panic(fmt.Sprintf("queue: maxSize must be positive, got %d", maxSize))
	}
	return &Queue{
		maxSize: maxSize,
		notify:  make(chan struct{}, 1),
	}
}

// Push appends a segment, evicting the oldest entries if needed. A
// segment larger than the whole queue is refused with an error and
// counted as dropped.
func (q *Queue) Push(sealed *segment.Segment) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	size := sealed.Size()
	if size > q.maxSize {
		q.dropped++
		return fmt.Errorf("queue: segment %d size %d exceeds queue size %d", sealed.Sequence, size, q.maxSize)
	}

	for q.totalSize+size > q.maxSize && len(q.entries) > 0 {
		q.popLocked()
		q.dropped++
	}

	q.entries = append(q.entries, sealed)
	q.totalSize += size

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Peek returns the oldest segment without removing it, or nil.
func (q *Queue) Peek() *segment.Segment {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return nil
	}
	return q.entries[0]
}

// Pop removes sealed if it is still the oldest entry. The check keeps
// a slow Ship from popping a successor when its segment was evicted
// while in flight.
func (q *Queue) Pop(sealed *segment.Segment) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 || q.entries[0] != sealed {
		return
	}
	q.popLocked()
}

func (q *Queue) popLocked() {
	evicted := q.entries[0]
	q.entries[0] = nil
	q.entries = q.entries[1:]
	q.totalSize -= evicted.Size()
}

// Len returns the number of queued segments.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// SizeBytes returns the total encoded size of queued segments.
func (q *Queue) SizeBytes() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.totalSize
}

// Dropped returns how many segments were evicted or refused since
// creation.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Notify returns the channel signalled when a segment is pushed.
func (q *Queue) Notify() <-chan struct{} {
	return q.notify
}
