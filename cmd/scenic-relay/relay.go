// Copyright 2026 The Scenic Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/bits"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/scenic-foundation/scenic/lib/clock"
	"github.com/scenic-foundation/scenic/lib/codec"
	"github.com/scenic-foundation/scenic/lib/eventkernel"
	"github.com/scenic-foundation/scenic/lib/schema/annotation"
	"github.com/scenic-foundation/scenic/lib/segment"
	"github.com/scenic-foundation/scenic/lib/service"
)

// relayConfig carries what newRelay needs from flags and the config
// file.
type relayConfig struct {
	MaxBytes      uint64
	QueueMaxBytes int
	Compression   segment.Compression
	RelayID       uuid.UUID
	Clock         clock.Clock
	Logger        *slog.Logger

	// Allocator, when set, backs every event buffer.
	Allocator eventkernel.Allocator
}

// Relay holds the relay's runtime state, shared by the socket
// handlers, the flush loop, the shipper, and the metrics collector.
type Relay struct {
	kernel        *eventkernel.Guarded
	kernelOptions []eventkernel.Option
	maxBytes      uint64
	queue         *Queue
	relayID       uuid.UUID
	compression   segment.Compression
	clock         clock.Clock
	startedAt     time.Time
	logger        *slog.Logger

	// sealMu orders appends with rotation and sealing so that segment
	// sequence numbers follow capture order.
	sealMu sync.Mutex

	// Written under sealMu, read lock-free by status and metrics.
	sequence atomic.Uint64
	sealed   atomic.Uint64

	accepted atomic.Uint64
	rejected atomic.Uint64
	shipped  atomic.Uint64
}

func newRelay(config relayConfig) (*Relay, error) {
	// A sealed segment may be stored uncompressed, so the queue must
	// hold at least one full buffer plus its header.
	minimum, carry := bits.Add64(config.MaxBytes, segment.HeaderSize, 0)
	if carry != 0 {
		return nil, fmt.Errorf("buffer size %d leaves no room for a segment header", config.MaxBytes)
	}
	if config.QueueMaxBytes <= 0 || uint64(config.QueueMaxBytes) < minimum {
		return nil, fmt.Errorf("queue size %d cannot hold one sealed buffer of up to %d bytes", config.QueueMaxBytes, minimum)
	}

	r := &Relay{
		maxBytes:    config.MaxBytes,
		queue:       NewQueue(config.QueueMaxBytes),
		relayID:     config.RelayID,
		compression: config.Compression,
		clock:       config.Clock,
		startedAt:   config.Clock.Now(),
		logger:      config.Logger,
	}
	if config.Allocator != nil {
		r.kernelOptions = append(r.kernelOptions, eventkernel.WithAllocator(config.Allocator))
	}

	kernel, err := r.newKernel()
	if err != nil {
		return nil, fmt.Errorf("creating event buffer: %w", err)
	}
	r.kernel = eventkernel.NewGuarded(kernel)
	return r, nil
}

func (r *Relay) newKernel() (*eventkernel.Kernel, error) {
	return eventkernel.New(r.maxBytes, r.kernelOptions...)
}

func (r *Relay) registerActions(server *service.SocketServer) {
	server.Handle("submit", r.handleSubmit)
	server.Handle("status", r.handleStatus)
}

// handleSubmit validates and encodes every annotation of the request
// before committing any, then commits them in order. A commit failure
// stops the request; the annotations before it stay committed and the
// error says how many.
func (r *Relay) handleSubmit(_ context.Context, raw []byte) (any, error) {
	var request annotation.SubmitRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, errors.New("invalid submit request")
	}
	if err := request.Validate(); err != nil {
		return nil, err
	}
	request.StampSource(r.clock.Now())

	payloads := make([][]byte, len(request.Annotations))
	for i := range request.Annotations {
		record := &request.Annotations[i]
		if err := record.Validate(); err != nil {
			r.rejected.Add(uint64(len(payloads)))
			return nil, fmt.Errorf("annotation %d: %w", i, err)
		}
		payload, err := record.Encode()
		if err != nil {
			r.rejected.Add(uint64(len(payloads)))
			return nil, fmt.Errorf("annotation %d: %w", i, err)
		}
		payloads[i] = payload
	}

	for i, payload := range payloads {
		if err := r.commit(payload); err != nil {
			r.rejected.Add(uint64(len(payloads) - i))
			if errors.Is(err, eventkernel.ErrCapacityExceeded) || errors.Is(err, eventkernel.ErrPayloadTooLarge) {
				return nil, fmt.Errorf("annotation %d: encoded size %d does not fit an event buffer of %d bytes (%d accepted)",
					i, len(payload), r.maxBytes, i)
			}
			return nil, fmt.Errorf("annotation %d: %w (%d accepted)", i, err, i)
		}
		r.accepted.Add(1)
	}

	return &annotation.SubmitResponse{Accepted: len(payloads)}, nil
}

func (r *Relay) handleStatus(_ context.Context, _ []byte) (any, error) {
	return &annotation.StatusResponse{
		UptimeSeconds:       r.clock.Now().Sub(r.startedAt).Seconds(),
		RelayID:             r.relayID.String(),
		KernelBytes:         r.kernel.Len(),
		KernelMaxBytes:      r.maxBytes,
		QueueEntries:        r.queue.Len(),
		QueueBytes:          r.queue.SizeBytes(),
		AnnotationsAccepted: r.accepted.Load(),
		AnnotationsRejected: r.rejected.Load(),
		SegmentsSealed:      r.sealed.Load(),
		SegmentsShipped:     r.shipped.Load(),
		SegmentsDropped:     r.queue.Dropped(),
		Sequence:            r.sequence.Load(),
	}, nil
}

// commit appends one encoded annotation. A full buffer is sealed and
// replaced, and the append retried once on the fresh buffer.
func (r *Relay) commit(payload []byte) error {
	r.sealMu.Lock()
	defer r.sealMu.Unlock()

	full, err := r.kernel.AppendRotating(payload, r.newKernel)
	if full != nil {
		r.sealLocked(full)
	}
	return err
}

// flush seals the current buffer if it holds anything.
func (r *Relay) flush() {
	r.sealMu.Lock()
	defer r.sealMu.Unlock()

	if r.kernel.Len() == 0 {
		return
	}
	fresh, err := r.newKernel()
	if err != nil {
		r.logger.Error("cannot allocate replacement event buffer, deferring flush", "error", err)
		return
	}
	r.sealLocked(r.kernel.Swap(fresh))
}

// sealLocked turns a detached kernel into a queued segment and
// destroys the kernel. The caller holds sealMu.
func (r *Relay) sealLocked(kernel *eventkernel.Kernel) {
	defer kernel.Destroy()

	events := kernel.EventBytes()
	if len(events) == 0 {
		return
	}

	sequence := r.sequence.Load() + 1
	sealed, err := segment.Seal(events, segment.SealOptions{
		RelayID:     r.relayID,
		Sequence:    sequence,
		SealedAt:    r.clock.Now(),
		Compression: r.compression,
	})
	if err != nil {
		r.logger.Error("failed to seal event buffer, discarding",
			"error", err,
			"sequence", sequence,
			"bytes", len(events),
		)
		return
	}
	r.sequence.Store(sequence)
	r.sealed.Add(1)

	if err := r.queue.Push(sealed); err != nil {
		r.logger.Error("failed to queue segment",
			"error", err,
			"sequence", sequence,
			"size", sealed.Size(),
		)
		return
	}
	r.logger.Debug("segment sealed",
		"sequence", sequence,
		"frames", sealed.FrameCount,
		"bytes", sealed.UncompressedSize,
		"compression", sealed.Compression,
		"size", sealed.Size(),
	)
}

// runFlushLoop seals the buffer every interval so that a quiet relay
// still ships what it captured. Runs until ctx is cancelled.
func (r *Relay) runFlushLoop(ctx context.Context, interval time.Duration) {
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.flush()
		case <-ctx.Done():
			return
		}
	}
}

// close seals what remains and detaches the buffer without allocating
// a replacement. Appends after close fail with ErrInvalidArgs.
func (r *Relay) close() {
	r.sealMu.Lock()
	defer r.sealMu.Unlock()
	r.sealLocked(r.kernel.Swap(nil))
}
