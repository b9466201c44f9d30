// Copyright 2026 The Scenic Authors
// SPDX-License-Identifier: Apache-2.0

package eventkernel

import (
	"fmt"
	"math"
	"math/bits"
)

// initialCapacity is the allocation made at creation time, clamped to
// the kernel's byte budget.
const initialCapacity = 64

// maxAllocation is the largest buffer the kernel will request. A
// slice cannot be longer than math.MaxInt on the running platform.
const maxAllocation = uint64(math.MaxInt)

// Allocator returns a zeroed byte slice of exactly size bytes, or an
// error if the memory cannot be provided. The kernel only ever copies
// committed bytes into the result, so the contents need not be zeroed
// for correctness, but the returned length must be at least size.
type Allocator func(size int) ([]byte, error)

// Option configures a Kernel at creation time.
type Option func(*Kernel)

// WithAllocator replaces the default allocator. Embedders use this to
// charge buffer growth against a shared memory quota; tests use it to
// exercise the out-of-memory paths.
func WithAllocator(allocator Allocator) Option {
	return func(k *Kernel) {
		k.allocate = allocator
	}
}

// Kernel accumulates framed annotation payloads into one contiguous
// buffer bounded by a fixed byte budget. The zero value is not usable;
// create kernels with New.
type Kernel struct {
	maxBytes uint64

	// buffer holds the committed frames in [0, len(buffer)). Its
	// capacity is the current allocation.
	buffer []byte

	allocate  Allocator
	destroyed bool
}

// New creates a kernel whose serialized buffer may never exceed
// maxBytes. A budget of zero is valid: the kernel is constructible but
// rejects every append, since even an empty payload needs a length
// prefix.
func New(maxBytes uint64, options ...Option) (*Kernel, error) {
	kernel := &Kernel{
		maxBytes: maxBytes,
		allocate: makeBuffer,
	}
	for _, option := range options {
		option(kernel)
	}
	if kernel.allocate == nil {
		return nil, fmt.Errorf("%w: nil allocator", ErrInvalidArgs)
	}

	initial := min(maxBytes, initialCapacity)
	if initial > 0 {
		buffer, err := kernel.allocateBuffer(initial)
		if err != nil {
			return nil, err
		}
		kernel.buffer = buffer[:0]
	}
	return kernel, nil
}

// AppendAnnotation frames payload and appends it to the buffer. A nil
// or empty payload is valid and produces a frame of PrefixSize bytes.
//
// Validation happens in a fixed order and the first failure wins:
// ErrInvalidArgs (nil or destroyed kernel), ErrPayloadTooLarge,
// ErrCapacityExceeded, ErrOutOfMemory. On any error the buffer is
// unchanged.
func (k *Kernel) AppendAnnotation(payload []byte) error {
	if k == nil || k.destroyed {
		return ErrInvalidArgs
	}

	frame, err := frameSize(uint64(len(payload)))
	if err != nil {
		return err
	}

	length := uint64(len(k.buffer))
	newLength, carry := bits.Add64(length, frame, 0)
	if carry != 0 || newLength > k.maxBytes {
		return fmt.Errorf("%w: frame of %d bytes on %d committed exceeds budget of %d",
			ErrCapacityExceeded, frame, length, k.maxBytes)
	}

	if newLength > uint64(cap(k.buffer)) {
		if err := k.grow(newLength); err != nil {
			return err
		}
	}

	// newLength <= cap(k.buffer) <= math.MaxInt after grow.
	k.buffer = k.buffer[:int(newLength)]
	putFrame(k.buffer[int(length):], payload)
	return nil
}

// EventBytes returns the committed frames as a view over the kernel's
// buffer. The view is borrowed: it is valid only until the next
// AppendAnnotation or Destroy, and must not be retained past either.
// Callers that need to keep the bytes must copy them.
//
// The view's capacity equals its length, so appending to it never
// writes into kernel storage. A nil or destroyed kernel yields nil.
func (k *Kernel) EventBytes() []byte {
	if k == nil || k.destroyed {
		return nil
	}
	length := len(k.buffer)
	return k.buffer[:length:length]
}

// Len returns the number of committed bytes.
func (k *Kernel) Len() int {
	if k == nil {
		return 0
	}
	return len(k.buffer)
}

// Cap returns the size of the current allocation.
func (k *Kernel) Cap() int {
	if k == nil {
		return 0
	}
	return cap(k.buffer)
}

// MaxBytes returns the byte budget fixed at creation.
func (k *Kernel) MaxBytes() uint64 {
	if k == nil {
		return 0
	}
	return k.maxBytes
}

// Destroy releases the buffer. Afterwards every append fails with
// ErrInvalidArgs and EventBytes returns nil. Destroying a nil or
// already-destroyed kernel does nothing.
func (k *Kernel) Destroy() {
	if k == nil {
		return
	}
	k.buffer = nil
	k.destroyed = true
}

// grow reallocates the buffer so that it holds at least needed bytes
// and copies the committed frames across. The old buffer is left
// untouched if allocation fails.
func (k *Kernel) grow(needed uint64) error {
	next := nextCapacity(uint64(cap(k.buffer)), needed, k.maxBytes)
	buffer, err := k.allocateBuffer(next)
	if err != nil {
		return err
	}
	committed := copy(buffer, k.buffer)
	k.buffer = buffer[:committed]
	return nil
}

func (k *Kernel) allocateBuffer(size uint64) ([]byte, error) {
	if size > maxAllocation {
		return nil, fmt.Errorf("%w: %d bytes exceeds the addressable limit", ErrOutOfMemory, size)
	}
	buffer, err := k.allocate(int(size))
	if err != nil {
		return nil, fmt.Errorf("%w: allocating %d bytes: %v", ErrOutOfMemory, size, err)
	}
	if len(buffer) < int(size) {
		return nil, fmt.Errorf("%w: allocator returned %d bytes, requested %d",
			ErrOutOfMemory, len(buffer), size)
	}
	return buffer[:size:size], nil
}

// nextCapacity doubles current, raises the result to needed if
// doubling is not enough, and clamps it to limit and to the largest
// addressable allocation. The result is never below needed as long
// as needed is itself within both bounds.
func nextCapacity(current, needed, limit uint64) uint64 {
	next := current * 2
	if current > math.MaxUint64/2 {
		next = math.MaxUint64
	}
	if next < needed {
		next = needed
	}
	if next > limit {
		next = limit
	}
	if next > maxAllocation && needed <= maxAllocation {
		next = maxAllocation
	}
	return next
}

// makeBuffer is the default Allocator. Requests the runtime refuses
// outright surface as an error; exhaustion of the process heap is
// fatal in Go and cannot be reported.
func makeBuffer(size int) (buffer []byte, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			buffer = nil
			err = fmt.Errorf("%v", recovered)
		}
	}()
	return make([]byte, size), nil
}
