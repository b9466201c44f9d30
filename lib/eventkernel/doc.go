// Copyright 2026 The Scenic Authors
// SPDX-License-Identifier: Apache-2.0

// Package eventkernel implements the event buffer kernel: a bounded,
// append-only accumulator that frames opaque annotation payloads into
// one contiguous byte buffer.
//
// A [Kernel] is created with an immutable byte budget. Each call to
// [Kernel.AppendAnnotation] validates the payload, frames it, and
// copies the frame onto the end of the buffer. [Kernel.EventBytes]
// returns the committed region as a borrowed view for transmission or
// persistence by the caller.
//
// Frame format (little-endian, no padding between frames):
//
//	+----------------------+---------------------+
//	| payload length (u32) | payload bytes (len) |
//	+----------------------+---------------------+
//
// A reader re-splits the buffer by reading a 4-byte length and
// consuming that many payload bytes, repeated until the buffer ends.
//
// Appends are atomic: every failure ([ErrInvalidArgs],
// [ErrPayloadTooLarge], [ErrCapacityExceeded], [ErrOutOfMemory])
// leaves the buffer and its length exactly as they were, so a caller
// may retry with a smaller payload.
//
// A Kernel is not safe for concurrent use. Wrap it in a [Guarded] when
// several goroutines append to the same buffer.
package eventkernel
