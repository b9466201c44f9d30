// Copyright 2026 The Scenic Authors
// SPDX-License-Identifier: Apache-2.0

package eventkernel

import (
	"errors"
	"fmt"
)

// Code is the numeric status of a kernel operation. The values are
// stable and match the status codes of the C interface the kernel is
// also exported through.
type Code int

const (
	CodeOK               Code = 0
	CodeInvalidArgs      Code = 1
	CodePayloadTooLarge  Code = 2
	CodeCapacityExceeded Code = 3
	CodeOutOfMemory      Code = 4
)

// String returns the snake_case name of the code, suitable for log
// fields and metric labels.
func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeInvalidArgs:
		return "invalid_args"
	case CodePayloadTooLarge:
		return "payload_too_large"
	case CodeCapacityExceeded:
		return "capacity_exceeded"
	case CodeOutOfMemory:
		return "out_of_memory"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// Sentinel errors returned by kernel operations. Errors returned by
// the kernel wrap exactly one of these; match with errors.Is.
var (
	// ErrInvalidArgs is returned when the call itself is malformed:
	// a nil kernel, or a kernel that has already been destroyed.
	ErrInvalidArgs = errors.New("eventkernel: invalid arguments")

	// ErrPayloadTooLarge is returned when a payload's length cannot
	// be represented by the frame's length prefix, regardless of how
	// full the buffer is.
	ErrPayloadTooLarge = errors.New("eventkernel: payload too large")

	// ErrCapacityExceeded is returned when the framed payload would
	// push the buffer past its byte budget, or when the size
	// arithmetic would overflow.
	ErrCapacityExceeded = errors.New("eventkernel: capacity exceeded")

	// ErrOutOfMemory is returned when the allocator cannot provide
	// the initial buffer or a grown one.
	ErrOutOfMemory = errors.New("eventkernel: out of memory")
)

// CodeOf maps an error returned by this package to its status code.
// A nil error is CodeOK. Errors from outside the taxonomy map to
// CodeInvalidArgs.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrPayloadTooLarge):
		return CodePayloadTooLarge
	case errors.Is(err, ErrCapacityExceeded):
		return CodeCapacityExceeded
	case errors.Is(err, ErrOutOfMemory):
		return CodeOutOfMemory
	default:
		return CodeInvalidArgs
	}
}
