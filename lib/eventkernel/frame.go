// Copyright 2026 The Scenic Authors
// SPDX-License-Identifier: Apache-2.0

package eventkernel

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// PrefixSize is the width in bytes of a frame's length prefix.
	PrefixSize = 4

	// MaxPayloadLen is the largest payload length a frame can
	// describe. Longer payloads fail with ErrPayloadTooLarge.
	MaxPayloadLen = math.MaxUint32
)

// frameSize returns the encoded size of a frame carrying payloadLen
// bytes. The sum cannot overflow: payloadLen is bounded by
// MaxPayloadLen before the prefix is added.
func frameSize(payloadLen uint64) (uint64, error) {
	if payloadLen > MaxPayloadLen {
		return 0, fmt.Errorf("%w: %d bytes does not fit a %d-byte length prefix",
			ErrPayloadTooLarge, payloadLen, PrefixSize)
	}
	return PrefixSize + payloadLen, nil
}

// putFrame writes the frame for payload into destination, which must
// be exactly PrefixSize+len(payload) bytes long.
func putFrame(destination, payload []byte) {
	binary.LittleEndian.PutUint32(destination[:PrefixSize], uint32(len(payload)))
	copy(destination[PrefixSize:], payload)
}
