// Copyright 2026 The Scenic Authors
// SPDX-License-Identifier: Apache-2.0

package segment

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/scenic-foundation/scenic/lib/eventkernel"
)

// HeaderSize is the encoded size of a segment header.
const HeaderSize = 112

// magic opens every segment. The trailing digits version the layout.
var magic = [8]byte{'S', 'C', 'N', 'S', 'E', 'G', '0', '1'}

// checksumOffset is where the header checksum is stored; it covers
// every header byte before it.
const checksumOffset = 104

// ErrCorrupt is returned when a segment fails structural or integrity
// checks.
var ErrCorrupt = errors.New("segment: corrupt")

// Segment is one sealed event buffer.
type Segment struct {
	RelayID          uuid.UUID
	Sequence         uint64
	SealedAt         time.Time
	FrameCount       uint64
	UncompressedSize uint64
	Compression      Compression
	Digest           [32]byte

	// Body holds the frames encoded with Compression.
	Body []byte
}

// SealOptions describes the segment being sealed.
type SealOptions struct {
	RelayID     uuid.UUID
	Sequence    uint64
	SealedAt    time.Time
	Compression Compression
}

// Seal builds a segment from the committed bytes of an event kernel.
// events is only read; the segment owns its own copy, so a borrowed
// kernel view may be passed and the kernel appended to or destroyed
// right after.
func Seal(events []byte, options SealOptions) (*Segment, error) {
	frames, err := CountFrames(events)
	if err != nil {
		return nil, err
	}
	body, compression, err := compress(events, options.Compression)
	if err != nil {
		return nil, fmt.Errorf("sealing segment %d: %w", options.Sequence, err)
	}
	return &Segment{
		RelayID:          options.RelayID,
		Sequence:         options.Sequence,
		SealedAt:         options.SealedAt,
		FrameCount:       frames,
		UncompressedSize: uint64(len(events)),
		Compression:      compression,
		Digest:           blake3.Sum256(events),
		Body:             body,
	}, nil
}

// CountFrames walks the length prefixes of an event buffer and returns
// the number of frames. Payloads are skipped, not interpreted.
func CountFrames(events []byte) (uint64, error) {
	var count uint64
	for offset := 0; offset < len(events); count++ {
		if len(events)-offset < eventkernel.PrefixSize {
			return 0, fmt.Errorf("%w: truncated length prefix at offset %d", ErrCorrupt, offset)
		}
		length := uint64(binary.LittleEndian.Uint32(events[offset:]))
		offset += eventkernel.PrefixSize
		if uint64(len(events)-offset) < length {
			return 0, fmt.Errorf("%w: frame at offset %d claims %d bytes, %d remain",
				ErrCorrupt, offset-eventkernel.PrefixSize, length, len(events)-offset)
		}
		offset += int(length)
	}
	return count, nil
}

// Size returns the encoded size of the segment.
func (s *Segment) Size() int {
	return HeaderSize + len(s.Body)
}

// FileName returns the name a sink stores the segment under: the
// zero-padded sequence followed by a digest prefix.
func (s *Segment) FileName() string {
	return fmt.Sprintf("%020d-%x.seg", s.Sequence, s.Digest[:8])
}

// MarshalBinary encodes the header followed by the body.
func (s *Segment) MarshalBinary() ([]byte, error) {
	data := make([]byte, HeaderSize, s.Size())
	copy(data[0:8], magic[:])
	data[8] = byte(s.Compression)
	binary.LittleEndian.PutUint64(data[16:], s.UncompressedSize)
	binary.LittleEndian.PutUint64(data[24:], uint64(len(s.Body)))
	binary.LittleEndian.PutUint64(data[32:], s.FrameCount)
	binary.LittleEndian.PutUint64(data[40:], s.Sequence)
	binary.LittleEndian.PutUint64(data[48:], uint64(s.SealedAt.UnixNano()))
	copy(data[56:72], s.RelayID[:])
	copy(data[72:104], s.Digest[:])
	binary.LittleEndian.PutUint64(data[checksumOffset:], xxhash.Sum64(data[:checksumOffset]))
	return append(data, s.Body...), nil
}

// UnmarshalBinary decodes a segment produced by MarshalBinary. Only
// the header is verified here; call Events to verify the body.
func (s *Segment) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorrupt, len(data))
	}
	if !bytes.Equal(data[0:8], magic[:]) {
		return fmt.Errorf("%w: bad magic %q", ErrCorrupt, data[0:8])
	}
	if got, want := xxhash.Sum64(data[:checksumOffset]), binary.LittleEndian.Uint64(data[checksumOffset:]); got != want {
		return fmt.Errorf("%w: header checksum %016x, stored %016x", ErrCorrupt, got, want)
	}
	bodySize := binary.LittleEndian.Uint64(data[24:])
	if uint64(len(data)-HeaderSize) != bodySize {
		return fmt.Errorf("%w: body is %d bytes, header says %d", ErrCorrupt, len(data)-HeaderSize, bodySize)
	}

	*s = Segment{
		Compression:      Compression(data[8]),
		UncompressedSize: binary.LittleEndian.Uint64(data[16:]),
		FrameCount:       binary.LittleEndian.Uint64(data[32:]),
		Sequence:         binary.LittleEndian.Uint64(data[40:]),
		SealedAt:         time.Unix(0, int64(binary.LittleEndian.Uint64(data[48:]))).UTC(),
		Body:             append([]byte(nil), data[HeaderSize:]...),
	}
	copy(s.RelayID[:], data[56:72])
	copy(s.Digest[:], data[72:104])
	return nil
}

// Events decompresses the body and verifies it against the digest,
// returning the event buffer as it was when sealed.
func (s *Segment) Events() ([]byte, error) {
	if s.UncompressedSize > maxEventsSize || s.UncompressedSize > uint64(math.MaxInt) {
		return nil, fmt.Errorf("%w: uncompressed size %d is too large", ErrCorrupt, s.UncompressedSize)
	}
	events, err := decompress(s.Body, s.Compression, int(s.UncompressedSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if blake3.Sum256(events) != s.Digest {
		return nil, fmt.Errorf("%w: digest mismatch", ErrCorrupt)
	}
	return events, nil
}

// maxEventsSize caps decompression so a forged header cannot demand an
// arbitrary allocation. Sizes beyond math.MaxInt are refused as well,
// which on 32-bit platforms is the tighter bound.
const maxEventsSize = 1 << 32
