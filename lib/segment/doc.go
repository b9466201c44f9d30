// Copyright 2026 The Scenic Authors
// SPDX-License-Identifier: Apache-2.0

// Package segment seals event buffers into self-describing segments
// for transport, and ships them to a [Sink].
//
// A segment is the byte image of one event kernel at the moment it was
// sealed: the concatenated length-prefixed frames, optionally
// compressed, behind a fixed header. The header records who sealed it
// (relay ID and sequence), when, how many frames it holds, how the body
// is compressed, and the BLAKE3 digest of the uncompressed frames. An
// xxHash64 checksum over the header detects torn or corrupted headers
// before the body is touched.
//
// Header layout (little-endian, HeaderSize bytes):
//
//	offset size field
//	     0    8 magic "SCNSEG01"
//	     8    1 compression
//	     9    7 reserved, zero
//	    16    8 uncompressed size
//	    24    8 body size
//	    32    8 frame count
//	    40    8 sequence
//	    48    8 sealed-at, unix nanoseconds
//	    56   16 relay ID (UUID)
//	    72   32 BLAKE3-256 digest of the uncompressed frames
//	   104    8 xxHash64 of bytes [0, 104)
package segment
