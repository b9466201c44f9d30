// Copyright 2026 The Scenic Authors
// SPDX-License-Identifier: Apache-2.0

package segment

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies how a segment body is encoded. The values are
// stored in segment headers; changing them breaks the format.
type Compression uint8

const (
	// CompressionNone stores the frames as-is.
	CompressionNone Compression = 0

	// CompressionLZ4 is LZ4 block compression: fast, modest ratio.
	CompressionLZ4 Compression = 1

	// CompressionZstd is zstd at the default level: better ratio for
	// the text-heavy CBOR annotations most producers emit.
	CompressionZstd Compression = 2

	// CompressionAuto is never stored. Sealing with it probes the
	// frames with zstd and picks zstd, LZ4 or none by ratio.
	CompressionAuto Compression = 255
)

// String returns the configuration name of the compression.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	case CompressionAuto:
		return "auto"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a configuration name.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	case "auto":
		return CompressionAuto, nil
	default:
		return 0, fmt.Errorf("unknown compression %q (want none, lz4, zstd or auto)", name)
	}
}

// errIncompressible means the compressed output would not be smaller
// than the input; the caller stores the frames uncompressed.
var errIncompressible = errors.New("data is incompressible")

// compress encodes data with the requested algorithm and returns the
// body together with the algorithm actually used. Incompressible data
// falls back to CompressionNone. The returned body never aliases data.
func compress(data []byte, requested Compression) ([]byte, Compression, error) {
	if requested == CompressionAuto {
		requested = selectCompression(data)
	}

	var (
		body []byte
		err  error
	)
	switch requested {
	case CompressionNone:
		return append([]byte(nil), data...), CompressionNone, nil
	case CompressionLZ4:
		body, err = compressLZ4(data)
	case CompressionZstd:
		body, err = compressZstd(data)
	default:
		return nil, 0, fmt.Errorf("unsupported compression: %v", requested)
	}

	if errors.Is(err, errIncompressible) {
		return append([]byte(nil), data...), CompressionNone, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return body, requested, nil
}

// decompress reverses compress. uncompressedSize must match the
// original length exactly.
func decompress(body []byte, compression Compression, uncompressedSize int) ([]byte, error) {
	switch compression {
	case CompressionNone:
		if len(body) != uncompressedSize {
			return nil, fmt.Errorf("uncompressed body: size %d does not match expected %d",
				len(body), uncompressedSize)
		}
		return body, nil
	case CompressionLZ4:
		return decompressLZ4(body, uncompressedSize)
	case CompressionZstd:
		return decompressZstd(body, uncompressedSize)
	default:
		return nil, fmt.Errorf("unsupported compression: %v", compression)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock returns 0 for incompressible input.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func decompressLZ4(body []byte, uncompressedSize int) ([]byte, error) {
	destination := make([]byte, uncompressedSize)
	read, err := lz4.UncompressBlock(body, destination)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if read != uncompressedSize {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, uncompressedSize)
	}
	return destination, nil
}

// zstd.Encoder and zstd.Decoder are safe for concurrent use through
// EncodeAll and DecodeAll; one of each is shared by the package.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("segment: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("segment: zstd decoder initialization failed: " + err.Error())
	}
}

func compressZstd(data []byte) ([]byte, error) {
	body := zstdEncoder.EncodeAll(data, nil)
	if len(body) >= len(data) {
		return nil, errIncompressible
	}
	return body, nil
}

func decompressZstd(body []byte, uncompressedSize int) ([]byte, error) {
	result, err := zstdDecoder.DecodeAll(body, make([]byte, 0, uncompressedSize))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(result) != uncompressedSize {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), uncompressedSize)
	}
	return result, nil
}

// selectCompression probes data with zstd: a ratio of at least 1.5
// picks zstd, at least 1.1 picks LZ4, anything less stores the frames
// uncompressed.
func selectCompression(data []byte) Compression {
	if len(data) == 0 {
		return CompressionNone
	}
	probe := zstdEncoder.EncodeAll(data, nil)
	ratio := float64(len(data)) / float64(len(probe))
	switch {
	case ratio >= 1.5:
		return CompressionZstd
	case ratio >= 1.1:
		return CompressionLZ4
	default:
		return CompressionNone
	}
}
