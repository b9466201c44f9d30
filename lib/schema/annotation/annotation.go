// Copyright 2026 The Scenic Authors
// SPDX-License-Identifier: Apache-2.0

package annotation

import (
	"errors"
	"fmt"
	"time"

	"github.com/scenic-foundation/scenic/lib/codec"
)

const (
	// MaxAttributes bounds the attribute map of a single annotation.
	MaxAttributes = 64

	// MaxKindLength bounds the length of Kind.
	MaxKindLength = 128
)

// Annotation is one discrete event captured by a producer: a marker on
// a timeline with a kind, optional string attributes, and an optional
// binary body.
type Annotation struct {
	// Timestamp is when the event happened, as reported by the
	// producer. The relay fills it in when zero.
	Timestamp time.Time `cbor:"ts"`

	// Source identifies the producer. Set from the submit envelope by
	// StampSource.
	Source string `cbor:"source"`

	// Kind classifies the event, e.g. "frame.dropped" or
	// "session.start". Lowercase letters, digits, '.', '_' and '-'.
	Kind string `cbor:"kind"`

	// Attributes carry small key/value metadata.
	Attributes map[string]string `cbor:"attrs,omitempty"`

	// Body is an opaque binary attachment.
	Body []byte `cbor:"body,omitempty"`
}

// Validate reports the first structural problem with the annotation.
func (a *Annotation) Validate() error {
	if a.Source == "" {
		return errors.New("annotation source is required")
	}
	if a.Kind == "" {
		return errors.New("annotation kind is required")
	}
	if len(a.Kind) > MaxKindLength {
		return fmt.Errorf("annotation kind is %d bytes, limit is %d", len(a.Kind), MaxKindLength)
	}
	for i := 0; i < len(a.Kind); i++ {
		if !isKindByte(a.Kind[i]) {
			return fmt.Errorf("annotation kind %q contains invalid character %q", a.Kind, a.Kind[i])
		}
	}
	if len(a.Attributes) > MaxAttributes {
		return fmt.Errorf("annotation has %d attributes, limit is %d", len(a.Attributes), MaxAttributes)
	}
	return nil
}

func isKindByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	case b == '.', b == '_', b == '-':
		return true
	default:
		return false
	}
}

// Encode returns the deterministic CBOR encoding of the annotation,
// the payload handed to the event kernel.
func (a *Annotation) Encode() ([]byte, error) {
	data, err := codec.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encoding annotation %q: %w", a.Kind, err)
	}
	return data, nil
}

// Decode parses one annotation payload as produced by Encode.
func Decode(data []byte) (Annotation, error) {
	var a Annotation
	if err := codec.Unmarshal(data, &a); err != nil {
		return Annotation{}, fmt.Errorf("decoding annotation: %w", err)
	}
	return a, nil
}
