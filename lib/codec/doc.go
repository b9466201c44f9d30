// Copyright 2026 The Scenic Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR configuration shared by every Scenic
// component.
//
// CBOR is used for annotation payloads (the opaque bytes the event
// kernel frames) and for the relay's socket protocol. Encoding uses
// Core Deterministic Encoding (RFC 8949 §4.2): sorted map keys,
// smallest integer encoding, no indefinite-length items. The same
// annotation always encodes to the same bytes, so segment digests are
// reproducible.
//
// Buffer-oriented use (annotation payloads):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Stream-oriented use (sockets):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Types carry `cbor` struct tags. time.Time values encode as RFC 3339
// text with nanosecond precision.
package codec
