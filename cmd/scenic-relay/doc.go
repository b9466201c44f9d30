// Copyright 2026 The Scenic Authors
// SPDX-License-Identifier: Apache-2.0

// Scenic-relay captures annotations from local producers into a
// bounded event buffer and ships each filled buffer as a sealed
// segment.
//
// Producers call the "submit" action on the relay's CBOR socket. Each
// annotation is encoded and appended as one length-prefixed frame to
// an event buffer whose total size never exceeds --max-bytes.
//
// Data flow:
//
//	producer → "submit" → event buffer → seal → queue → shipper → segment directory
//
// Seal triggers:
//   - Capacity: an annotation that does not fit seals the buffer and is
//     retried on a fresh one. An annotation larger than an empty buffer
//     is rejected.
//   - Timer: the flush loop seals a non-empty buffer every
//     --flush-interval (default 10s).
//
// The queue bounds memory while the sink is unavailable by dropping the
// oldest segments. The shipper retries with exponential backoff (1s to
// 30s) and makes one final drain pass on shutdown.
//
// The "status" action and the optional Prometheus endpoint
// (--metrics-listen) report the same counters.
package main
