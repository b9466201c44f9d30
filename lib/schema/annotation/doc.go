// Copyright 2026 The Scenic Authors
// SPDX-License-Identifier: Apache-2.0

// Package annotation defines the records producers submit to the
// Scenic relay and the wire types of the relay's socket actions.
//
// An [Annotation] is encoded with [Annotation.Encode] into the opaque
// payload the event kernel frames. The kernel never looks inside it;
// downstream consumers decode each frame with [Decode].
package annotation
