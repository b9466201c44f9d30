// Copyright 2026 The Scenic Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Scenic packages.
//
// [SocketDir] creates a temporary directory in /tmp suitable for Unix
// domain sockets, whose paths are limited to 108 bytes.
// [WaitForFile] waits for a server to create its socket.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so that a hung goroutine fails the test instead of stalling
// the suite.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no Scenic-internal dependencies.
package testutil
