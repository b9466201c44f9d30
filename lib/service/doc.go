// Copyright 2026 The Scenic Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the Unix socket protocol Scenic daemons
// expose to local producers.
//
// The protocol is one CBOR request and one CBOR response per
// connection. Every request is a map with an "action" key naming the
// handler; the response is a [Response] envelope {ok, error, data}.
// [SocketServer] dispatches requests to registered [ActionFunc]s;
// [Client] is the matching caller side.
//
// Access control is the filesystem permission on the socket: anyone
// who can connect can submit.
package service
