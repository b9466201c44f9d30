// Copyright 2026 The Scenic Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"testing"
	"time"
)

// SocketDir creates a short-named temporary directory in /tmp for Unix
// domain sockets, removed when the test completes. t.TempDir paths
// can exceed the 108-byte sun_path limit.
func SocketDir(t *testing.T) string {
	t.Helper()
	directory, err := os.MkdirTemp("/tmp", "scenic-test-*")
	if err != nil {
		t.Fatalf("creating socket directory: %v", err)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(directory)
	})
	return directory
}

// WaitForFile polls until path exists, failing the test after timeout.
// Servers create their socket file once they are accepting.
func WaitForFile(t *testing.T, path string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if _, err := os.Stat(path); err == nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("%s did not appear within %v", path, timeout)
		}
		time.Sleep(time.Millisecond)
	}
}
