// Copyright 2026 The Scenic Authors
// SPDX-License-Identifier: Apache-2.0

package eventkernel

import (
	"bytes"
	"errors"
	"sync"
	"testing"
)

func TestGuardedConcurrentAppends(t *testing.T) {
	guarded := NewGuarded(mustNew(t, 1<<20))
	defer guarded.Destroy()

	const (
		writers          = 8
		appendsPerWriter = 200
	)

	var wg sync.WaitGroup
	for writer := 0; writer < writers; writer++ {
		wg.Add(1)
		go func(writer byte) {
			defer wg.Done()
			for i := 0; i < appendsPerWriter; i++ {
				if err := guarded.AppendAnnotation([]byte{writer, byte(i)}); err != nil {
					t.Errorf("writer %d append %d: %v", writer, i, err)
					return
				}
			}
		}(byte(writer))
	}
	wg.Wait()

	payloads := splitFrames(t, guarded.Snapshot())
	if len(payloads) != writers*appendsPerWriter {
		t.Fatalf("recovered %d frames, want %d", len(payloads), writers*appendsPerWriter)
	}

	// Per-writer order is preserved even though writers interleave.
	next := make([]int, writers)
	for _, payload := range payloads {
		writer := payload[0]
		if int(payload[1]) != next[writer]%256 {
			t.Fatalf("writer %d: got sequence %d, want %d", writer, payload[1], next[writer]%256)
		}
		next[writer]++
	}
}

func TestGuardedSnapshotIsACopy(t *testing.T) {
	guarded := NewGuarded(mustNew(t, 64))
	defer guarded.Destroy()

	if err := guarded.AppendAnnotation([]byte("one")); err != nil {
		t.Fatalf("append: %v", err)
	}
	snapshot := guarded.Snapshot()
	snapshot[PrefixSize] = 'X'

	if err := guarded.AppendAnnotation([]byte("two")); err != nil {
		t.Fatalf("append: %v", err)
	}
	payloads := splitFrames(t, guarded.Snapshot())
	if string(payloads[0]) != "one" {
		t.Fatalf("mutating the snapshot changed the kernel: %q", payloads[0])
	}
}

func TestGuardedAppendRotating(t *testing.T) {
	fresh := func() (*Kernel, error) { return New(16) }
	guarded := NewGuarded(mustNew(t, 16))
	defer guarded.Destroy()

	full, err := guarded.AppendRotating([]byte("abcdefgh"), fresh)
	if err != nil || full != nil {
		t.Fatalf("first append: full=%v err=%v", full, err)
	}

	// 12 committed bytes; a second 12-byte frame needs a new kernel.
	full, err = guarded.AppendRotating([]byte("ijklmnop"), fresh)
	if err != nil {
		t.Fatalf("rotating append: %v", err)
	}
	if full == nil {
		t.Fatal("expected the full kernel to be returned")
	}
	defer full.Destroy()

	if got := splitFrames(t, full.EventBytes()); len(got) != 1 || string(got[0]) != "abcdefgh" {
		t.Fatalf("sealed kernel frames = %q", got)
	}
	if got := splitFrames(t, guarded.Snapshot()); len(got) != 1 || string(got[0]) != "ijklmnop" {
		t.Fatalf("fresh kernel frames = %q", got)
	}
}

func TestGuardedAppendRotatingNeverRotatesEmptyKernel(t *testing.T) {
	calls := 0
	fresh := func() (*Kernel, error) {
		calls++
		return New(16)
	}
	guarded := NewGuarded(mustNew(t, 16))
	defer guarded.Destroy()

	full, err := guarded.AppendRotating(make([]byte, 20), fresh)
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("got %v, want ErrCapacityExceeded", err)
	}
	if full != nil || calls != 0 {
		t.Fatalf("empty kernel rotated: full=%v calls=%d", full, calls)
	}
}

func TestGuardedAppendRotatingFreshFailure(t *testing.T) {
	failure := errors.New("no memory for you")
	guarded := NewGuarded(mustNew(t, 8))
	defer guarded.Destroy()

	if err := guarded.AppendAnnotation([]byte("abcd")); err != nil {
		t.Fatalf("append: %v", err)
	}
	before := guarded.Snapshot()

	full, err := guarded.AppendRotating([]byte("e"), func() (*Kernel, error) { return nil, failure })
	if !errors.Is(err, failure) || full != nil {
		t.Fatalf("got full=%v err=%v, want the fresh error", full, err)
	}
	if !bytes.Equal(guarded.Snapshot(), before) {
		t.Fatal("failed rotation changed the kernel")
	}
}

func TestGuardedSwap(t *testing.T) {
	guarded := NewGuarded(mustNew(t, 32))
	defer guarded.Destroy()

	if err := guarded.AppendAnnotation([]byte("old")); err != nil {
		t.Fatalf("append: %v", err)
	}
	previous := guarded.Swap(mustNew(t, 64))
	defer previous.Destroy()

	if previous.Len() != PrefixSize+3 {
		t.Fatalf("previous kernel Len() = %d", previous.Len())
	}
	if guarded.Len() != 0 || guarded.MaxBytes() != 64 {
		t.Fatalf("swapped-in kernel Len %d MaxBytes %d", guarded.Len(), guarded.MaxBytes())
	}
}

func TestGuardedDestroy(t *testing.T) {
	guarded := NewGuarded(mustNew(t, 32))
	guarded.Destroy()

	if err := guarded.AppendAnnotation(nil); !errors.Is(err, ErrInvalidArgs) {
		t.Fatalf("got %v, want ErrInvalidArgs", err)
	}
	if snapshot := guarded.Snapshot(); snapshot != nil {
		t.Fatalf("Snapshot() after destroy = %v, want nil", snapshot)
	}
}
