// Copyright 2026 The Scenic Authors
// SPDX-License-Identifier: Apache-2.0

package eventkernel

import (
	"errors"
	"sync"
)

// Guarded serializes access to a Kernel so that it can be shared by
// several goroutines. Reads go through Snapshot, which copies, because
// a borrowed view from EventBytes would race with the next append.
//
// Thread-safe: all methods may be called concurrently.
type Guarded struct {
	mu     sync.Mutex
	kernel *Kernel
}

// NewGuarded takes ownership of kernel. The caller must not use kernel
// directly afterwards.
func NewGuarded(kernel *Kernel) *Guarded {
	return &Guarded{kernel: kernel}
}

// AppendAnnotation appends payload to the wrapped kernel. Errors are
// those of Kernel.AppendAnnotation.
func (g *Guarded) AppendAnnotation(payload []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.kernel.AppendAnnotation(payload)
}

// AppendRotating appends payload, and if the wrapped kernel is full,
// replaces it with a kernel from fresh and appends there instead. The
// full kernel is returned so the caller can hand its bytes on; it is
// no longer reachable through g. The returned kernel is nil when no
// rotation happened.
//
// An empty kernel is never rotated: a payload that does not fit an
// empty kernel can never fit, and ErrCapacityExceeded is returned.
// When fresh fails, its error is returned and nothing changes. When
// the payload does not fit the fresh kernel either, the rotation
// still stands and the append error is returned with the full kernel.
func (g *Guarded) AppendRotating(payload []byte, fresh func() (*Kernel, error)) (*Kernel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	err := g.kernel.AppendAnnotation(payload)
	if !errors.Is(err, ErrCapacityExceeded) || g.kernel.Len() == 0 {
		return nil, err
	}

	next, err := fresh()
	if err != nil {
		return nil, err
	}
	full := g.kernel
	g.kernel = next
	return full, g.kernel.AppendAnnotation(payload)
}

// Swap replaces the wrapped kernel with next and returns the previous
// one, which now belongs to the caller.
func (g *Guarded) Swap(next *Kernel) *Kernel {
	g.mu.Lock()
	defer g.mu.Unlock()
	previous := g.kernel
	g.kernel = next
	return previous
}

// Snapshot returns a copy of the committed bytes. Unlike EventBytes,
// the result may be retained indefinitely. Returns nil for a destroyed
// kernel.
func (g *Guarded) Snapshot() []byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	view := g.kernel.EventBytes()
	if view == nil {
		return nil
	}
	snapshot := make([]byte, len(view))
	copy(snapshot, view)
	return snapshot
}

// Len returns the committed length of the wrapped kernel.
func (g *Guarded) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.kernel.Len()
}

// MaxBytes returns the byte budget of the wrapped kernel.
func (g *Guarded) MaxBytes() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.kernel.MaxBytes()
}

// Destroy destroys the wrapped kernel.
func (g *Guarded) Destroy() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.kernel.Destroy()
}
