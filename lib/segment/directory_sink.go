// Copyright 2026 The Scenic Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || linux

package segment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// lockFileName is held with an exclusive flock for the life of a
// DirectorySink.
const lockFileName = ".lock"

// ErrDirectoryLocked is returned by NewDirectorySink when another sink
// already owns the directory.
var ErrDirectoryLocked = errors.New("segment: directory is locked by another sink")

// DirectorySink writes each segment to its own file in a directory.
// Files appear atomically: a segment is written to a temporary file,
// synced, renamed into place, and the directory synced, so a reader
// never observes a partial segment and a published segment survives a
// crash.
//
// One sink owns a directory at a time. Sequence numbers restart with
// every relay process, so two relays writing the same directory could
// overwrite each other's segments.
type DirectorySink struct {
	directory   string
	directoryFd int
	lockFd      int
}

// NewDirectorySink creates directory if needed, takes its lock, and
// returns a sink writing into it. Close releases the lock.
func NewDirectorySink(directory string) (*DirectorySink, error) {
	if directory == "" {
		return nil, fmt.Errorf("segment: empty sink directory")
	}
	if err := os.MkdirAll(directory, 0o750); err != nil {
		return nil, fmt.Errorf("creating segment directory %s: %w", directory, err)
	}

	lockFd, err := unix.Open(filepath.Join(directory, lockFileName), unix.O_CREAT|unix.O_RDWR|unix.O_CLOEXEC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file in %s: %w", directory, err)
	}
	if err := unix.Flock(lockFd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		unix.Close(lockFd)
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryLocked, directory)
		}
		return nil, fmt.Errorf("locking %s: %w", directory, err)
	}

	directoryFd, err := unix.Open(directory, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		unix.Close(lockFd)
		return nil, fmt.Errorf("opening segment directory %s: %w", directory, err)
	}

	return &DirectorySink{
		directory:   directory,
		directoryFd: directoryFd,
		lockFd:      lockFd,
	}, nil
}

// Directory returns the directory segments are written to.
func (s *DirectorySink) Directory() string {
	return s.directory
}

// Ship writes segment to <directory>/<segment.FileName()>. Shipping
// the same segment twice overwrites the file with identical content.
func (s *DirectorySink) Ship(ctx context.Context, segment *Segment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := segment.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encoding segment %d: %w", segment.Sequence, err)
	}

	temporary, err := os.CreateTemp(s.directory, ".segment-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary segment file: %w", err)
	}
	temporaryPath := temporary.Name()
	committed := false
	defer func() {
		if !committed {
			temporary.Close()
			os.Remove(temporaryPath)
		}
	}()

	if _, err := temporary.Write(data); err != nil {
		return fmt.Errorf("writing segment %d: %w", segment.Sequence, err)
	}
	if err := temporary.Sync(); err != nil {
		return fmt.Errorf("syncing segment %d: %w", segment.Sequence, err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("closing segment %d: %w", segment.Sequence, err)
	}

	finalPath := filepath.Join(s.directory, segment.FileName())
	if err := os.Rename(temporaryPath, finalPath); err != nil {
		return fmt.Errorf("publishing segment %d: %w", segment.Sequence, err)
	}
	committed = true

	// The rename is durable only once the directory entry is.
	if err := unix.Fsync(s.directoryFd); err != nil {
		return fmt.Errorf("syncing segment directory after %d: %w", segment.Sequence, err)
	}
	return nil
}

// Close releases the directory lock. The sink must not be used
// afterwards.
func (s *DirectorySink) Close() error {
	var firstErr error
	if err := unix.Close(s.directoryFd); err != nil {
		firstErr = fmt.Errorf("closing segment directory: %w", err)
	}
	// Closing the descriptor drops the flock.
	if err := unix.Close(s.lockFd); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing lock file: %w", err)
	}
	return firstErr
}
