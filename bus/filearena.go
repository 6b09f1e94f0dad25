package bus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ArenaFile is a single rolling output file: an exclusive-mode shared-memory
// arena in the original system, a plain file here whose capacity is tracked
// as a number, not reserved on disk — the real allocator is an out-of-scope
// external collaborator (see SPEC_FULL.md §4.3).
type ArenaFile interface {
	// Write appends the packet to the arena. FileArena writes the payload
	// bytes only; the ID and headers are not stored.
	Write(pkt Packet) error
	// UsedBytes returns the arena's current used-space high-water mark.
	UsedBytes() uint64
	// WouldEvict reports whether writing serialSize more bytes would exceed
	// the arena's fixed capacity, forcing an eviction of older data.
	WouldEvict(serialSize uint64) bool
	// Close shrinks the backing file to its used space and closes the
	// handle. The file remains at its in-progress path; Arena.Rename moves
	// it to its final name.
	Close() error
}

// Arena creates, finalizes, and removes rolling output files.
type Arena interface {
	// Create opens a new exclusive arena file of the given capacity at path.
	Create(path string, capacity uint64) (ArenaFile, error)
	// Rename moves an in-progress file to its final name.
	Rename(inProgress, final string) error
	// Remove deletes path if present; no error if it does not exist.
	Remove(path string) error
}

// FileArena implements Arena with ordinary files on a local filesystem.
type FileArena struct{}

// NewFileArena returns the default local-filesystem Arena.
func NewFileArena() *FileArena { return &FileArena{} }

// Create opens path exclusively (fails if it already exists), reserving
// capacity bytes record-keeping purposes; the file itself grows on write.
func (FileArena) Create(path string, capacity uint64) (ArenaFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("filearena: mkdir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("filearena: create %s: %w", path, err)
	}
	return &osArenaFile{file: f, capacity: capacity}, nil
}

// Rename moves inProgress to final, the roll-over's "drop the leading dot" step.
func (FileArena) Rename(inProgress, final string) error {
	if err := os.Rename(inProgress, final); err != nil {
		return fmt.Errorf("filearena: rename %s -> %s: %w", inProgress, final, err)
	}
	return nil
}

// Remove deletes a stale in-progress file left over from a prior crash.
func (FileArena) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("filearena: remove %s: %w", path, err)
	}
	return nil
}

type osArenaFile struct {
	file      *os.File
	capacity  uint64
	usedBytes uint64
}

func (a *osArenaFile) Write(pkt Packet) error {
	n, err := a.file.Write(pkt.Payload)
	a.usedBytes += uint64(n)
	if err != nil {
		return fmt.Errorf("filearena: write: %w", err)
	}
	return nil
}

func (a *osArenaFile) UsedBytes() uint64 { return a.usedBytes }

func (a *osArenaFile) WouldEvict(serialSize uint64) bool {
	return a.usedBytes+serialSize > a.capacity
}

func (a *osArenaFile) Close() error {
	if err := a.file.Truncate(int64(a.usedBytes)); err != nil {
		_ = a.file.Close()
		return fmt.Errorf("filearena: truncate to used space: %w", err)
	}
	if err := a.file.Close(); err != nil {
		return fmt.Errorf("filearena: close: %w", err)
	}
	return nil
}

var _ Arena = (*FileArena)(nil)
