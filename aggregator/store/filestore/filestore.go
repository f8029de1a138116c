// Package filestore persists the checkpoint snapshot as a single JSON
// document on disk. Every save is a whole-snapshot overwrite via a temp
// file and rename, so readers never observe a partially written record.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/screwyprof/escrowscan/aggregator"
)

// Sentinel errors for store operations
var (
	ErrCheckpointCorrupt = errors.New("checkpoint file corrupt")
	ErrCheckpointRead    = errors.New("checkpoint file read failed")
	ErrCheckpointWrite   = errors.New("checkpoint file write failed")
)

// Store implements aggregator.Store on a single JSON file
type Store struct {
	path string
}

// New creates a store backed by the file at path. The file need not exist;
// Load treats absence as a fresh, zero-valued checkpoint.
func New(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted checkpoint. A missing file yields a zero-valued
// checkpoint; an unreadable or unparsable file is fatal, never a silent
// restart from scratch.
func (s *Store) Load(_ context.Context) (*aggregator.Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return aggregator.NewCheckpoint(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCheckpointRead, err)
	}

	cp := aggregator.NewCheckpoint()
	if err := json.Unmarshal(data, cp); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCheckpointCorrupt, s.path, err)
	}
	return cp, nil
}

// Save atomically replaces the file with the full snapshot. Written to a
// temp file in the same directory first, then renamed over the target, so
// a crash mid-write leaves the previous snapshot intact.
func (s *Store) Save(_ context.Context, cp *aggregator.Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCheckpointWrite, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".checkpoint-*.json")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCheckpointWrite, err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: %w", ErrCheckpointWrite, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: %w", ErrCheckpointWrite, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: %w", ErrCheckpointWrite, err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: %w", ErrCheckpointWrite, err)
	}
	return nil
}
