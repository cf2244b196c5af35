// Package checkpoint persists acknowledged source offsets so workers can
// resume a partition after a crash or restart instead of re-reading it.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

const filePerm = 0644

// Store is a file-backed map of partition index to last acknowledged offset.
// Writes go through an atomic rename so a crash mid-write never corrupts the
// previous checkpoint.
type Store struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	offsets map[int]int64
}

// NewStore loads the checkpoint file at path, creating an empty store when
// the file does not exist yet.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	s := &Store{
		path:    path,
		logger:  logger.With("component", "checkpoint_store"),
		offsets: make(map[int]int64),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &s.offsets); err != nil {
		// A torn file means we lose resumption, not correctness; start fresh.
		s.logger.Warn("checkpoint file unreadable, starting from scratch", "error", err)
		s.offsets = make(map[int]int64)
	}
	return s, nil
}

// Offset returns the last acknowledged offset for a partition, or 0.
func (s *Store) Offset(partition int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offsets[partition]
}

// Commit records an acknowledged offset and persists the store. Offsets only
// move forward; a stale commit from a decommissioned worker is a no-op.
func (s *Store) Commit(partition int, offset int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if offset <= s.offsets[partition] {
		return nil
	}
	s.offsets[partition] = offset
	return s.persist()
}

// Reset clears a partition's offset, forcing the next open to start from the
// partition beginning.
func (s *Store) Reset(partition int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.offsets, partition)
	return s.persist()
}

// persist writes the offsets atomically. Caller holds the lock.
func (s *Store) persist() error {
	data, err := json.Marshal(s.offsets)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoints: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, filePerm); err != nil {
		return fmt.Errorf("failed to write checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}
	return nil
}

// InDir is a convenience for tests and tools: a store under dir with the
// default file name.
func InDir(dir string, logger *slog.Logger) (*Store, error) {
	return NewStore(filepath.Join(dir, "checkpoints.json"), logger)
}
