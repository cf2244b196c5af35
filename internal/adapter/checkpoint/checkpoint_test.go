package checkpoint

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStore_CommitAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkpoints.json")

	store, err := NewStore(path, testLogger())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if err := store.Commit(0, 4096); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if err := store.Commit(2, 128); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	// Simulate a restart.
	reloaded, err := NewStore(path, testLogger())
	if err != nil {
		t.Fatalf("failed to reload store: %v", err)
	}
	if got := reloaded.Offset(0); got != 4096 {
		t.Errorf("expected offset 4096 for partition 0, got %d", got)
	}
	if got := reloaded.Offset(2); got != 128 {
		t.Errorf("expected offset 128 for partition 2, got %d", got)
	}
	if got := reloaded.Offset(1); got != 0 {
		t.Errorf("expected zero offset for unknown partition, got %d", got)
	}
}

func TestStore_OffsetsOnlyMoveForward(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "checkpoints.json"), testLogger())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if err := store.Commit(0, 100); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	// A late ack from a decommissioned worker must not rewind the offset.
	if err := store.Commit(0, 50); err != nil {
		t.Fatalf("stale commit failed: %v", err)
	}
	if got := store.Offset(0); got != 100 {
		t.Errorf("expected offset 100, got %d", got)
	}
}

func TestStore_CorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoints.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("failed to seed corrupt file: %v", err)
	}

	store, err := NewStore(path, testLogger())
	if err != nil {
		t.Fatalf("corrupt file should not be fatal: %v", err)
	}
	if got := store.Offset(0); got != 0 {
		t.Errorf("expected empty store, got offset %d", got)
	}
}

func TestStore_Reset(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "checkpoints.json"), testLogger())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := store.Commit(3, 999); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if err := store.Reset(3); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if got := store.Offset(3); got != 0 {
		t.Errorf("expected offset 0 after reset, got %d", got)
	}
}
