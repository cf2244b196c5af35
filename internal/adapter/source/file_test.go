package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/user/log-analyzer/internal/adapter/checkpoint"
	"github.com/user/log-analyzer/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.log")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func drainSource(t *testing.T, src domain.ChunkSource) []string {
	t.Helper()
	var lines []string
	var carry string
	for {
		chunk, err := src.Next(context.Background())
		if domain.SourceExhausted(err) {
			break
		}
		if err != nil {
			t.Fatalf("unexpected source error: %v", err)
		}
		text := carry + string(chunk.Data)
		parts := strings.Split(text, "\n")
		carry = parts[len(parts)-1]
		lines = append(lines, parts[:len(parts)-1]...)
	}
	if carry != "" {
		lines = append(lines, carry)
	}
	return lines
}

func TestFileFactory_PartitionsCoverEveryLineOnce(t *testing.T) {
	var sb strings.Builder
	var want []string
	for i := 0; i < 200; i++ {
		line := fmt.Sprintf("line-%03d with some padding text to vary lengths %s", i, strings.Repeat("x", i%17))
		want = append(want, line)
		sb.WriteString(line + "\n")
	}
	path := writeTempFile(t, sb.String())

	for _, workers := range []int{1, 2, 3, 7} {
		t.Run(fmt.Sprintf("Workers=%d", workers), func(t *testing.T) {
			factory := NewFileFactory(path, 256, nil, testLogger())
			partitions, err := factory.Partitions(workers)
			if err != nil {
				t.Fatalf("failed to partition: %v", err)
			}
			if len(partitions) != workers {
				t.Fatalf("expected %d partitions, got %d", workers, len(partitions))
			}

			var got []string
			for _, p := range partitions {
				src, err := factory.Open(context.Background(), p, "test")
				if err != nil {
					t.Fatalf("failed to open partition %d: %v", p.Index, err)
				}
				got = append(got, drainSource(t, src)...)
				src.Close()
			}

			sort.Strings(got)
			wantSorted := append([]string(nil), want...)
			sort.Strings(wantSorted)
			if len(got) != len(wantSorted) {
				t.Fatalf("expected %d lines total, got %d", len(wantSorted), len(got))
			}
			for i := range got {
				if got[i] != wantSorted[i] {
					t.Fatalf("line mismatch at %d: %q vs %q", i, got[i], wantSorted[i])
				}
			}
		})
	}
}

func TestFileSource_ChunksEndOnLineBoundaries(t *testing.T) {
	content := strings.Repeat("aaaa bbbb cccc dddd\n", 100)
	path := writeTempFile(t, content)

	factory := NewFileFactory(path, 64, nil, testLogger())
	partitions, err := factory.Partitions(1)
	if err != nil {
		t.Fatalf("failed to partition: %v", err)
	}
	src, err := factory.Open(context.Background(), partitions[0], "test")
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	defer src.Close()

	for {
		chunk, err := src.Next(context.Background())
		if domain.SourceExhausted(err) {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if chunk.Data[len(chunk.Data)-1] != '\n' {
			t.Fatalf("chunk does not end on a line boundary: %q", chunk.Data)
		}
	}
}

func TestFileSource_ResumeFromCheckpoint(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString(fmt.Sprintf("entry %02d\n", i))
	}
	path := writeTempFile(t, sb.String())

	store, err := checkpoint.InDir(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("failed to create checkpoint store: %v", err)
	}

	factory := NewFileFactory(path, 90, store, testLogger())
	partitions, err := factory.Partitions(1)
	if err != nil {
		t.Fatalf("failed to partition: %v", err)
	}

	// First pass: read two chunks, acknowledge only the first.
	src, err := factory.Open(context.Background(), partitions[0], "test")
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	first, err := src.Next(context.Background())
	if err != nil {
		t.Fatalf("first read failed: %v", err)
	}
	if _, err := src.Next(context.Background()); err != nil {
		t.Fatalf("second read failed: %v", err)
	}
	if err := src.Ack(context.Background(), first); err != nil {
		t.Fatalf("ack failed: %v", err)
	}
	src.Close()

	// Simulate a crash and respawn: the replacement resumes after the acked
	// chunk, so it re-reads the unacknowledged second chunk but nothing from
	// the first.
	replacement, err := factory.Open(context.Background(), partitions[0], "test")
	if err != nil {
		t.Fatalf("failed to reopen: %v", err)
	}
	defer replacement.Close()

	lines := drainSource(t, replacement)
	firstLines := strings.Count(string(first.Data), "\n")
	if len(lines) != 50-firstLines {
		t.Errorf("expected %d remaining lines after resume, got %d", 50-firstLines, len(lines))
	}
	if lines[0] == "entry 00" {
		t.Error("replacement re-read acknowledged data")
	}
}

func TestFileSource_UnterminatedTrailingLine(t *testing.T) {
	path := writeTempFile(t, "complete\npartial without newline")
	factory := NewFileFactory(path, 1024, nil, testLogger())
	partitions, err := factory.Partitions(1)
	if err != nil {
		t.Fatalf("failed to partition: %v", err)
	}
	src, err := factory.Open(context.Background(), partitions[0], "test")
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	defer src.Close()

	lines := drainSource(t, src)
	if len(lines) != 2 || lines[1] != "partial without newline" {
		t.Errorf("unexpected lines: %v", lines)
	}
}
