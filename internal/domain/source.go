package domain

import (
	"context"
	"errors"
	"io"
)

// ErrPartitionExhausted reports that a partition's input is fully consumed.
// Sources may also return io.EOF; SourceExhausted recognizes both.
var ErrPartitionExhausted = errors.New("partition exhausted")

// SourceExhausted reports whether err is a clean end-of-input signal.
func SourceExhausted(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, ErrPartitionExhausted)
}

// Partition is one disjoint slice of the total input assigned to a worker.
// For byte-range sources Start/End delimit the range (End < 0 means open
// ended); stream-backed sources only use the index.
type Partition struct {
	Index int   `json:"index"`
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Chunk is one opaque unit of raw input plus the offset to acknowledge once
// every line in it has been processed.
type Chunk struct {
	Data []byte
	// Offset identifies the position after this chunk for resumption.
	// Stream-backed sources use ID instead.
	Offset int64
	// ID is the source-native message id, when the source has one.
	ID string
}

// ChunkSource yields the raw input for one partition. Next blocks until a
// chunk is available, the context is cancelled, or the partition is
// exhausted (io.EOF / ErrPartitionExhausted).
type ChunkSource interface {
	Next(ctx context.Context) (Chunk, error)
	// Ack marks a chunk fully processed. Sources without resumption support
	// implement it as a no-op.
	Ack(ctx context.Context, chunk Chunk) error
	Close() error
}

// SourceFactory opens a ChunkSource for a partition, resuming from the last
// acknowledged offset when the underlying source supports it. The supervisor
// calls it once per spawn and once per respawn.
type SourceFactory interface {
	Open(ctx context.Context, partition Partition, consumer string) (ChunkSource, error)
	// Partitions splits the total input into count disjoint partitions.
	Partitions(count int) ([]Partition, error)
}
