// Package source provides the ChunkSource implementations: partitioned file
// reading, follow-mode tailing, and redis-streams consumption.
package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/user/log-analyzer/internal/adapter/checkpoint"
	"github.com/user/log-analyzer/internal/domain"
)

const defaultChunkSize = 64 * 1024

// FileFactory opens byte-range partitions of a single file. Partition
// boundaries rarely fall on line boundaries, so each partition skips its
// first partial line and reads one line past its end; every line is owned by
// exactly one partition. Emitted chunks always end on a line boundary, which
// makes acknowledged offsets exact resumption points.
type FileFactory struct {
	path        string
	chunkSize   int
	checkpoints *checkpoint.Store
	logger      *slog.Logger
}

// NewFileFactory creates a factory for the given file. The checkpoint store
// is optional; without it partitions always start from their beginning.
func NewFileFactory(path string, chunkSize int, checkpoints *checkpoint.Store, logger *slog.Logger) *FileFactory {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &FileFactory{
		path:        path,
		chunkSize:   chunkSize,
		checkpoints: checkpoints,
		logger:      logger.With("component", "file_source"),
	}
}

// Partitions splits the file into count contiguous byte ranges.
func (f *FileFactory) Partitions(count int) ([]domain.Partition, error) {
	stat, err := os.Stat(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat source file %s: %w", f.path, err)
	}
	size := stat.Size()

	if count < 1 {
		count = 1
	}
	partitions := make([]domain.Partition, 0, count)
	step := size / int64(count)
	for i := 0; i < count; i++ {
		start := int64(i) * step
		end := start + step
		if i == count-1 {
			end = size
		}
		partitions = append(partitions, domain.Partition{Index: i, Start: start, End: end})
	}
	return partitions, nil
}

// Open implements domain.SourceFactory, resuming from the last acknowledged
// offset when one is checkpointed past the partition start.
func (f *FileFactory) Open(ctx context.Context, partition domain.Partition, consumer string) (domain.ChunkSource, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file %s: %w", f.path, err)
	}

	start := partition.Start
	resumed := false
	if f.checkpoints != nil {
		if acked := f.checkpoints.Offset(partition.Index); acked > start {
			start = acked
			resumed = true
		}
	}

	if _, err := file.Seek(start, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to seek to offset %d: %w", start, err)
	}

	src := &fileSource{
		file:        file,
		partition:   partition,
		emitOffset:  start,
		chunkSize:   f.chunkSize,
		checkpoints: f.checkpoints,
	}

	if resumed {
		// Acknowledged offsets sit on line boundaries; the final chunk of a
		// partition ends past its byte range, so an offset beyond End means
		// the partition is already complete.
		if partition.End >= 0 && start > partition.End {
			src.done = true
		}
	} else if start > 0 {
		// The first partial line belongs to the previous partition.
		if err := src.skipPartialLine(); err != nil {
			file.Close()
			return nil, err
		}
	}

	f.logger.Debug("opened file partition",
		"partition", partition.Index, "start", start, "end", partition.End, "resumed", resumed)
	return src, nil
}

type fileSource struct {
	file        *os.File
	partition   domain.Partition
	chunkSize   int
	checkpoints *checkpoint.Store

	mu         sync.Mutex
	pending    []byte // read but not yet emitted; starts at emitOffset
	emitOffset int64  // absolute offset of the end of the last emitted chunk
	eof        bool
	done       bool
}

// skipPartialLine advances past the first newline so the partition starts on
// a whole line. If that newline already lies at or past the partition end,
// the whole range is the interior of a line owned by the previous partition.
func (s *fileSource) skipPartialLine() error {
	buf := make([]byte, 4096)
	for {
		n, err := s.file.Read(buf)
		if n > 0 {
			if idx := bytes.IndexByte(buf[:n], '\n'); idx >= 0 {
				s.emitOffset += int64(idx + 1)
				s.pending = append(s.pending, buf[idx+1:n]...)
				if s.partition.End >= 0 && s.emitOffset > s.partition.End {
					s.done = true
				}
				return nil
			}
			s.emitOffset += int64(n)
		}
		if err == io.EOF {
			s.done = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to scan for line boundary: %w", err)
		}
	}
}

// Next returns the partition's next chunk. Chunks end on line boundaries;
// the final chunk extends past the partition end to the next newline so no
// line is split between partitions.
func (s *fileSource) Next(ctx context.Context) (domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return domain.Chunk{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.done {
			return domain.Chunk{}, domain.ErrPartitionExhausted
		}

		// Pending data reaches past the partition end: emit up to the first
		// newline at or after the boundary, then finish.
		if s.partition.End >= 0 && s.emitOffset+int64(len(s.pending)) > s.partition.End {
			cut := int(s.partition.End - s.emitOffset)
			if cut < 0 {
				cut = 0
			}
			if idx := bytes.IndexByte(s.pending[cut:], '\n'); idx >= 0 {
				return s.emit(cut+idx+1, true), nil
			}
			if s.eof {
				return s.emit(len(s.pending), true), nil
			}
		} else if s.eof {
			if len(s.pending) == 0 {
				s.done = true
				return domain.Chunk{}, domain.ErrPartitionExhausted
			}
			return s.emit(len(s.pending), true), nil
		} else if len(s.pending) >= s.chunkSize {
			if idx := bytes.LastIndexByte(s.pending, '\n'); idx >= 0 {
				return s.emit(idx+1, false), nil
			}
			// A single line longer than the chunk size; keep reading.
		}

		if err := s.fill(); err != nil {
			return domain.Chunk{}, err
		}
	}
}

// fill reads more data into pending. Caller holds the lock.
func (s *fileSource) fill() error {
	buf := make([]byte, s.chunkSize)
	n, err := s.file.Read(buf)
	if n > 0 {
		s.pending = append(s.pending, buf[:n]...)
	}
	if err == io.EOF {
		s.eof = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read source file: %w", err)
	}
	return nil
}

// emit hands out the first n pending bytes. Caller holds the lock.
func (s *fileSource) emit(n int, final bool) domain.Chunk {
	data := make([]byte, n)
	copy(data, s.pending)
	s.pending = append([]byte(nil), s.pending[n:]...)
	s.emitOffset += int64(n)
	if final {
		s.done = true
	}
	return domain.Chunk{Data: data, Offset: s.emitOffset}
}

// Ack checkpoints the chunk's end offset.
func (s *fileSource) Ack(ctx context.Context, chunk domain.Chunk) error {
	if s.checkpoints == nil {
		return nil
	}
	return s.checkpoints.Commit(s.partition.Index, chunk.Offset)
}

func (s *fileSource) Close() error {
	return s.file.Close()
}
