package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/nxadm/tail"

	"github.com/user/log-analyzer/internal/adapter/checkpoint"
	"github.com/user/log-analyzer/internal/domain"
)

// TailFactory follows live files, surviving rotation. Files are assigned
// round-robin to partitions; each partition tails its own disjoint file set,
// so there is no byte-range math and the stream is open ended.
type TailFactory struct {
	paths       []string
	checkpoints *checkpoint.Store
	logger      *slog.Logger

	partitionCount int
}

// NewTailFactory creates a factory tailing the given files.
func NewTailFactory(paths []string, checkpoints *checkpoint.Store, logger *slog.Logger) *TailFactory {
	return &TailFactory{
		paths:       paths,
		checkpoints: checkpoints,
		logger:      logger.With("component", "tail_source"),
	}
}

// Partitions assigns one open-ended partition per worker, never more than
// there are files to tail.
func (f *TailFactory) Partitions(count int) ([]domain.Partition, error) {
	if len(f.paths) == 0 {
		return nil, fmt.Errorf("tail source requires at least one file")
	}
	if count > len(f.paths) {
		count = len(f.paths)
	}
	if count < 1 {
		count = 1
	}
	f.partitionCount = count

	partitions := make([]domain.Partition, count)
	for i := range partitions {
		partitions[i] = domain.Partition{Index: i, Start: 0, End: -1}
	}
	return partitions, nil
}

// Open starts tailing every file assigned to the partition. Offsets are
// checkpointed and resumed only for single-file partitions; offsets from
// different files cannot share one counter.
func (f *TailFactory) Open(ctx context.Context, partition domain.Partition, consumer string) (domain.ChunkSource, error) {
	if f.partitionCount == 0 {
		f.partitionCount = 1
	}
	var assigned []string
	for i, path := range f.paths {
		if i%f.partitionCount == partition.Index {
			assigned = append(assigned, path)
		}
	}
	if len(assigned) == 0 {
		return nil, fmt.Errorf("no files assigned to partition %d", partition.Index)
	}

	var store *checkpoint.Store
	if len(assigned) == 1 {
		store = f.checkpoints
	}

	src := &tailSource{
		partition:   partition,
		checkpoints: store,
		lines:       make(chan domain.Chunk, 1024),
		stop:        make(chan struct{}),
		logger:      f.logger,
	}

	for _, path := range assigned {
		cfg := tail.Config{
			Follow:    true,
			ReOpen:    true, // survive log rotation
			MustExist: false,
			Poll:      true, // fall back when inotify is unavailable
			Logger:    tail.DiscardingLogger,
		}
		if store != nil {
			if acked := store.Offset(partition.Index); acked > 0 {
				cfg.Location = &tail.SeekInfo{Offset: acked, Whence: io.SeekStart}
			}
		}

		tailer, err := tail.TailFile(path, cfg)
		if err != nil {
			src.Close()
			return nil, fmt.Errorf("failed to tail %s: %w", path, err)
		}
		src.tails = append(src.tails, tailer)
		src.wg.Add(1)
		go src.pump(tailer)
	}

	f.logger.Debug("opened tail partition", "partition", partition.Index, "files", assigned)
	return src, nil
}

type tailSource struct {
	partition   domain.Partition
	checkpoints *checkpoint.Store
	logger      *slog.Logger

	lines chan domain.Chunk
	stop  chan struct{}
	tails []*tail.Tail
	wg    sync.WaitGroup

	closeOnce sync.Once
}

// pump converts tailed lines into chunks. Each chunk is one line including
// its delimiter, so the pipeline's splitter sees a normal byte stream.
func (s *tailSource) pump(t *tail.Tail) {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case line, ok := <-t.Lines:
			if !ok {
				return
			}
			if line.Err != nil {
				s.logger.Warn("tail read error", "file", t.Filename, "error", line.Err)
				continue
			}
			chunk := domain.Chunk{
				Data:   append([]byte(line.Text), '\n'),
				Offset: line.SeekInfo.Offset,
			}
			select {
			case s.lines <- chunk:
			case <-s.stop:
				return
			}
		}
	}
}

// Next blocks until a tailed line arrives or the context ends. A follow-mode
// stream never exhausts on its own.
func (s *tailSource) Next(ctx context.Context) (domain.Chunk, error) {
	select {
	case <-ctx.Done():
		return domain.Chunk{}, ctx.Err()
	case <-s.stop:
		return domain.Chunk{}, domain.ErrPartitionExhausted
	case chunk, ok := <-s.lines:
		if !ok {
			return domain.Chunk{}, domain.ErrPartitionExhausted
		}
		return chunk, nil
	}
}

// Ack checkpoints the line offset for single-file partitions.
func (s *tailSource) Ack(ctx context.Context, chunk domain.Chunk) error {
	if s.checkpoints == nil {
		return nil
	}
	return s.checkpoints.Commit(s.partition.Index, chunk.Offset)
}

func (s *tailSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		for _, t := range s.tails {
			t.Stop()
			t.Cleanup()
		}
	})
	s.wg.Wait()
	return nil
}
