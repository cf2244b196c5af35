package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/user/log-analyzer/internal/domain"
)

// Worker owns one pipeline and one partition of the input. It pulls chunks,
// drives them through the pipeline, acknowledges them once fully processed,
// and emits periodic metrics snapshots. A worker that exits without being
// drained is treated as crashed by the supervisor.
type Worker struct {
	id        string
	partition domain.Partition
	source    domain.ChunkSource
	pipeline  *Pipeline
	logger    *slog.Logger

	snapshotInterval time.Duration
	onSnapshot       func(domain.MetricsSnapshot)

	// pullCtx and pullCancel are set in Start; drainMu guards them so a
	// drain requested before Start is safe.
	pullCtx    context.Context
	pullCancel context.CancelFunc

	drainOnce sync.Once
	draining  bool
	drainMu   sync.Mutex

	done      chan struct{}
	exhausted bool
	runErr    error
}

// NewWorker creates a worker. onSnapshot receives periodic and final
// snapshots; it must be fast (the supervisor just stores them).
func NewWorker(
	id string,
	partition domain.Partition,
	source domain.ChunkSource,
	pipeline *Pipeline,
	snapshotInterval time.Duration,
	onSnapshot func(domain.MetricsSnapshot),
	logger *slog.Logger,
) *Worker {
	if snapshotInterval <= 0 {
		snapshotInterval = time.Second
	}
	return &Worker{
		id:               id,
		partition:        partition,
		source:           source,
		pipeline:         pipeline,
		snapshotInterval: snapshotInterval,
		onSnapshot:       onSnapshot,
		logger:           logger.With("component", "worker", "worker_id", id, "partition", partition.Index),
		done:             make(chan struct{}),
	}
}

// ID returns the worker's id.
func (w *Worker) ID() string { return w.id }

// Partition returns the worker's assignment.
func (w *Worker) Partition() domain.Partition { return w.partition }

// Start begins consuming the partition. The context stops the worker hard;
// Drain stops it gracefully. A drain requested before Start takes effect
// immediately: the worker starts with its pull already cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.drainMu.Lock()
	w.pullCtx, w.pullCancel = context.WithCancel(ctx)
	if w.draining {
		w.pullCancel()
	}
	w.drainMu.Unlock()
	go w.run(ctx)
}

// Snapshot returns a consistent point-in-time view of the worker's metrics.
// Safe to call concurrently with processing.
func (w *Worker) Snapshot() domain.MetricsSnapshot {
	return w.pipeline.State().Snapshot()
}

// Drain stops pulling new input. Data already pulled is fully processed, a
// final snapshot is emitted, then Done closes. Idempotent.
func (w *Worker) Drain() {
	w.drainOnce.Do(func() {
		w.drainMu.Lock()
		w.draining = true
		cancel := w.pullCancel
		w.drainMu.Unlock()
		w.logger.Info("drain requested")
		if cancel != nil {
			cancel()
		}
	})
}

// Draining reports whether a drain was requested.
func (w *Worker) Draining() bool {
	w.drainMu.Lock()
	defer w.drainMu.Unlock()
	return w.draining
}

// Done closes when the worker has fully stopped.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Exhausted reports whether the partition's input ended cleanly. Valid after
// Done closes.
func (w *Worker) Exhausted() bool { return w.exhausted }

// Err returns the terminal error, nil for clean completion or drain. Valid
// after Done closes.
func (w *Worker) Err() error { return w.runErr }

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	defer func() {
		if r := recover(); r != nil {
			w.runErr = fmt.Errorf("worker panicked: %v", r)
			w.logger.Error("worker panicked", "panic", r)
		}
	}()
	defer w.source.Close()

	// Snapshots come from their own goroutine so a worker blocked on an idle
	// source still reports as healthy.
	stopSnapshots := make(chan struct{})
	defer close(stopSnapshots)
	go func() {
		ticker := time.NewTicker(w.snapshotInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopSnapshots:
				return
			case <-ticker.C:
				w.emitSnapshot()
			}
		}
	}()

	w.emitSnapshot()

	for {
		chunk, err := w.source.Next(w.pullCtx)
		if err != nil {
			switch {
			case domain.SourceExhausted(err):
				w.exhausted = true
				w.logger.Info("partition exhausted")
			case w.Draining():
				// The pull context was cancelled by Drain; everything pulled
				// so far is already processed.
				w.logger.Info("drained")
			case ctx.Err() != nil:
				w.logger.Info("stopped by shutdown")
			default:
				w.runErr = fmt.Errorf("source failed: %w", err)
				w.logger.Error("source failed", "error", err)
			}
			w.finish(ctx)
			return
		}

		w.pipeline.Process(ctx, chunk.Data)

		if err := w.source.Ack(ctx, chunk); err != nil {
			// A failed ack costs at most a redelivery after restart; the
			// chunk itself was processed.
			w.logger.Warn("failed to acknowledge chunk", "error", err)
		}
	}
}

// finish flushes the pipeline, waits for in-flight incident reports, and
// emits the final snapshot.
func (w *Worker) finish(ctx context.Context) {
	w.pipeline.Finish(ctx)
	w.emitSnapshot()
}

func (w *Worker) emitSnapshot() {
	if w.onSnapshot != nil {
		w.onSnapshot(w.Snapshot())
	}
}
