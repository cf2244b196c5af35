package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/user/log-analyzer/internal/adapter/metrics"
	"github.com/user/log-analyzer/internal/adapter/redact"
	"github.com/user/log-analyzer/internal/domain"
)

// SupervisorConfig tunes worker supervision.
type SupervisorConfig struct {
	// Concurrency is the number of worker slots; 0 means one per CPU.
	Concurrency int
	// SnapshotInterval is how often workers emit metrics snapshots.
	SnapshotInterval time.Duration
	// AggregationInterval is how often merged metrics are published.
	AggregationInterval time.Duration
	// HealthTimeout marks a worker crashed when no snapshot arrives for this
	// long.
	HealthTimeout time.Duration
	// DrainTimeout bounds how long a rolling restart waits for drainers
	// before force stopping them.
	DrainTimeout time.Duration
	// MaxRestarts bounds respawns per partition before it is marked degraded.
	MaxRestarts int

	ReportRetries int
	ReportBackoff time.Duration
	ReportQueue   int
}

func (c *SupervisorConfig) applyDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = runtime.NumCPU()
	}
	if c.SnapshotInterval <= 0 {
		c.SnapshotInterval = time.Second
	}
	if c.AggregationInterval <= 0 {
		c.AggregationInterval = 2 * time.Second
	}
	if c.HealthTimeout <= 0 {
		c.HealthTimeout = 10 * time.Second
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 30 * time.Second
	}
	if c.MaxRestarts <= 0 {
		c.MaxRestarts = 5
	}
}

// slot tracks one live worker plus the supervisor-side record that outlives
// it.
type slot struct {
	worker *Worker
	record *domain.WorkerRecord
	// restarts counts respawns of this slot's partition.
	restarts int
	// drainDeadline is set while the worker drains during a rolling restart.
	drainDeadline time.Time
	// replace marks a drainer whose partition needs a replacement once it
	// exits.
	replace bool
	cancel  context.CancelFunc
}

// Supervisor spawns one worker per partition, watches their health, respawns
// crashed ones, performs graceful rolling restarts, and periodically merges
// worker snapshots into aggregated metrics published on the event bus.
type Supervisor struct {
	cfg      SupervisorConfig
	factory  domain.SourceFactory
	parser   domain.LineParser
	detector *IncidentDetector
	redactor *redact.Redactor
	reporter domain.IncidentReporter
	bus      domain.EventPublisher
	logger   *slog.Logger
	m        *metrics.AnalyzerMetrics

	mu       sync.Mutex
	slots    map[int]*slot // live slot per partition index
	drainers []*slot       // draining workers awaiting exit
	retired  []*domain.WorkerRecord
	degraded map[int]bool

	restartCh chan struct{}
	exitCh    chan *slot
}

// NewSupervisor creates a supervisor. The redactor and metrics may be nil.
func NewSupervisor(
	cfg SupervisorConfig,
	factory domain.SourceFactory,
	parser domain.LineParser,
	detector *IncidentDetector,
	redactor *redact.Redactor,
	reporter domain.IncidentReporter,
	bus domain.EventPublisher,
	logger *slog.Logger,
	m *metrics.AnalyzerMetrics,
) *Supervisor {
	cfg.applyDefaults()
	return &Supervisor{
		cfg:       cfg,
		factory:   factory,
		parser:    parser,
		detector:  detector,
		redactor:  redactor,
		reporter:  reporter,
		bus:       bus,
		logger:    logger.With("component", "supervisor"),
		m:         m,
		slots:     make(map[int]*slot),
		degraded:  make(map[int]bool),
		restartCh: make(chan struct{}, 1),
		exitCh:    make(chan *slot, 64),
	}
}

// TriggerRestart requests a graceful rolling restart. Idempotent: repeated
// triggers while one is pending collapse into a single restart.
func (s *Supervisor) TriggerRestart() {
	select {
	case s.restartCh <- struct{}{}:
	default:
	}
}

// Run spawns the workers and supervises them until the context ends or every
// partition is exhausted. It blocks.
func (s *Supervisor) Run(ctx context.Context) error {
	partitions, err := s.factory.Partitions(s.cfg.Concurrency)
	if err != nil {
		return fmt.Errorf("failed to partition input: %w", err)
	}
	if len(partitions) == 0 {
		return fmt.Errorf("source produced no partitions")
	}

	s.logger.Info("starting workers", "count", len(partitions))
	for _, partition := range partitions {
		if err := s.spawn(ctx, partition, 0); err != nil {
			return err
		}
	}

	aggregate := time.NewTicker(s.cfg.AggregationInterval)
	defer aggregate.Stop()
	health := time.NewTicker(s.cfg.HealthTimeout / 2)
	defer health.Stop()

	for {
		select {
		case <-ctx.Done():
			s.stopAll()
			return ctx.Err()

		case sl := <-s.exitCh:
			s.handleExit(ctx, sl)
			if s.allDone() {
				s.publishAggregate()
				s.logger.Info("all partitions complete")
				return nil
			}

		case <-aggregate.C:
			s.publishAggregate()

		case <-health.C:
			s.checkHealth()

		case <-s.restartCh:
			s.rollingRestart(ctx)
		}
	}
}

// Records returns a copy of every worker record, live and retired.
func (s *Supervisor) Records() []domain.WorkerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]domain.WorkerRecord, 0, len(s.slots)+len(s.drainers)+len(s.retired))
	for _, sl := range s.slots {
		records = append(records, *sl.record)
	}
	for _, sl := range s.drainers {
		records = append(records, *sl.record)
	}
	for _, r := range s.retired {
		records = append(records, *r)
	}
	return records
}

// Aggregate merges the latest snapshots of live and retired workers. Retired
// workers contribute their final snapshot, crashed ones included, so totals
// survive restarts: a crashed worker's acknowledged work is never re-read by
// its replacement and would otherwise vanish from the totals.
func (s *Supervisor) Aggregate() domain.AggregatedMetrics {
	s.mu.Lock()
	snapshots := make([]domain.MetricsSnapshot, 0, len(s.slots)+len(s.drainers)+len(s.retired))
	for _, sl := range s.slots {
		snapshots = append(snapshots, sl.record.LastSnapshot)
	}
	for _, sl := range s.drainers {
		snapshots = append(snapshots, sl.record.LastSnapshot)
	}
	for _, r := range s.retired {
		snapshots = append(snapshots, r.LastSnapshot)
	}
	degraded := false
	for _, d := range s.degraded {
		degraded = degraded || d
	}
	s.mu.Unlock()

	agg := domain.Merge(snapshots)
	agg.Degraded = degraded
	return agg
}

func (s *Supervisor) spawn(ctx context.Context, partition domain.Partition, restarts int) error {
	workerID := uuid.NewString()

	source, err := s.factory.Open(ctx, partition, workerID)
	if err != nil {
		return fmt.Errorf("failed to open partition %d: %w", partition.Index, err)
	}

	dispatcher := NewReportDispatcher(s.reporter, nil, s.logger, s.m,
		s.cfg.ReportRetries, s.cfg.ReportBackoff, s.cfg.ReportQueue)
	pipeline := NewPipeline(workerID, s.parser, s.detector, s.redactor, dispatcher, s.bus, s.logger, s.m)
	// Report failures land in the same per-worker state the pipeline owns.
	dispatcher.state = pipeline.State()

	record := &domain.WorkerRecord{
		ID:           workerID,
		Partition:    partition,
		Status:       domain.WorkerStarting,
		RestartCount: restarts,
		StartedAt:    time.Now().UTC(),
	}

	workerCtx, cancel := context.WithCancel(ctx)
	sl := &slot{record: record, restarts: restarts, cancel: cancel}

	worker := NewWorker(workerID, partition, source, pipeline,
		s.cfg.SnapshotInterval,
		func(snap domain.MetricsSnapshot) { s.storeSnapshot(sl, snap) },
		s.logger,
	)
	sl.worker = worker

	dispatcher.Start(workerCtx)
	worker.Start(workerCtx)

	s.mu.Lock()
	record.Status = domain.WorkerRunning
	record.LastSnapshotAt = time.Now().UTC()
	s.slots[partition.Index] = sl
	s.mu.Unlock()
	s.setWorkerGauges()

	go func() {
		<-worker.Done()
		s.exitCh <- sl
	}()

	s.logger.Info("worker spawned", "worker_id", workerID, "partition", partition.Index, "restarts", restarts)
	return nil
}

// storeSnapshot records a worker's periodic snapshot. Snapshots arriving
// after the worker was retired are dropped.
func (s *Supervisor) storeSnapshot(sl *slot, snap domain.MetricsSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sl.record.Status == domain.WorkerStopped || sl.record.Status == domain.WorkerCrashed {
		return
	}
	sl.record.LastSnapshot = snap
	sl.record.LastSnapshotAt = time.Now().UTC()
}

func (s *Supervisor) handleExit(ctx context.Context, sl *slot) {
	worker := sl.worker
	partition := worker.Partition()

	crashed := worker.Err() != nil ||
		(!worker.Exhausted() && !worker.Draining() && ctx.Err() == nil)

	s.mu.Lock()
	if current, ok := s.slots[partition.Index]; ok && current == sl {
		delete(s.slots, partition.Index)
	}
	s.removeDrainer(sl)
	if crashed {
		sl.record.Status = domain.WorkerCrashed
	} else {
		sl.record.Status = domain.WorkerStopped
	}
	// The worker goroutine has fully exited, so this snapshot covers every
	// chunk it acknowledged. A crashed worker's acked work stays counted;
	// only its in-flight chunk may be double counted by the replay.
	sl.record.LastSnapshot = worker.Snapshot()
	sl.record.LastSnapshotAt = time.Now().UTC()
	s.retired = append(s.retired, sl.record)
	s.mu.Unlock()
	s.setWorkerGauges()

	if !crashed {
		s.logger.Info("worker stopped", "worker_id", worker.ID(), "partition", partition.Index,
			"exhausted", worker.Exhausted(), "drained", worker.Draining())
		if sl.replace && !worker.Exhausted() && ctx.Err() == nil {
			if err := s.spawn(ctx, partition, 0); err != nil {
				s.logger.Error("failed to spawn replacement", "partition", partition.Index, "error", err)
				s.markDegraded(partition.Index)
			}
		}
		return
	}

	s.logger.Error("worker crashed", "worker_id", worker.ID(), "partition", partition.Index, "error", worker.Err())
	if s.m != nil {
		s.m.WorkerRestarts.WithLabelValues(strconv.Itoa(partition.Index)).Inc()
	}

	if sl.restarts+1 > s.cfg.MaxRestarts {
		s.logger.Error("partition exceeded restart budget, marking degraded", "partition", partition.Index)
		s.markDegraded(partition.Index)
		return
	}

	if err := s.spawn(ctx, partition, sl.restarts+1); err != nil {
		s.logger.Error("failed to respawn worker", "partition", partition.Index, "error", err)
		s.markDegraded(partition.Index)
	}
}

// checkHealth crashes workers whose snapshots went stale and force stops
// drainers past their deadline.
func (s *Supervisor) checkHealth() {
	now := time.Now().UTC()

	s.mu.Lock()
	var expired []*slot
	for _, sl := range s.slots {
		if sl.record.Status == domain.WorkerRunning &&
			now.Sub(sl.record.LastSnapshotAt) > s.cfg.HealthTimeout {
			expired = append(expired, sl)
		}
	}
	for _, sl := range s.drainers {
		if !sl.drainDeadline.IsZero() && now.After(sl.drainDeadline) {
			expired = append(expired, sl)
		}
	}
	s.mu.Unlock()

	for _, sl := range expired {
		s.logger.Error("worker unresponsive, forcing stop",
			"worker_id", sl.worker.ID(), "partition", sl.worker.Partition().Index,
			"status", sl.record.Status)
		// The worker exits and handleExit classifies it from there.
		sl.cancel()
	}
}

// rollingRestart drains every running worker. Replacements are spawned from
// handleExit once each drainer has fully stopped, so the replacement's source
// opens only after the drainer's last acknowledgement is committed; anything
// the drainer never acknowledged is replayed by the replacement.
func (s *Supervisor) rollingRestart(ctx context.Context) {
	s.mu.Lock()
	drainers := make([]*slot, 0, len(s.slots))
	deadline := time.Now().UTC().Add(s.cfg.DrainTimeout)
	for _, sl := range s.slots {
		if sl.record.Status != domain.WorkerRunning {
			continue
		}
		sl.record.Status = domain.WorkerDraining
		sl.drainDeadline = deadline
		sl.replace = true
		drainers = append(drainers, sl)
	}
	for _, sl := range drainers {
		delete(s.slots, sl.worker.Partition().Index)
		s.drainers = append(s.drainers, sl)
	}
	s.mu.Unlock()

	if len(drainers) == 0 {
		s.logger.Info("rolling restart requested but no running workers")
		return
	}

	s.logger.Info("rolling restart: draining workers", "count", len(drainers))
	for _, sl := range drainers {
		sl.worker.Drain()
	}
	s.setWorkerGauges()
}

func (s *Supervisor) stopAll() {
	s.mu.Lock()
	workers := make([]*Worker, 0, len(s.slots)+len(s.drainers))
	for _, sl := range s.slots {
		sl.record.Status = domain.WorkerDraining
		workers = append(workers, sl.worker)
	}
	for _, sl := range s.drainers {
		workers = append(workers, sl.worker)
	}
	s.mu.Unlock()

	s.logger.Info("shutting down workers", "count", len(workers))
	for _, w := range workers {
		w.Drain()
	}
	deadline := time.After(s.cfg.DrainTimeout)
	for _, w := range workers {
		select {
		case <-w.Done():
		case <-deadline:
			s.logger.Warn("worker did not drain before shutdown deadline", "worker_id", w.ID())
		}
	}
}

// removeDrainer deletes sl from the drainers list. Caller holds s.mu.
func (s *Supervisor) removeDrainer(sl *slot) {
	for i, d := range s.drainers {
		if d == sl {
			s.drainers = append(s.drainers[:i], s.drainers[i+1:]...)
			return
		}
	}
}

func (s *Supervisor) markDegraded(partition int) {
	s.mu.Lock()
	s.degraded[partition] = true
	s.mu.Unlock()
}

func (s *Supervisor) allDone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots) == 0 && len(s.drainers) == 0
}

func (s *Supervisor) publishAggregate() {
	s.bus.Publish(domain.NewEvent(domain.EventTypeMetrics, s.Aggregate()))
}

func (s *Supervisor) setWorkerGauges() {
	if s.m == nil {
		return
	}
	s.mu.Lock()
	running := 0
	for _, sl := range s.slots {
		if sl.record.Status == domain.WorkerRunning {
			running++
		}
	}
	draining := len(s.drainers)
	s.mu.Unlock()

	s.m.Workers.WithLabelValues(string(domain.WorkerRunning)).Set(float64(running))
	s.m.Workers.WithLabelValues(string(domain.WorkerDraining)).Set(float64(draining))
}
