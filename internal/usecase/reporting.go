package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/user/log-analyzer/internal/adapter/metrics"
	"github.com/user/log-analyzer/internal/domain"
)

const (
	defaultReportRetries = 3
	defaultReportBackoff = 1 * time.Second
	defaultReportQueue   = 256
)

var errReportQueueFull = errors.New("report queue full")

// ReportDispatcher delivers incidents to the reporting boundary off the
// processing path. Enqueueing never blocks; delivery retries a bounded
// number of times and then records a permanent failure. Pipeline throughput
// is independent of reporting latency.
type ReportDispatcher struct {
	reporter domain.IncidentReporter
	state    *domain.MetricsState
	logger   *slog.Logger
	m        *metrics.AnalyzerMetrics

	retries int
	backoff time.Duration
	limiter *rate.Limiter

	queue chan *domain.Incident
	wg    sync.WaitGroup
	once  sync.Once
}

// NewReportDispatcher creates a dispatcher for one worker. Metrics may be
// nil. Zero retries/backoff/queueSize select the defaults.
func NewReportDispatcher(reporter domain.IncidentReporter, state *domain.MetricsState, logger *slog.Logger, m *metrics.AnalyzerMetrics, retries int, backoff time.Duration, queueSize int) *ReportDispatcher {
	if retries <= 0 {
		retries = defaultReportRetries
	}
	if backoff <= 0 {
		backoff = defaultReportBackoff
	}
	if queueSize <= 0 {
		queueSize = defaultReportQueue
	}
	return &ReportDispatcher{
		reporter: reporter,
		state:    state,
		logger:   logger.With("component", "report_dispatcher"),
		m:        m,
		retries:  retries,
		backoff:  backoff,
		limiter:  rate.NewLimiter(rate.Inf, 1),
		queue:    make(chan *domain.Incident, queueSize),
	}
}

// SetRateLimit caps delivery attempts per second, protecting a struggling
// reporting sink from an incident storm.
func (d *ReportDispatcher) SetRateLimit(perSecond float64) {
	if perSecond > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// Start launches the delivery goroutine.
func (d *ReportDispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go d.run(ctx)
}

// Dispatch enqueues an incident for delivery. A full queue counts as a
// permanent reporting failure rather than blocking the pipeline.
func (d *ReportDispatcher) Dispatch(incident *domain.Incident) {
	select {
	case d.queue <- incident:
	default:
		d.logger.Warn("report queue full, dropping incident report", "incident_id", incident.ID)
		d.recordFailure(incident, errReportQueueFull)
	}
}

// Close stops accepting incidents and waits for in-flight deliveries. Called
// during worker drain; the context bounds how long the drain may take.
func (d *ReportDispatcher) Close() {
	d.once.Do(func() { close(d.queue) })
	d.wg.Wait()
}

func (d *ReportDispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	for incident := range d.queue {
		if err := d.limiter.Wait(ctx); err != nil {
			d.recordFailure(incident, err)
			continue
		}
		d.deliver(ctx, incident)
	}
}

// deliver mirrors the bounded retry-with-backoff the sink writers use: try,
// back off, give up after the configured attempts.
func (d *ReportDispatcher) deliver(ctx context.Context, incident *domain.Incident) {
	var lastErr error
	for attempt := 0; attempt < d.retries; attempt++ {
		err := d.reporter.Report(ctx, incident)
		if err == nil {
			incident.MarkReported(time.Now().UTC())
			return
		}
		lastErr = err
		d.logger.Warn("failed to deliver incident report, retrying...",
			"incident_id", incident.ID, "attempt", attempt+1, "error", err)
		select {
		case <-time.After(d.backoff):
		case <-ctx.Done():
			d.recordFailure(incident, ctx.Err())
			return
		}
	}
	d.logger.Error("incident report permanently failed",
		"incident_id", incident.ID, "attempts", d.retries, "error", lastErr)
	d.recordFailure(incident, lastErr)
}

func (d *ReportDispatcher) recordFailure(incident *domain.Incident, err error) {
	incident.MarkReportFailed(err)
	d.state.RecordReportFailure()
	if d.m != nil {
		d.m.ReportFailures.Inc()
	}
}
