package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/user/log-analyzer/internal/adapter/metrics"
	"github.com/user/log-analyzer/internal/adapter/redact"
	"github.com/user/log-analyzer/internal/domain"
)

// progressEvery is how many processed lines separate progress events.
const progressEvery = 1000

// Pipeline wires splitter → parser → detector → metrics for one worker.
// It runs single-threaded within its worker, preserving per-chunk line
// order; only incident reporting leaves the synchronous path.
type Pipeline struct {
	workerID string
	splitter *LineSplitter
	parser   domain.LineParser
	detector *IncidentDetector
	redactor *redact.Redactor
	state    *domain.MetricsState
	reports  *ReportDispatcher
	bus      domain.EventPublisher
	logger   *slog.Logger
	m        *metrics.AnalyzerMetrics

	linesProcessed int64
}

// NewPipeline assembles a pipeline. The redactor and metrics may be nil.
func NewPipeline(
	workerID string,
	parser domain.LineParser,
	detector *IncidentDetector,
	redactor *redact.Redactor,
	reports *ReportDispatcher,
	bus domain.EventPublisher,
	logger *slog.Logger,
	m *metrics.AnalyzerMetrics,
) *Pipeline {
	return &Pipeline{
		workerID: workerID,
		splitter: NewLineSplitter(),
		parser:   parser,
		detector: detector,
		redactor: redactor,
		state:    domain.NewMetricsState(workerID),
		reports:  reports,
		bus:      bus,
		logger:   logger.With("component", "pipeline", "worker_id", workerID),
		m:        m,
	}
}

// State exposes the pipeline's metrics state for snapshotting.
func (p *Pipeline) State() *domain.MetricsState {
	return p.state
}

// Process drives one chunk through every stage. Lines within the chunk are
// processed in input order.
func (p *Pipeline) Process(ctx context.Context, chunk []byte) {
	for _, line := range p.splitter.Split(chunk) {
		p.processLine(line)
	}
}

// Finish flushes the trailing unterminated line at end of input and closes
// the report dispatcher, waiting for in-flight deliveries.
func (p *Pipeline) Finish(ctx context.Context) {
	if line, ok := p.splitter.Flush(); ok {
		p.processLine(line)
	}
	p.reports.Close()
}

func (p *Pipeline) processLine(line string) {
	p.linesProcessed++
	defer p.maybeEmitProgress()

	entry, err := p.parser.Parse(line)
	if err != nil {
		var failure *domain.ParseFailure
		if !errors.As(err, &failure) {
			// Parsers only fail with ParseFailure; anything else is a
			// contract bug worth surfacing but never fatal to the stream.
			failure = &domain.ParseFailure{Raw: line, Reason: domain.ReasonMalformedLine}
			p.logger.Error("parser returned unexpected error type", "error", err)
		}
		p.state.RecordFailure(failure)
		if p.m != nil {
			p.m.ParseFailures.Inc()
		}
		return
	}

	if p.redactor != nil {
		entry = p.redactor.Redact(entry)
	}

	p.state.Record(entry)
	if p.m != nil {
		p.m.LinesTotal.WithLabelValues(string(entry.Level)).Inc()
	}

	incident := p.detector.Detect(entry)
	if incident == nil {
		return
	}

	p.state.RecordIncident(incident)
	if p.m != nil {
		p.m.IncidentsTotal.WithLabelValues(incident.Keyword).Inc()
	}
	p.bus.Publish(domain.NewEvent(domain.EventTypeIncident, incident))
	p.reports.Dispatch(incident)
}

func (p *Pipeline) maybeEmitProgress() {
	if p.linesProcessed%progressEvery != 0 {
		return
	}
	p.bus.Publish(domain.NewEvent(domain.EventTypeProgress, domain.Progress{
		WorkerID:       p.workerID,
		LinesProcessed: p.linesProcessed,
	}))
}
