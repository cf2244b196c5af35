package usecase

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/user/log-analyzer/internal/adapter/metrics"
	"github.com/user/log-analyzer/internal/adapter/parser"
	"github.com/user/log-analyzer/internal/adapter/redact"
	"github.com/user/log-analyzer/internal/domain"
	"github.com/user/log-analyzer/internal/domain/mocks"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMetrics() *metrics.AnalyzerMetrics {
	return metrics.New(prometheus.NewRegistry())
}

func newTestPipeline(t *testing.T, reporter *mocks.MockReporter, bus *mocks.MockPublisher) *Pipeline {
	t.Helper()
	logger := testLogger()
	m := testMetrics()

	p, err := parser.New("standard")
	if err != nil {
		t.Fatalf("failed to build parser: %v", err)
	}
	detector := NewIncidentDetector([]string{"timeout", "disk full"})
	redactor := redact.NewRedactor([]string{"secret-token"}, logger)
	dispatcher := NewReportDispatcher(reporter, nil, logger, m, 2, time.Millisecond, 16)

	pipeline := NewPipeline("worker-1", p, detector, redactor, dispatcher, bus, logger, m)
	dispatcher.state = pipeline.State()
	dispatcher.Start(context.Background())
	return pipeline
}

func TestPipeline_Process(t *testing.T) {
	t.Run("counts lines by level", func(t *testing.T) {
		pipeline := newTestPipeline(t, &mocks.MockReporter{}, &mocks.MockPublisher{})

		chunk := strings.Join([]string{
			"[2026-08-30T10:00:00Z] INFO: service started",
			"[2026-08-30T10:00:01Z] WARN: cache nearly full",
			"[2026-08-30T10:00:02Z] INFO: request served",
			"",
		}, "\n")
		pipeline.Process(context.Background(), []byte(chunk))
		pipeline.Finish(context.Background())

		snap := pipeline.State().Snapshot()
		if snap.LinesProcessed != 3 {
			t.Fatalf("expected 3 lines processed, got %d", snap.LinesProcessed)
		}
		if snap.CountsByLevel[domain.LevelInfo] != 2 {
			t.Errorf("expected 2 INFO lines, got %d", snap.CountsByLevel[domain.LevelInfo])
		}
		if snap.CountsByLevel[domain.LevelWarn] != 1 {
			t.Errorf("expected 1 WARN line, got %d", snap.CountsByLevel[domain.LevelWarn])
		}
	})

	t.Run("malformed line is counted and skipped", func(t *testing.T) {
		pipeline := newTestPipeline(t, &mocks.MockReporter{}, &mocks.MockPublisher{})

		chunk := "not a log line\n[2026-08-30T10:00:00Z] INFO: fine\n"
		pipeline.Process(context.Background(), []byte(chunk))
		pipeline.Finish(context.Background())

		snap := pipeline.State().Snapshot()
		if snap.ParseFailures != 1 {
			t.Errorf("expected 1 parse failure, got %d", snap.ParseFailures)
		}
		if snap.LinesProcessed != 2 {
			t.Errorf("expected both lines counted, got %d", snap.LinesProcessed)
		}
		if snap.CountsByLevel[domain.LevelInfo] != 1 {
			t.Errorf("expected the well-formed line to count, got %v", snap.CountsByLevel)
		}
	})

	t.Run("line split across chunks is processed once", func(t *testing.T) {
		pipeline := newTestPipeline(t, &mocks.MockReporter{}, &mocks.MockPublisher{})

		line := "[2026-08-30T10:00:00Z] ERROR: connection timeout\n"
		pipeline.Process(context.Background(), []byte(line[:20]))
		pipeline.Process(context.Background(), []byte(line[20:]))
		pipeline.Finish(context.Background())

		snap := pipeline.State().Snapshot()
		if snap.LinesProcessed != 1 {
			t.Fatalf("expected 1 line processed, got %d", snap.LinesProcessed)
		}
		if snap.CountsByLevel[domain.LevelError] != 1 {
			t.Errorf("expected 1 ERROR line, got %d", snap.CountsByLevel[domain.LevelError])
		}
	})

	t.Run("unterminated trailing line flushes on finish", func(t *testing.T) {
		pipeline := newTestPipeline(t, &mocks.MockReporter{}, &mocks.MockPublisher{})

		pipeline.Process(context.Background(), []byte("[2026-08-30T10:00:00Z] INFO: no trailing newline"))
		pipeline.Finish(context.Background())

		if got := pipeline.State().Snapshot().LinesProcessed; got != 1 {
			t.Fatalf("expected flushed remainder to count, got %d lines", got)
		}
	})

	t.Run("incidents reach the reporter and the bus", func(t *testing.T) {
		reporter := &mocks.MockReporter{}
		bus := &mocks.MockPublisher{}
		pipeline := newTestPipeline(t, reporter, bus)

		chunk := strings.Join([]string{
			"[2026-08-30T10:00:00Z] ERROR: request failed",
			"[2026-08-30T10:00:01Z] INFO: disk full on /var",
			"[2026-08-30T10:00:02Z] INFO: all good",
			"",
		}, "\n")
		pipeline.Process(context.Background(), []byte(chunk))
		pipeline.Finish(context.Background())

		reported := reporter.ReportedIncidents()
		if len(reported) != 2 {
			t.Fatalf("expected 2 reported incidents, got %d", len(reported))
		}
		events := bus.ByType(domain.EventTypeIncident)
		if len(events) != 2 {
			t.Fatalf("expected 2 incident events, got %d", len(events))
		}

		snap := pipeline.State().Snapshot()
		if snap.IncidentsByKey["disk full"] != 1 {
			t.Errorf("expected keyword incident, got %v", snap.IncidentsByKey)
		}
		if snap.IncidentsByKey[domain.KeywordErrorLevel] != 1 {
			t.Errorf("expected error-level incident, got %v", snap.IncidentsByKey)
		}
	})

	t.Run("redaction applies before recording", func(t *testing.T) {
		bus := &mocks.MockPublisher{}
		pipeline := newTestPipeline(t, &mocks.MockReporter{}, bus)

		pipeline.Process(context.Background(), []byte("[2026-08-30T10:00:00Z] ERROR: auth failed for secret-token\n"))
		pipeline.Finish(context.Background())

		snap := pipeline.State().Snapshot()
		if len(snap.RecentErrors) != 1 {
			t.Fatalf("expected 1 recent error, got %d", len(snap.RecentErrors))
		}
		if strings.Contains(snap.RecentErrors[0].Message, "secret-token") {
			t.Errorf("recent error leaked redacted token: %q", snap.RecentErrors[0].Message)
		}
		if !strings.Contains(snap.RecentErrors[0].Message, "[REDACTED]") {
			t.Errorf("expected redaction marker in %q", snap.RecentErrors[0].Message)
		}
	})
}
