package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/user/log-analyzer/internal/domain"
	"github.com/user/log-analyzer/internal/domain/mocks"
)

func testIncident(keyword string) *domain.Incident {
	return &domain.Incident{
		ID:      "inc-" + keyword,
		Keyword: keyword,
		Entry: domain.LogEntry{
			Timestamp: time.Now().UTC(),
			Level:     domain.LevelError,
			Message:   "boom",
		},
		DetectedAt: time.Now().UTC(),
	}
}

func TestReportDispatcher(t *testing.T) {
	t.Run("delivers and marks reported", func(t *testing.T) {
		reporter := &mocks.MockReporter{}
		state := domain.NewMetricsState("w1")
		d := NewReportDispatcher(reporter, state, testLogger(), testMetrics(), 3, time.Millisecond, 16)
		d.Start(context.Background())

		incident := testIncident("timeout")
		d.Dispatch(incident)
		d.Close()

		if got := reporter.ReportedIncidents(); len(got) != 1 {
			t.Fatalf("expected 1 delivery, got %d", len(got))
		}
		if incident.ReportedAt() == nil {
			t.Error("expected incident marked reported")
		}
		if incident.ReportError() != nil {
			t.Errorf("unexpected report error: %v", incident.ReportError())
		}
	})

	t.Run("retries transient failures", func(t *testing.T) {
		reporter := &mocks.MockReporter{FailFirst: 2}
		state := domain.NewMetricsState("w1")
		d := NewReportDispatcher(reporter, state, testLogger(), testMetrics(), 3, time.Millisecond, 16)
		d.Start(context.Background())

		incident := testIncident("timeout")
		d.Dispatch(incident)
		d.Close()

		if reporter.Calls() != 3 {
			t.Fatalf("expected 3 attempts, got %d", reporter.Calls())
		}
		if incident.ReportedAt() == nil {
			t.Error("expected eventual success to mark the incident reported")
		}
		if state.Snapshot().ReportFailures != 0 {
			t.Error("transient failures must not count as permanent")
		}
	})

	t.Run("permanent failure after exhausted retries", func(t *testing.T) {
		reporter := &mocks.MockReporter{ReportErr: errors.New("sink down")}
		state := domain.NewMetricsState("w1")
		d := NewReportDispatcher(reporter, state, testLogger(), testMetrics(), 2, time.Millisecond, 16)
		d.Start(context.Background())

		incident := testIncident("timeout")
		d.Dispatch(incident)
		d.Close()

		if reporter.Calls() != 2 {
			t.Fatalf("expected 2 attempts, got %d", reporter.Calls())
		}
		if incident.ReportError() == nil {
			t.Error("expected a permanent report error on the incident")
		}
		if got := state.Snapshot().ReportFailures; got != 1 {
			t.Errorf("expected 1 report failure recorded, got %d", got)
		}
	})

	t.Run("full queue drops instead of blocking", func(t *testing.T) {
		state := domain.NewMetricsState("w1")
		// Not started: nothing consumes the queue.
		d := NewReportDispatcher(&mocks.MockReporter{}, state, testLogger(), testMetrics(), 1, time.Millisecond, 1)

		d.Dispatch(testIncident("a"))
		dropped := testIncident("b")

		done := make(chan struct{})
		go func() {
			d.Dispatch(dropped)
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Dispatch blocked on a full queue")
		}

		if dropped.ReportError() == nil {
			t.Error("expected the dropped incident to carry a failure")
		}
		if got := state.Snapshot().ReportFailures; got != 1 {
			t.Errorf("expected 1 report failure, got %d", got)
		}
	})

	t.Run("close waits for in-flight deliveries", func(t *testing.T) {
		reporter := &mocks.MockReporter{}
		state := domain.NewMetricsState("w1")
		d := NewReportDispatcher(reporter, state, testLogger(), testMetrics(), 1, time.Millisecond, 16)
		d.Start(context.Background())

		for i := 0; i < 10; i++ {
			d.Dispatch(testIncident("timeout"))
		}
		d.Close()

		if got := len(reporter.ReportedIncidents()); got != 10 {
			t.Fatalf("expected all 10 queued incidents delivered before Close returned, got %d", got)
		}
	})
}
