package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/user/log-analyzer/internal/domain"
)

// MockAnalyzer is a stub supervision surface for handler tests.
type MockAnalyzer struct {
	records   []domain.WorkerRecord
	aggregate domain.AggregatedMetrics
	restarts  int
}

func (m *MockAnalyzer) Records() []domain.WorkerRecord      { return m.records }
func (m *MockAnalyzer) Aggregate() domain.AggregatedMetrics { return m.aggregate }
func (m *MockAnalyzer) TriggerRestart()                     { m.restarts++ }

func TestStatusHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("status reports workers sorted by partition", func(t *testing.T) {
		analyzer := &MockAnalyzer{
			records: []domain.WorkerRecord{
				{ID: "b", Partition: domain.Partition{Index: 1}, Status: domain.WorkerRunning, StartedAt: time.Now()},
				{ID: "a", Partition: domain.Partition{Index: 0}, Status: domain.WorkerRunning, StartedAt: time.Now()},
			},
			aggregate: domain.AggregatedMetrics{LinesProcessed: 42, Workers: 2},
		}
		h := NewStatusHandler(analyzer, logger)

		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		rr := httptest.NewRecorder()
		h.Status(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		var resp statusResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid JSON response: %v", err)
		}
		if len(resp.Workers) != 2 {
			t.Fatalf("expected 2 workers, got %d", len(resp.Workers))
		}
		if resp.Workers[0].ID != "a" || resp.Workers[1].ID != "b" {
			t.Errorf("expected partition order, got %s %s", resp.Workers[0].ID, resp.Workers[1].ID)
		}
		if resp.Aggregate.LinesProcessed != 42 {
			t.Errorf("expected aggregate passthrough, got %d", resp.Aggregate.LinesProcessed)
		}
	})

	t.Run("restart triggers and accepts", func(t *testing.T) {
		analyzer := &MockAnalyzer{}
		h := NewStatusHandler(analyzer, logger)

		req := httptest.NewRequest(http.MethodPost, "/restart", nil)
		rr := httptest.NewRecorder()
		h.Restart(rr, req)

		if rr.Code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d", rr.Code)
		}
		if analyzer.restarts != 1 {
			t.Errorf("expected 1 restart trigger, got %d", analyzer.restarts)
		}
	})

	t.Run("health is ok", func(t *testing.T) {
		h := NewStatusHandler(&MockAnalyzer{}, logger)
		rr := httptest.NewRecorder()
		h.HealthCheck(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
	})
}
