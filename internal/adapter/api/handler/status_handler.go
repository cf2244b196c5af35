package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/user/log-analyzer/internal/domain"
)

// Analyzer is the supervision surface the status endpoints expose.
type Analyzer interface {
	Records() []domain.WorkerRecord
	Aggregate() domain.AggregatedMetrics
	TriggerRestart()
}

// StatusHandler serves worker status and the rolling restart trigger.
type StatusHandler struct {
	analyzer Analyzer
	logger   *slog.Logger
}

// NewStatusHandler creates the /status and /restart handlers.
func NewStatusHandler(analyzer Analyzer, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{analyzer: analyzer, logger: logger}
}

type statusResponse struct {
	Workers   []domain.WorkerRecord    `json:"workers"`
	Aggregate domain.AggregatedMetrics `json:"aggregate"`
	Time      time.Time                `json:"time"`
}

// Status reports every worker record plus the merged metrics.
// GET /status
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	records := h.analyzer.Records()
	sort.Slice(records, func(i, j int) bool {
		if records[i].Partition.Index != records[j].Partition.Index {
			return records[i].Partition.Index < records[j].Partition.Index
		}
		return records[i].StartedAt.Before(records[j].StartedAt)
	})

	h.respondWithJSON(w, http.StatusOK, statusResponse{
		Workers:   records,
		Aggregate: h.analyzer.Aggregate(),
		Time:      time.Now().UTC(),
	})
}

// Restart triggers a graceful rolling restart of all workers.
// POST /restart
func (h *StatusHandler) Restart(w http.ResponseWriter, r *http.Request) {
	h.analyzer.TriggerRestart()
	h.logger.Info("rolling restart requested via API", "remote_addr", r.RemoteAddr)
	h.respondWithJSON(w, http.StatusAccepted, map[string]string{"status": "restarting"})
}

// HealthCheck is a simple health check endpoint.
func (h *StatusHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *StatusHandler) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
