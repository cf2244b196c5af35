package reporter

import (
	"context"
	"log/slog"

	"github.com/user/log-analyzer/internal/domain"
)

// LogReporter writes incidents to the application log. It is the default
// reporting boundary when no external sink is configured.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter creates a log-backed reporter.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{logger: logger.With("component", "incident_reporter")}
}

// Report implements domain.IncidentReporter. It never fails.
func (r *LogReporter) Report(ctx context.Context, incident *domain.Incident) error {
	r.logger.Warn("incident detected",
		"incident_id", incident.ID,
		"keyword", incident.Keyword,
		"level", incident.Entry.Level,
		"message", incident.Entry.Message,
		"detected_at", incident.DetectedAt,
	)
	return nil
}
