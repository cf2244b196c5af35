// Package reporter provides the incident-reporting boundary implementations.
package reporter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/user/log-analyzer/internal/domain"
)

// PostgresReporter delivers incidents into an incidents table. Inserts are
// idempotent on the incident id, so a redelivered chunk after a crash cannot
// duplicate a row.
type PostgresReporter struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresReporter creates a reporter over an open connection pool.
func NewPostgresReporter(db *sql.DB, logger *slog.Logger) *PostgresReporter {
	return &PostgresReporter{
		db:     db,
		logger: logger.With("component", "postgres_reporter"),
	}
}

// EnsureSchema creates the incidents table if it does not exist.
func (r *PostgresReporter) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS incidents (
			id          UUID PRIMARY KEY,
			keyword     TEXT NOT NULL,
			level       TEXT NOT NULL,
			message     TEXT NOT NULL,
			raw         TEXT NOT NULL,
			entry_time  TIMESTAMPTZ NOT NULL,
			detected_at TIMESTAMPTZ NOT NULL
		)`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to ensure incidents schema: %w", err)
	}
	return nil
}

// Report implements domain.IncidentReporter.
func (r *PostgresReporter) Report(ctx context.Context, incident *domain.Incident) error {
	const query = `
		INSERT INTO incidents (id, keyword, level, message, raw, entry_time, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		incident.ID,
		incident.Keyword,
		string(incident.Entry.Level),
		incident.Entry.Message,
		incident.Entry.Raw,
		incident.Entry.Timestamp,
		incident.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert incident %s: %w", incident.ID, err)
	}
	return nil
}
