package domain

import (
	"context"
	"sync"
	"time"
)

// KeywordErrorLevel is the pseudo-keyword recorded on incidents triggered
// purely by entry level (no configured keyword matched).
const KeywordErrorLevel = "ERROR"

// Incident is raised when an entry's level is ERROR or its message contains a
// configured keyword. ReportedAt stays nil while the asynchronous report
// dispatch is in flight or has permanently failed.
type Incident struct {
	ID         string    `json:"id"`
	Keyword    string    `json:"keyword"`
	Entry      LogEntry  `json:"entry"`
	DetectedAt time.Time `json:"detected_at"`

	mu         sync.Mutex
	reportedAt *time.Time
	reportErr  error
}

// MarkReported stamps the completion time of a successful report delivery.
func (i *Incident) MarkReported(at time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()
	t := at
	i.reportedAt = &t
	i.reportErr = nil
}

// MarkReportFailed records a permanently failed delivery attempt.
func (i *Incident) MarkReportFailed(err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.reportErr = err
}

// ReportedAt returns the delivery completion time, or nil if delivery is in
// flight or failed.
func (i *Incident) ReportedAt() *time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.reportedAt == nil {
		return nil
	}
	t := *i.reportedAt
	return &t
}

// ReportError returns the terminal delivery error, if any.
func (i *Incident) ReportError() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.reportErr
}

// IncidentReporter is the external reporting boundary. The core depends only
// on this shape, not on any transport.
type IncidentReporter interface {
	// Report delivers one incident. It may block for the duration of the
	// delivery; the pipeline calls it off the processing path.
	Report(ctx context.Context, incident *Incident) error
}
