package usecase

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/user/log-analyzer/internal/domain"
)

// IncidentDetector inspects entries against a fixed keyword list. It is a
// pure function of its inputs and holds no mutable state.
type IncidentDetector struct {
	// keywords in configured priority order; the first match wins regardless
	// of where it appears in the message.
	keywords []string
}

// NewIncidentDetector creates a detector with the given keyword priority order.
func NewIncidentDetector(keywords []string) *IncidentDetector {
	return &IncidentDetector{keywords: keywords}
}

// Detect returns an incident when the entry's level is ERROR or its message
// contains a configured keyword (case-sensitive substring, independent of
// level). Returns nil otherwise.
func (d *IncidentDetector) Detect(entry domain.LogEntry) *domain.Incident {
	keyword := ""
	for _, kw := range d.keywords {
		if strings.Contains(entry.Message, kw) {
			keyword = kw
			break
		}
	}

	if keyword == "" {
		if entry.Level != domain.LevelError {
			return nil
		}
		keyword = domain.KeywordErrorLevel
	}

	return &domain.Incident{
		ID:         uuid.NewString(),
		Keyword:    keyword,
		Entry:      entry,
		DetectedAt: time.Now().UTC(),
	}
}
