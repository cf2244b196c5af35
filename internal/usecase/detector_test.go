package usecase

import (
	"testing"
	"time"

	"github.com/user/log-analyzer/internal/domain"
)

func TestIncidentDetector_Detect(t *testing.T) {
	detector := NewIncidentDetector([]string{"FAILED", "timeout"})
	entry := func(level domain.Level, message string) domain.LogEntry {
		return domain.LogEntry{
			Timestamp: time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC),
			Level:     level,
			Message:   message,
		}
	}

	t.Run("Error Level Without Keyword", func(t *testing.T) {
		incident := detector.Detect(entry(domain.LevelError, "disk full"))
		if incident == nil {
			t.Fatal("expected an incident for ERROR entry")
		}
		if incident.Keyword != domain.KeywordErrorLevel {
			t.Errorf("expected pseudo-keyword %q, got %q", domain.KeywordErrorLevel, incident.Keyword)
		}
		if incident.ReportedAt() != nil {
			t.Error("reportedAt must be absent until delivery completes")
		}
	})

	t.Run("Keyword Match Independent Of Level", func(t *testing.T) {
		incident := detector.Detect(entry(domain.LevelWarn, "job FAILED to start"))
		if incident == nil {
			t.Fatal("expected an incident for WARN entry containing a keyword")
		}
		if incident.Keyword != "FAILED" {
			t.Errorf("expected keyword FAILED, got %q", incident.Keyword)
		}
	})

	t.Run("Priority Order Wins Over Match Position", func(t *testing.T) {
		// "timeout" appears first in the message, but "FAILED" has higher
		// configured priority.
		incident := detector.Detect(entry(domain.LevelInfo, "timeout then FAILED"))
		if incident == nil {
			t.Fatal("expected an incident")
		}
		if incident.Keyword != "FAILED" {
			t.Errorf("expected priority keyword FAILED, got %q", incident.Keyword)
		}
	})

	t.Run("Case Sensitive Matching", func(t *testing.T) {
		if incident := detector.Detect(entry(domain.LevelInfo, "operation failed")); incident != nil {
			t.Errorf("lower-case 'failed' must not match configured 'FAILED', got %+v", incident)
		}
	})

	t.Run("No Match No Incident", func(t *testing.T) {
		if incident := detector.Detect(entry(domain.LevelInfo, "all good")); incident != nil {
			t.Errorf("expected no incident, got %+v", incident)
		}
	})
}
