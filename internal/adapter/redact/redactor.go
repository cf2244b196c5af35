// Package redact masks configured sensitive tokens in log messages before
// they can surface in recent-error rings, incidents, or the event stream.
package redact

import (
	"log/slog"
	"strings"

	"github.com/user/log-analyzer/internal/domain"
)

const placeholder = "[REDACTED]"

// Redactor replaces every occurrence of its configured tokens.
type Redactor struct {
	tokens []string
	logger *slog.Logger
}

// NewRedactor creates a redactor for the given tokens. An empty token list
// yields a no-op redactor.
func NewRedactor(tokens []string, logger *slog.Logger) *Redactor {
	return &Redactor{tokens: tokens, logger: logger}
}

// Redact returns the entry with sensitive tokens masked in its message. The
// raw line is left untouched; it never leaves the pipeline.
func (r *Redactor) Redact(entry domain.LogEntry) domain.LogEntry {
	if len(r.tokens) == 0 {
		return entry
	}

	masked := entry.Message
	for _, token := range r.tokens {
		masked = strings.ReplaceAll(masked, token, placeholder)
	}
	if masked != entry.Message {
		entry.Message = masked
	}
	return entry
}
