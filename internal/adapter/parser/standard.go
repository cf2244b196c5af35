// Package parser provides the pluggable line-parser implementations. The
// format is chosen once at startup; no parser branches between formats per
// line.
package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/user/log-analyzer/internal/domain"
)

// New returns the parser for the configured format name.
func New(format string) (domain.LineParser, error) {
	switch format {
	case "standard", "":
		return &StandardParser{}, nil
	case "unix":
		return &UnixParser{}, nil
	default:
		return nil, fmt.Errorf("unknown parser format %q", format)
	}
}

// StandardParser parses the bracket grammar: "[<ISO-8601>] <LEVEL>: <message>".
type StandardParser struct{}

// Parse implements domain.LineParser.
func (p *StandardParser) Parse(line string) (domain.LogEntry, error) {
	if !strings.HasPrefix(line, "[") {
		return domain.LogEntry{}, &domain.ParseFailure{Raw: line, Reason: domain.ReasonMissingTimestamp}
	}
	closing := strings.IndexByte(line, ']')
	if closing < 0 {
		return domain.LogEntry{}, &domain.ParseFailure{Raw: line, Reason: domain.ReasonMissingTimestamp}
	}

	ts, err := time.Parse(time.RFC3339, line[1:closing])
	if err != nil {
		return domain.LogEntry{}, &domain.ParseFailure{Raw: line, Reason: domain.ReasonMissingTimestamp}
	}

	level, message, failReason := splitLevelMessage(line[closing+1:])
	if failReason != "" {
		return domain.LogEntry{}, &domain.ParseFailure{Raw: line, Reason: failReason}
	}

	return domain.LogEntry{
		Timestamp: ts,
		Level:     level,
		Message:   message,
		Raw:       line,
	}, nil
}

// splitLevelMessage parses " <LEVEL>: <message>" following the timestamp.
func splitLevelMessage(rest string) (domain.Level, string, string) {
	rest = strings.TrimPrefix(rest, " ")
	colon := strings.Index(rest, ": ")
	if colon < 0 {
		return "", "", domain.ReasonMalformedLine
	}

	level := domain.Level(rest[:colon])
	switch level {
	case domain.LevelInfo, domain.LevelWarn, domain.LevelError:
	default:
		return "", "", domain.ReasonUnrecognizedLevel
	}

	return level, rest[colon+2:], ""
}
