package parser

import (
	"strconv"
	"strings"
	"time"

	"github.com/user/log-analyzer/internal/domain"
)

// UnixParser parses the epoch grammar: "[<unix seconds>] <LEVEL>: <message>".
// Fractional seconds are accepted.
type UnixParser struct{}

// Parse implements domain.LineParser.
func (p *UnixParser) Parse(line string) (domain.LogEntry, error) {
	if !strings.HasPrefix(line, "[") {
		return domain.LogEntry{}, &domain.ParseFailure{Raw: line, Reason: domain.ReasonMissingTimestamp}
	}
	closing := strings.IndexByte(line, ']')
	if closing < 0 {
		return domain.LogEntry{}, &domain.ParseFailure{Raw: line, Reason: domain.ReasonMissingTimestamp}
	}

	seconds, err := strconv.ParseFloat(line[1:closing], 64)
	if err != nil || seconds < 0 {
		return domain.LogEntry{}, &domain.ParseFailure{Raw: line, Reason: domain.ReasonMissingTimestamp}
	}
	ts := time.Unix(int64(seconds), int64((seconds-float64(int64(seconds)))*1e9)).UTC()

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
