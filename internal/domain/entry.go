package domain

import "time"

// Level classifies the severity of a log entry.
type Level string

const (
	LevelInfo    Level = "INFO"
	LevelWarn    Level = "WARN"
	LevelError   Level = "ERROR"
	LevelUnknown Level = "UNKNOWN"
)

// Levels lists every level a well-formed entry can carry, in display order.
var Levels = []Level{LevelInfo, LevelWarn, LevelError, LevelUnknown}

// LogEntry is one structured log line. It is immutable after creation:
// the parser builds it, the detector and metrics state only read it.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Raw       string    `json:"raw"`
}

// ParseFailure is returned instead of a LogEntry when a line does not match
// the parser's grammar. It implements error so parsers can return it through
// the usual (LogEntry, error) shape; callers distinguish it with errors.As.
type ParseFailure struct {
	Raw    string `json:"raw"`
	Reason string `json:"reason"`
}

func (f *ParseFailure) Error() string {
	return "parse failure: " + f.Reason
}

// Parse failure reasons. Parsers must use these verbatim so failures
// aggregate cleanly across workers.
const (
	ReasonMissingTimestamp  = "missing timestamp"
	ReasonUnrecognizedLevel = "unrecognized level"
	ReasonMalformedLine     = "malformed line"
)

// LineParser converts one line into a structured entry. Implementations for
// additional log formats are selected at configuration time; a parser never
// branches between formats per line.
type LineParser interface {
	// Parse returns the structured entry, or a *ParseFailure error when the
	// line does not match the expected grammar. It never panics on malformed
	// input.
	Parse(line string) (LogEntry, error)
}
