package domain

import (
	"sort"
	"sync"
	"time"
)

// RecentErrorLimit bounds the recent-error ring in both per-worker state and
// aggregated metrics.
const RecentErrorLimit = 10

// ErrorRecord is one entry in the recent-error ring.
type ErrorRecord struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// MetricsState holds the running counters for one worker. It is mutated only
// by the owning worker's pipeline; everyone else reads it through Snapshot.
// The internal mutex makes Snapshot safe to call concurrently with recording.
type MetricsState struct {
	mu             sync.Mutex
	workerID       string
	countsByLevel  map[Level]int64
	incidentsByKey map[string]int64
	recentErrors   []ErrorRecord // most recent first
	parseFailures  int64
	reportFailures int64
	linesProcessed int64
}

// NewMetricsState creates an empty state owned by the given worker.
func NewMetricsState(workerID string) *MetricsState {
	return &MetricsState{
		workerID:       workerID,
		countsByLevel:  make(map[Level]int64),
		incidentsByKey: make(map[string]int64),
	}
}

// Record counts one entry. Error entries also enter the recent-error ring
// with move-to-front-on-duplicate semantics.
func (m *MetricsState) Record(entry LogEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.countsByLevel[entry.Level]++
	m.linesProcessed++

	if entry.Level == LevelError {
		m.insertRecentError(ErrorRecord{Message: entry.Message, At: entry.Timestamp})
	}
}

// RecordFailure counts one parse failure.
func (m *MetricsState) RecordFailure(_ *ParseFailure) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parseFailures++
	m.linesProcessed++
}

// RecordIncident counts one detected incident under its keyword.
func (m *MetricsState) RecordIncident(incident *Incident) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incidentsByKey[incident.Keyword]++
}

// RecordReportFailure counts one permanently failed incident delivery.
func (m *MetricsState) RecordReportFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reportFailures++
}

// insertRecentError keeps the ring unique by message, most recent first,
// capped at RecentErrorLimit. Caller holds the lock.
func (m *MetricsState) insertRecentError(rec ErrorRecord) {
	for i, existing := range m.recentErrors {
		if existing.Message == rec.Message {
			copy(m.recentErrors[1:i+1], m.recentErrors[:i])
			m.recentErrors[0] = rec
			return
		}
	}
	m.recentErrors = append(m.recentErrors, ErrorRecord{})
	copy(m.recentErrors[1:], m.recentErrors)
	m.recentErrors[0] = rec
	if len(m.recentErrors) > RecentErrorLimit {
		m.recentErrors = m.recentErrors[:RecentErrorLimit]
	}
}

// MetricsSnapshot is an immutable point-in-time copy of a worker's state,
// safe to hand across the worker boundary.
type MetricsSnapshot struct {
	WorkerID       string           `json:"worker_id"`
	TakenAt        time.Time        `json:"taken_at"`
	CountsByLevel  map[Level]int64  `json:"counts_by_level"`
	IncidentsByKey map[string]int64 `json:"incidents_by_keyword"`
	RecentErrors   []ErrorRecord    `json:"recent_errors"`
	ParseFailures  int64            `json:"parse_failures"`
	ReportFailures int64            `json:"report_failures"`
	LinesProcessed int64            `json:"lines_processed"`
}

// Snapshot returns a deep copy of the current state. The copy shares no
// mutable data with the live state.
func (m *MetricsState) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MetricsSnapshot{
		WorkerID:       m.workerID,
		TakenAt:        time.Now().UTC(),
		CountsByLevel:  make(map[Level]int64, len(m.countsByLevel)),
		IncidentsByKey: make(map[string]int64, len(m.incidentsByKey)),
		RecentErrors:   make([]ErrorRecord, len(m.recentErrors)),
		ParseFailures:  m.parseFailures,
		ReportFailures: m.reportFailures,
		LinesProcessed: m.linesProcessed,
	}
	for level, count := range m.countsByLevel {
		snap.CountsByLevel[level] = count
	}
	for keyword, count := range m.incidentsByKey {
		snap.IncidentsByKey[keyword] = count
	}
	copy(snap.RecentErrors, m.recentErrors)
	return snap
}

// AggregatedMetrics is the result of merging worker snapshots. Counter fields
// are order-independent sums; RecentErrors is deterministically reordered by
// detection time at merge.
type AggregatedMetrics struct {
	CountsByLevel  map[Level]int64  `json:"counts_by_level"`
	IncidentsByKey map[string]int64 `json:"incidents_by_keyword"`
	RecentErrors   []ErrorRecord    `json:"recent_errors"`
	ParseFailures  int64            `json:"parse_failures"`
	ReportFailures int64            `json:"report_failures"`
	LinesProcessed int64            `json:"lines_processed"`
	Workers        int              `json:"workers"`
	Degraded       bool             `json:"degraded"`
}

// Merge combines worker snapshots into one aggregate. Counters sum
// element-wise, so merge order never affects them. Recent errors from all
// workers are sorted by detection time descending (ties broken by worker id
// ascending for determinism), deduplicated by message keeping the most
// recent, and truncated to RecentErrorLimit.
func Merge(snapshots []MetricsSnapshot) AggregatedMetrics {
	agg := AggregatedMetrics{
		CountsByLevel:  make(map[Level]int64),
		IncidentsByKey: make(map[string]int64),
		Workers:        len(snapshots),
	}

	type tagged struct {
		rec      ErrorRecord
		workerID string
	}
	var errors []tagged

	for _, snap := range snapshots {
		for level, count := range snap.CountsByLevel {
			agg.CountsByLevel[level] += count
		}
		for keyword, count := range snap.IncidentsByKey {
			agg.IncidentsByKey[keyword] += count
		}
		agg.ParseFailures += snap.ParseFailures
		agg.ReportFailures += snap.ReportFailures
		agg.LinesProcessed += snap.LinesProcessed
		for _, rec := range snap.RecentErrors {
			errors = append(errors, tagged{rec: rec, workerID: snap.WorkerID})
		}
	}

	sort.SliceStable(errors, func(i, j int) bool {
		if !errors[i].rec.At.Equal(errors[j].rec.At) {
			return errors[i].rec.At.After(errors[j].rec.At)
		}
		return errors[i].workerID < errors[j].workerID
	})

	seen := make(map[string]struct{}, len(errors))
	for _, t := range errors {
		if _, dup := seen[t.rec.Message]; dup {
			continue
		}
		seen[t.rec.Message] = struct{}{}
		agg.RecentErrors = append(agg.RecentErrors, t.rec)
		if len(agg.RecentErrors) == RecentErrorLimit {
			break
		}
	}

	return agg
}
