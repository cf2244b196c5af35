package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AnalyzerMetrics holds all Prometheus metrics for the analyzer.
type AnalyzerMetrics struct {
	LinesTotal     *prometheus.CounterVec
	ParseFailures  prometheus.Counter
	IncidentsTotal *prometheus.CounterVec
	ReportFailures prometheus.Counter
	EventsDropped  prometheus.Counter
	WorkerRestarts *prometheus.CounterVec
	Workers        *prometheus.GaugeVec
}

// New initializes and registers the analyzer metrics on the given registerer.
// Tests pass a private registry; the binary passes prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *AnalyzerMetrics {
	factory := promauto.With(reg)
	return &AnalyzerMetrics{
		LinesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "log_analyzer",
			Subsystem: "pipeline",
			Name:      "lines_total",
			Help:      "Total number of processed lines by level.",
		}, []string{"level"}),
		ParseFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "log_analyzer",
			Subsystem: "pipeline",
			Name:      "parse_failures_total",
			Help:      "Total number of lines that failed to parse.",
		}),
		IncidentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "log_analyzer",
			Subsystem: "pipeline",
			Name:      "incidents_total",
			Help:      "Total number of detected incidents by keyword.",
		}, []string{"keyword"}),
		ReportFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "log_analyzer",
			Subsystem: "reporting",
			Name:      "failures_total",
			Help:      "Total number of incident reports that permanently failed delivery.",
		}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "log_analyzer",
			Subsystem: "bus",
			Name:      "events_dropped_total",
			Help:      "Total number of events dropped for slow subscribers.",
		}),
		WorkerRestarts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "log_analyzer",
			Subsystem: "supervisor",
			Name:      "worker_restarts_total",
			Help:      "Total number of worker respawns by partition.",
		}, []string{"partition"}),
		Workers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "log_analyzer",
			Subsystem: "supervisor",
			Name:      "workers",
			Help:      "Current number of worker slots by status.",
		}, []string{"status"}),
	}
}
