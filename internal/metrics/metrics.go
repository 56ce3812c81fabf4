package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rollup job instrumentation. Registered on the default registry and served
// at /metrics by the HTTP server.
var (
	RollupRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listenstats_rollup_runs_total",
			Help: "Total number of analytics task runs",
		},
		[]string{"action", "status"}, // status: success, error, skipped
	)

	RollupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "listenstats_rollup_duration_seconds",
			Help:    "Duration of analytics task runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	RollupDaysCommitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listenstats_rollup_days_committed_total",
			Help: "Total number of rollup days committed",
		},
	)

	RollupRecordsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listenstats_rollup_records_written_total",
			Help: "Total number of analytics records committed",
		},
		[]string{"interval"},
	)

	RollupSourceErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listenstats_rollup_source_errors_total",
			Help: "Total number of failed stats/unique-listener source queries",
		},
		[]string{"source"},
	)

	RollupLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "listenstats_rollup_last_success_timestamp",
			Help: "Unix timestamp of the last successful analytics task run",
		},
	)
)
