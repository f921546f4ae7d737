package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AnalysisLatency tracks end-to-end latency of analysis calls
	AnalysisLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ash_analysis_duration_seconds",
			Help:    "The duration of ensemble analysis calls in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"algorithm"},
	)

	// AnalysisCount tracks completed analyses by resulting crisis level
	AnalysisCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ash_analysis_total",
			Help: "The total number of completed analyses by crisis level",
		},
		[]string{"level", "degraded"},
	)

	// ConflictCount tracks detected signal conflicts by type
	ConflictCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ash_conflicts_detected_total",
			Help: "The total number of detected signal conflicts by type",
		},
		[]string{"type", "severity"},
	)

	// ResolutionCount tracks conflict resolutions by strategy
	ResolutionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ash_resolutions_total",
			Help: "The total number of conflict resolutions by strategy",
		},
		[]string{"strategy"},
	)

	// ReviewFlagCount tracks analyses flagged for human review
	ReviewFlagCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ash_review_flags_total",
			Help: "The total number of analyses flagged for human review",
		},
	)

	// ModelSignalLatency tracks per-model classifier latency
	ModelSignalLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ash_model_signal_duration_seconds",
			Help:    "The duration of individual model signal calls in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"model"},
	)

	// ModelSignalErrors tracks failed or timed-out model signal calls
	ModelSignalErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ash_model_signal_errors_total",
			Help: "The total number of failed or timed-out model signal calls",
		},
		[]string{"model"},
	)

	// AlertCount tracks review alerts by delivery status
	AlertCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ash_alerts_total",
			Help: "The total number of review alerts by delivery status",
		},
		[]string{"status"},
	)

	// ConfigReloads tracks configuration snapshot swaps
	ConfigReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ash_config_reloads_total",
			Help: "The total number of configuration reload attempts",
		},
		[]string{"status"},
	)
)

// RecordAnalysis records one completed analysis.
func RecordAnalysis(algorithm, level string, degraded bool, seconds float64) {
	AnalysisLatency.WithLabelValues(algorithm).Observe(seconds)
	degradedLabel := "false"
	if degraded {
		degradedLabel = "true"
	}
	AnalysisCount.WithLabelValues(level, degradedLabel).Inc()
}

// RecordConflict records one detected conflict.
func RecordConflict(conflictType, severity string) {
	ConflictCount.WithLabelValues(conflictType, severity).Inc()
}

// RecordResolution records one conflict resolution.
func RecordResolution(strategy string) {
	ResolutionCount.WithLabelValues(strategy).Inc()
}

// RecordReviewFlag records an analysis flagged for human review.
func RecordReviewFlag() {
	ReviewFlagCount.Inc()
}

// RecordModelSignal records the outcome of one model signal call.
func RecordModelSignal(model string, seconds float64, failed bool) {
	ModelSignalLatency.WithLabelValues(model).Observe(seconds)
	if failed {
		ModelSignalErrors.WithLabelValues(model).Inc()
	}
}

// RecordAlert records a review alert delivery attempt.
func RecordAlert(status string) {
	AlertCount.WithLabelValues(status).Inc()
}

// RecordConfigReload records a configuration reload attempt.
func RecordConfigReload(status string) {
	ConfigReloads.WithLabelValues(status).Inc()
}
