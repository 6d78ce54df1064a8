// Package middleware provides cross-cutting concerns for the scoring
// pipeline.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/simonrob/webpa-engine/internal/ports"
)

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. It tracks submission acceptance, pipeline stage latency,
// and per-run state such as the response rate.
type PrometheusMetrics struct {
	submissionsAccepted *prometheus.CounterVec
	submissionsRejected *prometheus.CounterVec
	stageLatency        *prometheus.HistogramVec
	operationCounter    *prometheus.CounterVec
	runGauges           *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance and
// registers all required metrics in the global Prometheus registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		submissionsAccepted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webpa_submissions_accepted_total",
				Help: "Total number of submissions that passed validation.",
			},
			[]string{"source"},
		),
		submissionsRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webpa_submissions_rejected_total",
				Help: "Total number of submissions excluded by validation.",
			},
			[]string{"source"},
		),
		stageLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webpa_stage_duration_seconds",
				Help:    "Execution time of scoring pipeline stages.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		operationCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webpa_operations_total",
				Help: "Total number of operations performed by the scoring pipeline.",
			},
			[]string{"operation", "status"},
		),
		runGauges: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "webpa_run_state",
				Help: "Per-run state values such as the response rate.",
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency implements the MetricsCollector interface by recording
// stage latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	pm.stageLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface by
// incrementing Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	source := labels["source"]
	if source == "" {
		source = "unknown"
	}

	switch metric {
	case "submissions_accepted":
		pm.submissionsAccepted.WithLabelValues(source).Add(value)
	case "submissions_rejected":
		pm.submissionsRejected.WithLabelValues(source).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric, "success").Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	pm.runGauges.WithLabelValues(metric).Set(value)
}
