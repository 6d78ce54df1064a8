package ports

import "time"

// MetricsCollector defines the interface for collecting operational
// metrics from the processing pipeline. Implementations should
// integrate with observability platforms like Prometheus, OpenTelemetry,
// or custom monitoring solutions.
type MetricsCollector interface {
	// RecordLatency records the execution time of a pipeline stage.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like accepted and rejected
	// submissions.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	// This is useful for tracking values like group response rates.
	RecordGauge(metric string, value float64, labels map[string]string)
}

// NoopMetrics is a MetricsCollector that discards everything. It is the
// default sink so the engine carries no mandatory observability
// dependency.
type NoopMetrics struct{}

// RecordLatency implements MetricsCollector.
func (NoopMetrics) RecordLatency(string, time.Duration, map[string]string) {}

// RecordCounter implements MetricsCollector.
func (NoopMetrics) RecordCounter(string, float64, map[string]string) {}

// RecordGauge implements MetricsCollector.
func (NoopMetrics) RecordGauge(string, float64, map[string]string) {}

var _ MetricsCollector = NoopMetrics{}
