// Package middleware provides cross-cutting concerns for the dispatch
// and judging engine.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-tribunal/internal/ports"
)

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. It tracks dispatch latency, request outcomes, token
// consumption, and judging activity.
type PrometheusMetrics struct {
	requestLatency *prometheus.HistogramVec
	requestCounter *prometheus.CounterVec
	tokensUsed     *prometheus.CounterVec
	branchLatency  *prometheus.HistogramVec
	systemGauges   *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a PrometheusMetrics instance registered
// with the given registerer. Passing nil uses the default registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		requestLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tribunal_request_duration_seconds",
				Help:    "Latency of backend dispatch and judging operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "status"},
		),
		requestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tribunal_requests_total",
				Help: "Total operations performed, by outcome.",
			},
			[]string{"operation", "status"},
		),
		tokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tribunal_tokens_total",
				Help: "Total tokens consumed across all backend calls.",
			},
			[]string{"operation", "token_type"},
		),
		branchLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tribunal_branch_duration_seconds",
				Help:    "Per-backend branch latency within a fan-out.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend", "status"},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tribunal_system_state",
				Help: "Current system state values.",
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency records execution latency in a histogram.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	pm.requestLatency.WithLabelValues(operation, statusLabel(labels)).Observe(duration.Seconds())
}

// RecordCounter increments the matching counter.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case "llm_tokens_total":
		pm.tokensUsed.WithLabelValues(labels["operation"], labels["token_type"]).Add(value)
	case "llm_requests_total":
		pm.requestCounter.WithLabelValues(labels["operation"], statusLabel(labels)).Add(value)
	default:
		pm.requestCounter.WithLabelValues(metric, statusLabel(labels)).Add(value)
	}
}

// RecordGauge sets a system state gauge.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	pm.systemGauges.WithLabelValues(metric).Set(value)
}

// RecordHistogram records a value in the matching histogram.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	switch metric {
	case "fanout_branch_seconds":
		pm.branchLatency.WithLabelValues(labels["backend"], statusLabel(labels)).Observe(value)
	case "llm_latency_seconds":
		pm.requestLatency.WithLabelValues(labels["operation"], statusLabel(labels)).Observe(value)
	default:
		pm.requestLatency.WithLabelValues(metric, statusLabel(labels)).Observe(value)
	}
}

func statusLabel(labels map[string]string) string {
	if s, ok := labels["status"]; ok {
		return s
	}
	return "unknown"
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
