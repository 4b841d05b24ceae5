package ports

import (
	"context"
	"time"
)

// BackendClient is the dispatch capability for a single model backend.
// Implementations handle provider-specific authentication, request
// formatting, and response framing.
type BackendClient interface {
	// Complete sends one non-streaming completion request and returns
	// the full generated text. The options map carries provider-neutral
	// settings such as "temperature", "max_tokens", or "system".
	Complete(ctx context.Context, prompt string, options map[string]any) (string, error)

	// CompleteStream sends one streaming completion request, invoking
	// onDelta once per decoded content fragment in emission order.
	// It returns only after the backend's stream is exhausted or fails.
	// Transport errors, non-success statuses, and empty bodies are all
	// returned as error values; none of them panic or abort siblings.
	CompleteStream(ctx context.Context, prompt string, options map[string]any, onDelta func(fragment string)) error

	// GetModel returns the model identifier used by this client.
	GetModel() string
}

// BackendDirectory maps backend identifiers to their clients and
// display labels. The directory is fixed for the lifetime of a request.
type BackendDirectory interface {
	// Client returns the client configured for id, or false when the
	// identifier is unknown.
	Client(id string) (BackendClient, bool)

	// Label returns the human-readable name for id. Unknown or
	// unlabeled identifiers degrade to the identifier itself.
	Label(id string) string

	// IDs returns every configured backend identifier.
	IDs() []string
}

// MetricsCollector defines the interface for collecting operational
// metrics. Implementations should integrate with observability
// platforms like Prometheus or OpenTelemetry.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
