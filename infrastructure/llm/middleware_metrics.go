package llm

import (
	"context"
	"errors"
	"time"

	"github.com/ahrav/go-tribunal/internal/ports"
)

// metricsLLM records request latency, outcome, and token usage for
// operational monitoring.
type metricsLLM struct {
	next      CoreLLM
	collector ports.MetricsCollector
}

// MetricsMiddleware creates middleware that collects per-request
// metrics across providers.
func MetricsMiddleware(collector ports.MetricsCollector) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &metricsLLM{next: next, collector: collector}
	}
}

// DoRequest executes the request while recording metrics.
func (m *metricsLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	start := time.Now()
	response, tokensIn, tokensOut, err := m.next.DoRequest(ctx, prompt, opts)
	m.record("complete", start, tokensIn, tokensOut, err)
	return response, tokensIn, tokensOut, err
}

// DoStream executes the streaming request while recording metrics.
// Latency covers the full stream duration.
func (m *metricsLLM) DoStream(ctx context.Context, prompt string, opts map[string]any, onDelta func(string)) (int, int, error) {
	start := time.Now()
	tokensIn, tokensOut, err := m.next.DoStream(ctx, prompt, opts, onDelta)
	m.record("stream", start, tokensIn, tokensOut, err)
	return tokensIn, tokensOut, err
}

func (m *metricsLLM) record(operation string, start time.Time, tokensIn, tokensOut int, err error) {
	if m.collector == nil {
		return
	}

	labels := map[string]string{
		"model":     m.next.GetModel(),
		"operation": operation,
		"status":    "success",
	}
	if err != nil {
		labels["status"] = "error"
		var provErr *ProviderError
		if errors.As(err, &provErr) && provErr.Type == ErrorTypeTimeout {
			labels["status"] = "timeout"
		}
	}

	m.collector.RecordHistogram("llm_latency_seconds", time.Since(start).Seconds(), labels)
	m.collector.RecordCounter("llm_requests_total", 1, labels)

	if err == nil {
		labels["token_type"] = "input"
		m.collector.RecordCounter("llm_tokens_total", float64(tokensIn), labels)
		labels["token_type"] = "output"
		m.collector.RecordCounter("llm_tokens_total", float64(tokensOut), labels)
	}
}

// GetModel returns the model name from the wrapped implementation.
func (m *metricsLLM) GetModel() string { return m.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (m *metricsLLM) SetModel(model string) { m.next.SetModel(model) }
