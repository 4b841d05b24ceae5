package llm

import (
	"sync"
)

// DefaultMaxTokens bounds generation length when the caller does not
// specify max_tokens.
const DefaultMaxTokens = 1024

// BaseProvider provides common, thread-safe model-name management for
// all providers.
type BaseProvider struct {
	mu    sync.RWMutex
	model string
}

// GetModel returns the currently configured model name.
// It is safe for concurrent use.
func (b *BaseProvider) GetModel() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

// SetModel updates the model name. It is safe for concurrent use.
func (b *BaseProvider) SetModel(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = model
}

// RequestOptions is the standardized set of request parameters shared
// across providers.
type RequestOptions struct {
	// MaxTokens limits the number of tokens to generate.
	MaxTokens int
	// Model is the model identifier for this request.
	Model string
	// Temperature controls output randomness. Nil means provider default.
	Temperature *float64
	// System provides instructions guiding the model's behavior.
	System string
}

// ParseRequestOptions extracts standardized parameters from an options
// map, applying defaults for missing or invalid entries.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	options := RequestOptions{
		MaxTokens: extractInt(opts, "max_tokens", DefaultMaxTokens),
		Model:     extractString(opts, "model", defaultModel),
		System:    extractString(opts, "system", ""),
	}
	if temp, ok := extractFloat(opts, "temperature"); ok && temp >= 0 && temp <= 2 {
		options.Temperature = &temp
	}
	return options
}

func extractInt(opts map[string]any, key string, defaultVal int) int {
	if v, ok := opts[key].(int); ok && v > 0 {
		return v
	}
	if v, ok := opts[key].(float64); ok && v > 0 {
		return int(v)
	}
	return defaultVal
}

func extractString(opts map[string]any, key, defaultVal string) string {
	if v, ok := opts[key].(string); ok && v != "" {
		return v
	}
	return defaultVal
}

func extractFloat(opts map[string]any, key string) (float64, bool) {
	switch v := opts[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// EstimateTokens approximates the token count of text using the common
// four-characters-per-token heuristic. Providers fall back to it when
// the API response omits usage data, as streaming responses often do.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}

// tokenCount prefers the provider-reported count over the estimate.
func tokenCount(actual int, text string) int {
	if actual > 0 {
		return actual
	}
	return EstimateTokens(text)
}
