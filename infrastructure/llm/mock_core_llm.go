package llm

import (
	"context"
	"sync"
	"time"
)

// MockCoreLLM provides a configurable mock implementation of CoreLLM
// for middleware testing. It allows control over response content,
// fragment framing, timing, and error conditions.
type MockCoreLLM struct {
	mu sync.Mutex

	// Response configuration
	Response      string
	Fragments     []string // streamed in order; defaults to [Response]
	TokensIn      int
	TokensOut     int
	Error         error
	Model         string
	ResponseDelay time.Duration

	// Tracking
	CallCount  int
	LastPrompt string
	LastOpts   map[string]any
}

// NewMockCoreLLM creates a mock with default successful behavior.
func NewMockCoreLLM() *MockCoreLLM {
	return &MockCoreLLM{
		Response:  "test response",
		TokensIn:  10,
		TokensOut: 20,
		Model:     "test-model",
	}
}

// DoRequest implements CoreLLM with the configured behavior.
func (m *MockCoreLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	if err := m.track(ctx, prompt, opts); err != nil {
		return "", 0, 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Error != nil {
		return "", 0, 0, m.Error
	}
	return m.Response, m.TokensIn, m.TokensOut, nil
}

// DoStream implements CoreLLM, forwarding the configured fragments in
// order before returning.
func (m *MockCoreLLM) DoStream(ctx context.Context, prompt string, opts map[string]any, onDelta func(string)) (int, int, error) {
	if err := m.track(ctx, prompt, opts); err != nil {
		return 0, 0, err
	}

	m.mu.Lock()
	fragments := m.Fragments
	if fragments == nil {
		fragments = []string{m.Response}
	}
	failure := m.Error
	m.mu.Unlock()

	if failure != nil {
		return 0, 0, failure
	}
	for _, f := range fragments {
		select {
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		default:
		}
		onDelta(f)
	}
	return m.TokensIn, m.TokensOut, nil
}

func (m *MockCoreLLM) track(ctx context.Context, prompt string, opts map[string]any) error {
	m.mu.Lock()
	m.CallCount++
	m.LastPrompt = prompt
	m.LastOpts = opts
	delay := m.ResponseDelay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// GetModel returns the configured model name.
func (m *MockCoreLLM) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

// SetModel updates the model name.
func (m *MockCoreLLM) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Model = model
}

// GetCallCount returns the number of requests the mock has received.
func (m *MockCoreLLM) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}
