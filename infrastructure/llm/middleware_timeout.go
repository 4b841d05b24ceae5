package llm

import (
	"context"
	"time"
)

// timeoutLLM enforces a per-request deadline so a hung backend cannot
// stall its branch of a fan-out indefinitely.
type timeoutLLM struct {
	next    CoreLLM
	timeout time.Duration
}

// TimeoutMiddleware creates middleware that bounds each request with a
// deadline. A timed-out request fails like any other dispatch failure
// and never blocks sibling dispatches.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &timeoutLLM{next: next, timeout: timeout}
	}
}

// DoRequest executes the request under a timeout context.
func (t *timeoutLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.DoRequest(ctx, prompt, opts)
}

// DoStream executes the streaming request under a timeout context.
// The deadline covers the whole stream, not individual fragments.
func (t *timeoutLLM) DoStream(ctx context.Context, prompt string, opts map[string]any, onDelta func(string)) (int, int, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.DoStream(ctx, prompt, opts, onDelta)
}

// GetModel returns the model name from the wrapped implementation.
func (t *timeoutLLM) GetModel() string { return t.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (t *timeoutLLM) SetModel(m string) { t.next.SetModel(m) }
