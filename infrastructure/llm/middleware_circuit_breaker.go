package llm

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen indicates that the circuit breaker rejected a request
// without forwarding it to the provider.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState represents the current state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed allows all requests to pass through normally.
	CircuitClosed CircuitState = iota

	// CircuitOpen rejects all requests immediately after too many
	// consecutive failures.
	CircuitOpen

	// CircuitHalfOpen allows one request through after the cooldown to
	// test whether the provider has recovered.
	CircuitHalfOpen
)

// circuitBreakerLLM sheds load from a failing provider so a flapping
// backend fails fast instead of tying up fan-out branches until their
// timeouts fire.
type circuitBreakerLLM struct {
	next CoreLLM

	mu          sync.Mutex
	state       CircuitState
	failures    int
	maxFailures int
	cooldown    time.Duration
	lastFailure time.Time
}

// CircuitBreakerMiddleware creates middleware that opens the circuit
// after maxFailures consecutive errors and keeps it open for cooldown
// before probing recovery with a single request.
func CircuitBreakerMiddleware(maxFailures int, cooldown time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &circuitBreakerLLM{
			next:        next,
			state:       CircuitClosed,
			maxFailures: maxFailures,
			cooldown:    cooldown,
		}
	}
}

// allow reports whether a request may proceed, transitioning an open
// circuit to half-open once the cooldown has elapsed.
func (cb *circuitBreakerLLM) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen {
		if time.Since(cb.lastFailure) < cb.cooldown {
			return false
		}
		cb.state = CircuitHalfOpen
	}
	return true
}

// observe updates circuit state from a request outcome. Context
// cancellation is the caller's doing and does not count against the
// provider.
func (cb *circuitBreakerLLM) observe(err error) {
	if errors.Is(err, context.Canceled) {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailure = time.Now()
		if cb.state == CircuitHalfOpen || cb.failures >= cb.maxFailures {
			cb.state = CircuitOpen
		}
		return
	}
	cb.failures = 0
	cb.state = CircuitClosed
}

// State returns the current circuit state for monitoring.
func (cb *circuitBreakerLLM) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// DoRequest executes the request through the circuit breaker.
func (cb *circuitBreakerLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	if !cb.allow() {
		return "", 0, 0, ErrCircuitOpen
	}
	response, tokensIn, tokensOut, err := cb.next.DoRequest(ctx, prompt, opts)
	cb.observe(err)
	return response, tokensIn, tokensOut, err
}

// DoStream executes the streaming request through the circuit breaker.
func (cb *circuitBreakerLLM) DoStream(ctx context.Context, prompt string, opts map[string]any, onDelta func(string)) (int, int, error) {
	if !cb.allow() {
		return 0, 0, ErrCircuitOpen
	}
	tokensIn, tokensOut, err := cb.next.DoStream(ctx, prompt, opts, onDelta)
	cb.observe(err)
	return tokensIn, tokensOut, err
}

// GetModel returns the model name from the wrapped implementation.
func (cb *circuitBreakerLLM) GetModel() string { return cb.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (cb *circuitBreakerLLM) SetModel(m string) { cb.next.SetModel(m) }
