// Package committee dispatches a single prompt to multiple LLM backends
// concurrently and assembles their streamed output into candidate
// responses ready for judging.
package committee

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ahrav/go-tribunal/internal/domain"
	"github.com/ahrav/go-tribunal/internal/ports"
)

// deltaBufferSize is the per-dispatch buffer on the merged delta
// channel. It absorbs short bursts so fast backends are not throttled
// by a slow consumer.
const deltaBufferSize = 64

// Dispatcher fans a prompt out to a set of backends and merges their
// token streams onto a single channel.
type Dispatcher struct {
	directory ports.BackendDirectory
	metrics   ports.MetricsCollector
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMetrics attaches a metrics collector that records per-branch
// latency and outcomes.
func WithMetrics(collector ports.MetricsCollector) Option {
	return func(d *Dispatcher) { d.metrics = collector }
}

// NewDispatcher creates a Dispatcher backed by the given directory.
func NewDispatcher(directory ports.BackendDirectory, opts ...Option) (*Dispatcher, error) {
	if directory == nil {
		return nil, fmt.Errorf("backend directory must not be nil")
	}
	d := &Dispatcher{directory: directory}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Run dispatches prompt to every backend in backendIDs concurrently and
// returns a channel of token deltas. Each backend emits zero or more
// content deltas followed by exactly one terminal delta carrying its
// total latency and, on failure, an error message. The channel is
// closed once every backend has emitted its terminal delta.
//
// A failing backend never disturbs the others. Cancelling ctx stops all
// in-flight streams; each branch still emits its terminal delta before
// the channel closes.
func (d *Dispatcher) Run(ctx context.Context, prompt string, backendIDs []string, options map[string]any) (<-chan domain.TokenDelta, error) {
	if err := validateDispatch(prompt, backendIDs); err != nil {
		return nil, err
	}

	out := make(chan domain.TokenDelta, deltaBufferSize)

	var wg sync.WaitGroup
	for _, id := range backendIDs {
		wg.Add(1)
		go func(backendID string) {
			defer wg.Done()
			d.runBranch(ctx, backendID, prompt, options, out)
		}(id)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}

// runBranch streams one backend and emits its deltas followed by a
// single terminal delta.
func (d *Dispatcher) runBranch(ctx context.Context, backendID, prompt string, options map[string]any, out chan<- domain.TokenDelta) {
	start := time.Now()

	client, ok := d.directory.Client(backendID)
	if !ok {
		d.emitTerminal(out, backendID, start, fmt.Errorf("%w: %s", domain.ErrUnknownBackend, backendID))
		return
	}

	err := client.CompleteStream(ctx, prompt, options, func(fragment string) {
		if fragment == "" {
			return
		}
		select {
		case out <- domain.TokenDelta{BackendID: backendID, Content: fragment}:
		case <-ctx.Done():
		}
	})

	d.emitTerminal(out, backendID, start, err)
}

// emitTerminal sends the branch's single terminal delta. The send is
// unconditional so the consumer always observes one terminal delta per
// backend even when the context has been cancelled; the merged channel
// is buffered and stays open until every branch has finished.
func (d *Dispatcher) emitTerminal(out chan<- domain.TokenDelta, backendID string, start time.Time, err error) {
	latency := time.Since(start)
	delta := domain.TokenDelta{
		BackendID: backendID,
		Done:      true,
		LatencyMs: latency.Milliseconds(),
	}
	status := "success"
	if err != nil {
		delta.Error = err.Error()
		status = "error"
	}

	if d.metrics != nil {
		d.metrics.RecordHistogram("fanout_branch_seconds", latency.Seconds(), map[string]string{
			"backend": backendID,
			"status":  status,
		})
	}

	out <- delta
}

// validateDispatch rejects requests that cannot produce a meaningful
// fan-out before any backend is contacted.
func validateDispatch(prompt string, backendIDs []string) error {
	if prompt == "" {
		return domain.ErrEmptyPrompt
	}
	if len(backendIDs) == 0 {
		return fmt.Errorf("at least one backend is required")
	}
	seen := make(map[string]struct{}, len(backendIDs))
	for _, id := range backendIDs {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateBackend, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
