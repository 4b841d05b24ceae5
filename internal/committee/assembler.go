package committee

import (
	"context"
	"strings"

	"github.com/ahrav/go-tribunal/internal/domain"
)

// Assemble consumes a fan-out delta channel and folds it into one
// CandidateResponse per backend, ordered to match backendIDs. It
// returns once every backend has delivered its terminal delta.
//
// Cancelling ctx aborts assembly early: the channel is drained in the
// background so producer goroutines are released, and the context
// error is returned with no partial results.
func Assemble(ctx context.Context, deltas <-chan domain.TokenDelta, backendIDs []string) ([]domain.CandidateResponse, error) {
	type partial struct {
		content strings.Builder
		err     string
		latency int64
		done    bool
	}

	partials := make(map[string]*partial, len(backendIDs))
	for _, id := range backendIDs {
		partials[id] = &partial{}
	}

	remaining := len(backendIDs)
	for remaining > 0 {
		select {
		case <-ctx.Done():
			go drain(deltas)
			return nil, ctx.Err()
		case delta, ok := <-deltas:
			if !ok {
				// Producer closed before every terminal arrived. Treat
				// the missing backends as failed rather than hang.
				remaining = 0
				break
			}
			p, known := partials[delta.BackendID]
			if !known {
				continue
			}
			if delta.Terminal() {
				if !p.done {
					p.done = true
					p.err = delta.Error
					p.latency = delta.LatencyMs
					remaining--
				}
				continue
			}
			p.content.WriteString(delta.Content)
		}
	}

	responses := make([]domain.CandidateResponse, 0, len(backendIDs))
	for _, id := range backendIDs {
		p := partials[id]
		resp := domain.CandidateResponse{
			BackendID: id,
			Content:   p.content.String(),
			Error:     p.err,
			LatencyMs: p.latency,
		}
		if !p.done && resp.Error == "" {
			resp.Error = "stream ended without completion"
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

// Collect runs a full dispatch and assembly in one call for callers
// that do not need live token deltas.
func (d *Dispatcher) Collect(ctx context.Context, prompt string, backendIDs []string, options map[string]any) ([]domain.CandidateResponse, error) {
	deltas, err := d.Run(ctx, prompt, backendIDs, options)
	if err != nil {
		return nil, err
	}
	return Assemble(ctx, deltas, backendIDs)
}

func drain(deltas <-chan domain.TokenDelta) {
	for range deltas {
	}
}
