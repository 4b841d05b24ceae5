package domain

import "strings"

// TokenDelta is a single streaming event from one backend's dispatch.
// A backend emits zero or more content deltas followed by exactly one
// terminal event with Done set. A terminal event may carry Error, in
// which case the branch failed and any accumulated content for that
// backend must be treated as unreliable.
type TokenDelta struct {
	// BackendID identifies which backend produced this event.
	BackendID string `json:"backendId"`

	// Content is the text fragment carried by this event.
	// Terminal events carry an empty fragment.
	Content string `json:"content"`

	// Done marks the terminal event for this backend's stream.
	Done bool `json:"done"`

	// Error holds the failure message when the branch failed.
	// It is only ever set on a terminal event.
	Error string `json:"error,omitempty"`

	// LatencyMs is the wall-clock duration of the branch, set on the
	// terminal event only.
	LatencyMs int64 `json:"latencyMs,omitempty"`
}

// Terminal reports whether this event closes its backend's stream.
func (d TokenDelta) Terminal() bool { return d.Done }

// CandidateResponse is one backend's fully assembled answer to the
// original prompt. It is built up from TokenDelta events and frozen
// once the terminal event arrives.
type CandidateResponse struct {
	// BackendID identifies the backend that produced this response.
	BackendID string `json:"backend_id"`

	// Content is the accumulated response text.
	Content string `json:"content"`

	// Error is the failure message when the backend's dispatch failed.
	// When set, Content must not be trusted even if partially populated.
	Error string `json:"error,omitempty"`

	// LatencyMs measures the dispatch duration in milliseconds.
	LatencyMs int64 `json:"latency_ms,omitempty"`
}

// Usable reports whether this response can participate in judging:
// the dispatch succeeded and produced non-empty content.
func (r CandidateResponse) Usable() bool {
	return r.Error == "" && strings.TrimSpace(r.Content) != ""
}

// UsableResponses filters responses down to the ones judging may evaluate,
// preserving the input order.
func UsableResponses(responses []CandidateResponse) []CandidateResponse {
	usable := make([]CandidateResponse, 0, len(responses))
	for _, r := range responses {
		if r.Usable() {
			usable = append(usable, r)
		}
	}
	return usable
}
