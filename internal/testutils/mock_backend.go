// Package testutils provides deterministic mock backends for testing
// the dispatch and judging pipeline without network access.
package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/ahrav/go-tribunal/internal/ports"
)

// MockBackend implements ports.BackendClient with scripted behavior so
// tests can control exactly what a backend streams, returns, and how
// long it takes.
type MockBackend struct {
	// Model is the identifier reported by GetModel.
	Model string

	// Response is returned by Complete and, when Fragments is empty,
	// streamed as a single fragment by CompleteStream.
	Response string

	// Fragments, when set, are streamed one onDelta call each in order.
	Fragments []string

	// Err, when set, is returned by both Complete and CompleteStream.
	// Fragments emitted before a streaming error are still delivered.
	Err error

	// FailAfter controls how many fragments stream before Err is
	// returned. Zero with Err set fails before any fragment.
	FailAfter int

	// Delay is slept before each fragment and before Complete returns,
	// honoring context cancellation.
	Delay time.Duration

	mu          sync.Mutex
	calls       int
	lastPrompt  string
	lastOptions map[string]any
}

var _ ports.BackendClient = (*MockBackend)(nil)

// Complete returns the scripted response after the configured delay.
func (m *MockBackend) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	m.record(prompt, options)
	if err := m.sleep(ctx); err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// CompleteStream streams the scripted fragments, failing after
// FailAfter fragments when Err is set.
func (m *MockBackend) CompleteStream(ctx context.Context, prompt string, options map[string]any, onDelta func(fragment string)) error {
	m.record(prompt, options)

	fragments := m.Fragments
	if len(fragments) == 0 && m.Response != "" {
		fragments = []string{m.Response}
	}

	for i, fragment := range fragments {
		if m.Err != nil && i >= m.FailAfter {
			return m.Err
		}
		if err := m.sleep(ctx); err != nil {
			return err
		}
		onDelta(fragment)
	}
	if m.Err != nil {
		if err := m.sleep(ctx); err != nil {
			return err
		}
		return m.Err
	}
	return nil
}

// GetModel returns the scripted model identifier.
func (m *MockBackend) GetModel() string {
	if m.Model == "" {
		return "mock-model"
	}
	return m.Model
}

// Calls returns how many requests this backend has received.
func (m *MockBackend) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastPrompt returns the prompt of the most recent request.
func (m *MockBackend) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPrompt
}

// LastOptions returns the options of the most recent request.
func (m *MockBackend) LastOptions() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOptions
}

func (m *MockBackend) record(prompt string, options map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastPrompt = prompt
	m.lastOptions = options
}

func (m *MockBackend) sleep(ctx context.Context) error {
	if m.Delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(m.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MockDirectory implements ports.BackendDirectory over a fixed set of
// mock backends.
type MockDirectory struct {
	backends map[string]ports.BackendClient
	labels   map[string]string
	order    []string
}

var _ ports.BackendDirectory = (*MockDirectory)(nil)

// NewMockDirectory creates an empty directory. Backends are added with
// Add in the order tests want IDs to report them.
func NewMockDirectory() *MockDirectory {
	return &MockDirectory{
		backends: make(map[string]ports.BackendClient),
		labels:   make(map[string]string),
	}
}

// Add registers a backend under id with an optional display label.
func (d *MockDirectory) Add(id, label string, client ports.BackendClient) *MockDirectory {
	if _, exists := d.backends[id]; !exists {
		d.order = append(d.order, id)
	}
	d.backends[id] = client
	if label != "" {
		d.labels[id] = label
	}
	return d
}

// Client returns the backend registered under id.
func (d *MockDirectory) Client(id string) (ports.BackendClient, bool) {
	client, ok := d.backends[id]
	return client, ok
}

// Label returns the display label for id, degrading to the identifier.
func (d *MockDirectory) Label(id string) string {
	if label, ok := d.labels[id]; ok {
		return label
	}
	return id
}

// IDs returns the registered identifiers in insertion order.
func (d *MockDirectory) IDs() []string {
	ids := make([]string, len(d.order))
	copy(ids, d.order)
	return ids
}
