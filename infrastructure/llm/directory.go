package llm

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/ahrav/go-tribunal/internal/ports"
)

// BackendConfig declares one named backend: which provider serves it,
// which model it runs, and how it is displayed.
type BackendConfig struct {
	// ID is the backend identifier used throughout the system.
	ID string
	// Provider selects the provider implementation (openai, anthropic, google).
	Provider string
	// Model is the model identifier passed to the provider.
	Model string
	// Label is the human-readable display name. Empty degrades to ID.
	Label string
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string
	// BaseURL overrides the provider's default endpoint.
	BaseURL string
}

// DirectoryConfig holds settings shared by every backend in a directory.
type DirectoryConfig struct {
	// Backends declares the available backends.
	Backends []BackendConfig
	// DefaultTimeout bounds each backend request.
	DefaultTimeout time.Duration
	// Middleware is applied to every backend client, first entry outermost.
	Middleware []Middleware
}

// Directory implements ports.BackendDirectory over a fixed set of
// configured backend clients. Construction is eager: every configured
// backend must initialize or the whole directory fails, so requests
// never discover misconfiguration at dispatch time.
type Directory struct {
	mu      sync.RWMutex
	clients map[string]ports.BackendClient
	labels  map[string]string
}

var _ ports.BackendDirectory = (*Directory)(nil)

// NewDirectory builds a Directory from configuration, creating one
// middleware-wrapped client per backend.
func NewDirectory(config DirectoryConfig) (*Directory, error) {
	if len(config.Backends) == 0 {
		return nil, fmt.Errorf("directory requires at least one backend")
	}

	d := &Directory{
		clients: make(map[string]ports.BackendClient, len(config.Backends)),
		labels:  make(map[string]string, len(config.Backends)),
	}

	for _, b := range config.Backends {
		if b.ID == "" {
			return nil, fmt.Errorf("backend ID cannot be empty")
		}
		if _, exists := d.clients[b.ID]; exists {
			return nil, fmt.Errorf("backend %q declared twice", b.ID)
		}

		apiKey := os.Getenv(b.APIKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("backend %q: environment variable %s is not set", b.ID, b.APIKeyEnv)
		}

		client, err := NewClient(b.Provider, ClientConfig{
			APIKey:     apiKey,
			Model:      b.Model,
			BaseURL:    b.BaseURL,
			Timeout:    config.DefaultTimeout,
			Middleware: config.Middleware,
		})
		if err != nil {
			return nil, fmt.Errorf("backend %q: %w", b.ID, err)
		}

		d.clients[b.ID] = client
		d.labels[b.ID] = b.Label
	}

	return d, nil
}

// NewStaticDirectory builds a directory from pre-constructed clients.
// Used by tests and embedders that manage their own client lifecycle.
func NewStaticDirectory(clients map[string]ports.BackendClient, labels map[string]string) *Directory {
	d := &Directory{
		clients: make(map[string]ports.BackendClient, len(clients)),
		labels:  make(map[string]string, len(labels)),
	}
	for id, c := range clients {
		d.clients[id] = c
	}
	for id, l := range labels {
		d.labels[id] = l
	}
	return d
}

// Client returns the client configured for id.
func (d *Directory) Client(id string) (ports.BackendClient, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.clients[id]
	return c, ok
}

// Label returns the display name for id, degrading to the identifier
// itself when no label is configured.
func (d *Directory) Label(id string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if label, ok := d.labels[id]; ok && label != "" {
		return label
	}
	return id
}

// IDs returns every configured backend identifier in sorted order.
func (d *Directory) IDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]string, 0, len(d.clients))
	for id := range d.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
