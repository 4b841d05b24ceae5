// Package llm provides a unified client for dispatching completion
// requests to multiple language-model backends, with built-in support
// for streaming, rate limiting, metrics, and tracing.
//
// The package abstracts multiple providers (OpenAI, Anthropic, Google)
// behind a common interface while adding cross-cutting concerns through
// a middleware pattern. Streaming responses are normalized into plain
// content fragments so callers never see provider-specific framing.
//
// Basic usage:
//
//	client, err := llm.NewClient("openai", llm.ClientConfig{
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	    Model:  "gpt-4o",
//	})
//	text, err := client.Complete(ctx, "Hello!", nil)
//
// Streaming usage:
//
//	err := client.CompleteStream(ctx, "Hello!", nil, func(fragment string) {
//	    fmt.Print(fragment)
//	})
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ahrav/go-tribunal/internal/ports"
)

// CoreLLM defines the minimal interface that providers must implement.
// The middleware system wraps any conforming implementation, so
// cross-cutting features apply uniformly to streaming and non-streaming
// requests.
type CoreLLM interface {
	// DoRequest sends a non-streaming completion request.
	// Returns the response text, input token count, output token
	// count, and any error.
	DoRequest(ctx context.Context, prompt string, opts map[string]any) (response string, tokensIn, tokensOut int, err error)

	// DoStream sends a streaming completion request, invoking onDelta
	// once per decoded content fragment in emission order. It returns
	// token counts once the stream is exhausted. All failure
	// conditions surface as the returned error.
	DoStream(ctx context.Context, prompt string, opts map[string]any, onDelta func(fragment string)) (tokensIn, tokensOut int, err error)

	// GetModel returns the currently configured model name.
	GetModel() string

	// SetModel updates the model used for subsequent requests.
	SetModel(model string)
}

// Middleware wraps a CoreLLM implementation to add cross-cutting
// functionality such as timeouts, rate limiting, metrics, or tracing
// without modifying provider logic.
type Middleware func(CoreLLM) CoreLLM

// ClientConfig holds all configuration options for creating a client.
type ClientConfig struct {
	// APIKey authenticates requests to the provider.
	APIKey string

	// Model specifies which model to use for requests.
	Model string

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string

	// Timeout bounds individual requests. Zero means no timeout.
	Timeout time.Duration

	// Middleware is applied in order, first entry outermost.
	Middleware []Middleware
}

// Client implements ports.BackendClient by delegating to a middleware-
// wrapped CoreLLM provider.
type Client struct {
	core CoreLLM
}

var _ ports.BackendClient = (*Client)(nil)

// NewClient creates a backend client for the named provider type.
// It assembles the middleware chain and validates configuration before
// returning a ready-to-use instance.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	factory, ok := providerFactories[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	// Timeout wraps the provider directly so the deadline excludes
	// time spent in outer middleware such as rate limiting.
	if config.Timeout > 0 {
		core = TimeoutMiddleware(ValidateTimeout(config.Timeout))(core)
	}

	// Apply middleware in reverse order so the first entry is outermost.
	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}

	return &Client{core: core}, nil
}

// NewClientFromCore wraps an existing CoreLLM in a Client. Used by
// tests and by callers that assemble their own middleware chains.
func NewClientFromCore(core CoreLLM) *Client { return &Client{core: core} }

// Complete sends a non-streaming completion request and returns the
// generated text, discarding token usage.
func (c *Client) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	response, _, _, err := c.core.DoRequest(ctx, prompt, options)
	return response, err
}

// CompleteStream sends a streaming completion request, forwarding each
// decoded content fragment to onDelta in emission order.
func (c *Client) CompleteStream(ctx context.Context, prompt string, options map[string]any, onDelta func(fragment string)) error {
	_, _, err := c.core.DoStream(ctx, prompt, options, onDelta)
	return err
}

// GetModel returns the configured model name from the underlying provider.
func (c *Client) GetModel() string { return c.core.GetModel() }

// ProviderFactory creates a CoreLLM implementation from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

// Provider factory registry for extensibility. Providers register
// themselves in init.
var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory registers a custom provider factory under the
// given type name.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providerFactories[providerType] = factory
}
