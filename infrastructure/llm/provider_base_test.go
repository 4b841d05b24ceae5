package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-tribunal/internal/ports"
)

func TestParseRequestOptions(t *testing.T) {
	tests := []struct {
		name string
		opts map[string]any
		want RequestOptions
	}{
		{
			name: "nil options use defaults",
			opts: nil,
			want: RequestOptions{MaxTokens: DefaultMaxTokens, Model: "default-model"},
		},
		{
			name: "explicit values",
			opts: map[string]any{"max_tokens": 256, "model": "other", "system": "be brief"},
			want: RequestOptions{MaxTokens: 256, Model: "other", System: "be brief"},
		},
		{
			name: "max tokens as float",
			opts: map[string]any{"max_tokens": 512.0},
			want: RequestOptions{MaxTokens: 512, Model: "default-model"},
		},
		{
			name: "invalid max tokens falls back",
			opts: map[string]any{"max_tokens": -5},
			want: RequestOptions{MaxTokens: DefaultMaxTokens, Model: "default-model"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseRequestOptions(tt.opts, "default-model")
			assert.Equal(t, tt.want.MaxTokens, got.MaxTokens)
			assert.Equal(t, tt.want.Model, got.Model)
			assert.Equal(t, tt.want.System, got.System)
		})
	}
}

func TestParseRequestOptionsTemperature(t *testing.T) {
	got := ParseRequestOptions(map[string]any{"temperature": 0.0}, "m")
	require.NotNil(t, got.Temperature)
	assert.Equal(t, 0.0, *got.Temperature)

	got = ParseRequestOptions(map[string]any{"temperature": 0.7}, "m")
	require.NotNil(t, got.Temperature)
	assert.Equal(t, 0.7, *got.Temperature)

	got = ParseRequestOptions(map[string]any{"temperature": 5.0}, "m")
	assert.Nil(t, got.Temperature, "out-of-range temperature means provider default")

	got = ParseRequestOptions(nil, "m")
	assert.Nil(t, got.Temperature)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("hi"))
	assert.Equal(t, 3, EstimateTokens("twelve chars"))

	assert.Equal(t, 7, tokenCount(7, "twelve chars"))
	assert.Equal(t, 3, tokenCount(0, "twelve chars"))
}

func TestErrorClassifier(t *testing.T) {
	ec := &ErrorClassifier{Provider: "openai"}

	tests := []struct {
		status int
		want   ErrorType
	}{
		{status: 401, want: ErrorTypeAuthentication},
		{status: 403, want: ErrorTypeAuthentication},
		{status: 429, want: ErrorTypeRateLimit},
		{status: 404, want: ErrorTypeNotFound},
		{status: 422, want: ErrorTypeBadRequest},
		{status: 503, want: ErrorTypeServerError},
		{status: 0, want: ErrorTypeUnknown},
	}
	for _, tt := range tests {
		perr := ec.ClassifyHTTPError(tt.status, "msg", errors.New("wrapped"))
		assert.Equal(t, tt.want, perr.Type, "status %d", tt.status)
		assert.Equal(t, "openai", perr.Provider)
	}

	assert.Equal(t, ErrorTypeTimeout, ec.ClassifyContextError(context.DeadlineExceeded).Type)
	assert.Equal(t, ErrorTypeNetwork, ec.ClassifyContextError(context.Canceled).Type)
}

func TestProviderErrorMessage(t *testing.T) {
	perr := NewProviderError("anthropic", ErrorTypeRateLimit, 429, "slow down", errors.New("underlying"))

	msg := perr.Error()
	assert.Contains(t, msg, "anthropic error")
	assert.Contains(t, msg, "HTTP 429")
	assert.Contains(t, msg, "rate_limit")
	assert.Contains(t, msg, "slow down")

	assert.ErrorIs(t, perr, perr.WrappedError)
}

func TestProviderErrorMatchesPortSentinels(t *testing.T) {
	tests := []struct {
		errType  ErrorType
		sentinel error
	}{
		{errType: ErrorTypeRateLimit, sentinel: ports.ErrRateLimited},
		{errType: ErrorTypeAuthentication, sentinel: ports.ErrAuthenticationFailed},
		{errType: ErrorTypeServerError, sentinel: ports.ErrServiceUnavailable},
		{errType: ErrorTypeTimeout, sentinel: ports.ErrTimeout},
		{errType: ErrorTypeBadRequest, sentinel: ports.ErrInvalidResponse},
	}
	for _, tt := range tests {
		perr := NewProviderError("openai", tt.errType, 0, "msg", nil)
		assert.ErrorIs(t, perr, tt.sentinel)
	}

	unknown := NewProviderError("openai", ErrorTypeUnknown, 0, "msg", nil)
	assert.NotErrorIs(t, unknown, ports.ErrRateLimited)
}
