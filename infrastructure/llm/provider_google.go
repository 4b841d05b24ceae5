package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// GoogleDefaultModel is used when the configuration omits a model.
const GoogleDefaultModel = "gemini-2.0-flash"

func init() {
	RegisterProviderFactory("google", newGoogleProvider)
}

// googleProvider implements CoreLLM for Google's Gemini API.
// Streaming requests iterate the SDK's response sequence and forward
// each chunk's text as a fragment.
type googleProvider struct {
	BaseProvider
	client          *genai.Client
	errorClassifier *ErrorClassifier
}

func newGoogleProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = GoogleDefaultModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	return &googleProvider{
		BaseProvider:    BaseProvider{model: model},
		client:          client,
		errorClassifier: &ErrorClassifier{Provider: "google"},
	}, nil
}

// DoRequest sends a non-streaming generate-content request.
func (p *googleProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	options := ParseRequestOptions(opts, p.GetModel())

	resp, err := p.client.Models.GenerateContent(ctx, options.Model,
		p.buildContents(prompt, options), p.buildGenerationConfig(options))
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}

	content := resp.Text()
	if content == "" {
		return "", 0, 0, ErrEmptyResponse
	}

	tokensIn, tokensOut := p.usageCounts(resp.UsageMetadata, prompt, content)
	return content, tokensIn, tokensOut, nil
}

// DoStream sends a streaming generate-content request and forwards each
// chunk's text to onDelta in arrival order.
func (p *googleProvider) DoStream(ctx context.Context, prompt string, opts map[string]any, onDelta func(string)) (int, int, error) {
	options := ParseRequestOptions(opts, p.GetModel())

	var content strings.Builder
	var usage *genai.GenerateContentResponseUsageMetadata
	for resp, err := range p.client.Models.GenerateContentStream(ctx, options.Model,
		p.buildContents(prompt, options), p.buildGenerationConfig(options)) {
		if err != nil {
			return 0, 0, p.handleError(err)
		}
		if resp.UsageMetadata != nil {
			usage = resp.UsageMetadata
		}
		if text := resp.Text(); text != "" {
			content.WriteString(text)
			onDelta(text)
		}
	}
	if content.Len() == 0 {
		return 0, 0, ErrEmptyResponse
	}

	tokensIn, tokensOut := p.usageCounts(usage, prompt, content.String())
	return tokensIn, tokensOut, nil
}

func (p *googleProvider) usageCounts(usage *genai.GenerateContentResponseUsageMetadata, prompt, content string) (int, int) {
	tokensIn, tokensOut := 0, 0
	if usage != nil {
		tokensIn = int(usage.PromptTokenCount)
		tokensOut = int(usage.CandidatesTokenCount)
	}
	return tokenCount(tokensIn, prompt), tokenCount(tokensOut, content)
}

// buildContents prepends the system prompt to the user prompt since the
// Gemini API has no separate system role on this path.
func (p *googleProvider) buildContents(prompt string, options RequestOptions) []*genai.Content {
	finalPrompt := prompt
	if options.System != "" {
		finalPrompt = fmt.Sprintf("System: %s\n\nUser: %s", options.System, prompt)
	}
	return []*genai.Content{genai.NewContentFromText(finalPrompt, genai.RoleUser)}
}

func (p *googleProvider) buildGenerationConfig(options RequestOptions) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if options.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*options.Temperature))
	}
	if options.MaxTokens > 0 {
		if options.MaxTokens > math.MaxInt32 {
			config.MaxOutputTokens = math.MaxInt32
		} else {
			config.MaxOutputTokens = int32(options.MaxTokens)
		}
	}
	return config
}

func (p *googleProvider) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" && len(apiErr.Errors) > 0 {
			message = apiErr.Errors[0].Message
		}
		return p.errorClassifier.ClassifyHTTPError(apiErr.Code, message, err)
	}

	return NewProviderError("google", ErrorTypeUnknown, 0, "request failed", err)
}
