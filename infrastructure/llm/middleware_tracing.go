package llm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracedLLM wraps requests in OpenTelemetry spans for distributed
// tracing across the dispatch pipeline.
type tracedLLM struct {
	next   CoreLLM
	tracer trace.Tracer
}

// TracingMiddleware creates middleware that records one span per
// request with model, prompt size, and token usage attributes.
func TracingMiddleware(serviceName string) Middleware {
	tracer := otel.Tracer(serviceName)
	return func(next CoreLLM) CoreLLM {
		return &tracedLLM{next: next, tracer: tracer}
	}
}

// DoRequest executes the request within a trace span.
func (t *tracedLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	ctx, span := t.startSpan(ctx, "llm.complete", prompt)
	defer span.End()

	response, tokensIn, tokensOut, err := t.next.DoRequest(ctx, prompt, opts)
	t.finishSpan(span, tokensIn, tokensOut, err)
	return response, tokensIn, tokensOut, err
}

// DoStream executes the streaming request within a trace span covering
// the full stream duration.
func (t *tracedLLM) DoStream(ctx context.Context, prompt string, opts map[string]any, onDelta func(string)) (int, int, error) {
	ctx, span := t.startSpan(ctx, "llm.stream", prompt)
	defer span.End()

	tokensIn, tokensOut, err := t.next.DoStream(ctx, prompt, opts, onDelta)
	t.finishSpan(span, tokensIn, tokensOut, err)
	return tokensIn, tokensOut, err
}

func (t *tracedLLM) startSpan(ctx context.Context, name, prompt string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name,
		trace.WithAttributes(
			attribute.String("llm.model", t.next.GetModel()),
			attribute.Int("llm.prompt.length", len(prompt)),
		),
	)
}

func (t *tracedLLM) finishSpan(span trace.Span, tokensIn, tokensOut int, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetAttributes(
		attribute.Int("llm.tokens.input", tokensIn),
		attribute.Int("llm.tokens.output", tokensOut),
	)
}

// GetModel returns the model name from the wrapped implementation.
func (t *tracedLLM) GetModel() string { return t.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (t *tracedLLM) SetModel(m string) { t.next.SetModel(m) }
