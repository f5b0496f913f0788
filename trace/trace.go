// Package trace provides tracing instrumentation for locator operations.
package trace

import (
	"context"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "xk6.locator"

// Tracer creates spans for navigations and locator calls. A call made on a
// tab is parented to the span of the document the tab currently shows.
type Tracer struct {
	trace.Tracer

	attrs []attribute.KeyValue

	mu          sync.RWMutex
	navigations map[string]trace.Span // by tab ID
}

// NewTracer returns a tracer of tp whose spans all carry metadata as
// attributes. A nil tp records nothing.
func NewTracer(tp trace.TracerProvider, metadata map[string]string, options ...trace.TracerOption) *Tracer {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, attribute.String(k, metadata[k]))
	}

	return &Tracer{
		Tracer:      tp.Tracer(tracerName, options...),
		attrs:       attrs,
		navigations: make(map[string]trace.Span),
	}
}

// NewNoopTracer returns a tracer that records nothing.
func NewNoopTracer() *Tracer {
	return NewTracer(nil, nil)
}

// Start starts a span carrying the tracer metadata.
func (t *Tracer) Start(
	ctx context.Context, spanName string, opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	return t.Tracer.Start(ctx, spanName, append(opts, trace.WithAttributes(t.attrs...))...)
}

// TraceAPICall starts a span for a call made on tabID. The caller ends it.
// Without a navigation span for the tab the span is parented by whatever
// span ctx holds.
func (t *Tracer) TraceAPICall(
	ctx context.Context, tabID string, spanName string, opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	t.mu.RLock()
	nav := t.navigations[tabID]
	t.mu.RUnlock()

	if nav != nil {
		ctx = trace.ContextWithSpan(ctx, nav)
	}
	return t.Start(ctx, spanName, opts...)
}

// TraceNavigation starts the navigation span of tabID, ending the previous
// one. The span stays open until the next navigation or EndNavigation.
func (t *Tracer) TraceNavigation(
	ctx context.Context, tabID string, opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev := t.navigations[tabID]; prev != nil {
		prev.End()
	}
	ctx, span := t.Start(ctx, "navigation", opts...)
	t.navigations[tabID] = span

	return ctx, span
}

// EndNavigation ends the navigation span of tabID, if any.
func (t *Tracer) EndNavigation(tabID string) {
	t.mu.Lock()
	span := t.navigations[tabID]
	delete(t.navigations, tabID)
	t.mu.Unlock()

	if span != nil {
		span.End()
	}
}

// RecordError marks span as failed with err. A nil err does nothing.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
