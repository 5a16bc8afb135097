// Package telemetry provides OpenTelemetry tracing for the plugin context
// boundary: settings access, journal delivery and shutdown.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Tracer wraps an OpenTelemetry tracer with boundary-specific helpers.
type Tracer struct {
	tracer trace.Tracer
	debug  bool // When true, setting values are attached to spans
}

var (
	globalTracer *Tracer
	tracerMu     sync.RWMutex
)

// SetGlobalTracer sets the global tracer instance.
func SetGlobalTracer(t *Tracer) {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	globalTracer = t
}

// GetTracer returns the global tracer, or a no-op tracer if not set.
func GetTracer() *Tracer {
	tracerMu.RLock()
	defer tracerMu.RUnlock()
	if globalTracer == nil {
		return NewTracerFrom(noop.NewTracerProvider().Tracer(""), false)
	}
	return globalTracer
}

// NewTracer creates a tracer from the global OpenTelemetry provider.
func NewTracer(name string, debug bool) *Tracer {
	return &Tracer{tracer: otel.Tracer(name), debug: debug}
}

// NewTracerFrom wraps an existing OpenTelemetry tracer.
func NewTracerFrom(t trace.Tracer, debug bool) *Tracer {
	return &Tracer{tracer: t, debug: debug}
}

// Debug returns whether debug mode is enabled.
func (t *Tracer) Debug() bool {
	return t.debug
}

// --- Settings Spans ---

// SettingsSpanOptions describes a finished settings operation.
type SettingsSpanOptions struct {
	PluginID     string
	Key          string
	QualifiedKey string
	Found        bool
	Listeners    int
	Value        string // Only included if debug=true
}

// StartSettingsSpan starts a span for a settings read or write.
func (t *Tracer) StartSettingsSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "settings."+op, trace.WithSpanKind(trace.SpanKindInternal))
}

// EndSettingsSpan ends a settings span with attributes.
func (t *Tracer) EndSettingsSpan(span trace.Span, opts SettingsSpanOptions, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("plugin.id", opts.PluginID),
		attribute.String("settings.key", opts.Key),
		attribute.String("settings.qualified_key", opts.QualifiedKey),
		attribute.Bool("settings.found", opts.Found),
		attribute.Int("settings.listeners", opts.Listeners),
	}
	if t.debug && opts.Value != "" {
		attrs = append(attrs, attribute.String("settings.value", truncate(opts.Value, 1000)))
	}
	span.SetAttributes(attrs...)
	end(span, err)
}

// --- Journal Spans ---

// JournalSpanOptions describes a delivered journal batch.
type JournalSpanOptions struct {
	Cmdr      string
	File      string
	Events    int
	Listeners int
	Malformed int
}

// StartJournalSpan starts a span for one batch delivery.
func (t *Tracer) StartJournalSpan(ctx context.Context) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "journal.deliver", trace.WithSpanKind(trace.SpanKindConsumer))
}

// EndJournalSpan ends a journal span with attributes.
func (t *Tracer) EndJournalSpan(span trace.Span, opts JournalSpanOptions) {
	span.SetAttributes(
		attribute.String("journal.cmdr", opts.Cmdr),
		attribute.String("journal.file", opts.File),
		attribute.Int("journal.events", opts.Events),
		attribute.Int("journal.listeners", opts.Listeners),
		attribute.Int("journal.malformed", opts.Malformed),
	)
	span.SetStatus(codes.Ok, "")
	span.End()
}

// --- Shutdown Spans ---

// ShutdownSpanOptions describes a finished shutdown sequence.
type ShutdownSpanOptions struct {
	Callbacks int
	Failed    int
	Abandoned int
}

// StartShutdownSpan starts a span covering the grace period.
func (t *Tracer) StartShutdownSpan(ctx context.Context) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "shutdown.initiate", trace.WithSpanKind(trace.SpanKindInternal))
}

// EndShutdownSpan ends a shutdown span with attributes.
func (t *Tracer) EndShutdownSpan(span trace.Span, opts ShutdownSpanOptions, err error) {
	span.SetAttributes(
		attribute.Int("shutdown.callbacks", opts.Callbacks),
		attribute.Int("shutdown.failed", opts.Failed),
		attribute.Int("shutdown.abandoned", opts.Abandoned),
	)
	end(span, err)
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// --- Context Propagation ---

// InjectContext injects trace context into a carrier for cross-process propagation.
func InjectContext(ctx context.Context, carrier propagation.TextMapCarrier) {
	otel.GetTextMapPropagator().Inject(ctx, carrier)
}

// ExtractContext extracts trace context from a carrier.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// MapCarrier is a simple map-based TextMapCarrier for context propagation.
type MapCarrier map[string]string

func (c MapCarrier) Get(key string) string {
	return c[key]
}

func (c MapCarrier) Set(key, value string) {
	c[key] = value
}

func (c MapCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
