// Package tracing provides OpenTelemetry tracing for sync invocations. It
// supports stdout and OTLP exporters and offers span helpers for the sync run,
// its state machine states and destination write windows.
package tracing

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	// TracerName is the instrumentation name of the docsync tracer.
	TracerName = "github.com/jbctechsolutions/docsync"

	// Version is the semantic version of the tracer.
	Version = "1.0.0"
)

// ExporterType defines the type of trace exporter.
type ExporterType string

const (
	ExporterNone   ExporterType = "none"
	ExporterStdout ExporterType = "stdout"
	ExporterOTLP   ExporterType = "otlp"
)

// Config holds tracing configuration.
type Config struct {
	Enabled      bool         // Whether tracing is enabled
	ExporterType ExporterType // Type of exporter to use
	OTLPEndpoint string       // OTLP collector endpoint (for OTLP exporter)
	ServiceName  string       // Service name for traces
	Environment  string       // Deployment environment (development, production)
	SampleRate   float64      // Sampling rate (0.0 to 1.0)
	Output       io.Writer    // Output for stdout exporter (defaults to os.Stdout)
}

// DefaultConfig returns sensible default tracing configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:      false,
		ExporterType: ExporterNone,
		ServiceName:  "docsync",
		Environment:  "development",
		SampleRate:   1.0,
	}
}

// Tracer wraps an OpenTelemetry tracer with domain-specific functionality.
type Tracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	config   Config
}

// Default returns a tracer that records nothing, for callers that were not
// given one.
func Default() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(TracerName),
		config: DefaultConfig(),
	}
}

// New creates a new Tracer with the provided configuration.
func New(ctx context.Context, cfg Config) (*Tracer, error) {
	if !cfg.Enabled || cfg.ExporterType == ExporterNone {
		return &Tracer{
			tracer: noop.NewTracerProvider().Tracer(TracerName),
			config: cfg,
		}, nil
	}

	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(Version),
			attribute.String("deployment.environment", cfg.Environment),
		),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var sampler sdktrace.Sampler
	if cfg.SampleRate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else if cfg.SampleRate <= 0.0 {
		sampler = sdktrace.NeverSample()
	} else {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	otel.SetTracerProvider(provider)

	return &Tracer{
		tracer:   provider.Tracer(TracerName, trace.WithInstrumentationVersion(Version)),
		provider: provider,
		config:   cfg,
	}, nil
}

// createExporter creates the appropriate exporter based on configuration.
func createExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.ExporterType {
	case ExporterStdout:
		opts := []stdouttrace.Option{
			stdouttrace.WithPrettyPrint(),
		}
		if cfg.Output != nil {
			opts = append(opts, stdouttrace.WithWriter(cfg.Output))
		}
		return stdouttrace.New(opts...)

	case ExporterOTLP:
		opts := []otlptracehttp.Option{
			otlptracehttp.WithInsecure(),
		}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		return otlptracehttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.ExporterType)
	}
}

// Shutdown gracefully shuts down the tracer provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider != nil {
		return t.provider.Shutdown(ctx)
	}
	return nil
}

// Start starts a new span with the given name.
func (t *Tracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// SpanFromContext returns the current span from context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// --- Sync span helpers ---

// SyncSpan covers one sync invocation.
type SyncSpan struct {
	span trace.Span
}

// StartSyncSpan starts the root span of a sync invocation.
func (t *Tracer) StartSyncSpan(ctx context.Context, direction, sourceID, correlationID string) (context.Context, *SyncSpan) {
	ctx, span := t.tracer.Start(ctx, "sync.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("sync.direction", direction),
			attribute.String("sync.source_id", sourceID),
			attribute.String("sync.correlation_id", correlationID),
		),
	)
	return ctx, &SyncSpan{span: span}
}

// SetResult records the outcome counters of the sync.
func (s *SyncSpan) SetResult(status, operation, destinationID string, committed, total, warnings int) {
	s.span.SetAttributes(
		attribute.String("sync.status", status),
		attribute.String("sync.operation", operation),
		attribute.String("sync.destination_id", destinationID),
		attribute.Int("sync.blocks.committed", committed),
		attribute.Int("sync.blocks.total", total),
		attribute.Int("sync.warnings", warnings),
	)
}

// End ends the sync span with success status.
func (s *SyncSpan) End() {
	s.span.SetStatus(codes.Ok, "sync completed")
	s.span.End()
}

// EndWithError ends the sync span with error status.
func (s *SyncSpan) EndWithError(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
	s.span.End()
}

// StateSpan covers one state of the sync state machine.
type StateSpan struct {
	span trace.Span
}

// StartStateSpan starts a span for a state machine state.
func (t *Tracer) StartStateSpan(ctx context.Context, state string) (context.Context, *StateSpan) {
	ctx, span := t.tracer.Start(ctx, "sync.state",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("sync.state", state)),
	)
	return ctx, &StateSpan{span: span}
}

// End ends the state span with success status.
func (s *StateSpan) End() {
	s.span.SetStatus(codes.Ok, "state completed")
	s.span.End()
}

// EndWithError ends the state span with error status.
func (s *StateSpan) EndWithError(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
	s.span.End()
}

// WindowSpan covers one destination write request.
type WindowSpan struct {
	span trace.Span
}

// StartWindowSpan starts a client span for writing native units [start, end).
func (t *Tracer) StartWindowSpan(ctx context.Context, destination string, start, end int) (context.Context, *WindowSpan) {
	ctx, span := t.tracer.Start(ctx, "sync.write_window",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("sync.destination", destination),
			attribute.Int("sync.window.start", start),
			attribute.Int("sync.window.end", end),
		),
	)
	return ctx, &WindowSpan{span: span}
}

// End ends the window span with success status.
func (w *WindowSpan) End() {
	w.span.SetStatus(codes.Ok, "window committed")
	w.span.End()
}

// EndWithError ends the window span with error status.
func (w *WindowSpan) EndWithError(err error) {
	w.span.RecordError(err)
	w.span.SetStatus(codes.Error, err.Error())
	w.span.End()
}

// AddEvent adds an event to the current span.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// RecordError records an error on the current span.
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
}

// SetAttribute sets an attribute on the current span.
func SetAttribute(ctx context.Context, key string, value any) {
	span := trace.SpanFromContext(ctx)
	switch v := value.(type) {
	case string:
		span.SetAttributes(attribute.String(key, v))
	case int:
		span.SetAttributes(attribute.Int(key, v))
	case int64:
		span.SetAttributes(attribute.Int64(key, v))
	case float64:
		span.SetAttributes(attribute.Float64(key, v))
	case bool:
		span.SetAttributes(attribute.Bool(key, v))
	}
}
