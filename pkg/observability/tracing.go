// Package observability provides Prometheus metrics and OpenTelemetry tracing
// for the host bridge.
package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys set on every operation span
const (
	AttrOperation   = attribute.Key("bridge.operation")
	AttrEnvironment = attribute.Key("bridge.environment")
	AttrConvention  = attribute.Key("bridge.convention")
)

const instrumentationName = "github.com/ajitpratap0/hostbridge-go"

// TracingConfig configures OpenTelemetry tracing
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	ExporterType ExporterType
	Endpoint     string
	Headers      map[string]string
	Insecure     bool

	// SampleRate is the fraction of operations traced, 0 to 1
	SampleRate float64
	// AlwaysSample and NeverSample hold operation names that bypass SampleRate
	AlwaysSample []string
	NeverSample  []string

	// BatchTimeout bounds how long ended spans wait before export
	BatchTimeout time.Duration

	ResourceAttributes map[string]string

	// Exporter overrides ExporterType when set
	Exporter sdktrace.SpanExporter
}

// ExporterType names a span exporter
type ExporterType string

const (
	// ExporterTypeOTLPGRPC exports traces via OTLP over gRPC
	ExporterTypeOTLPGRPC ExporterType = "otlp-grpc"

	// ExporterTypeOTLPHTTP exports traces via OTLP over HTTP
	ExporterTypeOTLPHTTP ExporterType = "otlp-http"

	// ExporterTypeNoop records spans without exporting them
	ExporterTypeNoop ExporterType = "noop"
)

type exporterFactory func(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error)

var exporterFactories = map[ExporterType]exporterFactory{
	ExporterTypeOTLPGRPC: func(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithHeaders(cfg.Headers)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	},
	ExporterTypeOTLPHTTP: func(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithHeaders(cfg.Headers)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	},
}

// TracingProvider starts and annotates operation spans. The annotation
// methods act on the span in the context and may be called on a nil provider.
type TracingProvider struct {
	service  string
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewTracingProvider builds the tracer provider described by cfg and installs
// it as the global provider.
func NewTracingProvider(cfg TracingConfig) (*TracingProvider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "hostbridge"
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = "unknown"
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 5 * time.Second
	}

	exporter := cfg.Exporter
	if exporter == nil {
		switch cfg.ExporterType {
		case ExporterTypeNoop, "":
		default:
			factory, ok := exporterFactories[cfg.ExporterType]
			if !ok {
				return nil, fmt.Errorf("unsupported exporter type: %s", cfg.ExporterType)
			}
			var err error
			if exporter, err = factory(context.Background(), cfg); err != nil {
				return nil, fmt.Errorf("failed to create %s exporter: %w", cfg.ExporterType, err)
			}
		}
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(serviceResource(cfg)),
		sdktrace.WithSampler(newOperationSampler(cfg)),
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(cfg.BatchTimeout)))
	}
	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)

	return &TracingProvider{
		service:  cfg.ServiceName,
		provider: provider,
		tracer:   provider.Tracer(instrumentationName),
	}, nil
}

func serviceResource(cfg TracingConfig) *resource.Resource {
	attrs := make([]attribute.KeyValue, 0, 3+len(cfg.ResourceAttributes))
	attrs = append(attrs,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment))
	for k, v := range cfg.ResourceAttributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

// StartOperationSpan starts the client span of one bridge operation against
// an environment. The span is named bridge.<operation>.
func (tp *TracingProvider) StartOperationSpan(ctx context.Context, operation, environment string) (context.Context, trace.Span) {
	return tp.tracer.Start(ctx, "bridge."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			AttrOperation.String(operation),
			AttrEnvironment.String(environment),
			attribute.String("bridge.service", tp.service),
		))
}

// RecordError marks the span in ctx as failed
func (tp *TracingProvider) RecordError(ctx context.Context, err error) {
	if span := recording(ctx); span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// AddEvent adds an event to the span in ctx
func (tp *TracingProvider) AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	if span := recording(ctx); span != nil {
		span.AddEvent(name, trace.WithAttributes(attrs...))
	}
}

// SetAttributes sets attributes on the span in ctx
func (tp *TracingProvider) SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	if span := recording(ctx); span != nil {
		span.SetAttributes(attrs...)
	}
}

func recording(ctx context.Context) trace.Span {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return nil
	}
	return span
}

// ForceFlush exports all ended spans that have not been exported yet
func (tp *TracingProvider) ForceFlush(ctx context.Context) error {
	return tp.provider.ForceFlush(ctx)
}

// Shutdown flushes and stops the provider. Later calls return the first
// result.
func (tp *TracingProvider) Shutdown(ctx context.Context) error {
	tp.shutdownOnce.Do(func() {
		tp.shutdownErr = tp.provider.Shutdown(ctx)
	})
	return tp.shutdownErr
}

// operationSampler decides by the bridge.operation attribute first and falls
// back to a trace id ratio.
type operationSampler struct {
	forced   map[string]sdktrace.SamplingDecision
	fallback sdktrace.Sampler
	rate     float64
}

func newOperationSampler(cfg TracingConfig) sdktrace.Sampler {
	var fallback sdktrace.Sampler
	switch {
	case cfg.SampleRate >= 1:
		fallback = sdktrace.AlwaysSample()
	case cfg.SampleRate <= 0:
		fallback = sdktrace.NeverSample()
	default:
		fallback = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}
	if len(cfg.AlwaysSample) == 0 && len(cfg.NeverSample) == 0 {
		return fallback
	}

	forced := make(map[string]sdktrace.SamplingDecision, len(cfg.AlwaysSample)+len(cfg.NeverSample))
	for _, op := range cfg.NeverSample {
		forced[op] = sdktrace.Drop
	}
	// always wins when an operation is in both lists
	for _, op := range cfg.AlwaysSample {
		forced[op] = sdktrace.RecordAndSample
	}
	return &operationSampler{forced: forced, fallback: fallback, rate: cfg.SampleRate}
}

func (s *operationSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	operation := p.Name
	for _, kv := range p.Attributes {
		if kv.Key == AttrOperation {
			operation = kv.Value.AsString()
			break
		}
	}
	if decision, ok := s.forced[operation]; ok {
		return sdktrace.SamplingResult{
			Decision:   decision,
			Tracestate: trace.SpanContextFromContext(p.ParentContext).TraceState(),
		}
	}
	return s.fallback.ShouldSample(p)
}

func (s *operationSampler) Description() string {
	return fmt.Sprintf("OperationSampler{rate=%.2f,forced=%d}", s.rate, len(s.forced))
}
