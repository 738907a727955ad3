// Package otelexport ships gateway request spans to an OTLP collector.
package otelexport

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ErrNoEndpoint is returned by New when Config.Endpoint is empty.
var ErrNoEndpoint = errors.New("otelexport: endpoint is required")

// Config selects the collector and how gateway spans are sampled.
type Config struct {
	Endpoint       string // host:port of the collector
	Protocol       string // "grpc" (default) or "http"
	Insecure       bool
	ServiceName    string // default "keyproxy"
	ServiceVersion string
	Headers        map[string]string
	// SampleRatio is the fraction of root spans kept. <= 0 or >= 1 keeps all.
	SampleRatio float64
}

// Exporter owns the SDK tracer provider backing otel.Tracer calls.
type Exporter struct {
	provider *sdktrace.TracerProvider
}

// New builds a batching tracer provider. The collector is not dialed until
// the first batch is exported.
func New(ctx context.Context, cfg Config) (*Exporter, error) {
	if cfg.Endpoint == "" {
		return nil, ErrNoEndpoint
	}

	res, err := resource.New(ctx, resource.WithAttributes(serviceAttrs(cfg)...))
	if err != nil {
		return nil, err
	}

	var spans sdktrace.SpanExporter
	if cfg.Protocol == "http" {
		spans, err = newHTTPExporter(ctx, cfg)
	} else {
		spans, err = newGRPCExporter(ctx, cfg)
	}
	if err != nil {
		return nil, err
	}

	return &Exporter{provider: sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spans, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
	)}, nil
}

func serviceAttrs(cfg Config) []attribute.KeyValue {
	name := cfg.ServiceName
	if name == "" {
		name = "keyproxy"
	}
	attrs := []attribute.KeyValue{semconv.ServiceName(name)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	return attrs
}

func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

func newGRPCExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}
	return otlptracegrpc.New(ctx, opts...)
}

func newHTTPExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}
	return otlptracehttp.New(ctx, opts...)
}

// Install registers the provider globally so the gateway's otel.Tracer spans
// are exported, and accepts W3C trace context from callers.
func (e *Exporter) Install() {
	if e == nil {
		return
	}
	otel.SetTracerProvider(e.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// Shutdown flushes buffered spans.
func (e *Exporter) Shutdown(ctx context.Context) error {
	if e == nil {
		return nil
	}
	slog.Info("otel.exporter_shutdown")
	return e.provider.Shutdown(ctx)
}
