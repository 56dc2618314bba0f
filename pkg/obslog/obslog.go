// Package obslog wires structured logging (log/slog) and OpenTelemetry
// tracing/metrics for fcpcore: a process-wide *slog.Logger plus an
// OTLP-exporting Provider for RED metrics and spans across the decision
// engine and recovery supervisor.
package obslog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// NewLogger builds the process-wide logger: JSON handler by default, text
// handler under format == "text" (spec's LOG_FORMAT override).
func NewLogger(format, level string) *slog.Logger {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config configures the OpenTelemetry providers.
type Config struct {
	ServiceName    string
	ServiceVersion string
	OTLPEndpoint   string
	SampleRate     float64
	BatchTimeout   time.Duration
	Enabled        bool
	Insecure       bool
}

// DefaultConfig returns fcpcore's observability defaults: disabled unless an
// OTLP endpoint is configured, matching fcpconfig's opt-in OTLPEndpoint.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "fcpcore",
		ServiceVersion: "1.0.0",
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		Enabled:        false,
		Insecure:       true,
	}
}

// Provider manages the tracer/meter providers and RED metrics for the
// decision engine and recovery supervisor.
type Provider struct {
	config         Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	log            *slog.Logger

	decisionsTotal     metric.Int64Counter
	denialsTotal       metric.Int64Counter
	decisionDuration   metric.Float64Histogram
	supervisorOutcomes metric.Int64Counter
}

// New initializes tracer/meter providers against cfg.OTLPEndpoint. When
// cfg.Enabled is false, New returns a no-op Provider whose methods are safe
// to call but record nothing.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*Provider, error) {
	if log == nil {
		log = slog.Default()
	}
	p := &Provider{config: cfg, log: log.With("component", "obslog")}

	if !cfg.Enabled {
		p.log.InfoContext(ctx, "observability disabled")
		return p, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("fcp.component", "core"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("obslog: build resource: %w", err)
	}

	if err := p.initTraceProvider(ctx, res); err != nil {
		return nil, fmt.Errorf("obslog: init trace provider: %w", err)
	}
	if err := p.initMetricProvider(ctx, res); err != nil {
		return nil, fmt.Errorf("obslog: init metric provider: %w", err)
	}

	p.tracer = otel.Tracer("fcpcore", trace.WithInstrumentationVersion(cfg.ServiceVersion))
	p.meter = otel.Meter("fcpcore", metric.WithInstrumentationVersion(cfg.ServiceVersion))

	if err := p.initMetrics(); err != nil {
		return nil, fmt.Errorf("obslog: init metrics: %w", err)
	}

	p.log.InfoContext(ctx, "observability initialized", "endpoint", cfg.OTLPEndpoint, "sample_rate", cfg.SampleRate)
	return p, nil
}

func (p *Provider) initTraceProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(p.config.OTLPEndpoint)}
	if p.config.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("create trace exporter: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case p.config.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case p.config.SampleRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(p.config.SampleRate)
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(p.config.BatchTimeout)),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(p.tracerProvider)
	return nil
}

func (p *Provider) initMetricProvider(ctx context.Context, res *resource.Resource) error {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(p.config.OTLPEndpoint)}
	if p.config.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("create metric exporter: %w", err)
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))),
	)
	otel.SetMeterProvider(p.meterProvider)
	return nil
}

func (p *Provider) initMetrics() error {
	var err error
	p.decisionsTotal, err = p.meter.Int64Counter("fcp.decisions.total",
		metric.WithDescription("Total number of policy decisions evaluated"), metric.WithUnit("{decision}"))
	if err != nil {
		return err
	}
	p.denialsTotal, err = p.meter.Int64Counter("fcp.denials.total",
		metric.WithDescription("Total number of Deny decisions, by reason code"), metric.WithUnit("{decision}"))
	if err != nil {
		return err
	}
	p.decisionDuration, err = p.meter.Float64Histogram("fcp.decision.duration",
		metric.WithDescription("Decision evaluation duration in seconds"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0))
	if err != nil {
		return err
	}
	p.supervisorOutcomes, err = p.meter.Int64Counter("fcp.supervisor.outcomes.total",
		metric.WithDescription("Terminal recovery-supervisor outcomes, by kind"), metric.WithUnit("{outcome}"))
	return err
}

// Shutdown flushes and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			p.log.ErrorContext(ctx, "failed to shutdown trace provider", "error", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			p.log.ErrorContext(ctx, "failed to shutdown metric provider", "error", err)
		}
	}
	return nil
}

// StartSpan starts a span named name, a no-op if the provider is disabled.
func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if p.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return p.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal))
}

// RecordDecision increments the decisions/denials RED counters and duration
// histogram for one Engine.Evaluate call.
func (p *Provider) RecordDecision(ctx context.Context, outcome string, reasonCode string, duration time.Duration) {
	if p.decisionsTotal != nil {
		p.decisionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
	if outcome == "Deny" && p.denialsTotal != nil {
		p.denialsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason_code", reasonCode)))
	}
	if p.decisionDuration != nil {
		p.decisionDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

// RecordSupervisorOutcome increments the supervisor-outcomes counter.
func (p *Provider) RecordSupervisorOutcome(ctx context.Context, kind string) {
	if p.supervisorOutcomes != nil {
		p.supervisorOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	}
}
