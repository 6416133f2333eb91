// Package telemetry provides the guest's RED (Rate, Errors, Duration)
// metrics and per-POST tracing, modeled directly on
// pkg/observability.Provider: a lazily-constructed set of OTel instruments
// exported over OTLP/gRPC when configured, and safe no-ops otherwise. This
// is strictly additive — spec.md's transparency invariant (P1) must hold
// whether or not an operator ever sets an OTLP endpoint, so every method on
// Provider tolerates a nil receiver, and without an endpoint every
// instrument comes from the global no-op meter/tracer, so call sites need no
// branching.
package telemetry

import (
	"context"
	"fmt"
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

const instrumentationName = "github.com/Mindburn-Labs/treblle-http-wasm"

// Provider holds the guest's metric and trace instruments.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter

	transactions     metric.Int64Counter
	transactionsFail metric.Int64Counter
	postDuration     metric.Float64Histogram
}

// New builds a Provider. If endpoint is empty, telemetry export is disabled
// and all instruments resolve to the global no-op implementations — New
// never fails and never blocks startup on a collector being reachable.
func New(ctx context.Context, endpoint string) (*Provider, error) {
	p := &Provider{}

	if endpoint == "" {
		p.tracer = otel.Tracer(instrumentationName)
		p.meter = otel.Meter(instrumentationName)
	} else {
		res, err := resource.New(ctx, resource.WithAttributes(
			semconv.ServiceName("treblle-http-wasm-guest"),
			semconv.ServiceVersion("1"),
		))
		if err != nil {
			return nil, fmt.Errorf("telemetry: resource: %w", err)
		}

		traceExp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
		if err != nil {
			return nil, fmt.Errorf("telemetry: trace exporter: %w", err)
		}
		p.tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(traceExp, sdktrace.WithBatchTimeout(5*time.Second)),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(p.tracerProvider)
		p.tracer = p.tracerProvider.Tracer(instrumentationName)

		metricExp, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpoint(endpoint), otlpmetricgrpc.WithInsecure())
		if err != nil {
			return nil, fmt.Errorf("telemetry: metric exporter: %w", err)
		}
		p.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp, sdkmetric.WithInterval(15*time.Second))),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(p.meterProvider)
		p.meter = p.meterProvider.Meter(instrumentationName)
	}

	var err error
	p.transactions, err = p.meter.Int64Counter("transactions_total", metric.WithDescription("eligible transactions observed"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: transactions_total: %w", err)
	}
	p.transactionsFail, err = p.meter.Int64Counter("transactions_failed_total", metric.WithDescription("transactions that failed to reach the collector"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: transactions_failed_total: %w", err)
	}
	p.postDuration, err = p.meter.Float64Histogram("collector_post_duration_seconds", metric.WithDescription("wall time spent sending a transaction to the collector"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: collector_post_duration_seconds: %w", err)
	}
	return p, nil
}

// RecordSend records the outcome of one POST attempt to the collector.
func (p *Provider) RecordSend(ctx context.Context, endpoint string, duration time.Duration, err error) {
	if p == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("endpoint", endpoint))
	p.transactions.Add(ctx, 1, attrs)
	p.postDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		p.transactionsFail.Add(ctx, 1, attrs)
	}
}

// StartSpan starts a span for one collector POST, in the teacher's
// "create spans manually" shape (observability/doc.go).
func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if p == nil || p.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return p.tracer.Start(ctx, name)
}

// Shutdown flushes and releases exporter resources, if any were created.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			return err
		}
	}
	if p.meterProvider != nil {
		return p.meterProvider.Shutdown(ctx)
	}
	return nil
}
