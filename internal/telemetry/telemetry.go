// Package telemetry wires up OpenTelemetry tracing and metrics for the
// server. Until Init is called, every otel.Tracer/otel.Meter in the
// codebase (internal/store/dolt) resolves against
// the global no-op provider, so instrumentation is safe to leave in place
// even when telemetry is never configured.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Config selects the telemetry exporter. Mode "stdout" (the default) logs
// spans and metrics to stdout, suitable for local development; mode
// "otlp" ships metrics to an OTLP/HTTP collector at Endpoint (tracing
// still logs to stdout, matching the teacher's stack which only imports
// the OTLP exporter for metrics).
type Config struct {
	Mode        string // "stdout" or "otlp"
	Endpoint    string // OTLP/HTTP collector endpoint, used when Mode == "otlp"
	ServiceName string
}

// Shutdown flushes and stops the configured providers.
type Shutdown func(context.Context) error

// Init installs global tracer and meter providers per cfg. Callers must
// invoke the returned Shutdown before process exit to flush pending data.
func Init(ctx context.Context, cfg Config) (Shutdown, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "workctl"
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("build telemetry resource: %w", err)
	}

	traceExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	var metricReader sdkmetric.Reader
	switch cfg.Mode {
	case "otlp":
		exp, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(cfg.Endpoint), otlpmetrichttp.WithInsecure())
		if err != nil {
			return nil, fmt.Errorf("create otlp metric exporter: %w", err)
		}
		metricReader = sdkmetric.NewPeriodicReader(exp)
	default:
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("create stdout metric exporter: %w", err)
		}
		metricReader = sdkmetric.NewPeriodicReader(exp)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(metricReader),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	return func(shutdownCtx context.Context) error {
		if err := tp.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return mp.Shutdown(shutdownCtx)
	}, nil
}
