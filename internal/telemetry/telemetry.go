// Package telemetry wires OpenTelemetry and log rotation for the assistant.
package telemetry

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const serviceName = "math-assistant"

// Config selects where spans and metrics are written. An empty TraceFile
// leaves the global no-op providers in place.
type Config struct {
	TraceFile      string
	MetricsFile    string
	ServiceVersion string
	MetricInterval time.Duration
}

// Init installs tracer and meter providers exporting to rotated files and
// returns the tracer plus a shutdown function. With no TraceFile it returns a
// no-op tracer and a shutdown that does nothing.
func Init(ctx context.Context, cfg Config) (trace.Tracer, func(), error) {
	if cfg.TraceFile == "" {
		return otel.Tracer(serviceName), func() {}, nil
	}
	if cfg.MetricsFile == "" {
		cfg.MetricsFile = cfg.TraceFile + ".metrics"
	}
	if cfg.MetricInterval <= 0 {
		cfg.MetricInterval = 10 * time.Second
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceFile := newRotatingFile(cfg.TraceFile)
	traceExporter, err := stdouttrace.New(
		stdouttrace.WithWriter(traceFile),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	metricsFile := newRotatingFile(cfg.MetricsFile)
	metricExporter, err := stdoutmetric.New(
		stdoutmetric.WithWriter(metricsFile),
		stdoutmetric.WithPrettyPrint(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(cfg.MetricInterval))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("⚠️ Failed to shut down tracer provider: %v", err)
		}
		if err := mp.Shutdown(ctx); err != nil {
			log.Printf("⚠️ Failed to shut down meter provider: %v", err)
		}
		traceFile.Close()
		metricsFile.Close()
	}

	log.Printf("📈 Telemetry enabled. Traces -> %s, metrics -> %s", cfg.TraceFile, cfg.MetricsFile)
	return tp.Tracer(serviceName), shutdown, nil
}

func newRotatingFile(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}
