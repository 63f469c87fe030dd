// Package otel configures OpenTelemetry tracing for service processes.
package otel

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/louisbranch/hexterrain/internal/platform/config"
)

// Config controls trace export. Tracing is on only when Endpoint is set and
// Enabled is not "false".
type Config struct {
	Endpoint    string  `env:"OTEL_ENDPOINT"`
	Enabled     string  `env:"OTEL_ENABLED"`
	SampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// LoadConfig reads HEXTERRAIN_OTEL_* variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return Config{}, fmt.Errorf("otel sample ratio %v outside [0, 1]", cfg.SampleRatio)
	}
	return cfg, nil
}

// Active reports whether traces should be exported.
func (c Config) Active() bool {
	if strings.EqualFold(strings.TrimSpace(c.Enabled), "false") {
		return false
	}
	return strings.TrimSpace(c.Endpoint) != ""
}

// Setup registers a global tracer provider for serviceName when tracing is
// active and returns its shutdown. Otherwise it returns a no-op shutdown and
// leaves the global provider untouched.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	cfg, err := LoadConfig()
	if err != nil {
		return noop, err
	}
	if !cfg.Active() {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(strings.TrimSpace(cfg.Endpoint)))
	if err != nil {
		return noop, fmt.Errorf("create otlp exporter: %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(serviceName),
		semconv.ServiceNamespace("hexterrain"),
	))
	if err != nil {
		return noop, fmt.Errorf("build otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}
