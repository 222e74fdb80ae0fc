package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry holds the trace and metric providers of one poolsync process.
// With telemetry off both are no-ops and MetricsHandler is nil.
type Telemetry struct {
	tracerProvider trace.TracerProvider
	meters         *MeterProvider

	// flush stops the SDK providers, newest first
	flush []func(context.Context) error
}

// Option configures New
type Option func(*telemetryConfig)

type telemetryConfig struct {
	config *Config
}

// WithTelemetryConfig uses the telemetry section of the poolsync configuration
func WithTelemetryConfig(cfg *Config) Option {
	return func(tc *telemetryConfig) {
		tc.config = cfg
	}
}

// New builds the providers described by the configuration. A missing or
// disabled telemetry section yields no-op providers.
func New(ctx context.Context, opts ...Option) (*Telemetry, error) {
	settings := &telemetryConfig{}
	for _, opt := range opts {
		opt(settings)
	}
	cfg := settings.config

	t := &Telemetry{}
	if cfg == nil || !cfg.Enabled {
		slog.Debug("Telemetry off, sync metrics and spans are discarded")
		return t.withProviders(ctx, nil, nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry configuration: %w", err)
	}

	slog.Info("Initializing telemetry",
		"service_name", cfg.GetServiceName(),
		"service_version", cfg.GetServiceVersion(),
		"endpoint", cfg.GetEndpoint(),
	)

	tracerOpts := []TracerProviderOption{
		WithTracerServiceName(cfg.GetServiceName()),
		WithTracerServiceVersion(cfg.GetServiceVersion()),
		WithTracingConfig(cfg.Tracing),
		WithTracerEndpoint(cfg.GetEndpoint()),
		WithTracerInsecure(cfg.Insecure),
	}
	meterOpts := []MeterProviderOption{
		WithMeterServiceName(cfg.GetServiceName()),
		WithMeterServiceVersion(cfg.GetServiceVersion()),
		WithMetricsConfig(cfg.Metrics),
		WithMeterEndpoint(cfg.GetEndpoint()),
		WithMeterInsecure(cfg.Insecure),
	}
	return t.withProviders(ctx, tracerOpts, meterOpts)
}

func (t *Telemetry) withProviders(ctx context.Context, tracerOpts []TracerProviderOption, meterOpts []MeterProviderOption) (*Telemetry, error) {
	tracerProvider, err := NewTracerProvider(ctx, tracerOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer provider: %w", err)
	}
	t.tracerProvider = tracerProvider
	if sdk, ok := tracerProvider.(*sdktrace.TracerProvider); ok {
		t.flush = append(t.flush, sdk.Shutdown)
	}

	meters, err := NewMeterProvider(ctx, meterOpts...)
	if err != nil {
		_ = t.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create meter provider: %w", err)
	}
	t.meters = meters
	if sdk, ok := meters.MeterProvider.(*sdkmetric.MeterProvider); ok {
		t.flush = append(t.flush, sdk.Shutdown)
	}
	return t, nil
}

// TracerProvider returns the provider used by the HTTP tracing middleware
func (t *Telemetry) TracerProvider() trace.TracerProvider {
	return t.tracerProvider
}

// Tracer returns a named tracer for document fetches and command dispatch
func (t *Telemetry) Tracer(name string) trace.Tracer {
	return t.tracerProvider.Tracer(name)
}

// MeterProvider returns the provider backing SyncMetrics and HTTPMetrics
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	return t.meters.MeterProvider
}

// MetricsHandler returns the /metrics handler, or nil when metrics are off
func (t *Telemetry) MetricsHandler() http.Handler {
	if t.meters == nil {
		return nil
	}
	return t.meters.Handler
}

// Shutdown flushes pending spans and metric exports
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if len(t.flush) == 0 {
		return nil
	}
	slog.Info("Flushing telemetry")

	var errs []error
	for i := len(t.flush) - 1; i >= 0; i-- {
		if err := t.flush[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	t.flush = nil
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to flush telemetry: %w", err)
	}
	return nil
}
