// Package telemetry bootstraps the OpenTelemetry TracerProvider and
// MeterProvider the rest of the engine's packages record spans and
// instruments against (internal/logging's OTEL log bridge and
// pkg/embeddingapi's call-duration histograms; internal/jobs' queue
// metrics use the Prometheus client and are not exported through this
// MeterProvider). Disabled by default so a
// fresh checkout with no collector running never blocks on a dial.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/Fortemi/fortemi-sub011/internal/config"
)

// Telemetry owns the process-wide TracerProvider and MeterProvider.
// Provider construction failures degrade to no-op providers rather than
// aborting startup; telemetry is an observability aid, not a dependency
// of any domain operation.
type Telemetry struct {
	cfg *config.ObservabilityConfig

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	logProvider    otellog.LoggerProvider

	degraded error
}

// New initializes the tracer and meter providers and registers them as
// the global OTEL providers every instrumented package resolves against
// via otel.Tracer/otel.Meter. Returns a non-nil, usable *Telemetry even
// when cfg.EnableTelemetry is false (its providers are simply nil, and
// Tracer/Meter then fall back to OTEL's global no-op implementations).
func New(ctx context.Context, cfg *config.ObservabilityConfig) (*Telemetry, error) {
	t := &Telemetry{cfg: cfg}
	if !cfg.EnableTelemetry {
		return t, nil
	}

	res := newResource(cfg)

	tp, err := newTracerProvider(ctx, cfg, res)
	if err != nil {
		t.degraded = fmt.Errorf("tracer provider: %w", err)
	} else {
		t.tracerProvider = tp
		otel.SetTracerProvider(tp)
	}

	mp, err := newMeterProvider(ctx, cfg, res)
	if err != nil {
		t.degraded = errors.Join(t.degraded, fmt.Errorf("meter provider: %w", err))
	} else if mp != nil {
		t.meterProvider = mp
		otel.SetMeterProvider(mp)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return t, t.degraded
}

// Tracer returns a tracer scoped to name, falling back to the global
// (possibly no-op) provider when telemetry is disabled.
func (t *Telemetry) Tracer(name string, opts ...oteltrace.TracerOption) oteltrace.Tracer {
	if t == nil || t.tracerProvider == nil {
		return otel.GetTracerProvider().Tracer(name, opts...)
	}
	return t.tracerProvider.Tracer(name, opts...)
}

// Meter returns a meter scoped to name, falling back to the global
// (possibly no-op) provider when telemetry or metrics export is disabled.
func (t *Telemetry) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if t == nil || t.meterProvider == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return t.meterProvider.Meter(name, opts...)
}

// LoggerProvider returns the OTEL log bridge provider for
// internal/logging.NewLogger, or nil when telemetry is disabled.
func (t *Telemetry) LoggerProvider() otellog.LoggerProvider {
	if t == nil {
		return nil
	}
	return t.logProvider
}

// SetLoggerProvider registers the provider internal/logging's OTEL core
// should forward log records to.
func (t *Telemetry) SetLoggerProvider(lp otellog.LoggerProvider) {
	if t != nil {
		t.logProvider = lp
	}
}

// Shutdown flushes and closes every provider, bounded by
// cfg.ShutdownTimeout if the caller's context carries no deadline of its
// own.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok && t.cfg != nil && t.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.ShutdownTimeout)
		defer cancel()
	}

	var errs []error
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}
