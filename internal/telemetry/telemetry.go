// Package telemetry traces and counts leadsync's calls to the sheet and the
// board, and records one set of metrics per sync run.
//
// Nothing is exported unless Init is called with Options.Enabled. The
// decorators and RecordRun check Enabled and stay out of the way otherwise.
//
// Exporters:
//
//   - stdout: pretty-printed spans and metrics, for local debugging
//   - OTLP/HTTP: metrics only, for any collector that speaks OTLP
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationScope = "github.com/steveyegge/leadsync"

// Export intervals for the periodic metric readers.
const (
	stdoutInterval = 15 * time.Second
	otlpInterval   = 30 * time.Second
)

// Options selects the exporters. The zero value leaves telemetry off.
type Options struct {
	Enabled bool

	// Stdout pretty-prints spans and metrics to standard output.
	Stdout bool

	// MetricsEndpoint receives metrics over OTLP/HTTP when non-empty. A bare
	// host:port is treated as plain HTTP.
	MetricsEndpoint string

	ServiceName string
	Version     string
}

var (
	active    atomic.Bool
	shutdowns []func(context.Context) error
)

// Enabled reports whether Init installed real providers.
func Enabled() bool {
	return active.Load()
}

// Init installs the global tracer and meter providers described by opts.
// With telemetry disabled it installs no-op providers.
func Init(ctx context.Context, opts Options) error {
	active.Store(false)
	if !opts.Enabled {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(opts.ServiceName),
			semconv.ServiceVersionKey.String(opts.Version),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return fmt.Errorf("telemetry: resource: %w", err)
	}

	tp, err := newTracerProvider(res, opts)
	if err != nil {
		return fmt.Errorf("telemetry: trace provider: %w", err)
	}
	mp, err := newMeterProvider(ctx, res, opts)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return fmt.Errorf("telemetry: metric provider: %w", err)
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	shutdowns = append(shutdowns, tp.Shutdown, mp.Shutdown)
	active.Store(true)
	return nil
}

// newTracerProvider samples every span. Spans only leave the process on
// the stdout exporter; there is no remote trace exporter.
func newTracerProvider(res *resource.Resource, opts Options) (*sdktrace.TracerProvider, error) {
	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	if opts.Stdout {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	}
	return sdktrace.NewTracerProvider(tpOpts...), nil
}

func newMeterProvider(ctx context.Context, res *resource.Resource, opts Options) (*sdkmetric.MeterProvider, error) {
	mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if opts.Stdout {
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, err
		}
		mpOpts = append(mpOpts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(stdoutInterval))))
	}
	if opts.MetricsEndpoint != "" {
		exp, err := buildOTLPMetricExporter(ctx, opts.MetricsEndpoint)
		if err != nil {
			return nil, fmt.Errorf("otlp metric exporter: %w", err)
		}
		mpOpts = append(mpOpts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(otlpInterval))))
	}
	return sdkmetric.NewMeterProvider(mpOpts...), nil
}

// Tracer returns a tracer for the named scope, or the leadsync scope.
func Tracer(name string) trace.Tracer {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Tracer(name)
}

// Meter returns a meter for the named scope, or the leadsync scope.
func Meter(name string) metric.Meter {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Meter(name)
}

// Shutdown flushes and stops the providers installed by Init. Periodic
// readers export their last batch here, so a one-shot run must call it.
func Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range shutdowns {
		errs = append(errs, fn(ctx))
	}
	shutdowns = nil
	active.Store(false)
	return errors.Join(errs...)
}
