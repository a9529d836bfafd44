package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records reconciliation runs through an OpenTelemetry meter
// exported on the Prometheus registry.
type Observability struct {
	meterProvider *metric.MeterProvider
	runCounter    otelmetric.Int64Counter
	runDuration   otelmetric.Float64Histogram
	downgrades    otelmetric.Int64Counter
}

// New wires the exporter into reg. A nil reg uses the default registerer.
func New(serviceName string, reg prometheus.Registerer) (*Observability, error) {
	var opts []otelprom.Option
	if reg != nil {
		opts = append(opts, otelprom.WithRegisterer(reg))
	}
	exporter, err := otelprom.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	runCounter, err := meter.Int64Counter(
		"reconcile.runs",
		otelmetric.WithDescription("Number of reconciliation runs"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram(
		"reconcile.duration",
		otelmetric.WithDescription("Reconciliation run duration"),
		otelmetric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	downgrades, err := meter.Int64Counter(
		"reconcile.downgrades",
		otelmetric.WithDescription("Users downgraded to Freemium"),
	)
	if err != nil {
		return nil, err
	}

	return &Observability{
		meterProvider: provider,
		runCounter:    runCounter,
		runDuration:   runDuration,
		downgrades:    downgrades,
	}, nil
}

// RecordRun is safe on a nil receiver so callers can run without metrics.
func (o *Observability) RecordRun(ctx context.Context, trigger, status string, duration time.Duration, downgraded int) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("trigger", trigger),
		attribute.String("status", status),
	)
	o.runCounter.Add(ctx, 1, attrs)
	o.runDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	if downgraded > 0 {
		o.downgrades.Add(ctx, int64(downgraded), otelmetric.WithAttributes(attribute.String("trigger", trigger)))
	}
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil || o.meterProvider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return o.meterProvider.Shutdown(ctx)
}
