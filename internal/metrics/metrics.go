// Package metrics instruments the testable properties of the pipeline via
// OpenTelemetry, with a Prometheus exporter bridge so they can be scraped
// over HTTP. Grounded on glyphoxa's internal/observe package
// (SPEC_FULL §4 ambient stack).
package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/whisperpipe/transcribe-api"

// Metrics holds every OpenTelemetry instrument the pipeline records to.
type Metrics struct {
	TranscribeDuration  metric.Float64Histogram
	SliceDuration       metric.Float64Histogram
	RequestsTotal       metric.Int64Counter
	SlicesFailed        metric.Int64Counter
	ModelLoads          metric.Int64Counter
	ConcurrencyInUse    metric.Int64UpDownCounter
	GlobalSemaphoreUsed metric.Int64UpDownCounter
}

// New creates a fully initialized Metrics using mp.
func New(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	out := &Metrics{}

	if out.TranscribeDuration, err = m.Float64Histogram("transcribe.duration",
		metric.WithDescription("Latency of a single engine.Transcribe call."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if out.SliceDuration, err = m.Float64Histogram("slice.duration",
		metric.WithDescription("Latency of slicing one file into chunks."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if out.RequestsTotal, err = m.Int64Counter("requests.total",
		metric.WithDescription("Total transcription requests by strategy and status."),
	); err != nil {
		return nil, err
	}
	if out.SlicesFailed, err = m.Int64Counter("slices.failed",
		metric.WithDescription("Total slices that failed transcription."),
	); err != nil {
		return nil, err
	}
	if out.ModelLoads, err = m.Int64Counter("model.loads",
		metric.WithDescription("Total model loads by cache hit/miss."),
	); err != nil {
		return nil, err
	}
	if out.ConcurrencyInUse, err = m.Int64UpDownCounter("concurrency.in_use",
		metric.WithDescription("Per-request worker slots currently in use."),
	); err != nil {
		return nil, err
	}
	if out.GlobalSemaphoreUsed, err = m.Int64UpDownCounter("semaphore.in_use",
		metric.WithDescription("Global transcription semaphore permits currently held."),
	); err != nil {
		return nil, err
	}

	return out, nil
}

// RecordRequest increments RequestsTotal with the standard attribute set.
func (m *Metrics) RecordRequest(ctx context.Context, strategy, status string) {
	m.RequestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("strategy", strategy),
		attribute.String("status", status),
	))
}

// RecordModelLoad increments ModelLoads with a hit/miss attribute.
func (m *Metrics) RecordModelLoad(ctx context.Context, hit bool) {
	status := "miss"
	if hit {
		status = "hit"
	}
	m.ModelLoads.Add(ctx, 1, metric.WithAttributes(attribute.String("cache", status)))
}

// InitProvider sets up the OTel SDK metrics pipeline with a Prometheus
// exporter bridge and registers it as the global MeterProvider. Returns a
// shutdown function to call from main().
func InitProvider(serviceName string) (shutdown func(context.Context) error, err error) {
	res, err := resource.New(context.Background(), resource.WithAttributes(
		attribute.String("service.name", serviceName),
	))
	if err != nil {
		return nil, err
	}

	promExp, err := promexporter.New()
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)
	otel.SetMeterProvider(mp)

	return mp.Shutdown, nil
}
