package metrics

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := New(mp)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewCreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("New returned nil")
	}
}

func TestRecordRequestIncrementsCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordRequest(context.Background(), "batch_only", "ok")

	rm := collect(t, reader)
	met := findMetric(rm, "requests.total")
	if met == nil {
		t.Fatal("requests.total metric not found")
	}
}

func TestRecordModelLoadTagsCacheStatus(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordModelLoad(context.Background(), true)
	m.RecordModelLoad(context.Background(), false)

	rm := collect(t, reader)
	met := findMetric(rm, "model.loads")
	if met == nil {
		t.Fatal("model.loads metric not found")
	}
}
