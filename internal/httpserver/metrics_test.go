package httpserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewMetrics(mp.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestRecordRequest(t *testing.T) {
	metrics, reader := newTestMetrics(t)
	ctx := context.Background()

	metrics.RecordRequest(ctx, "GET", "/api/v1/orders/{id}", 200, 0.5)
	metrics.RecordRequest(ctx, "GET", "/api/v1/orders/{id}", 200, 0.2)
	metrics.RecordRequest(ctx, "POST", "/api/v1/orders", 502, 0.7)

	got := collect(t, reader)

	counter, ok := got["http_requests_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum[int64]")
	require.Len(t, counter.DataPoints, 2)

	classes := map[string]int64{}
	for _, dp := range counter.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("status_class"))
		classes[v.AsString()] += dp.Value
	}
	assert.Equal(t, map[string]int64{"2xx": 2, "5xx": 1}, classes)

	histogram, ok := got["http_request_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok, "expected Histogram[float64]")
	assert.Len(t, histogram.DataPoints, 2)
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(201))
	assert.Equal(t, "4xx", statusClass(404))
	assert.Equal(t, "5xx", statusClass(502))
}
