package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func testConfig() Config {
	return Config{
		ServiceName:    "storefront-test",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		SampleRate:     1.0,
	}
}

// metricNames keeps the names of every exported instrument.
type metricNames struct {
	mu    sync.Mutex
	names map[string]bool
}

func (m *metricNames) Temporality(sdkmetric.InstrumentKind) metricdata.Temporality {
	return metricdata.CumulativeTemporality
}

func (m *metricNames) Aggregation(kind sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(kind)
}

func (m *metricNames) Export(_ context.Context, rm *metricdata.ResourceMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.names == nil {
		m.names = map[string]bool{}
	}
	for _, scope := range rm.ScopeMetrics {
		for _, metric := range scope.Metrics {
			m.names[metric.Name] = true
		}
	}
	return nil
}

func (m *metricNames) ForceFlush(context.Context) error { return nil }

func (m *metricNames) Shutdown(context.Context) error { return nil }

func (m *metricNames) seen(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.names[name]
}

// initTelemetry initializes telemetry with in-process exporters and registers shutdown.
func initTelemetry(t *testing.T, cfg Config) *Telemetry {
	t.Helper()

	tel, err := Initialize(context.Background(), cfg,
		WithTraceExporter(tracetest.NewInMemoryExporter()),
		WithMetricExporter(&metricNames{}),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, tel.Shutdown(ctx))
	})

	return tel
}

// inMemorySpans installs a synchronous in-memory tracer provider.
func inMemorySpans(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exp := tracetest.NewInMemoryExporter()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	return exp
}
