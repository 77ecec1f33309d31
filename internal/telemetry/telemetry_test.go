package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(*Config) {}, nil},
		{"missing service name", func(c *Config) { c.ServiceName = "" }, ErrMissingServiceName},
		{"missing service version", func(c *Config) { c.ServiceVersion = "" }, ErrMissingServiceVersion},
		{"negative sample rate", func(c *Config) { c.SampleRate = -0.1 }, ErrInvalidSampleRate},
		{"sample rate above one", func(c *Config) { c.SampleRate = 1.1 }, ErrInvalidSampleRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestInitialize(t *testing.T) {
	t.Run("rejects invalid config", func(t *testing.T) {
		cfg := testConfig()
		cfg.ServiceName = ""

		_, err := Initialize(context.Background(), cfg)
		assert.ErrorIs(t, err, ErrMissingServiceName)
	})

	t.Run("installs both providers", func(t *testing.T) {
		cfg := testConfig()
		cfg.EnableTracing = true
		cfg.EnableMetrics = true

		tel := initTelemetry(t, cfg)
		assert.NotNil(t, tel.TracerProvider())
		assert.NotNil(t, tel.MeterProvider())
	})

	t.Run("disabled signals leave providers unset", func(t *testing.T) {
		tel := initTelemetry(t, testConfig())
		assert.Nil(t, tel.TracerProvider())
		assert.Nil(t, tel.MeterProvider())
	})

	t.Run("shutdown flushes pending metrics", func(t *testing.T) {
		cfg := testConfig()
		cfg.EnableMetrics = true
		exported := &metricNames{}

		tel, err := Initialize(context.Background(), cfg, WithMetricExporter(exported))
		require.NoError(t, err)

		counter, err := tel.Meter("reconciler").Int64Counter("orders_reconciled_total")
		require.NoError(t, err)
		counter.Add(context.Background(), 3)
		assert.False(t, exported.seen("orders_reconciled_total"))

		require.NoError(t, tel.Shutdown(context.Background()))
		assert.True(t, exported.seen("orders_reconciled_total"))
	})

	t.Run("no endpoint keeps providers in process", func(t *testing.T) {
		cfg := testConfig()
		cfg.EnableTracing = true
		cfg.EnableMetrics = true

		tel, err := Initialize(context.Background(), cfg)
		require.NoError(t, err)
		assert.NotNil(t, tel.TracerProvider())
		assert.NoError(t, tel.Shutdown(context.Background()))
	})
}

func TestMeter(t *testing.T) {
	t.Run("falls back to noop meter", func(t *testing.T) {
		var tel *Telemetry
		meter := tel.Meter("orders")
		require.NotNil(t, meter)

		counter, err := meter.Int64Counter("orders_total")
		require.NoError(t, err)
		counter.Add(context.Background(), 1)
	})

	t.Run("uses installed provider", func(t *testing.T) {
		cfg := testConfig()
		cfg.EnableMetrics = true

		tel := initTelemetry(t, cfg)
		_, err := tel.Meter("orders").Int64Counter("orders_total")
		assert.NoError(t, err)
	})
}
