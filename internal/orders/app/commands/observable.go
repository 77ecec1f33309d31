package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/dejobratic/storefront/internal/apperror"
	"github.com/dejobratic/storefront/internal/orders/metrics"
	"github.com/dejobratic/storefront/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// ObservableCommandHandler wraps a handler with a span, duration metrics and
// start/finish logs.
type ObservableCommandHandler[C any, R any] struct {
	name     string
	handler  Handler[C, R]
	logger   *slog.Logger
	metrics  *metrics.Metrics
	describe func(C) []attribute.KeyValue
	onDone   func(ctx context.Context, m *metrics.Metrics, result R, elapsed time.Duration, err error)
}

func NewObservableCommandHandler[C any, R any](
	name string,
	handler Handler[C, R],
	logger *slog.Logger,
	m *metrics.Metrics,
	describe func(C) []attribute.KeyValue,
) *ObservableCommandHandler[C, R] {
	return &ObservableCommandHandler[C, R]{
		name:     name,
		handler:  handler,
		logger:   logger,
		metrics:  m,
		describe: describe,
	}
}

// OnDone registers a hook for command specific metrics.
func (o *ObservableCommandHandler[C, R]) OnDone(fn func(ctx context.Context, m *metrics.Metrics, result R, elapsed time.Duration, err error)) *ObservableCommandHandler[C, R] {
	o.onDone = fn
	return o
}

func (o *ObservableCommandHandler[C, R]) Handle(ctx context.Context, cmd C) (R, error) {
	ctx, span := telemetry.StartSpan(ctx, o.name+".Handle")
	defer span.End()

	var attrs []attribute.KeyValue
	if o.describe != nil {
		attrs = o.describe(cmd)
	}
	telemetry.AddSpanAttributes(span, attrs...)
	logAttrs := toLogAttrs(attrs)

	o.logger.LogAttrs(ctx, slog.LevelInfo, "handling "+o.name, logAttrs...)

	start := time.Now()
	result, err := o.handler.Handle(ctx, cmd)
	elapsed := time.Since(start)
	o.metrics.RecordCommand(ctx, o.name, elapsed.Seconds(), err == nil)
	if o.onDone != nil {
		o.onDone(ctx, o.metrics, result, elapsed, err)
	}

	if err != nil {
		telemetry.RecordSpanError(span, err)
		level := slog.LevelWarn
		if apperror.HTTPStatus(err) >= 500 {
			level = slog.LevelError
		}
		o.logger.LogAttrs(ctx, level, o.name+" failed", append(logAttrs, slog.Any("error", err))...)
		return result, err
	}

	o.logger.LogAttrs(ctx, slog.LevelInfo, o.name+" succeeded", logAttrs...)
	telemetry.SetSpanSuccess(span)
	return result, nil
}

func toLogAttrs(attrs []attribute.KeyValue) []slog.Attr {
	out := make([]slog.Attr, 0, len(attrs))
	for _, kv := range attrs {
		out = append(out, slog.Any(string(kv.Key), kv.Value.AsInterface()))
	}
	return out
}
