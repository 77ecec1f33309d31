package adapters

import (
	"context"
	"time"

	"github.com/dejobratic/storefront/internal/events"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/dejobratic/storefront/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

type ObservableEventBus struct {
	bus     ports.EventBus
	metrics *events.Metrics
}

func NewObservableEventBus(bus ports.EventBus, metrics *events.Metrics) *ObservableEventBus {
	return &ObservableEventBus{
		bus:     bus,
		metrics: metrics,
	}
}

func (e *ObservableEventBus) Publish(ctx context.Context, event ports.OrderEvent) error {
	ctx, span := telemetry.StartSpan(ctx, "EventBus.Publish")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", event.OrderID),
		attribute.String("event.type", event.Type),
	)

	start := time.Now()
	err := e.bus.Publish(ctx, event)
	duration := time.Since(start).Seconds()

	e.metrics.RecordPublish(ctx, event.Type, duration, err == nil)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}
