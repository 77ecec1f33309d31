package adapters

import (
	"context"
	"time"

	"github.com/dejobratic/storefront/internal/orders/metrics"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/dejobratic/storefront/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// ObservableGateway records spans and call durations for the payment gateway.
type ObservableGateway struct {
	gateway ports.PaymentGateway
	metrics *metrics.Metrics
}

func NewObservableGateway(gateway ports.PaymentGateway, metrics *metrics.Metrics) *ObservableGateway {
	return &ObservableGateway{gateway: gateway, metrics: metrics}
}

func (g *ObservableGateway) CreatePaymentIntent(ctx context.Context, req ports.IntentRequest) (ports.Intent, error) {
	ctx, span := telemetry.StartSpan(ctx, "PaymentGateway.CreatePaymentIntent")
	defer span.End()

	telemetry.AddSpanAttributes(span,
		attribute.String("payment.receipt", req.Receipt),
		attribute.Int64("payment.amount_minor", req.AmountMinor),
		attribute.String("payment.currency", req.Currency),
	)

	start := time.Now()
	intent, err := g.gateway.CreatePaymentIntent(ctx, req)
	g.metrics.RecordGatewayCall(ctx, "create_intent", time.Since(start).Seconds(), err == nil)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return ports.Intent{}, err
	}

	telemetry.AddSpanAttributes(span, attribute.String("payment.gateway_order_id", intent.ID))
	telemetry.SetSpanSuccess(span)
	return intent, nil
}

func (g *ObservableGateway) FetchPayment(ctx context.Context, paymentID string) (ports.Payment, error) {
	ctx, span := telemetry.StartSpan(ctx, "PaymentGateway.FetchPayment")
	defer span.End()

	telemetry.AddSpanAttributes(span, attribute.String("payment.id", paymentID))

	start := time.Now()
	payment, err := g.gateway.FetchPayment(ctx, paymentID)
	g.metrics.RecordGatewayCall(ctx, "fetch_payment", time.Since(start).Seconds(), err == nil)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return ports.Payment{}, err
	}

	telemetry.AddSpanAttributes(span, attribute.String("payment.status", payment.Status))
	telemetry.SetSpanSuccess(span)
	return payment, nil
}

func (g *ObservableGateway) FindIntentByReceipt(ctx context.Context, receipt string) (*ports.Intent, error) {
	ctx, span := telemetry.StartSpan(ctx, "PaymentGateway.FindIntentByReceipt")
	defer span.End()

	telemetry.AddSpanAttributes(span, attribute.String("payment.receipt", receipt))

	start := time.Now()
	intent, err := g.gateway.FindIntentByReceipt(ctx, receipt)
	g.metrics.RecordGatewayCall(ctx, "find_intent", time.Since(start).Seconds(), err == nil)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	telemetry.AddSpanAttributes(span, attribute.Bool("payment.intent_found", intent != nil))
	telemetry.SetSpanSuccess(span)
	return intent, nil
}
