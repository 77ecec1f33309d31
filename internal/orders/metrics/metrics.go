package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Payment confirmation outcomes.
const (
	OutcomePaid             = "paid"
	OutcomeAlreadyPaid      = "already_paid"
	OutcomeRejected         = "rejected"
	OutcomeSignatureInvalid = "signature_invalid"
	OutcomeGatewayError     = "gateway_error"
	OutcomeFailed           = "failed"
)

type Metrics struct {
	ordersCreatedTotal    metric.Int64Counter
	orderCreationDuration metric.Float64Histogram
	commandDuration       metric.Float64Histogram
	paymentConfirmations  metric.Int64Counter
	gatewayCallDuration   metric.Float64Histogram
	reconciledTotal       metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.ordersCreatedTotal, err = meter.Int64Counter(
		"orders_created_total",
		metric.WithDescription("Total number of orders created"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create orders_created_total counter: %w", err)
	}

	m.orderCreationDuration, err = meter.Float64Histogram(
		"order_creation_duration_seconds",
		metric.WithDescription("Duration of order creation including the gateway intent"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_creation_duration histogram: %w", err)
	}

	m.commandDuration, err = meter.Float64Histogram(
		"order_command_duration_seconds",
		metric.WithDescription("Duration of order commands"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_command_duration histogram: %w", err)
	}

	m.paymentConfirmations, err = meter.Int64Counter(
		"payment_confirmations_total",
		metric.WithDescription("Payment confirmation attempts by outcome"),
		metric.WithUnit("{confirmation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create payment_confirmations_total counter: %w", err)
	}

	m.gatewayCallDuration, err = meter.Float64Histogram(
		"payment_gateway_call_duration_seconds",
		metric.WithDescription("Duration of payment gateway calls"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create payment_gateway_call_duration histogram: %w", err)
	}

	m.reconciledTotal, err = meter.Int64Counter(
		"orders_reconciled_total",
		metric.WithDescription("Pending orders handled by the reconciliation sweep"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create orders_reconciled_total counter: %w", err)
	}

	return m, nil
}

func (m *Metrics) RecordOrderCreated(ctx context.Context, success bool) {
	m.ordersCreatedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", statusLabel(success)),
	))
}

func (m *Metrics) RecordOrderCreationDuration(ctx context.Context, durationSeconds float64) {
	m.orderCreationDuration.Record(ctx, durationSeconds)
}

func (m *Metrics) RecordCommand(ctx context.Context, command string, durationSeconds float64, success bool) {
	m.commandDuration.Record(ctx, durationSeconds, metric.WithAttributes(
		attribute.String("command", command),
		attribute.String("status", statusLabel(success)),
	))
}

func (m *Metrics) RecordPaymentConfirmation(ctx context.Context, outcome string) {
	m.paymentConfirmations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) RecordGatewayCall(ctx context.Context, operation string, durationSeconds float64, success bool) {
	m.gatewayCallDuration.Record(ctx, durationSeconds, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", statusLabel(success)),
	))
}

// RecordReconciled counts one sweep result: attached, voided or failed.
func (m *Metrics) RecordReconciled(ctx context.Context, result string, count int) {
	if count == 0 {
		return
	}
	m.reconciledTotal.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String("result", result),
	))
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
