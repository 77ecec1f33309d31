package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dejobratic/storefront/internal/apperror"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/google/uuid"
)

type CreateOrderCommand struct {
	UserID             string
	Items              []domain.Item
	ShippingAddress    domain.ShippingAddress
	PaymentMethod      string
	ItemsPriceCents    int64
	TaxPriceCents      int64
	ShippingPriceCents int64
	TotalPriceCents    int64
}

type CreateOrderResult struct {
	Order          *domain.Order
	GatewayOrderID string
}

type CreateOrderCommandHandler struct {
	repo     ports.OrderRepository
	gateway  ports.PaymentGateway
	events   ports.EventBus
	logger   *slog.Logger
	currency string
	timeout  time.Duration
	now      Clock
	newID    func() string
}

func NewCreateOrderCommandHandler(
	repo ports.OrderRepository,
	gateway ports.PaymentGateway,
	events ports.EventBus,
	logger *slog.Logger,
	currency string,
	timeout time.Duration,
) *CreateOrderCommandHandler {
	return &CreateOrderCommandHandler{
		repo:     repo,
		gateway:  gateway,
		events:   events,
		logger:   logger,
		currency: currency,
		timeout:  timeout,
		now:      utcNow,
		newID:    uuid.NewString,
	}
}

// WithClock overrides the time source.
func (h *CreateOrderCommandHandler) WithClock(now Clock) *CreateOrderCommandHandler {
	h.now = now
	return h
}

// Handle persists the order as pending_intent, asks the gateway for an intent
// and then makes the order payable. A gateway failure leaves the order pending
// for the reconciler.
func (h *CreateOrderCommandHandler) Handle(ctx context.Context, cmd CreateOrderCommand) (CreateOrderResult, error) {
	now := h.now()
	order := domain.Order{
		ID:                 h.newID(),
		UserID:             cmd.UserID,
		Items:              cmd.Items,
		ShippingAddress:    cmd.ShippingAddress,
		PaymentMethod:      cmd.PaymentMethod,
		ItemsPriceCents:    cmd.ItemsPriceCents,
		TaxPriceCents:      cmd.TaxPriceCents,
		ShippingPriceCents: cmd.ShippingPriceCents,
		TotalPriceCents:    cmd.TotalPriceCents,
		ReceiptID:          domain.ReceiptID(now),
		Status:             domain.StatusPendingIntent,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := order.Validate(); err != nil {
		return CreateOrderResult{}, apperror.Wrap(apperror.KindValidation, err.Error(), err)
	}

	if err := h.repo.Create(ctx, order); err != nil {
		return CreateOrderResult{}, apperror.Internal(fmt.Errorf("insert order: %w", err))
	}

	intent, err := h.createIntent(ctx, order)
	if err != nil {
		return CreateOrderResult{}, apperror.PaymentError("could not create payment intent", err)
	}

	attachedAt := h.now()
	if err := h.repo.AttachIntent(ctx, order.ID, intent.ID, attachedAt); err != nil {
		return CreateOrderResult{}, repoError("attach intent", err)
	}
	if err := order.AttachIntent(intent.ID, attachedAt); err != nil {
		return CreateOrderResult{}, apperror.Internal(err)
	}

	publish(ctx, h.events, h.logger, ports.EventOrderCreated, &order, attachedAt)

	return CreateOrderResult{Order: &order, GatewayOrderID: intent.ID}, nil
}

func (h *CreateOrderCommandHandler) createIntent(ctx context.Context, order domain.Order) (ports.Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	return h.gateway.CreatePaymentIntent(ctx, ports.IntentRequest{
		AmountMinor: order.TotalPriceCents,
		Currency:    h.currency,
		Receipt:     order.ReceiptID,
		Notes: map[string]string{
			"userId":  order.UserID,
			"orderId": order.ID,
		},
	})
}

// publish emits a lifecycle event. Delivery failures are logged and never
// fail the command.
func publish(ctx context.Context, events ports.EventBus, logger *slog.Logger, eventType string, order *domain.Order, at time.Time) {
	err := events.Publish(ctx, ports.OrderEvent{
		Type:       eventType,
		OrderID:    order.ID,
		UserID:     order.UserID,
		TotalCents: order.TotalPriceCents,
		OccurredAt: at,
	})
	if err != nil {
		logger.WarnContext(ctx, "failed to publish order event",
			"event", eventType,
			"order_id", order.ID,
			"error", err,
		)
	}
}
