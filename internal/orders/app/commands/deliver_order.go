package commands

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dejobratic/storefront/internal/apperror"
	"github.com/dejobratic/storefront/internal/auth"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

type DeliverOrderCommand struct {
	Principal auth.Principal
	OrderID   string
}

type DeliverOrderCommandHandler struct {
	repo   ports.OrderRepository
	events ports.EventBus
	logger *slog.Logger
	now    Clock
}

func NewDeliverOrderCommandHandler(repo ports.OrderRepository, events ports.EventBus, logger *slog.Logger) *DeliverOrderCommandHandler {
	return &DeliverOrderCommandHandler{
		repo:   repo,
		events: events,
		logger: logger,
		now:    utcNow,
	}
}

// WithClock overrides the time source.
func (h *DeliverOrderCommandHandler) WithClock(now Clock) *DeliverOrderCommandHandler {
	h.now = now
	return h
}

// Handle flags the order as delivered. Payment state is left untouched, so an
// unpaid order can be delivered.
func (h *DeliverOrderCommandHandler) Handle(ctx context.Context, cmd DeliverOrderCommand) (*domain.Order, error) {
	if !cmd.Principal.IsAdmin() {
		return nil, apperror.Forbidden("only admins can mark orders delivered")
	}

	order, err := h.repo.GetByID(ctx, cmd.OrderID)
	if err != nil {
		return nil, repoError("load order", err)
	}
	if order.IsDelivered {
		return order, nil
	}

	deliveredAt := h.now()
	if err := order.MarkDelivered(deliveredAt); err != nil {
		return nil, apperror.Wrap(apperror.KindValidation, "void orders cannot be delivered", err)
	}

	if err := h.repo.MarkDelivered(ctx, order.ID, deliveredAt); err != nil {
		if errors.Is(err, ports.ErrStaleState) {
			return nil, apperror.Wrap(apperror.KindValidation, "void orders cannot be delivered", err)
		}
		return nil, repoError("mark order delivered", err)
	}

	publish(ctx, h.events, h.logger, ports.EventOrderDelivered, order, deliveredAt)

	return order, nil
}
