package queries

import (
	"context"
	"fmt"

	"github.com/dejobratic/storefront/internal/apperror"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// ListMyOrdersQuery lists the caller's orders, newest first.
type ListMyOrdersQuery struct {
	UserID string
}

type ListMyOrdersQueryHandler struct {
	repo ports.OrderRepository
}

func NewListMyOrdersQueryHandler(repo ports.OrderRepository) *ListMyOrdersQueryHandler {
	return &ListMyOrdersQueryHandler{repo: repo}
}

func (h *ListMyOrdersQueryHandler) Handle(ctx context.Context, query ListMyOrdersQuery) ([]domain.Order, error) {
	orders, err := h.repo.ListByUser(ctx, query.UserID)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("list user orders: %w", err))
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

// ListOrdersQuery is the admin listing across all users.
type ListOrdersQuery struct {
	Filter ports.ListFilter
}

type ListOrdersQueryHandler struct {
	repo ports.OrderRepository
}

func NewListOrdersQueryHandler(repo ports.OrderRepository) *ListOrdersQueryHandler {
	return &ListOrdersQueryHandler{repo: repo}
}

func (h *ListOrdersQueryHandler) Handle(ctx context.Context, query ListOrdersQuery) (ports.ListResult, error) {
	filter := query.Filter.Normalized()
	if filter.Status != nil && !filter.Status.Valid() {
		return ports.ListResult{}, apperror.Validation(fmt.Sprintf("unknown status %q", *filter.Status))
	}

	result, err := h.repo.List(ctx, filter)
	if err != nil {
		return ports.ListResult{}, apperror.Internal(fmt.Errorf("list orders: %w", err))
	}
	if result.Orders == nil {
		result.Orders = []domain.Order{}
	}
	return result, nil
}
