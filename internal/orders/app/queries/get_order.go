package queries

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dejobratic/storefront/internal/apperror"
	"github.com/dejobratic/storefront/internal/auth"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// GetOrderQuery represents a request to retrieve an order by its ID.
type GetOrderQuery struct {
	Principal auth.Principal
	OrderID   string
}

// Validate ensures the query has valid parameters.
func (q GetOrderQuery) Validate() error {
	if strings.TrimSpace(q.OrderID) == "" {
		return apperror.Validation("order id is required")
	}
	return nil
}

// GetOrderQueryHandler executes GetOrderQuery and returns the order if the
// caller owns it or is an admin.
type GetOrderQueryHandler struct {
	repo ports.OrderRepository
}

// NewGetOrderQueryHandler constructs a GetOrderQueryHandler.
func NewGetOrderQueryHandler(repo ports.OrderRepository) *GetOrderQueryHandler {
	return &GetOrderQueryHandler{repo: repo}
}

// Handle executes the query and retrieves the order.
func (h *GetOrderQueryHandler) Handle(ctx context.Context, query GetOrderQuery) (*domain.Order, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	order, err := h.repo.GetByID(ctx, query.OrderID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, apperror.NotFound("order not found")
		}
		return nil, apperror.Internal(fmt.Errorf("get order: %w", err))
	}

	if !query.Principal.CanAccess(order.UserID) {
		return nil, apperror.Forbidden("not allowed to view this order")
	}

	return order, nil
}
