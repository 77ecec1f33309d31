package queries

import (
	"context"
	"fmt"
	"strings"

	"github.com/dejobratic/storefront/internal/apperror"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// CheckPurchaseQuery asks whether a user has a paid order containing a product.
type CheckPurchaseQuery struct {
	UserID    string
	ProductID string
}

type CheckPurchaseQueryHandler struct {
	repo ports.OrderRepository
}

func NewCheckPurchaseQueryHandler(repo ports.OrderRepository) *CheckPurchaseQueryHandler {
	return &CheckPurchaseQueryHandler{repo: repo}
}

// Handle only looks at the user's paid orders. Unpaid and void orders never count.
func (h *CheckPurchaseQueryHandler) Handle(ctx context.Context, query CheckPurchaseQuery) (bool, error) {
	if strings.TrimSpace(query.ProductID) == "" {
		return false, apperror.Validation("product id is required")
	}

	purchased, err := h.repo.HasPaidOrderWithProduct(ctx, query.UserID, query.ProductID)
	if err != nil {
		return false, apperror.Internal(fmt.Errorf("check purchase: %w", err))
	}
	return purchased, nil
}
