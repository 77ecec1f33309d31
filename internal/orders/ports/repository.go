package ports

import (
	"context"
	"errors"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
)

// OrderRepository exposes persistence operations required by the application layer.
// Status changes are compare-and-set on the stored status.
type OrderRepository interface {
	Create(ctx context.Context, order domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	List(ctx context.Context, filter ListFilter) (ListResult, error)
	// ListPendingIntent returns pending_intent orders created before the cutoff, oldest first.
	ListPendingIntent(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Order, error)
	// HasPaidOrderWithProduct reports whether userID has a paid order containing productID.
	HasPaidOrderWithProduct(ctx context.Context, userID, productID string) (bool, error)

	AttachIntent(ctx context.Context, id, gatewayOrderID string, at time.Time) error
	MarkPaid(ctx context.Context, id string, result domain.PaymentResult, at time.Time) error
	MarkVoid(ctx context.Context, id string, at time.Time) error
	MarkDelivered(ctx context.Context, id string, at time.Time) error
}

// ListFilter narrows list queries by status and pagination.
type ListFilter struct {
	Status   *domain.OrderStatus
	Page     int
	PageSize int
}

// Normalized returns the filter with defaults applied.
func (f ListFilter) Normalized() ListFilter {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 20
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
	return f
}

func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// ListResult is one page of orders plus aggregates over every matching order.
type ListResult struct {
	Orders           []domain.Order
	Total            int
	TotalAmountCents int64
}

var (
	// ErrNotFound is returned when the requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrStaleState is returned when a transition lost a race with another writer.
	ErrStaleState = errors.New("order state changed concurrently")
)
