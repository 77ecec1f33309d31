package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// Repository provides an in-memory store useful for local development and tests.
type Repository struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

// NewRepository constructs a new in-memory repository.
func NewRepository() *Repository {
	return &Repository{orders: make(map[string]domain.Order)}
}

// Create stores a new order instance.
func (r *Repository) Create(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[order.ID]; exists {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	r.orders[order.ID] = clone(order)
	return nil
}

// GetByID fetches a single order by identifier.
func (r *Repository) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	out := clone(order)
	return &out, nil
}

func (r *Repository) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	return r.collect(func(o domain.Order) bool { return o.UserID == userID }), nil
}

// List returns one page of orders plus totals over every match. Pagination is 1-based.
func (r *Repository) List(_ context.Context, filter ports.ListFilter) (ports.ListResult, error) {
	filter = filter.Normalized()
	matches := r.collect(func(o domain.Order) bool {
		return filter.Status == nil || o.Status == *filter.Status
	})

	result := ports.ListResult{Total: len(matches)}
	for _, o := range matches {
		result.TotalAmountCents += o.TotalPriceCents
	}

	start := filter.Offset()
	if start >= len(matches) {
		result.Orders = []domain.Order{}
		return result, nil
	}
	end := min(start+filter.PageSize, len(matches))
	result.Orders = matches[start:end]
	return result, nil
}

func (r *Repository) ListPendingIntent(_ context.Context, createdBefore time.Time, limit int) ([]domain.Order, error) {
	pending := r.collect(func(o domain.Order) bool {
		return o.Status == domain.StatusPendingIntent && o.CreatedAt.Before(createdBefore)
	})
	slices.Reverse(pending)
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (r *Repository) HasPaidOrderWithProduct(_ context.Context, userID, productID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.orders {
		if o.UserID == userID && o.Status == domain.StatusPaid && o.HasProduct(productID) {
			return true, nil
		}
	}
	return false, nil
}

func (r *Repository) AttachIntent(_ context.Context, id, gatewayOrderID string, at time.Time) error {
	return r.transition(id, domain.StatusPendingIntent, func(o *domain.Order) {
		o.GatewayOrderID = gatewayOrderID
		o.Status = domain.StatusUnpaid
		o.UpdatedAt = at
	})
}

func (r *Repository) MarkPaid(_ context.Context, id string, result domain.PaymentResult, at time.Time) error {
	return r.transition(id, domain.StatusUnpaid, func(o *domain.Order) {
		paidAt := at
		o.Status = domain.StatusPaid
		o.IsPaid = true
		o.PaidAt = &paidAt
		o.PaymentResult = &result
		o.UpdatedAt = at
	})
}

func (r *Repository) MarkVoid(_ context.Context, id string, at time.Time) error {
	return r.transition(id, domain.StatusPendingIntent, func(o *domain.Order) {
		o.Status = domain.StatusVoid
		o.UpdatedAt = at
	})
}

func (r *Repository) MarkDelivered(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return ports.ErrNotFound
	}
	if order.Status == domain.StatusVoid {
		return ports.ErrStaleState
	}
	if order.DeliveredAt == nil {
		deliveredAt := at
		order.DeliveredAt = &deliveredAt
		order.UpdatedAt = at
	}
	order.IsDelivered = true
	r.orders[id] = order
	return nil
}

// transition applies mutate only while the stored status equals from.
func (r *Repository) transition(id string, from domain.OrderStatus, mutate func(*domain.Order)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return ports.ErrNotFound
	}
	if order.Status != from {
		return ports.ErrStaleState
	}
	mutate(&order)
	r.orders[id] = order
	return nil
}

// collect returns matching orders, newest first.
func (r *Repository) collect(keep func(domain.Order) bool) []domain.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []domain.Order{}
	for _, o := range r.orders {
		if keep(o) {
			result = append(result, clone(o))
		}
	}
	slices.SortFunc(result, func(a, b domain.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return result
}

// clone copies slices and pointers so callers cannot mutate stored state.
func clone(o domain.Order) domain.Order {
	o.Items = slices.Clone(o.Items)
	if o.PaidAt != nil {
		t := *o.PaidAt
		o.PaidAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		o.DeliveredAt = &t
	}
	if o.PaymentResult != nil {
		pr := *o.PaymentResult
		o.PaymentResult = &pr
	}
	o.IsPaid = o.Paid()
	return o
}
