package ports

import (
	"context"
	"time"
)

const (
	EventOrderCreated   = "order.created"
	EventOrderPaid      = "order.paid"
	EventOrderDelivered = "order.delivered"
)

// OrderEvent is the payload published for every order lifecycle change.
type OrderEvent struct {
	Type       string    `json:"-"`
	OrderID    string    `json:"order_id"`
	UserID     string    `json:"user_id"`
	TotalCents int64     `json:"total_cents"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventBus defines the contract for publishing order lifecycle events.
type EventBus interface {
	Publish(ctx context.Context, event OrderEvent) error
}
