package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// OrderStatus captures the payment lifecycle of an order. Delivery is tracked
// separately and does not change the status.
type OrderStatus string

const (
	// StatusPendingIntent is the state between the local write and the gateway
	// intent being attached.
	StatusPendingIntent OrderStatus = "pending_intent"
	StatusUnpaid        OrderStatus = "unpaid"
	StatusPaid          OrderStatus = "paid"
	// StatusVoid marks an order whose intent was never created.
	StatusVoid OrderStatus = "void"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPendingIntent, StatusUnpaid, StatusPaid, StatusVoid:
		return true
	default:
		return false
	}
}

// CanTransitionTo lists the allowed status transitions.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case StatusPendingIntent:
		return next == StatusUnpaid || next == StatusVoid
	case StatusUnpaid:
		return next == StatusPaid
	default:
		return false
	}
}

var (
	ErrNoItems          = errors.New("order must contain at least one item")
	ErrNonPositiveTotal = errors.New("total price must be positive")
	ErrInvalidItem      = errors.New("invalid order item")
	ErrVoidOrder        = errors.New("order is void")
)

type Item struct {
	ProductID  string `json:"product"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int    `json:"quantity"`
	Image      string `json:"image"`
}

type ShippingAddress struct {
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
	PinCode string `json:"pin_code"`
	PhoneNo string `json:"phone_no"`
}

// PaymentResult is the gateway's record of the captured payment.
type PaymentResult struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	UpdateTime   string `json:"update_time"`
	EmailAddress string `json:"email_address"`
}

// Order is a purchase placed by a user, priced in minor currency units.
type Order struct {
	ID                 string          `json:"id"`
	UserID             string          `json:"user_id"`
	Items              []Item          `json:"order_items"`
	ShippingAddress    ShippingAddress `json:"shipping_address"`
	PaymentMethod      string          `json:"payment_method"`
	ItemsPriceCents    int64           `json:"items_price_cents"`
	TaxPriceCents      int64           `json:"tax_price_cents"`
	ShippingPriceCents int64           `json:"shipping_price_cents"`
	TotalPriceCents    int64           `json:"total_price_cents"`
	ReceiptID          string          `json:"receipt_id"`
	GatewayOrderID     string          `json:"gateway_order_id,omitempty"`
	Status             OrderStatus     `json:"status"`
	IsPaid             bool            `json:"is_paid"`
	PaidAt             *time.Time      `json:"paid_at,omitempty"`
	PaymentResult      *PaymentResult  `json:"payment_result,omitempty"`
	IsDelivered        bool            `json:"is_delivered"`
	DeliveredAt        *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Validate checks the invariants required at creation.
func (o Order) Validate() error {
	if len(o.Items) == 0 {
		return ErrNoItems
	}
	for i, item := range o.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return fmt.Errorf("%w: item %d has no product", ErrInvalidItem, i)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("%w: item %d quantity must be at least 1", ErrInvalidItem, i)
		}
		if item.PriceCents < 0 {
			return fmt.Errorf("%w: item %d price must not be negative", ErrInvalidItem, i)
		}
	}
	if o.TotalPriceCents <= 0 {
		return ErrNonPositiveTotal
	}
	return nil
}

// Paid reports whether the order has been paid. IsPaid mirrors this for clients.
func (o Order) Paid() bool {
	return o.Status == StatusPaid
}

// Normalize keeps derived fields consistent with the status.
func (o *Order) Normalize() {
	o.IsPaid = o.Paid()
}

// MarkPaid moves an unpaid order to paid, recording the gateway result.
func (o *Order) MarkPaid(result PaymentResult, at time.Time) error {
	if !o.Status.CanTransitionTo(StatusPaid) {
		return fmt.Errorf("cannot mark %s order as paid", o.Status)
	}
	o.Status = StatusPaid
	o.IsPaid = true
	o.PaidAt = &at
	o.PaymentResult = &result
	o.UpdatedAt = at
	return nil
}

// AttachIntent records the gateway intent and makes the order payable.
func (o *Order) AttachIntent(gatewayOrderID string, at time.Time) error {
	if !o.Status.CanTransitionTo(StatusUnpaid) {
		return fmt.Errorf("cannot attach intent to %s order", o.Status)
	}
	o.GatewayOrderID = gatewayOrderID
	o.Status = StatusUnpaid
	o.UpdatedAt = at
	return nil
}

// MarkDelivered sets the delivery flag. A repeat call keeps the first timestamp.
func (o *Order) MarkDelivered(at time.Time) error {
	if o.Status == StatusVoid {
		return ErrVoidOrder
	}
	if o.IsDelivered && o.DeliveredAt != nil {
		return nil
	}
	o.IsDelivered = true
	o.DeliveredAt = &at
	o.UpdatedAt = at
	return nil
}

// HasProduct reports whether any line item references productID.
func (o Order) HasProduct(productID string) bool {
	for _, item := range o.Items {
		if item.ProductID == productID {
			return true
		}
	}
	return false
}

// ToMinorUnits converts a decimal amount to integer minor units, rounding half away from zero.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// ReceiptID derives the merchant receipt identifier from the creation time.
func ReceiptID(at time.Time) string {
	return fmt.Sprintf("order_rcptid_%d", at.UnixMilli())
}
