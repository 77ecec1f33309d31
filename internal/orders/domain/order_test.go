package domain_test

import (
	"testing"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOrder() domain.Order {
	return domain.Order{
		ID:     "o-1",
		UserID: "u-1",
		Items: []domain.Item{
			{ProductID: "p-1", Name: "Kettle", PriceCents: 19999, Quantity: 1},
		},
		TotalPriceCents: 19999,
		Status:          domain.StatusPendingIntent,
	}
}

func TestOrderValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.Order)
		wantErr error
	}{
		{"valid order", func(*domain.Order) {}, nil},
		{"no items", func(o *domain.Order) { o.Items = nil }, domain.ErrNoItems},
		{"zero total", func(o *domain.Order) { o.TotalPriceCents = 0 }, domain.ErrNonPositiveTotal},
		{"negative total", func(o *domain.Order) { o.TotalPriceCents = -1 }, domain.ErrNonPositiveTotal},
		{"zero quantity", func(o *domain.Order) { o.Items[0].Quantity = 0 }, domain.ErrInvalidItem},
		{"missing product", func(o *domain.Order) { o.Items[0].ProductID = " " }, domain.ErrInvalidItem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := validOrder()
			tt.mutate(&order)

			err := order.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestStatusTransitions(t *testing.T) {
	allowed := map[domain.OrderStatus][]domain.OrderStatus{
		domain.StatusPendingIntent: {domain.StatusUnpaid, domain.StatusVoid},
		domain.StatusUnpaid:        {domain.StatusPaid},
		domain.StatusPaid:          nil,
		domain.StatusVoid:          nil,
	}
	all := []domain.OrderStatus{domain.StatusPendingIntent, domain.StatusUnpaid, domain.StatusPaid, domain.StatusVoid}

	for from, targets := range allowed {
		for _, to := range all {
			want := false
			for _, target := range targets {
				if target == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestMarkPaid(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	order := validOrder()

	err := order.MarkPaid(domain.PaymentResult{ID: "pay_1"}, now)
	require.Error(t, err, "pending_intent order cannot be paid")

	require.NoError(t, order.AttachIntent("order_gw_1", now))
	require.NoError(t, order.MarkPaid(domain.PaymentResult{ID: "pay_1", Status: "captured"}, now))

	assert.True(t, order.IsPaid)
	assert.True(t, order.Paid())
	assert.Equal(t, now, *order.PaidAt)
	assert.Equal(t, "pay_1", order.PaymentResult.ID)

	assert.Error(t, order.MarkPaid(domain.PaymentResult{ID: "pay_2"}, now.Add(time.Hour)))
	assert.Equal(t, "pay_1", order.PaymentResult.ID)
}

func TestMarkDelivered(t *testing.T) {
	first := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("unpaid orders can be delivered", func(t *testing.T) {
		order := validOrder()
		order.Status = domain.StatusUnpaid

		require.NoError(t, order.MarkDelivered(first))
		assert.True(t, order.IsDelivered)
		assert.False(t, order.IsPaid)
		assert.Nil(t, order.PaymentResult)
	})

	t.Run("repeat keeps first timestamp", func(t *testing.T) {
		order := validOrder()
		order.Status = domain.StatusPaid

		require.NoError(t, order.MarkDelivered(first))
		require.NoError(t, order.MarkDelivered(first.Add(time.Hour)))
		assert.Equal(t, first, *order.DeliveredAt)
	})

	t.Run("void orders are rejected", func(t *testing.T) {
		order := validOrder()
		order.Status = domain.StatusVoid

		assert.ErrorIs(t, order.MarkDelivered(first), domain.ErrVoidOrder)
	})
}

func TestToMinorUnits(t *testing.T) {
	tests := map[float64]int64{
		199.99: 19999,
		0.1:    10,
		0.29:   29,
		10:     1000,
		0.004:  0,
	}

	for in, want := range tests {
		assert.Equal(t, want, domain.ToMinorUnits(in), "amount %v", in)
	}
}

func TestReceiptID(t *testing.T) {
	at := time.UnixMilli(1709287200123)
	assert.Equal(t, "order_rcptid_1709287200123", domain.ReceiptID(at))
}

func TestHasProduct(t *testing.T) {
	order := validOrder()
	assert.True(t, order.HasProduct("p-1"))
	assert.False(t, order.HasProduct("p-2"))
}
