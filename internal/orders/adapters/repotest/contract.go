// Package repotest holds behavior checks shared by every OrderRepository implementation.
package repotest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewOrder returns a pending_intent order owned by userID.
func NewOrder(id, userID string, createdAt time.Time, productIDs ...string) domain.Order {
	if len(productIDs) == 0 {
		productIDs = []string{"p-1"}
	}
	items := make([]domain.Item, 0, len(productIDs))
	var total int64
	for _, pid := range productIDs {
		items = append(items, domain.Item{ProductID: pid, Name: "Item " + pid, PriceCents: 1000, Quantity: 1, Image: "https://img/" + pid})
		total += 1000
	}

	createdAt = createdAt.UTC().Truncate(time.Microsecond)
	return domain.Order{
		ID:     id,
		UserID: userID,
		Items:  items,
		ShippingAddress: domain.ShippingAddress{
			Address: "1 Main St", City: "Pune", State: "MH", Country: "IN", PinCode: "411001", PhoneNo: "9999999999",
		},
		PaymentMethod:   "razorpay",
		ItemsPriceCents: total,
		TotalPriceCents: total,
		ReceiptID:       domain.ReceiptID(createdAt),
		Status:          domain.StatusPendingIntent,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}

// Run exercises repo against the repository contract. newRepo must return an
// empty repository on every call.
func Run(t *testing.T, newRepo func(t *testing.T) ports.OrderRepository) {
	t.Run("create and get", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		order := NewOrder("o-create", "u-1", time.Now())

		require.NoError(t, repo.Create(ctx, order))

		got, err := repo.GetByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, order.Items, got.Items)
		assert.Equal(t, order.ShippingAddress, got.ShippingAddress)
		assert.Equal(t, order.TotalPriceCents, got.TotalPriceCents)
		assert.Equal(t, domain.StatusPendingIntent, got.Status)
		assert.False(t, got.IsPaid)
		assert.Empty(t, got.GatewayOrderID)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := newRepo(t).GetByID(context.Background(), "missing")
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})

	t.Run("status transitions are compare and set", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		order := NewOrder("o-cas", "u-1", time.Now())
		require.NoError(t, repo.Create(ctx, order))
		now := time.Now().UTC().Truncate(time.Microsecond)

		assert.ErrorIs(t, repo.MarkPaid(ctx, order.ID, domain.PaymentResult{ID: "pay_1"}, now), ports.ErrStaleState)

		require.NoError(t, repo.AttachIntent(ctx, order.ID, "order_gw_1", now))
		assert.ErrorIs(t, repo.AttachIntent(ctx, order.ID, "order_gw_2", now), ports.ErrStaleState)
		assert.ErrorIs(t, repo.MarkVoid(ctx, order.ID, now), ports.ErrStaleState)

		result := domain.PaymentResult{ID: "pay_1", Status: "captured", UpdateTime: "2024-03-01T10:00:00Z", EmailAddress: "a@b.io"}
		require.NoError(t, repo.MarkPaid(ctx, order.ID, result, now))
		assert.ErrorIs(t, repo.MarkPaid(ctx, order.ID, domain.PaymentResult{ID: "pay_2"}, now.Add(time.Minute)), ports.ErrStaleState)

		got, err := repo.GetByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPaid, got.Status)
		assert.True(t, got.IsPaid)
		assert.Equal(t, "order_gw_1", got.GatewayOrderID)
		require.NotNil(t, got.PaymentResult)
		assert.Equal(t, result, *got.PaymentResult)
		require.NotNil(t, got.PaidAt)
		assert.True(t, now.Equal(*got.PaidAt))

		assert.ErrorIs(t, repo.AttachIntent(ctx, "missing", "gw", now), ports.ErrNotFound)
	})

	t.Run("concurrent mark paid has one winner", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		order := NewOrder("o-race", "u-1", time.Now())
		require.NoError(t, repo.Create(ctx, order))
		require.NoError(t, repo.AttachIntent(ctx, order.ID, "order_gw_race", time.Now().UTC()))

		const writers = 8
		var wins, stale atomic.Int32
		var wg sync.WaitGroup
		for i := range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := repo.MarkPaid(ctx, order.ID, domain.PaymentResult{ID: fmt.Sprintf("pay_%d", i)}, time.Now().UTC())
				switch {
				case err == nil:
					wins.Add(1)
				case assert.ErrorIs(t, err, ports.ErrStaleState):
					stale.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
		assert.Equal(t, int32(writers-1), stale.Load())
	})

	t.Run("void and deliver", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		now := time.Now().UTC().Truncate(time.Microsecond)

		voided := NewOrder("o-void", "u-1", now)
		require.NoError(t, repo.Create(ctx, voided))
		require.NoError(t, repo.MarkVoid(ctx, voided.ID, now))
		assert.ErrorIs(t, repo.MarkDelivered(ctx, voided.ID, now), ports.ErrStaleState)

		unpaid := NewOrder("o-deliver", "u-1", now)
		require.NoError(t, repo.Create(ctx, unpaid))
		require.NoError(t, repo.AttachIntent(ctx, unpaid.ID, "gw", now))
		require.NoError(t, repo.MarkDelivered(ctx, unpaid.ID, now))
		require.NoError(t, repo.MarkDelivered(ctx, unpaid.ID, now.Add(time.Hour)))

		got, err := repo.GetByID(ctx, unpaid.ID)
		require.NoError(t, err)
		assert.True(t, got.IsDelivered)
		assert.False(t, got.IsPaid)
		require.NotNil(t, got.DeliveredAt)
		assert.True(t, now.Equal(*got.DeliveredAt))

		assert.ErrorIs(t, repo.MarkDelivered(ctx, "missing", now), ports.ErrNotFound)
	})

	t.Run("mark paid keeps delivery", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		now := time.Now().UTC().Truncate(time.Microsecond)

		order := NewOrder("o-deliver-then-pay", "u-1", now)
		require.NoError(t, repo.Create(ctx, order))
		require.NoError(t, repo.AttachIntent(ctx, order.ID, "gw_dtp", now))
		require.NoError(t, repo.MarkDelivered(ctx, order.ID, now))

		paidAt := now.Add(time.Hour)
		require.NoError(t, repo.MarkPaid(ctx, order.ID, domain.PaymentResult{ID: "pay_dtp"}, paidAt))

		got, err := repo.GetByID(ctx, order.ID)
		require.NoError(t, err)
		assert.True(t, got.IsPaid)
		assert.Equal(t, domain.StatusPaid, got.Status)
		assert.True(t, got.IsDelivered)
		require.NotNil(t, got.DeliveredAt)
		assert.True(t, now.Equal(*got.DeliveredAt))
		require.NotNil(t, got.PaidAt)
		assert.True(t, paidAt.Equal(*got.PaidAt))
	})

	t.Run("list by user newest first", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		base := time.Now().Add(-time.Hour)

		require.NoError(t, repo.Create(ctx, NewOrder("o-old", "u-1", base)))
		require.NoError(t, repo.Create(ctx, NewOrder("o-new", "u-1", base.Add(time.Minute))))
		require.NoError(t, repo.Create(ctx, NewOrder("o-other", "u-2", base.Add(2*time.Minute))))

		orders, err := repo.ListByUser(ctx, "u-1")
		require.NoError(t, err)
		require.Len(t, orders, 2)
		assert.Equal(t, "o-new", orders[0].ID)
		assert.Equal(t, "o-old", orders[1].ID)

		none, err := repo.ListByUser(ctx, "u-nobody")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("list with aggregate and filter", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		base := time.Now().Add(-time.Hour)

		for i := range 3 {
			require.NoError(t, repo.Create(ctx, NewOrder(fmt.Sprintf("o-%d", i), "u-1", base.Add(time.Duration(i)*time.Minute))))
		}
		require.NoError(t, repo.AttachIntent(ctx, "o-2", "gw-2", time.Now().UTC()))

		all, err := repo.List(ctx, ports.ListFilter{PageSize: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, all.Total)
		assert.Equal(t, int64(3000), all.TotalAmountCents)
		require.Len(t, all.Orders, 2)
		assert.Equal(t, "o-2", all.Orders[0].ID)

		page2, err := repo.List(ctx, ports.ListFilter{Page: 2, PageSize: 2})
		require.NoError(t, err)
		require.Len(t, page2.Orders, 1)
		assert.Equal(t, "o-0", page2.Orders[0].ID)

		status := domain.StatusUnpaid
		unpaid, err := repo.List(ctx, ports.ListFilter{Status: &status})
		require.NoError(t, err)
		assert.Equal(t, 1, unpaid.Total)
		assert.Equal(t, int64(1000), unpaid.TotalAmountCents)
	})

	t.Run("list pending intent oldest first", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		now := time.Now().UTC()

		require.NoError(t, repo.Create(ctx, NewOrder("o-stale-1", "u-1", now.Add(-2*time.Hour))))
		require.NoError(t, repo.Create(ctx, NewOrder("o-stale-2", "u-1", now.Add(-time.Hour))))
		require.NoError(t, repo.Create(ctx, NewOrder("o-fresh", "u-1", now)))
		require.NoError(t, repo.Create(ctx, NewOrder("o-attached", "u-1", now.Add(-3*time.Hour))))
		require.NoError(t, repo.AttachIntent(ctx, "o-attached", "gw", now))

		pending, err := repo.ListPendingIntent(ctx, now.Add(-30*time.Minute), 10)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, "o-stale-1", pending[0].ID)
		assert.Equal(t, "o-stale-2", pending[1].ID)

		limited, err := repo.ListPendingIntent(ctx, now.Add(-30*time.Minute), 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})

	t.Run("purchase check only counts paid orders", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		now := time.Now().UTC()

		paid := NewOrder("o-paid", "u-1", now, "p-paid", "p-both")
		unpaid := NewOrder("o-unpaid", "u-1", now, "p-unpaid")
		for _, o := range []domain.Order{paid, unpaid} {
			require.NoError(t, repo.Create(ctx, o))
			require.NoError(t, repo.AttachIntent(ctx, o.ID, "gw-"+o.ID, now))
		}
		require.NoError(t, repo.MarkPaid(ctx, paid.ID, domain.PaymentResult{ID: "pay"}, now))

		tests := []struct {
			user, product string
			want          bool
		}{
			{"u-1", "p-paid", true},
			{"u-1", "p-both", true},
			{"u-1", "p-unpaid", false},
			{"u-2", "p-paid", false},
			{"u-1", "p-none", false},
		}
		for _, tt := range tests {
			got, err := repo.HasPaidOrderWithProduct(ctx, tt.user, tt.product)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got, "%s/%s", tt.user, tt.product)
		}
	})
}
