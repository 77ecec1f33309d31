package queries

import (
	"context"
	"testing"
	"time"

	"github.com/dejobratic/storefront/internal/apperror"
	"github.com/dejobratic/storefront/internal/auth"
	"github.com/dejobratic/storefront/internal/orders/adapters/memory"
	"github.com/dejobratic/storefront/internal/orders/adapters/repotest"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func seed(t *testing.T) *memory.Repository {
	t.Helper()
	ctx := context.Background()
	repo := memory.NewRepository()

	paid := repotest.NewOrder("o-paid", "u-1", base, "p-1", "p-2")
	unpaid := repotest.NewOrder("o-unpaid", "u-1", base.Add(time.Minute), "p-3")
	other := repotest.NewOrder("o-other", "u-2", base.Add(2*time.Minute), "p-3")

	for _, o := range []domain.Order{paid, unpaid, other} {
		require.NoError(t, repo.Create(ctx, o))
		require.NoError(t, repo.AttachIntent(ctx, o.ID, "order_gw_"+o.ID, o.CreatedAt))
	}
	require.NoError(t, repo.MarkPaid(ctx, "o-paid", domain.PaymentResult{ID: "pay_1", Status: "captured"}, base))
	require.NoError(t, repo.MarkPaid(ctx, "o-other", domain.PaymentResult{ID: "pay_2", Status: "captured"}, base))

	return repo
}

func TestGetOrder(t *testing.T) {
	handler := NewGetOrderQueryHandler(seed(t))
	ctx := context.Background()

	order, err := handler.Handle(ctx, GetOrderQuery{Principal: auth.Principal{UserID: "u-1", Role: auth.RoleUser}, OrderID: "o-paid"})
	require.NoError(t, err)
	assert.Equal(t, "o-paid", order.ID)
	assert.True(t, order.IsPaid)

	order, err = handler.Handle(ctx, GetOrderQuery{Principal: auth.Principal{UserID: "admin", Role: auth.RoleAdmin}, OrderID: "o-paid"})
	require.NoError(t, err)
	assert.Equal(t, "u-1", order.UserID)

	_, err = handler.Handle(ctx, GetOrderQuery{Principal: auth.Principal{UserID: "u-2", Role: auth.RoleUser}, OrderID: "o-paid"})
	assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))

	_, err = handler.Handle(ctx, GetOrderQuery{Principal: auth.Principal{UserID: "u-1", Role: auth.RoleUser}, OrderID: "nope"})
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

	_, err = handler.Handle(ctx, GetOrderQuery{Principal: auth.Principal{UserID: "u-1", Role: auth.RoleUser}})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestListMyOrders(t *testing.T) {
	handler := NewListMyOrdersQueryHandler(seed(t))

	orders, err := handler.Handle(context.Background(), ListMyOrdersQuery{UserID: "u-1"})
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "o-unpaid", orders[0].ID)
	assert.Equal(t, "o-paid", orders[1].ID)

	none, err := handler.Handle(context.Background(), ListMyOrdersQuery{UserID: "u-nobody"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestListOrders(t *testing.T) {
	handler := NewListOrdersQueryHandler(seed(t))
	ctx := context.Background()

	all, err := handler.Handle(ctx, ListOrdersQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Total)
	assert.Len(t, all.Orders, 3)
	assert.Equal(t, int64(4000), all.TotalAmountCents)

	status := domain.StatusPaid
	paid, err := handler.Handle(ctx, ListOrdersQuery{Filter: ports.ListFilter{Status: &status}})
	require.NoError(t, err)
	assert.Equal(t, 2, paid.Total)
	assert.Equal(t, int64(3000), paid.TotalAmountCents)

	page, err := handler.Handle(ctx, ListOrdersQuery{Filter: ports.ListFilter{Page: 2, PageSize: 2}})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, "o-paid", page.Orders[0].ID)

	bogus := domain.OrderStatus("shipped")
	_, err = handler.Handle(ctx, ListOrdersQuery{Filter: ports.ListFilter{Status: &bogus}})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestCheckPurchase(t *testing.T) {
	handler := NewCheckPurchaseQueryHandler(seed(t))
	ctx := context.Background()

	tests := []struct {
		name      string
		userID    string
		productID string
		want      bool
	}{
		{"paid order contains product", "u-1", "p-2", true},
		{"only unpaid order contains product", "u-1", "p-3", false},
		{"another user's paid order", "u-2", "p-1", false},
		{"other user bought it", "u-2", "p-3", true},
		{"never ordered", "u-1", "p-9", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := handler.Handle(ctx, CheckPurchaseQuery{UserID: tt.userID, ProductID: tt.productID})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := handler.Handle(ctx, CheckPurchaseQuery{UserID: "u-1"})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}
