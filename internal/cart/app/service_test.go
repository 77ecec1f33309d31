package app_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dejobratic/storefront/internal/apperror"
	"github.com/dejobratic/storefront/internal/cart/adapters/memory"
	"github.com/dejobratic/storefront/internal/cart/app"
	"github.com/dejobratic/storefront/internal/cart/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type catalog struct {
	products map[string]ports.Product
	err      error
}

func (c *catalog) Lookup(_ context.Context, productID string) (ports.Product, error) {
	if c.err != nil {
		return ports.Product{}, c.err
	}
	p, ok := c.products[productID]
	if !ok {
		return ports.Product{}, ports.ErrProductNotFound
	}
	return p, nil
}

func newService(t *testing.T) (*app.Service, *catalog) {
	t.Helper()
	cat := &catalog{products: map[string]ports.Product{
		"kettle": {ID: "kettle", Name: "Kettle", PriceCents: 1999, Image: "https://img/kettle.jpg"},
		"teapot": {ID: "teapot", Name: "Teapot", PriceCents: 950, Image: "https://img/teapot.jpg"},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := app.NewService(memory.NewRepository(), cat, logger).
		WithClock(func() time.Time { return fixedNow })
	return service, cat
}

func TestAddToCart(t *testing.T) {
	service, cat := newService(t)
	ctx := context.Background()

	_, err := service.Add(ctx, "u-1", "kettle", 1)
	require.NoError(t, err)
	_, err = service.Add(ctx, "u-1", "teapot", 2)
	require.NoError(t, err)

	cat.products["kettle"] = ports.Product{ID: "kettle", Name: "Kettle v2", PriceCents: 2999}
	cart, err := service.Add(ctx, "u-1", "kettle", 2)
	require.NoError(t, err)

	require.Len(t, cart.Items, 2)
	assert.Equal(t, "Kettle", cart.Items[0].Name)
	assert.Equal(t, "https://img/kettle.jpg", cart.Items[0].Image)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, int64(3*1999+2*950), cart.TotalCents)
	assert.Equal(t, fixedNow, cart.UpdatedAt)
}

func TestAddToCartRejects(t *testing.T) {
	service, cat := newService(t)
	ctx := context.Background()

	_, err := service.Add(ctx, "u-1", "kettle", 0)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, err = service.Add(ctx, "u-1", "missing", 1)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
	assert.Equal(t, "product not found", apperror.PublicMessage(err))

	cat.err = errors.New("catalog down")
	_, err = service.Add(ctx, "u-1", "kettle", 1)
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))

	cart, err := service.Get(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestUpdateQuantity(t *testing.T) {
	service, _ := newService(t)
	ctx := context.Background()
	_, err := service.Add(ctx, "u-1", "kettle", 1)
	require.NoError(t, err)

	cart, err := service.UpdateQuantity(ctx, "u-1", "kettle", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5*1999), cart.TotalCents)

	_, err = service.UpdateQuantity(ctx, "u-1", "teapot", 1)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
	assert.Equal(t, "item not found in cart", apperror.PublicMessage(err))

	_, err = service.UpdateQuantity(ctx, "u-1", "kettle", 0)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestRemoveAndClear(t *testing.T) {
	service, _ := newService(t)
	ctx := context.Background()
	_, err := service.Add(ctx, "u-1", "kettle", 1)
	require.NoError(t, err)
	_, err = service.Add(ctx, "u-1", "teapot", 1)
	require.NoError(t, err)

	cart, err := service.Remove(ctx, "u-1", "kettle")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(950), cart.TotalCents)

	require.NoError(t, service.Clear(ctx, "u-1"))
	cart, err = service.Get(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Zero(t, cart.TotalCents)
}
