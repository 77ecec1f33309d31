// Package repotest holds behavior checks shared by every CartRepository implementation.
package repotest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dejobratic/storefront/internal/cart/domain"
	"github.com/dejobratic/storefront/internal/cart/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addItem(productID string, cents int64, qty int, at time.Time) func(*domain.Cart) error {
	return func(c *domain.Cart) error {
		c.UpdatedAt = at
		return c.Add(domain.Item{ProductID: productID, Name: "Product " + productID, PriceCents: cents, Quantity: qty})
	}
}

// Run exercises the repository contract. newRepo must return an empty
// repository on every call.
func Run(t *testing.T, newRepo func(t *testing.T) ports.CartRepository) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("missing cart is empty", func(t *testing.T) {
		repo := newRepo(t)

		cart, err := repo.Get(ctx, "u-1")
		require.NoError(t, err)
		assert.Equal(t, "u-1", cart.UserID)
		assert.NotNil(t, cart.Items)
		assert.Empty(t, cart.Items)
		assert.Zero(t, cart.TotalCents)
	})

	t.Run("modify persists", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.Modify(ctx, "u-1", addItem("p-1", 1999, 2, now))
		require.NoError(t, err)
		_, err = repo.Modify(ctx, "u-1", addItem("p-2", 500, 1, now))
		require.NoError(t, err)

		cart, err := repo.Get(ctx, "u-1")
		require.NoError(t, err)
		require.Len(t, cart.Items, 2)
		assert.Equal(t, "p-1", cart.Items[0].ProductID)
		assert.Equal(t, int64(2*1999+500), cart.TotalCents)
		assert.True(t, now.Equal(cart.UpdatedAt))
	})

	t.Run("carts are per user", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.Modify(ctx, "u-1", addItem("p-1", 100, 1, now))
		require.NoError(t, err)

		other, err := repo.Get(ctx, "u-2")
		require.NoError(t, err)
		assert.Empty(t, other.Items)
	})

	t.Run("modify error aborts", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Modify(ctx, "u-1", addItem("p-1", 100, 1, now))
		require.NoError(t, err)

		boom := errors.New("boom")
		_, err = repo.Modify(ctx, "u-1", func(c *domain.Cart) error {
			c.Empty()
			return boom
		})
		assert.ErrorIs(t, err, boom)

		cart, err := repo.Get(ctx, "u-1")
		require.NoError(t, err)
		assert.Len(t, cart.Items, 1)
	})

	t.Run("concurrent adds merge", func(t *testing.T) {
		repo := newRepo(t)

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.Modify(ctx, "u-1", addItem("p-1", 100, 1, now))
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		cart, err := repo.Get(ctx, "u-1")
		require.NoError(t, err)
		require.Len(t, cart.Items, 1)
		assert.Equal(t, 8, cart.Items[0].Quantity)
		assert.Equal(t, int64(800), cart.TotalCents)
	})

	t.Run("clear", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Modify(ctx, "u-1", addItem("p-1", 100, 1, now))
		require.NoError(t, err)

		require.NoError(t, repo.Clear(ctx, "u-1"))
		require.NoError(t, repo.Clear(ctx, "u-1"))

		cart, err := repo.Get(ctx, "u-1")
		require.NoError(t, err)
		assert.Empty(t, cart.Items)
	})
}
