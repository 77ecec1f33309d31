//go:build integration

package postgres_test

import (
	"context"
	"testing"

	"github.com/dejobratic/storefront/internal/cart/adapters/postgres"
	"github.com/dejobratic/storefront/internal/cart/adapters/repotest"
	"github.com/dejobratic/storefront/internal/cart/ports"
	"github.com/dejobratic/storefront/internal/database/dbtest"
)

func TestRepositoryContract(t *testing.T) {
	pool := dbtest.SetupTestDB(t)

	repotest.Run(t, func(t *testing.T) ports.CartRepository {
		_, err := pool.Exec(context.Background(), `TRUNCATE carts`)
		if err != nil {
			t.Fatalf("failed to truncate carts: %v", err)
		}
		return postgres.NewRepository(pool)
	})
}
