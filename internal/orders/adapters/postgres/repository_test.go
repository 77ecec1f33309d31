//go:build integration

package postgres_test

import (
	"context"
	"testing"

	"github.com/dejobratic/storefront/internal/database/dbtest"
	"github.com/dejobratic/storefront/internal/orders/adapters/postgres"
	"github.com/dejobratic/storefront/internal/orders/adapters/repotest"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

func TestRepositoryContract(t *testing.T) {
	pool := dbtest.SetupTestDB(t)

	repotest.Run(t, func(t *testing.T) ports.OrderRepository {
		_, err := pool.Exec(context.Background(), `TRUNCATE orders`)
		if err != nil {
			t.Fatalf("failed to truncate orders: %v", err)
		}
		return postgres.NewRepository(pool)
	})
}
