// Package repotest holds behavior checks shared by every ProductRepository implementation.
package repotest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dejobratic/storefront/internal/catalog/domain"
	"github.com/dejobratic/storefront/internal/catalog/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func NewProduct(id, name, category string, priceCents int64, createdAt time.Time) domain.Product {
	createdAt = createdAt.UTC().Truncate(time.Microsecond)
	return domain.Product{
		ID:          id,
		Name:        name,
		Description: "About " + name,
		PriceCents:  priceCents,
		Category:    category,
		Stock:       5,
		Images:      []string{"https://img/" + id + ".jpg"},
		Reviews:     []domain.Review{},
		CreatedBy:   "admin-1",
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

// Run exercises the repository contract. newRepo must return an empty
// repository on every call.
func Run(t *testing.T, newRepo func(t *testing.T) ports.ProductRepository) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		repo := newRepo(t)
		product := NewProduct("p-1", "Kettle", "kitchen", 1999, time.Now())
		require.NoError(t, repo.Create(ctx, product))

		got, err := repo.GetByID(ctx, "p-1")
		require.NoError(t, err)
		assert.Equal(t, product.Name, got.Name)
		assert.Equal(t, product.Images, got.Images)
		assert.Equal(t, product.PriceCents, got.PriceCents)
		assert.Empty(t, got.Reviews)
		assert.True(t, product.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("missing", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, ports.ErrNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, "missing"), ports.ErrNotFound)
		_, err = repo.Modify(ctx, "missing", func(*domain.Product) error { return nil })
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})

	t.Run("modify persists changes", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, NewProduct("p-1", "Kettle", "kitchen", 1999, time.Now())))
		at := time.Now().UTC().Truncate(time.Microsecond)

		updated, err := repo.Modify(ctx, "p-1", func(p *domain.Product) error {
			p.PriceCents = 2499
			return p.AddReview(domain.Review{UserID: "u-1", Name: "Ana", Rating: 4, Comment: "good", CreatedAt: at})
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2499), updated.PriceCents)

		got, err := repo.GetByID(ctx, "p-1")
		require.NoError(t, err)
		assert.Equal(t, int64(2499), got.PriceCents)
		require.Len(t, got.Reviews, 1)
		assert.Equal(t, "u-1", got.Reviews[0].UserID)
		assert.Equal(t, 1, got.NumReviews)
		assert.InDelta(t, 4.0, got.Ratings, 1e-9)
	})

	t.Run("modify error aborts the write", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, NewProduct("p-1", "Kettle", "kitchen", 1999, time.Now())))
		boom := errors.New("boom")

		_, err := repo.Modify(ctx, "p-1", func(p *domain.Product) error {
			p.PriceCents = 1
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := repo.GetByID(ctx, "p-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1999), got.PriceCents)
	})

	t.Run("concurrent reviews by one user keep one", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, NewProduct("p-1", "Kettle", "kitchen", 1999, time.Now())))

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = repo.Modify(ctx, "p-1", func(p *domain.Product) error {
					return p.AddReview(domain.Review{UserID: "u-1", Name: "Ana", Rating: 5, CreatedAt: time.Now().UTC()})
				})
			}()
		}
		wg.Wait()

		got, err := repo.GetByID(ctx, "p-1")
		require.NoError(t, err)
		assert.Equal(t, 1, got.NumReviews)
	})

	t.Run("delete", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Create(ctx, NewProduct("p-1", "Kettle", "kitchen", 1999, time.Now())))
		require.NoError(t, repo.Delete(ctx, "p-1"))

		_, err := repo.GetByID(ctx, "p-1")
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})

	t.Run("search", func(t *testing.T) {
		repo := newRepo(t)
		base := time.Now().Add(-time.Hour)
		seed := []domain.Product{
			NewProduct("p-1", "Steel Kettle", "kitchen", 2500, base.Add(1*time.Minute)),
			NewProduct("p-2", "Glass Teapot", "Kitchen", 1500, base.Add(2*time.Minute)),
			NewProduct("p-3", "Desk Lamp", "office", 4000, base.Add(3*time.Minute)),
			NewProduct("p-4", "100% Cotton Towel", "bath", 900, base.Add(4*time.Minute)),
		}
		seed[2].Ratings = 4.5
		seed[0].Ratings = 3
		for _, p := range seed {
			require.NoError(t, repo.Create(ctx, p))
		}

		ids := func(q ports.SearchQuery) ([]string, int) {
			t.Helper()
			res, err := repo.Search(ctx, q)
			require.NoError(t, err)
			out := make([]string, 0, len(res.Products))
			for _, p := range res.Products {
				out = append(out, p.ID)
			}
			return out, res.Total
		}
		cents := func(v int64) *int64 { return &v }

		tests := []struct {
			name      string
			q         ports.SearchQuery
			wantIDs   []string
			wantTotal int
		}{
			{"default is newest first", ports.SearchQuery{}, []string{"p-4", "p-3", "p-2", "p-1"}, 4},
			{"keyword matches name ignoring case", ports.SearchQuery{Keyword: "KETTLE"}, []string{"p-1"}, 1},
			{"keyword matches category", ports.SearchQuery{Keyword: "kitch"}, []string{"p-2", "p-1"}, 2},
			{"keyword percent is literal", ports.SearchQuery{Keyword: "100%"}, []string{"p-4"}, 1},
			{"category ignores case", ports.SearchQuery{Category: "KITCHEN"}, []string{"p-2", "p-1"}, 2},
			{"exclude id", ports.SearchQuery{Category: "kitchen", ExcludeID: "p-1"}, []string{"p-2"}, 1},
			{"price range", ports.SearchQuery{MinPriceCents: cents(1000), MaxPriceCents: cents(2500)}, []string{"p-2", "p-1"}, 2},
			{"price low", ports.SearchQuery{Sort: ports.SortPriceLow}, []string{"p-4", "p-2", "p-1", "p-3"}, 4},
			{"price high", ports.SearchQuery{Sort: ports.SortPriceHigh}, []string{"p-3", "p-1", "p-2", "p-4"}, 4},
			{"ratings", ports.SearchQuery{Sort: ports.SortRatings}, []string{"p-3", "p-1", "p-4", "p-2"}, 4},
			{"second page", ports.SearchQuery{Sort: ports.SortPriceLow, Page: 2, Limit: 3}, []string{"p-3"}, 4},
			{"page past the end", ports.SearchQuery{Page: 3, Limit: 3}, []string{}, 4},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				gotIDs, gotTotal := ids(tt.q)
				assert.Equal(t, tt.wantIDs, gotIDs)
				assert.Equal(t, tt.wantTotal, gotTotal)
			})
		}
	})
}
