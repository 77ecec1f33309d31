package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/dejobratic/storefront/internal/catalog/domain"
	"github.com/dejobratic/storefront/internal/catalog/ports"
)

// Repository keeps the catalog in memory for local development and tests.
type Repository struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

func NewRepository() *Repository {
	return &Repository{products: make(map[string]domain.Product)}
}

func (r *Repository) Create(_ context.Context, product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.products[product.ID]; exists {
		return fmt.Errorf("product %s already exists", product.ID)
	}
	r.products[product.ID] = clone(product)
	return nil
}

func (r *Repository) GetByID(_ context.Context, id string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	product, ok := r.products[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	out := clone(product)
	return &out, nil
}

func (r *Repository) Modify(_ context.Context, id string, fn func(*domain.Product) error) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.products[id]
	if !ok {
		return nil, ports.ErrNotFound
	}

	updated := clone(current)
	if err := fn(&updated); err != nil {
		return nil, err
	}
	updated.ID = id
	r.products[id] = clone(updated)
	return &updated, nil
}

func (r *Repository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[id]; !ok {
		return ports.ErrNotFound
	}
	delete(r.products, id)
	return nil
}

func (r *Repository) Search(_ context.Context, q ports.SearchQuery) (ports.SearchResult, error) {
	q = q.Normalized()

	r.mu.RLock()
	matches := []domain.Product{}
	for _, p := range r.products {
		if matchesQuery(p, q) {
			matches = append(matches, clone(p))
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(matches, compareBy(q.Sort))

	result := ports.SearchResult{Total: len(matches), Products: []domain.Product{}}
	start := q.Offset()
	if start >= len(matches) {
		return result, nil
	}
	end := min(start+q.Limit, len(matches))
	result.Products = matches[start:end]
	return result, nil
}

func matchesQuery(p domain.Product, q ports.SearchQuery) bool {
	if q.Keyword != "" {
		kw := strings.ToLower(q.Keyword)
		if !strings.Contains(strings.ToLower(p.Name), kw) && !strings.Contains(strings.ToLower(p.Category), kw) {
			return false
		}
	}
	if q.Category != "" && !strings.EqualFold(p.Category, q.Category) {
		return false
	}
	if q.ExcludeID != "" && p.ID == q.ExcludeID {
		return false
	}
	if q.MinPriceCents != nil && p.PriceCents < *q.MinPriceCents {
		return false
	}
	if q.MaxPriceCents != nil && p.PriceCents > *q.MaxPriceCents {
		return false
	}
	return true
}

// compareBy orders products like the postgres adapter: the sort key first,
// then newest, then id.
func compareBy(sort ports.SortOrder) func(a, b domain.Product) int {
	return func(a, b domain.Product) int {
		var c int
		switch sort {
		case ports.SortPriceLow:
			c = cmp.Compare(a.PriceCents, b.PriceCents)
		case ports.SortPriceHigh:
			c = cmp.Compare(b.PriceCents, a.PriceCents)
		case ports.SortRatings:
			c = cmp.Compare(b.Ratings, a.Ratings)
		}
		if c != 0 {
			return c
		}
		if c = b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	}
}

func clone(p domain.Product) domain.Product {
	p.Images = slices.Clone(p.Images)
	p.Reviews = slices.Clone(p.Reviews)
	return p
}
