package ports

import (
	"context"
	"errors"

	"github.com/dejobratic/storefront/internal/catalog/domain"
)

// ProductRepository persists the catalog.
type ProductRepository interface {
	Create(ctx context.Context, product domain.Product) error
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	// Modify loads the product, applies fn and stores the result atomically.
	// An error from fn aborts the write and is returned unchanged.
	Modify(ctx context.Context, id string, fn func(*domain.Product) error) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, q SearchQuery) (SearchResult, error)
}

// PurchaseChecker reports whether a user bought a product.
type PurchaseChecker interface {
	HasPurchased(ctx context.Context, userID, productID string) (bool, error)
}

// UserDirectory resolves the name shown on reviews.
type UserDirectory interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

type SortOrder string

const (
	SortNewest    SortOrder = "newest"
	SortPriceLow  SortOrder = "price-low"
	SortPriceHigh SortOrder = "price-high"
	SortRatings   SortOrder = "ratings"
)

func (s SortOrder) Valid() bool {
	switch s {
	case SortNewest, SortPriceLow, SortPriceHigh, SortRatings:
		return true
	default:
		return false
	}
}

const (
	DefaultPageSize = 12
	MaxPageSize     = 100
)

// SearchQuery filters and pages the catalog. Keyword matches name or
// category, ignoring case. Category matches exactly, ignoring case.
type SearchQuery struct {
	Keyword       string
	Category      string
	ExcludeID     string
	MinPriceCents *int64
	MaxPriceCents *int64
	Sort          SortOrder
	Page          int
	Limit         int
}

// Normalized returns the query with defaults applied.
func (q SearchQuery) Normalized() SearchQuery {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	if !q.Sort.Valid() {
		q.Sort = SortNewest
	}
	return q
}

func (q SearchQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// SearchResult is one page of products and the number of matches overall.
type SearchResult struct {
	Products []domain.Product
	Total    int
}

var ErrNotFound = errors.New("product not found")
