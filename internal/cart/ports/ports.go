package ports

import (
	"context"
	"errors"

	"github.com/dejobratic/storefront/internal/cart/domain"
)

var ErrProductNotFound = errors.New("product not found")

// CartRepository stores one cart per user. Get and Modify treat a user
// without a stored cart as having an empty one.
type CartRepository interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	// Modify applies fn to the user's cart and persists the result. An
	// error from fn aborts the write.
	Modify(ctx context.Context, userID string, fn func(*domain.Cart) error) (*domain.Cart, error)
	Clear(ctx context.Context, userID string) error
}

// Product is the catalog data a cart line snapshots.
type Product struct {
	ID         string
	Name       string
	PriceCents int64
	Image      string
}

type ProductLookup interface {
	// Lookup returns ErrProductNotFound when the product does not exist.
	Lookup(ctx context.Context, productID string) (Product, error)
}
