package adapters

import (
	"context"

	"github.com/dejobratic/storefront/internal/apperror"
	"github.com/dejobratic/storefront/internal/cart/ports"
	catalogapp "github.com/dejobratic/storefront/internal/catalog/app"
)

// CatalogLookup resolves cart products through the catalog service.
type CatalogLookup struct {
	catalog *catalogapp.Service
}

func NewCatalogLookup(catalog *catalogapp.Service) *CatalogLookup {
	return &CatalogLookup{catalog: catalog}
}

func (l *CatalogLookup) Lookup(ctx context.Context, productID string) (ports.Product, error) {
	product, err := l.catalog.Get(ctx, productID)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return ports.Product{}, ports.ErrProductNotFound
		}
		return ports.Product{}, err
	}
	return ports.Product{
		ID:         product.ID,
		Name:       product.Name,
		PriceCents: product.PriceCents,
		Image:      product.PrimaryImage(),
	}, nil
}
