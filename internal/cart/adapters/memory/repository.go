package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/dejobratic/storefront/internal/cart/domain"
)

type Repository struct {
	mu    sync.Mutex
	carts map[string]domain.Cart
}

func NewRepository() *Repository {
	return &Repository{carts: make(map[string]domain.Cart)}
}

func (r *Repository) Get(_ context.Context, userID string) (*domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.load(userID)
	return &out, nil
}

func (r *Repository) Modify(_ context.Context, userID string, fn func(*domain.Cart) error) (*domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	updated := r.load(userID)
	if err := fn(&updated); err != nil {
		return nil, err
	}
	updated.UserID = userID
	r.carts[userID] = clone(updated)
	return &updated, nil
}

func (r *Repository) Clear(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, userID)
	return nil
}

func (r *Repository) load(userID string) domain.Cart {
	c, ok := r.carts[userID]
	if !ok {
		return domain.New(userID)
	}
	return clone(c)
}

func clone(c domain.Cart) domain.Cart {
	c.Items = slices.Clone(c.Items)
	if c.Items == nil {
		c.Items = []domain.Item{}
	}
	return c
}
