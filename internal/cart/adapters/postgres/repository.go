package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dejobratic/storefront/internal/cart/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := scanCart(r.pool.QueryRow(ctx, `SELECT user_id, items, total_cents, updated_at FROM carts WHERE user_id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			empty := domain.New(userID)
			return &empty, nil
		}
		return nil, fmt.Errorf("select cart: %w", err)
	}
	return cart, nil
}

// Modify creates the row if needed and holds its lock while fn runs so
// concurrent writes to the same cart serialize.
func (r *Repository) Modify(ctx context.Context, userID string, fn func(*domain.Cart) error) (*domain.Cart, error) {
	var updated *domain.Cart

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO carts (user_id, items, total_cents, updated_at)
			VALUES ($1, '[]'::jsonb, 0, NOW())
			ON CONFLICT (user_id) DO NOTHING
		`, userID)
		if err != nil {
			return fmt.Errorf("ensure cart: %w", err)
		}

		cart, err := scanCart(tx.QueryRow(ctx, `SELECT user_id, items, total_cents, updated_at FROM carts WHERE user_id = $1 FOR UPDATE`, userID))
		if err != nil {
			return fmt.Errorf("select cart: %w", err)
		}

		if err := fn(cart); err != nil {
			return err
		}

		items, err := json.Marshal(cart.Items)
		if err != nil {
			return fmt.Errorf("marshal cart items: %w", err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE carts SET items = $2, total_cents = $3, updated_at = $4
			WHERE user_id = $1
		`, userID, items, cart.TotalCents, cart.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update cart: %w", err)
		}

		cart.UserID = userID
		updated = cart
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *Repository) Clear(ctx context.Context, userID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM carts WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

func scanCart(row pgx.Row) (*domain.Cart, error) {
	var (
		cart  domain.Cart
		items []byte
	)
	if err := row.Scan(&cart.UserID, &items, &cart.TotalCents, &cart.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &cart.Items); err != nil {
		return nil, fmt.Errorf("unmarshal cart items: %w", err)
	}
	if cart.Items == nil {
		cart.Items = []domain.Item{}
	}
	return &cart, nil
}
