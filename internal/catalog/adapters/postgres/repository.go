package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dejobratic/storefront/internal/catalog/domain"
	"github.com/dejobratic/storefront/internal/catalog/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const productColumns = `
	id, name, description, price_cents, category, stock, images,
	ratings, num_reviews, reviews, created_by, created_at, updated_at`

// searchFilter is shared by the count and page queries. Arguments:
// $1 keyword pattern, $2 category, $3 excluded id, $4 min price, $5 max price.
const searchFilter = `
	WHERE ($1::text = '' OR name ILIKE $1 ESCAPE '\' OR category ILIKE $1 ESCAPE '\')
	  AND ($2::text = '' OR lower(category) = lower($2))
	  AND ($3::text = '' OR id <> $3)
	  AND ($4::bigint IS NULL OR price_cents >= $4)
	  AND ($5::bigint IS NULL OR price_cents <= $5)`

var orderBy = map[ports.SortOrder]string{
	ports.SortNewest:    `created_at DESC, id ASC`,
	ports.SortPriceLow:  `price_cents ASC, created_at DESC, id ASC`,
	ports.SortPriceHigh: `price_cents DESC, created_at DESC, id ASC`,
	ports.SortRatings:   `ratings DESC, created_at DESC, id ASC`,
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, product domain.Product) error {
	images, reviews, err := marshalDocuments(product)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = r.pool.Exec(ctx, query,
		product.ID,
		product.Name,
		product.Description,
		product.PriceCents,
		product.Category,
		product.Stock,
		images,
		product.Ratings,
		product.NumReviews,
		reviews,
		product.CreatedBy,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	product, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select product: %w", err)
	}
	return product, nil
}

// Modify locks the row for the duration of fn so concurrent reviews of the
// same product serialize.
func (r *Repository) Modify(ctx context.Context, id string, fn func(*domain.Product) error) (*domain.Product, error) {
	var updated *domain.Product

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		product, err := scanProduct(tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ports.ErrNotFound
			}
			return fmt.Errorf("select product: %w", err)
		}

		if err := fn(product); err != nil {
			return err
		}

		images, reviews, err := marshalDocuments(*product)
		if err != nil {
			return err
		}

		query := `
			UPDATE products
			SET name = $2, description = $3, price_cents = $4, category = $5, stock = $6,
			    images = $7, ratings = $8, num_reviews = $9, reviews = $10, updated_at = $11
			WHERE id = $1
		`
		_, err = tx.Exec(ctx, query,
			id,
			product.Name,
			product.Description,
			product.PriceCents,
			product.Category,
			product.Stock,
			images,
			product.Ratings,
			product.NumReviews,
			reviews,
			product.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update product: %w", err)
		}

		product.ID = id
		updated = product
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (r *Repository) Search(ctx context.Context, q ports.SearchQuery) (ports.SearchResult, error) {
	q = q.Normalized()

	pattern := ""
	if q.Keyword != "" {
		pattern = "%" + escapeLike(q.Keyword) + "%"
	}
	args := []any{pattern, q.Category, q.ExcludeID, q.MinPriceCents, q.MaxPriceCents}

	var result ports.SearchResult
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`+searchFilter, args...).Scan(&result.Total); err != nil {
		return ports.SearchResult{}, fmt.Errorf("count products: %w", err)
	}

	query := `SELECT ` + productColumns + ` FROM products` + searchFilter + `
		ORDER BY ` + orderBy[q.Sort] + `
		LIMIT $6 OFFSET $7`

	rows, err := r.pool.Query(ctx, query, append(args, q.Limit, q.Offset())...)
	if err != nil {
		return ports.SearchResult{}, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	result.Products = []domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return ports.SearchResult{}, fmt.Errorf("scan product: %w", err)
		}
		result.Products = append(result.Products, *product)
	}
	if err := rows.Err(); err != nil {
		return ports.SearchResult{}, fmt.Errorf("iterate products: %w", err)
	}

	return result, nil
}

func marshalDocuments(p domain.Product) ([]byte, []byte, error) {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	reviews := p.Reviews
	if reviews == nil {
		reviews = []domain.Review{}
	}

	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal images: %w", err)
	}
	reviewsJSON, err := json.Marshal(reviews)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal reviews: %w", err)
	}
	return imagesJSON, reviewsJSON, nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		product domain.Product
		images  []byte
		reviews []byte
	)

	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.PriceCents,
		&product.Category,
		&product.Stock,
		&images,
		&product.Ratings,
		&product.NumReviews,
		&reviews,
		&product.CreatedBy,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(images, &product.Images); err != nil {
		return nil, fmt.Errorf("unmarshal images: %w", err)
	}
	if err := json.Unmarshal(reviews, &product.Reviews); err != nil {
		return nil, fmt.Errorf("unmarshal reviews: %w", err)
	}
	return &product, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
