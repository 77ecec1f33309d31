package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const orderColumns = `
	id, user_id, items, shipping_address, payment_method,
	items_price_cents, tax_price_cents, shipping_price_cents, total_price_cents,
	receipt_id, gateway_order_id, status, paid_at, payment_result,
	is_delivered, delivered_at, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, order domain.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("marshal order items: %w", err)
	}
	shipping, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}

	query := `
		INSERT INTO orders (
			id, user_id, items, shipping_address, payment_method,
			items_price_cents, tax_price_cents, shipping_price_cents, total_price_cents,
			receipt_id, status, is_delivered, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, FALSE, $12, $13)
	`

	_, err = r.pool.Exec(ctx, query,
		order.ID,
		order.UserID,
		items,
		shipping,
		order.PaymentMethod,
		order.ItemsPriceCents,
		order.TaxPriceCents,
		order.ShippingPriceCents,
		order.TotalPriceCents,
		order.ReceiptID,
		order.Status,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}

	return order, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	return r.queryOrders(ctx, query, userID)
}

func (r *Repository) List(ctx context.Context, filter ports.ListFilter) (ports.ListResult, error) {
	filter = filter.Normalized()

	var statusFilter *string
	if filter.Status != nil {
		s := string(*filter.Status)
		statusFilter = &s
	}

	var result ports.ListResult
	aggregate := `
		SELECT COUNT(*), COALESCE(SUM(total_price_cents), 0)
		FROM orders
		WHERE ($1::text IS NULL OR status = $1)
	`
	if err := r.pool.QueryRow(ctx, aggregate, statusFilter).Scan(&result.Total, &result.TotalAmountCents); err != nil {
		return ports.ListResult{}, fmt.Errorf("aggregate orders: %w", err)
	}

	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	orders, err := r.queryOrders(ctx, query, statusFilter, filter.PageSize, filter.Offset())
	if err != nil {
		return ports.ListResult{}, err
	}
	result.Orders = orders

	return result, nil
}

func (r *Repository) ListPendingIntent(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE status = 'pending_intent' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	return r.queryOrders(ctx, query, createdBefore, limit)
}

func (r *Repository) HasPaidOrderWithProduct(ctx context.Context, userID, productID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM orders
			WHERE user_id = $1
			  AND status = 'paid'
			  AND items @> jsonb_build_array(jsonb_build_object('product', $2::text))
		)
	`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, userID, productID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check purchase: %w", err)
	}
	return exists, nil
}

func (r *Repository) AttachIntent(ctx context.Context, id, gatewayOrderID string, at time.Time) error {
	query := `
		UPDATE orders
		SET gateway_order_id = $3, status = 'unpaid', updated_at = $4
		WHERE id = $1 AND status = $2
	`

	return r.compareAndSet(ctx, "attach intent", query, id, domain.StatusPendingIntent, gatewayOrderID, at)
}

func (r *Repository) MarkPaid(ctx context.Context, id string, result domain.PaymentResult, at time.Time) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal payment result: %w", err)
	}

	query := `
		UPDATE orders
		SET status = 'paid', paid_at = $4, payment_result = $3, updated_at = $4
		WHERE id = $1 AND status = $2
	`

	return r.compareAndSet(ctx, "mark paid", query, id, domain.StatusUnpaid, payload, at)
}

func (r *Repository) MarkVoid(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE orders
		SET status = 'void', updated_at = $3
		WHERE id = $1 AND status = $2
	`

	return r.compareAndSet(ctx, "mark void", query, id, domain.StatusPendingIntent, at)
}

func (r *Repository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE orders
		SET is_delivered = TRUE,
		    delivered_at = COALESCE(delivered_at, $2),
		    updated_at = CASE WHEN delivered_at IS NULL THEN $2 ELSE updated_at END
		WHERE id = $1 AND status <> 'void'
	`

	tag, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrStale(ctx, id)
	}
	return nil
}

// compareAndSet runs an UPDATE guarded by "status = $2".
func (r *Repository) compareAndSet(ctx context.Context, op, query, id string, from domain.OrderStatus, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, append([]any{id, from}, args...)...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrStale(ctx, id)
	}
	return nil
}

func (r *Repository) missingOrStale(ctx context.Context, id string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check order exists: %w", err)
	}
	if !exists {
		return ports.ErrNotFound
	}
	return ports.ErrStaleState
}

func (r *Repository) queryOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	return orders, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		order          domain.Order
		items          []byte
		shipping       []byte
		gatewayOrderID *string
		paymentResult  []byte
	)

	err := row.Scan(
		&order.ID,
		&order.UserID,
		&items,
		&shipping,
		&order.PaymentMethod,
		&order.ItemsPriceCents,
		&order.TaxPriceCents,
		&order.ShippingPriceCents,
		&order.TotalPriceCents,
		&order.ReceiptID,
		&gatewayOrderID,
		&order.Status,
		&order.PaidAt,
		&paymentResult,
		&order.IsDelivered,
		&order.DeliveredAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(shipping, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if gatewayOrderID != nil {
		order.GatewayOrderID = *gatewayOrderID
	}
	if len(paymentResult) > 0 {
		var pr domain.PaymentResult
		if err := json.Unmarshal(paymentResult, &pr); err != nil {
			return nil, fmt.Errorf("unmarshal payment result: %w", err)
		}
		order.PaymentResult = &pr
	}
	order.Normalize()

	return &order, nil
}
