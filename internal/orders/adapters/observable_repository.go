package adapters

import (
	"context"
	"errors"
	"time"

	"github.com/dejobratic/storefront/internal/database"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/dejobratic/storefront/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type ObservableRepository struct {
	repo    ports.OrderRepository
	metrics *database.Metrics
}

func NewObservableRepository(repo ports.OrderRepository, metrics *database.Metrics) *ObservableRepository {
	return &ObservableRepository{
		repo:    repo,
		metrics: metrics,
	}
}

// observe runs fn inside a span and records the query duration. Expected
// sentinel outcomes are not treated as span errors.
func (r *ObservableRepository) observe(ctx context.Context, spanName, operation string, attrs []attribute.KeyValue, fn func(context.Context, trace.Span) error) error {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository."+spanName)
	defer span.End()

	telemetry.AddSpanAttributes(span, append(attrs, attribute.String("operation", operation))...)

	start := time.Now()
	err := fn(ctx, span)
	duration := time.Since(start).Seconds()

	expected := errors.Is(err, ports.ErrNotFound) || errors.Is(err, ports.ErrStaleState)
	var recorded error
	if !expected {
		recorded = err
	}
	r.metrics.RecordQuery(ctx, operation, duration, recorded)

	if err != nil {
		if expected {
			telemetry.AddSpanEvent(span, err.Error())
		} else {
			telemetry.RecordSpanError(span, err)
		}
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

func (r *ObservableRepository) Create(ctx context.Context, order domain.Order) error {
	return r.observe(ctx, "Create", "create_order",
		[]attribute.KeyValue{attribute.String("order.id", order.ID)},
		func(ctx context.Context, _ trace.Span) error {
			return r.repo.Create(ctx, order)
		})
}

func (r *ObservableRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var order *domain.Order
	err := r.observe(ctx, "GetByID", "get_order_by_id",
		[]attribute.KeyValue{attribute.String("order.id", id)},
		func(ctx context.Context, _ trace.Span) error {
			var err error
			order, err = r.repo.GetByID(ctx, id)
			return err
		})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *ObservableRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	var orders []domain.Order
	err := r.observe(ctx, "ListByUser", "list_orders_by_user",
		[]attribute.KeyValue{attribute.String("user.id", userID)},
		func(ctx context.Context, span trace.Span) error {
			var err error
			orders, err = r.repo.ListByUser(ctx, userID)
			telemetry.AddSpanAttributes(span, attribute.Int("result.count", len(orders)))
			return err
		})
	return orders, err
}

func (r *ObservableRepository) List(ctx context.Context, filter ports.ListFilter) (ports.ListResult, error) {
	attrs := []attribute.KeyValue{
		attribute.Int("page", filter.Page),
		attribute.Int("page_size", filter.PageSize),
	}
	if filter.Status != nil {
		attrs = append(attrs, attribute.String("filter.status", string(*filter.Status)))
	}

	var result ports.ListResult
	err := r.observe(ctx, "List", "list_orders", attrs,
		func(ctx context.Context, span trace.Span) error {
			var err error
			result, err = r.repo.List(ctx, filter)
			telemetry.AddSpanAttributes(span, attribute.Int("result.count", len(result.Orders)))
			return err
		})
	return result, err
}

func (r *ObservableRepository) ListPendingIntent(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Order, error) {
	var orders []domain.Order
	err := r.observe(ctx, "ListPendingIntent", "list_pending_intent_orders",
		[]attribute.KeyValue{attribute.Int("limit", limit)},
		func(ctx context.Context, span trace.Span) error {
			var err error
			orders, err = r.repo.ListPendingIntent(ctx, createdBefore, limit)
			telemetry.AddSpanAttributes(span, attribute.Int("result.count", len(orders)))
			return err
		})
	return orders, err
}

func (r *ObservableRepository) HasPaidOrderWithProduct(ctx context.Context, userID, productID string) (bool, error) {
	var found bool
	err := r.observe(ctx, "HasPaidOrderWithProduct", "check_purchase",
		[]attribute.KeyValue{attribute.String("user.id", userID), attribute.String("product.id", productID)},
		func(ctx context.Context, _ trace.Span) error {
			var err error
			found, err = r.repo.HasPaidOrderWithProduct(ctx, userID, productID)
			return err
		})
	return found, err
}

func (r *ObservableRepository) AttachIntent(ctx context.Context, id, gatewayOrderID string, at time.Time) error {
	return r.observe(ctx, "AttachIntent", "attach_intent",
		[]attribute.KeyValue{attribute.String("order.id", id), attribute.String("order.new_status", string(domain.StatusUnpaid))},
		func(ctx context.Context, _ trace.Span) error {
			return r.repo.AttachIntent(ctx, id, gatewayOrderID, at)
		})
}

func (r *ObservableRepository) MarkPaid(ctx context.Context, id string, result domain.PaymentResult, at time.Time) error {
	return r.observe(ctx, "MarkPaid", "mark_order_paid",
		[]attribute.KeyValue{attribute.String("order.id", id), attribute.String("order.new_status", string(domain.StatusPaid))},
		func(ctx context.Context, _ trace.Span) error {
			return r.repo.MarkPaid(ctx, id, result, at)
		})
}

func (r *ObservableRepository) MarkVoid(ctx context.Context, id string, at time.Time) error {
	return r.observe(ctx, "MarkVoid", "mark_order_void",
		[]attribute.KeyValue{attribute.String("order.id", id), attribute.String("order.new_status", string(domain.StatusVoid))},
		func(ctx context.Context, _ trace.Span) error {
			return r.repo.MarkVoid(ctx, id, at)
		})
}

func (r *ObservableRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	return r.observe(ctx, "MarkDelivered", "mark_order_delivered",
		[]attribute.KeyValue{attribute.String("order.id", id)},
		func(ctx context.Context, _ trace.Span) error {
			return r.repo.MarkDelivered(ctx, id, at)
		})
}
