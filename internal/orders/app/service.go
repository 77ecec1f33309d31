package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/dejobratic/storefront/internal/apperror"
	"github.com/dejobratic/storefront/internal/auth"
	"github.com/dejobratic/storefront/internal/orders/app/commands"
	"github.com/dejobratic/storefront/internal/orders/app/queries"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/metrics"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"go.opentelemetry.io/otel/attribute"
)

// Dependencies are the ports the order service is built on.
type Dependencies struct {
	Repo        ports.OrderRepository
	Gateway     ports.PaymentGateway
	Verifier    ports.SignatureVerifier
	Events      ports.EventBus
	Idempotency ports.IdempotencyStore
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Currency    string
	// GatewayTimeout bounds every single gateway call.
	GatewayTimeout time.Duration
	// Clock is optional and defaults to UTC wall time.
	Clock commands.Clock
}

// Service bundles the order use cases exposed over HTTP and to the reconciler.
type Service struct {
	idemStore ports.IdempotencyStore

	createOrder    commands.Handler[commands.CreateOrderCommand, commands.CreateOrderResult]
	confirmPayment commands.Handler[commands.ConfirmPaymentCommand, commands.ConfirmPaymentResult]
	deliverOrder   commands.Handler[commands.DeliverOrderCommand, *domain.Order]
	reconcile      commands.Handler[commands.ReconcileCommand, commands.ReconcileSummary]

	getOrder      *queries.GetOrderQueryHandler
	listMyOrders  *queries.ListMyOrdersQueryHandler
	listOrders    *queries.ListOrdersQueryHandler
	checkPurchase *queries.CheckPurchaseQueryHandler
}

// NewService wires the command handlers behind observable decorators.
func NewService(deps Dependencies) *Service {
	logger := deps.Logger

	create := commands.NewCreateOrderCommandHandler(deps.Repo, deps.Gateway, deps.Events, logger, deps.Currency, deps.GatewayTimeout)
	confirm := commands.NewConfirmPaymentCommandHandler(deps.Repo, deps.Gateway, deps.Verifier, deps.Events, logger, deps.GatewayTimeout)
	deliver := commands.NewDeliverOrderCommandHandler(deps.Repo, deps.Events, logger)
	reconcile := commands.NewReconcileCommandHandler(deps.Repo, deps.Gateway, logger, deps.GatewayTimeout)
	if deps.Clock != nil {
		create.WithClock(deps.Clock)
		confirm.WithClock(deps.Clock)
		deliver.WithClock(deps.Clock)
		reconcile.WithClock(deps.Clock)
	}

	return &Service{
		idemStore: deps.Idempotency,

		createOrder:    observeCreate(create, logger, deps.Metrics),
		confirmPayment: observeConfirm(confirm, logger, deps.Metrics),
		deliverOrder: commands.NewObservableCommandHandler[commands.DeliverOrderCommand, *domain.Order](
			"DeliverOrder", deliver, logger, deps.Metrics,
			func(cmd commands.DeliverOrderCommand) []attribute.KeyValue {
				return []attribute.KeyValue{attribute.String("order.id", cmd.OrderID)}
			},
		),
		reconcile: observeReconcile(reconcile, logger, deps.Metrics),

		getOrder:      queries.NewGetOrderQueryHandler(deps.Repo),
		listMyOrders:  queries.NewListMyOrdersQueryHandler(deps.Repo),
		listOrders:    queries.NewListOrdersQueryHandler(deps.Repo),
		checkPurchase: queries.NewCheckPurchaseQueryHandler(deps.Repo),
	}
}

func observeCreate(h *commands.CreateOrderCommandHandler, logger *slog.Logger, m *metrics.Metrics) commands.Handler[commands.CreateOrderCommand, commands.CreateOrderResult] {
	return commands.NewObservableCommandHandler[commands.CreateOrderCommand, commands.CreateOrderResult](
		"CreateOrder", h, logger, m,
		func(cmd commands.CreateOrderCommand) []attribute.KeyValue {
			return []attribute.KeyValue{
				attribute.String("user.id", cmd.UserID),
				attribute.Int("order.items", len(cmd.Items)),
				attribute.Int64("order.total_cents", cmd.TotalPriceCents),
			}
		},
	).OnDone(func(ctx context.Context, m *metrics.Metrics, _ commands.CreateOrderResult, elapsed time.Duration, err error) {
		m.RecordOrderCreated(ctx, err == nil)
		if err == nil {
			m.RecordOrderCreationDuration(ctx, elapsed.Seconds())
		}
	})
}

func observeConfirm(h *commands.ConfirmPaymentCommandHandler, logger *slog.Logger, m *metrics.Metrics) commands.Handler[commands.ConfirmPaymentCommand, commands.ConfirmPaymentResult] {
	return commands.NewObservableCommandHandler[commands.ConfirmPaymentCommand, commands.ConfirmPaymentResult](
		"ConfirmPayment", h, logger, m,
		func(cmd commands.ConfirmPaymentCommand) []attribute.KeyValue {
			return []attribute.KeyValue{
				attribute.String("order.id", cmd.OrderID),
				attribute.String("payment.id", cmd.PaymentID),
			}
		},
	).OnDone(func(ctx context.Context, m *metrics.Metrics, result commands.ConfirmPaymentResult, _ time.Duration, err error) {
		m.RecordPaymentConfirmation(ctx, confirmationOutcome(result, err))
	})
}

func confirmationOutcome(result commands.ConfirmPaymentResult, err error) string {
	switch {
	case err == nil && result.AlreadyPaid:
		return metrics.OutcomeAlreadyPaid
	case err == nil:
		return metrics.OutcomePaid
	}

	switch apperror.KindOf(err) {
	case apperror.KindSignatureInvalid:
		return metrics.OutcomeSignatureInvalid
	case apperror.KindPaymentRejected:
		return metrics.OutcomeRejected
	case apperror.KindPaymentError:
		return metrics.OutcomeGatewayError
	default:
		return metrics.OutcomeFailed
	}
}

func observeReconcile(h *commands.ReconcileCommandHandler, logger *slog.Logger, m *metrics.Metrics) commands.Handler[commands.ReconcileCommand, commands.ReconcileSummary] {
	return commands.NewObservableCommandHandler[commands.ReconcileCommand, commands.ReconcileSummary](
		"Reconcile", h, logger, m,
		func(cmd commands.ReconcileCommand) []attribute.KeyValue {
			return []attribute.KeyValue{
				attribute.String("reconcile.older_than", cmd.OlderThan.String()),
				attribute.Int("reconcile.limit", cmd.Limit),
			}
		},
	).OnDone(func(ctx context.Context, m *metrics.Metrics, summary commands.ReconcileSummary, _ time.Duration, _ error) {
		m.RecordReconciled(ctx, "attached", summary.Attached)
		m.RecordReconciled(ctx, "voided", summary.Voided)
		m.RecordReconciled(ctx, "skipped", summary.Skipped)
		m.RecordReconciled(ctx, "failed", summary.Failed)
	})
}

// CreateOrder persists the order and obtains its payment intent.
func (s *Service) CreateOrder(ctx context.Context, cmd commands.CreateOrderCommand) (commands.CreateOrderResult, error) {
	return s.createOrder.Handle(ctx, cmd)
}

// ConfirmPayment verifies a gateway callback and marks the order paid.
func (s *Service) ConfirmPayment(ctx context.Context, cmd commands.ConfirmPaymentCommand) (*domain.Order, error) {
	result, err := s.confirmPayment.Handle(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return result.Order, nil
}

func (s *Service) DeliverOrder(ctx context.Context, principal auth.Principal, orderID string) (*domain.Order, error) {
	return s.deliverOrder.Handle(ctx, commands.DeliverOrderCommand{Principal: principal, OrderID: orderID})
}

func (s *Service) GetOrder(ctx context.Context, principal auth.Principal, orderID string) (*domain.Order, error) {
	return s.getOrder.Handle(ctx, queries.GetOrderQuery{Principal: principal, OrderID: orderID})
}

func (s *Service) ListMyOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.listMyOrders.Handle(ctx, queries.ListMyOrdersQuery{UserID: userID})
}

func (s *Service) ListOrders(ctx context.Context, filter ports.ListFilter) (ports.ListResult, error) {
	return s.listOrders.Handle(ctx, queries.ListOrdersQuery{Filter: filter})
}

// HasPurchased reports whether the user has a paid order containing the product.
func (s *Service) HasPurchased(ctx context.Context, userID, productID string) (bool, error) {
	return s.checkPurchase.Handle(ctx, queries.CheckPurchaseQuery{UserID: userID, ProductID: productID})
}

// Reconcile sweeps orders that never got a payment intent.
func (s *Service) Reconcile(ctx context.Context, olderThan time.Duration, limit int) (commands.ReconcileSummary, error) {
	return s.reconcile.Handle(ctx, commands.ReconcileCommand{OlderThan: olderThan, Limit: limit})
}

// SaveIdempotentResponse stores the response for a caller scoped key.
func (s *Service) SaveIdempotentResponse(ctx context.Context, scope, key string, response ports.StoredResponse) error {
	return s.idemStore.Save(ctx, scope, key, response)
}

// GetIdempotentResponse returns nil when the key has not been used.
func (s *Service) GetIdempotentResponse(ctx context.Context, scope, key string) (*ports.StoredResponse, error) {
	return s.idemStore.Get(ctx, scope, key)
}
