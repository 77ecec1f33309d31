package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dejobratic/storefront/internal/apperror"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

const defaultReconcileBatch = 100

// ReconcileCommand sweeps orders stuck in pending_intent for longer than OlderThan.
type ReconcileCommand struct {
	OlderThan time.Duration
	Limit     int
}

type ReconcileSummary struct {
	Scanned  int `json:"scanned"`
	Attached int `json:"attached"`
	Voided   int `json:"voided"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

type ReconcileCommandHandler struct {
	repo    ports.OrderRepository
	gateway ports.PaymentGateway
	logger  *slog.Logger
	timeout time.Duration
	now     Clock
}

func NewReconcileCommandHandler(repo ports.OrderRepository, gateway ports.PaymentGateway, logger *slog.Logger, timeout time.Duration) *ReconcileCommandHandler {
	return &ReconcileCommandHandler{
		repo:    repo,
		gateway: gateway,
		logger:  logger,
		timeout: timeout,
		now:     utcNow,
	}
}

// WithClock overrides the time source.
func (h *ReconcileCommandHandler) WithClock(now Clock) *ReconcileCommandHandler {
	h.now = now
	return h
}

// Handle looks up each stale pending order at the gateway by receipt. An
// intent found for the order is attached; otherwise the order is voided.
// Per-order failures are counted and the sweep continues.
func (h *ReconcileCommandHandler) Handle(ctx context.Context, cmd ReconcileCommand) (ReconcileSummary, error) {
	if cmd.OlderThan <= 0 {
		return ReconcileSummary{}, apperror.Validation("grace period must be positive")
	}
	limit := cmd.Limit
	if limit <= 0 {
		limit = defaultReconcileBatch
	}

	pending, err := h.repo.ListPendingIntent(ctx, h.now().Add(-cmd.OlderThan), limit)
	if err != nil {
		return ReconcileSummary{}, apperror.Internal(fmt.Errorf("list pending orders: %w", err))
	}

	var summary ReconcileSummary
	for _, order := range pending {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Scanned++

		result, err := h.reconcileOne(ctx, order)
		switch {
		case errors.Is(err, ports.ErrStaleState):
			summary.Skipped++
		case err != nil:
			summary.Failed++
			h.logger.ErrorContext(ctx, "failed to reconcile order",
				"order_id", order.ID,
				"receipt_id", order.ReceiptID,
				"error", err,
			)
		case result == reconcileAttached:
			summary.Attached++
		default:
			summary.Voided++
		}
	}

	return summary, nil
}

type reconcileResult int

const (
	reconcileAttached reconcileResult = iota
	reconcileVoided
)

func (h *ReconcileCommandHandler) reconcileOne(ctx context.Context, order domain.Order) (reconcileResult, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, h.timeout)
	intent, err := h.gateway.FindIntentByReceipt(lookupCtx, order.ReceiptID)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("find intent by receipt: %w", err)
	}

	now := h.now()
	if intent != nil && belongsTo(intent, order) {
		if err := h.repo.AttachIntent(ctx, order.ID, intent.ID, now); err != nil {
			return 0, err
		}
		h.logger.InfoContext(ctx, "attached orphaned intent", "order_id", order.ID, "gateway_order_id", intent.ID)
		return reconcileAttached, nil
	}

	if err := h.repo.MarkVoid(ctx, order.ID, now); err != nil {
		return 0, err
	}
	h.logger.InfoContext(ctx, "voided order without intent", "order_id", order.ID)
	return reconcileVoided, nil
}

// belongsTo requires the intent to name the order. Receipts are only
// millisecond precise, so a receipt match alone is not enough.
func belongsTo(intent *ports.Intent, order domain.Order) bool {
	id, ok := intent.Notes["orderId"]
	return ok && id == order.ID
}
