package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/dejobratic/storefront/internal/apperror"
	"github.com/dejobratic/storefront/internal/auth"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

type ConfirmPaymentCommand struct {
	Principal      auth.Principal
	OrderID        string
	PaymentID      string
	GatewayOrderID string
	Signature      string
}

type ConfirmPaymentResult struct {
	Order *domain.Order
	// AlreadyPaid is set when the order was paid before this call.
	AlreadyPaid bool
}

type ConfirmPaymentCommandHandler struct {
	repo     ports.OrderRepository
	gateway  ports.PaymentGateway
	verifier ports.SignatureVerifier
	events   ports.EventBus
	logger   *slog.Logger
	timeout  time.Duration
	now      Clock
}

func NewConfirmPaymentCommandHandler(
	repo ports.OrderRepository,
	gateway ports.PaymentGateway,
	verifier ports.SignatureVerifier,
	events ports.EventBus,
	logger *slog.Logger,
	timeout time.Duration,
) *ConfirmPaymentCommandHandler {
	return &ConfirmPaymentCommandHandler{
		repo:     repo,
		gateway:  gateway,
		verifier: verifier,
		events:   events,
		logger:   logger,
		timeout:  timeout,
		now:      utcNow,
	}
}

// WithClock overrides the time source.
func (h *ConfirmPaymentCommandHandler) WithClock(now Clock) *ConfirmPaymentCommandHandler {
	h.now = now
	return h
}

// Handle moves an unpaid order to paid once the gateway reports the payment
// as captured and the callback signature checks out. Confirming an order that
// is already paid succeeds without contacting the gateway.
func (h *ConfirmPaymentCommandHandler) Handle(ctx context.Context, cmd ConfirmPaymentCommand) (ConfirmPaymentResult, error) {
	order, err := h.repo.GetByID(ctx, cmd.OrderID)
	if err != nil {
		return ConfirmPaymentResult{}, repoError("load order", err)
	}
	if !cmd.Principal.CanAccess(order.UserID) {
		return ConfirmPaymentResult{}, apperror.Forbidden("not allowed to pay for this order")
	}

	if strings.TrimSpace(cmd.PaymentID) == "" {
		return ConfirmPaymentResult{}, apperror.Validation("payment_id is required")
	}

	if order.Paid() {
		return ConfirmPaymentResult{Order: order, AlreadyPaid: true}, nil
	}
	if order.Status != domain.StatusUnpaid {
		return ConfirmPaymentResult{}, apperror.PaymentRejected("order is not awaiting payment")
	}

	payment, err := h.fetchPayment(ctx, cmd.PaymentID)
	if err != nil {
		return ConfirmPaymentResult{}, apperror.PaymentError("could not fetch payment from gateway", err)
	}
	if payment.Status != ports.PaymentCaptured {
		return ConfirmPaymentResult{}, apperror.PaymentRejected("payment not captured")
	}
	if payment.GatewayOrderID != "" && payment.GatewayOrderID != order.GatewayOrderID {
		return ConfirmPaymentResult{}, apperror.PaymentRejected("payment does not belong to this order")
	}

	if cmd.GatewayOrderID != order.GatewayOrderID ||
		!h.verifier.Verify(cmd.GatewayOrderID, cmd.PaymentID, cmd.Signature) {
		return ConfirmPaymentResult{}, apperror.SignatureInvalid()
	}

	// The payer is the caller; the gateway email only fills in when the
	// token carries none.
	email := cmd.Principal.Email
	if email == "" {
		email = payment.Email
	}

	paidAt := h.now()
	result := domain.PaymentResult{
		ID:           payment.ID,
		Status:       payment.Status,
		UpdateTime:   payment.CreatedAt.UTC().Format(time.RFC3339),
		EmailAddress: email,
	}

	if err := h.repo.MarkPaid(ctx, order.ID, result, paidAt); err != nil {
		if errors.Is(err, ports.ErrStaleState) {
			return h.afterLostRace(ctx, order.ID)
		}
		return ConfirmPaymentResult{}, repoError("mark order paid", err)
	}
	if err := order.MarkPaid(result, paidAt); err != nil {
		return ConfirmPaymentResult{}, apperror.Internal(err)
	}

	publish(ctx, h.events, h.logger, ports.EventOrderPaid, order, paidAt)

	return ConfirmPaymentResult{Order: order}, nil
}

func (h *ConfirmPaymentCommandHandler) fetchPayment(ctx context.Context, paymentID string) (ports.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	return h.gateway.FetchPayment(ctx, paymentID)
}

// afterLostRace re-reads the order after a concurrent writer changed it. A
// concurrent confirmation that already paid the order counts as success.
func (h *ConfirmPaymentCommandHandler) afterLostRace(ctx context.Context, orderID string) (ConfirmPaymentResult, error) {
	current, err := h.repo.GetByID(ctx, orderID)
	if err != nil {
		return ConfirmPaymentResult{}, repoError("reload order", err)
	}
	if current.Paid() {
		return ConfirmPaymentResult{Order: current, AlreadyPaid: true}, nil
	}
	return ConfirmPaymentResult{}, apperror.PaymentError("order changed during confirmation", ports.ErrStaleState)
}
