package payment

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/dejobratic/storefront/internal/orders/ports"
)

var (
	ErrUnknownIntent  = errors.New("unknown payment intent")
	ErrUnknownPayment = errors.New("unknown payment")
)

// Sandbox is an in-process gateway for local runs and tests. Payments are
// created with Capture or Authorize, standing in for the hosted checkout.
type Sandbox struct {
	signer *Signer
	now    func() time.Time

	mu       sync.RWMutex
	intents  map[string]ports.Intent
	payments map[string]ports.Payment
}

func NewSandbox(signer *Signer) *Sandbox {
	return &Sandbox{
		signer:   signer,
		now:      func() time.Time { return time.Now().UTC() },
		intents:  make(map[string]ports.Intent),
		payments: make(map[string]ports.Payment),
	}
}

func (s *Sandbox) CreatePaymentIntent(ctx context.Context, req ports.IntentRequest) (ports.Intent, error) {
	if err := ctx.Err(); err != nil {
		return ports.Intent{}, err
	}
	if req.AmountMinor <= 0 {
		return ports.Intent{}, &GatewayError{StatusCode: 400, Code: "BAD_REQUEST_ERROR", Description: "amount must be positive"}
	}

	intent := ports.Intent{
		ID:          "order_" + randomID(),
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Receipt:     req.Receipt,
		Status:      "created",
		Notes:       maps.Clone(req.Notes),
		CreatedAt:   s.now(),
	}

	s.mu.Lock()
	s.intents[intent.ID] = intent
	s.mu.Unlock()

	return intent, nil
}

func (s *Sandbox) FetchPayment(ctx context.Context, paymentID string) (ports.Payment, error) {
	if err := ctx.Err(); err != nil {
		return ports.Payment{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	payment, ok := s.payments[paymentID]
	if !ok {
		return ports.Payment{}, fmt.Errorf("%w: %s", ErrUnknownPayment, paymentID)
	}
	return payment, nil
}

func (s *Sandbox) FindIntentByReceipt(ctx context.Context, receipt string) (*ports.Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, intent := range s.intents {
		if intent.Receipt == receipt {
			found := intent
			return &found, nil
		}
	}
	return nil, nil
}

// Checkout is what the hosted checkout hands back to the client.
type Checkout struct {
	PaymentID      string `json:"payment_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	Signature      string `json:"signature"`
}

// Capture settles a payment against the intent and returns the signed callback values.
func (s *Sandbox) Capture(gatewayOrderID, email string) (Checkout, error) {
	return s.pay(gatewayOrderID, email, ports.PaymentCaptured)
}

// Authorize records a payment that has not been captured.
func (s *Sandbox) Authorize(gatewayOrderID, email string) (Checkout, error) {
	return s.pay(gatewayOrderID, email, "authorized")
}

func (s *Sandbox) pay(gatewayOrderID, email, status string) (Checkout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[gatewayOrderID]
	if !ok {
		return Checkout{}, fmt.Errorf("%w: %s", ErrUnknownIntent, gatewayOrderID)
	}

	payment := ports.Payment{
		ID:             "pay_" + randomID(),
		GatewayOrderID: intent.ID,
		AmountMinor:    intent.AmountMinor,
		Currency:       intent.Currency,
		Status:         status,
		Email:          email,
		CreatedAt:      s.now(),
	}
	s.payments[payment.ID] = payment

	return Checkout{
		PaymentID:      payment.ID,
		GatewayOrderID: intent.ID,
		Signature:      s.signer.Sign(intent.ID, payment.ID),
	}, nil
}

// IntentCount reports how many intents were created.
func (s *Sandbox) IntentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.intents)
}

func randomID() string {
	buf := make([]byte, 7)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
