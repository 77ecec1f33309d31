package ports

import (
	"context"
	"time"
)

// PaymentCaptured is the gateway status of a settled payment.
const PaymentCaptured = "captured"

type IntentRequest struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

// Intent is a gateway-side payment intent ("order" in the gateway's terms).
type Intent struct {
	ID          string
	AmountMinor int64
	Currency    string
	Receipt     string
	Status      string
	Notes       map[string]string
	CreatedAt   time.Time
}

type Payment struct {
	ID             string
	GatewayOrderID string
	AmountMinor    int64
	Currency       string
	Status         string
	Email          string
	CreatedAt      time.Time
}

// PaymentGateway is the external payment provider.
type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (Intent, error)
	FetchPayment(ctx context.Context, paymentID string) (Payment, error)
	// FindIntentByReceipt returns nil without error when no intent carries the receipt.
	FindIntentByReceipt(ctx context.Context, receipt string) (*Intent, error)
}

// SignatureVerifier checks the gateway callback signature.
type SignatureVerifier interface {
	Verify(gatewayOrderID, paymentID, signature string) bool
}
