package payment

import (
	"context"
	"testing"

	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSandbox(t *testing.T) (*Sandbox, *Signer) {
	t.Helper()
	signer, err := NewSigner("sandbox-secret")
	require.NoError(t, err)
	return NewSandbox(signer), signer
}

func TestSandboxCaptureFlow(t *testing.T) {
	sb, signer := newSandbox(t)
	ctx := context.Background()

	intent, err := sb.CreatePaymentIntent(ctx, ports.IntentRequest{
		AmountMinor: 19999,
		Currency:    "INR",
		Receipt:     "order_rcptid_1",
		Notes:       map[string]string{"userId": "u-1"},
	})
	require.NoError(t, err)
	assert.Contains(t, intent.ID, "order_")
	assert.Equal(t, int64(19999), intent.AmountMinor)

	checkout, err := sb.Capture(intent.ID, "buyer@example.com")
	require.NoError(t, err)
	assert.True(t, signer.Verify(checkout.GatewayOrderID, checkout.PaymentID, checkout.Signature))

	payment, err := sb.FetchPayment(ctx, checkout.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, ports.PaymentCaptured, payment.Status)
	assert.Equal(t, intent.ID, payment.GatewayOrderID)
	assert.Equal(t, "buyer@example.com", payment.Email)
}

func TestSandboxLookups(t *testing.T) {
	sb, _ := newSandbox(t)
	ctx := context.Background()

	_, err := sb.FetchPayment(ctx, "pay_missing")
	assert.ErrorIs(t, err, ErrUnknownPayment)

	_, err = sb.Capture("order_missing", "x@y.z")
	assert.ErrorIs(t, err, ErrUnknownIntent)

	missing, err := sb.FindIntentByReceipt(ctx, "order_rcptid_none")
	require.NoError(t, err)
	assert.Nil(t, missing)

	intent, err := sb.CreatePaymentIntent(ctx, ports.IntentRequest{AmountMinor: 100, Currency: "INR", Receipt: "order_rcptid_2"})
	require.NoError(t, err)

	found, err := sb.FindIntentByReceipt(ctx, "order_rcptid_2")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, intent.ID, found.ID)
}

func TestSandboxHonorsContext(t *testing.T) {
	sb, _ := newSandbox(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sb.CreatePaymentIntent(ctx, ports.IntentRequest{AmountMinor: 100})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, sb.IntentCount())
}

func TestSandboxAuthorizeIsNotCaptured(t *testing.T) {
	sb, _ := newSandbox(t)
	ctx := context.Background()

	intent, err := sb.CreatePaymentIntent(ctx, ports.IntentRequest{AmountMinor: 100, Currency: "INR"})
	require.NoError(t, err)

	checkout, err := sb.Authorize(intent.ID, "x@y.z")
	require.NoError(t, err)

	payment, err := sb.FetchPayment(ctx, checkout.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, "authorized", payment.Status)
}
