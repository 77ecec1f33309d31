package payment

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dejobratic/storefront/internal/auth"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandboxCheckoutRoute(t *testing.T) {
	sb, signer := newSandbox(t)
	tokens, err := auth.NewTokens("jwt-secret", time.Hour)
	require.NoError(t, err)

	router := chi.NewRouter()
	NewSandboxCheckout(sb, tokens, slog.New(slog.NewTextHandler(io.Discard, nil))).Routes(router)

	intent, err := sb.CreatePaymentIntent(context.Background(), ports.IntentRequest{AmountMinor: 500, Currency: "INR"})
	require.NoError(t, err)

	raw, err := tokens.Issue(auth.Principal{UserID: "u-1", Email: "buyer@example.com", Role: auth.RoleUser})
	require.NoError(t, err)

	send := func(body, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/sandbox/checkout", strings.NewReader(body))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := send(`{"gateway_order_id":"`+intent.ID+`"}`, raw)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Checkout Checkout `json:"checkout"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, signer.Verify(resp.Checkout.GatewayOrderID, resp.Checkout.PaymentID, resp.Checkout.Signature))

	payment, err := sb.FetchPayment(context.Background(), resp.Checkout.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", payment.Email)

	assert.Equal(t, http.StatusNotFound, send(`{"gateway_order_id":"order_missing"}`, raw).Code)
	assert.Equal(t, http.StatusBadRequest, send(`{}`, raw).Code)
	assert.Equal(t, http.StatusUnauthorized, send(`{"gateway_order_id":"`+intent.ID+`"}`, "").Code)
}
