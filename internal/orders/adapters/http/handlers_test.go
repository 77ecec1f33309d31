package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dejobratic/storefront/internal/auth"
	"github.com/dejobratic/storefront/internal/events"
	"github.com/dejobratic/storefront/internal/httpserver"
	idemmemory "github.com/dejobratic/storefront/internal/idempotency/memory"
	ordershttp "github.com/dejobratic/storefront/internal/orders/adapters/http"
	"github.com/dejobratic/storefront/internal/orders/adapters/memory"
	"github.com/dejobratic/storefront/internal/orders/app"
	"github.com/dejobratic/storefront/internal/orders/metrics"
	"github.com/dejobratic/storefront/internal/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

type testAPI struct {
	handler http.Handler
	tokens  *auth.Tokens
	sandbox *payment.Sandbox
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	m, err := metrics.NewMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	signer, err := payment.NewSigner("handler-test-secret")
	require.NoError(t, err)
	sandbox := payment.NewSandbox(signer)

	tokens, err := auth.NewTokens("jwt-test-secret", time.Hour)
	require.NoError(t, err)

	service := app.NewService(app.Dependencies{
		Repo:           memory.NewRepository(),
		Gateway:        sandbox,
		Verifier:       signer,
		Events:         events.NewLoggingBus(logger),
		Idempotency:    idemmemory.NewStore(),
		Logger:         logger,
		Metrics:        m,
		Currency:       "INR",
		GatewayTimeout: time.Second,
	})

	router := httpserver.NewRouter(httpserver.Options{Logger: logger}, ordershttp.NewHandler(service, tokens, logger))
	return &testAPI{handler: router, tokens: tokens, sandbox: sandbox}
}

func (a *testAPI) token(t *testing.T, userID string, role auth.Role) string {
	t.Helper()
	raw, err := a.tokens.Issue(auth.Principal{UserID: userID, Email: userID + "@example.com", Role: role})
	require.NoError(t, err)
	return raw
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any, headers ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec, decoded
}

func orderPayload() map[string]any {
	return map[string]any{
		"order_items": []map[string]any{
			{"product": "p-1", "name": "Desk lamp", "price": 199.99, "quantity": 1, "image": "https://img/p-1"},
		},
		"shipping_address": map[string]any{
			"address": "1 Main St", "city": "Pune", "state": "MH", "country": "IN", "pin_code": "411001", "phone_no": "9999999999",
		},
		"payment_method": "razorpay",
		"items_price":    199.99,
		"tax_price":      0,
		"shipping_price": 0,
		"total_price":    199.99,
	}
}

func tamper(sig string) string {
	b := []byte(sig)
	if b[0] == 'a' {
		b[0] = 'b'
	} else {
		b[0] = 'a'
	}
	return string(b)
}

func errorKind(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	kind, _ := errBody["kind"].(string)
	return kind
}

func TestOrderFlowOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	buyer := api.token(t, "u-1", auth.RoleUser)
	admin := api.token(t, "admin-1", auth.RoleAdmin)

	rec, body := api.do(t, http.MethodPost, "/orders", buyer, orderPayload())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["success"])

	order := body["order"].(map[string]any)
	orderID := order["id"].(string)
	gatewayOrderID := body["gateway_order_id"].(string)
	assert.Equal(t, float64(19999), order["total_price_cents"])
	assert.Equal(t, "unpaid", order["status"])
	assert.Equal(t, false, order["is_paid"])

	rec, body = api.do(t, http.MethodGet, "/orders/p-1/check-purchase", buyer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["purchased"])

	checkout, err := api.sandbox.Capture(gatewayOrderID, "u-1@example.com")
	require.NoError(t, err)

	rec, body = api.do(t, http.MethodPut, "/orders/"+orderID+"/pay", buyer, map[string]string{
		"payment_id":       checkout.PaymentID,
		"gateway_order_id": checkout.GatewayOrderID,
		"signature":        checkout.Signature,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	paid := body["order"].(map[string]any)
	assert.Equal(t, true, paid["is_paid"])
	assert.Equal(t, "paid", paid["status"])

	rec, body = api.do(t, http.MethodPut, "/orders/"+orderID+"/deliver", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["order"].(map[string]any)["is_delivered"])

	rec, body = api.do(t, http.MethodGet, "/orders/p-1/check-purchase", buyer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["purchased"])

	rec, body = api.do(t, http.MethodGet, "/orders/mine", buyer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["orders"], 1)

	rec, body = api.do(t, http.MethodGet, "/orders?status=paid", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(19999), body["total_amount_cents"])
	assert.Equal(t, float64(1), body["total"])

	rec, _ = api.do(t, http.MethodGet, "/orders/"+orderID, buyer, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateOrderRejectsInvalidPayloads(t *testing.T) {
	api := newTestAPI(t)
	buyer := api.token(t, "u-1", auth.RoleUser)

	tests := map[string]func(map[string]any){
		"empty items":    func(p map[string]any) { p["order_items"] = []map[string]any{} },
		"zero total":     func(p map[string]any) { p["total_price"] = 0 },
		"negative total": func(p map[string]any) { p["total_price"] = -5 },
		"no shipping":    func(p map[string]any) { delete(p, "shipping_address") },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			payload := orderPayload()
			mutate(payload)

			rec, body := api.do(t, http.MethodPost, "/orders", buyer, payload)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "validation", errorKind(body))
		})
	}

	assert.Equal(t, 0, api.sandbox.IntentCount())
}

func TestCreateOrderIdempotencyKeyReplays(t *testing.T) {
	api := newTestAPI(t)
	buyer := api.token(t, "u-1", auth.RoleUser)
	other := api.token(t, "u-2", auth.RoleUser)

	first, firstBody := api.do(t, http.MethodPost, "/orders", buyer, orderPayload(), "Idempotency-Key", "key-1")
	require.Equal(t, http.StatusCreated, first.Code)

	second, secondBody := api.do(t, http.MethodPost, "/orders", buyer, orderPayload(), "Idempotency-Key", "key-1")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, firstBody, secondBody)
	assert.Equal(t, 1, api.sandbox.IntentCount())

	third, thirdBody := api.do(t, http.MethodPost, "/orders", other, orderPayload(), "Idempotency-Key", "key-1")
	require.Equal(t, http.StatusCreated, third.Code)
	assert.Empty(t, third.Header().Get("Idempotent-Replayed"))
	assert.NotEqual(t, firstBody["order"], thirdBody["order"])
	assert.Equal(t, 2, api.sandbox.IntentCount())
}

func TestOrderAccessControl(t *testing.T) {
	api := newTestAPI(t)
	buyer := api.token(t, "u-1", auth.RoleUser)
	stranger := api.token(t, "u-2", auth.RoleUser)

	_, body := api.do(t, http.MethodPost, "/orders", buyer, orderPayload())
	orderID := body["order"].(map[string]any)["id"].(string)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		kind   string
	}{
		{"anonymous create", http.MethodPost, "/orders", "", orderPayload(), http.StatusUnauthorized, "unauthorized"},
		{"stranger reads order", http.MethodGet, "/orders/" + orderID, stranger, nil, http.StatusForbidden, "forbidden"},
		{"stranger pays order", http.MethodPut, "/orders/" + orderID + "/pay", stranger, map[string]string{"payment_id": "pay_1"}, http.StatusForbidden, "forbidden"},
		{"user delivers order", http.MethodPut, "/orders/" + orderID + "/deliver", buyer, nil, http.StatusForbidden, "forbidden"},
		{"user lists all orders", http.MethodGet, "/orders", buyer, nil, http.StatusForbidden, "forbidden"},
		{"unknown order", http.MethodGet, "/orders/missing", buyer, nil, http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := api.do(t, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.kind, errorKind(body))
			assert.Equal(t, false, body["success"])
		})
	}
}

func TestConfirmPaymentErrorsOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	buyer := api.token(t, "u-1", auth.RoleUser)

	_, body := api.do(t, http.MethodPost, "/orders", buyer, orderPayload())
	orderID := body["order"].(map[string]any)["id"].(string)
	gatewayOrderID := body["gateway_order_id"].(string)

	checkout, err := api.sandbox.Capture(gatewayOrderID, "u-1@example.com")
	require.NoError(t, err)

	rec, body := api.do(t, http.MethodPut, "/orders/"+orderID+"/pay", buyer, map[string]string{
		"payment_id":       checkout.PaymentID,
		"gateway_order_id": checkout.GatewayOrderID,
		"signature":        tamper(checkout.Signature),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "signature_invalid", errorKind(body))

	rec, body = api.do(t, http.MethodPut, "/orders/"+orderID+"/pay", buyer, map[string]string{
		"gateway_order_id": checkout.GatewayOrderID,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", errorKind(body))

	rec, body = api.do(t, http.MethodPut, "/orders/"+orderID+"/pay", buyer, map[string]string{
		"payment_id":       "pay_unknown",
		"gateway_order_id": checkout.GatewayOrderID,
		"signature":        checkout.Signature,
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "payment_error", errorKind(body))
}

func TestListOrdersRejectsBadPaging(t *testing.T) {
	api := newTestAPI(t)
	admin := api.token(t, "admin-1", auth.RoleAdmin)

	rec, body := api.do(t, http.MethodGet, "/orders?page=zero", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", errorKind(body))

	rec, body = api.do(t, http.MethodGet, "/orders?status=shipped", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", errorKind(body))
}
