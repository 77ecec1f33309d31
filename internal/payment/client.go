package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dejobratic/storefront/internal/orders/ports"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ClientConfig configures the HTTP gateway client.
type ClientConfig struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	// Timeout bounds each HTTP exchange. Callers still pass their own deadline.
	Timeout   time.Duration
	Transport http.RoundTripper
}

// Client talks to a Razorpay-compatible REST API using basic auth.
type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
}

func NewClient(cfg ClientConfig) *Client {
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(transport),
		},
	}
}

// GatewayError is a non-2xx response from the gateway.
type GatewayError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway returned %d %s: %s", e.StatusCode, e.Code, e.Description)
}

type intentBody struct {
	ID        string            `json:"id"`
	Amount    int64             `json:"amount"`
	Currency  string            `json:"currency"`
	Receipt   string            `json:"receipt"`
	Status    string            `json:"status"`
	Notes     map[string]string `json:"notes"`
	CreatedAt int64             `json:"created_at"`
}

func (b intentBody) toIntent() ports.Intent {
	return ports.Intent{
		ID:          b.ID,
		AmountMinor: b.Amount,
		Currency:    b.Currency,
		Receipt:     b.Receipt,
		Status:      b.Status,
		Notes:       b.Notes,
		CreatedAt:   time.Unix(b.CreatedAt, 0).UTC(),
	}
}

type paymentBody struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	Email     string `json:"email"`
	CreatedAt int64  `json:"created_at"`
}

type errorEnvelope struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *Client) CreatePaymentIntent(ctx context.Context, req ports.IntentRequest) (ports.Intent, error) {
	payload := map[string]any{
		"amount":   req.AmountMinor,
		"currency": req.Currency,
		"receipt":  req.Receipt,
		"notes":    req.Notes,
	}

	var out intentBody
	if err := c.do(ctx, http.MethodPost, "/v1/orders", payload, &out); err != nil {
		return ports.Intent{}, fmt.Errorf("create payment intent: %w", err)
	}
	if out.ID == "" {
		return ports.Intent{}, fmt.Errorf("create payment intent: response has no id")
	}
	return out.toIntent(), nil
}

func (c *Client) FetchPayment(ctx context.Context, paymentID string) (ports.Payment, error) {
	var out paymentBody
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, &out); err != nil {
		return ports.Payment{}, fmt.Errorf("fetch payment: %w", err)
	}

	return ports.Payment{
		ID:             out.ID,
		GatewayOrderID: out.OrderID,
		AmountMinor:    out.Amount,
		Currency:       out.Currency,
		Status:         out.Status,
		Email:          out.Email,
		CreatedAt:      time.Unix(out.CreatedAt, 0).UTC(),
	}, nil
}

func (c *Client) FindIntentByReceipt(ctx context.Context, receipt string) (*ports.Intent, error) {
	var out struct {
		Items []intentBody `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/orders?receipt="+url.QueryEscape(receipt), nil, &out); err != nil {
		return nil, fmt.Errorf("find intent by receipt: %w", err)
	}

	for _, item := range out.Items {
		if item.Receipt == receipt {
			intent := item.toIntent()
			return &intent, nil
		}
	}
	return nil, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		gwErr := &GatewayError{StatusCode: resp.StatusCode}
		var env errorEnvelope
		if json.Unmarshal(raw, &env) == nil {
			gwErr.Code = env.Error.Code
			gwErr.Description = env.Error.Description
		}
		return gwErr
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
