package commands

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dejobratic/storefront/internal/orders/adapters/memory"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/dejobratic/storefront/internal/payment"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingBus struct {
	mu     sync.Mutex
	events []ports.OrderEvent
	err    error
}

func (b *recordingBus) Publish(_ context.Context, event ports.OrderEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBus) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.Type)
	}
	return out
}

// stubGateway lets a test override one gateway call at a time.
type stubGateway struct {
	createIntent func(ctx context.Context, req ports.IntentRequest) (ports.Intent, error)
	fetchPayment func(ctx context.Context, id string) (ports.Payment, error)
	findIntent   func(ctx context.Context, receipt string) (*ports.Intent, error)

	mu    sync.Mutex
	calls int
}

func (g *stubGateway) CreatePaymentIntent(ctx context.Context, req ports.IntentRequest) (ports.Intent, error) {
	g.count()
	return g.createIntent(ctx, req)
}

func (g *stubGateway) FetchPayment(ctx context.Context, id string) (ports.Payment, error) {
	g.count()
	return g.fetchPayment(ctx, id)
}

func (g *stubGateway) FindIntentByReceipt(ctx context.Context, receipt string) (*ports.Intent, error) {
	g.count()
	return g.findIntent(ctx, receipt)
}

func (g *stubGateway) count() {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
}

func (g *stubGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fixture struct {
	repo    *memory.Repository
	sandbox *payment.Sandbox
	signer  *payment.Signer
	bus     *recordingBus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	signer, err := payment.NewSigner("test-signing-secret")
	require.NoError(t, err)

	return &fixture{
		repo:    memory.NewRepository(),
		sandbox: payment.NewSandbox(signer),
		signer:  signer,
		bus:     &recordingBus{},
	}
}

func (f *fixture) createHandler() *CreateOrderCommandHandler {
	return NewCreateOrderCommandHandler(f.repo, f.sandbox, f.bus, discardLogger(), "INR", time.Second).WithClock(fixedClock)
}

func (f *fixture) confirmHandler() *ConfirmPaymentCommandHandler {
	return NewConfirmPaymentCommandHandler(f.repo, f.sandbox, f.signer, f.bus, discardLogger(), time.Second).WithClock(fixedClock)
}

func (f *fixture) deliverHandler() *DeliverOrderCommandHandler {
	return NewDeliverOrderCommandHandler(f.repo, f.bus, discardLogger()).WithClock(fixedClock)
}

// placeOrder creates an unpaid order through the create handler.
func (f *fixture) placeOrder(t *testing.T, userID string) CreateOrderResult {
	t.Helper()
	result, err := f.createHandler().Handle(context.Background(), validCreateCommand(userID))
	require.NoError(t, err)
	return result
}
