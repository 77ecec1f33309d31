package payment

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dejobratic/storefront/internal/apperror"
	"github.com/dejobratic/storefront/internal/auth"
	"github.com/dejobratic/storefront/internal/httpio"
	"github.com/go-chi/chi/v5"
)

// SandboxCheckout stands in for the hosted checkout page when the sandbox
// gateway is active. It settles a payment and returns the values the client
// would receive from the real checkout.
type SandboxCheckout struct {
	sandbox  *Sandbox
	verifier auth.Verifier
	logger   *slog.Logger
}

func NewSandboxCheckout(sandbox *Sandbox, verifier auth.Verifier, logger *slog.Logger) *SandboxCheckout {
	return &SandboxCheckout{sandbox: sandbox, verifier: verifier, logger: logger}
}

func (c *SandboxCheckout) Routes(r chi.Router) {
	r.With(auth.Authenticate(c.verifier, c.logger)).Post("/sandbox/checkout", c.checkout)
}

type checkoutRequest struct {
	GatewayOrderID string `json:"gateway_order_id" validate:"required"`
	Email          string `json:"email" validate:"omitempty,email"`
	// Decline leaves the payment authorized but not captured.
	Decline bool `json:"decline"`
}

func (c *SandboxCheckout) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := httpio.Decode(r, &req); err != nil {
		httpio.WriteError(w, r, c.logger, err)
		return
	}

	if req.Email == "" {
		if p, ok := auth.PrincipalFrom(r.Context()); ok {
			req.Email = p.Email
		}
	}

	settle := c.sandbox.Capture
	if req.Decline {
		settle = c.sandbox.Authorize
	}

	result, err := settle(req.GatewayOrderID, req.Email)
	if err != nil {
		if errors.Is(err, ErrUnknownIntent) {
			httpio.WriteError(w, r, c.logger, apperror.NotFound("payment intent not found"))
			return
		}
		httpio.WriteError(w, r, c.logger, apperror.Internal(err))
		return
	}

	httpio.WriteSuccess(w, http.StatusOK, httpio.Envelope{"checkout": result})
}
