package http

import (
	"log/slog"
	"net/http"

	"github.com/dejobratic/storefront/internal/apperror"
	"github.com/dejobratic/storefront/internal/auth"
	"github.com/dejobratic/storefront/internal/cart/app"
	"github.com/dejobratic/storefront/internal/httpio"
	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service  *app.Service
	verifier auth.Verifier
	logger   *slog.Logger
}

func NewHandler(service *app.Service, verifier auth.Verifier, logger *slog.Logger) *Handler {
	return &Handler{service: service, verifier: verifier, logger: logger}
}

func (h *Handler) Routes(r chi.Router) {
	r.Route("/cart", func(r chi.Router) {
		r.Use(auth.Authenticate(h.verifier, h.logger))

		r.Get("/", h.getCart)
		r.Post("/", h.addItem)
		r.Put("/", h.updateQuantity)
		r.Delete("/", h.clearCart)
		r.Delete("/{productId}", h.removeItem)
	})
}

type addItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  *int   `json:"quantity" validate:"omitempty,min=1"`
}

type updateQuantityRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	cart, err := h.service.Get(r.Context(), principal.UserID)
	if err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	httpio.WriteSuccess(w, http.StatusOK, httpio.Envelope{"cart": cart})
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req addItemRequest
	if err := httpio.Decode(r, &req); err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	cart, err := h.service.Add(r.Context(), principal.UserID, req.ProductID, quantity)
	if err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	httpio.WriteSuccess(w, http.StatusOK, httpio.Envelope{"cart": cart})
}

func (h *Handler) updateQuantity(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req updateQuantityRequest
	if err := httpio.Decode(r, &req); err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	cart, err := h.service.UpdateQuantity(r.Context(), principal.UserID, req.ProductID, req.Quantity)
	if err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	httpio.WriteSuccess(w, http.StatusOK, httpio.Envelope{"cart": cart})
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	cart, err := h.service.Remove(r.Context(), principal.UserID, chi.URLParam(r, "productId"))
	if err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	httpio.WriteSuccess(w, http.StatusOK, httpio.Envelope{"cart": cart})
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	if err := h.service.Clear(r.Context(), principal.UserID); err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	httpio.WriteSuccess(w, http.StatusOK, httpio.Envelope{"message": "cart cleared"})
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		httpio.WriteError(w, r, h.logger, apperror.Unauthorized("login first to access this resource"))
	}
	return principal, ok
}
