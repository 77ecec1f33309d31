package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dejobratic/storefront/internal/apperror"
	"github.com/dejobratic/storefront/internal/auth"
	"github.com/dejobratic/storefront/internal/httpio"
	"github.com/dejobratic/storefront/internal/orders/app"
	"github.com/dejobratic/storefront/internal/orders/app/commands"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/go-chi/chi/v5"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"
	maxIdempotencyKeyLen = 255
)

// Handler exposes HTTP endpoints for order operations.
type Handler struct {
	service  *app.Service
	verifier auth.Verifier
	logger   *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service *app.Service, verifier auth.Verifier, logger *slog.Logger) *Handler {
	return &Handler{service: service, verifier: verifier, logger: logger}
}

// Routes registers the order endpoints. Every route requires a logged in caller.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Use(auth.Authenticate(h.verifier, h.logger))

		r.Post("/", h.createOrder)
		r.Get("/mine", h.listMyOrders)
		r.Get("/{id}", h.getOrder)
		r.Put("/{id}/pay", h.confirmPayment)
		// The segment holds a product id on this route.
		r.Get("/{id}/check-purchase", h.checkPurchase)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(h.logger, auth.RoleAdmin))
			r.Get("/", h.listOrders)
			r.Put("/{id}/deliver", h.deliverOrder)
		})
	})
}

type orderItemRequest struct {
	Product  string  `json:"product" validate:"required"`
	Name     string  `json:"name" validate:"required"`
	Price    float64 `json:"price" validate:"gte=0"`
	Quantity int     `json:"quantity" validate:"required,min=1"`
	Image    string  `json:"image"`
}

type shippingAddressRequest struct {
	Address string `json:"address" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	Country string `json:"country" validate:"required"`
	PinCode string `json:"pin_code" validate:"required"`
	PhoneNo string `json:"phone_no" validate:"required"`
}

type createOrderRequest struct {
	OrderItems      []orderItemRequest     `json:"order_items" validate:"required,min=1,dive"`
	ShippingAddress shippingAddressRequest `json:"shipping_address" validate:"required"`
	PaymentMethod   string                 `json:"payment_method" validate:"required"`
	ItemsPrice      float64                `json:"items_price" validate:"gte=0"`
	TaxPrice        float64                `json:"tax_price" validate:"gte=0"`
	ShippingPrice   float64                `json:"shipping_price" validate:"gte=0"`
	TotalPrice      float64                `json:"total_price" validate:"gt=0"`
}

func (req createOrderRequest) toCommand(userID string) commands.CreateOrderCommand {
	items := make([]domain.Item, 0, len(req.OrderItems))
	for _, item := range req.OrderItems {
		items = append(items, domain.Item{
			ProductID:  item.Product,
			Name:       item.Name,
			PriceCents: domain.ToMinorUnits(item.Price),
			Quantity:   item.Quantity,
			Image:      item.Image,
		})
	}

	return commands.CreateOrderCommand{
		UserID: userID,
		Items:  items,
		ShippingAddress: domain.ShippingAddress{
			Address: req.ShippingAddress.Address,
			City:    req.ShippingAddress.City,
			State:   req.ShippingAddress.State,
			Country: req.ShippingAddress.Country,
			PinCode: req.ShippingAddress.PinCode,
			PhoneNo: req.ShippingAddress.PhoneNo,
		},
		PaymentMethod:      req.PaymentMethod,
		ItemsPriceCents:    domain.ToMinorUnits(req.ItemsPrice),
		TaxPriceCents:      domain.ToMinorUnits(req.TaxPrice),
		ShippingPriceCents: domain.ToMinorUnits(req.ShippingPrice),
		TotalPriceCents:    domain.ToMinorUnits(req.TotalPrice),
	}
}

type confirmPaymentRequest struct {
	PaymentID      string `json:"payment_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	Signature      string `json:"signature"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := h.principal(w, r)
	if principal == nil {
		return
	}

	idemKey := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
	if len(idemKey) > maxIdempotencyKeyLen {
		httpio.WriteError(w, r, h.logger, apperror.Validation("Idempotency-Key is too long"))
		return
	}
	if idemKey != "" {
		stored, err := h.service.GetIdempotentResponse(ctx, principal.UserID, idemKey)
		if err != nil {
			httpio.WriteError(w, r, h.logger, apperror.Internal(fmt.Errorf("read idempotency key: %w", err)))
			return
		}
		if stored != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set(replayedHeader, "true")
			w.WriteHeader(stored.StatusCode)
			_, _ = w.Write(stored.Body)
			return
		}
	}

	var payload createOrderRequest
	if err := httpio.Decode(r, &payload); err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	result, err := h.service.CreateOrder(ctx, payload.toCommand(principal.UserID))
	if err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	body, err := successBody(httpio.Envelope{
		"order":            result.Order,
		"gateway_order_id": result.GatewayOrderID,
	})
	if err != nil {
		httpio.WriteError(w, r, h.logger, apperror.Internal(err))
		return
	}

	if idemKey != "" {
		stored := ports.StoredResponse{
			StatusCode: http.StatusCreated,
			Body:       body,
			OrderID:    result.Order.ID,
		}
		if err := h.service.SaveIdempotentResponse(ctx, principal.UserID, idemKey, stored); err != nil {
			// The order exists; a failed save only loses replay for this key.
			h.logger.WarnContext(ctx, "failed to save idempotency key",
				"order_id", result.Order.ID,
				"error", err,
			)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}

func (h *Handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	principal := h.principal(w, r)
	if principal == nil {
		return
	}

	var payload confirmPaymentRequest
	if err := httpio.Decode(r, &payload); err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	order, err := h.service.ConfirmPayment(r.Context(), commands.ConfirmPaymentCommand{
		Principal:      *principal,
		OrderID:        chi.URLParam(r, "id"),
		PaymentID:      strings.TrimSpace(payload.PaymentID),
		GatewayOrderID: strings.TrimSpace(payload.GatewayOrderID),
		Signature:      strings.TrimSpace(payload.Signature),
	})
	if err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	httpio.WriteSuccess(w, http.StatusOK, httpio.Envelope{"order": order})
}

func (h *Handler) deliverOrder(w http.ResponseWriter, r *http.Request) {
	principal := h.principal(w, r)
	if principal == nil {
		return
	}

	order, err := h.service.DeliverOrder(r.Context(), *principal, chi.URLParam(r, "id"))
	if err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	httpio.WriteSuccess(w, http.StatusOK, httpio.Envelope{"order": order})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	principal := h.principal(w, r)
	if principal == nil {
		return
	}

	order, err := h.service.GetOrder(r.Context(), *principal, chi.URLParam(r, "id"))
	if err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	httpio.WriteSuccess(w, http.StatusOK, httpio.Envelope{"order": order})
}

func (h *Handler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	principal := h.principal(w, r)
	if principal == nil {
		return
	}

	orders, err := h.service.ListMyOrders(r.Context(), principal.UserID)
	if err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	httpio.WriteSuccess(w, http.StatusOK, httpio.Envelope{"orders": orders, "count": len(orders)})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	result, err := h.service.ListOrders(r.Context(), filter)
	if err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	filter = filter.Normalized()
	httpio.WriteSuccess(w, http.StatusOK, httpio.Envelope{
		"orders":             result.Orders,
		"total":              result.Total,
		"total_amount_cents": result.TotalAmountCents,
		"page":               filter.Page,
		"page_size":          filter.PageSize,
	})
}

func (h *Handler) checkPurchase(w http.ResponseWriter, r *http.Request) {
	principal := h.principal(w, r)
	if principal == nil {
		return
	}

	purchased, err := h.service.HasPurchased(r.Context(), principal.UserID, chi.URLParam(r, "id"))
	if err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	httpio.WriteSuccess(w, http.StatusOK, httpio.Envelope{"purchased": purchased})
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) *auth.Principal {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		httpio.WriteError(w, r, h.logger, apperror.Unauthorized("login first to access this resource"))
		return nil
	}
	return &principal
}

func parseListFilter(r *http.Request) (ports.ListFilter, error) {
	q := r.URL.Query()
	filter := ports.ListFilter{}

	if statusParam := q.Get("status"); statusParam != "" {
		status := domain.OrderStatus(statusParam)
		filter.Status = &status
	}

	for param, dst := range map[string]*int{"page": &filter.Page, "page_size": &filter.PageSize} {
		raw := q.Get(param)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return ports.ListFilter{}, apperror.Validation(param + " must be a positive integer")
		}
		*dst = n
	}

	return filter, nil
}

// successBody renders the same bytes WriteSuccess would, so the stored
// idempotent response replays exactly.
func successBody(body httpio.Envelope) ([]byte, error) {
	body["success"] = true
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return buf.Bytes(), nil
}
