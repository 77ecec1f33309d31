package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dejobratic/storefront/internal/apperror"
	"github.com/dejobratic/storefront/internal/auth"
	"github.com/dejobratic/storefront/internal/catalog/app"
	"github.com/dejobratic/storefront/internal/catalog/domain"
	"github.com/dejobratic/storefront/internal/catalog/ports"
	"github.com/dejobratic/storefront/internal/httpio"
	"github.com/go-chi/chi/v5"
)

// Handler exposes the public catalog and its admin endpoints.
type Handler struct {
	service  *app.Service
	verifier auth.Verifier
	logger   *slog.Logger
}

func NewHandler(service *app.Service, verifier auth.Verifier, logger *slog.Logger) *Handler {
	return &Handler{service: service, verifier: verifier, logger: logger}
}

func (h *Handler) Routes(r chi.Router) {
	authenticate := auth.Authenticate(h.verifier, h.logger)

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.searchProducts)
		r.Get("/{id}", h.getProduct)
		r.With(authenticate).Post("/{id}/reviews", h.addReview)
	})

	r.Route("/admin/products", func(r chi.Router) {
		r.Use(authenticate)
		r.Use(auth.RequireRole(h.logger, auth.RoleAdmin))

		r.Get("/", h.searchProducts)
		r.Post("/", h.createProduct)
		r.Put("/{id}", h.updateProduct)
		r.Delete("/{id}", h.deleteProduct)
	})
}

type createProductRequest struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Price       *float64 `json:"price" validate:"required,gte=0"`
	Category    string   `json:"category" validate:"required"`
	Stock       *int     `json:"stock" validate:"omitempty,gte=0"`
	Images      []string `json:"images" validate:"required,min=1,dive,required"`
}

func (req createProductRequest) toInput() app.ProductInput {
	cents := domain.ToMinorUnits(*req.Price)
	return app.ProductInput{
		Name:        &req.Name,
		Description: &req.Description,
		PriceCents:  &cents,
		Category:    &req.Category,
		Stock:       req.Stock,
		Images:      req.Images,
	}
}

type updateProductRequest struct {
	Name        *string   `json:"name" validate:"omitempty,min=1"`
	Description *string   `json:"description" validate:"omitempty,min=1"`
	Price       *float64  `json:"price" validate:"omitempty,gte=0"`
	Category    *string   `json:"category" validate:"omitempty,min=1"`
	Stock       *int      `json:"stock" validate:"omitempty,gte=0"`
	Images      *[]string `json:"images" validate:"omitempty,min=1,dive,required"`
}

func (req updateProductRequest) toInput() app.ProductInput {
	in := app.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Stock:       req.Stock,
	}
	if req.Price != nil {
		cents := domain.ToMinorUnits(*req.Price)
		in.PriceCents = &cents
	}
	if req.Images != nil {
		in.Images = *req.Images
	}
	return in
}

type reviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

func (h *Handler) searchProducts(w http.ResponseWriter, r *http.Request) {
	q, err := parseSearchQuery(r)
	if err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	page, err := h.service.Search(r.Context(), q)
	if err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	httpio.WriteSuccess(w, http.StatusOK, httpio.Envelope{
		"products":        page.Products,
		"product_count":   page.Total,
		"result_per_page": page.PageSize,
		"total_pages":     page.TotalPages,
		"current_page":    page.Page,
	})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	httpio.WriteSuccess(w, http.StatusOK, httpio.Envelope{"product": product})
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		httpio.WriteError(w, r, h.logger, apperror.Unauthorized("login first to access this resource"))
		return
	}

	var req createProductRequest
	if err := httpio.Decode(r, &req); err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	product, err := h.service.Create(r.Context(), principal, req.toInput())
	if err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	httpio.WriteSuccess(w, http.StatusCreated, httpio.Envelope{"product": product})
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req updateProductRequest
	if err := httpio.Decode(r, &req); err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	product, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	httpio.WriteSuccess(w, http.StatusOK, httpio.Envelope{"product": product})
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	httpio.WriteSuccess(w, http.StatusOK, httpio.Envelope{"message": "product deleted"})
}

func (h *Handler) addReview(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		httpio.WriteError(w, r, h.logger, apperror.Unauthorized("login first to access this resource"))
		return
	}

	var req reviewRequest
	if err := httpio.Decode(r, &req); err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	review, err := h.service.AddReview(r.Context(), principal, chi.URLParam(r, "id"), app.ReviewInput{
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		httpio.WriteError(w, r, h.logger, err)
		return
	}

	httpio.WriteSuccess(w, http.StatusCreated, httpio.Envelope{"review": review})
}

func parseSearchQuery(r *http.Request) (ports.SearchQuery, error) {
	values := r.URL.Query()
	q := ports.SearchQuery{
		Keyword:   strings.TrimSpace(values.Get("keyword")),
		Category:  strings.TrimSpace(values.Get("category")),
		ExcludeID: strings.TrimSpace(values.Get("not_id")),
	}

	if sort := values.Get("sort"); sort != "" {
		q.Sort = ports.SortOrder(sort)
		if !q.Sort.Valid() {
			return ports.SearchQuery{}, apperror.Validation("sort must be one of [newest price-low price-high ratings]")
		}
	}

	for param, dst := range map[string]*int{"page": &q.Page, "limit": &q.Limit} {
		raw := values.Get(param)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return ports.SearchQuery{}, apperror.Validation(param + " must be a positive integer")
		}
		*dst = n
	}

	for param, dst := range map[string]**int64{"min_price": &q.MinPriceCents, "max_price": &q.MaxPriceCents} {
		raw := values.Get(param)
		if raw == "" {
			continue
		}
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil || price < 0 {
			return ports.SearchQuery{}, apperror.Validation(param + " must be a non-negative number")
		}
		cents := domain.ToMinorUnits(price)
		*dst = &cents
	}

	return q, nil
}
