package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dejobratic/storefront/internal/apperror"
	"github.com/dejobratic/storefront/internal/auth"
	"github.com/dejobratic/storefront/internal/catalog/domain"
	"github.com/dejobratic/storefront/internal/catalog/ports"
	"github.com/dejobratic/storefront/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// ProductInput carries the editable product fields. Nil fields are left
// unchanged on update and are required on create.
type ProductInput struct {
	Name        *string
	Description *string
	PriceCents  *int64
	Category    *string
	Stock       *int
	Images      []string
}

type ReviewInput struct {
	Rating  int
	Comment string
}

// Page is one page of search results with the paging metadata clients render.
type Page struct {
	Products   []domain.Product
	Total      int
	PageSize   int
	TotalPages int
	Page       int
}

// Service implements catalog browsing, administration and reviews.
type Service struct {
	repo      ports.ProductRepository
	purchases ports.PurchaseChecker
	users     ports.UserDirectory
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

func NewService(repo ports.ProductRepository, purchases ports.PurchaseChecker, users ports.UserDirectory, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		purchases: purchases,
		users:     users,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Search returns the requested page. A page past the last non-empty page is NotFound.
func (s *Service) Search(ctx context.Context, q ports.SearchQuery) (Page, error) {
	q = q.Normalized()

	result, err := s.repo.Search(ctx, q)
	if err != nil {
		return Page{}, apperror.Internal(fmt.Errorf("search products: %w", err))
	}

	totalPages := (result.Total + q.Limit - 1) / q.Limit
	if result.Total > 0 && q.Page > totalPages {
		return Page{}, apperror.NotFound("this page does not exist")
	}

	return Page{
		Products:   result.Products,
		Total:      result.Total,
		PageSize:   q.Limit,
		TotalPages: totalPages,
		Page:       q.Page,
	}, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, repoError("load product", err)
	}
	return product, nil
}

func (s *Service) Create(ctx context.Context, actor auth.Principal, in ProductInput) (*domain.Product, error) {
	if in.Name == nil || in.Description == nil || in.PriceCents == nil || in.Category == nil {
		return nil, apperror.Validation("name, description, price and category are required")
	}

	now := s.now()
	product := domain.Product{
		ID:        s.newID(),
		Stock:     1,
		Reviews:   []domain.Review{},
		CreatedBy: actor.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	in.applyTo(&product)
	if err := product.Validate(); err != nil {
		return nil, apperror.Wrap(apperror.KindValidation, err.Error(), err)
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, apperror.Internal(fmt.Errorf("create product: %w", err))
	}

	s.logger.InfoContext(ctx, "product created", "product_id", product.ID, "created_by", actor.UserID)
	return &product, nil
}

func (s *Service) Update(ctx context.Context, id string, in ProductInput) (*domain.Product, error) {
	product, err := s.repo.Modify(ctx, id, func(p *domain.Product) error {
		in.applyTo(p)
		if err := p.Validate(); err != nil {
			return apperror.Wrap(apperror.KindValidation, err.Error(), err)
		}
		p.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, repoError("update product", err)
	}
	return product, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return repoError("delete product", err)
	}
	s.logger.InfoContext(ctx, "product deleted", "product_id", id)
	return nil
}

// AddReview records the caller's review. Only buyers of the product may
// review it, once each.
func (s *Service) AddReview(ctx context.Context, actor auth.Principal, productID string, in ReviewInput) (*domain.Review, error) {
	ctx, span := telemetry.StartSpan(ctx, "catalog.AddReview")
	defer span.End()
	telemetry.AddSpanAttributes(span,
		attribute.String("product.id", productID),
		attribute.String("user.id", actor.UserID),
	)

	if in.Rating < domain.MinRating || in.Rating > domain.MaxRating {
		return nil, apperror.Validation(domain.ErrInvalidRating.Error())
	}

	if _, err := s.repo.GetByID(ctx, productID); err != nil {
		return nil, repoError("load product", err)
	}

	purchased, err := s.purchases.HasPurchased(ctx, actor.UserID, productID)
	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, apperror.Internal(fmt.Errorf("check purchase: %w", err))
	}
	if !purchased {
		return nil, apperror.Forbidden("only customers who bought this product can review it")
	}

	name, err := s.users.DisplayName(ctx, actor.UserID)
	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, apperror.Internal(fmt.Errorf("resolve reviewer: %w", err))
	}

	review := domain.Review{
		UserID:    actor.UserID,
		Name:      name,
		Rating:    in.Rating,
		Comment:   strings.TrimSpace(in.Comment),
		CreatedAt: s.now(),
	}
	_, err = s.repo.Modify(ctx, productID, func(p *domain.Product) error {
		return p.AddReview(review)
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyReviewed) {
			return nil, apperror.Validation("you have already reviewed this product")
		}
		telemetry.RecordSpanError(span, err)
		return nil, repoError("save review", err)
	}

	s.logger.InfoContext(ctx, "review added", "product_id", productID, "user_id", actor.UserID, "rating", in.Rating)
	return &review, nil
}

func (in ProductInput) applyTo(p *domain.Product) {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.PriceCents != nil {
		p.PriceCents = *in.PriceCents
	}
	if in.Category != nil {
		p.Category = strings.TrimSpace(*in.Category)
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.Images != nil {
		p.Images = in.Images
	}
}

func repoError(op string, err error) error {
	var appErr *apperror.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, ports.ErrNotFound):
		return apperror.Wrap(apperror.KindNotFound, "product not found", err)
	default:
		return apperror.Internal(fmt.Errorf("%s: %w", op, err))
	}
}
