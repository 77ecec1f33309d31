package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dejobratic/storefront/internal/apperror"
	"github.com/dejobratic/storefront/internal/cart/domain"
	"github.com/dejobratic/storefront/internal/cart/ports"
	"github.com/dejobratic/storefront/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Service manages each user's shopping cart.
type Service struct {
	repo     ports.CartRepository
	products ports.ProductLookup
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo ports.CartRepository, products ports.ProductLookup, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		products: products,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("load cart: %w", err))
	}
	return cart, nil
}

// Add puts quantity units of the product in the cart, snapshotting its
// current name, price and primary image on first add.
func (s *Service) Add(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	ctx, span := telemetry.StartSpan(ctx, "cart.Add")
	defer span.End()
	telemetry.AddSpanAttributes(span,
		attribute.String("user.id", userID),
		attribute.String("product.id", productID),
		attribute.Int("quantity", quantity),
	)

	if quantity < 1 {
		return nil, apperror.Validation(domain.ErrInvalidQuantity.Error())
	}

	product, err := s.products.Lookup(ctx, productID)
	if err != nil {
		if errors.Is(err, ports.ErrProductNotFound) {
			return nil, apperror.Wrap(apperror.KindNotFound, "product not found", err)
		}
		telemetry.RecordSpanError(span, err)
		return nil, apperror.Internal(fmt.Errorf("lookup product: %w", err))
	}

	cart, err := s.modify(ctx, userID, func(c *domain.Cart) error {
		return c.Add(domain.Item{
			ProductID:  product.ID,
			Name:       product.Name,
			PriceCents: product.PriceCents,
			Image:      product.Image,
			Quantity:   quantity,
		})
	})
	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	s.logger.DebugContext(ctx, "cart item added", "user_id", userID, "product_id", productID, "quantity", quantity)
	return cart, nil
}

func (s *Service) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	return s.modify(ctx, userID, func(c *domain.Cart) error {
		return c.SetQuantity(productID, quantity)
	})
}

func (s *Service) Remove(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	return s.modify(ctx, userID, func(c *domain.Cart) error {
		c.Remove(productID)
		return nil
	})
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.repo.Clear(ctx, userID); err != nil {
		return apperror.Internal(fmt.Errorf("clear cart: %w", err))
	}
	s.logger.DebugContext(ctx, "cart cleared", "user_id", userID)
	return nil
}

func (s *Service) modify(ctx context.Context, userID string, fn func(*domain.Cart) error) (*domain.Cart, error) {
	cart, err := s.repo.Modify(ctx, userID, func(c *domain.Cart) error {
		if err := fn(c); err != nil {
			return err
		}
		c.UpdatedAt = s.now()
		return nil
	})
	switch {
	case err == nil:
		return cart, nil
	case errors.Is(err, domain.ErrInvalidQuantity):
		return nil, apperror.Wrap(apperror.KindValidation, err.Error(), err)
	case errors.Is(err, domain.ErrItemNotFound):
		return nil, apperror.Wrap(apperror.KindNotFound, err.Error(), err)
	default:
		return nil, apperror.Internal(fmt.Errorf("save cart: %w", err))
	}
}
