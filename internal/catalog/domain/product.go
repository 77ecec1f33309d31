package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	MinRating = 1
	MaxRating = 5
)

var (
	ErrInvalidProduct  = errors.New("invalid product")
	ErrNoImages        = errors.New("product needs at least one image")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrAlreadyReviewed = errors.New("product already reviewed")
)

type Review struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// Product is a catalog entry priced in minor currency units.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"price_cents"`
	Category    string    `json:"category"`
	Stock       int       `json:"stock"`
	Images      []string  `json:"images"`
	Ratings     float64   `json:"ratings"`
	NumReviews  int       `json:"num_reviews"`
	Reviews     []Review  `json:"reviews"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if strings.TrimSpace(p.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidProduct)
	}
	if strings.TrimSpace(p.Category) == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidProduct)
	}
	if p.PriceCents < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}
	if p.Stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", ErrInvalidProduct)
	}
	if len(p.Images) == 0 {
		return ErrNoImages
	}
	for i, img := range p.Images {
		if strings.TrimSpace(img) == "" {
			return fmt.Errorf("%w: image %d is empty", ErrInvalidProduct, i)
		}
	}
	return nil
}

// PrimaryImage is the image shown in carts and listings.
func (p Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

func (p Product) ReviewedBy(userID string) bool {
	for _, r := range p.Reviews {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// AddReview appends a review and recomputes the rating aggregates. A user
// may review a product once.
func (p *Product) AddReview(review Review) error {
	if review.Rating < MinRating || review.Rating > MaxRating {
		return ErrInvalidRating
	}
	if p.ReviewedBy(review.UserID) {
		return ErrAlreadyReviewed
	}

	p.Reviews = append(p.Reviews, review)
	p.recomputeRatings()
	p.UpdatedAt = review.CreatedAt
	return nil
}

func (p *Product) recomputeRatings() {
	p.NumReviews = len(p.Reviews)
	if p.NumReviews == 0 {
		p.Ratings = 0
		return
	}
	sum := 0
	for _, r := range p.Reviews {
		sum += r.Rating
	}
	p.Ratings = float64(sum) / float64(p.NumReviews)
}

// ToMinorUnits converts a decimal price to minor units, rounding half away from zero.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
