package domain

import (
	"errors"
	"time"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrItemNotFound    = errors.New("item not found in cart")
)

// Item is a product snapshot taken when it was added. Name, price and image
// are not refreshed from the catalog afterwards.
type Item struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Image      string `json:"image"`
	Quantity   int    `json:"quantity"`
}

func (i Item) SubtotalCents() int64 {
	return i.PriceCents * int64(i.Quantity)
}

type Cart struct {
	UserID     string    `json:"user_id"`
	Items      []Item    `json:"items"`
	TotalCents int64     `json:"total_cents"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func New(userID string) Cart {
	return Cart{UserID: userID, Items: []Item{}}
}

// Add merges the item into an existing line for the same product or
// appends a new line.
func (c *Cart) Add(item Item) error {
	if item.Quantity < 1 {
		return ErrInvalidQuantity
	}
	defer c.recompute()

	for i := range c.Items {
		if c.Items[i].ProductID == item.ProductID {
			c.Items[i].Quantity += item.Quantity
			return nil
		}
	}
	c.Items = append(c.Items, item)
	return nil
}

func (c *Cart) SetQuantity(productID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity = quantity
			c.recompute()
			return nil
		}
	}
	return ErrItemNotFound
}

// Remove drops the product's line. Removing a product that is not in the
// cart is a no-op.
func (c *Cart) Remove(productID string) {
	kept := c.Items[:0]
	for _, item := range c.Items {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}
	c.Items = kept
	c.recompute()
}

func (c *Cart) Empty() {
	c.Items = []Item{}
	c.recompute()
}

func (c *Cart) recompute() {
	var total int64
	for _, item := range c.Items {
		total += item.SubtotalCents()
	}
	c.TotalCents = total
}
