package domain

import (
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Cart limits.
const (
	MinQuantity        = 1
	MaxQuantityPerItem = 100
	MaxItemsPerCart    = 50
)

var (
	ErrCartNotFound    = notFound("Cart not found")
	ErrItemNotFound    = notFound("Product not found in cart")
	ErrProductNotFound = notFound("Product not found")
	ErrCartFull        = apperrors.InvalidInput(fmt.Sprintf("cart must not contain more than %d items", MaxItemsPerCart))
)

func notFound(msg string) *apperrors.AppError {
	return &apperrors.AppError{
		Code:    "NOT_FOUND",
		Message: msg,
		Status:  http.StatusNotFound,
		Err:     apperrors.ErrNotFound,
	}
}

// Cart is the single cart owned by User. Items keep insertion order and hold
// at most one line per product.
type Cart struct {
	ID        string     `json:"_id"`
	User      string     `json:"user"`
	Items     []CartItem `json:"items"`
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// CartItem references a catalog product by id.
type CartItem struct {
	ProductID string `json:"product"`
	Quantity  int    `json:"quantity"`
}

// NewCart returns an empty cart for user.
func NewCart(id, user string, now time.Time) *Cart {
	return &Cart{
		ID:        id,
		User:      user,
		Items:     []CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ValidateQuantity checks q against the per-line bounds.
func ValidateQuantity(q int) error {
	if q < MinQuantity || q > MaxQuantityPerItem {
		return apperrors.InvalidInput(fmt.Sprintf("quantity must be between %d and %d", MinQuantity, MaxQuantityPerItem))
	}
	return nil
}

// FindItemIndex returns the index of productID's line, or -1.
func (c *Cart) FindItemIndex(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// SetItem puts productID in the cart with exactly quantity. An existing
// line's quantity is replaced, not incremented.
func (c *Cart) SetItem(productID string, quantity int, now time.Time) error {
	if err := ValidateQuantity(quantity); err != nil {
		return err
	}
	if i := c.FindItemIndex(productID); i >= 0 {
		c.Items[i].Quantity = quantity
	} else {
		if len(c.Items) >= MaxItemsPerCart {
			return ErrCartFull
		}
		c.Items = append(c.Items, CartItem{ProductID: productID, Quantity: quantity})
	}
	c.UpdatedAt = now
	return nil
}

// UpdateQuantity changes the quantity of an existing line.
func (c *Cart) UpdateQuantity(productID string, quantity int, now time.Time) error {
	if err := ValidateQuantity(quantity); err != nil {
		return err
	}
	i := c.FindItemIndex(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	c.Items[i].Quantity = quantity
	c.UpdatedAt = now
	return nil
}

// RemoveItem drops productID's line.
func (c *Cart) RemoveItem(productID string, now time.Time) error {
	if !c.removeProduct(productID) {
		return ErrItemNotFound
	}
	c.UpdatedAt = now
	return nil
}

// Clear empties the cart. The cart itself remains.
func (c *Cart) Clear(now time.Time) {
	c.Items = []CartItem{}
	c.UpdatedAt = now
}

// Prune removes every line whose product is in gone and reports whether
// anything changed.
func (c *Cart) Prune(gone map[string]bool, now time.Time) bool {
	kept := c.Items[:0]
	for _, it := range c.Items {
		if !gone[it.ProductID] {
			kept = append(kept, it)
		}
	}
	changed := len(kept) != len(c.Items)
	c.Items = kept
	if changed {
		c.UpdatedAt = now
	}
	return changed
}

func (c *Cart) removeProduct(productID string) bool {
	i := c.FindItemIndex(productID)
	if i < 0 {
		return false
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return true
}

// ProductIDs returns the referenced product ids in line order.
func (c *Cart) ProductIDs() []string {
	ids := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		ids = append(ids, it.ProductID)
	}
	return ids
}

// ItemCount returns the total number of units in the cart.
func (c *Cart) ItemCount() int {
	var n int
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}
