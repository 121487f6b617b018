package repository

import (
	"context"

	"github.com/utafrali/storefront/services/cart/internal/domain"
)

// MutateFunc changes a cart in place. Returning an error aborts the write.
type MutateFunc func(c *domain.Cart) error

// CartRepository persists one cart per user.
type CartRepository interface {
	// Get returns the user's cart or an apperrors.ErrNotFound error.
	Get(ctx context.Context, userID string) (*domain.Cart, error)

	// Mutate applies fn to the user's cart as one optimistic read-modify-write.
	// A missing cart is created with newCart, or reported as
	// domain.ErrCartNotFound when newCart is nil.
	Mutate(ctx context.Context, userID string, newCart func() *domain.Cart, fn MutateFunc) (*domain.Cart, error)

	// Each calls fn for every stored cart. Carts changed concurrently may be
	// seen in either state.
	Each(ctx context.Context, fn func(c *domain.Cart) error) error

	// PruneProducts removes the given products from every cart and returns
	// how many carts changed.
	PruneProducts(ctx context.Context, productIDs []string) (int, error)
}
