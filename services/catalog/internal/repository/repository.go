package repository

import (
	"context"

	"github.com/utafrali/storefront/services/catalog/internal/domain"
)

// ProductFilter selects one page of the listing.
type ProductFilter struct {
	// Keyword is matched literally and case-insensitively against the name.
	Keyword string
	Offset  int
	Limit   int
}

// MutateFunc changes a product in place. Returning an error aborts the write.
type MutateFunc func(p *domain.Product) error

// ProductRepository defines product persistence. Implementations order
// listings by creation time, then id.
type ProductRepository interface {
	// List returns the requested page and the total number of matches.
	List(ctx context.Context, filter ProductFilter) ([]domain.Product, int, error)

	GetByID(ctx context.Context, id string) (*domain.Product, error)

	Create(ctx context.Context, p *domain.Product) error

	// CreateMany inserts products with the store's bulk primitive.
	CreateMany(ctx context.Context, products []*domain.Product) error

	// Mutate applies fn to the stored product and persists the result
	// atomically with respect to other Mutate calls on the same id.
	Mutate(ctx context.Context, id string, fn MutateFunc) (*domain.Product, error)

	// Delete removes the product and its embedded reviews.
	Delete(ctx context.Context, id string) error

	Stats(ctx context.Context) (*domain.Stats, error)
}
