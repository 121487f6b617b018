package domain

import (
	"time"

	"github.com/shopspring/decimal"

	_ "github.com/utafrali/storefront/pkg/money"
)

// Product is a catalog document. Reviews are embedded; Rating and NumReviews
// are derived from them and never set directly.
type Product struct {
	ID             string            `json:"_id"`
	User           string            `json:"user,omitempty"`
	Name           string            `json:"name"`
	Images         []string          `json:"images"`
	Brand          string            `json:"brand"`
	Category       string            `json:"category"`
	Description    string            `json:"description"`
	Price          decimal.Decimal   `json:"price"`
	CountInStock   int               `json:"countInStock"`
	Specifications map[string]string `json:"specifications"`
	Features       []string          `json:"features"`
	Rating         float64           `json:"rating"`
	NumReviews     int               `json:"numReviews"`
	Reviews        []Review          `json:"reviews"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`

	// Version is the optimistic-lock counter used by document stores.
	Version int64 `json:"-"`
}

// ProductFields are the attributes an admin writes on create and update.
type ProductFields struct {
	Name           string
	Images         []string
	Brand          string
	Category       string
	Description    string
	Price          decimal.Decimal
	CountInStock   int
	Specifications map[string]string
	Features       []string
}

// NewProduct builds a product with no reviews.
func NewProduct(id, creator string, f ProductFields, now time.Time) *Product {
	p := &Product{
		ID:        id,
		User:      creator,
		Reviews:   []Review{},
		CreatedAt: now,
	}
	p.Replace(f, now)
	return p
}

// Replace overwrites every admin-writable field. Reviews, the derived
// aggregates, the creator and the creation time are kept.
func (p *Product) Replace(f ProductFields, now time.Time) {
	p.Name = f.Name
	p.Images = append([]string(nil), f.Images...)
	p.Brand = f.Brand
	p.Category = f.Category
	p.Description = f.Description
	p.Price = f.Price
	p.CountInStock = f.CountInStock
	p.Specifications = make(map[string]string, len(f.Specifications))
	for k, v := range f.Specifications {
		p.Specifications[k] = v
	}
	p.Features = append([]string{}, f.Features...)
	p.UpdatedAt = now
}

// Normalize fills nil collections so documents always serialize as arrays
// and objects.
func (p *Product) Normalize() {
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.Specifications == nil {
		p.Specifications = map[string]string{}
	}
	if p.Features == nil {
		p.Features = []string{}
	}
	if p.Reviews == nil {
		p.Reviews = []Review{}
	}
}

// Stats summarizes the catalog for the admin view.
type Stats struct {
	TotalProducts int     `json:"totalProducts"`
	TotalReviews  int     `json:"totalReviews"`
	AverageRating float64 `json:"averageRating"`
	OutOfStock    int     `json:"outOfStock"`
}
