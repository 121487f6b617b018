package storeclient

import (
	"time"

	"github.com/shopspring/decimal"
)

// Review is an embedded product review.
type Review struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	User      string    `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
}

// Product is the catalog document as served by the catalog service.
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
}

// ProductInput is the create and update payload. Update replaces every field.
type ProductInput struct {
	Name           string            `json:"name"`
	Images         []string          `json:"images"`
	Brand          string            `json:"brand"`
	Category       string            `json:"category"`
	Description    string            `json:"description"`
	Price          decimal.Decimal   `json:"price"`
	CountInStock   int               `json:"countInStock"`
	Specifications map[string]string `json:"specifications"`
	Features       []string          `json:"features,omitempty"`
}

// ProductPage is one page of the product listing.
type ProductPage struct {
	Products []Product `json:"products"`
	Page     int       `json:"page"`
	Pages    int       `json:"pages"`
}

// BulkInsertResult is returned by BulkInsertProducts.
type BulkInsertResult struct {
	Message string    `json:"message"`
	Data    []Product `json:"data"`
}

// ReviewInput is the add-review payload.
type ReviewInput struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// Stats is the admin catalog summary.
type Stats struct {
	TotalProducts int     `json:"totalProducts"`
	TotalReviews  int     `json:"totalReviews"`
	AverageRating float64 `json:"averageRating"`
	OutOfStock    int     `json:"outOfStock"`
}

// CartProduct is the product summary embedded in a cart line.
type CartProduct struct {
	ID    string          `json:"_id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// CartItem is one expanded cart line.
type CartItem struct {
	Product  CartProduct `json:"product"`
	Quantity int         `json:"quantity"`
}

// Cart is the caller's cart. A user without a cart gets an empty Items list.
type Cart struct {
	ID        string     `json:"_id,omitempty"`
	User      string     `json:"user,omitempty"`
	Items     []CartItem `json:"items"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

type cartMutation struct {
	Message string `json:"message"`
	Cart    Cart   `json:"cart"`
}

type messageBody struct {
	Message string `json:"message"`
}
