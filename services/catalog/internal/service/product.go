package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/pagination"
	"github.com/utafrali/storefront/services/catalog/internal/domain"
	"github.com/utafrali/storefront/services/catalog/internal/repository"
)

// EventPublisher emits catalog domain events.
type EventPublisher interface {
	PublishProductCreated(ctx context.Context, p *domain.Product) error
	PublishProductUpdated(ctx context.Context, p *domain.Product) error
	PublishProductDeleted(ctx context.Context, id string) error
	PublishProductReviewed(ctx context.Context, p *domain.Product, r domain.Review) error
}

// ProductService implements the catalog operations.
type ProductService struct {
	repo   repository.ProductRepository
	events EventPublisher
	logger *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewProductService creates a product service.
func NewProductService(repo repository.ProductRepository, events EventPublisher, logger *slog.Logger) *ProductService {
	return &ProductService{
		repo:   repo,
		events: events,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  newTimeOrderedID,
	}
}

// newTimeOrderedID returns a UUIDv7, so ids created in one batch sort in
// creation order.
func newTimeOrderedID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// ListResult is one page of the product listing.
type ListResult struct {
	Products []domain.Product `json:"products"`
	Page     int              `json:"page"`
	Pages    int              `json:"pages"`
}

// Author identifies the user writing a review.
type Author struct {
	UserID string
	Name   string
}

// ReviewInput is a validated review submission.
type ReviewInput struct {
	Rating  int
	Comment string
}

// ListProducts returns the requested page of products matching keyword. A
// page past the end yields no products, not an error.
func (s *ProductService) ListProducts(ctx context.Context, keyword string, page pagination.Params) (*ListResult, error) {
	products, total, err := s.repo.List(ctx, repository.ProductFilter{
		Keyword: keyword,
		Offset:  page.Offset,
		Limit:   page.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return &ListResult{
		Products: products,
		Page:     page.Page,
		Pages:    pagination.TotalPages(total, page.PageSize),
	}, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// CreateProduct stores a new product owned by creator.
func (s *ProductService) CreateProduct(ctx context.Context, creator string, f domain.ProductFields) (*domain.Product, error) {
	p := domain.NewProduct(s.newID(), creator, f, s.now())
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.publish(ctx, "product.created", p.ID, s.events.PublishProductCreated(ctx, p))
	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", p.ID),
		slog.String("name", p.Name),
	)
	return p, nil
}

// BulkInsert stores every product in one bulk write.
func (s *ProductService) BulkInsert(ctx context.Context, creator string, fields []domain.ProductFields) ([]*domain.Product, error) {
	if len(fields) == 0 {
		return nil, apperrors.InvalidInput("Invalid input, expected a non-empty array of products")
	}

	now := s.now()
	products := make([]*domain.Product, 0, len(fields))
	for _, f := range fields {
		products = append(products, domain.NewProduct(s.newID(), creator, f, now))
	}
	if err := s.repo.CreateMany(ctx, products); err != nil {
		return nil, fmt.Errorf("bulk insert products: %w", err)
	}

	for _, p := range products {
		s.publish(ctx, "product.created", p.ID, s.events.PublishProductCreated(ctx, p))
	}
	s.logger.InfoContext(ctx, "products bulk inserted", slog.Int("count", len(products)))
	return products, nil
}

// UpdateProduct replaces every admin-writable field. Reviews and the
// derived rating are kept.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, f domain.ProductFields) (*domain.Product, error) {
	p, err := s.repo.Mutate(ctx, id, func(p *domain.Product) error {
		p.Replace(f, s.now())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.publish(ctx, "product.updated", p.ID, s.events.PublishProductUpdated(ctx, p))
	s.logger.InfoContext(ctx, "product updated", slog.String("product_id", p.ID))
	return p, nil
}

func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	s.publish(ctx, "product.deleted", id, s.events.PublishProductDeleted(ctx, id))
	s.logger.InfoContext(ctx, "product deleted", slog.String("product_id", id))
	return nil
}

// AddReview appends the author's review and recomputes the product rating
// in one atomic write. A second review by the same author is rejected.
func (s *ProductService) AddReview(ctx context.Context, productID string, author Author, in ReviewInput) error {
	if in.Rating < domain.MinRating || in.Rating > domain.MaxRating {
		return apperrors.InvalidInput(fmt.Sprintf("rating must be between %d and %d", domain.MinRating, domain.MaxRating))
	}
	if author.UserID == "" {
		return apperrors.Unauthorized("Not authorized")
	}
	name := author.Name
	if name == "" {
		name = "Anonymous"
	}

	now := s.now()
	review := domain.Review{
		ID:        s.newID(),
		Name:      name,
		Rating:    in.Rating,
		Comment:   in.Comment,
		User:      author.UserID,
		CreatedAt: now,
	}
	p, err := s.repo.Mutate(ctx, productID, func(p *domain.Product) error {
		return p.AddReview(review, now)
	})
	if err != nil {
		return fmt.Errorf("add review: %w", err)
	}

	s.publish(ctx, "product.reviewed", p.ID, s.events.PublishProductReviewed(ctx, p, review))
	s.logger.InfoContext(ctx, "review added",
		slog.String("product_id", p.ID),
		slog.String("review_id", review.ID),
		slog.Int("rating", review.Rating),
		slog.Float64("new_rating", p.Rating),
	)
	return nil
}

func (s *ProductService) Stats(ctx context.Context) (*domain.Stats, error) {
	st, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("product stats: %w", err)
	}
	return st, nil
}

// publish logs a failed event publish. Events never fail the request.
func (s *ProductService) publish(ctx context.Context, event, productID string, err error) {
	if err == nil {
		return
	}
	s.logger.ErrorContext(ctx, "failed to publish "+event+" event",
		slog.String("product_id", productID),
		slog.String("error", err.Error()),
	)
}
