package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/services/catalog/internal/domain"
)

// Product topics.
var (
	TopicProductCreated  = pkgkafka.Topic("product", "created")
	TopicProductUpdated  = pkgkafka.Topic("product", "updated")
	TopicProductDeleted  = pkgkafka.Topic("product", "deleted")
	TopicProductReviewed = pkgkafka.Topic("product", "reviewed")
)

const (
	AggregateTypeProduct = "product"
	SourceCatalogService = "catalog-service"
)

// ProductData is the payload of product.created and product.updated.
type ProductData struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Brand        string          `json:"brand"`
	Category     string          `json:"category"`
	Price        decimal.Decimal `json:"price"`
	CountInStock int             `json:"countInStock"`
}

// ProductDeletedData is the payload of product.deleted.
type ProductDeletedData struct {
	ID string `json:"id"`
}

// ProductReviewedData is the payload of product.reviewed.
type ProductReviewedData struct {
	ID         string  `json:"id"`
	ReviewID   string  `json:"reviewId"`
	UserID     string  `json:"userId"`
	Rating     int     `json:"rating"`
	NewRating  float64 `json:"newRating"`
	NumReviews int     `json:"numReviews"`
}

// publisher is the part of pkgkafka.Producer used here.
type publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes catalog domain events.
type Producer struct {
	kafka  publisher
	logger *slog.Logger
}

// NewProducer creates an event producer for the catalog service.
func NewProducer(kafka publisher, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

func productData(p *domain.Product) ProductData {
	return ProductData{
		ID:           p.ID,
		Name:         p.Name,
		Brand:        p.Brand,
		Category:     p.Category,
		Price:        p.Price,
		CountInStock: p.CountInStock,
	}
}

func (p *Producer) publish(ctx context.Context, topic, productID string, data any) error {
	evt, err := pkgkafka.NewEvent(topic, productID, AggregateTypeProduct, SourceCatalogService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}
	if err := p.kafka.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("product_id", productID),
		slog.String("event_id", evt.EventID),
	)
	return nil
}

func (p *Producer) PublishProductCreated(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductCreated, product.ID, productData(product))
}

func (p *Producer) PublishProductUpdated(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductUpdated, product.ID, productData(product))
}

func (p *Producer) PublishProductDeleted(ctx context.Context, id string) error {
	return p.publish(ctx, TopicProductDeleted, id, ProductDeletedData{ID: id})
}

func (p *Producer) PublishProductReviewed(ctx context.Context, product *domain.Product, review domain.Review) error {
	return p.publish(ctx, TopicProductReviewed, product.ID, ProductReviewedData{
		ID:         product.ID,
		ReviewID:   review.ID,
		UserID:     review.User,
		Rating:     review.Rating,
		NewRating:  product.Rating,
		NumReviews: product.NumReviews,
	})
}
