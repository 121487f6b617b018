package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/services/cart/internal/domain"
)

// Cart topics.
var (
	TopicCartUpdated = pkgkafka.Topic("cart", "updated")
	TopicCartCleared = pkgkafka.Topic("cart", "cleared")
)

const (
	AggregateTypeCart = "cart"
	SourceCartService = "cart-service"
)

// CartUpdatedData is the payload of cart.updated.
type CartUpdatedData struct {
	CartID    string         `json:"cartId"`
	UserID    string         `json:"userId"`
	Items     []CartItemData `json:"items"`
	ItemCount int            `json:"itemCount"`
}

// CartItemData is one line within a cart event.
type CartItemData struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// CartClearedData is the payload of cart.cleared.
type CartClearedData struct {
	CartID string `json:"cartId"`
	UserID string `json:"userId"`
}

type publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes cart domain events.
type Producer struct {
	kafka  publisher
	logger *slog.Logger
}

// NewProducer creates an event producer for the cart service.
func NewProducer(kafka publisher, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

func (p *Producer) publish(ctx context.Context, topic string, cart *domain.Cart, data any) error {
	// Keyed by user so one user's cart events stay ordered.
	evt, err := pkgkafka.NewEvent(topic, cart.User, AggregateTypeCart, SourceCartService, data)
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
		slog.String("user_id", cart.User),
		slog.String("event_id", evt.EventID),
	)
	return nil
}

// PublishCartUpdated announces the cart's new contents.
func (p *Producer) PublishCartUpdated(ctx context.Context, cart *domain.Cart) error {
	items := make([]CartItemData, 0, len(cart.Items))
	for _, it := range cart.Items {
		items = append(items, CartItemData{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return p.publish(ctx, TopicCartUpdated, cart, CartUpdatedData{
		CartID:    cart.ID,
		UserID:    cart.User,
		Items:     items,
		ItemCount: cart.ItemCount(),
	})
}

func (p *Producer) PublishCartCleared(ctx context.Context, cart *domain.Cart) error {
	return p.publish(ctx, TopicCartCleared, cart, CartClearedData{CartID: cart.ID, UserID: cart.User})
}
