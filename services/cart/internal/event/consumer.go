package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
)

// TopicProductDeleted is published by the catalog service.
var TopicProductDeleted = pkgkafka.Topic("product", "deleted")

// ProductDeletedData is the payload of product.deleted.
type ProductDeletedData struct {
	ID string `json:"id"`
}

// ProductPruner removes deleted products from stored carts.
type ProductPruner interface {
	PruneProducts(ctx context.Context, productIDs []string) (int, error)
}

// NewProductDeletedHandler returns a consumer handler that strips the
// deleted product from every cart. Wrap it with pkgkafka.IdempotentHandler.
func NewProductDeletedHandler(pruner ProductPruner, logger *slog.Logger) pkgkafka.Handler {
	return func(ctx context.Context, evt *pkgkafka.Event) error {
		var data ProductDeletedData
		if err := evt.UnmarshalData(&data); err != nil {
			return fmt.Errorf("decode product.deleted: %w", err)
		}
		id := data.ID
		if id == "" {
			id = evt.AggregateID
		}
		if id == "" {
			logger.WarnContext(ctx, "product.deleted without product id", slog.String("event_id", evt.EventID))
			return nil
		}

		n, err := pruner.PruneProducts(ctx, []string{id})
		if err != nil {
			return fmt.Errorf("prune deleted product %s: %w", id, err)
		}
		logger.InfoContext(ctx, "removed deleted product from carts",
			slog.String("product_id", id),
			slog.Int("carts", n),
		)
		return nil
	}
}
