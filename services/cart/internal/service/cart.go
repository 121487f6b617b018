package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	_ "github.com/utafrali/storefront/pkg/money"
	"github.com/utafrali/storefront/services/cart/internal/catalog"
	"github.com/utafrali/storefront/services/cart/internal/domain"
	"github.com/utafrali/storefront/services/cart/internal/repository"
)

// ProductCatalog resolves product references.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
	// GetProducts omits products the catalog no longer has.
	GetProducts(ctx context.Context, ids []string) (map[string]*catalog.Product, error)
}

// EventPublisher emits cart domain events.
type EventPublisher interface {
	PublishCartUpdated(ctx context.Context, cart *domain.Cart) error
	PublishCartCleared(ctx context.Context, cart *domain.Cart) error
}

// CartView is a cart with every line expanded to its product summary. A
// user without a cart gets only an empty items list.
type CartView struct {
	ID        string     `json:"_id,omitempty"`
	User      string     `json:"user,omitempty"`
	Items     []ItemView `json:"items"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// ItemView is one expanded cart line.
type ItemView struct {
	Product  catalog.Product `json:"product"`
	Quantity int             `json:"quantity"`
}

// CartService implements the cart operations.
type CartService struct {
	repo    repository.CartRepository
	catalog ProductCatalog
	events  EventPublisher
	logger  *slog.Logger
	now     func() time.Time
}

// NewCartService creates a new cart service.
func NewCartService(repo repository.CartRepository, products ProductCatalog, events EventPublisher, logger *slog.Logger) *CartService {
	return &CartService{
		repo:    repo,
		catalog: products,
		events:  events,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// GetCart returns the user's expanded cart, or an empty view when the user
// has none.
func (s *CartService) GetCart(ctx context.Context, userID string) (*CartView, error) {
	cart, err := s.repo.Get(ctx, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return &CartView{Items: []ItemView{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return s.view(ctx, cart)
}

// AddItem sets productID's quantity in the user's cart, creating the cart
// and the line as needed. An existing line's quantity is replaced.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (*CartView, error) {
	if err := domain.ValidateQuantity(quantity); err != nil {
		return nil, err
	}
	if _, err := s.catalog.GetProduct(ctx, productID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("look up product: %w", err)
	}

	cart, err := s.repo.Mutate(ctx, userID, s.newCart(userID), func(c *domain.Cart) error {
		return c.SetItem(productID, quantity, s.now())
	})
	if err != nil {
		return nil, fmt.Errorf("add to cart: %w", err)
	}

	s.publishUpdated(ctx, cart)
	s.logger.InfoContext(ctx, "cart item set",
		slog.String("user_id", userID),
		slog.String("product_id", productID),
		slog.Int("quantity", quantity),
	)
	return s.view(ctx, cart)
}

// UpdateItem changes the quantity of a line already in the cart.
func (s *CartService) UpdateItem(ctx context.Context, userID, productID string, quantity int) (*CartView, error) {
	if err := domain.ValidateQuantity(quantity); err != nil {
		return nil, err
	}
	cart, err := s.repo.Mutate(ctx, userID, nil, func(c *domain.Cart) error {
		return c.UpdateQuantity(productID, quantity, s.now())
	})
	if err != nil {
		return nil, fmt.Errorf("update cart item: %w", err)
	}

	s.publishUpdated(ctx, cart)
	s.logger.InfoContext(ctx, "cart item quantity updated",
		slog.String("user_id", userID),
		slog.String("product_id", productID),
		slog.Int("quantity", quantity),
	)
	return s.view(ctx, cart)
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (*CartView, error) {
	cart, err := s.repo.Mutate(ctx, userID, nil, func(c *domain.Cart) error {
		return c.RemoveItem(productID, s.now())
	})
	if err != nil {
		return nil, fmt.Errorf("remove cart item: %w", err)
	}

	s.publishUpdated(ctx, cart)
	s.logger.InfoContext(ctx, "item removed from cart",
		slog.String("user_id", userID),
		slog.String("product_id", productID),
	)
	return s.view(ctx, cart)
}

// ClearCart empties the user's cart. A user without a cart gets NotFound.
func (s *CartService) ClearCart(ctx context.Context, userID string) (*CartView, error) {
	cart, err := s.repo.Mutate(ctx, userID, nil, func(c *domain.Cart) error {
		c.Clear(s.now())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}

	if err := s.events.PublishCartCleared(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
	s.logger.InfoContext(ctx, "cart cleared", slog.String("user_id", userID))
	return s.view(ctx, cart)
}

// PruneOrphans removes lines whose product the catalog no longer has from
// every cart and returns how many carts changed.
func (s *CartService) PruneOrphans(ctx context.Context) (int, error) {
	referenced := map[string]struct{}{}
	err := s.repo.Each(ctx, func(c *domain.Cart) error {
		for _, it := range c.Items {
			referenced[it.ProductID] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan carts: %w", err)
	}
	if len(referenced) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(referenced))
	for id := range referenced {
		ids = append(ids, id)
	}
	found, err := s.catalog.GetProducts(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("look up cart products: %w", err)
	}

	var gone []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			gone = append(gone, id)
		}
	}
	if len(gone) == 0 {
		return 0, nil
	}
	n, err := s.repo.PruneProducts(ctx, gone)
	if err != nil {
		return n, fmt.Errorf("prune carts: %w", err)
	}
	s.logger.InfoContext(ctx, "pruned orphaned cart lines",
		slog.Int("products", len(gone)),
		slog.Int("carts", n),
	)
	return n, nil
}

func (s *CartService) newCart(userID string) func() *domain.Cart {
	return func() *domain.Cart {
		return domain.NewCart(uuid.NewString(), userID, s.now())
	}
}

func (s *CartService) publishUpdated(ctx context.Context, cart *domain.Cart) {
	if err := s.events.PublishCartUpdated(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("user_id", cart.User),
			slog.String("error", err.Error()),
		)
	}
}

// view expands every line through the catalog. Lines whose product is gone
// are left out and logged.
func (s *CartService) view(ctx context.Context, cart *domain.Cart) (*CartView, error) {
	products, err := s.catalog.GetProducts(ctx, cart.ProductIDs())
	if err != nil {
		return nil, fmt.Errorf("expand cart: %w", err)
	}

	created, updated := cart.CreatedAt, cart.UpdatedAt
	v := &CartView{
		ID:        cart.ID,
		User:      cart.User,
		Items:     make([]ItemView, 0, len(cart.Items)),
		CreatedAt: &created,
		UpdatedAt: &updated,
	}
	for _, it := range cart.Items {
		p, ok := products[it.ProductID]
		if !ok {
			s.logger.WarnContext(ctx, "cart line references missing product",
				slog.String("user_id", cart.User),
				slog.String("product_id", it.ProductID),
			)
			continue
		}
		v.Items = append(v.Items, ItemView{Product: *p, Quantity: it.Quantity})
	}
	return v, nil
}
