package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/services/cart/internal/domain"
	"github.com/utafrali/storefront/services/cart/internal/repository"
)

const (
	keyPrefix = "cart:"

	// maxMutateAttempts bounds WATCH retries before a write is reported as a conflict.
	maxMutateAttempts = 3
	scanBatch         = 100
)

// CartRepository implements repository.CartRepository on Redis. Each cart
// is one JSON value at cart:<userID>.
type CartRepository struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewCartRepository creates a Redis-backed cart repository. A zero ttl
// keeps carts forever.
func NewCartRepository(client *redis.Client, ttl time.Duration) *CartRepository {
	return &CartRepository{
		client: client,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func cartKey(userID string) string { return keyPrefix + userID }

func (r *CartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, cartKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("cart", userID)
		}
		return nil, fmt.Errorf("redis get cart: %w", err)
	}
	return decodeCart(data)
}

func decodeCart(data []byte) (*domain.Cart, error) {
	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	return &cart, nil
}

// Mutate runs fn inside WATCH/MULTI on the cart key. A write that loses the
// race is retried with a fresh read.
func (r *CartRepository) Mutate(ctx context.Context, userID string, newCart func() *domain.Cart, fn repository.MutateFunc) (*domain.Cart, error) {
	key := cartKey(userID)

	for attempt := 0; attempt < maxMutateAttempts; attempt++ {
		var out *domain.Cart
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			cart, err := r.load(ctx, tx, key, newCart)
			if err != nil {
				return err
			}
			if err := fn(cart); err != nil {
				return err
			}
			cart.Version++

			data, err := json.Marshal(cart)
			if err != nil {
				return fmt.Errorf("marshal cart: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, r.ttl)
				return nil
			})
			if err != nil {
				return err
			}
			out = cart
			return nil
		}, key)

		switch {
		case err == nil:
			return out, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return nil, err
		}
	}
	return nil, apperrors.Conflict("cart was modified concurrently, please retry")
}

func (r *CartRepository) load(ctx context.Context, tx *redis.Tx, key string, newCart func() *domain.Cart) (*domain.Cart, error) {
	data, err := tx.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		if newCart == nil {
			return nil, domain.ErrCartNotFound
		}
		return newCart(), nil
	case err != nil:
		return nil, fmt.Errorf("redis get cart: %w", err)
	}
	return decodeCart(data)
}

// Each scans cart:* with SCAN, so it never blocks the server.
func (r *CartRepository) Each(ctx context.Context, fn func(c *domain.Cart) error) error {
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		cart, err := r.Get(ctx, strings.TrimPrefix(iter.Val(), keyPrefix))
		if errors.Is(err, apperrors.ErrNotFound) {
			continue // expired or cleared between SCAN and GET
		}
		if err != nil {
			return err
		}
		if err := fn(cart); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan carts: %w", err)
	}
	return nil
}

func (r *CartRepository) PruneProducts(ctx context.Context, productIDs []string) (int, error) {
	if len(productIDs) == 0 {
		return 0, nil
	}
	gone := make(map[string]bool, len(productIDs))
	for _, id := range productIDs {
		gone[id] = true
	}

	var affected []string
	err := r.Each(ctx, func(c *domain.Cart) error {
		for _, it := range c.Items {
			if gone[it.ProductID] {
				affected = append(affected, c.User)
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, userID := range affected {
		pruned := false
		_, err := r.Mutate(ctx, userID, nil, func(c *domain.Cart) error {
			pruned = c.Prune(gone, r.now())
			return nil
		})
		if errors.Is(err, apperrors.ErrNotFound) {
			continue
		}
		if err != nil {
			return changed, fmt.Errorf("prune cart %s: %w", userID, err)
		}
		if pruned {
			changed++
		}
	}
	return changed, nil
}
