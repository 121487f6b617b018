// Package storeclient is the Go client for the storefront catalog and cart
// services. It attaches the session's bearer token, refreshes an expired
// token once, masks server errors and caches reads until the next mutation.
package storeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/utafrali/storefront/pkg/httpclient"
	_ "github.com/utafrali/storefront/pkg/money"
)

const (
	defaultCacheSize = 256
	defaultCacheTTL  = 30 * time.Second
	maxResponseBytes = 8 << 20
)

var errRefreshUnavailable = errors.New("no refresh token available")

// Config configures a Client. CartURL defaults to CatalogURL when both
// services sit behind one gateway.
type Config struct {
	CatalogURL string
	CartURL    string
	RefreshURL string
	Timeout    time.Duration
	CacheSize  int
	CacheTTL   time.Duration
}

// Client talks to the catalog and cart services on behalf of one session.
type Client struct {
	cfg      Config
	http     httpclient.Doer
	sessions SessionStore
	logger   *slog.Logger

	// mu orders cache fills against invalidation.
	mu         sync.Mutex
	cache      *expirable.LRU[string, []byte]
	generation uint64
	refreshes  singleflight.Group
}

// New builds a client. Transport-level retries are disabled: the only retry
// is the replay after a successful token refresh.
func New(cfg Config, sessions SessionStore, l *slog.Logger) *Client {
	if cfg.CartURL == "" {
		cfg.CartURL = cfg.CatalogURL
	}
	cfg.CatalogURL = strings.TrimRight(cfg.CatalogURL, "/")
	cfg.CartURL = strings.TrimRight(cfg.CartURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if sessions == nil {
		sessions = NewMemorySessionStore(Session{})
	}
	if l == nil {
		l = slog.Default()
	}

	hc := httpclient.DefaultConfig()
	hc.Timeout = cfg.Timeout
	hc.MaxRetries = 0

	return &Client{
		cfg:      cfg,
		http:     httpclient.New(hc),
		sessions: sessions,
		logger:   l,
		cache:    expirable.NewLRU[string, []byte](cfg.CacheSize, nil, cfg.CacheTTL),
	}
}

// SetSession stores a freshly issued session and drops cached reads made
// under the previous one.
func (c *Client) SetSession(s Session) {
	c.sessions.Save(s)
	c.invalidate()
}

// ClearSession logs the client out.
func (c *Client) ClearSession() {
	c.sessions.Clear()
	c.invalidate()
}

// Session returns the current session, if any.
func (c *Client) Session() (Session, bool) {
	return c.sessions.Load()
}

func (c *Client) invalidate() {
	c.mu.Lock()
	c.generation++
	c.cache.Purge()
	c.mu.Unlock()
}

func (c *Client) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// storeIfCurrent caches body unless an invalidation happened after gen was
// read. The check and the add are atomic with respect to invalidate.
func (c *Client) storeIfCurrent(gen uint64, rawURL string, body []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return false
	}
	c.cache.Add(rawURL, body)
	return true
}

// getJSON serves a read from the cache or the network. A response is only
// cached if no invalidation happened while it was in flight.
func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	if body, ok := c.cache.Get(rawURL); ok {
		return decode(rawURL, body, out)
	}

	gen := c.currentGeneration()
	body, err := c.send(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	c.storeIfCurrent(gen, rawURL, body)
	return decode(rawURL, body, out)
}

// mutate sends a write and invalidates cached product and cart reads once
// the request has been attempted.
func (c *Client) mutate(ctx context.Context, method, rawURL string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode %s %s: %w", method, rawURL, err)
		}
	}
	defer c.invalidate()

	body, err := c.send(ctx, method, rawURL, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decode(rawURL, body, out)
}

// send performs one request, plus at most one replay after a token refresh.
func (c *Client) send(ctx context.Context, method, rawURL string, payload []byte) ([]byte, error) {
	session, _ := c.sessions.Load()

	status, body, err := c.roundTrip(ctx, method, rawURL, payload, session.Token)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		original := newAPIError(status, body)
		if rerr := c.refreshSession(ctx, session.Token); rerr != nil {
			c.logger.WarnContext(ctx, "token refresh failed, clearing session",
				slog.String("method", method),
				slog.String("url", rawURL),
				slog.String("error", rerr.Error()),
			)
			c.ClearSession()
			return nil, original
		}
		fresh, _ := c.sessions.Load()
		if status, body, err = c.roundTrip(ctx, method, rawURL, payload, fresh.Token); err != nil {
			return nil, err
		}
	}

	if status >= http.StatusBadRequest {
		apiErr := newAPIError(status, body)
		if apiErr.IsServerError() {
			c.logger.ErrorContext(ctx, "storefront api server error",
				slog.String("method", method),
				slog.String("url", rawURL),
				slog.Int("status", status),
				slog.String("detail", apiErr.Detail),
			)
		}
		return nil, apiErr
	}
	return body, nil
}

func (c *Client) roundTrip(ctx context.Context, method, rawURL string, payload []byte, token string) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build %s %s: %w", method, rawURL, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read %s %s response: %w", method, rawURL, err)
	}
	return resp.StatusCode, body, nil
}

// refreshSession exchanges the stored refresh token for a new session.
// Concurrent callers that saw the same stale token share one refresh call.
func (c *Client) refreshSession(ctx context.Context, staleToken string) error {
	_, err, _ := c.refreshes.Do(staleToken, func() (any, error) {
		current, ok := c.sessions.Load()
		if ok && current.Token != "" && current.Token != staleToken {
			return nil, nil
		}
		if c.cfg.RefreshURL == "" || current.RefreshToken == "" {
			return nil, errRefreshUnavailable
		}

		payload, err := json.Marshal(map[string]string{"refreshToken": current.RefreshToken})
		if err != nil {
			return nil, err
		}
		status, body, err := c.roundTrip(ctx, http.MethodPost, c.cfg.RefreshURL, payload, "")
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, newAPIError(status, body)
		}

		var next Session
		if err := json.Unmarshal(body, &next); err != nil {
			return nil, fmt.Errorf("decode refresh response: %w", err)
		}
		if next.Token == "" {
			return nil, errors.New("refresh response carried no token")
		}
		if next.RefreshToken == "" {
			next.RefreshToken = current.RefreshToken
		}
		c.sessions.Save(next)
		return nil, nil
	})
	return err
}

func decode(rawURL string, body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", rawURL, err)
	}
	return nil
}

func (c *Client) productsURL(parts ...string) string {
	u := c.cfg.CatalogURL + "/api/products"
	for _, p := range parts {
		u += "/" + url.PathEscape(p)
	}
	return u
}

func (c *Client) cartURL(parts ...string) string {
	u := c.cfg.CartURL + "/api/cart"
	for _, p := range parts {
		u += "/" + url.PathEscape(p)
	}
	return u
}

// ListProducts returns one page of products whose name contains keyword.
func (c *Client) ListProducts(ctx context.Context, page int, keyword string) (*ProductPage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if keyword != "" {
		q.Set("keyword", keyword)
	}
	u := c.productsURL()
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var out ProductPage
	if err := c.getJSON(ctx, u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (*Product, error) {
	var out Product
	if err := c.getJSON(ctx, c.productsURL(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	var out Product
	if err := c.mutate(ctx, http.MethodPost, c.productsURL(), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) BulkInsertProducts(ctx context.Context, in []ProductInput) (*BulkInsertResult, error) {
	var out BulkInsertResult
	if err := c.mutate(ctx, http.MethodPost, c.productsURL("bulk-insert"), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProduct replaces every mutable field of the product.
func (c *Client) UpdateProduct(ctx context.Context, id string, in ProductInput) (*Product, error) {
	var out Product
	if err := c.mutate(ctx, http.MethodPut, c.productsURL(id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.mutate(ctx, http.MethodDelete, c.productsURL(id), nil, nil)
}

func (c *Client) AddReview(ctx context.Context, productID string, in ReviewInput) error {
	var out messageBody
	return c.mutate(ctx, http.MethodPost, c.productsURL(productID, "reviews"), in, &out)
}

// Stats is served uncached; it is an admin view.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	body, err := c.send(ctx, http.MethodGet, c.cfg.CatalogURL+"/api/admin/stats", nil)
	if err != nil {
		return nil, err
	}
	var out Stats
	if err := decode("stats", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetCart(ctx context.Context) (*Cart, error) {
	var out Cart
	if err := c.getJSON(ctx, c.cartURL(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddToCart sets the quantity of productID, adding the line if absent.
func (c *Client) AddToCart(ctx context.Context, productID string, quantity int) (*Cart, error) {
	in := map[string]any{"productId": productID, "quantity": quantity}
	return c.cartMutation(ctx, http.MethodPost, c.cartURL(), in)
}

func (c *Client) UpdateCartItem(ctx context.Context, productID string, quantity int) (*Cart, error) {
	in := map[string]any{"quantity": quantity}
	return c.cartMutation(ctx, http.MethodPut, c.cartURL(productID), in)
}

func (c *Client) RemoveFromCart(ctx context.Context, productID string) (*Cart, error) {
	return c.cartMutation(ctx, http.MethodDelete, c.cartURL("remove", productID), nil)
}

func (c *Client) ClearCart(ctx context.Context) (*Cart, error) {
	return c.cartMutation(ctx, http.MethodDelete, c.cartURL("clear"), nil)
}

func (c *Client) cartMutation(ctx context.Context, method, rawURL string, in any) (*Cart, error) {
	var out cartMutation
	if err := c.mutate(ctx, method, rawURL, in, &out); err != nil {
		return nil, err
	}
	return &out.Cart, nil
}
