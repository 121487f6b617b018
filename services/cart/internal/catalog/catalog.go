// Package catalog looks up products in the catalog service for the cart.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
)

const serviceName = "catalog"

// maxConcurrentLookups caps in-flight product requests per batch.
const maxConcurrentLookups = 8

// Product is the slice of a catalog product a cart line shows.
type Product struct {
	ID    string          `json:"_id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Client reads products over HTTP through a circuit breaker.
type Client struct {
	baseURL string
	http    httpclient.Doer
}

// NewClient creates a client for the catalog at baseURL. doer is normally
// an *httpclient.CircuitBreakerClient.
func NewClient(baseURL string, doer httpclient.Doer) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    doer,
	}
}

// GetProduct returns the product or an apperrors.ErrNotFound error.
func (c *Client) GetProduct(ctx context.Context, id string) (*Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/products/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, unavailable(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, serviceName)
	}
	defer func() { _ = resp.Body.Close() }()

	var p Product
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode catalog product %s: %w", id, err)
	}
	return &p, nil
}

// GetProducts looks up ids concurrently. Products the catalog no longer has
// are absent from the result; any other failure fails the whole batch.
func (c *Client) GetProducts(ctx context.Context, ids []string) (map[string]*Product, error) {
	var (
		mu  sync.Mutex
		out = make(map[string]*Product, len(ids))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)

	for _, id := range ids {
		g.Go(func() error {
			p, err := c.GetProduct(gctx, id)
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			out[id] = p
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func unavailable(err error) error {
	var down *httpclient.DownstreamError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, httpclient.ErrCircuitOpen):
		return apperrors.ServiceUnavailable("catalog is unavailable")
	case errors.As(err, &down):
		return apperrors.ServiceUnavailable(fmt.Sprintf("catalog is unavailable (status %d)", down.Status))
	}
	return apperrors.ServiceUnavailable("catalog is unavailable: " + err.Error())
}
