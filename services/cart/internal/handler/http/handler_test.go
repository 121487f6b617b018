package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/services/cart/internal/catalog"
	"github.com/utafrali/storefront/services/cart/internal/domain"
	cartredis "github.com/utafrali/storefront/services/cart/internal/repository/redis"
	"github.com/utafrali/storefront/services/cart/internal/service"
)

// =============================================================================
// Fakes
// =============================================================================

type stubCatalog map[string]*catalog.Product

func (s stubCatalog) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	p, ok := s[id]
	if !ok {
		return nil, apperrors.NotFound("product", id)
	}
	return p, nil
}

func (s stubCatalog) GetProducts(_ context.Context, ids []string) (map[string]*catalog.Product, error) {
	out := map[string]*catalog.Product{}
	for _, id := range ids {
		if p, ok := s[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type nopEvents struct{}

func (nopEvents) PublishCartUpdated(context.Context, *domain.Cart) error { return nil }
func (nopEvents) PublishCartCleared(context.Context, *domain.Cart) error { return nil }

// =============================================================================
// Helpers
// =============================================================================

func testTokens(token string) (*middleware.Claims, error) {
	switch token {
	case "alice":
		return &middleware.Claims{UserID: "user-alice", Name: "Alice"}, nil
	case "bob":
		return &middleware.Claims{UserID: "user-bob", Name: "Bob"}, nil
	}
	return nil, errors.New("bad token")
}

func newTestRouter(t *testing.T) (http.Handler, stubCatalog) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	products := stubCatalog{
		"p1": {ID: "p1", Name: "Phone", Price: decimal.RequireFromString("199.99")},
		"p2": {ID: "p2", Name: "Headphones", Price: decimal.RequireFromString("49.5")},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewCartService(cartredis.NewCartRepository(client, time.Hour), products, nopEvents{}, logger)
	return NewRouter(svc, health.NewHandler(), RouterConfig{Tokens: testTokens}, logger), products
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type cartBody struct {
	ID    string `json:"_id"`
	User  string `json:"user"`
	Items []struct {
		Product struct {
			ID    string          `json:"_id"`
			Name  string          `json:"name"`
			Price decimal.Decimal `json:"price"`
		} `json:"product"`
		Quantity int `json:"quantity"`
	} `json:"items"`
}

type mutationBody struct {
	Message string   `json:"message"`
	Cart    cartBody `json:"cart"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func quantities(c cartBody) map[string]int {
	out := map[string]int{}
	for _, it := range c.Items {
		out[it.Product.ID] = it.Quantity
	}
	return out
}

// =============================================================================
// Tests
// =============================================================================

func TestCartRoutes_RequireAuth(t *testing.T) {
	h, _ := newTestRouter(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/cart"},
		{http.MethodPost, "/api/cart"},
		{http.MethodPut, "/api/cart/p1"},
		{http.MethodDelete, "/api/cart/remove/p1"},
		{http.MethodDelete, "/api/cart/clear"},
	} {
		rec := do(t, h, tc.method, tc.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", tc.method, tc.path)

		rec = do(t, h, tc.method, tc.path, "forged", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestGetCart_Empty(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/api/cart", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestAddItem_ThenGet(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/cart", "alice", map[string]any{"productId": "p1", "quantity": 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[mutationBody](t, rec)
	assert.Equal(t, "Cart updated", body.Message)
	assert.Equal(t, "user-alice", body.Cart.User)
	assert.Equal(t, map[string]int{"p1": 3}, quantities(body.Cart))

	rec = do(t, h, http.MethodGet, "/api/cart", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decode[cartBody](t, rec)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "Phone", cart.Items[0].Product.Name)
	assert.True(t, cart.Items[0].Product.Price.Equal(decimal.RequireFromString("199.99")))
}

func TestAddItem_Replaces(t *testing.T) {
	h, _ := newTestRouter(t)

	do(t, h, http.MethodPost, "/api/cart", "alice", map[string]any{"productId": "p1", "quantity": 2})
	rec := do(t, h, http.MethodPost, "/api/cart", "alice", map[string]any{"productId": "p1", "quantity": 3})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"p1": 3}, quantities(decode[mutationBody](t, rec).Cart))
}

func TestAddItem_Validation(t *testing.T) {
	h, _ := newTestRouter(t)

	tests := []struct {
		name string
		body any
	}{
		{"missing product", map[string]any{"quantity": 1}},
		{"missing quantity", map[string]any{"productId": "p1"}},
		{"zero quantity", map[string]any{"productId": "p1", "quantity": 0}},
		{"too many", map[string]any{"productId": "p1", "quantity": 101}},
		{"malformed", `{"productId":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/cart", "alice", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestAddItem_UnknownProduct(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/cart", "alice", map[string]any{"productId": "ghost", "quantity": 1})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Product not found", decode[httputil.ErrorResponse](t, rec).Message)
}

func TestAddItem_RejectsNonJSON(t *testing.T) {
	h, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/cart", bytes.NewBufferString("productId=p1"))
	req.Header.Set("Authorization", "Bearer alice")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestUpdateItemQuantity(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodPut, "/api/cart/p1", "alice", map[string]any{"quantity": 4})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	do(t, h, http.MethodPost, "/api/cart", "alice", map[string]any{"productId": "p1", "quantity": 1})
	rec = do(t, h, http.MethodPut, "/api/cart/p1", "alice", map[string]any{"quantity": 4})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"p1": 4}, quantities(decode[mutationBody](t, rec).Cart))

	rec = do(t, h, http.MethodPut, "/api/cart/p2", "alice", map[string]any{"quantity": 4})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Product not found in cart", decode[httputil.ErrorResponse](t, rec).Message)
}

func TestRemoveItem(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodDelete, "/api/cart/remove/p1", "alice", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Cart not found", decode[httputil.ErrorResponse](t, rec).Message)

	do(t, h, http.MethodPost, "/api/cart", "alice", map[string]any{"productId": "p1", "quantity": 1})
	do(t, h, http.MethodPost, "/api/cart", "alice", map[string]any{"productId": "p2", "quantity": 2})

	rec = do(t, h, http.MethodDelete, "/api/cart/remove/p1", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[mutationBody](t, rec)
	assert.Equal(t, "Item removed from cart", body.Message)
	assert.Equal(t, map[string]int{"p2": 2}, quantities(body.Cart))

	rec = do(t, h, http.MethodDelete, "/api/cart/remove/p1", "alice", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Product not found in cart", decode[httputil.ErrorResponse](t, rec).Message)
}

func TestClearCart(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodDelete, "/api/cart/clear", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	do(t, h, http.MethodPost, "/api/cart", "alice", map[string]any{"productId": "p1", "quantity": 1})

	rec = do(t, h, http.MethodDelete, "/api/cart/clear", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[mutationBody](t, rec)
	assert.Equal(t, "Cart cleared", body.Message)
	assert.Empty(t, body.Cart.Items)
	assert.NotEmpty(t, body.Cart.ID)

	// Clearing twice succeeds; removing from the cleared cart does not.
	rec = do(t, h, http.MethodDelete, "/api/cart/clear", "alice", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodDelete, "/api/cart/remove/p1", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/cart", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[cartBody](t, rec).Items)
}

func TestGetCart_DanglingLineOmitted(t *testing.T) {
	h, products := newTestRouter(t)

	do(t, h, http.MethodPost, "/api/cart", "alice", map[string]any{"productId": "p1", "quantity": 1})
	do(t, h, http.MethodPost, "/api/cart", "alice", map[string]any{"productId": "p2", "quantity": 1})
	delete(products, "p2")

	rec := do(t, h, http.MethodGet, "/api/cart", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"p1": 1}, quantities(decode[cartBody](t, rec)))
}

func TestCartsArePerUser(t *testing.T) {
	h, _ := newTestRouter(t)

	do(t, h, http.MethodPost, "/api/cart", "alice", map[string]any{"productId": "p1", "quantity": 1})

	rec := do(t, h, http.MethodGet, "/api/cart", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
