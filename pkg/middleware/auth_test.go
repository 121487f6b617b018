package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/logger"
)

func stubValidator(tokens map[string]*Claims) TokenValidator {
	return func(token string) (*Claims, error) {
		if c, ok := tokens[token]; ok {
			return c, nil
		}
		return nil, errors.New("bad token")
	}
}

var testTokens = map[string]*Claims{
	"user-token":  {UserID: "u1", Name: "Jane", Email: "jane@example.com"},
	"admin-token": {UserID: "a1", Name: "Admin", Email: "admin@example.com", IsAdmin: true},
}

func captureHandler(seen **Claims) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth_ValidToken(t *testing.T) {
	var seen *Claims
	h := Auth(stubValidator(testTokens))(captureHandler(&seen))

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "u1", seen.UserID)
	assert.Equal(t, "Jane", seen.Name)
}

func TestAuth_PropagatesUserIDToLogger(t *testing.T) {
	var loggedID string
	h := Auth(stubValidator(testTokens))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loggedID = logger.UserIDFromContext(r.Context())
		assert.Equal(t, "u1", UserIDFromContext(r.Context()))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer user-token")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "u1", loggedID)
}

func TestAuth_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		header string
		msg    string
	}{
		{"missing header", "", "Not authorized, no token"},
		{"wrong scheme", "Basic abc", "Not authorized, no token"},
		{"empty token", "Bearer ", "Not authorized, no token"},
		{"unknown token", "Bearer nope", "Not authorized, token failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *Claims
			h := Auth(stubValidator(testTokens))(captureHandler(&seen))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Nil(t, seen)
			var body httputil.ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, "UNAUTHORIZED", body.Code)
			assert.Equal(t, tt.msg, body.Message)
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"admin passes", "admin-token", http.StatusOK},
		{"shopper forbidden", "user-token", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *Claims
			h := Auth(stubValidator(testTokens))(RequireAdmin(captureHandler(&seen)))

			req := httptest.NewRequest(http.MethodPost, "/api/products", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireAdmin_WithoutAuth(t *testing.T) {
	var seen *Claims
	rec := httptest.NewRecorder()
	RequireAdmin(captureHandler(&seen)).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
