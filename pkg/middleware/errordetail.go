package middleware

import (
	"net/http"

	"github.com/utafrali/storefront/pkg/httputil"
)

// ErrorDetail lets error responses carry the underlying error text. Only
// enable it outside production.
func ErrorDetail(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(httputil.WithErrorDetail(r.Context(), true)))
		})
	}
}
