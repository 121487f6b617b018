package httpclient

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

func makeResponse(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
		wantMsg  string
	}{
		{"flat", `{"code":"NOT_FOUND","message":"Product not found"}`, "NOT_FOUND", "Product not found"},
		{"nested", `{"error":{"code":"CONFLICT","message":"version mismatch"}}`, "CONFLICT", "version mismatch"},
		{"error string", `{"error":"boom"}`, "", "boom"},
		{"plain text", "upstream timed out\n", "", "upstream timed out"},
		{"empty", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := ErrorMessage([]byte(tt.body))
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}

func TestParseResponseError_ClientErrors(t *testing.T) {
	tests := []struct {
		status   int
		sentinel error
	}{
		{http.StatusNotFound, apperrors.ErrNotFound},
		{http.StatusBadRequest, apperrors.ErrInvalidInput},
		{http.StatusConflict, apperrors.ErrConflict},
		{http.StatusUnauthorized, apperrors.ErrUnauthorized},
		{http.StatusForbidden, apperrors.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := ParseResponseError(makeResponse(tt.status, `{"code":"X","message":"details"}`), "catalog")

			var appErr *apperrors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.status, appErr.Status)
			assert.Equal(t, "details", appErr.Message)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestParseResponseError_ServerErrorBecomesUnavailable(t *testing.T) {
	err := ParseResponseError(makeResponse(http.StatusInternalServerError, `{"message":"pq: connection reset"}`), "catalog")

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusServiceUnavailable, appErr.Status)
	assert.Equal(t, "catalog is unavailable", appErr.Message)
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	assert.Contains(t, err.Error(), "pq: connection reset")
}

func TestParseResponseError_EmptyBodyUsesStatusText(t *testing.T) {
	err := ParseResponseError(makeResponse(http.StatusNotFound, ""), "catalog")
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "Not Found", appErr.Message)
	assert.Equal(t, "DOWNSTREAM_ERROR", appErr.Code)
}
