// Package httputil holds the JSON response and error-writing helpers shared
// by the storefront HTTP handlers.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/validator"
)

// MaxBodyBytes caps request bodies decoded by DecodeJSON.
const MaxBodyBytes = validator.MaxBodyBytes

// ErrorResponse is the body of every non-2xx response. Message is always set.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Detail    string            `json:"detail,omitempty"`
}

// MessageResponse is a bare confirmation body such as {"message":"Product removed"}.
type MessageResponse struct {
	Message string `json:"message"`
}

type errorDetailKey struct{}

// WithErrorDetail marks ctx so WriteError includes the underlying error chain
// in the response. Non-production deployments enable it through middleware.
func WithErrorDetail(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, errorDetailKey{}, enabled)
}

func errorDetailEnabled(ctx context.Context) bool {
	enabled, _ := ctx.Value(errorDetailKey{}).(bool)
	return enabled
}

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteMessage writes {"message": msg}.
func WriteMessage(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, MessageResponse{Message: msg})
}

// WriteError maps err onto the error taxonomy and writes it. Internal errors
// are logged with the request-scoped logger (or fallback) and reach the
// client only as a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}

	resp := ErrorResponse{RequestID: logger.CorrelationIDFromContext(r.Context())}
	status := apperrors.HTTPStatus(err)

	var (
		valErr *validator.ValidationError
		appErr *apperrors.AppError
	)
	switch {
	case errors.As(err, &valErr):
		status = http.StatusBadRequest
		resp.Code = "VALIDATION_ERROR"
		resp.Message = valErr.Error()
		resp.Fields = valErr.Fields()
	case errors.As(err, &appErr) && appErr.Status < http.StatusInternalServerError:
		resp.Code = appErr.Code
		resp.Message = appErr.Message
	case status == http.StatusNotFound:
		resp.Code = "NOT_FOUND"
		resp.Message = "resource not found"
	case status == http.StatusConflict:
		resp.Code = "CONFLICT"
		resp.Message = "resource conflict"
	case status == http.StatusBadRequest:
		resp.Code = "INVALID_INPUT"
		resp.Message = err.Error()
	case status == http.StatusServiceUnavailable:
		resp.Code = "SERVICE_UNAVAILABLE"
		resp.Message = "a dependency is temporarily unavailable"
	default:
		status = http.StatusInternalServerError
		resp.Code = "INTERNAL_ERROR"
		resp.Message = "an internal error occurred"
	}

	if status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.Int("status", status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	if errorDetailEnabled(r.Context()) {
		resp.Detail = err.Error()
	}

	WriteJSON(w, status, resp)
}

// DecodeJSON decodes a size-limited JSON request body into dst. Decode
// failures come back as apperrors.InvalidInput.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.InvalidInput("invalid request body: " + err.Error())
	}
	return nil
}
