package storeclient

import (
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
)

// MaskedServerMessage replaces the message of every 5xx response.
const MaskedServerMessage = "Internal Server Error. Please try again later."

// APIError is a non-2xx response from a storefront service. For 5xx
// responses Message is MaskedServerMessage and Detail keeps what the
// server said.
type APIError struct {
	Status  int
	Code    string
	Message string
	Detail  string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("storefront api %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("storefront api %d: %s", e.Status, e.Message)
}

// Unwrap lets callers match the shared sentinels with errors.Is.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusNotFound:
		return apperrors.ErrNotFound
	case e.Status == http.StatusUnauthorized:
		return apperrors.ErrUnauthorized
	case e.Status == http.StatusForbidden:
		return apperrors.ErrForbidden
	case e.Status == http.StatusConflict:
		return apperrors.ErrConflict
	case e.Status == http.StatusBadRequest, e.Status == http.StatusUnprocessableEntity:
		return apperrors.ErrInvalidInput
	case e.Status >= http.StatusInternalServerError:
		return apperrors.ErrInternal
	}
	return nil
}

// IsServerError reports whether the response was a 5xx.
func (e *APIError) IsServerError() bool {
	return e.Status >= http.StatusInternalServerError
}

func newAPIError(status int, body []byte) *APIError {
	code, msg := httpclient.ErrorMessage(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	e := &APIError{Status: status, Code: code, Message: msg}

	if fields := gjson.GetBytes(body, "fields"); fields.IsObject() {
		e.Fields = make(map[string]string)
		fields.ForEach(func(k, v gjson.Result) bool {
			e.Fields[k.String()] = v.String()
			return true
		})
	}

	if e.IsServerError() {
		e.Detail = msg
		if d := gjson.GetBytes(body, "detail"); d.Exists() {
			e.Detail = msg + ": " + d.String()
		}
		e.Message = MaskedServerMessage
	}
	return e
}
