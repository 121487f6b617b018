package httpclient

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const maxErrorBody = 1 << 20

// ErrorMessage extracts the human-readable message from an error body. It
// understands the flat {code,message} shape, the nested {error:{message}}
// shape and plain-text bodies.
func ErrorMessage(body []byte) (code, message string) {
	if gjson.ValidBytes(body) {
		res := gjson.GetManyBytes(body, "code", "message", "error.code", "error.message", "error")
		code = firstNonEmpty(res[0].String(), res[2].String())
		switch {
		case res[1].Exists():
			message = res[1].String()
		case res[3].Exists():
			message = res[3].String()
		case res[4].Type == gjson.String:
			message = res[4].String()
		}
		if message != "" {
			return code, message
		}
	}
	return code, strings.TrimSpace(string(body))
}

// ParseResponseError drains and closes a non-2xx response and translates it
// into an *apperrors.AppError tagged with service.
func ParseResponseError(resp *http.Response, service string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return apperrors.ServiceUnavailable(fmt.Sprintf("%s returned %d: read body: %v", service, resp.StatusCode, err))
	}
	code, message := ErrorMessage(body)
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return mapStatus(resp.StatusCode, code, message, service)
}

func mapStatus(status int, code, message, service string) error {
	e := &apperrors.AppError{
		Code:    firstNonEmpty(code, "DOWNSTREAM_ERROR"),
		Message: message,
		Status:  status,
	}
	switch {
	case status == http.StatusNotFound:
		e.Err = apperrors.ErrNotFound
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		e.Err = apperrors.ErrInvalidInput
	case status == http.StatusConflict:
		e.Err = apperrors.ErrConflict
	case status == http.StatusUnauthorized:
		e.Err = apperrors.ErrUnauthorized
	case status == http.StatusForbidden:
		e.Err = apperrors.ErrForbidden
	case status >= http.StatusInternalServerError:
		// A failing dependency is unavailable to our caller, not our own 500.
		e.Code = "SERVICE_UNAVAILABLE"
		e.Message = fmt.Sprintf("%s is unavailable", service)
		e.Status = http.StatusServiceUnavailable
		e.Err = fmt.Errorf("%w: %s returned %d: %s", apperrors.ErrServiceUnavail, service, status, message)
	}
	return e
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
