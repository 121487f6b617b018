package validator

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

type testProduct struct {
	Name   string            `json:"name" validate:"required,notblank"`
	Price  *decimal.Decimal  `json:"price" validate:"required,gte=0"`
	Stock  *int              `json:"countInStock" validate:"required,gte=0"`
	Images []string          `json:"images" validate:"required,min=1,dive,notblank"`
	Specs  map[string]string `json:"specifications" validate:"required"`
}

func intPtr(n int) *int { return &n }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func validProduct() testProduct {
	return testProduct{
		Name:   "Phone",
		Price:  decPtr("199.99"),
		Stock:  intPtr(3),
		Images: []string{"/img/a.png"},
		Specs:  map[string]string{},
	}
}

func TestValidate_Success(t *testing.T) {
	assert.NoError(t, Validate(validProduct()))
}

func TestValidate_AggregatesEveryViolation(t *testing.T) {
	err := Validate(testProduct{})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	fields := valErr.Fields()
	assert.Len(t, fields, 5)
	for _, f := range []string{"name", "price", "countInStock", "images", "specifications"} {
		assert.Equal(t, "is required", fields[f], f)
	}
	assert.Equal(t, 5, strings.Count(err.Error(), "is required"))
}

func TestValidate_BlankStringsRejected(t *testing.T) {
	p := validProduct()
	p.Name = "   "
	p.Images = []string{"/img/a.png", " "}

	var valErr *ValidationError
	require.ErrorAs(t, Validate(p), &valErr)
	assert.Equal(t, "must not be blank", valErr.Fields()["name"])
	assert.Equal(t, "must not be blank", valErr.Fields()["images[1]"])
}

func TestValidate_EmptyImageList(t *testing.T) {
	p := validProduct()
	p.Images = []string{}

	var valErr *ValidationError
	require.ErrorAs(t, Validate(p), &valErr)
	assert.Equal(t, "must contain at least 1 entries", valErr.Fields()["images"])
}

func TestValidate_NegativeDecimal(t *testing.T) {
	p := validProduct()
	p.Price = decPtr("-0.01")

	var valErr *ValidationError
	require.ErrorAs(t, Validate(p), &valErr)
	assert.Equal(t, "must be greater than or equal to 0", valErr.Fields()["price"])
}

func TestValidate_EmptySpecificationsAllowed(t *testing.T) {
	p := validProduct()
	p.Specs = map[string]string{}
	assert.NoError(t, Validate(p))
}

func TestValidationError_IsInvalidInput(t *testing.T) {
	err := Validate(testProduct{})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatus(err))
}

func TestValidationError_MergeAndOrNil(t *testing.T) {
	all := &ValidationError{}
	assert.NoError(t, all.OrNil())

	inner := &ValidationError{}
	inner.Add("name", "is required")
	all.Merge("[2].", inner)
	all.Merge("[3].", nil)

	require.Error(t, all.OrNil())
	assert.Equal(t, "field '[2].name' is required", all.Error())
}

func TestDecodeAndValidate_Success(t *testing.T) {
	body := `{"name":"Phone","price":10.5,"countInStock":1,"images":["a"],"specifications":{"RAM":"8GB"}}`
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))

	var p testProduct
	require.NoError(t, DecodeAndValidate(httptest.NewRecorder(), req, &p))
	assert.True(t, p.Price.Equal(decimal.RequireFromString("10.5")))
	assert.Equal(t, "8GB", p.Specs["RAM"])
}

func TestDecodeAndValidate_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{invalid"))

	var p testProduct
	err := DecodeAndValidate(httptest.NewRecorder(), req, &p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	assert.Contains(t, err.Error(), "invalid request body")
}

func TestDecodeAndValidate_OversizedBody(t *testing.T) {
	body := `{"name":"` + strings.Repeat("a", MaxBodyBytes) + `","price":1}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

	var p testProduct
	err := DecodeAndValidate(httptest.NewRecorder(), req, &p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestDecodeAndValidate_ReportsViolations(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"price":-1}`))

	var p testProduct
	err := DecodeAndValidate(httptest.NewRecorder(), req, &p)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields(), "price")
}
