package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/pagination"
	"github.com/utafrali/storefront/pkg/validator"
	"github.com/utafrali/storefront/services/catalog/internal/domain"
	"github.com/utafrali/storefront/services/catalog/internal/service"
)

// ProductHandler handles HTTP requests for product endpoints.
type ProductHandler struct {
	service *service.ProductService
	logger  *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(svc *service.ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// ProductRequest is the body of create, update and each bulk-insert element.
// Update is a full replace, so the same rules apply to every write.
type ProductRequest struct {
	Name           string            `json:"name" validate:"required,notblank,max=500"`
	Images         []string          `json:"images" validate:"required,min=1,dive,notblank"`
	Brand          string            `json:"brand" validate:"required,notblank"`
	Category       string            `json:"category" validate:"required,notblank"`
	Description    string            `json:"description" validate:"required,notblank"`
	Price          *decimal.Decimal  `json:"price" validate:"required,gte=0"`
	CountInStock   *int              `json:"countInStock" validate:"required,gte=0"`
	Specifications map[string]string `json:"specifications" validate:"required"`
	Features       []string          `json:"features" validate:"omitempty,dive,notblank"`
}

func (req ProductRequest) fields() domain.ProductFields {
	f := domain.ProductFields{
		Name:           strings.TrimSpace(req.Name),
		Images:         req.Images,
		Brand:          req.Brand,
		Category:       req.Category,
		Description:    req.Description,
		Specifications: req.Specifications,
		Features:       req.Features,
	}
	if req.Price != nil {
		f.Price = *req.Price
	}
	if req.CountInStock != nil {
		f.CountInStock = *req.CountInStock
	}
	return f
}

// BulkInsertResponse is the body of a successful bulk insert.
type BulkInsertResponse struct {
	Message string            `json:"message"`
	Data    []*domain.Product `json:"data"`
}

// --- Handlers ---

// ListProducts handles GET /api/products?page=&keyword=
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromRequest(r, pagination.CatalogPageSize)
	keyword := strings.TrimSpace(r.URL.Query().Get("keyword"))

	result, err := h.service.ListProducts(r.Context(), keyword, page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// GetProduct handles GET /api/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// CreateProduct handles POST /api/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	p, err := h.service.CreateProduct(r.Context(), middleware.UserIDFromContext(r.Context()), req.fields())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

// BulkInsertProducts handles POST /api/products/bulk-insert
func (h *ProductHandler) BulkInsertProducts(w http.ResponseWriter, r *http.Request) {
	var reqs []ProductRequest
	if err := httputil.DecodeJSON(w, r, &reqs); err != nil || len(reqs) == 0 {
		httputil.WriteError(w, r, apperrors.InvalidInput("Invalid input, expected a non-empty array of products"), h.logger)
		return
	}

	all := &validator.ValidationError{}
	fields := make([]domain.ProductFields, 0, len(reqs))
	for i, req := range reqs {
		if err := validator.Validate(req); err != nil {
			var ve *validator.ValidationError
			if !errors.As(err, &ve) {
				httputil.WriteError(w, r, err, h.logger)
				return
			}
			all.Merge(fmt.Sprintf("[%d].", i), ve)
			continue
		}
		fields = append(fields, req.fields())
	}
	if err := all.OrNil(); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	products, err := h.service.BulkInsert(r.Context(), middleware.UserIDFromContext(r.Context()), fields)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, BulkInsertResponse{
		Message: fmt.Sprintf("%d products inserted successfully", len(products)),
		Data:    products,
	})
}

// UpdateProduct handles PUT /api/products/{id}
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	p, err := h.service.UpdateProduct(r.Context(), chi.URLParam(r, "id"), req.fields())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// DeleteProduct handles DELETE /api/products/{id}
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Product removed")
}

// Stats handles GET /api/admin/stats
func (h *ProductHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, st)
}
