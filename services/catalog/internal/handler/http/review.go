package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/validator"
	"github.com/utafrali/storefront/services/catalog/internal/service"
)

// ReviewHandler handles review submissions.
type ReviewHandler struct {
	service *service.ProductService
	logger  *slog.Logger
}

func NewReviewHandler(svc *service.ProductService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{service: svc, logger: logger}
}

// ReviewRequest is the JSON body of a review submission.
type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"required,notblank,max=2000"`
}

// CreateReview handles POST /api/products/{id}/reviews. The author comes
// from the bearer token, never from the body.
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	author := service.Author{}
	if c := middleware.ClaimsFromContext(r.Context()); c != nil {
		author.UserID = c.UserID
		author.Name = c.Name
	}

	err := h.service.AddReview(r.Context(), chi.URLParam(r, "id"), author, service.ReviewInput{
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteMessage(w, http.StatusCreated, "Review added")
}
