// Package pagination parses page query parameters and computes page counts.
package pagination

import (
	"math"
	"net/http"
	"strconv"
	"strings"
)

// CatalogPageSize is the fixed number of products per catalog page.
const CatalogPageSize = 12

// Params holds the resolved page window for a listing query.
type Params struct {
	Page     int
	PageSize int
	Offset   int
}

// New resolves a page window. Pages below 1 are treated as page 1. An
// offset that would overflow saturates at math.MaxInt, which is past the end
// of any listing.
func New(page, pageSize int) Params {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = CatalogPageSize
	}
	offset := math.MaxInt
	if page-1 <= (math.MaxInt-pageSize)/pageSize {
		offset = (page - 1) * pageSize
	}
	return Params{
		Page:     page,
		PageSize: pageSize,
		Offset:   offset,
	}
}

// FromRequest reads the "page" query parameter. A missing, non-numeric or
// non-positive value resolves to page 1 instead of failing the request.
func FromRequest(r *http.Request, pageSize int) Params {
	page, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("page")))
	if err != nil {
		page = 1
	}
	return New(page, pageSize)
}

// TotalPages returns ceil(total / pageSize). Zero matches yield zero pages.
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
