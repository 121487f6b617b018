package domain

import (
	"time"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Review rating bounds.
const (
	MinRating = 1
	MaxRating = 5
)

// ErrAlreadyReviewed is returned when a user reviews the same product twice.
var ErrAlreadyReviewed = apperrors.Duplicate("ALREADY_REVIEWED", "Product already reviewed")

// Review is embedded in its product and immutable once added. Name is the
// author's display name when the review was written.
type Review struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	User      string    `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
}

// HasReviewFrom reports whether userID already reviewed p.
func (p *Product) HasReviewFrom(userID string) bool {
	for _, r := range p.Reviews {
		if r.User == userID {
			return true
		}
	}
	return false
}

// AddReview appends r and recomputes Rating and NumReviews. A second review
// from the same user fails with ErrAlreadyReviewed and leaves p unchanged.
func (p *Product) AddReview(r Review, now time.Time) error {
	if p.HasReviewFrom(r.User) {
		return ErrAlreadyReviewed
	}
	p.Reviews = append(p.Reviews, r)
	p.recomputeRating()
	p.UpdatedAt = now
	return nil
}

func (p *Product) recomputeRating() {
	p.NumReviews = len(p.Reviews)
	if p.NumReviews == 0 {
		p.Rating = 0
		return
	}
	sum := 0
	for _, r := range p.Reviews {
		sum += r.Rating
	}
	p.Rating = float64(sum) / float64(p.NumReviews)
}
