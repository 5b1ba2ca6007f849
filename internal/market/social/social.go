// internal/market/social/social.go
//
// Likes and reviews. Thin by design: toggle-and-count plus the rating
// aggregate, included because a first review grants fidelity points.

package social

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelrowe/quadmart/internal/market"
	"github.com/kelrowe/quadmart/internal/session"
	"github.com/kelrowe/quadmart/internal/store"
)

// DefaultReviewReward is the fidelity points granted for reviewing a
// product for the first time.
const DefaultReviewReward = 5

// Service exposes engagement operations over the marketplace store.
type Service struct {
	db           *market.DB
	reviewReward int
	clock        func() time.Time
}

// Option customizes the service instance.
type Option func(*Service)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithReviewReward overrides the per-review fidelity reward.
func WithReviewReward(points int) Option {
	return func(s *Service) {
		if points >= 0 {
			s.reviewReward = points
		}
	}
}

// New wires a social service to the marketplace store.
func New(db *market.DB, opts ...Option) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("social: market db is required")
	}
	svc := &Service{db: db, reviewReward: DefaultReviewReward, clock: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ToggleLike flips the session user's like on a product and keeps the
// product's like count in step. Returns whether the product is liked
// after the call.
func (s *Service) ToggleLike(sess session.Session, productID string) (bool, error) {
	if _, err := s.db.Products.GetByID(productID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, fmt.Errorf("social: product %q: %w", productID, market.ErrNotFound)
		}
		return false, fmt.Errorf("social: %w: %v", market.ErrStoreFailure, err)
	}
	err := s.db.Likes.RemoveWhere(func(l market.Like) bool {
		return l.ProductID == productID && l.UserID == sess.UserID
	})
	switch {
	case err == nil:
		err = s.db.Products.UpdateByID(productID, func(p *market.Product) {
			if p.Likes > 0 {
				p.Likes--
			}
		})
		if err != nil {
			return false, fmt.Errorf("social: %w: %v", market.ErrStoreFailure, err)
		}
		return false, nil
	case errors.Is(err, store.ErrNoMatch):
		like := market.Like{
			ID:        market.NewID(),
			ProductID: productID,
			UserID:    sess.UserID,
			CreatedAt: s.clock(),
		}
		if err := s.db.Likes.Add(like); err != nil {
			return false, fmt.Errorf("social: %w: %v", market.ErrStoreFailure, err)
		}
		err = s.db.Products.UpdateByID(productID, func(p *market.Product) {
			p.Likes++
		})
		if err != nil {
			return false, fmt.Errorf("social: %w: %v", market.ErrStoreFailure, err)
		}
		return true, nil
	default:
		return false, fmt.Errorf("social: %w: %v", market.ErrStoreFailure, err)
	}
}

// AddReview records one buyer's rating of a product, updates the
// product's aggregate, and grants the review fidelity reward. One review
// per (buyer, product); later attempts are rejected.
func (s *Service) AddReview(sess session.Session, productID string, rating int, text string) (market.Review, error) {
	if !sess.IsBuyer() {
		return market.Review{}, fmt.Errorf("social: %w: buyer session required", market.ErrInvalidInput)
	}
	if rating < 1 || rating > 5 {
		return market.Review{}, fmt.Errorf("social: %w: rating must be between 1 and 5", market.ErrInvalidInput)
	}
	if _, err := s.db.Products.GetByID(productID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return market.Review{}, fmt.Errorf("social: product %q: %w", productID, market.ErrNotFound)
		}
		return market.Review{}, fmt.Errorf("social: %w: %v", market.ErrStoreFailure, err)
	}
	existing, err := s.db.Reviews.Where(func(r market.Review) bool {
		return r.ProductID == productID && r.BuyerID == sess.UserID
	})
	if err != nil {
		return market.Review{}, fmt.Errorf("social: %w: %v", market.ErrStoreFailure, err)
	}
	if len(existing) > 0 {
		return market.Review{}, fmt.Errorf("social: %w: product %q was already reviewed", market.ErrInvalidInput, productID)
	}
	review := market.Review{
		ID:        market.NewID(),
		ProductID: productID,
		BuyerID:   sess.UserID,
		Rating:    rating,
		Text:      text,
		CreatedAt: s.clock(),
	}
	if err := s.db.Reviews.Add(review); err != nil {
		return market.Review{}, fmt.Errorf("social: %w: %v", market.ErrStoreFailure, err)
	}
	err = s.db.Products.UpdateByID(productID, func(p *market.Product) {
		p.RatingSum += rating
		p.RatingCount++
	})
	if err != nil {
		return market.Review{}, fmt.Errorf("social: %w: %v", market.ErrStoreFailure, err)
	}
	if s.reviewReward > 0 {
		err = s.db.Buyers.UpdateByID(sess.UserID, func(b *market.Buyer) {
			b.FidelityPoints += s.reviewReward
		})
		if err != nil {
			return market.Review{}, fmt.Errorf("social: %w: %v", market.ErrStoreFailure, err)
		}
	}
	return review, nil
}
