// internal/market/carts/carts.go
//
// Cart management. A cart is the set of cart entries belonging to one
// buyer, kept in the order entries were first added; that order later
// decides how checkout groups sellers and consumes fidelity credit.

package carts

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelrowe/quadmart/internal/market"
	"github.com/kelrowe/quadmart/internal/session"
	"github.com/kelrowe/quadmart/internal/store"
)

// Service exposes cart operations over the marketplace store.
type Service struct {
	db    *market.DB
	clock func() time.Time
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

// New wires a cart service to the marketplace store.
func New(db *market.DB, opts ...Option) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("carts: market db is required")
	}
	svc := &Service{db: db, clock: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Add puts quantity units of a product into the buyer's cart. Adding a
// product already present increases that entry's quantity instead of
// creating a duplicate.
func (s *Service) Add(sess session.Session, productID string, quantity int) error {
	if !sess.IsBuyer() {
		return fmt.Errorf("carts: %w: buyer session required", market.ErrInvalidInput)
	}
	if quantity <= 0 {
		return fmt.Errorf("carts: %w: quantity must be positive", market.ErrInvalidInput)
	}
	if _, err := s.db.Products.GetByID(productID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("carts: product %q: %w", productID, market.ErrNotFound)
		}
		return fmt.Errorf("carts: %w: %v", market.ErrStoreFailure, err)
	}
	err := s.db.CartEntries.UpdateWhere(
		func(e market.CartEntry) bool {
			return e.BuyerID == sess.UserID && e.ProductID == productID
		},
		func(e *market.CartEntry) { e.Quantity += quantity },
	)
	if errors.Is(err, store.ErrNoMatch) {
		entry := market.CartEntry{
			ID:        market.NewID(),
			BuyerID:   sess.UserID,
			ProductID: productID,
			Quantity:  quantity,
			AddedAt:   s.clock(),
		}
		if err := s.db.CartEntries.Add(entry); err != nil {
			return fmt.Errorf("carts: %w: %v", market.ErrStoreFailure, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("carts: %w: %v", market.ErrStoreFailure, err)
	}
	return nil
}

// SetQuantity overwrites the quantity of an existing entry.
func (s *Service) SetQuantity(sess session.Session, productID string, quantity int) error {
	if !sess.IsBuyer() {
		return fmt.Errorf("carts: %w: buyer session required", market.ErrInvalidInput)
	}
	if quantity <= 0 {
		return fmt.Errorf("carts: %w: quantity must be positive", market.ErrInvalidInput)
	}
	err := s.db.CartEntries.UpdateWhere(
		func(e market.CartEntry) bool {
			return e.BuyerID == sess.UserID && e.ProductID == productID
		},
		func(e *market.CartEntry) { e.Quantity = quantity },
	)
	if errors.Is(err, store.ErrNoMatch) {
		return fmt.Errorf("carts: product %q not in cart: %w", productID, market.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("carts: %w: %v", market.ErrStoreFailure, err)
	}
	return nil
}

// Remove drops one product from the buyer's cart.
func (s *Service) Remove(sess session.Session, productID string) error {
	if !sess.IsBuyer() {
		return fmt.Errorf("carts: %w: buyer session required", market.ErrInvalidInput)
	}
	err := s.db.CartEntries.RemoveWhere(func(e market.CartEntry) bool {
		return e.BuyerID == sess.UserID && e.ProductID == productID
	})
	if errors.Is(err, store.ErrNoMatch) {
		return fmt.Errorf("carts: product %q not in cart: %w", productID, market.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("carts: %w: %v", market.ErrStoreFailure, err)
	}
	return nil
}

// Entries lists the buyer's cart in first-added order.
func (s *Service) Entries(sess session.Session) ([]market.CartEntry, error) {
	if !sess.IsBuyer() {
		return nil, fmt.Errorf("carts: %w: buyer session required", market.ErrInvalidInput)
	}
	entries, err := s.db.CartEntries.Where(func(e market.CartEntry) bool {
		return e.BuyerID == sess.UserID
	})
	if err != nil {
		return nil, fmt.Errorf("carts: %w: %v", market.ErrStoreFailure, err)
	}
	return entries, nil
}

// Clear empties the buyer's cart. Clearing an already-empty cart is a
// no-op, not an error.
func (s *Service) Clear(sess session.Session) error {
	if !sess.IsBuyer() {
		return fmt.Errorf("carts: %w: buyer session required", market.ErrInvalidInput)
	}
	err := s.db.CartEntries.RemoveWhere(func(e market.CartEntry) bool {
		return e.BuyerID == sess.UserID
	})
	if err != nil && !errors.Is(err, store.ErrNoMatch) {
		return fmt.Errorf("carts: %w: %v", market.ErrStoreFailure, err)
	}
	return nil
}
