// internal/market/catalog/catalog.go
//
// Catalog and inventory management for sellers, plus browsing for
// everyone. The order engine consumes these records for pricing and stock
// decrement; this service owns listing-time validation.

package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelrowe/quadmart/internal/market"
	"github.com/kelrowe/quadmart/internal/session"
	"github.com/kelrowe/quadmart/internal/store"
)

// Service exposes catalog operations over the marketplace store.
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

// New wires a catalog service to the marketplace store.
func New(db *market.DB, opts ...Option) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("catalog: market db is required")
	}
	svc := &Service{db: db, clock: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ListingRequest describes a new product listing.
type ListingRequest struct {
	Name        string
	Description string
	Category    string
	SubCategory string
	PriceCents  int
	Quantity    int
	BonusPoints int
}

// List creates a product owned by the session seller.
func (s *Service) List(sess session.Session, req ListingRequest) (market.Product, error) {
	if !sess.IsSeller() {
		return market.Product{}, fmt.Errorf("catalog: %w: seller session required", market.ErrInvalidInput)
	}
	if req.Name == "" || req.Category == "" {
		return market.Product{}, fmt.Errorf("catalog: %w: name and category are required", market.ErrInvalidInput)
	}
	if req.PriceCents <= 0 {
		return market.Product{}, fmt.Errorf("catalog: %w: price must be positive", market.ErrInvalidInput)
	}
	if req.Quantity < 0 {
		return market.Product{}, fmt.Errorf("catalog: %w: quantity cannot be negative", market.ErrInvalidInput)
	}
	if req.BonusPoints < 0 {
		return market.Product{}, fmt.Errorf("catalog: %w: bonus points cannot be negative", market.ErrInvalidInput)
	}
	product := market.Product{
		ID:          market.NewID(),
		SellerID:    sess.UserID,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		SubCategory: req.SubCategory,
		PriceCents:  req.PriceCents,
		Quantity:    req.Quantity,
		BonusPoints: req.BonusPoints,
		CreatedAt:   s.clock(),
	}
	if err := s.db.Products.Add(product); err != nil {
		return market.Product{}, fmt.Errorf("catalog: %w: %v", market.ErrStoreFailure, err)
	}
	return product, nil
}

// SetPromotion attaches a time-bounded promotion to one of the session
// seller's products. The discount may not exceed the list price.
func (s *Service) SetPromotion(sess session.Session, productID string, promo market.Promotion) error {
	product, err := s.owned(sess, productID)
	if err != nil {
		return err
	}
	if promo.DiscountCents < 0 || promo.BonusPoints < 0 {
		return fmt.Errorf("catalog: %w: promotion values cannot be negative", market.ErrInvalidInput)
	}
	if promo.DiscountCents > product.PriceCents {
		return fmt.Errorf("catalog: %w: discount %dc exceeds the %dc price",
			market.ErrInvalidInput, promo.DiscountCents, product.PriceCents)
	}
	if !promo.ActiveAt(s.clock()) {
		return fmt.Errorf("catalog: %w: promotion end date is already past", market.ErrInvalidInput)
	}
	err = s.db.Products.UpdateByID(productID, func(p *market.Product) {
		p.Promotion = &promo
	})
	if err != nil {
		return fmt.Errorf("catalog: %w: %v", market.ErrStoreFailure, err)
	}
	return nil
}

// ClearPromotion detaches a product's promotion.
func (s *Service) ClearPromotion(sess session.Session, productID string) error {
	if _, err := s.owned(sess, productID); err != nil {
		return err
	}
	err := s.db.Products.UpdateByID(productID, func(p *market.Product) {
		p.Promotion = nil
	})
	if err != nil {
		return fmt.Errorf("catalog: %w: %v", market.ErrStoreFailure, err)
	}
	return nil
}

// Restock adds units to one of the session seller's products.
func (s *Service) Restock(sess session.Session, productID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("catalog: %w: restock quantity must be positive", market.ErrInvalidInput)
	}
	if _, err := s.owned(sess, productID); err != nil {
		return err
	}
	err := s.db.Products.UpdateByID(productID, func(p *market.Product) {
		p.Quantity += quantity
	})
	if err != nil {
		return fmt.Errorf("catalog: %w: %v", market.ErrStoreFailure, err)
	}
	return nil
}

// Get returns one product by id.
func (s *Service) Get(productID string) (market.Product, error) {
	product, err := s.db.Products.GetByID(productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return market.Product{}, fmt.Errorf("catalog: product %q: %w", productID, market.ErrNotFound)
		}
		return market.Product{}, fmt.Errorf("catalog: %w: %v", market.ErrStoreFailure, err)
	}
	return product, nil
}

// Browse lists products, optionally narrowed to a category (case
// insensitive). An empty category lists everything.
func (s *Service) Browse(category string) ([]market.Product, error) {
	category = strings.ToLower(category)
	matched, err := s.db.Products.Where(func(p market.Product) bool {
		return category == "" || strings.ToLower(p.Category) == category
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: %w: %v", market.ErrStoreFailure, err)
	}
	return matched, nil
}

// ForSeller lists the session seller's own products.
func (s *Service) ForSeller(sess session.Session) ([]market.Product, error) {
	if !sess.IsSeller() {
		return nil, fmt.Errorf("catalog: %w: seller session required", market.ErrInvalidInput)
	}
	matched, err := s.db.Products.Where(func(p market.Product) bool {
		return p.SellerID == sess.UserID
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: %w: %v", market.ErrStoreFailure, err)
	}
	return matched, nil
}

func (s *Service) owned(sess session.Session, productID string) (market.Product, error) {
	product, err := s.Get(productID)
	if err != nil {
		return market.Product{}, err
	}
	if !sess.IsSeller() || product.SellerID != sess.UserID {
		return market.Product{}, fmt.Errorf("catalog: %w: product %q does not belong to this seller",
			market.ErrInvalidInput, productID)
	}
	return product, nil
}
