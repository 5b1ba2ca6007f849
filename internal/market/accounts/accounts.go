// internal/market/accounts/accounts.go
//
// Buyer and seller accounts: registration, login, moderation of fidelity
// balances, and the notification inbox. Passwords are hashed with FNV-1a,
// matching the original system; hardening is explicitly out of scope.

package accounts

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kelrowe/quadmart/internal/market"
	"github.com/kelrowe/quadmart/internal/session"
	"github.com/kelrowe/quadmart/internal/store"
)

// Service exposes account operations over the marketplace store.
type Service struct {
	db       *market.DB
	validate *validator.Validate
	clock    func() time.Time
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

// New wires an account service to the marketplace store.
func New(db *market.DB, opts ...Option) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("accounts: market db is required")
	}
	svc := &Service{db: db, validate: validator.New(), clock: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// HashPassword is the non-cryptographic FNV-1a hash the original system
// used. Kept as-is; replacing it is out of scope.
func HashPassword(password string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(password))
	return strconv.FormatUint(h.Sum64(), 16)
}

func (s *Service) checkCredentials(email, password string) error {
	if err := s.validate.Var(email, "required,email"); err != nil {
		return fmt.Errorf("accounts: %w: a valid email is required", market.ErrInvalidInput)
	}
	if len(password) < 4 {
		return fmt.Errorf("accounts: %w: password must be at least 4 characters", market.ErrInvalidInput)
	}
	return nil
}

// RegisterBuyer creates a buyer account with a zero point balance.
func (s *Service) RegisterBuyer(name, email, address, password string) (market.Buyer, error) {
	if name == "" {
		return market.Buyer{}, fmt.Errorf("accounts: %w: name is required", market.ErrInvalidInput)
	}
	if err := s.checkCredentials(email, password); err != nil {
		return market.Buyer{}, err
	}
	taken, err := s.db.Buyers.Where(func(b market.Buyer) bool { return b.Email == email })
	if err != nil {
		return market.Buyer{}, fmt.Errorf("accounts: %w: %v", market.ErrStoreFailure, err)
	}
	if len(taken) > 0 {
		return market.Buyer{}, fmt.Errorf("accounts: %w: email %q is already registered", market.ErrInvalidInput, email)
	}
	buyer := market.Buyer{
		ID:           market.NewID(),
		Name:         name,
		Email:        email,
		Address:      address,
		PasswordHash: HashPassword(password),
		CreatedAt:    s.clock(),
	}
	if err := s.db.Buyers.Add(buyer); err != nil {
		return market.Buyer{}, fmt.Errorf("accounts: %w: %v", market.ErrStoreFailure, err)
	}
	return buyer, nil
}

// RegisterSeller creates a seller account.
func (s *Service) RegisterSeller(name, storeName, email, password string) (market.Seller, error) {
	if name == "" || storeName == "" {
		return market.Seller{}, fmt.Errorf("accounts: %w: name and store name are required", market.ErrInvalidInput)
	}
	if err := s.checkCredentials(email, password); err != nil {
		return market.Seller{}, err
	}
	taken, err := s.db.Sellers.Where(func(sl market.Seller) bool { return sl.Email == email })
	if err != nil {
		return market.Seller{}, fmt.Errorf("accounts: %w: %v", market.ErrStoreFailure, err)
	}
	if len(taken) > 0 {
		return market.Seller{}, fmt.Errorf("accounts: %w: email %q is already registered", market.ErrInvalidInput, email)
	}
	seller := market.Seller{
		ID:           market.NewID(),
		Name:         name,
		StoreName:    storeName,
		Email:        email,
		PasswordHash: HashPassword(password),
		CreatedAt:    s.clock(),
	}
	if err := s.db.Sellers.Add(seller); err != nil {
		return market.Seller{}, fmt.Errorf("accounts: %w: %v", market.ErrStoreFailure, err)
	}
	return seller, nil
}

// LoginBuyer authenticates a buyer and returns a buyer session.
func (s *Service) LoginBuyer(email, password string) (market.Buyer, session.Session, error) {
	matched, err := s.db.Buyers.Where(func(b market.Buyer) bool {
		return b.Email == email && b.PasswordHash == HashPassword(password)
	})
	if err != nil {
		return market.Buyer{}, session.Session{}, fmt.Errorf("accounts: %w: %v", market.ErrStoreFailure, err)
	}
	if len(matched) == 0 {
		return market.Buyer{}, session.Session{}, fmt.Errorf("accounts: %w: unknown email or wrong password", market.ErrInvalidInput)
	}
	return matched[0], session.Buyer(matched[0].ID), nil
}

// LoginSeller authenticates a seller and returns a seller session.
func (s *Service) LoginSeller(email, password string) (market.Seller, session.Session, error) {
	matched, err := s.db.Sellers.Where(func(sl market.Seller) bool {
		return sl.Email == email && sl.PasswordHash == HashPassword(password)
	})
	if err != nil {
		return market.Seller{}, session.Session{}, fmt.Errorf("accounts: %w: %v", market.ErrStoreFailure, err)
	}
	if len(matched) == 0 {
		return market.Seller{}, session.Session{}, fmt.Errorf("accounts: %w: unknown email or wrong password", market.ErrInvalidInput)
	}
	return matched[0], session.Seller(matched[0].ID), nil
}

// AdjustFidelityPoints is the moderation hook: it may push a balance
// negative, unlike normal spending. The buyer is notified of the change.
func (s *Service) AdjustFidelityPoints(buyerID string, delta int, reason string) error {
	err := s.db.Buyers.UpdateByID(buyerID, func(b *market.Buyer) {
		b.FidelityPoints += delta
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("accounts: buyer %q: %w", buyerID, market.ErrNotFound)
		}
		return fmt.Errorf("accounts: %w: %v", market.ErrStoreFailure, err)
	}
	note := market.NewNotification(buyerID, "Fidelity balance adjusted",
		fmt.Sprintf("Your balance changed by %d points: %s", delta, reason), s.clock())
	if err := s.db.Notifications.Add(note); err != nil {
		return fmt.Errorf("accounts: %w: %v", market.ErrStoreFailure, err)
	}
	return nil
}

// Inbox lists the session user's notifications, oldest first.
func (s *Service) Inbox(sess session.Session) ([]market.Notification, error) {
	notes, err := s.db.Notifications.Where(func(n market.Notification) bool {
		return n.RecipientID == sess.UserID
	})
	if err != nil {
		return nil, fmt.Errorf("accounts: %w: %v", market.ErrStoreFailure, err)
	}
	return notes, nil
}

// DeleteNotification removes one of the session user's notifications.
func (s *Service) DeleteNotification(sess session.Session, notificationID string) error {
	err := s.db.Notifications.RemoveWhere(func(n market.Notification) bool {
		return n.ID == notificationID && n.RecipientID == sess.UserID
	})
	if errors.Is(err, store.ErrNoMatch) {
		return fmt.Errorf("accounts: notification %q: %w", notificationID, market.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("accounts: %w: %v", market.ErrStoreFailure, err)
	}
	return nil
}
