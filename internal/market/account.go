package market

import "time"

// Buyer is a purchasing account with a fidelity-point balance. The balance
// never goes negative through normal spending; moderation adjustments may
// push it below zero.
type Buyer struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Address        string    `json:"address,omitempty"`
	PasswordHash   string    `json:"password_hash"`
	FidelityPoints int       `json:"fidelity_points"`
	CreatedAt      time.Time `json:"created_at"`
}

// EntityID implements store.Entity.
func (b Buyer) EntityID() string { return b.ID }

// Seller is a selling account that owns catalog listings and fulfills the
// orders referencing them.
type Seller struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	StoreName    string    `json:"store_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// EntityID implements store.Entity.
func (s Seller) EntityID() string { return s.ID }

// CartEntry is one (buyer, product, quantity) line in the shared cart.
// There is at most one entry per (buyer, product) pair; adding the same
// product again increases the quantity instead of duplicating the entry.
type CartEntry struct {
	ID        string    `json:"id"`
	BuyerID   string    `json:"buyer_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

// EntityID implements store.Entity.
func (c CartEntry) EntityID() string { return c.ID }
