package market

import "time"

// Review is one buyer's rating of a product. The product carries the
// aggregate (RatingSum/RatingCount); the review records the raw entry.
type Review struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	BuyerID   string    `json:"buyer_id"`
	Rating    int       `json:"rating"`
	Text      string    `json:"text,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EntityID implements store.Entity.
func (r Review) EntityID() string { return r.ID }

// Like marks that a user liked a product. Likes toggle: adding an existing
// (user, product) pair removes the record instead.
type Like struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// EntityID implements store.Entity.
func (l Like) EntityID() string { return l.ID }
