package market

import "time"

// Promotion is a time-bounded discount and/or bonus-point offer attached
// to a product. It auto-expires: once the current date passes EndDate it
// is treated as inactive everywhere, without anyone clearing the field.
type Promotion struct {
	DiscountCents int       `json:"discount_cents"`
	BonusPoints   int       `json:"bonus_points"`
	EndDate       time.Time `json:"end_date"`
}

// ActiveAt reports whether the promotion still applies on the given day.
// The end date is inclusive: a promotion ending today is still active.
func (p Promotion) ActiveAt(now time.Time) bool {
	y, m, d := p.EndDate.Date()
	endOfDay := time.Date(y, m, d, 23, 59, 59, 0, time.UTC)
	return !now.UTC().After(endOfDay)
}

// Product is a catalog listing owned by one seller.
//
// Invariants: Quantity >= 0, and an attached promotion's discount never
// exceeds PriceCents (enforced at listing time).
type Product struct {
	ID          string     `json:"id"`
	SellerID    string     `json:"seller_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category"`
	SubCategory string     `json:"sub_category,omitempty"`
	PriceCents  int        `json:"price_cents"`
	Quantity    int        `json:"quantity"`
	BonusPoints int        `json:"bonus_points,omitempty"`
	Promotion   *Promotion `json:"promotion,omitempty"`
	RatingSum   int        `json:"rating_sum,omitempty"`
	RatingCount int        `json:"rating_count,omitempty"`
	Likes       int        `json:"likes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// EntityID implements store.Entity.
func (p Product) EntityID() string { return p.ID }

// UnitPriceCents is the effective per-unit price: list price minus any
// active promotion discount.
func (p Product) UnitPriceCents(now time.Time) int {
	price := p.PriceCents
	if p.Promotion != nil && p.Promotion.ActiveAt(now) {
		price -= p.Promotion.DiscountCents
	}
	if price < 0 {
		price = 0
	}
	return price
}

// UnitBonusPoints is the fidelity points earned per unit: the base bonus
// plus any active promotional bonus. Independent of discounts applied.
func (p Product) UnitBonusPoints(now time.Time) int {
	points := p.BonusPoints
	if p.Promotion != nil && p.Promotion.ActiveAt(now) {
		points += p.Promotion.BonusPoints
	}
	return points
}

// AverageRating is the review aggregate, zero when unreviewed.
func (p Product) AverageRating() float64 {
	if p.RatingCount == 0 {
		return 0
	}
	return float64(p.RatingSum) / float64(p.RatingCount)
}
