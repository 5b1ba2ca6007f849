// internal/market/orders/pricing.go
//
// The pricing routine used by checkout and reused by the ticketing
// engine's exchange flow, so the two can never drift apart.

package orders

import (
	"time"

	"github.com/kelrowe/quadmart/internal/market"
)

// CentsPerPoint is the fixed value of one fidelity point.
const CentsPerPoint = 2

// LineItem pairs a catalog product with a purchase quantity.
type LineItem struct {
	Product  market.Product
	Quantity int
}

// PriceLineItems freezes order lines for the given items at the given
// moment: each unit price is the list price minus any active promotion
// discount. Returns the frozen lines, their subtotal, and the fidelity
// points the purchase earns (base bonus plus active promotional bonus,
// independent of discounts).
func PriceLineItems(items []LineItem, now time.Time) (lines []market.OrderLine, subtotalCents, bonusPoints int) {
	lines = make([]market.OrderLine, 0, len(items))
	for _, item := range items {
		line := market.OrderLine{
			ProductID:      item.Product.ID,
			Name:           item.Product.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.Product.UnitPriceCents(now),
		}
		lines = append(lines, line)
		subtotalCents += line.LineTotalCents()
		bonusPoints += item.Product.UnitBonusPoints(now) * item.Quantity
	}
	return lines, subtotalCents, bonusPoints
}

// CostAfterFidelityPoints applies a point credit to a cost at the fixed
// two-cents-per-point rate. Points are only consumed in whole units and
// never push the cost below zero; the unconsumed remainder is returned so
// callers can carry it to the next sub-order.
func CostAfterFidelityPoints(costCents, points int) (remainingCost, remainingPoints int) {
	usable := costCents / CentsPerPoint
	if points < usable {
		usable = points
	}
	return costCents - usable*CentsPerPoint, points - usable
}
