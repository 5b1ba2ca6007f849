package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kelrowe/quadmart/internal/market"
)

func TestCostAfterFidelityPoints(t *testing.T) {
	cases := []struct {
		name       string
		cost       int
		points     int
		wantCost   int
		wantPoints int
	}{
		{"partial credit", 100, 20, 60, 0},
		{"exact credit", 100, 50, 0, 0},
		{"surplus credit", 100, 100, 0, 50},
		{"no points", 100, 0, 100, 0},
		{"free order", 0, 30, 0, 30},
		{"odd cost keeps the last cent", 101, 100, 1, 50},
		{"scenario: 150c against 100 points", 150, 100, 0, 25},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cost, points := CostAfterFidelityPoints(tc.cost, tc.points)
			require.Equal(t, tc.wantCost, cost, "remaining cost")
			require.Equal(t, tc.wantPoints, points, "remaining points")
		})
	}
}

func TestPriceLineItemsFreezesPromotionPricing(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	active := &market.Promotion{DiscountCents: 150, BonusPoints: 4, EndDate: now}
	expired := &market.Promotion{DiscountCents: 150, BonusPoints: 4, EndDate: now.AddDate(0, 0, -1)}

	items := []LineItem{
		{Product: market.Product{ID: "p-1", Name: "A", PriceCents: 400, BonusPoints: 1, Promotion: active}, Quantity: 2},
		{Product: market.Product{ID: "p-2", Name: "B", PriceCents: 300, BonusPoints: 1, Promotion: expired}, Quantity: 1},
		{Product: market.Product{ID: "p-3", Name: "C", PriceCents: 100}, Quantity: 3},
	}
	lines, subtotal, bonus := PriceLineItems(items, now)

	require.Len(t, lines, 3)
	// Promotion end date is inclusive, so p-1 is discounted today.
	require.Equal(t, 250, lines[0].UnitPriceCents)
	require.Equal(t, 300, lines[1].UnitPriceCents)
	require.Equal(t, 100, lines[2].UnitPriceCents)
	require.Equal(t, 2*250+300+3*100, subtotal)
	// 2x(1+4) active bonus, 1x1 expired keeps base only, 3x0.
	require.Equal(t, 11, bonus)
}

func TestPromotionDiscountCannotGoNegative(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	product := market.Product{
		ID:         "p-1",
		PriceCents: 100,
		Promotion:  &market.Promotion{DiscountCents: 100, EndDate: now.AddDate(0, 0, 1)},
	}
	require.Equal(t, 0, product.UnitPriceCents(now))
}
