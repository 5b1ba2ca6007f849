package orders

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kelrowe/quadmart/internal/market"
	"github.com/kelrowe/quadmart/internal/session"
	"github.com/kelrowe/quadmart/internal/store"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) (*Engine, *market.DB) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	db := market.Open(st)
	engine, err := New(db, WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine, db
}

func seedBuyer(t *testing.T, db *market.DB, id string, points int) {
	t.Helper()
	err := db.Buyers.Add(market.Buyer{ID: id, Name: "Buyer " + id, Email: id + "@campus.test", FidelityPoints: points})
	if err != nil {
		t.Fatalf("seed buyer: %v", err)
	}
}

func seedProduct(t *testing.T, db *market.DB, id, sellerID string, price, quantity, bonus int, promo *market.Promotion) {
	t.Helper()
	err := db.Products.Add(market.Product{
		ID:          id,
		SellerID:    sellerID,
		Name:        "Product " + id,
		Category:    "books",
		PriceCents:  price,
		Quantity:    quantity,
		BonusPoints: bonus,
		Promotion:   promo,
		CreatedAt:   testNow,
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
}

func addToCart(t *testing.T, db *market.DB, buyerID, productID string, quantity int) {
	t.Helper()
	err := db.CartEntries.Add(market.CartEntry{
		ID:        market.NewID(),
		BuyerID:   buyerID,
		ProductID: productID,
		Quantity:  quantity,
		AddedAt:   testNow,
	})
	if err != nil {
		t.Fatalf("seed cart entry: %v", err)
	}
}

func checkoutRequest(points int) CheckoutRequest {
	return CheckoutRequest{
		Shipping: market.ShippingInfo{
			Name:       "Jo Campus",
			Street:     "1 Quad Walk",
			City:       "Collegeville",
			PostalCode: "00001",
			Country:    "US",
		},
		Payment: market.PaymentInfo{
			CardHolder:  "Jo Campus",
			CardNumber:  "4242424242424242",
			ExpiryMonth: 12,
			ExpiryYear:  2030,
		},
		FidelityPoints: points,
	}
}

func TestCheckoutSplitsCartBySeller(t *testing.T) {
	engine, db := newHarness(t)
	seedBuyer(t, db, "buyer-1", 40)
	seedProduct(t, db, "p-1", "seller-a", 500, 10, 0, nil)
	seedProduct(t, db, "p-2", "seller-b", 300, 10, 0, nil)
	seedProduct(t, db, "p-3", "seller-a", 200, 10, 0, nil)
	addToCart(t, db, "buyer-1", "p-1", 1)
	addToCart(t, db, "buyer-1", "p-2", 2)
	addToCart(t, db, "buyer-1", "p-3", 1)

	created, err := engine.Checkout(session.Buyer("buyer-1"), checkoutRequest(40))
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 orders for 2 sellers, got %d", len(created))
	}
	if created[0].SellerID != "seller-a" || created[1].SellerID != "seller-b" {
		t.Fatalf("expected first-cart-appearance seller order, got %s then %s",
			created[0].SellerID, created[1].SellerID)
	}
	for _, order := range created {
		for _, line := range order.Lines {
			product, err := db.Products.GetByID(line.ProductID)
			if err != nil {
				t.Fatalf("load product: %v", err)
			}
			if product.SellerID != order.SellerID {
				t.Fatalf("order %s contains %s owned by %s", order.ID, line.ProductID, product.SellerID)
			}
		}
	}
	gross := 500 + 2*300 + 200
	totals, redeemedCents := 0, 0
	for _, order := range created {
		totals += order.TotalCents
		redeemedCents += order.PointsSpent * CentsPerPoint
		if order.Allocation.TotalCents() != order.SubtotalCents {
			t.Fatalf("allocation %+v does not cover subtotal %d", order.Allocation, order.SubtotalCents)
		}
	}
	if totals+redeemedCents != gross {
		t.Fatalf("totals %d + redeemed %d != gross %d", totals, redeemedCents, gross)
	}
}

func TestCheckoutPointCreditFollowsCartOrder(t *testing.T) {
	engine, db := newHarness(t)
	seedBuyer(t, db, "buyer-1", 100)
	seedProduct(t, db, "p-late", "seller-b", 400, 5, 0, nil)
	seedProduct(t, db, "p-early", "seller-a", 200, 5, 0, nil)
	// seller-a entered the cart first, so its order absorbs the credit.
	addToCart(t, db, "buyer-1", "p-early", 1)
	addToCart(t, db, "buyer-1", "p-late", 1)

	created, err := engine.Checkout(session.Buyer("buyer-1"), checkoutRequest(100))
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(created))
	}
	first, second := created[0], created[1]
	if first.SellerID != "seller-a" {
		t.Fatalf("expected seller-a order first, got %s", first.SellerID)
	}
	if first.TotalCents != 0 || first.PointsSpent != 100 {
		t.Fatalf("first order should consume the full credit: %+v", first)
	}
	if second.TotalCents != 400 || second.PointsSpent != 0 {
		t.Fatalf("second order should receive no credit: %+v", second)
	}
}

func TestCheckoutIsAtomicOnInsufficientStock(t *testing.T) {
	engine, db := newHarness(t)
	seedBuyer(t, db, "buyer-1", 50)
	seedProduct(t, db, "p-1", "seller-a", 500, 10, 0, nil)
	seedProduct(t, db, "p-2", "seller-b", 300, 1, 0, nil)
	addToCart(t, db, "buyer-1", "p-1", 2)
	addToCart(t, db, "buyer-1", "p-2", 5)

	_, err := engine.Checkout(session.Buyer("buyer-1"), checkoutRequest(50))
	if !errors.Is(err, market.ErrInvalidInput) {
		t.Fatalf("expected validation failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "Product p-2") || !strings.Contains(err.Error(), "1 left") {
		t.Fatalf("error should name the product and remaining stock: %v", err)
	}

	orders, err := db.Orders.All()
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("no orders may be created on a failed checkout, got %d", len(orders))
	}
	entries, err := db.CartEntries.All()
	if err != nil {
		t.Fatalf("list cart: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("cart must be untouched, got %d entries", len(entries))
	}
	p1, err := db.Products.GetByID("p-1")
	if err != nil {
		t.Fatalf("load p-1: %v", err)
	}
	if p1.Quantity != 10 {
		t.Fatalf("inventory must be untouched, p-1 quantity is %d", p1.Quantity)
	}
	buyer, err := db.Buyers.GetByID("buyer-1")
	if err != nil {
		t.Fatalf("load buyer: %v", err)
	}
	if buyer.FidelityPoints != 50 {
		t.Fatalf("points must be untouched, balance is %d", buyer.FidelityPoints)
	}
}

func TestCheckoutFidelityScenario(t *testing.T) {
	// 100 points (worth 200c) against a 150c subtotal: the order costs
	// nothing and only the 75 needed points are consumed.
	engine, db := newHarness(t)
	seedBuyer(t, db, "buyer-1", 100)
	seedProduct(t, db, "p-1", "seller-a", 150, 3, 0, nil)
	addToCart(t, db, "buyer-1", "p-1", 1)

	created, err := engine.Checkout(session.Buyer("buyer-1"), checkoutRequest(100))
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected 1 order, got %d", len(created))
	}
	order := created[0]
	if order.TotalCents != 0 {
		t.Fatalf("expected fully point-paid order, total is %d", order.TotalCents)
	}
	if order.PointsSpent != 75 {
		t.Fatalf("expected 75 points spent, got %d", order.PointsSpent)
	}
	if order.Allocation.PointCents != 150 || order.Allocation.MoneyCents != 0 {
		t.Fatalf("unexpected allocation %+v", order.Allocation)
	}
	buyer, err := db.Buyers.GetByID("buyer-1")
	if err != nil {
		t.Fatalf("load buyer: %v", err)
	}
	if buyer.FidelityPoints != 25 {
		t.Fatalf("expected 25 points remaining, got %d", buyer.FidelityPoints)
	}
}

func TestCheckoutAppliesPromotionsAndBonuses(t *testing.T) {
	engine, db := newHarness(t)
	seedBuyer(t, db, "buyer-1", 0)
	active := &market.Promotion{DiscountCents: 100, BonusPoints: 3, EndDate: testNow.AddDate(0, 0, 5)}
	expired := &market.Promotion{DiscountCents: 100, BonusPoints: 3, EndDate: testNow.AddDate(0, 0, -1)}
	seedProduct(t, db, "p-promo", "seller-a", 500, 5, 2, active)
	seedProduct(t, db, "p-stale", "seller-a", 500, 5, 2, expired)
	addToCart(t, db, "buyer-1", "p-promo", 2)
	addToCart(t, db, "buyer-1", "p-stale", 1)

	created, err := engine.Checkout(session.Buyer("buyer-1"), checkoutRequest(0))
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	order := created[0]
	// 2 x (500-100) active promo + 1 x 500 expired promo.
	if order.SubtotalCents != 1300 || order.TotalCents != 1300 {
		t.Fatalf("unexpected totals: %+v", order)
	}
	// 2 x (2+3) promo bonus + 1 x 2 base only.
	if order.PointsEarned != 12 {
		t.Fatalf("expected 12 points earned, got %d", order.PointsEarned)
	}
	buyer, err := db.Buyers.GetByID("buyer-1")
	if err != nil {
		t.Fatalf("load buyer: %v", err)
	}
	if buyer.FidelityPoints != 12 {
		t.Fatalf("expected earned points credited, balance is %d", buyer.FidelityPoints)
	}
}

func TestCheckoutDecrementsInventoryAndClearsCart(t *testing.T) {
	engine, db := newHarness(t)
	seedBuyer(t, db, "buyer-1", 0)
	seedProduct(t, db, "p-1", "seller-a", 500, 10, 0, nil)
	addToCart(t, db, "buyer-1", "p-1", 4)

	if _, err := engine.Checkout(session.Buyer("buyer-1"), checkoutRequest(0)); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	product, err := db.Products.GetByID("p-1")
	if err != nil {
		t.Fatalf("load product: %v", err)
	}
	if product.Quantity != 6 {
		t.Fatalf("expected quantity 6 after purchase, got %d", product.Quantity)
	}
	entries, err := db.CartEntries.All()
	if err != nil {
		t.Fatalf("list cart: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("cart must be empty after checkout, got %d entries", len(entries))
	}
	notes, err := db.Notifications.Where(func(n market.Notification) bool {
		return n.RecipientID == "seller-a"
	})
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(notes) != 1 || notes[0].Title != "Order received" {
		t.Fatalf("expected one order-received notification, got %+v", notes)
	}
}

func TestCheckoutRejectsOverdrawnPoints(t *testing.T) {
	engine, db := newHarness(t)
	seedBuyer(t, db, "buyer-1", 10)
	seedProduct(t, db, "p-1", "seller-a", 500, 10, 0, nil)
	addToCart(t, db, "buyer-1", "p-1", 1)

	_, err := engine.Checkout(session.Buyer("buyer-1"), checkoutRequest(50))
	if !errors.Is(err, market.ErrInvalidInput) {
		t.Fatalf("expected validation failure, got %v", err)
	}
}

func freshOrder(t *testing.T, engine *Engine, db *market.DB) market.Order {
	t.Helper()
	seedBuyer(t, db, "buyer-1", 0)
	seedProduct(t, db, "p-1", "seller-a", 500, 10, 0, nil)
	addToCart(t, db, "buyer-1", "p-1", 1)
	created, err := engine.Checkout(session.Buyer("buyer-1"), checkoutRequest(0))
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	return created[0]
}

func TestShipGuardsStateAndShipment(t *testing.T) {
	engine, db := newHarness(t)
	order := freshOrder(t, engine, db)

	// Delivery cannot be confirmed before shipping.
	err := engine.ConfirmDelivery(session.Buyer("buyer-1"), order.ID)
	if !errors.Is(err, market.ErrIllegalTransition) {
		t.Fatalf("expected illegal transition, got %v", err)
	}

	expected := testNow.AddDate(0, 0, 3)
	if err := engine.Ship(session.Seller("seller-a"), order.ID, "CampusPost", "TRK-1", expected); err != nil {
		t.Fatalf("ship: %v", err)
	}
	stored, err := engine.Get(order.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.State != market.OrderInTransit || stored.Shipment == nil {
		t.Fatalf("expected in-transit order with shipment, got %+v", stored)
	}

	// Shipping twice is refused and mutates nothing.
	err = engine.Ship(session.Seller("seller-a"), order.ID, "CampusPost", "TRK-2", expected)
	if !errors.Is(err, market.ErrIllegalTransition) {
		t.Fatalf("expected illegal transition on re-ship, got %v", err)
	}
	if !strings.Contains(err.Error(), "shipment information cannot be changed") {
		t.Fatalf("unexpected re-ship message: %v", err)
	}
	stored, err = engine.Get(order.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Shipment.TrackingNumber != "TRK-1" {
		t.Fatalf("shipment must be unchanged, got %+v", stored.Shipment)
	}

	if err := engine.ConfirmDelivery(session.Buyer("buyer-1"), order.ID); err != nil {
		t.Fatalf("confirm delivery: %v", err)
	}
	stored, err = engine.Get(order.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.State != market.OrderDelivered || !stored.Shipment.Delivered {
		t.Fatalf("expected delivered order, got %+v", stored)
	}
	if !stored.Shipment.DeliveredAt.Equal(testNow) {
		t.Fatalf("expected reception date stamped, got %v", stored.Shipment.DeliveredAt)
	}
}

func TestCancelRefundsPointsWithoutRestock(t *testing.T) {
	engine, db := newHarness(t)
	seedBuyer(t, db, "buyer-1", 100)
	seedProduct(t, db, "p-1", "seller-a", 150, 3, 0, nil)
	addToCart(t, db, "buyer-1", "p-1", 1)
	created, err := engine.Checkout(session.Buyer("buyer-1"), checkoutRequest(100))
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	order := created[0]

	if err := engine.Cancel(session.Buyer("buyer-1"), order.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	stored, err := engine.Get(order.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.State != market.OrderCancelled {
		t.Fatalf("expected cancelled order, got %s", stored.State)
	}
	buyer, err := db.Buyers.GetByID("buyer-1")
	if err != nil {
		t.Fatalf("load buyer: %v", err)
	}
	if buyer.FidelityPoints != 100 {
		t.Fatalf("expected spent points refunded, balance is %d", buyer.FidelityPoints)
	}
	product, err := db.Products.GetByID("p-1")
	if err != nil {
		t.Fatalf("load product: %v", err)
	}
	if product.Quantity != 2 {
		t.Fatalf("cancel must not restock, quantity is %d", product.Quantity)
	}

	// Cancelled is terminal.
	err = engine.Cancel(session.Buyer("buyer-1"), order.ID)
	if !errors.Is(err, market.ErrIllegalTransition) {
		t.Fatalf("expected illegal transition on double cancel, got %v", err)
	}
}

func TestUnknownOrderIsNotFound(t *testing.T) {
	engine, _ := newHarness(t)
	_, err := engine.Get("nope")
	if !errors.Is(err, market.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	err = engine.Ship(session.Seller("seller-a"), "nope", "CampusPost", "TRK-1", testNow)
	if !errors.Is(err, market.ErrNotFound) {
		t.Fatalf("expected not found on ship, got %v", err)
	}
}
