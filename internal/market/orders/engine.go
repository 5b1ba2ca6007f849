// internal/market/orders/engine.go
//
// The order engine: converts a buyer's cart into one immutable order per
// seller and drives each order through its state machine.
//
// Write ordering matters: the store has no cross-kind transactions, so
// checkout validates everything first, then decrements inventory, then
// creates orders, then settles the buyer's point balance and clears the
// cart. A crash mid-sequence leaves a documented partial-failure window;
// nothing here retries or hides it.

package orders

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kelrowe/quadmart/internal/market"
	"github.com/kelrowe/quadmart/internal/session"
	"github.com/kelrowe/quadmart/internal/store"
)

// Engine coordinates checkout and order lifecycle transitions.
type Engine struct {
	db       *market.DB
	validate *validator.Validate
	clock    func() time.Time
}

// Option customizes the engine instance.
type Option func(*Engine)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// New wires an order engine to the marketplace store.
func New(db *market.DB, opts ...Option) (*Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("orders: market db is required")
	}
	engine := &Engine{
		db:       db,
		validate: validator.New(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// CheckoutRequest carries everything checkout needs beyond the cart
// itself. FidelityPoints is how many points the buyer wants to redeem
// against the subtotals, at two cents per point.
type CheckoutRequest struct {
	Shipping       market.ShippingInfo `validate:"required"`
	Billing        market.ShippingInfo `validate:"-"`
	Payment        market.PaymentInfo  `validate:"required"`
	FidelityPoints int                 `validate:"min=0"`
}

// checkoutLine is one validated cart entry with its product loaded.
type checkoutLine struct {
	product  market.Product
	quantity int
}

// sellerGroup is the per-seller partition of the cart, in order of the
// seller's first appearance in the cart. That order is the documented
// tie-break for fidelity-credit consumption.
type sellerGroup struct {
	sellerID string
	items    []checkoutLine
}

// Checkout turns the buyer's whole cart into one order per seller.
//
// Either every per-seller order is created and the cart is emptied, or a
// validation failure aborts before any state is touched. The buyer's
// requested point redemption is consumed as a running credit, group by
// group in first-cart-appearance order.
func (e *Engine) Checkout(sess session.Session, req CheckoutRequest) ([]market.Order, error) {
	if !sess.IsBuyer() {
		return nil, fmt.Errorf("orders: %w: buyer session required", market.ErrInvalidInput)
	}
	if err := e.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("orders: %w: %v", market.ErrInvalidInput, err)
	}
	buyer, err := e.db.Buyers.GetByID(sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("orders: buyer %q: %w", sess.UserID, market.ErrNotFound)
		}
		return nil, fmt.Errorf("orders: %w: %v", market.ErrStoreFailure, err)
	}
	if req.FidelityPoints > buyer.FidelityPoints {
		return nil, fmt.Errorf("orders: %w: %d fidelity points requested, balance is %d",
			market.ErrInvalidInput, req.FidelityPoints, buyer.FidelityPoints)
	}

	entries, err := e.db.CartEntries.Where(func(c market.CartEntry) bool {
		return c.BuyerID == sess.UserID
	})
	if err != nil {
		return nil, fmt.Errorf("orders: %w: %v", market.ErrStoreFailure, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("orders: %w: cart is empty", market.ErrInvalidInput)
	}

	// Validate every entry against current stock before mutating anything,
	// so a shortage on a later entry cannot strand earlier decrements.
	groups, err := e.buildGroups(entries)
	if err != nil {
		return nil, err
	}

	now := e.clock()
	for _, group := range groups {
		for _, item := range group.items {
			quantity := item.quantity
			err := e.db.Products.UpdateByID(item.product.ID, func(p *market.Product) {
				p.Quantity -= quantity
			})
			if err != nil {
				return nil, fmt.Errorf("orders: %w: %v", market.ErrStoreFailure, err)
			}
		}
	}

	billing := req.Billing
	if billing.Name == "" {
		billing = req.Shipping
	}

	remaining := req.FidelityPoints
	earnedTotal, spentTotal := 0, 0
	created := make([]market.Order, 0, len(groups))
	for _, group := range groups {
		items := make([]LineItem, 0, len(group.items))
		for _, item := range group.items {
			items = append(items, LineItem{Product: item.product, Quantity: item.quantity})
		}
		lines, subtotal, earned := PriceLineItems(items, now)
		total, left := CostAfterFidelityPoints(subtotal, remaining)
		spent := remaining - left
		remaining = left

		order := market.Order{
			ID:            market.NewID(),
			BuyerID:       sess.UserID,
			SellerID:      group.sellerID,
			Lines:         lines,
			SubtotalCents: subtotal,
			TotalCents:    total,
			PointsEarned:  earned,
			PointsSpent:   spent,
			Allocation: market.PaymentAllocation{
				MoneyCents: total,
				PointCents: spent * CentsPerPoint,
			},
			Shipping:      req.Shipping,
			Billing:       billing,
			PaymentMethod: req.Payment.Masked(),
			State:         market.OrderInProduction,
			CreatedAt:     now,
		}
		if err := e.db.Orders.Add(order); err != nil {
			return nil, fmt.Errorf("orders: %w: %v", market.ErrStoreFailure, err)
		}
		e.notify(group.sellerID, "Order received",
			fmt.Sprintf("Order %s from %s is waiting for fulfillment.", order.ID, buyer.Name), now)
		earnedTotal += earned
		spentTotal += spent
		created = append(created, order)
	}

	delta := earnedTotal - spentTotal
	err = e.db.Buyers.UpdateByID(sess.UserID, func(b *market.Buyer) {
		b.FidelityPoints += delta
	})
	if err != nil {
		return nil, fmt.Errorf("orders: %w: %v", market.ErrStoreFailure, err)
	}

	err = e.db.CartEntries.RemoveWhere(func(c market.CartEntry) bool {
		return c.BuyerID == sess.UserID
	})
	if err != nil && !errors.Is(err, store.ErrNoMatch) {
		return nil, fmt.Errorf("orders: %w: %v", market.ErrStoreFailure, err)
	}
	return created, nil
}

// buildGroups loads each entry's product, checks stock, and partitions the
// cart by seller in first-appearance order.
func (e *Engine) buildGroups(entries []market.CartEntry) ([]sellerGroup, error) {
	var groups []sellerGroup
	index := map[string]int{}
	for _, entry := range entries {
		if entry.Quantity <= 0 {
			return nil, fmt.Errorf("orders: %w: cart entry %q has no quantity", market.ErrInvalidInput, entry.ProductID)
		}
		product, err := e.db.Products.GetByID(entry.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("orders: product %q: %w", entry.ProductID, market.ErrNotFound)
			}
			return nil, fmt.Errorf("orders: %w: %v", market.ErrStoreFailure, err)
		}
		if entry.Quantity > product.Quantity {
			return nil, fmt.Errorf("orders: %w: insufficient inventory for %s, %d left",
				market.ErrInvalidInput, product.Name, product.Quantity)
		}
		at, ok := index[product.SellerID]
		if !ok {
			at = len(groups)
			index[product.SellerID] = at
			groups = append(groups, sellerGroup{sellerID: product.SellerID})
		}
		groups[at].items = append(groups[at].items, checkoutLine{product: product, quantity: entry.Quantity})
	}
	return groups, nil
}

// Get returns one order by id.
func (e *Engine) Get(orderID string) (market.Order, error) {
	order, err := e.db.Orders.GetByID(orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return market.Order{}, fmt.Errorf("orders: order %q: %w", orderID, market.ErrNotFound)
		}
		return market.Order{}, fmt.Errorf("orders: %w: %v", market.ErrStoreFailure, err)
	}
	return order, nil
}

// ForBuyer lists the session buyer's orders, oldest first.
func (e *Engine) ForBuyer(sess session.Session) ([]market.Order, error) {
	if !sess.IsBuyer() {
		return nil, fmt.Errorf("orders: %w: buyer session required", market.ErrInvalidInput)
	}
	return e.listWhere(func(o market.Order) bool { return o.BuyerID == sess.UserID })
}

// ForSeller lists the session seller's orders, oldest first.
func (e *Engine) ForSeller(sess session.Session) ([]market.Order, error) {
	if !sess.IsSeller() {
		return nil, fmt.Errorf("orders: %w: seller session required", market.ErrInvalidInput)
	}
	return e.listWhere(func(o market.Order) bool { return o.SellerID == sess.UserID })
}

func (e *Engine) listWhere(pred func(market.Order) bool) ([]market.Order, error) {
	matched, err := e.db.Orders.Where(pred)
	if err != nil {
		return nil, fmt.Errorf("orders: %w: %v", market.ErrStoreFailure, err)
	}
	return matched, nil
}

// Ship attaches shipment information and moves the order to InTransit.
// Legal only for the owning seller, from InProduction, and only once.
func (e *Engine) Ship(sess session.Session, orderID, carrier, trackingNumber string, expected time.Time) error {
	if carrier == "" || trackingNumber == "" {
		return fmt.Errorf("orders: %w: carrier and tracking number are required", market.ErrInvalidInput)
	}
	order, err := e.Get(orderID)
	if err != nil {
		return err
	}
	if !sess.IsSeller() || order.SellerID != sess.UserID {
		return fmt.Errorf("orders: %w: order %q does not belong to this seller", market.ErrInvalidInput, orderID)
	}
	if order.State != market.OrderInProduction || order.Shipment != nil {
		return fmt.Errorf("orders: %w: shipment information cannot be changed", market.ErrIllegalTransition)
	}
	now := e.clock()
	shipment := &market.Shipment{
		TrackingNumber:   trackingNumber,
		Carrier:          carrier,
		ExpectedDelivery: expected,
		CreatedAt:        now,
	}
	err = e.db.Orders.UpdateByID(orderID, func(o *market.Order) {
		o.State = market.OrderInTransit
		o.Shipment = shipment
	})
	if err != nil {
		return fmt.Errorf("orders: %w: %v", market.ErrStoreFailure, err)
	}
	e.notify(order.BuyerID, "Order shipped",
		fmt.Sprintf("Order %s is on its way via %s (tracking %s).", orderID, carrier, trackingNumber), now)
	return nil
}

// ConfirmDelivery records the buyer receiving the parcel. Legal only for
// the owning buyer and only from InTransit.
func (e *Engine) ConfirmDelivery(sess session.Session, orderID string) error {
	order, err := e.Get(orderID)
	if err != nil {
		return err
	}
	if !sess.IsBuyer() || order.BuyerID != sess.UserID {
		return fmt.Errorf("orders: %w: order %q does not belong to this buyer", market.ErrInvalidInput, orderID)
	}
	if order.State != market.OrderInTransit {
		return fmt.Errorf("orders: %w: order %q is %s, not in transit", market.ErrIllegalTransition, orderID, order.State)
	}
	now := e.clock()
	err = e.db.Orders.UpdateByID(orderID, func(o *market.Order) {
		o.State = market.OrderDelivered
		if o.Shipment != nil {
			o.Shipment.Delivered = true
			o.Shipment.DeliveredAt = now
		}
	})
	if err != nil {
		return fmt.Errorf("orders: %w: %v", market.ErrStoreFailure, err)
	}
	e.notify(order.BuyerID, "Delivery confirmed",
		fmt.Sprintf("Order %s was marked as delivered.", orderID), now)
	return nil
}

// Cancel aborts an order that has not shipped yet. Fidelity points spent
// on the order are refunded to the buyer; inventory is not restocked.
// Either the owning buyer or the owning seller may cancel.
func (e *Engine) Cancel(sess session.Session, orderID string) error {
	order, err := e.Get(orderID)
	if err != nil {
		return err
	}
	if sess.UserID != order.BuyerID && sess.UserID != order.SellerID {
		return fmt.Errorf("orders: %w: order %q does not belong to this account", market.ErrInvalidInput, orderID)
	}
	if order.State != market.OrderInProduction {
		return fmt.Errorf("orders: %w: order %q is %s and can no longer be cancelled",
			market.ErrIllegalTransition, orderID, order.State)
	}
	err = e.db.Orders.UpdateByID(orderID, func(o *market.Order) {
		o.State = market.OrderCancelled
	})
	if err != nil {
		return fmt.Errorf("orders: %w: %v", market.ErrStoreFailure, err)
	}
	if order.PointsSpent > 0 {
		err = e.db.Buyers.UpdateByID(order.BuyerID, func(b *market.Buyer) {
			b.FidelityPoints += order.PointsSpent
		})
		if err != nil {
			return fmt.Errorf("orders: %w: %v", market.ErrStoreFailure, err)
		}
	}
	e.notify(order.BuyerID, "Order cancelled",
		fmt.Sprintf("Order %s was cancelled.", orderID), e.clock())
	return nil
}

// notify enqueues a notification record; delivery failures are not the
// engine's concern and an enqueue fault must not fail the operation that
// already committed.
func (e *Engine) notify(recipientID, title, body string, now time.Time) {
	_ = e.db.Notifications.Add(market.NewNotification(recipientID, title, body, now))
}
