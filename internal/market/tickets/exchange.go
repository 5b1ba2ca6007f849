// internal/market/tickets/exchange.go
//
// The exchange flow. An exchange ticket carries a session-scoped
// replacement cart; completing the exchange prices the replacement items
// with the same routine checkout uses, settles the value delta against
// the returned lines, and links a replacement order to the ticket.

package tickets

import (
	"errors"
	"fmt"

	"github.com/kelrowe/quadmart/internal/market"
	"github.com/kelrowe/quadmart/internal/market/orders"
	"github.com/kelrowe/quadmart/internal/session"
	"github.com/kelrowe/quadmart/internal/store"
)

// ExchangeSettlement reports how a completed exchange was settled.
type ExchangeSettlement struct {
	ReturnedValueCents    int
	ReplacementValueCents int
	// ChargedCents is positive when the replacement was worth more than
	// the returned goods; the buyer owes the difference.
	ChargedCents int
	// RefundCents is positive when the returned goods were worth more.
	RefundCents int
	// RefundPoints is the fidelity-point part of the refund, covering the
	// portion of the original order that was point-paid.
	RefundPoints     int
	ReplacementOrder market.Order
}

// AddExchangeItem puts a replacement product into the ticket's
// session-scoped exchange cart. The cart is in-memory only: abandoning
// the session abandons the draft.
func (e *Engine) AddExchangeItem(sess session.Session, ticketID, productID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("tickets: %w: quantity must be positive", market.ErrInvalidInput)
	}
	ticket, err := e.Get(ticketID)
	if err != nil {
		return err
	}
	if !sess.IsBuyer() || ticket.BuyerID != sess.UserID {
		return fmt.Errorf("tickets: %w: ticket %q does not belong to this buyer", market.ErrInvalidInput, ticketID)
	}
	if ticket.Resolution != market.ResolutionExchange {
		return fmt.Errorf("tickets: %w: ticket %q is not an exchange", market.ErrInvalidInput, ticketID)
	}
	if ticket.Terminal() {
		return fmt.Errorf("tickets: %w: ticket %q is %s", market.ErrIllegalTransition, ticketID, ticket.State)
	}
	product, err := e.db.Products.GetByID(productID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("tickets: product %q: %w", productID, market.ErrNotFound)
		}
		return fmt.Errorf("tickets: %w: %v", market.ErrStoreFailure, err)
	}
	// The replacement order goes to the ticket's seller; another seller's
	// product cannot be exchanged into it.
	if product.SellerID != ticket.SellerID {
		return fmt.Errorf("tickets: %w: product %q is not sold by this seller", market.ErrInvalidInput, productID)
	}
	cart := e.exchangeCarts[ticketID]
	for i := range cart {
		if cart[i].ProductID == productID {
			cart[i].Quantity += quantity
			e.exchangeCarts[ticketID] = cart
			return nil
		}
	}
	e.exchangeCarts[ticketID] = append(cart, market.TicketLine{ProductID: productID, Quantity: quantity})
	return nil
}

// ExchangeCart returns the ticket's draft replacement cart.
func (e *Engine) ExchangeCart(ticketID string) []market.TicketLine {
	return append([]market.TicketLine(nil), e.exchangeCarts[ticketID]...)
}

// CompleteExchange settles an exchange ticket once the returned goods are
// back. The replacement items are priced with the checkout pricing
// routine; a positive delta is charged as money on the replacement order,
// a negative delta is refunded via return credit plus the fidelity-point
// equivalent of whatever part of the original order was point-paid.
func (e *Engine) CompleteExchange(sess session.Session, ticketID string) (ExchangeSettlement, error) {
	ticket, err := e.Get(ticketID)
	if err != nil {
		return ExchangeSettlement{}, err
	}
	if !sess.IsBuyer() || ticket.BuyerID != sess.UserID {
		return ExchangeSettlement{}, fmt.Errorf("tickets: %w: ticket %q does not belong to this buyer",
			market.ErrInvalidInput, ticketID)
	}
	if ticket.Resolution != market.ResolutionExchange {
		return ExchangeSettlement{}, fmt.Errorf("tickets: %w: ticket %q is not an exchange",
			market.ErrInvalidInput, ticketID)
	}
	if ticket.State != market.TicketReturnReceived {
		return ExchangeSettlement{}, fmt.Errorf("tickets: %w: ticket %q is %s, exchange cannot complete",
			market.ErrIllegalTransition, ticketID, ticket.State)
	}
	if ticket.ReplacementOrderID != "" {
		return ExchangeSettlement{}, fmt.Errorf("tickets: %w: ticket %q already has a replacement order",
			market.ErrIllegalTransition, ticketID)
	}
	cart := e.exchangeCarts[ticketID]
	if len(cart) == 0 {
		return ExchangeSettlement{}, fmt.Errorf("tickets: %w: exchange cart is empty", market.ErrInvalidInput)
	}

	order, err := e.db.Orders.GetByID(ticket.OrderID)
	if err != nil {
		return ExchangeSettlement{}, fmt.Errorf("tickets: %w: %v", market.ErrStoreFailure, err)
	}

	// Validate replacement stock before mutating anything.
	items := make([]orders.LineItem, 0, len(cart))
	for _, line := range cart {
		product, err := e.db.Products.GetByID(line.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ExchangeSettlement{}, fmt.Errorf("tickets: product %q: %w", line.ProductID, market.ErrNotFound)
			}
			return ExchangeSettlement{}, fmt.Errorf("tickets: %w: %v", market.ErrStoreFailure, err)
		}
		if product.SellerID != ticket.SellerID {
			return ExchangeSettlement{}, fmt.Errorf("tickets: %w: product %q is not sold by this seller",
				market.ErrInvalidInput, line.ProductID)
		}
		if line.Quantity > product.Quantity {
			return ExchangeSettlement{}, fmt.Errorf("tickets: %w: insufficient inventory for %s, %d left",
				market.ErrInvalidInput, product.Name, product.Quantity)
		}
		items = append(items, orders.LineItem{Product: product, Quantity: line.Quantity})
	}

	now := e.clock()
	replacementLines, replacementValue, _ := orders.PriceLineItems(items, now)

	returnedValue := 0
	for _, line := range ticket.Lines {
		if ordered, ok := order.Line(line.ProductID); ok {
			returnedValue += ordered.UnitPriceCents * line.Quantity
		}
	}

	for _, item := range items {
		quantity := item.Quantity
		err := e.db.Products.UpdateByID(item.Product.ID, func(p *market.Product) {
			p.Quantity -= quantity
		})
		if err != nil {
			return ExchangeSettlement{}, fmt.Errorf("tickets: %w: %v", market.ErrStoreFailure, err)
		}
	}

	settlement := ExchangeSettlement{
		ReturnedValueCents:    returnedValue,
		ReplacementValueCents: replacementValue,
	}
	allocation := market.PaymentAllocation{}
	if replacementValue >= returnedValue {
		settlement.ChargedCents = replacementValue - returnedValue
		allocation.MoneyCents = settlement.ChargedCents
		allocation.ReturnCreditCents = returnedValue
	} else {
		refund := returnedValue - replacementValue
		allocation.ReturnCreditCents = replacementValue
		// Refund point-paid value as points first, the rest as money.
		pointRefundCents := order.Allocation.PointCents
		if pointRefundCents > refund {
			pointRefundCents = refund
		}
		settlement.RefundPoints = pointRefundCents / orders.CentsPerPoint
		settlement.RefundCents = refund - pointRefundCents
		if settlement.RefundPoints > 0 {
			points := settlement.RefundPoints
			err := e.db.Buyers.UpdateByID(ticket.BuyerID, func(b *market.Buyer) {
				b.FidelityPoints += points
			})
			if err != nil {
				return ExchangeSettlement{}, fmt.Errorf("tickets: %w: %v", market.ErrStoreFailure, err)
			}
		}
	}

	replacement := market.Order{
		ID:            market.NewID(),
		BuyerID:       ticket.BuyerID,
		SellerID:      ticket.SellerID,
		Lines:         replacementLines,
		SubtotalCents: replacementValue,
		TotalCents:    allocation.MoneyCents,
		Allocation:    allocation,
		Shipping:      order.Shipping,
		Billing:       order.Billing,
		PaymentMethod: order.PaymentMethod,
		State:         market.OrderInProduction,
		CreatedAt:     now,
	}
	if err := e.db.Orders.Add(replacement); err != nil {
		return ExchangeSettlement{}, fmt.Errorf("tickets: %w: %v", market.ErrStoreFailure, err)
	}
	if err := e.db.Tickets.UpdateByID(ticketID, func(t *market.Ticket) {
		t.ReplacementOrderID = replacement.ID
	}); err != nil {
		return ExchangeSettlement{}, fmt.Errorf("tickets: %w: %v", market.ErrStoreFailure, err)
	}
	delete(e.exchangeCarts, ticketID)
	settlement.ReplacementOrder = replacement

	e.notify(ticket.SellerID, "Exchange confirmed",
		fmt.Sprintf("Ticket %s: replacement order %s was created.", ticketID, replacement.ID), now)
	e.notify(ticket.BuyerID, "Exchange settled",
		fmt.Sprintf("Ticket %s: charged %dc, refunded %dc and %d points.",
			ticketID, settlement.ChargedCents, settlement.RefundCents, settlement.RefundPoints), now)
	return settlement, nil
}
