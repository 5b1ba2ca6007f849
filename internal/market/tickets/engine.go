// internal/market/tickets/engine.go
//
// The ticketing engine: creates support tickets against delivered (or, for
// "not received", in-transit) orders and drives them through the return /
// replacement state machine.
//
// There is no scheduler in this system, so the 30-day return window is
// enforced lazily: every read or transition first re-evaluates the state
// against the clock. The evaluation is pure and only the state field is
// persisted when it changes, so repeated reads are idempotent.

package tickets

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelrowe/quadmart/internal/market"
	"github.com/kelrowe/quadmart/internal/session"
	"github.com/kelrowe/quadmart/internal/store"
)

// DefaultReturnWindow is how long a buyer has to hand the return parcel to
// a carrier before the ticket auto-cancels.
const DefaultReturnWindow = 30 * 24 * time.Hour

// Engine coordinates ticket creation and lifecycle transitions.
type Engine struct {
	db     *market.DB
	window time.Duration
	clock  func() time.Time

	// exchangeCarts holds the session-scoped replacement carts of open
	// exchange tickets. Deliberately not persisted: abandoning the session
	// abandons the draft.
	exchangeCarts map[string][]market.TicketLine
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

// WithReturnWindow overrides the auto-cancel window.
func WithReturnWindow(window time.Duration) Option {
	return func(e *Engine) {
		if window > 0 {
			e.window = window
		}
	}
}

// New wires a ticketing engine to the marketplace store.
func New(db *market.DB, opts ...Option) (*Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("tickets: market db is required")
	}
	engine := &Engine{
		db:            db,
		window:        DefaultReturnWindow,
		clock:         time.Now,
		exchangeCarts: map[string][]market.TicketLine{},
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// CreateRequest describes a new support ticket.
type CreateRequest struct {
	OrderID     string
	Lines       []market.TicketLine
	Cause       market.TicketCause
	Resolution  market.TicketResolution
	Description string
}

// Create opens a ticket against one order. The order must be delivered,
// or in transit when the cause is "not received"; the affected lines must
// be a subset of the order's lines.
func (e *Engine) Create(sess session.Session, req CreateRequest) (market.Ticket, error) {
	if !sess.IsBuyer() {
		return market.Ticket{}, fmt.Errorf("tickets: %w: buyer session required", market.ErrInvalidInput)
	}
	order, err := e.db.Orders.GetByID(req.OrderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return market.Ticket{}, fmt.Errorf("tickets: order %q: %w", req.OrderID, market.ErrNotFound)
		}
		return market.Ticket{}, fmt.Errorf("tickets: %w: %v", market.ErrStoreFailure, err)
	}
	if order.BuyerID != sess.UserID {
		return market.Ticket{}, fmt.Errorf("tickets: %w: order %q does not belong to this buyer",
			market.ErrInvalidInput, req.OrderID)
	}
	switch {
	case order.State == market.OrderDelivered:
	case order.State == market.OrderInTransit && req.Cause == market.CauseNotReceived:
	default:
		return market.Ticket{}, fmt.Errorf("tickets: %w: order %q is %s and cannot receive a %s ticket",
			market.ErrIllegalTransition, req.OrderID, order.State, req.Cause)
	}
	switch req.Cause {
	case market.CauseWrongItem, market.CauseNotReceived, market.CauseDefective, market.CauseOther:
	default:
		return market.Ticket{}, fmt.Errorf("tickets: %w: unknown cause %q", market.ErrInvalidInput, req.Cause)
	}
	resolution := req.Resolution
	if resolution == "" {
		resolution = market.ResolutionReturn
	}
	switch resolution {
	case market.ResolutionReturn, market.ResolutionExchange, market.ResolutionReplacement:
	default:
		return market.Ticket{}, fmt.Errorf("tickets: %w: unknown resolution %q", market.ErrInvalidInput, resolution)
	}
	if len(req.Lines) == 0 {
		return market.Ticket{}, fmt.Errorf("tickets: %w: at least one affected line is required", market.ErrInvalidInput)
	}
	seen := map[string]bool{}
	for _, line := range req.Lines {
		if seen[line.ProductID] {
			return market.Ticket{}, fmt.Errorf("tickets: %w: duplicate line for product %q",
				market.ErrInvalidInput, line.ProductID)
		}
		seen[line.ProductID] = true
		ordered, ok := order.Line(line.ProductID)
		if !ok {
			return market.Ticket{}, fmt.Errorf("tickets: %w: product %q is not on order %q",
				market.ErrInvalidInput, line.ProductID, req.OrderID)
		}
		if line.Quantity <= 0 || line.Quantity > ordered.Quantity {
			return market.Ticket{}, fmt.Errorf("tickets: %w: quantity %d for product %q exceeds the ordered %d",
				market.ErrInvalidInput, line.Quantity, line.ProductID, ordered.Quantity)
		}
	}

	ticket := market.Ticket{
		ID:          market.NewID(),
		OrderID:     order.ID,
		BuyerID:     order.BuyerID,
		SellerID:    order.SellerID,
		Cause:       req.Cause,
		Resolution:  resolution,
		Lines:       append([]market.TicketLine(nil), req.Lines...),
		Description: req.Description,
		State:       market.TicketOpen,
		CreatedAt:   e.clock(),
	}
	if err := e.db.Tickets.Add(ticket); err != nil {
		return market.Ticket{}, fmt.Errorf("tickets: %w: %v", market.ErrStoreFailure, err)
	}
	e.notify(ticket.SellerID, "Support ticket opened",
		fmt.Sprintf("Ticket %s was opened against order %s (%s).", ticket.ID, order.ID, req.Cause), ticket.CreatedAt)
	return ticket, nil
}

// effectiveState evaluates the lazy auto-cancel rule without side effects:
// a ticket whose return window elapsed before a return shipment existed
// reads as Cancelled.
func (e *Engine) effectiveState(t market.Ticket, now time.Time) market.TicketState {
	if t.Terminal() || t.ReturnStarted() {
		return t.State
	}
	if now.After(t.CreatedAt.Add(e.window)) {
		return market.TicketCancelled
	}
	return t.State
}

// Get returns one ticket with the auto-cancel rule applied. A forced
// cancellation is persisted (state field only), so the transition is
// idempotent across reads and visible to other readers of the collection.
func (e *Engine) Get(ticketID string) (market.Ticket, error) {
	ticket, err := e.db.Tickets.GetByID(ticketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return market.Ticket{}, fmt.Errorf("tickets: ticket %q: %w", ticketID, market.ErrNotFound)
		}
		return market.Ticket{}, fmt.Errorf("tickets: %w: %v", market.ErrStoreFailure, err)
	}
	state := e.effectiveState(ticket, e.clock())
	if state != ticket.State {
		err := e.db.Tickets.UpdateByID(ticketID, func(t *market.Ticket) {
			t.State = state
		})
		if err != nil {
			return market.Ticket{}, fmt.Errorf("tickets: %w: %v", market.ErrStoreFailure, err)
		}
		ticket.State = state
	}
	return ticket, nil
}

// ForBuyer lists the session buyer's tickets with auto-cancel applied.
func (e *Engine) ForBuyer(sess session.Session) ([]market.Ticket, error) {
	if !sess.IsBuyer() {
		return nil, fmt.Errorf("tickets: %w: buyer session required", market.ErrInvalidInput)
	}
	return e.listWhere(func(t market.Ticket) bool { return t.BuyerID == sess.UserID })
}

// ForSeller lists the session seller's tickets with auto-cancel applied.
func (e *Engine) ForSeller(sess session.Session) ([]market.Ticket, error) {
	if !sess.IsSeller() {
		return nil, fmt.Errorf("tickets: %w: seller session required", market.ErrInvalidInput)
	}
	return e.listWhere(func(t market.Ticket) bool { return t.SellerID == sess.UserID })
}

func (e *Engine) listWhere(pred func(market.Ticket) bool) ([]market.Ticket, error) {
	matched, err := e.db.Tickets.Where(pred)
	if err != nil {
		return nil, fmt.Errorf("tickets: %w: %v", market.ErrStoreFailure, err)
	}
	now := e.clock()
	for i, ticket := range matched {
		state := e.effectiveState(ticket, now)
		if state == ticket.State {
			continue
		}
		err := e.db.Tickets.UpdateByID(ticket.ID, func(t *market.Ticket) {
			t.State = state
		})
		if err != nil {
			return nil, fmt.Errorf("tickets: %w: %v", market.ErrStoreFailure, err)
		}
		matched[i].State = state
	}
	return matched, nil
}

// CreateReturnShipment records the return parcel and starts the return.
// Legal only while the ticket is open and no return shipment exists.
func (e *Engine) CreateReturnShipment(sess session.Session, ticketID, carrier, trackingNumber string, expected time.Time) error {
	if carrier == "" || trackingNumber == "" {
		return fmt.Errorf("tickets: %w: carrier and tracking number are required", market.ErrInvalidInput)
	}
	ticket, err := e.ownedTicket(sess, ticketID)
	if err != nil {
		return err
	}
	if ticket.State != market.TicketOpen || ticket.ReturnShipment != nil {
		return fmt.Errorf("tickets: %w: ticket %q is %s, return shipment cannot be created",
			market.ErrIllegalTransition, ticketID, ticket.State)
	}
	now := e.clock()
	shipment := &market.Shipment{
		TrackingNumber:   trackingNumber,
		Carrier:          carrier,
		ExpectedDelivery: expected,
		CreatedAt:        now,
	}
	err = e.db.Tickets.UpdateByID(ticketID, func(t *market.Ticket) {
		t.State = market.TicketReturnInTransit
		t.ReturnShipment = shipment
	})
	if err != nil {
		return fmt.Errorf("tickets: %w: %v", market.ErrStoreFailure, err)
	}
	e.notify(ticket.BuyerID, "Return label created",
		fmt.Sprintf("Ticket %s: return via %s, tracking %s.", ticketID, carrier, trackingNumber), now)
	return nil
}

// ConfirmReturnReceipt records the returned goods arriving back at the
// seller. Legal only from ReturnInTransit. Unless the cause is
// "defective", the affected quantities are restocked into inventory.
func (e *Engine) ConfirmReturnReceipt(sess session.Session, ticketID string) error {
	ticket, err := e.ownedTicket(sess, ticketID)
	if err != nil {
		return err
	}
	if ticket.State != market.TicketReturnInTransit {
		return fmt.Errorf("tickets: %w: ticket %q is %s, return receipt cannot be confirmed",
			market.ErrIllegalTransition, ticketID, ticket.State)
	}
	now := e.clock()
	err = e.db.Tickets.UpdateByID(ticketID, func(t *market.Ticket) {
		t.State = market.TicketReturnReceived
		if t.ReturnShipment != nil {
			t.ReturnShipment.Delivered = true
			t.ReturnShipment.DeliveredAt = now
		}
	})
	if err != nil {
		return fmt.Errorf("tickets: %w: %v", market.ErrStoreFailure, err)
	}
	if ticket.Cause != market.CauseDefective {
		for _, line := range ticket.Lines {
			quantity := line.Quantity
			err := e.db.Products.UpdateByID(line.ProductID, func(p *market.Product) {
				p.Quantity += quantity
			})
			if err != nil {
				return fmt.Errorf("tickets: %w: %v", market.ErrStoreFailure, err)
			}
		}
	}
	e.notify(ticket.BuyerID, "Return received",
		fmt.Sprintf("Ticket %s: your return arrived at the seller.", ticketID), now)
	return nil
}

// SetSuggestedSolution records the seller's proposed resolution text.
// Metadata only; legal while the ticket is open, never changes state.
func (e *Engine) SetSuggestedSolution(sess session.Session, ticketID, solution string) error {
	return e.setOpenMetadata(sess, ticketID, func(t *market.Ticket) {
		t.SuggestedSolution = solution
	})
}

// SetReplacementDescription records what the seller will send as a
// replacement. Metadata only; legal while the ticket is open.
func (e *Engine) SetReplacementDescription(sess session.Session, ticketID, description string) error {
	return e.setOpenMetadata(sess, ticketID, func(t *market.Ticket) {
		t.ReplacementDescription = description
	})
}

func (e *Engine) setOpenMetadata(sess session.Session, ticketID string, mutate func(*market.Ticket)) error {
	ticket, err := e.sellerTicket(sess, ticketID)
	if err != nil {
		return err
	}
	if ticket.State != market.TicketOpen {
		return fmt.Errorf("tickets: %w: ticket %q is %s, metadata is frozen",
			market.ErrIllegalTransition, ticketID, ticket.State)
	}
	if err := e.db.Tickets.UpdateByID(ticketID, mutate); err != nil {
		return fmt.Errorf("tickets: %w: %v", market.ErrStoreFailure, err)
	}
	return nil
}

// CreateReplacementShipment records the outgoing replacement parcel.
// Legal only from ReturnReceived.
func (e *Engine) CreateReplacementShipment(sess session.Session, ticketID, carrier, trackingNumber string, expected time.Time) error {
	if carrier == "" || trackingNumber == "" {
		return fmt.Errorf("tickets: %w: carrier and tracking number are required", market.ErrInvalidInput)
	}
	ticket, err := e.sellerTicket(sess, ticketID)
	if err != nil {
		return err
	}
	if ticket.State != market.TicketReturnReceived {
		return fmt.Errorf("tickets: %w: ticket %q is %s, replacement cannot ship",
			market.ErrIllegalTransition, ticketID, ticket.State)
	}
	now := e.clock()
	shipment := &market.Shipment{
		TrackingNumber:   trackingNumber,
		Carrier:          carrier,
		ExpectedDelivery: expected,
		CreatedAt:        now,
	}
	err = e.db.Tickets.UpdateByID(ticketID, func(t *market.Ticket) {
		t.State = market.TicketReplacementInTransit
		t.ReplacementShipment = shipment
	})
	if err != nil {
		return fmt.Errorf("tickets: %w: %v", market.ErrStoreFailure, err)
	}
	e.notify(ticket.BuyerID, "Replacement shipped",
		fmt.Sprintf("Ticket %s: replacement via %s, tracking %s.", ticketID, carrier, trackingNumber), now)
	return nil
}

// ConfirmReplacementReceipt closes the ticket once the buyer has the
// replacement. Legal only from ReplacementInTransit.
func (e *Engine) ConfirmReplacementReceipt(sess session.Session, ticketID string) error {
	ticket, err := e.Get(ticketID)
	if err != nil {
		return err
	}
	if !sess.IsBuyer() || ticket.BuyerID != sess.UserID {
		return fmt.Errorf("tickets: %w: ticket %q does not belong to this buyer", market.ErrInvalidInput, ticketID)
	}
	if ticket.State != market.TicketReplacementInTransit {
		return fmt.Errorf("tickets: %w: ticket %q is %s, replacement receipt cannot be confirmed",
			market.ErrIllegalTransition, ticketID, ticket.State)
	}
	now := e.clock()
	err = e.db.Tickets.UpdateByID(ticketID, func(t *market.Ticket) {
		t.State = market.TicketClosed
		if t.ReplacementShipment != nil {
			t.ReplacementShipment.Delivered = true
			t.ReplacementShipment.DeliveredAt = now
		}
	})
	if err != nil {
		return fmt.Errorf("tickets: %w: %v", market.ErrStoreFailure, err)
	}
	e.notify(ticket.SellerID, "Ticket closed",
		fmt.Sprintf("Ticket %s was closed after the replacement arrived.", ticketID), now)
	return nil
}

// ownedTicket loads a ticket the session may act on from the seller side
// of the return flow (creating the return label is also seller-side: the
// seller issues it for the buyer's parcel).
func (e *Engine) ownedTicket(sess session.Session, ticketID string) (market.Ticket, error) {
	ticket, err := e.Get(ticketID)
	if err != nil {
		return market.Ticket{}, err
	}
	if sess.UserID != ticket.BuyerID && sess.UserID != ticket.SellerID {
		return market.Ticket{}, fmt.Errorf("tickets: %w: ticket %q does not belong to this account",
			market.ErrInvalidInput, ticketID)
	}
	return ticket, nil
}

func (e *Engine) sellerTicket(sess session.Session, ticketID string) (market.Ticket, error) {
	ticket, err := e.Get(ticketID)
	if err != nil {
		return market.Ticket{}, err
	}
	if !sess.IsSeller() || ticket.SellerID != sess.UserID {
		return market.Ticket{}, fmt.Errorf("tickets: %w: ticket %q does not belong to this seller",
			market.ErrInvalidInput, ticketID)
	}
	return ticket, nil
}

func (e *Engine) notify(recipientID, title, body string, now time.Time) {
	_ = e.db.Notifications.Add(market.NewNotification(recipientID, title, body, now))
}
