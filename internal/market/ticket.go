package market

import "time"

// TicketCause classifies why the buyer opened the ticket.
type TicketCause string

const (
	CauseWrongItem   TicketCause = "wrong_item"
	CauseNotReceived TicketCause = "not_received"
	CauseDefective   TicketCause = "defective"
	CauseOther       TicketCause = "other"
)

// TicketResolution is the workflow the buyer asked for.
type TicketResolution string

const (
	ResolutionReturn      TicketResolution = "return"
	ResolutionExchange    TicketResolution = "exchange"
	ResolutionReplacement TicketResolution = "replacement"
)

// TicketState enumerates the ticket lifecycle:
// Open -> ReturnInTransit -> ReturnReceived -> ReplacementInTransit -> Closed,
// with Cancelled forced when the return window elapses before a return
// shipment exists.
type TicketState string

const (
	TicketOpen                 TicketState = "open"
	TicketReturnInTransit      TicketState = "return_in_transit"
	TicketReturnReceived       TicketState = "return_received"
	TicketReplacementInTransit TicketState = "replacement_in_transit"
	TicketClosed               TicketState = "closed"
	TicketCancelled            TicketState = "cancelled"
)

// TicketLine identifies one affected (product, quantity) pair. It is
// always a subset of the linked order's lines.
type TicketLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Ticket is a support case linking one order to a return, exchange, or
// replacement workflow. Tickets are created by the ticketing engine and
// mutated only through its transition methods.
type Ticket struct {
	ID                     string           `json:"id"`
	OrderID                string           `json:"order_id"`
	BuyerID                string           `json:"buyer_id"`
	SellerID               string           `json:"seller_id"`
	Cause                  TicketCause      `json:"cause"`
	Resolution             TicketResolution `json:"resolution"`
	Lines                  []TicketLine     `json:"lines"`
	Description            string           `json:"description"`
	SuggestedSolution      string           `json:"suggested_solution,omitempty"`
	ReplacementDescription string           `json:"replacement_description,omitempty"`
	ReturnShipment         *Shipment        `json:"return_shipment,omitempty"`
	ReplacementShipment    *Shipment        `json:"replacement_shipment,omitempty"`
	ReplacementOrderID     string           `json:"replacement_order_id,omitempty"`
	State                  TicketState      `json:"state"`
	CreatedAt              time.Time        `json:"created_at"`
}

// EntityID implements store.Entity.
func (t Ticket) EntityID() string { return t.ID }

// ReturnStarted reports whether the ticket has progressed to (or past)
// the return-in-transit stage, which shields it from auto-cancellation.
func (t Ticket) ReturnStarted() bool {
	switch t.State {
	case TicketReturnInTransit, TicketReturnReceived, TicketReplacementInTransit, TicketClosed:
		return true
	}
	return false
}

// Terminal reports whether the ticket can no longer move.
func (t Ticket) Terminal() bool {
	return t.State == TicketClosed || t.State == TicketCancelled
}
