package market

import "time"

// OrderState enumerates the order lifecycle. The only legal moves are
// InProduction -> InTransit -> Delivered, with InProduction -> Cancelled
// as the single escape.
type OrderState string

const (
	OrderInProduction OrderState = "in_production"
	OrderInTransit    OrderState = "in_transit"
	OrderDelivered    OrderState = "delivered"
	OrderCancelled    OrderState = "cancelled"
)

// OrderLine snapshots one purchased product at checkout time. UnitPriceCents
// is the promotion-adjusted price the buyer actually paid per unit, frozen
// so later catalog edits cannot rewrite order history.
type OrderLine struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int    `json:"unit_price_cents"`
}

// LineTotalCents is quantity times the frozen unit price.
func (l OrderLine) LineTotalCents() int {
	return l.Quantity * l.UnitPriceCents
}

// PaymentAllocation records how an order's subtotal was covered. The three
// portions always sum to the order's SubtotalCents at creation time.
type PaymentAllocation struct {
	MoneyCents        int `json:"money_cents"`
	PointCents        int `json:"point_cents"`
	ReturnCreditCents int `json:"return_credit_cents"`
}

// TotalCents is the full value covered by the allocation.
func (a PaymentAllocation) TotalCents() int {
	return a.MoneyCents + a.PointCents + a.ReturnCreditCents
}

// Shipment tracks one physical parcel, either an outgoing order or a
// return on a ticket.
type Shipment struct {
	TrackingNumber   string    `json:"tracking_number"`
	Carrier          string    `json:"carrier"`
	ExpectedDelivery time.Time `json:"expected_delivery"`
	CreatedAt        time.Time `json:"created_at"`
	Delivered        bool      `json:"delivered"`
	DeliveredAt      time.Time `json:"delivered_at,omitempty"`
}

// ShippingInfo is the destination and billing identity for an order.
type ShippingInfo struct {
	Name       string `json:"name" validate:"required"`
	Street     string `json:"street" validate:"required"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required"`
}

// PaymentInfo is the card the buyer pays the money portion with. Only a
// masked form is persisted on the order.
type PaymentInfo struct {
	CardHolder  string `json:"card_holder" validate:"required"`
	CardNumber  string `json:"card_number" validate:"required,min=12,max=19,numeric"`
	ExpiryMonth int    `json:"expiry_month" validate:"min=1,max=12"`
	ExpiryYear  int    `json:"expiry_year" validate:"min=2000"`
}

// Masked returns the last four digits for persistence.
func (p PaymentInfo) Masked() string {
	if len(p.CardNumber) < 4 {
		return p.CardNumber
	}
	return "****" + p.CardNumber[len(p.CardNumber)-4:]
}

// Order is the immutable per-seller snapshot produced at checkout. A
// multi-seller cart yields one order per seller, sharing the checkout's
// payment and fidelity inputs but advancing through independent states.
// Only State and Shipment mutate after creation.
//
// SubtotalCents is the promotion-discounted value before point redemption;
// TotalCents is the money actually due after redemption. The allocation's
// portions sum to SubtotalCents, with MoneyCents == TotalCents at creation.
type Order struct {
	ID            string            `json:"id"`
	BuyerID       string            `json:"buyer_id"`
	SellerID      string            `json:"seller_id"`
	Lines         []OrderLine       `json:"lines"`
	SubtotalCents int               `json:"subtotal_cents"`
	TotalCents    int               `json:"total_cents"`
	PointsEarned  int               `json:"points_earned"`
	PointsSpent   int               `json:"points_spent"`
	Allocation    PaymentAllocation `json:"allocation"`
	Shipping      ShippingInfo      `json:"shipping"`
	Billing       ShippingInfo      `json:"billing"`
	PaymentMethod string            `json:"payment_method"`
	State         OrderState        `json:"state"`
	Shipment      *Shipment         `json:"shipment,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// EntityID implements store.Entity.
func (o Order) EntityID() string { return o.ID }

// Line returns the order line for a product, if the order contains it.
func (o Order) Line(productID string) (OrderLine, bool) {
	for _, line := range o.Lines {
		if line.ProductID == productID {
			return line, true
		}
	}
	return OrderLine{}, false
}
