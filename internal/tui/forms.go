package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kelrowe/quadmart/internal/market"
	"github.com/kelrowe/quadmart/internal/market/catalog"
	"github.com/kelrowe/quadmart/internal/market/orders"
	"github.com/kelrowe/quadmart/internal/market/tickets"
	"github.com/kelrowe/quadmart/internal/session"
)

// form is a vertical sequence of labelled text inputs with a submit
// callback. Enter on the last field submits; Esc (handled by App) cancels.
type form struct {
	title  string
	fields []formField
	focus  int
	submit func(values []string) (string, error)
}

type formField struct {
	label string
	input textinput.Model
}

func newField(label, placeholder string) formField {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = 128
	return formField{label: label, input: in}
}

func newSecretField(label string) formField {
	f := newField(label, "")
	f.input.EchoMode = textinput.EchoPassword
	f.input.EchoCharacter = '•'
	return f
}

func newForm(title string, submit func(values []string) (string, error), fields ...formField) *form {
	f := &form{title: title, fields: fields, submit: submit}
	if len(f.fields) > 0 {
		f.fields[0].input.Focus()
	}
	return f
}

func (f *form) values() []string {
	out := make([]string, len(f.fields))
	for i := range f.fields {
		out[i] = strings.TrimSpace(f.fields[i].input.Value())
	}
	return out
}

func (f *form) setFocus(idx int) tea.Cmd {
	if idx < 0 || idx >= len(f.fields) {
		return nil
	}
	f.fields[f.focus].input.Blur()
	f.focus = idx
	return f.fields[f.focus].input.Focus()
}

// updateFocused forwards a message (keystroke, cursor blink tick) to the
// focused input and hands its command back to the runtime.
func (f *form) updateFocused(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.fields[f.focus].input, cmd = f.fields[f.focus].input.Update(msg)
	return cmd
}

// handleKey advances focus, submits, or forwards the key to the focused
// input. Returns done=true once the submit callback succeeds.
func (f *form) handleKey(msg tea.KeyMsg) (bool, string, tea.Cmd, error) {
	switch msg.String() {
	case "tab", "down":
		return false, "", f.setFocus((f.focus + 1) % len(f.fields)), nil
	case "shift+tab", "up":
		return false, "", f.setFocus((f.focus - 1 + len(f.fields)) % len(f.fields)), nil
	case "enter":
		if f.focus < len(f.fields)-1 {
			return false, "", f.setFocus(f.focus + 1), nil
		}
		status, err := f.submit(f.values())
		if err != nil {
			return false, "", nil, err
		}
		return true, status, nil, nil
	}
	return false, "", f.updateFocused(msg), nil
}

func parseInt(value, label string) (int, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", label)
	}
	return n, nil
}

// parseCents accepts "12.50" or "1250" style amounts and returns cents.
func parseCents(value, label string) (int, error) {
	if value == "" {
		return 0, nil
	}
	if dollars, cents, ok := strings.Cut(value, "."); ok {
		d, err := strconv.Atoi(dollars)
		if err != nil || len(cents) > 2 {
			return 0, fmt.Errorf("%s must be an amount like 12.50", label)
		}
		for len(cents) < 2 {
			cents += "0"
		}
		c, err := strconv.Atoi(cents)
		if err != nil {
			return 0, fmt.Errorf("%s must be an amount like 12.50", label)
		}
		return d*100 + c, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an amount in cents", label)
	}
	return n, nil
}

// --- Account forms -----------------------------------------------------

func loginForm(a *App, role session.Role) *form {
	title := "Log In as Buyer"
	if role == session.RoleSeller {
		title = "Log In as Seller"
	}
	return newForm(title, func(v []string) (string, error) {
		email, password := v[0], v[1]
		if role == session.RoleSeller {
			seller, sess, err := a.accounts.LoginSeller(email, password)
			if err != nil {
				return "", err
			}
			a.sess = sess
			a.loggedIn = true
			a.userName = seller.StoreName
		} else {
			buyer, sess, err := a.accounts.LoginBuyer(email, password)
			if err != nil {
				return "", err
			}
			a.sess = sess
			a.loggedIn = true
			a.userName = buyer.Name
		}
		a.logInfo("login %s as %s", email, role)
		a.enterMainMenu()
		return fmt.Sprintf("Welcome back, %s", a.userName), nil
	},
		newField("Email", "you@campus.edu"),
		newSecretField("Password"),
	)
}

func registerBuyerForm(a *App) *form {
	return newForm("Register as Buyer", func(v []string) (string, error) {
		buyer, err := a.accounts.RegisterBuyer(v[0], v[1], v[2], v[3])
		if err != nil {
			return "", err
		}
		a.sess = session.Buyer(buyer.ID)
		a.loggedIn = true
		a.userName = buyer.Name
		a.logInfo("registered buyer %s", buyer.Email)
		a.enterMainMenu()
		return fmt.Sprintf("Welcome, %s", buyer.Name), nil
	},
		newField("Name", "Ada Lovelace"),
		newField("Email", "you@campus.edu"),
		newField("Address", "12 Dorm Row"),
		newSecretField("Password"),
	)
}

func registerSellerForm(a *App) *form {
	return newForm("Register as Seller", func(v []string) (string, error) {
		seller, err := a.accounts.RegisterSeller(v[0], v[1], v[2], v[3])
		if err != nil {
			return "", err
		}
		a.sess = session.Seller(seller.ID)
		a.loggedIn = true
		a.userName = seller.StoreName
		a.logInfo("registered seller %s", seller.Email)
		a.enterMainMenu()
		return fmt.Sprintf("Store %s is open", seller.StoreName), nil
	},
		newField("Name", "Grace Hopper"),
		newField("Store Name", "Grace's Gadgets"),
		newField("Email", "store@campus.edu"),
		newSecretField("Password"),
	)
}

// --- Catalog forms -----------------------------------------------------

func listingForm(a *App) *form {
	return newForm("List a Product", func(v []string) (string, error) {
		price, err := parseCents(v[3], "price")
		if err != nil {
			return "", err
		}
		qty, err := parseInt(v[4], "quantity")
		if err != nil {
			return "", err
		}
		bonus, err := parseInt(v[5], "bonus points")
		if err != nil {
			return "", err
		}
		product, err := a.catalog.List(a.sess, catalog.ListingRequest{
			Name:        v[0],
			Category:    v[1],
			SubCategory: v[2],
			PriceCents:  price,
			Quantity:    qty,
			BonusPoints: bonus,
			Description: v[6],
		})
		if err != nil {
			return "", err
		}
		a.logInfo("listed product %s", product.ID)
		a.showListings()
		return fmt.Sprintf("Listed %s at %s", product.Name, formatCents(product.PriceCents)), nil
	},
		newField("Name", "Desk Lamp"),
		newField("Category", "furniture"),
		newField("Sub-category", "lighting"),
		newField("Price", "12.50"),
		newField("Quantity", "10"),
		newField("Bonus Points", "0"),
		newField("Description", ""),
	)
}

func categoryForm(a *App) *form {
	return newForm("Browse Category", func(v []string) (string, error) {
		a.showCatalog(v[0])
		return "", nil
	},
		newField("Category", "empty for all"),
	)
}

func promotionForm(a *App, product market.Product) *form {
	return newForm(fmt.Sprintf("Promotion · %s", product.Name), func(v []string) (string, error) {
		if v[0] == "" && v[1] == "" {
			if err := a.catalog.ClearPromotion(a.sess, product.ID); err != nil {
				return "", err
			}
			a.showCatalogRefresh()
			return "Promotion cleared", nil
		}
		discount, err := parseCents(v[0], "discount")
		if err != nil {
			return "", err
		}
		bonus, err := parseInt(v[1], "bonus points")
		if err != nil {
			return "", err
		}
		days, err := parseInt(v[2], "days")
		if err != nil {
			return "", err
		}
		if days <= 0 {
			days = 7
		}
		promo := market.Promotion{
			DiscountCents: discount,
			BonusPoints:   bonus,
			EndDate:       time.Now().UTC().AddDate(0, 0, days),
		}
		if err := a.catalog.SetPromotion(a.sess, product.ID, promo); err != nil {
			return "", err
		}
		a.showCatalogRefresh()
		return fmt.Sprintf("Promotion set on %s", product.Name), nil
	},
		newField("Discount", "2.00"),
		newField("Bonus Points", "5"),
		newField("Days Active", "7"),
	)
}

func restockForm(a *App, product market.Product) *form {
	return newForm(fmt.Sprintf("Restock · %s", product.Name), func(v []string) (string, error) {
		qty, err := parseInt(v[0], "quantity")
		if err != nil {
			return "", err
		}
		if err := a.catalog.Restock(a.sess, product.ID, qty); err != nil {
			return "", err
		}
		a.showCatalogRefresh()
		return fmt.Sprintf("Restocked %s (+%d)", product.Name, qty), nil
	},
		newField("Quantity", "5"),
	)
}

func reviewForm(a *App, product market.Product) *form {
	return newForm(fmt.Sprintf("Review · %s", product.Name), func(v []string) (string, error) {
		rating, err := parseInt(v[0], "rating")
		if err != nil {
			return "", err
		}
		review, err := a.social.AddReview(a.sess, product.ID, rating, v[1])
		if err != nil {
			return "", err
		}
		a.showCatalogRefresh()
		return fmt.Sprintf("Thanks for the %d★ review (%s)", review.Rating, review.ID[:8]), nil
	},
		newField("Rating (1-5)", "5"),
		newField("Comments", ""),
	)
}

// --- Checkout ----------------------------------------------------------

func checkoutForm(a *App) *form {
	return newForm("Checkout", func(v []string) (string, error) {
		month, err := parseInt(v[7], "expiry month")
		if err != nil {
			return "", err
		}
		year, err := parseInt(v[8], "expiry year")
		if err != nil {
			return "", err
		}
		points, err := parseInt(v[9], "fidelity points")
		if err != nil {
			return "", err
		}
		shipping := market.ShippingInfo{
			Name:       v[0],
			Street:     v[1],
			City:       v[2],
			PostalCode: v[3],
			Country:    v[4],
		}
		req := orders.CheckoutRequest{
			Shipping: shipping,
			Billing:  shipping,
			Payment: market.PaymentInfo{
				CardHolder:  v[5],
				CardNumber:  v[6],
				ExpiryMonth: month,
				ExpiryYear:  year,
			},
			FidelityPoints: points,
		}
		placed, err := a.orders.Checkout(a.sess, req)
		if err != nil {
			return "", err
		}
		total := 0
		for _, o := range placed {
			total += o.TotalCents
		}
		a.logInfo("checkout %s: %d order(s), %s due", a.sess.UserID, len(placed), formatCents(total))
		a.showOrders()
		return fmt.Sprintf("Placed %d order(s) · %s due", len(placed), formatCents(total)), nil
	},
		newField("Name", ""),
		newField("Street", ""),
		newField("City", ""),
		newField("Postal Code", ""),
		newField("Country", ""),
		newField("Card Holder", ""),
		newField("Card Number", "4242424242424242"),
		newField("Expiry Month", "12"),
		newField("Expiry Year", "2028"),
		newField("Fidelity Points", "0"),
	)
}

// --- Order and ticket forms --------------------------------------------

func shipmentForm(a *App, order market.Order) *form {
	return newForm(fmt.Sprintf("Ship Order %s", order.ID[:8]), func(v []string) (string, error) {
		days, err := parseInt(v[2], "days to delivery")
		if err != nil {
			return "", err
		}
		if days <= 0 {
			days = 3
		}
		expected := time.Now().UTC().AddDate(0, 0, days)
		if err := a.orders.Ship(a.sess, order.ID, v[0], v[1], expected); err != nil {
			return "", err
		}
		a.logInfo("order %s shipped via %s", order.ID, v[0])
		a.showOrders()
		return "Shipment created", nil
	},
		newField("Carrier", "CampusPost"),
		newField("Tracking Number", ""),
		newField("Days to Delivery", "3"),
	)
}

func ticketForm(a *App, order market.Order) *form {
	return newForm(fmt.Sprintf("Open Ticket · Order %s", order.ID[:8]), func(v []string) (string, error) {
		cause := market.TicketCause(v[0])
		switch cause {
		case market.CauseWrongItem, market.CauseNotReceived, market.CauseDefective, market.CauseOther:
		default:
			return "", fmt.Errorf("cause must be one of wrong_item, not_received, defective, other")
		}
		resolution := market.TicketResolution(v[1])
		switch resolution {
		case "", market.ResolutionReturn, market.ResolutionExchange, market.ResolutionReplacement:
		default:
			return "", fmt.Errorf("resolution must be one of return, exchange, replacement")
		}
		// Blank lines mean the whole order is affected.
		lines := make([]market.TicketLine, 0, len(order.Lines))
		for _, l := range order.Lines {
			lines = append(lines, market.TicketLine{ProductID: l.ProductID, Quantity: l.Quantity})
		}
		ticket, err := a.tickets.Create(a.sess, tickets.CreateRequest{
			OrderID:     order.ID,
			Lines:       lines,
			Cause:       cause,
			Resolution:  resolution,
			Description: v[2],
		})
		if err != nil {
			return "", err
		}
		a.logInfo("ticket %s opened on order %s", ticket.ID, order.ID)
		a.showTickets()
		return fmt.Sprintf("Ticket %s opened", ticket.ID[:8]), nil
	},
		newField("Cause", "defective"),
		newField("Resolution", "return"),
		newField("Description", ""),
	)
}

func returnShipmentForm(a *App, ticket market.Ticket) *form {
	return newForm(fmt.Sprintf("Return Shipment · %s", ticket.ID[:8]), func(v []string) (string, error) {
		days, err := parseInt(v[2], "days to delivery")
		if err != nil {
			return "", err
		}
		if days <= 0 {
			days = 3
		}
		expected := time.Now().UTC().AddDate(0, 0, days)
		if err := a.tickets.CreateReturnShipment(a.sess, ticket.ID, v[0], v[1], expected); err != nil {
			return "", err
		}
		a.showTickets()
		return "Return shipment registered", nil
	},
		newField("Carrier", "CampusPost"),
		newField("Tracking Number", ""),
		newField("Days to Delivery", "3"),
	)
}

func replacementShipmentForm(a *App, ticket market.Ticket) *form {
	return newForm(fmt.Sprintf("Replacement Shipment · %s", ticket.ID[:8]), func(v []string) (string, error) {
		days, err := parseInt(v[2], "days to delivery")
		if err != nil {
			return "", err
		}
		if days <= 0 {
			days = 3
		}
		expected := time.Now().UTC().AddDate(0, 0, days)
		if err := a.tickets.CreateReplacementShipment(a.sess, ticket.ID, v[0], v[1], expected); err != nil {
			return "", err
		}
		a.showTickets()
		return "Replacement shipment registered", nil
	},
		newField("Carrier", "CampusPost"),
		newField("Tracking Number", ""),
		newField("Days to Delivery", "3"),
	)
}

func suggestionForm(a *App, ticket market.Ticket) *form {
	return newForm(fmt.Sprintf("Suggest Solution · %s", ticket.ID[:8]), func(v []string) (string, error) {
		if v[0] != "" {
			if err := a.tickets.SetSuggestedSolution(a.sess, ticket.ID, v[0]); err != nil {
				return "", err
			}
		}
		if v[1] != "" {
			if err := a.tickets.SetReplacementDescription(a.sess, ticket.ID, v[1]); err != nil {
				return "", err
			}
		}
		a.showTickets()
		return "Ticket updated", nil
	},
		newField("Suggested Solution", ""),
		newField("Replacement Description", ""),
	)
}

func exchangeItemForm(a *App, ticket market.Ticket) *form {
	return newForm(fmt.Sprintf("Exchange Item · %s", ticket.ID[:8]), func(v []string) (string, error) {
		qty, err := parseInt(v[1], "quantity")
		if err != nil {
			return "", err
		}
		if qty <= 0 {
			qty = 1
		}
		if err := a.tickets.AddExchangeItem(a.sess, ticket.ID, v[0], qty); err != nil {
			return "", err
		}
		a.showTickets()
		return "Added to exchange cart · press x to settle", nil
	},
		newField("Product ID", ""),
		newField("Quantity", "1"),
	)
}
