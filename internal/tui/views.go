package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kelrowe/quadmart/internal/market"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#5B8DEF")).
			Padding(0, 1)
	rowStyle = lipgloss.NewStyle().
			Padding(0, 0, 1, 0)
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA")).
			MarginTop(1)
	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1)
)

// View renders the current state to a string.
func (a *App) View() string {
	var content string
	switch a.state {
	case stateWelcome, stateMenu:
		content = a.menu.View()
	case stateForm:
		content = a.renderForm()
	case stateCatalog:
		content = a.renderCatalog()
	case stateCart:
		content = a.renderCart()
	case stateOrders:
		content = a.renderOrders()
	case stateTickets:
		content = a.renderTickets()
	case stateInbox:
		content = a.renderInbox()
	}

	width := a.width
	if width <= 0 {
		width = 100
	}
	box := panelStyle.Width(max(40, width-4)).Render(content)
	sections := []string{headerStyle.Render("⬡ QUADMART"), box}
	if a.statusMsg != "" {
		sections = append(sections, footerStyle.Render(a.statusMsg))
	}
	return strings.Join(sections, "\n")
}

func (a *App) renderForm() string {
	if a.form == nil {
		return ""
	}
	lines := []string{titleStyle.Render(a.form.title), ""}
	for i := range a.form.fields {
		field := a.form.fields[i]
		marker := "  "
		if i == a.form.focus {
			marker = "> "
		}
		lines = append(lines, fmt.Sprintf("%s%-16s %s", marker, field.label, field.input.View()))
	}
	lines = append(lines, hintStyle.Render("Enter → next / submit    Esc → cancel"))
	return strings.Join(lines, "\n")
}

func (a *App) renderCatalog() string {
	title := titleStyle.Render(fmt.Sprintf("Products (%d)", len(a.products)))
	if len(a.products) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title,
			dimStyle.Render("Nothing here yet."), a.catalogHints())
	}
	var rows []string
	for i, p := range a.products {
		rows = append(rows, a.renderProductRow(p, i == a.selection))
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(rows, "\n"), a.catalogHints())
}

func (a *App) renderProductRow(p market.Product, selected bool) string {
	now := timeNow()
	price := formatCents(p.UnitPriceCents(now))
	line1 := fmt.Sprintf("%s · %s", p.Name, price)
	if p.Promotion != nil && p.Promotion.ActiveAt(now) {
		line1 += fmt.Sprintf(" (was %s)", formatCents(p.PriceCents))
	}
	category := p.Category
	if p.SubCategory != "" {
		category += " / " + p.SubCategory
	}
	line2 := fmt.Sprintf("%s · %d in stock", category, p.Quantity)
	if bonus := p.UnitBonusPoints(now); bonus > 0 {
		line2 += fmt.Sprintf(" · +%d pt", bonus)
	}
	line3 := fmt.Sprintf("♥ %d", p.Likes)
	if p.RatingCount > 0 {
		line3 += fmt.Sprintf(" · %.1f★ (%d)", p.AverageRating(), p.RatingCount)
	}
	content := strings.Join([]string{line1, line2, line3}, "\n")
	if selected {
		return selectedStyle.Render(content)
	}
	return rowStyle.Render(content)
}

func (a *App) catalogHints() string {
	if a.sess.IsSeller() {
		return hintStyle.Render("p → promotion    r → restock    Esc → menu")
	}
	return hintStyle.Render("Enter → add to cart    f → like    v → review    c → category    Esc → menu")
}

func (a *App) renderCart() string {
	title := titleStyle.Render(fmt.Sprintf("Cart (%d)", len(a.cartRows)))
	if len(a.cartRows) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title,
			dimStyle.Render("Your cart is empty."),
			hintStyle.Render("Esc → menu"))
	}
	now := timeNow()
	var rows []string
	total := 0
	for i, row := range a.cartRows {
		unit := row.product.UnitPriceCents(now)
		lineTotal := unit * row.entry.Quantity
		total += lineTotal
		content := fmt.Sprintf("%s\n%d × %s = %s",
			row.product.Name, row.entry.Quantity, formatCents(unit), formatCents(lineTotal))
		if i == a.selection {
			rows = append(rows, selectedStyle.Render(content))
		} else {
			rows = append(rows, rowStyle.Render(content))
		}
	}
	summary := titleStyle.Render(fmt.Sprintf("Subtotal %s", formatCents(total)))
	hints := hintStyle.Render("Enter → checkout    +/- → quantity    x → remove    Esc → menu")
	return lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(rows, "\n"), summary, hints)
}

func (a *App) renderOrders() string {
	title := titleStyle.Render(fmt.Sprintf("Orders (%d)", len(a.orderRows)))
	if len(a.orderRows) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title,
			dimStyle.Render("No orders yet."),
			hintStyle.Render("Esc → menu"))
	}
	var rows []string
	for i, o := range a.orderRows {
		rows = append(rows, a.renderOrderRow(o, i == a.selection))
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(rows, "\n"), a.orderHints())
}

func (a *App) renderOrderRow(o market.Order, selected bool) string {
	line1 := fmt.Sprintf("Order %s · %s", o.ID[:8], formatState(string(o.State)))
	line2 := fmt.Sprintf("%d item(s) · %s due", len(o.Lines), formatCents(o.TotalCents))
	if o.PointsSpent > 0 {
		line2 += fmt.Sprintf(" · %d pt spent", o.PointsSpent)
	}
	if o.PointsEarned > 0 {
		line2 += fmt.Sprintf(" · %d pt earned", o.PointsEarned)
	}
	lines := []string{line1, line2}
	if o.Shipment != nil {
		lines = append(lines, fmt.Sprintf("%s %s · expected %s",
			o.Shipment.Carrier, o.Shipment.TrackingNumber,
			o.Shipment.ExpectedDelivery.Format("2006-01-02")))
	}
	content := strings.Join(lines, "\n")
	if selected {
		return selectedStyle.Render(content)
	}
	return rowStyle.Render(content)
}

func (a *App) orderHints() string {
	if a.sess.IsSeller() {
		return hintStyle.Render("s → ship    c → cancel    Esc → menu")
	}
	return hintStyle.Render("d → confirm delivery    c → cancel    t → open ticket    Esc → menu")
}

func (a *App) renderTickets() string {
	title := titleStyle.Render(fmt.Sprintf("Tickets (%d)", len(a.ticketRows)))
	if len(a.ticketRows) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title,
			dimStyle.Render("No tickets."),
			hintStyle.Render("Esc → menu"))
	}
	var rows []string
	for i, t := range a.ticketRows {
		rows = append(rows, a.renderTicketRow(t, i == a.selection))
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(rows, "\n"), a.ticketHints())
}

func (a *App) renderTicketRow(t market.Ticket, selected bool) string {
	line1 := fmt.Sprintf("Ticket %s · %s", t.ID[:8], formatState(string(t.State)))
	line2 := fmt.Sprintf("%s · %s · order %s",
		formatState(string(t.Cause)), formatState(string(t.Resolution)), t.OrderID[:8])
	lines := []string{line1, line2}
	if t.SuggestedSolution != "" {
		lines = append(lines, fmt.Sprintf("Seller suggests: %s", t.SuggestedSolution))
	}
	if t.ReplacementOrderID != "" {
		lines = append(lines, fmt.Sprintf("Replacement order %s", t.ReplacementOrderID[:8]))
	}
	content := strings.Join(lines, "\n")
	if selected {
		return selectedStyle.Render(content)
	}
	return rowStyle.Render(content)
}

func (a *App) ticketHints() string {
	if a.sess.IsSeller() {
		return hintStyle.Render("g → confirm return    h → ship replacement    s → suggest solution    r → return shipment    Esc → menu")
	}
	return hintStyle.Render("r → return shipment    p → confirm replacement    e → add exchange item    x → settle exchange    Esc → menu")
}

func (a *App) renderInbox() string {
	title := titleStyle.Render(fmt.Sprintf("Notifications (%d)", len(a.inboxRows)))
	if len(a.inboxRows) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title,
			dimStyle.Render("Inbox zero."),
			hintStyle.Render("Esc → menu"))
	}
	var rows []string
	for i, n := range a.inboxRows {
		content := fmt.Sprintf("%s\n%s", n.Title, n.Body)
		content += "\n" + dimStyle.Render(n.CreatedAt.Format("2006-01-02 15:04"))
		if i == a.selection {
			rows = append(rows, selectedStyle.Render(content))
		} else {
			rows = append(rows, rowStyle.Render(content))
		}
	}
	hints := hintStyle.Render("x → delete    Esc → menu")
	return lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(rows, "\n"), hints)
}
