// internal/tui/app.go
//
// This is the main TUI (Terminal User Interface) for quadmart.
// It uses bubbletea, which follows The Elm Architecture:
//
// 1. Model: Your application state
// 2. Update: A function that updates state based on messages
// 3. View: A function that renders state to a string
//
// The flow is: User Input -> Message -> Update -> New Model -> View -> Screen

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kelrowe/quadmart/internal/config"
	"github.com/kelrowe/quadmart/internal/logging"
	"github.com/kelrowe/quadmart/internal/market"
	"github.com/kelrowe/quadmart/internal/market/accounts"
	"github.com/kelrowe/quadmart/internal/market/carts"
	"github.com/kelrowe/quadmart/internal/market/catalog"
	"github.com/kelrowe/quadmart/internal/market/orders"
	"github.com/kelrowe/quadmart/internal/market/social"
	"github.com/kelrowe/quadmart/internal/market/tickets"
	"github.com/kelrowe/quadmart/internal/session"
	"github.com/kelrowe/quadmart/internal/store"
)

// timeNow is swappable in tests.
var timeNow = time.Now

// appState represents which "screen" we're on
type appState int

const (
	stateWelcome appState = iota // Login / register menu
	stateMenu                    // Role-specific main menu
	stateCatalog                 // Product browser
	stateCart                    // Buyer's cart
	stateOrders                  // Order list for the session user
	stateTickets                 // Ticket list for the session user
	stateInbox                   // Notifications
	stateForm                    // A text form (login, listing, checkout, ...)
)

// App is the main application model. In bubbletea, this holds ALL your state.
type App struct {
	config *config.Config
	db     *market.DB
	log    *logging.Logger

	accounts *accounts.Service
	catalog  *catalog.Service
	carts    *carts.Service
	orders   *orders.Engine
	tickets  *tickets.Engine
	social   *social.Service

	sess     session.Session
	loggedIn bool
	userName string

	state      appState
	prevState  appState // Where Esc from a form returns to
	menu       list.Model
	form       *form
	products   []market.Product
	cartRows   []cartRow
	orderRows  []market.Order
	ticketRows []market.Ticket
	inboxRows  []market.Notification
	selection  int
	statusMsg  string

	width  int
	height int
}

// cartRow is a cart entry joined with its product for display.
type cartRow struct {
	entry   market.CartEntry
	product market.Product
}

// menuItem implements list.Item interface for our menu items
type menuItem struct {
	title string
	desc  string
}

func (i menuItem) Title() string       { return i.title }
func (i menuItem) Description() string { return i.desc }
func (i menuItem) FilterValue() string { return i.title }

// NewApp creates a new App instance wired to the persisted collections
// under the config's data directory.
func NewApp(cfg *config.Config, logger *logging.Logger) (*App, error) {
	st, err := store.Open(cfg.DataDir())
	if err != nil {
		return nil, err
	}
	db := market.Open(st)

	acc, err := accounts.New(db)
	if err != nil {
		return nil, err
	}
	cat, err := catalog.New(db)
	if err != nil {
		return nil, err
	}
	crt, err := carts.New(db)
	if err != nil {
		return nil, err
	}
	ord, err := orders.New(db)
	if err != nil {
		return nil, err
	}
	window := time.Duration(cfg.Settings.Market.ReturnWindowDays) * 24 * time.Hour
	tkt, err := tickets.New(db, tickets.WithReturnWindow(window))
	if err != nil {
		return nil, err
	}
	soc, err := social.New(db, social.WithReviewReward(cfg.Settings.Market.ReviewRewardPoints))
	if err != nil {
		return nil, err
	}

	menu := list.New(welcomeMenuItems(), list.NewDefaultDelegate(), 0, 0)
	menu.Title = "⬡ QUADMART"
	menu.SetShowStatusBar(false)
	menu.SetFilteringEnabled(false)

	app := &App{
		config:   cfg,
		db:       db,
		log:      logger,
		accounts: acc,
		catalog:  cat,
		carts:    crt,
		orders:   ord,
		tickets:  tkt,
		social:   soc,
		state:    stateWelcome,
		menu:     menu,
	}
	return app, nil
}

func welcomeMenuItems() []list.Item {
	return []list.Item{
		menuItem{title: "Log In as Buyer", desc: "Shop the campus marketplace"},
		menuItem{title: "Log In as Seller", desc: "Manage your store"},
		menuItem{title: "Register as Buyer", desc: "Create a buyer account"},
		menuItem{title: "Register as Seller", desc: "Create a seller account"},
		menuItem{title: "Exit", desc: "Quit quadmart"},
	}
}

func (a *App) mainMenuItems() []list.Item {
	if a.sess.IsSeller() {
		return []list.Item{
			menuItem{title: "My Listings", desc: "Products in your store"},
			menuItem{title: "List a Product", desc: "Put a new item up for sale"},
			menuItem{title: "Orders", desc: "Orders placed against your store"},
			menuItem{title: "Tickets", desc: "Returns and exchanges"},
			menuItem{title: "Notifications", desc: "Your inbox"},
			menuItem{title: "Log Out", desc: "Back to the welcome screen"},
		}
	}
	return []list.Item{
		menuItem{title: "Browse Catalog", desc: "Search products by category"},
		menuItem{title: "Cart", desc: "Review and check out"},
		menuItem{title: "Orders", desc: "Track your purchases"},
		menuItem{title: "Tickets", desc: "Returns and exchanges"},
		menuItem{title: "Notifications", desc: "Your inbox"},
		menuItem{title: "Log Out", desc: "Back to the welcome screen"},
	}
}

func (a *App) logInfo(format string, args ...any) {
	if a.log == nil {
		return
	}
	a.log.Printf(format, args...)
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return nil
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.menu.SetSize(max(0, msg.Width-6), max(0, msg.Height-10))
		return a, nil

	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "ctrl+c":
			return a, tea.Quit
		case "q":
			if a.state == stateWelcome {
				return a, tea.Quit
			}
		case "esc":
			return a.handleEscape()
		}
		if a.state == stateForm && a.form != nil {
			return a.updateForm(msg)
		}
		if handled, cmd := a.handleScreenKey(key); handled {
			return a, cmd
		}
	}

	if a.state == stateWelcome || a.state == stateMenu {
		var cmd tea.Cmd
		a.menu, cmd = a.menu.Update(msg)
		return a, cmd
	}
	// Non-key messages (cursor blink ticks) still reach the focused input.
	if a.state == stateForm && a.form != nil {
		return a, a.form.updateFocused(msg)
	}
	return a, nil
}

func (a *App) handleEscape() (tea.Model, tea.Cmd) {
	switch a.state {
	case stateWelcome:
		return a, nil
	case stateForm:
		a.form = nil
		a.state = a.prevState
		a.statusMsg = ""
		return a, nil
	case stateMenu:
		return a, nil
	default:
		a.state = stateMenu
		a.statusMsg = ""
		return a, nil
	}
}

// handleScreenKey dispatches non-form key presses by screen. Returns false
// when the key should fall through to the focused list component.
func (a *App) handleScreenKey(key string) (bool, tea.Cmd) {
	switch a.state {
	case stateWelcome:
		if key == "enter" {
			return true, a.handleWelcomeSelection()
		}
	case stateMenu:
		if key == "enter" {
			return true, a.handleMainMenuSelection()
		}
	case stateCatalog:
		return a.handleCatalogKey(key)
	case stateCart:
		return a.handleCartKey(key)
	case stateOrders:
		return a.handleOrdersKey(key)
	case stateTickets:
		return a.handleTicketsKey(key)
	case stateInbox:
		return a.handleInboxKey(key)
	}
	return false, nil
}

func (a *App) handleWelcomeSelection() tea.Cmd {
	item, ok := a.menu.SelectedItem().(menuItem)
	if !ok {
		return nil
	}
	switch item.title {
	case "Log In as Buyer":
		return a.openForm(loginForm(a, session.RoleBuyer))
	case "Log In as Seller":
		return a.openForm(loginForm(a, session.RoleSeller))
	case "Register as Buyer":
		return a.openForm(registerBuyerForm(a))
	case "Register as Seller":
		return a.openForm(registerSellerForm(a))
	case "Exit":
		return tea.Quit
	}
	return nil
}

func (a *App) handleMainMenuSelection() tea.Cmd {
	item, ok := a.menu.SelectedItem().(menuItem)
	if !ok {
		return nil
	}
	switch item.title {
	case "Browse Catalog":
		a.showCatalog("")
	case "My Listings":
		a.showListings()
	case "List a Product":
		return a.openForm(listingForm(a))
	case "Cart":
		a.showCart()
	case "Orders":
		a.showOrders()
	case "Tickets":
		a.showTickets()
	case "Notifications":
		a.showInbox()
	case "Log Out":
		a.logInfo("logout %s", a.sess.UserID)
		a.sess = session.Session{}
		a.loggedIn = false
		a.userName = ""
		a.state = stateWelcome
		a.menu.SetItems(welcomeMenuItems())
		a.menu.Title = "⬡ QUADMART"
		a.statusMsg = ""
	}
	return nil
}

// enterMainMenu swaps the menu to the role-specific items after a login.
func (a *App) enterMainMenu() {
	a.state = stateMenu
	a.menu.SetItems(a.mainMenuItems())
	if a.sess.IsSeller() {
		a.menu.Title = fmt.Sprintf("⬡ QUADMART · %s (seller)", a.userName)
	} else {
		a.menu.Title = fmt.Sprintf("⬡ QUADMART · %s", a.userName)
	}
	a.menu.Select(0)
}

func (a *App) openForm(f *form) tea.Cmd {
	a.prevState = a.state
	a.form = f
	a.state = stateForm
	a.statusMsg = ""
	return f.setFocus(f.focus)
}

func (a *App) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	done, status, cmd, err := a.form.handleKey(msg)
	if err != nil {
		a.statusMsg = fmt.Sprintf("⚠ %v", err)
		return a, nil
	}
	if done {
		a.form = nil
		if status != "" {
			a.statusMsg = status
		}
		// The submit callback may have moved us to another screen.
		if a.state == stateForm {
			a.state = a.prevState
		}
	}
	return a, cmd
}

func (a *App) clampSelection(length int) {
	if a.selection >= length {
		a.selection = length - 1
	}
	if a.selection < 0 {
		a.selection = 0
	}
}

func (a *App) moveSelection(key string, length int) bool {
	switch key {
	case "up", "k":
		if a.selection > 0 {
			a.selection--
		}
		return true
	case "down", "j":
		if a.selection < length-1 {
			a.selection++
		}
		return true
	}
	return false
}

// --- Catalog -----------------------------------------------------------

func (a *App) showCatalog(category string) {
	products, err := a.catalog.Browse(category)
	if err != nil {
		a.statusMsg = fmt.Sprintf("⚠ %v", err)
		return
	}
	a.products = products
	a.selection = 0
	a.state = stateCatalog
	if category == "" {
		a.statusMsg = "Catalog · all categories"
	} else {
		a.statusMsg = fmt.Sprintf("Catalog · %s", category)
	}
}

func (a *App) showListings() {
	products, err := a.catalog.ForSeller(a.sess)
	if err != nil {
		a.statusMsg = fmt.Sprintf("⚠ %v", err)
		return
	}
	a.products = products
	a.selection = 0
	a.state = stateCatalog
	a.statusMsg = "My listings"
}

func (a *App) selectedProduct() (market.Product, bool) {
	if a.selection < 0 || a.selection >= len(a.products) {
		return market.Product{}, false
	}
	return a.products[a.selection], true
}

func (a *App) handleCatalogKey(key string) (bool, tea.Cmd) {
	if a.moveSelection(key, len(a.products)) {
		return true, nil
	}
	product, ok := a.selectedProduct()
	if !ok {
		return false, nil
	}
	switch key {
	case "enter":
		if !a.sess.IsBuyer() {
			return true, nil
		}
		if err := a.carts.Add(a.sess, product.ID, 1); err != nil {
			a.statusMsg = fmt.Sprintf("⚠ %v", err)
		} else {
			a.statusMsg = fmt.Sprintf("Added %s to cart", product.Name)
		}
		return true, nil
	case "f":
		if !a.sess.IsBuyer() {
			return true, nil
		}
		liked, err := a.social.ToggleLike(a.sess, product.ID)
		if err != nil {
			a.statusMsg = fmt.Sprintf("⚠ %v", err)
		} else if liked {
			a.statusMsg = fmt.Sprintf("Liked %s", product.Name)
		} else {
			a.statusMsg = fmt.Sprintf("Unliked %s", product.Name)
		}
		a.showCatalogRefresh()
		return true, nil
	case "v":
		if !a.sess.IsBuyer() {
			return true, nil
		}
		return true, a.openForm(reviewForm(a, product))
	case "c":
		return true, a.openForm(categoryForm(a))
	case "p":
		if a.sess.IsSeller() {
			return true, a.openForm(promotionForm(a, product))
		}
		return true, nil
	case "r":
		if a.sess.IsSeller() {
			return true, a.openForm(restockForm(a, product))
		}
		return true, nil
	}
	return false, nil
}

// showCatalogRefresh re-reads the current product rows in place.
func (a *App) showCatalogRefresh() {
	keep := a.selection
	if a.sess.IsSeller() {
		a.showListings()
	} else {
		a.showCatalog("")
	}
	a.selection = keep
	a.clampSelection(len(a.products))
}

// --- Cart --------------------------------------------------------------

func (a *App) showCart() {
	entries, err := a.carts.Entries(a.sess)
	if err != nil {
		a.statusMsg = fmt.Sprintf("⚠ %v", err)
		return
	}
	rows := make([]cartRow, 0, len(entries))
	for _, entry := range entries {
		product, err := a.catalog.Get(entry.ProductID)
		if err != nil {
			continue
		}
		rows = append(rows, cartRow{entry: entry, product: product})
	}
	a.cartRows = rows
	a.clampSelection(len(rows))
	a.state = stateCart
}

func (a *App) handleCartKey(key string) (bool, tea.Cmd) {
	if a.moveSelection(key, len(a.cartRows)) {
		return true, nil
	}
	switch key {
	case "+", "-":
		if a.selection >= len(a.cartRows) {
			return true, nil
		}
		row := a.cartRows[a.selection]
		qty := row.entry.Quantity + 1
		if key == "-" {
			qty = row.entry.Quantity - 1
		}
		var err error
		if qty <= 0 {
			err = a.carts.Remove(a.sess, row.entry.ProductID)
		} else {
			err = a.carts.SetQuantity(a.sess, row.entry.ProductID, qty)
		}
		if err != nil {
			a.statusMsg = fmt.Sprintf("⚠ %v", err)
		}
		a.showCart()
		return true, nil
	case "x":
		if a.selection >= len(a.cartRows) {
			return true, nil
		}
		row := a.cartRows[a.selection]
		if err := a.carts.Remove(a.sess, row.entry.ProductID); err != nil {
			a.statusMsg = fmt.Sprintf("⚠ %v", err)
		}
		a.showCart()
		return true, nil
	case "enter":
		if len(a.cartRows) == 0 {
			a.statusMsg = "Cart is empty"
			return true, nil
		}
		return true, a.openForm(checkoutForm(a))
	}
	return false, nil
}

// --- Orders ------------------------------------------------------------

func (a *App) showOrders() {
	var rows []market.Order
	var err error
	if a.sess.IsSeller() {
		rows, err = a.orders.ForSeller(a.sess)
	} else {
		rows, err = a.orders.ForBuyer(a.sess)
	}
	if err != nil {
		a.statusMsg = fmt.Sprintf("⚠ %v", err)
		return
	}
	a.orderRows = rows
	a.clampSelection(len(rows))
	a.state = stateOrders
}

func (a *App) selectedOrder() (market.Order, bool) {
	if a.selection < 0 || a.selection >= len(a.orderRows) {
		return market.Order{}, false
	}
	return a.orderRows[a.selection], true
}

func (a *App) handleOrdersKey(key string) (bool, tea.Cmd) {
	if a.moveSelection(key, len(a.orderRows)) {
		return true, nil
	}
	order, ok := a.selectedOrder()
	if !ok {
		return false, nil
	}
	switch key {
	case "s":
		if a.sess.IsSeller() {
			return true, a.openForm(shipmentForm(a, order))
		}
		return true, nil
	case "d":
		if !a.sess.IsBuyer() {
			return true, nil
		}
		if err := a.orders.ConfirmDelivery(a.sess, order.ID); err != nil {
			a.statusMsg = fmt.Sprintf("⚠ %v", err)
		} else {
			a.statusMsg = "Delivery confirmed"
			a.logInfo("order %s delivered", order.ID)
		}
		a.showOrders()
		return true, nil
	case "c":
		if err := a.orders.Cancel(a.sess, order.ID); err != nil {
			a.statusMsg = fmt.Sprintf("⚠ %v", err)
		} else {
			a.statusMsg = "Order cancelled"
			a.logInfo("order %s cancelled", order.ID)
		}
		a.showOrders()
		return true, nil
	case "t":
		if a.sess.IsBuyer() {
			return true, a.openForm(ticketForm(a, order))
		}
		return true, nil
	}
	return false, nil
}

// --- Tickets -----------------------------------------------------------

func (a *App) showTickets() {
	var rows []market.Ticket
	var err error
	if a.sess.IsSeller() {
		rows, err = a.tickets.ForSeller(a.sess)
	} else {
		rows, err = a.tickets.ForBuyer(a.sess)
	}
	if err != nil {
		a.statusMsg = fmt.Sprintf("⚠ %v", err)
		return
	}
	a.ticketRows = rows
	a.clampSelection(len(rows))
	a.state = stateTickets
}

func (a *App) selectedTicket() (market.Ticket, bool) {
	if a.selection < 0 || a.selection >= len(a.ticketRows) {
		return market.Ticket{}, false
	}
	return a.ticketRows[a.selection], true
}

func (a *App) handleTicketsKey(key string) (bool, tea.Cmd) {
	if a.moveSelection(key, len(a.ticketRows)) {
		return true, nil
	}
	ticket, ok := a.selectedTicket()
	if !ok {
		return false, nil
	}
	switch key {
	case "r":
		return true, a.openForm(returnShipmentForm(a, ticket))
	case "g":
		if !a.sess.IsSeller() {
			return true, nil
		}
		if err := a.tickets.ConfirmReturnReceipt(a.sess, ticket.ID); err != nil {
			a.statusMsg = fmt.Sprintf("⚠ %v", err)
		} else {
			a.statusMsg = "Return receipt confirmed"
		}
		a.showTickets()
		return true, nil
	case "h":
		if a.sess.IsSeller() {
			return true, a.openForm(replacementShipmentForm(a, ticket))
		}
		return true, nil
	case "s":
		if a.sess.IsSeller() {
			return true, a.openForm(suggestionForm(a, ticket))
		}
		return true, nil
	case "p":
		if !a.sess.IsBuyer() {
			return true, nil
		}
		if err := a.tickets.ConfirmReplacementReceipt(a.sess, ticket.ID); err != nil {
			a.statusMsg = fmt.Sprintf("⚠ %v", err)
		} else {
			a.statusMsg = "Replacement receipt confirmed · ticket closed"
		}
		a.showTickets()
		return true, nil
	case "e":
		if a.sess.IsBuyer() {
			return true, a.openForm(exchangeItemForm(a, ticket))
		}
		return true, nil
	case "x":
		if !a.sess.IsBuyer() {
			return true, nil
		}
		settlement, err := a.tickets.CompleteExchange(a.sess, ticket.ID)
		if err != nil {
			a.statusMsg = fmt.Sprintf("⚠ %v", err)
		} else if settlement.ChargedCents > 0 {
			a.statusMsg = fmt.Sprintf("Exchange complete · charged %s", formatCents(settlement.ChargedCents))
		} else {
			a.statusMsg = fmt.Sprintf("Exchange complete · refunded %s and %d pt",
				formatCents(settlement.RefundCents), settlement.RefundPoints)
		}
		a.showTickets()
		return true, nil
	}
	return false, nil
}

// --- Inbox -------------------------------------------------------------

func (a *App) showInbox() {
	rows, err := a.accounts.Inbox(a.sess)
	if err != nil {
		a.statusMsg = fmt.Sprintf("⚠ %v", err)
		return
	}
	a.inboxRows = rows
	a.clampSelection(len(rows))
	a.state = stateInbox
}

func (a *App) handleInboxKey(key string) (bool, tea.Cmd) {
	if a.moveSelection(key, len(a.inboxRows)) {
		return true, nil
	}
	if key == "x" {
		if a.selection >= len(a.inboxRows) {
			return true, nil
		}
		note := a.inboxRows[a.selection]
		if err := a.accounts.DeleteNotification(a.sess, note.ID); err != nil {
			a.statusMsg = fmt.Sprintf("⚠ %v", err)
		}
		a.showInbox()
		return true, nil
	}
	return false, nil
}

func formatCents(cents int) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

func formatState(value string) string {
	return strings.ReplaceAll(value, "_", " ")
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
