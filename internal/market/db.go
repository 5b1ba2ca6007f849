package market

import "github.com/kelrowe/quadmart/internal/store"

// DB bundles one typed collection per entity kind. The compiler enforces
// the kind/type correspondence; callers never cast.
type DB struct {
	Buyers        *store.Collection[Buyer]
	Sellers       *store.Collection[Seller]
	Products      *store.Collection[Product]
	CartEntries   *store.Collection[CartEntry]
	Orders        *store.Collection[Order]
	Reviews       *store.Collection[Review]
	Likes         *store.Collection[Like]
	Notifications *store.Collection[Notification]
	Tickets       *store.Collection[Ticket]
}

// Open binds every collection to its file in the store's data directory.
func Open(st *store.Store) *DB {
	return &DB{
		Buyers:        store.NewCollection[Buyer](st, "buyers"),
		Sellers:       store.NewCollection[Seller](st, "sellers"),
		Products:      store.NewCollection[Product](st, "products"),
		CartEntries:   store.NewCollection[CartEntry](st, "carts"),
		Orders:        store.NewCollection[Order](st, "orders"),
		Reviews:       store.NewCollection[Review](st, "reviews"),
		Likes:         store.NewCollection[Like](st, "likes"),
		Notifications: store.NewCollection[Notification](st, "notifications"),
		Tickets:       store.NewCollection[Ticket](st, "tickets"),
	}
}
