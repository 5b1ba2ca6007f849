package carts

import (
	"errors"
	"testing"
	"time"

	"github.com/kelrowe/quadmart/internal/market"
	"github.com/kelrowe/quadmart/internal/session"
	"github.com/kelrowe/quadmart/internal/store"
)

func newService(t *testing.T) (*Service, *market.DB) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	db := market.Open(st)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc, err := New(db, WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := db.Products.Add(market.Product{ID: "p-1", SellerID: "seller-1", Name: "Mug", Category: "kitchen", PriceCents: 500, Quantity: 10}); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return svc, db
}

func TestAddMergesDuplicateProduct(t *testing.T) {
	svc, _ := newService(t)
	buyer := session.Buyer("buyer-1")

	if err := svc.Add(buyer, "p-1", 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.Add(buyer, "p-1", 3); err != nil {
		t.Fatalf("add again: %v", err)
	}
	entries, err := svc.Entries(buyer)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Quantity != 5 {
		t.Fatalf("expected one merged entry of 5, got %+v", entries)
	}
}

func TestAddRejectsUnknownProductAndBadQuantity(t *testing.T) {
	svc, _ := newService(t)
	buyer := session.Buyer("buyer-1")

	if err := svc.Add(buyer, "p-9", 1); !errors.Is(err, market.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.Add(buyer, "p-1", 0); !errors.Is(err, market.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if err := svc.Add(session.Seller("seller-1"), "p-1", 1); !errors.Is(err, market.ErrInvalidInput) {
		t.Fatalf("expected buyer-only guard, got %v", err)
	}
}

func TestSetQuantityAndRemove(t *testing.T) {
	svc, _ := newService(t)
	buyer := session.Buyer("buyer-1")

	if err := svc.Add(buyer, "p-1", 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.SetQuantity(buyer, "p-1", 7); err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	entries, err := svc.Entries(buyer)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if entries[0].Quantity != 7 {
		t.Fatalf("expected quantity 7, got %d", entries[0].Quantity)
	}
	if err := svc.Remove(buyer, "p-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := svc.Remove(buyer, "p-1"); !errors.Is(err, market.ErrNotFound) {
		t.Fatalf("expected not found on second remove, got %v", err)
	}
}

func TestClearIsIdempotent(t *testing.T) {
	svc, _ := newService(t)
	buyer := session.Buyer("buyer-1")

	if err := svc.Clear(buyer); err != nil {
		t.Fatalf("clear of empty cart must be a no-op: %v", err)
	}
	if err := svc.Add(buyer, "p-1", 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.Clear(buyer); err != nil {
		t.Fatalf("clear: %v", err)
	}
	entries, err := svc.Entries(buyer)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty cart, got %+v", entries)
	}
}

func TestCartsAreScopedPerBuyer(t *testing.T) {
	svc, _ := newService(t)
	if err := svc.Add(session.Buyer("buyer-1"), "p-1", 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	entries, err := svc.Entries(session.Buyer("buyer-2"))
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("buyer-2 must not see buyer-1's cart, got %+v", entries)
	}
}
