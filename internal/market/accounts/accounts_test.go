package accounts

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
	return svc, db
}

func TestRegisterAndLoginBuyer(t *testing.T) {
	svc, _ := newService(t)
	buyer, err := svc.RegisterBuyer("Jo", "jo@campus.test", "Dorm 4", "opensesame")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if buyer.FidelityPoints != 0 {
		t.Fatalf("new buyers start at zero points, got %d", buyer.FidelityPoints)
	}
	if buyer.PasswordHash == "opensesame" {
		t.Fatalf("password must not be stored in the clear")
	}

	got, sess, err := svc.LoginBuyer("jo@campus.test", "opensesame")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got.ID != buyer.ID || !sess.IsBuyer() || sess.UserID != buyer.ID {
		t.Fatalf("unexpected login result: %+v %+v", got, sess)
	}
	if _, _, err := svc.LoginBuyer("jo@campus.test", "wrong"); !errors.Is(err, market.ErrInvalidInput) {
		t.Fatalf("expected rejected login, got %v", err)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _ := newService(t)
	if _, err := svc.RegisterBuyer("Jo", "jo@campus.test", "", "opensesame"); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := svc.RegisterBuyer("Flo", "jo@campus.test", "", "different")
	if !errors.Is(err, market.ErrInvalidInput) {
		t.Fatalf("expected duplicate email guard, got %v", err)
	}
	if _, err := svc.RegisterBuyer("Jo", "not-an-email", "", "opensesame"); !errors.Is(err, market.ErrInvalidInput) {
		t.Fatalf("expected email format guard, got %v", err)
	}
}

func TestAdjustFidelityPointsMayGoNegative(t *testing.T) {
	svc, db := newService(t)
	buyer, err := svc.RegisterBuyer("Jo", "jo@campus.test", "", "opensesame")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.AdjustFidelityPoints(buyer.ID, -40, "review abuse"); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	got, err := db.Buyers.GetByID(buyer.ID)
	if err != nil {
		t.Fatalf("load buyer: %v", err)
	}
	if got.FidelityPoints != -40 {
		t.Fatalf("moderation may overdraw the balance, got %d", got.FidelityPoints)
	}
	notes, err := svc.Inbox(session.Buyer(buyer.ID))
	if err != nil {
		t.Fatalf("inbox: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("expected one adjustment notification, got %d", len(notes))
	}
}

func TestInboxIsPerRecipientAndDeletable(t *testing.T) {
	svc, db := newService(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	mine := market.NewNotification("buyer-1", "hello", "body", now)
	if err := db.Notifications.Add(mine); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := db.Notifications.Add(market.NewNotification("buyer-2", "other", "body", now)); err != nil {
		t.Fatalf("add: %v", err)
	}

	sess := session.Buyer("buyer-1")
	notes, err := svc.Inbox(sess)
	if err != nil {
		t.Fatalf("inbox: %v", err)
	}
	if len(notes) != 1 || notes[0].Title != "hello" {
		t.Fatalf("unexpected inbox: %+v", notes)
	}

	if err := svc.DeleteNotification(sess, mine.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// Deleting someone else's notification is refused.
	others, err := db.Notifications.All()
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if err := svc.DeleteNotification(sess, others[0].ID); !errors.Is(err, market.ErrNotFound) {
		t.Fatalf("expected not found for foreign notification, got %v", err)
	}
}

func TestHashPasswordIsStable(t *testing.T) {
	if HashPassword("abc") != HashPassword("abc") {
		t.Fatalf("hash must be deterministic")
	}
	if HashPassword("abc") == HashPassword("abd") {
		t.Fatalf("different inputs should not collide trivially")
	}
}
