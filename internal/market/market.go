// internal/market/market.go
//
// Shared marketplace vocabulary: entity identifiers, the error taxonomy
// every engine reports through, and the notification record. Engines wrap
// these sentinels with %w so the UI layer can classify failures with
// errors.Is while still showing the wrapped human-readable message.

package market

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidInput marks validation failures. Nothing was mutated.
var ErrInvalidInput = errors.New("invalid input")

// ErrNotFound marks lookups of unknown entity ids. Nothing was mutated.
var ErrNotFound = errors.New("not found")

// ErrIllegalTransition marks state-machine moves that are not legal from
// the current state. Nothing was mutated.
var ErrIllegalTransition = errors.New("illegal transition")

// ErrStoreFailure marks an underlying store I/O fault. The operation may
// have partially applied; callers must not retry blindly.
var ErrStoreFailure = errors.New("store failure")

// NewID mints a globally unique, immutable entity identifier.
func NewID() string {
	return uuid.NewString()
}

// Notification is a write-once message for one recipient. Delivery is out
// of scope; the engines only enqueue records.
type Notification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
}

// EntityID implements store.Entity.
func (n Notification) EntityID() string { return n.ID }

// NewNotification builds a notification record for the given recipient.
func NewNotification(recipientID, title, body string, now time.Time) Notification {
	return Notification{
		ID:          NewID(),
		RecipientID: recipientID,
		Title:       title,
		Body:        body,
		CreatedAt:   now,
	}
}
