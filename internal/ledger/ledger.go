// Package ledger records which user-created events have already been
// processed, keyed by event ID, so that redelivered events are acknowledged
// without a second claim write.
package ledger

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicate is returned by Record when the event ID is already present
var ErrDuplicate = errors.New("event already recorded")

// Entry is one processed event
type Entry struct {
	EventID     string    `firestore:"-" json:"eventId"`
	UID         string    `firestore:"uid" json:"uid"`
	Email       string    `firestore:"email" json:"email"`
	Outcome     string    `firestore:"outcome" json:"outcome"` // "granted" | "not_admin"
	ProcessedAt time.Time `firestore:"processedAt" json:"processedAt"`
}

// Ledger defines the interface for processed-event storage
type Ledger interface {
	// Seen reports whether eventID has already been recorded
	//
	// Parameters:
	//   - ctx: Context for cancellation control
	//   - eventID: Idempotency key of the delivery
	//
	// Returns:
	//   - true if an entry exists
	//   - Error if the storage operation fails (nil for not found)
	Seen(ctx context.Context, eventID string) (bool, error)

	// Record stores entry under entry.EventID
	//
	// Parameters:
	//   - ctx: Context for cancellation control
	//   - entry: Processed event to store
	//
	// Returns:
	//   - ErrDuplicate if the event ID is already recorded
	//   - Error if the storage operation fails
	Record(ctx context.Context, entry Entry) error
}
