package ledger

import (
	"context"
	"fmt"
	"sync"
)

// MemoryLedger is an in-process Ledger.
// Entries are lost on restart, so it only deduplicates within one process.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// Ensure MemoryLedger implements Ledger interface
var _ Ledger = (*MemoryLedger)(nil)

// NewMemoryLedger creates an empty MemoryLedger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[string]Entry)}
}

// Seen reports whether eventID has been recorded
func (l *MemoryLedger) Seen(ctx context.Context, eventID string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[eventID]
	return ok, nil
}

// Record stores entry unless its event ID is already present
func (l *MemoryLedger) Record(ctx context.Context, entry Entry) error {
	if entry.EventID == "" {
		return fmt.Errorf("event ID is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[entry.EventID]; ok {
		return ErrDuplicate
	}
	l.entries[entry.EventID] = entry
	return nil
}

// Get returns the entry for eventID, nil if absent
func (l *MemoryLedger) Get(eventID string) *Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[eventID]
	if !ok {
		return nil
	}
	return &e
}
