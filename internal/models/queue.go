package models

import (
	"encoding/json"
	"time"
)

// Operation is the kind of mutation a queue entry carries
type Operation string

const (
	OpCreate Operation = "CREATE"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

// EntryStatus is the delivery state of a queue entry
type EntryStatus string

const (
	// EntryPending is waiting for the processor to pick it up
	EntryPending EntryStatus = "PENDING"
	// EntrySyncing is being pushed right now; entries found in this state on
	// startup are treated as pending again (crash recovery)
	EntrySyncing EntryStatus = "SYNCING"
	// EntryFailed is terminal: the server rejected the change or retries ran out
	EntryFailed EntryStatus = "FAILED"
	// EntryDone is terminal: the server confirmed the change
	EntryDone EntryStatus = "DONE"
)

// QueueEntry is a durable record of one pending mutation awaiting delivery.
// Entries for the same entity id are causally ordered by EnqueuedAt.
type QueueEntry struct {
	ID         string          `json:"id"`
	TenantID   string          `json:"tenantId"`
	Table      string          `json:"table"`
	Operation  Operation       `json:"operation"`
	EntityID   string          `json:"entityId"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
	Attempts   int             `json:"attempts"`
	Status     EntryStatus     `json:"status"`
	LastError  string          `json:"lastError,omitempty"`
}

// Terminal reports whether the entry has reached a final state
func (e *QueueEntry) Terminal() bool {
	return e.Status == EntryDone || e.Status == EntryFailed
}
