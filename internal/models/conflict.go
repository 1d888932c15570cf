package models

import (
	"encoding/json"
	"time"
)

// ConflictKind distinguishes why a queue entry ended up FAILED
type ConflictKind string

const (
	// ConflictRejected means the server refused the mutation outright
	ConflictRejected ConflictKind = "rejected"
	// ConflictStale means the server's current version differed from what the
	// client assumed
	ConflictStale ConflictKind = "stale"
	// ConflictExhausted means transient retries ran out without a server verdict
	ConflictExhausted ConflictKind = "exhausted"
)

// Conflict is surfaced to the UI layer when a queued mutation cannot be
// delivered. It is never auto-resolved; the rejected payload stays on the
// entry so the user can choose to resend after reviewing server state.
type Conflict struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenantId"`
	Table       string          `json:"table"`
	EntityID    string          `json:"entityId"`
	EntryID     string          `json:"entryId"`
	Kind        ConflictKind    `json:"kind"`
	Message     string          `json:"message"`
	ServerState json.RawMessage `json:"serverState,omitempty"`
	OccurredAt  time.Time       `json:"occurredAt"`
	ResolvedAt  *time.Time      `json:"resolvedAt,omitempty"`
}
