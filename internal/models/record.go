package models

import (
	"encoding/json"
	"time"
)

// SyncStatus describes how a locally held record relates to server state
type SyncStatus string

const (
	// SyncPending means a local change has not been confirmed by the server yet
	SyncPending SyncStatus = "pending"
	// SyncSynced means the local copy matches the last known server state
	SyncSynced SyncStatus = "synced"
	// SyncConflict means the server rejected a change or returned a different
	// authoritative state than the client assumed
	SyncConflict SyncStatus = "conflict"
)

// Record is the locally persisted copy of one domain object plus sync metadata.
// Business fields are kept as raw JSON so the store works uniformly across
// entity tables (customers, branches, food items, ...).
type Record struct {
	ID         string          `json:"id"`
	TenantID   string          `json:"tenantId"`
	Table      string          `json:"table"`
	Fields     json.RawMessage `json:"fields"`
	UpdatedAt  time.Time       `json:"updatedAt"`
	LastSynced *time.Time      `json:"lastSynced,omitempty"`
	SyncStatus SyncStatus      `json:"syncStatus"`
	DeletedAt  *time.Time      `json:"deletedAt,omitempty"`
}

// IsDeleted reports whether the record carries a soft-delete marker
func (r *Record) IsDeleted() bool {
	return r.DeletedAt != nil
}
