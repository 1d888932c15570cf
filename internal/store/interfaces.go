package store

import (
	"context"
	"time"

	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/models"
)

// QueryOptions controls record queries. Soft-deleted rows are excluded unless
// IncludeDeleted is set.
type QueryOptions struct {
	IncludeDeleted bool
}

// RecordRepo defines persistence operations for entity records. Every
// operation is scoped by tenant; nothing ever reads across tenants.
type RecordRepo interface {
	Get(ctx context.Context, tenantID, table, id string) (*models.Record, error)
	Query(ctx context.Context, tenantID, table string, opts QueryOptions) ([]*models.Record, error)
	Put(ctx context.Context, rec *models.Record) error
	MarkDeleted(ctx context.Context, tenantID, table, id string, at time.Time) error
	Purge(ctx context.Context, tenantID, table, id string) error
	Rekey(ctx context.Context, tenantID, table, oldID, newID string) error
	SetSyncStatus(ctx context.Context, tenantID, table, id string, status models.SyncStatus, lastSynced *time.Time) error
}

// QueueRepo defines persistence operations for the durable mutation queue
type QueueRepo interface {
	Append(ctx context.Context, entry *models.QueueEntry) error
	GetByID(ctx context.Context, id string) (*models.QueueEntry, error)
	// ListPending returns non-terminal entries in enqueue order. Entries stuck
	// in SYNCING from a crashed run are included.
	ListPending(ctx context.Context, tenantID string) ([]*models.QueueEntry, error)
	ListFailed(ctx context.Context, tenantID string) ([]*models.QueueEntry, error)
	HasUnfinishedForEntity(ctx context.Context, tenantID, entityID string) (bool, error)
	MarkStatus(ctx context.Context, id string, status models.EntryStatus, attempts int, lastError string) error
	RetargetEntity(ctx context.Context, tenantID, oldEntityID, newEntityID string) error
	ResetFailed(ctx context.Context, tenantID, entityID string) (int, error)
	Delete(ctx context.Context, id string) error
}

// ConflictRepo defines persistence for surfaced delivery failures
type ConflictRepo interface {
	Add(ctx context.Context, c *models.Conflict) error
	ListOpen(ctx context.Context, tenantID string) ([]*models.Conflict, error)
	Resolve(ctx context.Context, id string, at time.Time) error
}
