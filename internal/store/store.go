package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/models"
	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/observability"
)

// LocalStore is the tenant-scoped facade over the record repositories. It is
// the single shared mutable resource of the sync client: optimistic local
// writes, processor metadata updates and remote merges all pass through it,
// and read-modify-write cycles are serialized per record.
type LocalStore struct {
	tenantID string
	records  RecordRepo
	queue    QueueRepo
	log      *observability.Logger
	locks    keyedMutex
}

// NewLocalStore creates a LocalStore bound to one tenant
func NewLocalStore(tenantID string, records RecordRepo, queue QueueRepo) *LocalStore {
	return &LocalStore{
		tenantID: tenantID,
		records:  records,
		queue:    queue,
		log:      observability.WithField("tenant_id", tenantID),
	}
}

// TenantID returns the tenant this store is bound to
func (s *LocalStore) TenantID() string {
	return s.tenantID
}

// Get returns one record, or nil when absent
func (s *LocalStore) Get(ctx context.Context, table, id string) (*models.Record, error) {
	return s.records.Get(ctx, s.tenantID, table, id)
}

// Query returns the tenant's records for one table, excluding soft-deleted
// rows unless opts asks for them
func (s *LocalStore) Query(ctx context.Context, table string, opts QueryOptions) ([]*models.Record, error) {
	return s.records.Query(ctx, s.tenantID, table, opts)
}

// Put applies an optimistic local write. The record becomes visible
// immediately with pending sync status; durability is confirmed before return.
func (s *LocalStore) Put(ctx context.Context, table, id string, fields json.RawMessage) (*models.Record, error) {
	ctx, span := observability.StartStoreSpan(ctx, "put", table)
	defer span.End()

	unlock := s.locks.lock(table + "/" + id)
	defer unlock()

	rec := &models.Record{
		ID:         id,
		TenantID:   s.tenantID,
		Table:      table,
		Fields:     fields,
		UpdatedAt:  time.Now().UTC(),
		SyncStatus: models.SyncPending,
	}
	if err := s.records.Put(ctx, rec); err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("local write for %s/%s: %w", table, id, err)
	}
	return rec, nil
}

// MarkDeleted soft-deletes a record; it disappears from default queries but
// stays until the queued DELETE confirms
func (s *LocalStore) MarkDeleted(ctx context.Context, table, id string) error {
	unlock := s.locks.lock(table + "/" + id)
	defer unlock()
	return s.records.MarkDeleted(ctx, s.tenantID, table, id, time.Now().UTC())
}

// Purge physically removes a record after its DELETE confirmed
func (s *LocalStore) Purge(ctx context.Context, table, id string) error {
	unlock := s.locks.lock(table + "/" + id)
	defer unlock()
	return s.records.Purge(ctx, s.tenantID, table, id)
}

// Rekey swaps a client-generated id for the server-issued one
func (s *LocalStore) Rekey(ctx context.Context, table, oldID, newID string) error {
	unlock := s.locks.lock(table + "/" + oldID)
	defer unlock()
	return s.records.Rekey(ctx, s.tenantID, table, oldID, newID)
}

// SetSyncStatus updates a record's sync metadata
func (s *LocalStore) SetSyncStatus(ctx context.Context, table, id string, status models.SyncStatus, lastSynced *time.Time) error {
	unlock := s.locks.lock(table + "/" + id)
	defer unlock()
	return s.records.SetSyncStatus(ctx, s.tenantID, table, id, status, lastSynced)
}

// ApplyAuthoritative overwrites a record's business fields with server truth
// while forcing the given sync status. Used on conflict surfacing.
func (s *LocalStore) ApplyAuthoritative(ctx context.Context, table, id string, fields json.RawMessage, status models.SyncStatus) error {
	unlock := s.locks.lock(table + "/" + id)
	defer unlock()

	existing, err := s.records.Get(ctx, s.tenantID, table, id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	rec := &models.Record{
		ID:         id,
		TenantID:   s.tenantID,
		Table:      table,
		Fields:     fields,
		UpdatedAt:  now,
		LastSynced: &now,
		SyncStatus: status,
	}
	if existing != nil {
		rec.DeletedAt = existing.DeletedAt
	}
	return s.records.Put(ctx, rec)
}

type remoteItem struct {
	ID        string    `json:"id"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MergeRemote reconciles a page of remote rows into the local store. Rules:
// records with unconfirmed local changes (pending/conflict) keep the local
// copy, soft-deleted records are not resurrected while their DELETE is still
// queued, and a remote row only overwrites a synced local copy when it is not
// older than it.
func (s *LocalStore) MergeRemote(ctx context.Context, table string, items []json.RawMessage) error {
	ctx, span := observability.StartStoreSpan(ctx, "merge", table)
	defer span.End()

	for _, raw := range items {
		var item remoteItem
		if err := json.Unmarshal(raw, &item); err != nil || item.ID == "" {
			s.log.WithField("table", table).Warn("skipping remote row without id")
			continue
		}
		if err := s.mergeOne(ctx, table, item, raw); err != nil {
			return err
		}
	}
	return nil
}

func (s *LocalStore) mergeOne(ctx context.Context, table string, item remoteItem, raw json.RawMessage) error {
	unlock := s.locks.lock(table + "/" + item.ID)
	defer unlock()

	existing, err := s.records.Get(ctx, s.tenantID, table, item.ID)
	if err != nil {
		return err
	}

	if existing != nil {
		// Local changes win until the processor settles them
		if existing.SyncStatus == models.SyncPending || existing.SyncStatus == models.SyncConflict {
			return nil
		}
		if existing.IsDeleted() {
			return nil
		}
		if !item.UpdatedAt.IsZero() && item.UpdatedAt.Before(existing.UpdatedAt) {
			return nil
		}
	} else {
		// A queued DELETE may still be in flight for this id
		unfinished, err := s.queue.HasUnfinishedForEntity(ctx, s.tenantID, item.ID)
		if err != nil {
			return err
		}
		if unfinished {
			return nil
		}
	}

	now := time.Now().UTC()
	updatedAt := item.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}
	return s.records.Put(ctx, &models.Record{
		ID:         item.ID,
		TenantID:   s.tenantID,
		Table:      table,
		Fields:     raw,
		UpdatedAt:  updatedAt,
		LastSynced: &now,
		SyncStatus: models.SyncSynced,
	})
}

// RemoveRemote handles a remote DELETE notification for a record with no
// local changes in flight
func (s *LocalStore) RemoveRemote(ctx context.Context, table, id string) error {
	unlock := s.locks.lock(table + "/" + id)
	defer unlock()

	existing, err := s.records.Get(ctx, s.tenantID, table, id)
	if err != nil || existing == nil {
		return err
	}
	if existing.SyncStatus == models.SyncPending || existing.SyncStatus == models.SyncConflict {
		return nil
	}
	return s.records.Purge(ctx, s.tenantID, table, id)
}

// keyedMutex serializes access per record key
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
