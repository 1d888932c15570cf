package store

import (
	"context"
	"database/sql"

	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/models"
)

// QueueRepository implements QueueRepo on SQLite
type QueueRepository struct {
	db *sql.DB
}

// NewQueueRepository creates a new QueueRepository
func NewQueueRepository(db *sql.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

// Append adds an entry to the durable queue
func (r *QueueRepository) Append(ctx context.Context, entry *models.QueueEntry) error {
	query := `INSERT INTO sync_queue (id, tenant_id, table_name, operation, entity_id, payload, enqueued_at, attempts, status, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.TenantID,
		entry.Table,
		entry.Operation,
		entry.EntityID,
		string(entry.Payload),
		entry.EnqueuedAt,
		entry.Attempts,
		entry.Status,
		entry.LastError,
	)
	return err
}

// GetByID retrieves one entry, nil when missing
func (r *QueueRepository) GetByID(ctx context.Context, id string) (*models.QueueEntry, error) {
	query := queueSelect + ` WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	entry, err := scanQueueEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListPending returns PENDING and stale SYNCING entries in enqueue order.
// Timestamps tie-break on rowid so same-instant entries keep insertion order.
func (r *QueueRepository) ListPending(ctx context.Context, tenantID string) ([]*models.QueueEntry, error) {
	query := queueSelect + ` WHERE tenant_id = ? AND status IN (?, ?) ORDER BY enqueued_at ASC, rowid ASC`
	return r.list(ctx, query, tenantID, models.EntryPending, models.EntrySyncing)
}

// ListFailed returns terminally failed entries in enqueue order
func (r *QueueRepository) ListFailed(ctx context.Context, tenantID string) ([]*models.QueueEntry, error) {
	query := queueSelect + ` WHERE tenant_id = ? AND status = ? ORDER BY enqueued_at ASC, rowid ASC`
	return r.list(ctx, query, tenantID, models.EntryFailed)
}

// HasUnfinishedForEntity reports whether any non-terminal entry exists for the
// entity. Used to guard soft-deleted records against resurrection by remote
// reads and to hold back reads behind pending deletes.
func (r *QueueRepository) HasUnfinishedForEntity(ctx context.Context, tenantID, entityID string) (bool, error) {
	query := `SELECT COUNT(*) FROM sync_queue WHERE tenant_id = ? AND entity_id = ? AND status IN (?, ?)`
	var count int
	err := r.db.QueryRowContext(ctx, query, tenantID, entityID, models.EntryPending, models.EntrySyncing).Scan(&count)
	return count > 0, err
}

// MarkStatus transitions an entry and records attempt count and last error
func (r *QueueRepository) MarkStatus(ctx context.Context, id string, status models.EntryStatus, attempts int, lastError string) error {
	query := `UPDATE sync_queue SET status = ?, attempts = ?, last_error = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, status, attempts, lastError, id)
	return err
}

// RetargetEntity rewrites the entity id on queued entries after a CREATE
// confirms and the server issues the real id
func (r *QueueRepository) RetargetEntity(ctx context.Context, tenantID, oldEntityID, newEntityID string) error {
	query := `UPDATE sync_queue SET entity_id = ? WHERE tenant_id = ? AND entity_id = ? AND status IN (?, ?)`
	_, err := r.db.ExecContext(ctx, query, newEntityID, tenantID, oldEntityID, models.EntryPending, models.EntrySyncing)
	return err
}

// ResetFailed requeues FAILED entries for an entity after the user chose to
// resend. Returns how many entries were reset.
func (r *QueueRepository) ResetFailed(ctx context.Context, tenantID, entityID string) (int, error) {
	query := `UPDATE sync_queue SET status = ?, attempts = 0, last_error = ''
		WHERE tenant_id = ? AND entity_id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, query, models.EntryPending, tenantID, entityID, models.EntryFailed)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Delete removes an entry once it reached DONE
func (r *QueueRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id)
	return err
}

const queueSelect = `SELECT id, tenant_id, table_name, operation, entity_id, payload, enqueued_at, attempts, status, last_error FROM sync_queue`

func (r *QueueRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.QueueEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.QueueEntry
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanQueueEntry(row rowScanner) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	var payload, lastError sql.NullString
	err := row.Scan(
		&entry.ID,
		&entry.TenantID,
		&entry.Table,
		&entry.Operation,
		&entry.EntityID,
		&payload,
		&entry.EnqueuedAt,
		&entry.Attempts,
		&entry.Status,
		&lastError,
	)
	if err != nil {
		return nil, err
	}
	if payload.Valid {
		entry.Payload = []byte(payload.String)
	}
	entry.LastError = lastError.String
	return &entry, nil
}
