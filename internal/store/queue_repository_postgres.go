package store

import (
	"context"
	"database/sql"

	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/models"
)

// QueueRepositoryPostgres implements QueueRepo on PostgreSQL
type QueueRepositoryPostgres struct {
	db *sql.DB
}

// NewQueueRepositoryPostgres creates a new QueueRepositoryPostgres
func NewQueueRepositoryPostgres(db *sql.DB) *QueueRepositoryPostgres {
	return &QueueRepositoryPostgres{db: db}
}

func (r *QueueRepositoryPostgres) Append(ctx context.Context, entry *models.QueueEntry) error {
	query := `INSERT INTO sync_queue (id, tenant_id, table_name, operation, entity_id, payload, enqueued_at, attempts, status, last_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.TenantID, entry.Table, entry.Operation, entry.EntityID,
		string(entry.Payload), entry.EnqueuedAt, entry.Attempts, entry.Status, entry.LastError)
	return err
}

func (r *QueueRepositoryPostgres) GetByID(ctx context.Context, id string) (*models.QueueEntry, error) {
	query := queueSelect + ` WHERE id = $1`
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

// Timestamps tie-break on the seq sequence so same-instant entries keep
// insertion order
func (r *QueueRepositoryPostgres) ListPending(ctx context.Context, tenantID string) ([]*models.QueueEntry, error) {
	query := queueSelect + ` WHERE tenant_id = $1 AND status IN ($2, $3) ORDER BY enqueued_at ASC, seq ASC`
	return r.list(ctx, query, tenantID, models.EntryPending, models.EntrySyncing)
}

func (r *QueueRepositoryPostgres) ListFailed(ctx context.Context, tenantID string) ([]*models.QueueEntry, error) {
	query := queueSelect + ` WHERE tenant_id = $1 AND status = $2 ORDER BY enqueued_at ASC, seq ASC`
	return r.list(ctx, query, tenantID, models.EntryFailed)
}

func (r *QueueRepositoryPostgres) HasUnfinishedForEntity(ctx context.Context, tenantID, entityID string) (bool, error) {
	query := `SELECT COUNT(*) FROM sync_queue WHERE tenant_id = $1 AND entity_id = $2 AND status IN ($3, $4)`
	var count int
	err := r.db.QueryRowContext(ctx, query, tenantID, entityID, models.EntryPending, models.EntrySyncing).Scan(&count)
	return count > 0, err
}

func (r *QueueRepositoryPostgres) MarkStatus(ctx context.Context, id string, status models.EntryStatus, attempts int, lastError string) error {
	query := `UPDATE sync_queue SET status = $1, attempts = $2, last_error = $3 WHERE id = $4`
	_, err := r.db.ExecContext(ctx, query, status, attempts, lastError, id)
	return err
}

func (r *QueueRepositoryPostgres) RetargetEntity(ctx context.Context, tenantID, oldEntityID, newEntityID string) error {
	query := `UPDATE sync_queue SET entity_id = $1 WHERE tenant_id = $2 AND entity_id = $3 AND status IN ($4, $5)`
	_, err := r.db.ExecContext(ctx, query, newEntityID, tenantID, oldEntityID, models.EntryPending, models.EntrySyncing)
	return err
}

func (r *QueueRepositoryPostgres) ResetFailed(ctx context.Context, tenantID, entityID string) (int, error) {
	query := `UPDATE sync_queue SET status = $1, attempts = 0, last_error = ''
		WHERE tenant_id = $2 AND entity_id = $3 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, models.EntryPending, tenantID, entityID, models.EntryFailed)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *QueueRepositoryPostgres) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = $1`, id)
	return err
}

func (r *QueueRepositoryPostgres) list(ctx context.Context, query string, args ...interface{}) ([]*models.QueueEntry, error) {
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
