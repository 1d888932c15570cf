package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/models"
)

// RecordRepository implements RecordRepo on SQLite
type RecordRepository struct {
	db *sql.DB
}

// NewRecordRepository creates a new RecordRepository
func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Get retrieves one record by id. Returns nil, nil when the record does not
// exist. Soft-deleted records are returned; callers check IsDeleted.
func (r *RecordRepository) Get(ctx context.Context, tenantID, table, id string) (*models.Record, error) {
	query := `SELECT tenant_id, table_name, id, fields, updated_at, last_synced, sync_status, deleted_at
		FROM entity_records WHERE tenant_id = ? AND table_name = ? AND id = ?`

	row := r.db.QueryRowContext(ctx, query, tenantID, table, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Query returns all records of one table for the tenant, newest first
func (r *RecordRepository) Query(ctx context.Context, tenantID, table string, opts QueryOptions) ([]*models.Record, error) {
	query := `SELECT tenant_id, table_name, id, fields, updated_at, last_synced, sync_status, deleted_at
		FROM entity_records WHERE tenant_id = ? AND table_name = ?`
	if !opts.IncludeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := r.db.QueryContext(ctx, query, tenantID, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Put upserts a record. The (tenant, table, id) primary key guarantees a
// single row per entity.
func (r *RecordRepository) Put(ctx context.Context, rec *models.Record) error {
	query := `INSERT INTO entity_records (tenant_id, table_name, id, fields, updated_at, last_synced, sync_status, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, table_name, id) DO UPDATE SET
			fields = excluded.fields,
			updated_at = excluded.updated_at,
			last_synced = excluded.last_synced,
			sync_status = excluded.sync_status,
			deleted_at = excluded.deleted_at`

	_, err := r.db.ExecContext(ctx, query,
		rec.TenantID,
		rec.Table,
		rec.ID,
		string(rec.Fields),
		rec.UpdatedAt,
		rec.LastSynced,
		rec.SyncStatus,
		rec.DeletedAt,
	)
	return err
}

// MarkDeleted soft-deletes a record. The row stays until the queued DELETE is
// confirmed and Purge removes it.
func (r *RecordRepository) MarkDeleted(ctx context.Context, tenantID, table, id string, at time.Time) error {
	query := `UPDATE entity_records SET deleted_at = ?, updated_at = ?, sync_status = ?
		WHERE tenant_id = ? AND table_name = ? AND id = ?`
	_, err := r.db.ExecContext(ctx, query, at, at, models.SyncPending, tenantID, table, id)
	return err
}

// Purge physically removes a record
func (r *RecordRepository) Purge(ctx context.Context, tenantID, table, id string) error {
	query := `DELETE FROM entity_records WHERE tenant_id = ? AND table_name = ? AND id = ?`
	_, err := r.db.ExecContext(ctx, query, tenantID, table, id)
	return err
}

// Rekey replaces a client-generated id with the server-issued one
func (r *RecordRepository) Rekey(ctx context.Context, tenantID, table, oldID, newID string) error {
	query := `UPDATE entity_records SET id = ? WHERE tenant_id = ? AND table_name = ? AND id = ?`
	_, err := r.db.ExecContext(ctx, query, newID, tenantID, table, oldID)
	return err
}

// SetSyncStatus updates the sync metadata of a record
func (r *RecordRepository) SetSyncStatus(ctx context.Context, tenantID, table, id string, status models.SyncStatus, lastSynced *time.Time) error {
	query := `UPDATE entity_records SET sync_status = ?, last_synced = ?
		WHERE tenant_id = ? AND table_name = ? AND id = ?`
	_, err := r.db.ExecContext(ctx, query, status, lastSynced, tenantID, table, id)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var rec models.Record
	var fields string
	err := row.Scan(
		&rec.TenantID,
		&rec.Table,
		&rec.ID,
		&fields,
		&rec.UpdatedAt,
		&rec.LastSynced,
		&rec.SyncStatus,
		&rec.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Fields = []byte(fields)
	return &rec, nil
}
