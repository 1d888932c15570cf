package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/models"
)

// RecordRepositoryPostgres implements RecordRepo on PostgreSQL
type RecordRepositoryPostgres struct {
	db *sql.DB
}

// NewRecordRepositoryPostgres creates a new RecordRepositoryPostgres
func NewRecordRepositoryPostgres(db *sql.DB) *RecordRepositoryPostgres {
	return &RecordRepositoryPostgres{db: db}
}

func (r *RecordRepositoryPostgres) Get(ctx context.Context, tenantID, table, id string) (*models.Record, error) {
	query := `SELECT tenant_id, table_name, id, fields, updated_at, last_synced, sync_status, deleted_at
		FROM entity_records WHERE tenant_id = $1 AND table_name = $2 AND id = $3`

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

func (r *RecordRepositoryPostgres) Query(ctx context.Context, tenantID, table string, opts QueryOptions) ([]*models.Record, error) {
	query := `SELECT tenant_id, table_name, id, fields, updated_at, last_synced, sync_status, deleted_at
		FROM entity_records WHERE tenant_id = $1 AND table_name = $2`
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

func (r *RecordRepositoryPostgres) Put(ctx context.Context, rec *models.Record) error {
	query := `INSERT INTO entity_records (tenant_id, table_name, id, fields, updated_at, last_synced, sync_status, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id, table_name, id) DO UPDATE SET
			fields = EXCLUDED.fields,
			updated_at = EXCLUDED.updated_at,
			last_synced = EXCLUDED.last_synced,
			sync_status = EXCLUDED.sync_status,
			deleted_at = EXCLUDED.deleted_at`

	_, err := r.db.ExecContext(ctx, query,
		rec.TenantID, rec.Table, rec.ID, string(rec.Fields),
		rec.UpdatedAt, rec.LastSynced, rec.SyncStatus, rec.DeletedAt)
	return err
}

func (r *RecordRepositoryPostgres) MarkDeleted(ctx context.Context, tenantID, table, id string, at time.Time) error {
	query := `UPDATE entity_records SET deleted_at = $1, updated_at = $2, sync_status = $3
		WHERE tenant_id = $4 AND table_name = $5 AND id = $6`
	_, err := r.db.ExecContext(ctx, query, at, at, models.SyncPending, tenantID, table, id)
	return err
}

func (r *RecordRepositoryPostgres) Purge(ctx context.Context, tenantID, table, id string) error {
	query := `DELETE FROM entity_records WHERE tenant_id = $1 AND table_name = $2 AND id = $3`
	_, err := r.db.ExecContext(ctx, query, tenantID, table, id)
	return err
}

func (r *RecordRepositoryPostgres) Rekey(ctx context.Context, tenantID, table, oldID, newID string) error {
	query := `UPDATE entity_records SET id = $1 WHERE tenant_id = $2 AND table_name = $3 AND id = $4`
	_, err := r.db.ExecContext(ctx, query, newID, tenantID, table, oldID)
	return err
}

func (r *RecordRepositoryPostgres) SetSyncStatus(ctx context.Context, tenantID, table, id string, status models.SyncStatus, lastSynced *time.Time) error {
	query := `UPDATE entity_records SET sync_status = $1, last_synced = $2
		WHERE tenant_id = $3 AND table_name = $4 AND id = $5`
	_, err := r.db.ExecContext(ctx, query, status, lastSynced, tenantID, table, id)
	return err
}
