package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/models"
)

// ConflictRepositoryPostgres implements ConflictRepo on PostgreSQL
type ConflictRepositoryPostgres struct {
	db *sql.DB
}

// NewConflictRepositoryPostgres creates a new ConflictRepositoryPostgres
func NewConflictRepositoryPostgres(db *sql.DB) *ConflictRepositoryPostgres {
	return &ConflictRepositoryPostgres{db: db}
}

// Add records a surfaced delivery failure
func (r *ConflictRepositoryPostgres) Add(ctx context.Context, c *models.Conflict) error {
	query := `INSERT INTO sync_conflicts (id, tenant_id, table_name, entity_id, entry_id, kind, message, server_state, occurred_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		c.ID,
		c.TenantID,
		c.Table,
		c.EntityID,
		c.EntryID,
		c.Kind,
		c.Message,
		string(c.ServerState),
		c.OccurredAt,
		c.ResolvedAt,
	)
	return err
}

// ListOpen returns unresolved conflicts, oldest first
func (r *ConflictRepositoryPostgres) ListOpen(ctx context.Context, tenantID string) ([]*models.Conflict, error) {
	query := `SELECT id, tenant_id, table_name, entity_id, entry_id, kind, message, server_state, occurred_at, resolved_at
		FROM sync_conflicts WHERE tenant_id = $1 AND resolved_at IS NULL ORDER BY occurred_at ASC`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conflicts []*models.Conflict
	for rows.Next() {
		var c models.Conflict
		var serverState sql.NullString
		err := rows.Scan(&c.ID, &c.TenantID, &c.Table, &c.EntityID, &c.EntryID, &c.Kind, &c.Message, &serverState, &c.OccurredAt, &c.ResolvedAt)
		if err != nil {
			return nil, err
		}
		if serverState.Valid && serverState.String != "" {
			c.ServerState = []byte(serverState.String)
		}
		conflicts = append(conflicts, &c)
	}
	return conflicts, rows.Err()
}

// Resolve marks a conflict as handled by the user
func (r *ConflictRepositoryPostgres) Resolve(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE sync_conflicts SET resolved_at = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, at, id)
	return err
}
