package store

import (
	"database/sql"

	_ "github.com/lib/pq"
)

// NewPostgresDB opens and initializes a PostgreSQL-backed local store. Used
// when several sync clients on one host share a store instead of each keeping
// their own SQLite file.
func NewPostgresDB(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if err := createPostgresTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createPostgresTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS entity_records (
		tenant_id TEXT NOT NULL,
		table_name TEXT NOT NULL,
		id TEXT NOT NULL,
		fields TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		last_synced TIMESTAMP,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		deleted_at TIMESTAMP,
		PRIMARY KEY (tenant_id, table_name, id)
	);

	CREATE INDEX IF NOT EXISTS idx_entity_records_table ON entity_records(tenant_id, table_name);
	CREATE INDEX IF NOT EXISTS idx_entity_records_status ON entity_records(tenant_id, sync_status);

	CREATE TABLE IF NOT EXISTS sync_queue (
		id TEXT PRIMARY KEY,
		seq BIGSERIAL,
		tenant_id TEXT NOT NULL,
		table_name TEXT NOT NULL,
		operation TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		payload TEXT,
		enqueued_at TIMESTAMP NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'PENDING',
		last_error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sync_queue_entity ON sync_queue(tenant_id, entity_id, enqueued_at);
	CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(tenant_id, status);

	CREATE TABLE IF NOT EXISTS sync_conflicts (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		table_name TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		entry_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		message TEXT NOT NULL,
		server_state TEXT,
		occurred_at TIMESTAMP NOT NULL,
		resolved_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sync_conflicts_entity ON sync_conflicts(tenant_id, entity_id);
	`

	_, err := db.Exec(schema)
	return err
}
