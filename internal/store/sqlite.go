package store

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// NewSQLiteDB opens and initializes the local SQLite store
func NewSQLiteDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Durable local writes are the whole point; WAL keeps them cheap
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	schema := `
	-- Local copies of domain objects, one row per (tenant, table, id)
	CREATE TABLE IF NOT EXISTS entity_records (
		tenant_id TEXT NOT NULL,
		table_name TEXT NOT NULL,
		id TEXT NOT NULL,
		fields TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		last_synced DATETIME,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		deleted_at DATETIME,
		PRIMARY KEY (tenant_id, table_name, id)
	);

	CREATE INDEX IF NOT EXISTS idx_entity_records_table ON entity_records(tenant_id, table_name);
	CREATE INDEX IF NOT EXISTS idx_entity_records_status ON entity_records(tenant_id, sync_status);

	-- Pending mutations, ordered per entity by enqueue time
	CREATE TABLE IF NOT EXISTS sync_queue (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		table_name TEXT NOT NULL,
		operation TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		payload TEXT,
		enqueued_at DATETIME NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'PENDING',
		last_error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sync_queue_entity ON sync_queue(tenant_id, entity_id, enqueued_at);
	CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(tenant_id, status);

	-- Surfaced delivery failures awaiting user review
	CREATE TABLE IF NOT EXISTS sync_conflicts (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		table_name TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		entry_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		message TEXT NOT NULL,
		server_state TEXT,
		occurred_at DATETIME NOT NULL,
		resolved_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_sync_conflicts_entity ON sync_conflicts(tenant_id, entity_id);
	`

	_, err := db.Exec(schema)
	return err
}
