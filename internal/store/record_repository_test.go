package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/models"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testRecord(tenant, table, id string) *models.Record {
	return &models.Record{
		ID:         id,
		TenantID:   tenant,
		Table:      table,
		Fields:     json.RawMessage(`{"name":"Margherita","price":9.5}`),
		UpdatedAt:  time.Now().UTC().Truncate(time.Second),
		SyncStatus: models.SyncPending,
	}
}

func TestRecordRepository_PutAndGet(t *testing.T) {
	repo := NewRecordRepository(newTestDB(t))
	ctx := context.Background()

	t.Run("round trips a record", func(t *testing.T) {
		rec := testRecord("tenant-a", "food-items", "item-1")
		require.NoError(t, repo.Put(ctx, rec))

		got, err := repo.Get(ctx, "tenant-a", "food-items", "item-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, models.SyncPending, got.SyncStatus)
		assert.JSONEq(t, string(rec.Fields), string(got.Fields))
		assert.Nil(t, got.DeletedAt)
	})

	t.Run("put is an upsert", func(t *testing.T) {
		rec := testRecord("tenant-a", "food-items", "item-2")
		require.NoError(t, repo.Put(ctx, rec))

		rec.Fields = json.RawMessage(`{"name":"Quattro Formaggi"}`)
		rec.SyncStatus = models.SyncSynced
		require.NoError(t, repo.Put(ctx, rec))

		got, err := repo.Get(ctx, "tenant-a", "food-items", "item-2")
		require.NoError(t, err)
		assert.Equal(t, models.SyncSynced, got.SyncStatus)
		assert.JSONEq(t, `{"name":"Quattro Formaggi"}`, string(got.Fields))
	})

	t.Run("returns nil for missing record", func(t *testing.T) {
		got, err := repo.Get(ctx, "tenant-a", "food-items", "no-such-id")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("does not read across tenants", func(t *testing.T) {
		require.NoError(t, repo.Put(ctx, testRecord("tenant-a", "orders", "order-1")))

		got, err := repo.Get(ctx, "tenant-b", "orders", "order-1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestRecordRepository_Query(t *testing.T) {
	repo := NewRecordRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, testRecord("tenant-a", "menus", "menu-1")))
	require.NoError(t, repo.Put(ctx, testRecord("tenant-a", "menus", "menu-2")))
	require.NoError(t, repo.Put(ctx, testRecord("tenant-a", "taxes", "tax-1")))
	require.NoError(t, repo.Put(ctx, testRecord("tenant-b", "menus", "menu-3")))

	t.Run("scopes by tenant and table", func(t *testing.T) {
		recs, err := repo.Query(ctx, "tenant-a", "menus", QueryOptions{})
		require.NoError(t, err)
		assert.Len(t, recs, 2)
	})

	t.Run("excludes soft deleted by default", func(t *testing.T) {
		require.NoError(t, repo.MarkDeleted(ctx, "tenant-a", "menus", "menu-2", time.Now().UTC()))

		recs, err := repo.Query(ctx, "tenant-a", "menus", QueryOptions{})
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "menu-1", recs[0].ID)

		all, err := repo.Query(ctx, "tenant-a", "menus", QueryOptions{IncludeDeleted: true})
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestRecordRepository_Lifecycle(t *testing.T) {
	repo := NewRecordRepository(newTestDB(t))
	ctx := context.Background()

	t.Run("mark deleted keeps the row", func(t *testing.T) {
		require.NoError(t, repo.Put(ctx, testRecord("tenant-a", "orders", "order-1")))
		require.NoError(t, repo.MarkDeleted(ctx, "tenant-a", "orders", "order-1", time.Now().UTC()))

		got, err := repo.Get(ctx, "tenant-a", "orders", "order-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.IsDeleted())
	})

	t.Run("purge removes the row", func(t *testing.T) {
		require.NoError(t, repo.Put(ctx, testRecord("tenant-a", "orders", "order-2")))
		require.NoError(t, repo.Purge(ctx, "tenant-a", "orders", "order-2"))

		got, err := repo.Get(ctx, "tenant-a", "orders", "order-2")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("rekey moves the record to the new id", func(t *testing.T) {
		require.NoError(t, repo.Put(ctx, testRecord("tenant-a", "customers", "local-temp-id")))
		require.NoError(t, repo.Rekey(ctx, "tenant-a", "customers", "local-temp-id", "srv-42"))

		old, err := repo.Get(ctx, "tenant-a", "customers", "local-temp-id")
		require.NoError(t, err)
		assert.Nil(t, old)

		got, err := repo.Get(ctx, "tenant-a", "customers", "srv-42")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "srv-42", got.ID)
	})

	t.Run("set sync status updates metadata", func(t *testing.T) {
		require.NoError(t, repo.Put(ctx, testRecord("tenant-a", "customers", "cust-1")))

		synced := time.Now().UTC().Truncate(time.Second)
		require.NoError(t, repo.SetSyncStatus(ctx, "tenant-a", "customers", "cust-1", models.SyncSynced, &synced))

		got, err := repo.Get(ctx, "tenant-a", "customers", "cust-1")
		require.NoError(t, err)
		assert.Equal(t, models.SyncSynced, got.SyncStatus)
		require.NotNil(t, got.LastSynced)
		assert.WithinDuration(t, synced, *got.LastSynced, time.Second)
	})
}
