package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/models"
)

func newTestStore(t *testing.T) (*LocalStore, *QueueRepository) {
	t.Helper()
	db := newTestDB(t)
	queue := NewQueueRepository(db)
	return NewLocalStore("tenant-a", NewRecordRepository(db), queue), queue
}

func remoteRow(id string, updatedAt time.Time, name string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"id":%q,"updatedAt":%q,"name":%q}`,
		id, updatedAt.Format(time.RFC3339), name))
}

func TestLocalStore_Put(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	t.Run("write is visible immediately as pending", func(t *testing.T) {
		rec, err := s.Put(ctx, "food-items", "item-1", json.RawMessage(`{"name":"Carbonara"}`))
		require.NoError(t, err)
		assert.Equal(t, models.SyncPending, rec.SyncStatus)

		got, err := s.Get(ctx, "food-items", "item-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, models.SyncPending, got.SyncStatus)
		assert.Nil(t, got.LastSynced)
	})
}

func TestLocalStore_MergeRemote(t *testing.T) {
	ctx := context.Background()

	t.Run("new remote rows are stored as synced", func(t *testing.T) {
		s, _ := newTestStore(t)
		now := time.Now().UTC().Truncate(time.Second)

		err := s.MergeRemote(ctx, "menus", []json.RawMessage{
			remoteRow("menu-1", now, "Lunch"),
			remoteRow("menu-2", now, "Dinner"),
		})
		require.NoError(t, err)

		recs, err := s.Query(ctx, "menus", QueryOptions{})
		require.NoError(t, err)
		require.Len(t, recs, 2)
		for _, r := range recs {
			assert.Equal(t, models.SyncSynced, r.SyncStatus)
			assert.NotNil(t, r.LastSynced)
		}
	})

	t.Run("pending local changes win over remote", func(t *testing.T) {
		s, _ := newTestStore(t)
		_, err := s.Put(ctx, "menus", "menu-1", json.RawMessage(`{"name":"local edit"}`))
		require.NoError(t, err)

		err = s.MergeRemote(ctx, "menus", []json.RawMessage{
			remoteRow("menu-1", time.Now().UTC().Add(time.Hour), "server version"),
		})
		require.NoError(t, err)

		got, err := s.Get(ctx, "menus", "menu-1")
		require.NoError(t, err)
		assert.Equal(t, models.SyncPending, got.SyncStatus)
		assert.JSONEq(t, `{"name":"local edit"}`, string(got.Fields))
	})

	t.Run("soft deleted records are not resurrected", func(t *testing.T) {
		s, _ := newTestStore(t)
		_, err := s.Put(ctx, "orders", "order-1", json.RawMessage(`{"total":10}`))
		require.NoError(t, err)
		synced := time.Now().UTC()
		require.NoError(t, s.SetSyncStatus(ctx, "orders", "order-1", models.SyncSynced, &synced))
		require.NoError(t, s.MarkDeleted(ctx, "orders", "order-1"))

		err = s.MergeRemote(ctx, "orders", []json.RawMessage{
			remoteRow("order-1", time.Now().UTC().Add(time.Hour), "still on server"),
		})
		require.NoError(t, err)

		got, err := s.Get(ctx, "orders", "order-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.IsDeleted())
	})

	t.Run("older remote rows do not overwrite newer synced state", func(t *testing.T) {
		s, _ := newTestStore(t)
		now := time.Now().UTC().Truncate(time.Second)

		require.NoError(t, s.MergeRemote(ctx, "taxes", []json.RawMessage{
			remoteRow("tax-1", now, "current"),
		}))
		require.NoError(t, s.MergeRemote(ctx, "taxes", []json.RawMessage{
			remoteRow("tax-1", now.Add(-time.Hour), "stale"),
		}))

		got, err := s.Get(ctx, "taxes", "tax-1")
		require.NoError(t, err)
		assert.Contains(t, string(got.Fields), "current")
	})

	t.Run("absent record with unfinished queue entry is held back", func(t *testing.T) {
		s, queue := newTestStore(t)
		require.NoError(t, queue.Append(ctx, &models.QueueEntry{
			ID:         "entry-1",
			TenantID:   "tenant-a",
			Table:      "orders",
			Operation:  models.OpDelete,
			EntityID:   "order-7",
			EnqueuedAt: time.Now().UTC(),
			Status:     models.EntryPending,
		}))

		err := s.MergeRemote(ctx, "orders", []json.RawMessage{
			remoteRow("order-7", time.Now().UTC(), "deleted locally"),
		})
		require.NoError(t, err)

		got, err := s.Get(ctx, "orders", "order-7")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("rows without an id are skipped", func(t *testing.T) {
		s, _ := newTestStore(t)
		err := s.MergeRemote(ctx, "menus", []json.RawMessage{
			json.RawMessage(`{"name":"no id"}`),
			json.RawMessage(`not json at all`),
			remoteRow("menu-ok", time.Now().UTC(), "kept"),
		})
		require.NoError(t, err)

		recs, err := s.Query(ctx, "menus", QueryOptions{})
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "menu-ok", recs[0].ID)
	})
}

func TestLocalStore_ApplyAuthoritative(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	t.Run("overwrites fields and forces status", func(t *testing.T) {
		_, err := s.Put(ctx, "customers", "cust-1", json.RawMessage(`{"name":"local"}`))
		require.NoError(t, err)

		err = s.ApplyAuthoritative(ctx, "customers", "cust-1",
			json.RawMessage(`{"name":"server truth"}`), models.SyncConflict)
		require.NoError(t, err)

		got, err := s.Get(ctx, "customers", "cust-1")
		require.NoError(t, err)
		assert.Equal(t, models.SyncConflict, got.SyncStatus)
		assert.JSONEq(t, `{"name":"server truth"}`, string(got.Fields))
		assert.NotNil(t, got.LastSynced)
	})
}

func TestLocalStore_RemoveRemote(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	t.Run("purges synced records", func(t *testing.T) {
		synced := time.Now().UTC()
		_, err := s.Put(ctx, "branches", "br-1", json.RawMessage(`{"name":"Downtown"}`))
		require.NoError(t, err)
		require.NoError(t, s.SetSyncStatus(ctx, "branches", "br-1", models.SyncSynced, &synced))

		require.NoError(t, s.RemoveRemote(ctx, "branches", "br-1"))

		got, err := s.Get(ctx, "branches", "br-1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("keeps records with pending local changes", func(t *testing.T) {
		_, err := s.Put(ctx, "branches", "br-2", json.RawMessage(`{"name":"Airport"}`))
		require.NoError(t, err)

		require.NoError(t, s.RemoveRemote(ctx, "branches", "br-2"))

		got, err := s.Get(ctx, "branches", "br-2")
		require.NoError(t, err)
		require.NotNil(t, got)
	})
}
