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

func testEntry(tenant, entityID string, op models.Operation, seq int) *models.QueueEntry {
	return &models.QueueEntry{
		ID:         fmt.Sprintf("entry-%s-%d", entityID, seq),
		TenantID:   tenant,
		Table:      "orders",
		Operation:  op,
		EntityID:   entityID,
		Payload:    json.RawMessage(`{"total":12.0}`),
		EnqueuedAt: time.Now().UTC().Add(time.Duration(seq) * time.Millisecond),
		Status:     models.EntryPending,
	}
}

func TestQueueRepository_AppendAndList(t *testing.T) {
	repo := NewQueueRepository(newTestDB(t))
	ctx := context.Background()

	t.Run("pending entries come back in enqueue order", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			require.NoError(t, repo.Append(ctx, testEntry("tenant-a", "order-1", models.OpUpdate, i)))
		}

		entries, err := repo.ListPending(ctx, "tenant-a")
		require.NoError(t, err)
		require.Len(t, entries, 3)
		for i, e := range entries {
			assert.Equal(t, fmt.Sprintf("entry-order-1-%d", i), e.ID)
		}
	})

	t.Run("same-instant entries keep insertion order", func(t *testing.T) {
		repo := NewQueueRepository(newTestDB(t))
		at := time.Now().UTC()
		// Ids chosen so that lexical order would invert insertion order
		first := testEntry("tenant-a", "order-tie", models.OpCreate, 0)
		first.ID = "zzz-created-first"
		first.EnqueuedAt = at
		second := testEntry("tenant-a", "order-tie", models.OpUpdate, 0)
		second.ID = "aaa-created-second"
		second.EnqueuedAt = at
		require.NoError(t, repo.Append(ctx, first))
		require.NoError(t, repo.Append(ctx, second))

		entries, err := repo.ListPending(ctx, "tenant-a")
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "zzz-created-first", entries[0].ID)
		assert.Equal(t, "aaa-created-second", entries[1].ID)
	})

	t.Run("entries stuck in syncing still count as pending", func(t *testing.T) {
		entry := testEntry("tenant-a", "order-2", models.OpCreate, 0)
		require.NoError(t, repo.Append(ctx, entry))
		require.NoError(t, repo.MarkStatus(ctx, entry.ID, models.EntrySyncing, 1, ""))

		entries, err := repo.ListPending(ctx, "tenant-a")
		require.NoError(t, err)

		found := false
		for _, e := range entries {
			if e.ID == entry.ID {
				found = true
				assert.Equal(t, models.EntrySyncing, e.Status)
			}
		}
		assert.True(t, found)
	})

	t.Run("failed entries are listed separately", func(t *testing.T) {
		entry := testEntry("tenant-a", "order-3", models.OpDelete, 0)
		require.NoError(t, repo.Append(ctx, entry))
		require.NoError(t, repo.MarkStatus(ctx, entry.ID, models.EntryFailed, 5, "server rejected"))

		failed, err := repo.ListFailed(ctx, "tenant-a")
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, entry.ID, failed[0].ID)
		assert.Equal(t, "server rejected", failed[0].LastError)
		assert.Equal(t, 5, failed[0].Attempts)

		pending, err := repo.ListPending(ctx, "tenant-a")
		require.NoError(t, err)
		for _, e := range pending {
			assert.NotEqual(t, entry.ID, e.ID)
		}
	})
}

func TestQueueRepository_EntityHelpers(t *testing.T) {
	repo := NewQueueRepository(newTestDB(t))
	ctx := context.Background()

	t.Run("has unfinished for entity", func(t *testing.T) {
		entry := testEntry("tenant-a", "order-9", models.OpDelete, 0)
		require.NoError(t, repo.Append(ctx, entry))

		unfinished, err := repo.HasUnfinishedForEntity(ctx, "tenant-a", "order-9")
		require.NoError(t, err)
		assert.True(t, unfinished)

		require.NoError(t, repo.MarkStatus(ctx, entry.ID, models.EntryDone, 1, ""))
		unfinished, err = repo.HasUnfinishedForEntity(ctx, "tenant-a", "order-9")
		require.NoError(t, err)
		assert.False(t, unfinished)
	})

	t.Run("retarget entity rewrites queued followups", func(t *testing.T) {
		require.NoError(t, repo.Append(ctx, testEntry("tenant-a", "temp-id", models.OpUpdate, 0)))
		require.NoError(t, repo.Append(ctx, testEntry("tenant-a", "temp-id", models.OpUpdate, 1)))

		require.NoError(t, repo.RetargetEntity(ctx, "tenant-a", "temp-id", "srv-7"))

		unfinished, err := repo.HasUnfinishedForEntity(ctx, "tenant-a", "temp-id")
		require.NoError(t, err)
		assert.False(t, unfinished)

		unfinished, err = repo.HasUnfinishedForEntity(ctx, "tenant-a", "srv-7")
		require.NoError(t, err)
		assert.True(t, unfinished)
	})

	t.Run("reset failed requeues and clears the error", func(t *testing.T) {
		entry := testEntry("tenant-a", "order-11", models.OpUpdate, 0)
		require.NoError(t, repo.Append(ctx, entry))
		require.NoError(t, repo.MarkStatus(ctx, entry.ID, models.EntryFailed, 5, "boom"))

		n, err := repo.ResetFailed(ctx, "tenant-a", "order-11")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := repo.GetByID(ctx, entry.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, models.EntryPending, got.Status)
		assert.Equal(t, 0, got.Attempts)
		assert.Empty(t, got.LastError)
	})

	t.Run("delete removes the entry", func(t *testing.T) {
		entry := testEntry("tenant-a", "order-12", models.OpCreate, 0)
		require.NoError(t, repo.Append(ctx, entry))
		require.NoError(t, repo.Delete(ctx, entry.ID))

		got, err := repo.GetByID(ctx, entry.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
