package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/models"
	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/observability"
	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/store"
)

// Queue is the write side of the durable mutation log. Appending never fails
// for validation reasons; the server validates at push time. Only a local
// storage failure comes back, and that one is fatal for the operation since
// optimistic UI cannot proceed without a durable write.
type Queue struct {
	tenantID string
	repo     store.QueueRepo
	log      *observability.Logger
	notify   func()
}

// NewQueue creates a Queue for one tenant. notify, when set, kicks the
// processor after each append; it may be nil.
func NewQueue(tenantID string, repo store.QueueRepo, notify func()) *Queue {
	return &Queue{
		tenantID: tenantID,
		repo:     repo,
		log:      observability.WithField("tenant_id", tenantID),
		notify:   notify,
	}
}

// QueueChange appends one mutation and returns immediately
func (q *Queue) QueueChange(ctx context.Context, table string, op models.Operation, entityID string, payload json.RawMessage) (*models.QueueEntry, error) {
	entry := &models.QueueEntry{
		ID:         uuid.New().String(),
		TenantID:   q.tenantID,
		Table:      table,
		Operation:  op,
		EntityID:   entityID,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
		Status:     models.EntryPending,
	}
	if err := q.repo.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("queue %s for %s/%s: %w", op, table, entityID, err)
	}

	q.log.WithFields(map[string]interface{}{
		"table":     table,
		"op":        string(op),
		"entity_id": entityID,
	}).Debug("queued change")

	if q.notify != nil {
		q.notify()
	}
	return entry, nil
}

// Pending lists the entries still awaiting delivery
func (q *Queue) Pending(ctx context.Context) ([]*models.QueueEntry, error) {
	return q.repo.ListPending(ctx, q.tenantID)
}

// Failed lists terminally failed entries
func (q *Queue) Failed(ctx context.Context) ([]*models.QueueEntry, error) {
	return q.repo.ListFailed(ctx, q.tenantID)
}
