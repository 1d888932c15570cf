package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/api"
	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/models"
	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/observability"
	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/store"
)

// RemoteAPI is the mutation surface the processor pushes against
type RemoteAPI interface {
	Create(ctx context.Context, table string, payload json.RawMessage, idempotencyKey string) (*api.Resource, error)
	Update(ctx context.Context, table, id string, payload json.RawMessage) (*api.Resource, error)
	Delete(ctx context.Context, table, id string) error
}

// ProcessorOptions configures a Processor
type ProcessorOptions struct {
	TenantID      string
	Store         *store.LocalStore
	Queue         store.QueueRepo
	Conflicts     store.ConflictRepo
	Remote        RemoteAPI
	DrainInterval time.Duration
	MaxAttempts   int
	// OnConflict surfaces a delivery failure to the UI layer. Never called
	// for transient errors that still have retries left.
	OnConflict func(models.Conflict)
	// OnPushed fires after a confirmed push so other views can silently reload
	OnPushed func(table string)
	Metrics  *observability.SyncMetrics
}

// Processor drains the sync queue against the remote API. It is the only
// writer of syncStatus/lastSynced, preserves per-entity enqueue order, and
// holds back entries whose entity still waits on an unconfirmed CREATE.
type Processor struct {
	tenantID      string
	store         *store.LocalStore
	queue         store.QueueRepo
	conflicts     store.ConflictRepo
	remote        RemoteAPI
	drainInterval time.Duration
	maxAttempts   int
	onConflict    func(models.Conflict)
	onPushed      func(table string)
	metrics       *observability.SyncMetrics

	online atomic.Bool
	kick   chan struct{}
	mu     sync.Mutex // one drain at a time
	log    *observability.Logger
}

// NewProcessor creates a Processor. It starts offline; connectivity probing
// flips it online and triggers the first drain.
func NewProcessor(opts ProcessorOptions) *Processor {
	drainInterval := opts.DrainInterval
	if drainInterval <= 0 {
		drainInterval = 30 * time.Second
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Processor{
		tenantID:      opts.TenantID,
		store:         opts.Store,
		queue:         opts.Queue,
		conflicts:     opts.Conflicts,
		remote:        opts.Remote,
		drainInterval: drainInterval,
		maxAttempts:   maxAttempts,
		onConflict:    opts.OnConflict,
		onPushed:      opts.OnPushed,
		metrics:       opts.Metrics,
		kick:          make(chan struct{}, 1),
		log:           observability.WithField("tenant_id", opts.TenantID),
	}
}

// Kick requests a drain without blocking. Used after each enqueue while
// online.
func (p *Processor) Kick() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// SetOnline records connectivity; the offline-to-online transition triggers a
// drain
func (p *Processor) SetOnline(online bool) {
	was := p.online.Swap(online)
	if online && !was {
		p.log.Info("connectivity restored, draining sync queue")
		p.Kick()
	}
}

// Online reports current connectivity
func (p *Processor) Online() bool {
	return p.online.Load()
}

// Run drains on kicks and on a periodic interval until ctx is canceled
func (p *Processor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.kick:
		case <-ticker.C:
		}
		if !p.online.Load() {
			continue
		}
		if err := p.Drain(ctx); err != nil && ctx.Err() == nil {
			p.log.Errorf("drain aborted: %v", err)
		}
	}
}

// Drain pushes all pending entries in enqueue order. Entries for an entity
// whose earlier entry did not complete are held back until the next drain.
func (p *Processor) Drain(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, span := observability.StartSyncSpan(ctx, "processor", "drain")
	defer span.End()

	span.SetAttributes(observability.TenantID(p.tenantID))

	entries, err := p.queue.ListPending(ctx, p.tenantID)
	if err != nil {
		observability.RecordError(span, err)
		return err
	}
	p.metrics.QueueDepth(ctx, int64(len(entries)))

	// A terminally failed entry keeps its followers held back until the user
	// retries or resolves it. Without this an UPDATE queued behind a rejected
	// CREATE would push against an entity the server never created.
	failed, err := p.queue.ListFailed(ctx, p.tenantID)
	if err != nil {
		observability.RecordError(span, err)
		return err
	}
	blocked := make(map[string]bool, len(failed))
	for _, f := range failed {
		blocked[f.EntityID] = true
	}
	renamed := make(map[string]string)

	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if newID, ok := renamed[entry.EntityID]; ok {
			entry.EntityID = newID
		}
		if blocked[entry.EntityID] {
			continue
		}

		// Re-read for crash-recovery idempotence: an entry already DONE must
		// not be pushed twice
		cur, err := p.queue.GetByID(ctx, entry.ID)
		if err != nil {
			return err
		}
		if cur == nil {
			continue
		}
		if cur.Terminal() {
			if cur.Status == models.EntryDone {
				if err := p.queue.Delete(ctx, cur.ID); err != nil {
					return err
				}
			}
			if cur.Status == models.EntryFailed {
				blocked[entry.EntityID] = true
			}
			continue
		}
		entry.Attempts = cur.Attempts

		serverID, ok := p.process(ctx, entry)
		if !ok {
			blocked[entry.EntityID] = true
			continue
		}
		if serverID != "" && serverID != entry.EntityID {
			renamed[entry.EntityID] = serverID
		}
	}

	observability.SetSuccess(span)
	return nil
}

// process pushes one entry to its terminal state. Returns the server-issued
// id for confirmed CREATEs and whether later entries for the entity may
// proceed.
func (p *Processor) process(ctx context.Context, entry *models.QueueEntry) (string, bool) {
	log := p.log.WithFields(map[string]interface{}{
		"table":     entry.Table,
		"op":        string(entry.Operation),
		"entity_id": entry.EntityID,
	})

	ctx, span := observability.StartSyncSpan(ctx, "processor", "push")
	defer span.End()
	span.SetAttributes(
		observability.Table(entry.Table),
		observability.EntityID(entry.EntityID),
		observability.Operation(string(entry.Operation)),
		observability.QueueEntryID(entry.ID),
	)

	if err := p.queue.MarkStatus(ctx, entry.ID, models.EntrySyncing, entry.Attempts, ""); err != nil {
		log.Errorf("marking entry syncing: %v", err)
		return "", false
	}

	start := time.Now()
	attempts := entry.Attempts
	operation := func() (*api.Resource, error) {
		attempts++
		res, err := p.pushOnce(ctx, entry)
		if err == nil {
			return res, nil
		}
		var transient *api.TransientError
		if errors.As(err, &transient) {
			if transient.RetryAfter > 0 {
				return nil, backoff.RetryAfter(retryAfterSeconds(transient.RetryAfter))
			}
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	remaining := p.maxAttempts - entry.Attempts
	if remaining < 1 {
		remaining = 1
	}
	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(remaining)),
	)
	p.metrics.RecordPush(ctx, entry.Table, string(entry.Operation), time.Since(start), err)
	span.SetAttributes(observability.Duration(time.Since(start)))

	if err != nil {
		observability.RecordError(span, err)
		var rejection *api.RejectionError
		if errors.As(err, &rejection) {
			p.surfaceRejection(ctx, entry, attempts, rejection)
		} else if ctx.Err() != nil {
			// Shutdown or offline transition mid-push; leave the entry pending
			_ = p.queue.MarkStatus(context.WithoutCancel(ctx), entry.ID, models.EntryPending, attempts, err.Error())
		} else {
			p.surfaceExhaustion(ctx, entry, attempts, err)
		}
		return "", false
	}

	serverID, err := p.confirm(ctx, entry, attempts, res)
	if err != nil {
		log.Errorf("recording push confirmation: %v", err)
		return "", false
	}

	observability.SetSuccess(span)
	log.WithField("attempts", attempts).Debug("change delivered")
	if p.onPushed != nil {
		p.onPushed(entry.Table)
	}
	return serverID, true
}

// retryAfterSeconds converts a server retry hint to whole seconds, rounding
// up so a sub-second hint does not collapse into an immediate retry
func retryAfterSeconds(d time.Duration) int {
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}

func (p *Processor) pushOnce(ctx context.Context, entry *models.QueueEntry) (*api.Resource, error) {
	switch entry.Operation {
	case models.OpCreate:
		return p.remote.Create(ctx, entry.Table, entry.Payload, entry.EntityID)
	case models.OpUpdate:
		return p.remote.Update(ctx, entry.Table, entry.EntityID, entry.Payload)
	case models.OpDelete:
		err := p.remote.Delete(ctx, entry.Table, entry.EntityID)
		var rejection *api.RejectionError
		if errors.As(err, &rejection) && rejection.Status == http.StatusNotFound {
			// Already gone on the server; deleting twice is a no-op
			return nil, nil
		}
		return nil, err
	default:
		return nil, backoff.Permanent(fmt.Errorf("unknown operation %q", entry.Operation))
	}
}

// confirm applies the server's verdict for a delivered entry: rekeying a
// CREATE onto the server-issued id, settling sync metadata, and removing the
// entry so nothing residual remains.
func (p *Processor) confirm(ctx context.Context, entry *models.QueueEntry, attempts int, res *api.Resource) (string, error) {
	entityID := entry.EntityID
	if entry.Operation == models.OpCreate && res != nil && res.ID != "" && res.ID != entityID {
		if err := p.store.Rekey(ctx, entry.Table, entityID, res.ID); err != nil {
			return "", err
		}
		if err := p.queue.RetargetEntity(ctx, p.tenantID, entityID, res.ID); err != nil {
			return "", err
		}
		entityID = res.ID
	}

	switch entry.Operation {
	case models.OpDelete:
		if err := p.store.Purge(ctx, entry.Table, entityID); err != nil {
			return "", err
		}
	default:
		if res != nil && len(res.Body) > 0 {
			if err := p.store.ApplyAuthoritative(ctx, entry.Table, entityID, res.Body, models.SyncSynced); err != nil {
				return "", err
			}
		} else {
			now := time.Now().UTC()
			if err := p.store.SetSyncStatus(ctx, entry.Table, entityID, models.SyncSynced, &now); err != nil {
				return "", err
			}
		}
	}

	if err := p.queue.MarkStatus(ctx, entry.ID, models.EntryDone, attempts, ""); err != nil {
		return "", err
	}
	if err := p.queue.Delete(ctx, entry.ID); err != nil {
		return "", err
	}
	return entityID, nil
}

// surfaceRejection settles a server rejection: the entry fails terminally,
// the record flips to conflict, server truth overwrites local fields when it
// was returned, and the UI is notified. Never silently dropped.
func (p *Processor) surfaceRejection(ctx context.Context, entry *models.QueueEntry, attempts int, rejection *api.RejectionError) {
	if err := p.queue.MarkStatus(ctx, entry.ID, models.EntryFailed, attempts, rejection.Error()); err != nil {
		p.log.Errorf("marking entry failed: %v", err)
		return
	}

	if len(rejection.Authoritative) > 0 {
		if err := p.store.ApplyAuthoritative(ctx, entry.Table, entry.EntityID, rejection.Authoritative, models.SyncConflict); err != nil {
			p.log.Errorf("applying authoritative state: %v", err)
		}
	} else {
		if err := p.store.SetSyncStatus(ctx, entry.Table, entry.EntityID, models.SyncConflict, nil); err != nil {
			p.log.Errorf("marking record conflicted: %v", err)
		}
	}

	kind := models.ConflictRejected
	if rejection.Status == http.StatusConflict {
		kind = models.ConflictStale
	}
	p.addConflict(ctx, entry, kind, rejection.Error(), rejection.Authoritative)
}

// surfaceExhaustion settles an entry whose transient retries ran out.
// Attempts are capped; the entry surfaces as FAILED rather than staying
// silently stuck.
func (p *Processor) surfaceExhaustion(ctx context.Context, entry *models.QueueEntry, attempts int, cause error) {
	if attempts < p.maxAttempts {
		// Retry budget left for the next drain
		if err := p.queue.MarkStatus(ctx, entry.ID, models.EntryPending, attempts, cause.Error()); err != nil {
			p.log.Errorf("rescheduling entry: %v", err)
		}
		return
	}
	if err := p.queue.MarkStatus(ctx, entry.ID, models.EntryFailed, attempts, cause.Error()); err != nil {
		p.log.Errorf("marking entry failed: %v", err)
		return
	}
	p.addConflict(ctx, entry, models.ConflictExhausted,
		fmt.Sprintf("gave up after %d attempts: %v", attempts, cause), nil)
}

func (p *Processor) addConflict(ctx context.Context, entry *models.QueueEntry, kind models.ConflictKind, message string, serverState json.RawMessage) {
	conflict := models.Conflict{
		ID:          uuid.New().String(),
		TenantID:    p.tenantID,
		Table:       entry.Table,
		EntityID:    entry.EntityID,
		EntryID:     entry.ID,
		Kind:        kind,
		Message:     message,
		ServerState: serverState,
		OccurredAt:  time.Now().UTC(),
	}
	if err := p.conflicts.Add(ctx, &conflict); err != nil {
		p.log.Errorf("recording conflict: %v", err)
	}
	p.metrics.RecordConflict(ctx, entry.Table, string(kind))
	if p.onConflict != nil {
		p.onConflict(conflict)
	}
}

// RetryFailed requeues the FAILED entries of one entity after the user chose
// to resend, and flips the record back to pending
func (p *Processor) RetryFailed(ctx context.Context, table, entityID string) (int, error) {
	n, err := p.queue.ResetFailed(ctx, p.tenantID, entityID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if err := p.store.SetSyncStatus(ctx, table, entityID, models.SyncPending, nil); err != nil {
			return n, err
		}
		p.Kick()
	}
	return n, nil
}
