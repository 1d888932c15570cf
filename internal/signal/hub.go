package signal

import (
	"context"
	"sync"

	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/observability"
)

// Signal says that entities of one table changed for a tenant. Observing
// views react with a silent reload, never a loading skeleton.
type Signal struct {
	TenantID string `json:"tenantId"`
	Table    string `json:"table"`
	// Origin identifies the tab/view that committed the mutation. A
	// subscriber never receives its own signals back, so the originating
	// view's loader is not re-triggered.
	Origin string `json:"origin,omitempty"`
}

type subscriber struct {
	id       int
	tenantID string
	origin   string
	tables   map[string]bool // empty means all tables
	fn       func(Signal)
}

// Hub fans mutation signals out to every other view observing the same
// entity type. In-process views subscribe directly; other local processes
// attach through the websocket bridge.
type Hub struct {
	mu        sync.RWMutex
	subs      map[int]*subscriber
	nextID    int
	broadcast chan Signal
	log       *observability.Logger
}

// NewHub creates a Hub
func NewHub() *Hub {
	return &Hub{
		subs:      make(map[int]*subscriber),
		broadcast: make(chan Signal, 256),
		log:       observability.WithField("component", "signal"),
	}
}

// Run dispatches published signals until ctx is canceled
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-h.broadcast:
			h.dispatch(sig)
		}
	}
}

// Publish announces a committed mutation. Non-blocking; when the hub is
// saturated the signal is dropped, which only delays the next silent reload
// until the poller or live channel catches up.
func (h *Hub) Publish(sig Signal) {
	select {
	case h.broadcast <- sig:
	default:
		h.log.Warn("signal hub saturated, dropping signal")
	}
}

// Subscribe registers a view. tables may be empty to observe everything.
// The returned function unsubscribes.
func (h *Hub) Subscribe(tenantID, origin string, tables []string, fn func(Signal)) func() {
	watched := make(map[string]bool, len(tables))
	for _, t := range tables {
		watched[t] = true
	}

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = &subscriber{
		id:       id,
		tenantID: tenantID,
		origin:   origin,
		tables:   watched,
		fn:       fn,
	}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

func (h *Hub) dispatch(sig Signal) {
	h.mu.RLock()
	var targets []func(Signal)
	for _, sub := range h.subs {
		if sub.tenantID != sig.TenantID {
			continue
		}
		if sig.Origin != "" && sub.origin == sig.Origin {
			continue
		}
		if len(sub.tables) > 0 && !sub.tables[sig.Table] {
			continue
		}
		targets = append(targets, sub.fn)
	}
	h.mu.RUnlock()

	for _, fn := range targets {
		fn(sig)
	}
}
