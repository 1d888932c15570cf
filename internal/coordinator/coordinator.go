package coordinator

import (
	"context"
	"errors"
	"sync"

	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/observability"
)

// Mode selects how a load affects visible state
type Mode int

const (
	// Foreground drives the loading indicator and clears visible results
	// while in flight
	Foreground Mode = iota
	// Silent never flashes a loading state and keeps current results visible
	// until the new ones arrive. Used by live-update and polling triggers.
	Silent
	// Forced behaves like Foreground but bypasses in-flight deduplication.
	// Used when a cleared search must reload even though the key collapses to
	// the previous one.
	Forced
)

// ErrSuperseded marks a response that lost to a newer request. Not an error
// condition for the user; callers discard it silently.
var ErrSuperseded = errors.New("request superseded")

// ErrDuplicate marks a load skipped because an identical one is in flight
var ErrDuplicate = errors.New("identical request already in flight")

// Fetcher performs the actual remote read for a load
type Fetcher func(ctx context.Context) (interface{}, error)

// Options configures a Coordinator
type Options struct {
	// OnApply receives the winning result for a key
	OnApply func(key string, result interface{}, mode Mode)
	// OnLoading is driven by foreground loads only
	OnLoading func(key string, loading bool)
}

// Coordinator owns one visible list view: it sequences concurrent reads so a
// stale response never clobbers newer state, cancels superseded in-flight
// requests, and deduplicates identical ones. All state is per instance; two
// coordinators never interfere.
type Coordinator struct {
	mu      sync.Mutex
	seq     uint64
	current *inflight
	memo    map[string]interface{}

	onApply   func(key string, result interface{}, mode Mode)
	onLoading func(key string, loading bool)
	log       *observability.Logger
}

type inflight struct {
	seq    uint64
	key    string
	mode   Mode
	cancel context.CancelFunc
}

// New creates a Coordinator
func New(opts Options) *Coordinator {
	return &Coordinator{
		memo:      make(map[string]interface{}),
		onApply:   opts.OnApply,
		onLoading: opts.OnLoading,
		log:       observability.WithField("component", "coordinator"),
	}
}

// Load issues one read for the query. The result is applied only if no newer
// request was issued while it was in flight; otherwise ErrSuperseded comes
// back and nothing is applied. The superseded check runs again immediately
// before applying, because a response can race its own cancellation.
func (c *Coordinator) Load(ctx context.Context, q Query, mode Mode, fetch Fetcher) (interface{}, error) {
	key := q.Key()

	c.mu.Lock()
	if cur := c.current; cur != nil {
		if cur.key == key && mode == Foreground {
			c.mu.Unlock()
			return nil, ErrDuplicate
		}
		// Newer intent supersedes whatever is in flight
		cur.cancel()
	}
	c.seq++
	s := c.seq
	fetchCtx, cancel := context.WithCancel(ctx)
	c.current = &inflight{seq: s, key: key, mode: mode, cancel: cancel}
	c.mu.Unlock()
	defer cancel()

	if mode != Silent && c.onLoading != nil {
		c.onLoading(key, true)
	}

	result, err := fetch(fetchCtx)

	c.mu.Lock()
	superseded := s != c.seq || fetchCtx.Err() != nil
	if c.current != nil && c.current.seq == s {
		c.current = nil
	}
	c.mu.Unlock()

	if superseded {
		// The superseding load may be Silent and never touch the indicator,
		// so a visible load must clear its own before bowing out
		if mode != Silent && c.onLoading != nil {
			c.onLoading(key, false)
		}
		c.log.WithField("seq", s).Debug("discarding superseded response")
		return nil, ErrSuperseded
	}

	if mode != Silent && c.onLoading != nil {
		c.onLoading(key, false)
	}
	if err != nil {
		return nil, err
	}
	if c.onApply != nil {
		c.onApply(key, result, mode)
	}
	return result, nil
}

// Memoize caches per-session lookups (e.g. translation tables) on the
// coordinator instance
func (c *Coordinator) Memoize(ctx context.Context, key string, fill func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	c.mu.Lock()
	if v, ok := c.memo[key]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	v, err := fill(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.memo[key] = v
	c.mu.Unlock()
	return v, nil
}

// InvalidateMemo drops one memoized lookup
func (c *Coordinator) InvalidateMemo(key string) {
	c.mu.Lock()
	delete(c.memo, key)
	c.mu.Unlock()
}

// CancelInflight aborts whatever is currently in flight, if anything. Used
// on view teardown.
func (c *Coordinator) CancelInflight() {
	c.mu.Lock()
	if c.current != nil {
		c.current.cancel()
		c.current = nil
	}
	c.mu.Unlock()
}
