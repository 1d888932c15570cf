package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/api"
	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/observability"
	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/page"
	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/store"
)

// ViewOptions configures a TableView
type ViewOptions struct {
	Table    string
	Remote   *api.Client
	Store    *store.LocalStore
	Limit    int
	Debounce time.Duration
	// OnResult receives the normalized page of a winning load; may be nil
	OnResult func(p page.Paged, mode Mode)
	// OnLoading tracks the foreground loading indicator; may be nil
	OnLoading func(loading bool)
}

// TableView is one visible list of a remote table. It owns the pagination
// state, search debouncing and the request coordinator for that list, and
// merges every fetched page into the local store so the data survives going
// offline.
type TableView struct {
	table  string
	remote *api.Client
	store  *store.LocalStore
	pager  *page.Pager
	coord  *Coordinator
	deb    *SearchDebouncer
	log    *observability.Logger

	mu      sync.Mutex
	search  string
	filters map[string]string
}

// NewTableView creates a TableView
func NewTableView(opts ViewOptions) *TableView {
	v := &TableView{
		table:   opts.Table,
		remote:  opts.Remote,
		store:   opts.Store,
		pager:   page.NewPager(opts.Limit),
		filters: make(map[string]string),
		log:     observability.WithField("table", opts.Table),
	}
	v.coord = New(Options{
		OnApply: func(key string, result interface{}, mode Mode) {
			if opts.OnResult == nil {
				return
			}
			if p, ok := result.(page.Paged); ok {
				opts.OnResult(p, mode)
			}
		},
		OnLoading: func(key string, loading bool) {
			if opts.OnLoading != nil {
				opts.OnLoading(loading)
			}
		},
	})
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	v.deb = NewSearchDebouncer(debounce, func(text string, forced bool) {
		v.mu.Lock()
		v.search = text
		v.mu.Unlock()
		v.pager.SetPage(1)

		mode := Foreground
		if forced {
			mode = Forced
		}
		v.load(context.Background(), mode)
	})
	return v
}

// Table returns the remote table this view lists
func (v *TableView) Table() string { return v.table }

// SetSearch feeds raw search input through the debouncer
func (v *TableView) SetSearch(text string) {
	v.deb.Set(text)
}

// SetFilter sets one filter key and reloads in the foreground
func (v *TableView) SetFilter(ctx context.Context, key, value string) error {
	v.mu.Lock()
	if value == "" {
		delete(v.filters, key)
	} else {
		v.filters[key] = value
	}
	v.mu.Unlock()
	v.pager.SetPage(1)
	return v.load(ctx, Foreground)
}

// SetPage moves to the given page and reloads in the foreground
func (v *TableView) SetPage(ctx context.Context, p int) error {
	v.pager.SetPage(p)
	return v.load(ctx, Foreground)
}

// SetLimit changes the page size, resetting to page 1, and reloads
func (v *TableView) SetLimit(ctx context.Context, limit int) error {
	v.pager.SetLimit(limit)
	return v.load(ctx, Foreground)
}

// Reload re-fetches the current query in the foreground
func (v *TableView) Reload(ctx context.Context) error {
	return v.load(ctx, Foreground)
}

// Refresh re-fetches the current query without disturbing visible state.
// Live-update notifications and the fallback poller come through here.
func (v *TableView) Refresh(ctx context.Context) error {
	return v.load(ctx, Silent)
}

// Close stops the debouncer and cancels any in-flight load
func (v *TableView) Close() {
	v.deb.Stop()
	v.coord.CancelInflight()
}

func (v *TableView) load(ctx context.Context, mode Mode) error {
	q := v.query()
	_, err := v.coord.Load(ctx, q, mode, func(fetchCtx context.Context) (interface{}, error) {
		raw, err := v.remote.List(fetchCtx, v.table, api.ListParams{
			Page:    q.Page,
			Limit:   q.Limit,
			Search:  q.Search,
			Filters: q.Filters,
		})
		if err != nil {
			return nil, err
		}
		paged := page.Normalize(raw)
		if mergeErr := v.store.MergeRemote(fetchCtx, v.table, paged.Data()); mergeErr != nil {
			v.log.Warnf("merging fetched page: %v", mergeErr)
		}
		return paged, nil
	})
	if errors.Is(err, ErrSuperseded) || errors.Is(err, ErrDuplicate) {
		return nil
	}
	return err
}

func (v *TableView) query() Query {
	p, limit := v.pager.State()
	v.mu.Lock()
	defer v.mu.Unlock()
	filters := make(map[string]string, len(v.filters))
	for k, val := range v.filters {
		filters[k] = val
	}
	return Query{
		Table:   v.table,
		Search:  v.search,
		Page:    p,
		Limit:   limit,
		Filters: filters,
	}
}
