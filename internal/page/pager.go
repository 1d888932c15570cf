package page

import "sync"

// Pager tracks the page/limit state the UI drives. Changing the limit resets
// to page 1; the current state feeds the next query key the request
// coordinator consumes.
type Pager struct {
	mu    sync.Mutex
	page  int
	limit int
}

// NewPager creates a Pager starting at page 1 with the given limit
func NewPager(limit int) *Pager {
	if limit <= 0 {
		limit = 20
	}
	return &Pager{page: 1, limit: limit}
}

// SetPage moves to the given page; values below 1 clamp to 1
func (p *Pager) SetPage(page int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if page < 1 {
		page = 1
	}
	p.page = page
}

// SetLimit changes the page size and resets to page 1
func (p *Pager) SetLimit(limit int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if limit <= 0 {
		return
	}
	if limit != p.limit {
		p.page = 1
	}
	p.limit = limit
}

// State returns the current page and limit
func (p *Pager) State() (page, limit int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page, p.limit
}
