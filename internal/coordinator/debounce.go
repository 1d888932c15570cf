package coordinator

import (
	"sync"
	"time"
)

// SearchDebouncer turns high-frequency search input into query changes after
// a quiet interval. The text-to-empty transition is reported as forced so the
// cleared search reloads even when its key collapses to the previous
// unfiltered one.
type SearchDebouncer struct {
	mu       sync.Mutex
	interval time.Duration
	timer    *time.Timer
	pending  string
	last     string
	fire     func(text string, forced bool)
	stopped  bool
}

// NewSearchDebouncer creates a debouncer firing fire after interval of quiet
func NewSearchDebouncer(interval time.Duration, fire func(text string, forced bool)) *SearchDebouncer {
	return &SearchDebouncer{interval: interval, fire: fire}
}

// Set records the latest input and restarts the quiet timer
func (d *SearchDebouncer) Set(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending = text
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, d.flush)
}

// Flush fires immediately if input is pending. Used on view teardown and in
// tests.
func (d *SearchDebouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()
	d.flush()
}

// Stop cancels any pending fire
func (d *SearchDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *SearchDebouncer) flush() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	text := d.pending
	forced := d.last != "" && text == ""
	changed := text != d.last
	d.last = text
	fire := d.fire
	d.mu.Unlock()

	if (changed || forced) && fire != nil {
		fire(text, forced)
	}
}
