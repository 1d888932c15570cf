package live

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/models"
	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/observability"
)

// Status is the subscription health state
type Status string

const (
	StatusConnecting   Status = "CONNECTING"
	StatusSubscribed   Status = "SUBSCRIBED"
	StatusChannelError Status = "CHANNEL_ERROR"
	StatusTimedOut     Status = "TIMED_OUT"
	StatusClosed       Status = "CLOSED"
)

// Options configures a Channel
type Options struct {
	// URL is the websocket endpoint of the remote push channel
	URL          string
	APIKey       string
	APIKeyHeader string
	// ConfirmWindow bounds how long the subscription may take to confirm
	// before degraded-mode polling starts. Exceeding it is not an error.
	ConfirmWindow time.Duration
	// PollInterval is the coarse interval of the fallback poller
	PollInterval time.Duration
	// Refresh triggers a silent reload of all watched tables. The poller and
	// the post-degradation catch-up go through it.
	Refresh func()
	// OnStatus observes health transitions; may be nil
	OnStatus func(Status)
	Dialer   *websocket.Dialer
}

// Channel is a push subscription to remote change notifications for one
// tenant, with polling fallback when the subscription cannot be confirmed.
// The channel owns every timer it starts; unsubscribing tears down both the
// socket and any active poller.
type Channel struct {
	url           string
	apiKey        string
	apiKeyHeader  string
	confirmWindow time.Duration
	pollInterval  time.Duration
	refresh       func()
	onStatus      func(Status)
	dialer        *websocket.Dialer
	log           *observability.Logger

	mu          sync.Mutex
	status      Status
	subscribed  bool // ever reached SUBSCRIBED; the poller never starts after
	pollCancel  context.CancelFunc
	lastRefresh time.Time
}

// NewChannel creates a Channel
func NewChannel(opts Options) *Channel {
	confirmWindow := opts.ConfirmWindow
	if confirmWindow <= 0 {
		confirmWindow = 10 * time.Second
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	header := opts.APIKeyHeader
	if header == "" {
		header = "X-API-Key"
	}
	return &Channel{
		url:           opts.URL,
		apiKey:        opts.APIKey,
		apiKeyHeader:  header,
		confirmWindow: confirmWindow,
		pollInterval:  pollInterval,
		refresh:       opts.Refresh,
		onStatus:      opts.OnStatus,
		dialer:        dialer,
		log:           observability.WithField("component", "live"),
		status:        StatusClosed,
	}
}

type wireFrame struct {
	Type   string              `json:"type"`
	Tenant string              `json:"tenant,omitempty"`
	Event  *models.ChangeEvent `json:"event,omitempty"`
}

// Subscribe opens the push subscription for a tenant and returns an
// unsubscribe function. onChange receives every change notification; the
// caller is expected to re-fetch through the request coordinator rather than
// apply the raw payload.
func (c *Channel) Subscribe(tenantID string, onChange func(models.ChangeEvent)) func() {
	ctx, cancel := context.WithCancel(context.Background())
	c.setStatus(StatusConnecting)

	confirm := time.AfterFunc(c.confirmWindow, func() {
		c.confirmTimedOut(ctx)
	})

	go c.run(ctx, tenantID, onChange)

	var once sync.Once
	return func() {
		once.Do(func() {
			confirm.Stop()
			cancel()
			c.stopPoller()
			c.setStatus(StatusClosed)
		})
	}
}

func (c *Channel) run(ctx context.Context, tenantID string, onChange func(models.ChangeEvent)) {
	delay := time.Second
	for ctx.Err() == nil {
		err := c.session(ctx, tenantID, onChange)
		if ctx.Err() != nil {
			return
		}
		c.setStatus(StatusChannelError)
		c.log.Warnf("live channel dropped: %v", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
		c.setStatus(StatusConnecting)
	}
}

func (c *Channel) session(ctx context.Context, tenantID string, onChange func(models.ChangeEvent)) error {
	header := http.Header{}
	if c.apiKey != "" {
		header.Set(c.apiKeyHeader, c.apiKey)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Unblock the read loop when the subscription is torn down
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.WriteJSON(wireFrame{Type: "subscribe", Tenant: tenantID}); err != nil {
		return err
	}

	for {
		var frame wireFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return err
		}
		switch frame.Type {
		case "subscribed":
			c.markSubscribed()
		case "change":
			if frame.Event != nil {
				c.noteRefresh()
				onChange(*frame.Event)
			}
		}
	}
}

// confirmTimedOut fires when the confirmation window elapses. It degrades to
// polling unless SUBSCRIBED was (belatedly) reached first.
func (c *Channel) confirmTimedOut(ctx context.Context) {
	c.mu.Lock()
	if c.subscribed || ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	c.status = StatusTimedOut
	c.startPollerLocked(ctx)
	notify := c.onStatus
	c.mu.Unlock()

	c.log.Warn("subscription not confirmed in time, falling back to polling")
	if notify != nil {
		notify(StatusTimedOut)
	}
}

func (c *Channel) markSubscribed() {
	c.mu.Lock()
	first := !c.subscribed
	c.subscribed = true
	c.status = StatusSubscribed

	hadPoller := c.pollCancel != nil
	if hadPoller {
		c.pollCancel()
		c.pollCancel = nil
	}
	// A catch-up reload is only due when the poller has not covered the gap
	// already; otherwise the transition would double-load
	catchUp := hadPoller && time.Since(c.lastRefresh) >= c.pollInterval
	notify := c.onStatus
	c.mu.Unlock()

	if first {
		c.log.Info("live subscription confirmed")
	}
	if notify != nil {
		notify(StatusSubscribed)
	}
	if catchUp {
		c.doRefresh()
	}
}

func (c *Channel) startPollerLocked(ctx context.Context) {
	if c.pollCancel != nil {
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel

	go func() {
		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				c.doRefresh()
			}
		}
	}()
}

func (c *Channel) stopPoller() {
	c.mu.Lock()
	if c.pollCancel != nil {
		c.pollCancel()
		c.pollCancel = nil
	}
	c.mu.Unlock()
}

func (c *Channel) doRefresh() {
	c.noteRefresh()
	if c.refresh != nil {
		c.refresh()
	}
}

func (c *Channel) noteRefresh() {
	c.mu.Lock()
	c.lastRefresh = time.Now()
	c.mu.Unlock()
}

func (c *Channel) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	notify := c.onStatus
	c.mu.Unlock()
	if notify != nil {
		notify(s)
	}
}

// Status returns the current subscription health
func (c *Channel) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Polling reports whether the fallback poller is active
func (c *Channel) Polling() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pollCancel != nil
}
