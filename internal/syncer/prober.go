package syncer

import (
	"context"
	"time"

	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/observability"
)

// Pinger probes remote reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober watches connectivity and feeds transitions to the processor. The
// offline-to-online edge is what triggers queued-change delivery.
type Prober struct {
	remote    Pinger
	processor *Processor
	interval  time.Duration
	log       *observability.Logger
}

// NewProber creates a Prober
func NewProber(remote Pinger, processor *Processor, interval time.Duration) *Prober {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Prober{
		remote:    remote,
		processor: processor,
		interval:  interval,
		log:       observability.WithField("component", "prober"),
	}
}

// Run probes until ctx is canceled. The first probe happens immediately so a
// freshly started client does not sit offline for a full interval.
func (p *Prober) Run(ctx context.Context) {
	p.probe(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probe(ctx)
		}
	}
}

func (p *Prober) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	err := p.remote.Ping(probeCtx)
	if err != nil && ctx.Err() == nil {
		p.log.Debugf("connectivity probe failed: %v", err)
	}
	p.processor.SetOnline(err == nil)
}
