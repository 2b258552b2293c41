package sensor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Poll period bounds.
const (
	DefaultPollPeriod = 150 * time.Millisecond
	MinPollPeriod     = 50 * time.Millisecond
)

// Poller runs a Source on its own goroutine and publishes every update into
// a Slot. Readers of the slot never wait on the network.
type Poller struct {
	src    Source
	slot   *Slot
	period time.Duration
	log    *slog.Logger

	failing bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller returns a poller publishing src into slot. period is raised to
// MinPollPeriod if smaller; zero selects DefaultPollPeriod.
func NewPoller(src Source, slot *Slot, period time.Duration, logger *slog.Logger) *Poller {
	if period == 0 {
		period = DefaultPollPeriod
	}
	if period < MinPollPeriod {
		period = MinPollPeriod
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{src: src, slot: slot, period: period, log: logger}
}

// Period returns the effective poll period.
func (p *Poller) Period() time.Duration { return p.period }

// Start launches the polling goroutine. Stop ends it.
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.Run(ctx)
	}()
}

// Stop cancels the goroutine started by Start and waits for it to exit.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// Run polls until ctx is cancelled. The first poll happens immediately.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// poll reads once and publishes any update. Fallback readings are published
// but count towards the failure streak, so each streak is logged once.
func (p *Poller) poll(ctx context.Context) {
	snap, ok := p.src.Read(ctx)
	if ctx.Err() != nil {
		return
	}
	if !ok || snap.IsFallback {
		if !p.failing {
			p.failing = true
			args := []any{"fallback", ok}
			if e, has := p.src.(interface{ LastError() error }); has && e.LastError() != nil {
				args = append(args, "err", e.LastError())
			}
			p.log.Warn("sensor feed unavailable", args...)
		}
	} else if p.failing {
		p.failing = false
		p.log.Info("sensor feed recovered", "speed_kmh", snap.SpeedKMH, "cabin_db", snap.CabinDB)
	}
	if ok {
		p.slot.Store(snap)
	}
}
