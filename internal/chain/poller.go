package chain

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const DefaultPollInterval = 10 * time.Second

// Poller refreshes a snapshot on a fixed interval while ctx is alive.
type Poller[T any] struct {
	interval time.Duration
	fetch    func(ctx context.Context) (T, error)
	log      *zap.Logger
}

func NewPoller[T any](interval time.Duration, fetch func(ctx context.Context) (T, error), log *zap.Logger) *Poller[T] {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller[T]{interval: interval, fetch: fetch, log: log}
}

// Run fetches immediately, then on every tick, until ctx is done. Fetch
// errors are logged and the next tick retries.
func (p *Poller[T]) Run(ctx context.Context, onSnapshot func(T)) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx, onSnapshot)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx, onSnapshot)
		}
	}
}

func (p *Poller[T]) tick(ctx context.Context, onSnapshot func(T)) {
	snap, err := p.fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Warn("snapshot refresh failed", zap.Error(err))
		}
		return
	}
	onSnapshot(snap)
}
