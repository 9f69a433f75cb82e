package discovery

import (
	"context"
)

// Run polls immediately and then every Interval until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("discovery started", "interval", e.cfg.Interval)
	defer e.logger.Info("discovery stopped")
	defer e.Invalidate()

	ticker := e.clock.Ticker(e.cfg.Interval)
	defer ticker.Stop()

	e.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.Poll(ctx)
		}
	}
}

// Subscribe returns a channel receiving every completed snapshot and a
// function to cancel the subscription. A slow subscriber only sees the most
// recent snapshot.
func (e *Engine) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	e.subsMu.Lock()
	id := e.nextID
	e.nextID++
	e.subs[id] = ch
	e.subsMu.Unlock()

	return ch, func() {
		e.subsMu.Lock()
		defer e.subsMu.Unlock()
		if _, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(ch)
		}
	}
}

func (e *Engine) publish(snap Snapshot) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()

	for _, ch := range e.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
