package discovery_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/raulk/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geotrust-match/matchnode/pkg/contract"
	"github.com/geotrust-match/matchnode/pkg/discovery"
)

// gatedQuerier holds every query until the test releases it and tracks how
// many queries are in flight.
type gatedQuerier struct {
	release chan struct{}

	mu       sync.Mutex
	inflight int
	peak     int
}

func (g *gatedQuerier) GetSession(ctx context.Context, _ uint32) (*contract.Session, error) {
	g.mu.Lock()
	g.inflight++
	g.peak = max(g.peak, g.inflight)
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.inflight--
		g.mu.Unlock()
	}()

	select {
	case <-g.release:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gatedQuerier) state() (inflight, peak int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inflight, g.peak
}

func TestInitialScanConcurrencyIsBounded(t *testing.T) {
	q := &gatedQuerier{release: make(chan struct{})}
	e := discovery.NewEngine(q, discovery.Config{BatchPause: time.Millisecond, Interval: time.Hour})
	require.Equal(t, 10, discovery.DefaultConfig.BatchSize)

	done := make(chan bool)
	go func() {
		_, ok := e.Poll(context.Background())
		done <- ok
	}()

	for batch := 0; batch < 10; batch++ {
		require.Eventually(t, func() bool {
			inflight, _ := q.state()
			return inflight == 10
		}, 5*time.Second, time.Millisecond, "batch %d in flight", batch)

		for range 10 {
			q.release <- struct{}{}
		}
	}

	assert.True(t, <-done)
	_, peak := q.state()
	assert.Equal(t, 10, peak, "no more than one batch of the 100-id scan runs at a time")
}

// stampQuerier records the clock time each id was first queried at.
type stampQuerier struct {
	clock clock.Clock

	mu    sync.Mutex
	stamp map[uint32]time.Time
}

func (s *stampQuerier) GetSession(_ context.Context, id uint32) (*contract.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stamp[id]; !ok {
		s.stamp[id] = s.clock.Now()
	}
	return nil, nil
}

func (s *stampQuerier) queried() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stamp)
}

func (s *stampQuerier) at(id uint32) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stamp[id]
}

func TestSecondBatchWaitsForBatchPause(t *testing.T) {
	const pause = 200 * time.Millisecond
	mock := clock.NewMock()
	q := &stampQuerier{clock: mock, stamp: map[uint32]time.Time{}}
	e := discovery.NewEngine(q, discovery.Config{BatchPause: pause, Interval: time.Hour}, discovery.WithClock(mock))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Poll(ctx)

	require.Eventually(t, func() bool { return q.queried() == 10 }, 5*time.Second, time.Millisecond)
	start := mock.Now()
	assert.Never(t, func() bool { return q.queried() > 10 }, 50*time.Millisecond, 5*time.Millisecond,
		"batch 2 must not start while the clock stands still")

	require.Eventually(t, func() bool {
		mock.Add(10 * time.Millisecond)
		return q.queried() >= 20
	}, 5*time.Second, time.Millisecond)

	assert.Equal(t, start, q.at(1))
	assert.Equal(t, start, q.at(10))
	assert.GreaterOrEqual(t, q.at(11).Sub(start), pause, "batch 2 started %s after batch 1", q.at(11).Sub(start))
}
