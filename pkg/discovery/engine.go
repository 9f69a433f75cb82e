// Package discovery keeps track of open match sessions.
//
// The contract has no way to enumerate sessions, so the Engine scans a window
// of session ids around the largest id it has seen, remembers the ids that
// are still open and drops them once they end. Each pass produces a snapshot
// of the open sessions and reconciles the caller's current session pointer.
package discovery

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raulk/clock"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/geotrust-match/matchnode/pkg/contract"
	"github.com/geotrust-match/matchnode/pkg/log"
	"github.com/geotrust-match/matchnode/pkg/metrics"
)

// Querier reads one session. A nil session with a nil error means the id does
// not exist.
type Querier interface {
	GetSession(ctx context.Context, id uint32) (*contract.Session, error)
}

var _ Querier = (*contract.GeoTrust)(nil)

// Config controls the scan.
type Config struct {
	// Interval between passes in Run.
	Interval time.Duration
	// BatchSize is the number of ids queried concurrently.
	BatchSize int
	// BatchPause is waited between batches.
	BatchPause time.Duration
	// InitialRange is scanned from 1 while no session has been seen.
	InitialRange uint32
	// ForwardWindow is scanned past the high-water mark, up to Ceiling.
	ForwardWindow uint32
	Ceiling       uint32
	// RecheckRange is always rescanned from 1 once a session has been seen.
	RecheckRange uint32
}

var DefaultConfig = Config{
	Interval:      10 * time.Second,
	BatchSize:     10,
	BatchPause:    200 * time.Millisecond,
	InitialRange:  100,
	ForwardWindow: 20,
	Ceiling:       200,
	RecheckRange:  10,
}

// Snapshot is the result of one completed pass.
type Snapshot struct {
	// Sessions are the open sessions in ascending id order.
	Sessions []contract.Session `json:"sessions"`
	// Current is the caller's session after reconciliation, or nil.
	Current       *uint32   `json:"current,omitempty"`
	HighWaterMark uint32    `json:"highWaterMark"`
	Generation    uint64    `json:"generation"`
	At            time.Time `json:"at"`
}

// Engine discovers open sessions. Poll is safe for concurrent use; at most
// one pass runs at a time.
type Engine struct {
	querier Querier
	cfg     Config
	clock   clock.Clock
	logger  log.Logger
	metrics *metrics.Metrics

	polling    atomic.Bool
	generation atomic.Uint64

	mu      sync.Mutex
	known   map[uint32]struct{}
	hwm     uint32
	current *uint32
	latest  Snapshot

	subsMu sync.Mutex
	subs   map[int]chan Snapshot
	nextID int
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(l log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// NewEngine builds an Engine. Zero fields of cfg take their DefaultConfig value.
func NewEngine(q Querier, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		querier: q,
		cfg:     withDefaults(cfg),
		clock:   clock.New(),
		logger:  log.NewNoopLogger(),
		known:   map[uint32]struct{}{},
		subs:    map[int]chan Snapshot{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithName("discovery")
	return e
}

func withDefaults(cfg Config) Config {
	d := DefaultConfig
	if cfg.Interval > 0 {
		d.Interval = cfg.Interval
	}
	if cfg.BatchSize > 0 {
		d.BatchSize = cfg.BatchSize
	}
	if cfg.BatchPause > 0 {
		d.BatchPause = cfg.BatchPause
	}
	if cfg.InitialRange > 0 {
		d.InitialRange = cfg.InitialRange
	}
	if cfg.ForwardWindow > 0 {
		d.ForwardWindow = cfg.ForwardWindow
	}
	if cfg.Ceiling > 0 {
		d.Ceiling = cfg.Ceiling
	}
	if cfg.RecheckRange > 0 {
		d.RecheckRange = cfg.RecheckRange
	}
	return d
}

// SetCurrent points the engine at the caller's session.
func (e *Engine) SetCurrent(id uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = &id
}

// ClearCurrent forgets the caller's session.
func (e *Engine) ClearCurrent() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = nil
}

// Current returns the caller's session id, if any.
func (e *Engine) Current() (uint32, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return 0, false
	}
	return *e.current, true
}

// HighWaterMark returns the largest session id ever seen open.
func (e *Engine) HighWaterMark() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hwm
}

// Known returns the ids currently believed open, ascending.
func (e *Engine) Known() []uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Sorted(maps.Keys(e.known))
}

// Latest returns the snapshot of the last completed pass.
func (e *Engine) Latest() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latest
}

// Invalidate discards the result of any pass in flight.
func (e *Engine) Invalidate() {
	e.generation.Add(1)
}

// Poll runs one discovery pass and returns the open sessions. It returns
// false without querying anything when another pass is running, and false
// when the pass was invalidated or ctx ended before it completed.
func (e *Engine) Poll(ctx context.Context) ([]contract.Session, bool) {
	if !e.polling.CompareAndSwap(false, true) {
		e.metrics.RecordDiscoveryPass("skipped", 0)
		e.logger.Debug("discovery pass already running")
		return nil, false
	}
	defer e.polling.Store(false)

	start := e.clock.Now()
	gen := e.generation.Add(1)

	e.mu.Lock()
	ids := candidates(e.known, e.hwm, e.cfg)
	current := e.current
	e.mu.Unlock()

	found, err := e.scan(ctx, ids)
	if err != nil {
		e.logger.Debug("session queries failed", "failed", len(multierr.Errors(err)), "error", err)
	}

	if ctx.Err() != nil || e.generation.Load() != gen {
		e.metrics.RecordDiscoveryPass("stale", e.clock.Now().Sub(start))
		e.logger.Debug("discarding stale discovery pass", "generation", gen)
		return nil, false
	}

	open := make([]contract.Session, 0, len(found))
	for _, id := range ids {
		if s := found[id]; s != nil {
			open = append(open, *s)
		}
	}

	next := ReconcilePointer(open, current, func(id uint32) (*contract.Session, error) {
		s, err := e.querier.GetSession(ctx, id)
		if err != nil {
			e.logger.Debug("current session lookup failed, keeping pointer", "sessionId", id, "error", err)
		}
		return s, err
	})

	e.mu.Lock()
	for _, id := range ids {
		if found[id] != nil {
			e.known[id] = struct{}{}
			e.hwm = max(e.hwm, id)
		} else {
			delete(e.known, id)
		}
	}
	// The pointer may have been changed by the caller during the pass.
	if samePointer(e.current, current) {
		e.current = next
	}
	snap := Snapshot{
		Sessions:      open,
		Current:       copyPointer(e.current),
		HighWaterMark: e.hwm,
		Generation:    gen,
		At:            e.clock.Now(),
	}
	e.latest = snap
	known, hwm := len(e.known), e.hwm
	e.mu.Unlock()

	took := e.clock.Now().Sub(start)
	e.metrics.RecordDiscoveryPass("completed", took)
	e.metrics.SetDiscoveryState(len(open), known, hwm)
	e.logger.Debug("discovery pass completed",
		"candidates", len(ids), "open", len(open), "known", known, "highWaterMark", hwm, "took", took)

	e.publish(snap)
	return open, true
}

// scan queries ids in batches. Ids whose query failed or that are not open
// are left out of the result; the failures are returned combined.
func (e *Engine) scan(ctx context.Context, ids []uint32) (map[uint32]*contract.Session, error) {
	var (
		mu    sync.Mutex
		found = make(map[uint32]*contract.Session, len(ids))
		errs  error
	)

	for start := 0; start < len(ids); start += e.cfg.BatchSize {
		if start > 0 {
			if err := e.pause(ctx); err != nil {
				return found, multierr.Append(errs, err)
			}
		}

		batch := ids[start:min(start+e.cfg.BatchSize, len(ids))]
		g, gctx := errgroup.WithContext(ctx)
		for _, id := range batch {
			g.Go(func() error {
				s, err := e.querier.GetSession(gctx, id)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err != nil:
					errs = multierr.Append(errs, fmt.Errorf("session %d: %w", id, err))
				case s != nil && s.State.Open():
					found[id] = s
				}
				return nil
			})
		}
		_ = g.Wait()
	}
	return found, errs
}

func (e *Engine) pause(ctx context.Context) error {
	t := e.clock.Timer(e.cfg.BatchPause)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// candidates returns the ids to query in ascending order: every known id, plus
// [1, InitialRange] before any session was seen, or else the forward window
// [max(1, hwm), min(hwm+ForwardWindow, Ceiling)] and [1, RecheckRange].
func candidates(known map[uint32]struct{}, hwm uint32, cfg Config) []uint32 {
	set := maps.Clone(known)
	if set == nil {
		set = map[uint32]struct{}{}
	}
	addRange := func(lo, hi uint32) {
		for id := lo; id <= hi; id++ {
			set[id] = struct{}{}
		}
	}

	if hwm == 0 {
		addRange(1, cfg.InitialRange)
	} else {
		addRange(max(1, hwm), min(hwm+cfg.ForwardWindow, cfg.Ceiling))
		addRange(1, cfg.RecheckRange)
	}
	return slices.Sorted(maps.Keys(set))
}

// ReconcilePointer returns the current session pointer to keep after a pass.
// A pointer found among open is kept. Otherwise direct is asked for the
// session and the pointer is cleared only when the session is absent or no
// longer open. A failed query keeps the pointer for the next pass.
func ReconcilePointer(open []contract.Session, ptr *uint32, direct func(id uint32) (*contract.Session, error)) *uint32 {
	if ptr == nil {
		return nil
	}
	for _, s := range open {
		if s.ID == *ptr {
			return ptr
		}
	}

	s, err := direct(*ptr)
	if err != nil {
		return ptr
	}
	if s == nil || !s.State.Open() {
		return nil
	}
	return ptr
}

func samePointer(a, b *uint32) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copyPointer(p *uint32) *uint32 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
