package world

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/catalogs"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/geom"
)

var (
	ErrOutOfBounds = errors.New("position outside world bounds")
	ErrStopped     = errors.New("world stopped")
)

// World is the single authoritative owner of block and entity state. Every
// mutation runs on the goroutine executing Run (the main context), reached
// through Exec. Code running there receives a *Tx; holding a Tx is the proof
// of being on the main context.
type World struct {
	cfg     WorldConfig
	catalog *catalogs.BlockCatalog
	log     *log.Logger

	tick atomic.Uint64

	blocks   map[geom.Vec3i]BlockData
	entities map[uint64]*BlockEntity

	nextEntity atomic.Uint64

	queue chan transaction
	stop  chan struct{}

	// stopMu orders Exec against Stop: once stopped is set, no transaction
	// enters the queue.
	stopMu  sync.RWMutex
	stopped bool
}

// transaction is a unit of work queued for the main context.
type transaction struct {
	f    func(tx *Tx)
	done chan struct{}
}

func New(cfg WorldConfig, cat *catalogs.BlockCatalog, logger *log.Logger) *World {
	cfg.applyDefaults()
	if logger == nil {
		logger = log.Default()
	}
	return &World{
		cfg:      cfg,
		catalog:  cat,
		log:      logger,
		blocks:   map[geom.Vec3i]BlockData{},
		entities: map[uint64]*BlockEntity{},
		queue:    make(chan transaction, cfg.QueueSize),
		stop:     make(chan struct{}),
	}
}

func (w *World) ID() string                      { return w.cfg.ID }
func (w *World) Config() WorldConfig             { return w.cfg }
func (w *World) Catalog() *catalogs.BlockCatalog { return w.catalog }
func (w *World) CurrentTick() uint64             { return w.tick.Load() }

// TickDuration is the length of one world tick. Worlds running without an
// internal ticker still report a 50ms tick so durations stay convertible.
func (w *World) TickDuration() time.Duration {
	if w.cfg.TickDuration <= 0 {
		return 50 * time.Millisecond
	}
	return w.cfg.TickDuration
}

// Exec queues f for the main context. The returned channel is closed once f
// has run. Transactions run in the order they were queued.
// On a stopped world f never runs and the channel is already closed.
func (w *World) Exec(f func(tx *Tx)) <-chan struct{} {
	done := make(chan struct{})
	w.stopMu.RLock()
	defer w.stopMu.RUnlock()
	if w.stopped {
		close(done)
		return done
	}
	w.queue <- transaction{f: f, done: done}
	return done
}

// ExecWait queues f and waits until it ran.
func (w *World) ExecWait(ctx context.Context, f func(tx *Tx)) error {
	select {
	case <-w.Exec(f):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the main context. It drains the transaction queue and, when a tick
// duration is configured, integrates animated block velocities every tick.
func (w *World) Run(ctx context.Context) error {
	var tickC <-chan time.Time
	if w.cfg.TickDuration > 0 {
		ticker := time.NewTicker(w.cfg.TickDuration)
		defer ticker.Stop()
		tickC = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			// Stop waits for Exec calls blocked on a full queue, so keep
			// serving the queue until it has taken effect.
			go w.Stop()
			w.serveUntilStopped()
			w.drain()
			return ctx.Err()
		case <-w.stop:
			w.drain()
			return nil
		case t := <-w.queue:
			w.run(t)
		case <-tickC:
			w.run(transaction{f: func(tx *Tx) { tx.Advance() }})
		}
	}
}

// Stop ends Run. Transactions queued before Stop still run before Run
// returns; later Exec calls are refused.
func (w *World) Stop() {
	w.stopMu.Lock()
	defer w.stopMu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	close(w.stop)
}

func (w *World) serveUntilStopped() {
	for {
		select {
		case t := <-w.queue:
			w.run(t)
		case <-w.stop:
			return
		}
	}
}

func (w *World) drain() {
	for {
		select {
		case t := <-w.queue:
			w.run(t)
		default:
			return
		}
	}
}

func (w *World) run(t transaction) {
	tx := &Tx{w: w}
	defer func() {
		tx.closed.Store(true)
		if t.done != nil {
			close(t.done)
		}
	}()
	t.f(tx)
}

func (w *World) inBounds(p geom.Vec3i) bool {
	r := w.cfg.BoundaryR
	return p.X >= -r && p.X <= r && p.Z >= -r && p.Z <= r &&
		p.Y >= w.cfg.MinY && p.Y <= w.cfg.MaxY
}
