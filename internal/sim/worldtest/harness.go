package worldtest

import (
	"context"
	"log"
	"testing"
	"time"

	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/catalogs"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/geom"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/scheduler"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/world"
)

// Block ids of the test catalog.
const (
	Stone   = "STONE"
	Stairs  = "OAK_STAIRS"
	Bedrock = "BEDROCK"
	Lever   = "LEVER"
)

const waitTimeout = 2 * time.Second

// Harness is a small black-box test helper: a world running its main context
// on its own goroutine plus a manual scheduler the test steps by hand.
//
// The world has no internal ticker, so velocities only integrate through
// Advance.
type Harness struct {
	T     *testing.T
	Cat   *catalogs.BlockCatalog
	W     *world.World
	Sched *scheduler.Manual

	cancel context.CancelFunc
	done   chan error
}

// Catalog returns the block catalog used by the harness.
func Catalog(t *testing.T) *catalogs.BlockCatalog {
	t.Helper()
	c, err := catalogs.FromDefs([]catalogs.BlockDef{
		{ID: Stone, Solid: true, Animatable: true},
		{ID: Stairs, Solid: true, Animatable: true, Rotatable: true},
		{ID: Bedrock, Solid: true},
		{ID: Lever, Animatable: false},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return c
}

func New(t *testing.T, cfg world.WorldConfig) *Harness {
	t.Helper()
	cfg.TickDuration = 0
	cat := Catalog(t)
	w := world.New(cfg, cat, log.New(testWriter{t}, "", 0))

	ctx, cancel := context.WithCancel(context.Background())
	h := &Harness{
		T:      t,
		Cat:    cat,
		W:      w,
		Sched:  scheduler.NewManual(),
		cancel: cancel,
		done:   make(chan error, 1),
	}
	go func() { h.done <- w.Run(ctx) }()
	t.Cleanup(h.Close)
	return h
}

// Close stops the world and waits for Run to return.
func (h *Harness) Close() {
	h.cancel()
	select {
	case <-h.done:
	case <-time.After(waitTimeout):
		h.T.Errorf("world.Run did not exit")
	}
}

// Do runs f on the main context and waits for it.
func (h *Harness) Do(f func(tx *world.Tx)) {
	h.T.Helper()
	h.Wait(h.W.Exec(f), "main context")
}

// Sync waits until everything queued so far has run.
func (h *Harness) Sync() { h.Do(func(*world.Tx) {}) }

// Wait blocks until ch is closed.
func (h *Harness) Wait(ch <-chan struct{}, what string) {
	h.T.Helper()
	select {
	case <-ch:
	case <-time.After(waitTimeout):
		h.T.Fatalf("timed out waiting for %s", what)
	}
}

// Tick runs every live repeating task once, then lets the world integrate
// one tick of velocity and drains what the tasks queued.
func (h *Harness) Tick() int {
	h.T.Helper()
	n := h.Sched.Step()
	h.Do(func(tx *world.Tx) { tx.Advance() })
	return n
}

// Ticks calls Tick n times.
func (h *Harness) Ticks(n int) {
	h.T.Helper()
	for i := 0; i < n; i++ {
		h.Tick()
	}
}

func (h *Harness) SetBlock(p geom.Vec3i, typ string) {
	h.T.Helper()
	var err error
	h.Do(func(tx *world.Tx) { err = tx.SetBlock(p, world.BlockData{Type: typ}) })
	if err != nil {
		h.T.Fatalf("set block %s: %v", p, err)
	}
}

// Fill sets every cell of c to typ.
func (h *Harness) Fill(c geom.Cuboid, typ string) {
	h.T.Helper()
	var err error
	h.Do(func(tx *world.Tx) {
		for x := c.Min.X; x <= c.Max.X && err == nil; x++ {
			for y := c.Min.Y; y <= c.Max.Y && err == nil; y++ {
				for z := c.Min.Z; z <= c.Max.Z && err == nil; z++ {
					err = tx.SetBlock(geom.Vec3i{X: x, Y: y, Z: z}, world.BlockData{Type: typ})
				}
			}
		}
	})
	if err != nil {
		h.T.Fatalf("fill %s: %v", c, err)
	}
}

func (h *Harness) Block(p geom.Vec3i) world.BlockData {
	h.T.Helper()
	var b world.BlockData
	h.Do(func(tx *world.Tx) { b = tx.Block(p) })
	return b
}

// Count returns how many cells of c hold typ.
func (h *Harness) Count(c geom.Cuboid, typ string) int {
	h.T.Helper()
	n := 0
	h.Do(func(tx *world.Tx) {
		for x := c.Min.X; x <= c.Max.X; x++ {
			for y := c.Min.Y; y <= c.Max.Y; y++ {
				for z := c.Min.Z; z <= c.Max.Z; z++ {
					if tx.Block(geom.Vec3i{X: x, Y: y, Z: z}).Type == typ {
						n++
					}
				}
			}
		}
	})
	return n
}

func (h *Harness) EntityCount() int {
	h.T.Helper()
	var n int
	h.Do(func(tx *world.Tx) { n = tx.EntityCount() })
	return n
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

// Logger returns a logger that writes into the test log.
func (h *Harness) Logger() *log.Logger { return log.New(testWriter{h.T}, "", 0) }
