package activity

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/animation"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/geometry"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/structure"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/world"
)

var ErrUnknownStructure = errors.New("unknown structure")

// ToggleRequest asks for one structure to be toggled.
type ToggleRequest struct {
	StructureID string
	Type        animation.Type
	// Time overrides the default animation time when > 0.
	Time  time.Duration
	Skip  bool
	Cause string
}

type TogglerConfig struct {
	Main       animation.MainContext
	Scheduler  animation.Scheduler
	Structures *structure.Registry
	Registry   *Registry
	Hooks      *animation.HookManager
	Store      structure.Store
	Factory    animation.BlockFactory
	Timing     animation.Timing
	// DefaultTime is used when a request has no time of its own.
	DefaultTime time.Duration
	Log         *log.Logger
}

// Toggler turns toggle requests into running animations and keeps powered
// structures in sync with their power blocks.
type Toggler struct {
	cfg TogglerConfig
	log *log.Logger

	mu          sync.RWMutex
	timing      animation.Timing
	defaultTime time.Duration
}

func NewToggler(cfg TogglerConfig) (*Toggler, error) {
	if cfg.Main == nil || cfg.Scheduler == nil || cfg.Structures == nil || cfg.Registry == nil {
		return nil, fmt.Errorf("toggler: main context, scheduler, structures and registry are required")
	}
	if cfg.Factory == nil {
		cfg.Factory = animation.WorldFactory{}
	}
	if cfg.Log == nil {
		cfg.Log = log.Default()
	}
	return &Toggler{cfg: cfg, log: cfg.Log, timing: cfg.Timing, defaultTime: cfg.DefaultTime}, nil
}

// SetTiming swaps the timing used by animations started from now on.
func (t *Toggler) SetTiming(tm animation.Timing, defaultTime time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timing = tm
	t.defaultTime = defaultTime
}

func (t *Toggler) Timing() animation.Timing {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.timing
}

// Toggle starts an animation that flips the structure's open state.
func (t *Toggler) Toggle(req ToggleRequest) (*animation.Animator, error) {
	s, ok := t.cfg.Structures.Get(req.StructureID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", req.StructureID, ErrUnknownStructure)
	}
	if t.cfg.Registry.IsBusy(s.ID()) {
		return nil, fmt.Errorf("%s: %w", s.ID(), ErrStructureBusy)
	}
	snap := s.Snapshot()
	strategy, err := geometry.ForStructure(snap)
	if err != nil {
		return nil, err
	}
	if req.Type == 0 {
		req.Type = animation.MoveBlocks
	}

	t.mu.RLock()
	timing, d := t.timing, t.defaultTime
	t.mu.RUnlock()
	if req.Time > 0 {
		d = req.Time
	}

	env := animation.Env{
		Main:      t.cfg.Main,
		Scheduler: t.cfg.Scheduler,
		Registry:  t.cfg.Registry,
		Hooks:     t.cfg.Hooks,
		Power:     t,
		Store:     t.cfg.Store,
		Timing:    timing,
		Log:       t.log,
	}
	a, err := animation.NewAnimator(s, animation.Request{
		Snapshot:  snap,
		Type:      req.Type,
		Time:      d,
		Skip:      req.Skip,
		NewCuboid: strategy.NewCuboid(),
		Cause:     req.Cause,
	}, strategy, animation.NewBlockManager(req.Type, t.cfg.Factory, t.log), env)
	if err != nil {
		return nil, err
	}
	if err := t.cfg.Registry.Register(a); err != nil {
		return nil, err
	}
	if err := a.Start(); err != nil {
		return nil, err
	}
	t.log.Printf("toggle %s (%s) type=%s duration=%d ticks cause=%q", snap.ID, snap.Type, req.Type, a.Duration(), req.Cause)
	return a, nil
}

// VerifyPowerState compares a powered structure's open state with its power
// block and toggles it again when they disagree. It waits for the main
// context, so it must not be called from inside a transaction.
func (t *Toggler) VerifyPowerState(structureID string) {
	s, ok := t.cfg.Structures.Get(structureID)
	if !ok {
		return
	}
	snap := s.Snapshot()
	if snap.PowerBlock == nil {
		return
	}
	// Only read on the main context: Toggle queues onto it and must not run
	// inside a transaction.
	var powered, read bool
	<-t.cfg.Main.Exec(func(tx *world.Tx) {
		powered = !tx.Block(*snap.PowerBlock).IsAir()
		read = true
	})
	if !read || powered == s.IsOpen() || t.cfg.Registry.IsBusy(structureID) {
		return
	}
	if _, err := t.Toggle(ToggleRequest{StructureID: structureID, Cause: "power"}); err != nil {
		t.log.Printf("power toggle of %s: %v", structureID, err)
	}
}

// ScanPower runs VerifyPowerState for every powered structure.
func (t *Toggler) ScanPower() {
	for _, s := range t.cfg.Structures.All() {
		if s.Snapshot().PowerBlock != nil {
			t.VerifyPowerState(s.ID())
		}
	}
}
