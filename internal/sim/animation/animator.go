package animation

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/geom"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/scheduler"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/structure"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/world"
)

var ErrAlreadyStarted = errors.New("animator already started")

// perpetualTicksRemaining is handed to the geometry of perpetual animations,
// which never run out of ticks.
const perpetualTicksRemaining = math.MaxInt32

// Animator drives one animation from start to finalization: it owns the tick
// task, the lifecycle state and the at-most-once finalization.
type Animator struct {
	structure *structure.Structure
	snapshot  structure.Snapshot
	req       Request
	geometry  Geometry
	blocks    BlockManager
	movement  MovementMethod
	env       Env
	log       *log.Logger

	duration  int
	perpetual bool
	stopCount int

	started  atomic.Bool
	finished atomic.Bool
	notified atomic.Bool
	done     chan struct{}

	mu        sync.Mutex
	task      scheduler.Task
	animation *Animation
	hooks     []Hook

	// counter is only touched by the tick task.
	counter int

	moveMu   sync.Mutex
	moveTick int
	moves    map[AnimatedBlock]*movementState
}

// NewAnimator prepares an animation of s. Nothing happens in the world until
// Start is called.
func NewAnimator(s *structure.Structure, req Request, geo Geometry, blocks BlockManager, env Env) (*Animator, error) {
	if s == nil || geo == nil || blocks == nil {
		return nil, fmt.Errorf("animator: structure, geometry and block manager are required")
	}
	if env.Main == nil || env.Scheduler == nil {
		return nil, fmt.Errorf("animator: main context and scheduler are required")
	}
	if env.Timing.Tick <= 0 {
		return nil, fmt.Errorf("animator: tick duration must be > 0")
	}
	if req.Type == 0 {
		req.Type = MoveBlocks
	}
	if env.Log == nil {
		env.Log = log.Default()
	}
	snap := req.Snapshot
	if snap.ID == "" {
		snap = s.Snapshot()
	}

	t := min(env.Timing.HardDurationCap(req.Type), req.Time)
	movement := geo.MovementMethod()
	a := &Animator{
		structure: s,
		snapshot:  snap,
		req:       req,
		geometry:  geo,
		blocks:    blocks,
		movement:  movement,
		env:       env,
		log:       env.Log,
		duration:  env.Timing.Ticks(t),
		perpetual: env.Timing.AllowsPerpetual(req.Type) && s.IsPerpetualMover(),
		done:      make(chan struct{}),
		moves:     map[AnimatedBlock]*movementState{},
	}
	a.stopCount = a.duration + movement.FinishTicks(env.Timing.Tick)
	return a, nil
}

func (a *Animator) Structure() *structure.Structure { return a.structure }
func (a *Animator) Snapshot() structure.Snapshot    { return a.snapshot }
func (a *Animator) Request() Request                { return a.req }
func (a *Animator) MovementMethod() MovementMethod  { return a.movement }
func (a *Animator) Duration() int                   { return a.duration }
func (a *Animator) StopCount() int                  { return a.stopCount }
func (a *Animator) Perpetual() bool                 { return a.perpetual }

// Done is closed once the animation is over, however it ended.
func (a *Animator) Done() <-chan struct{} { return a.done }

// Animation returns the animation record, or nil before Start ran.
func (a *Animator) Animation() *Animation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.animation
}

func (a *Animator) State() State {
	if anim := a.Animation(); anim != nil {
		return anim.State()
	}
	return NotStarted
}

func (a *Animator) Region() geom.Cuboid {
	if anim := a.Animation(); anim != nil {
		return anim.Region()
	}
	return a.snapshot.Cuboid
}

func (a *Animator) StepsExecuted() int {
	if anim := a.Animation(); anim != nil {
		return anim.StepsExecuted()
	}
	return 0
}

// AnimatedBlocks returns the live animated blocks.
func (a *Animator) AnimatedBlocks() []AnimatedBlock { return a.blocks.AnimatedBlocks() }

// Start begins the animation. The work always runs on the main context;
// calling Start from anywhere else just queues it there. Start may be called
// once.
func (a *Animator) Start() error {
	if !a.started.CompareAndSwap(false, true) {
		a.log.Printf("programming error: structure %s: %v", a.snapshot.ID, ErrAlreadyStarted)
		return ErrAlreadyStarted
	}
	a.env.Main.Exec(a.start)
	return nil
}

func (a *Animator) start(tx *world.Tx) {
	if a.finished.Load() {
		// Aborted before the start reached the main context.
		return
	}
	anim := newAnimation(a.duration, a.snapshot, a.req.Type)
	a.mu.Lock()
	a.animation = anim
	a.mu.Unlock()

	if err := a.blocks.CreateAnimatedBlocks(tx, a.snapshot, a.geometry); err != nil {
		a.log.Printf("structure %s: create animated blocks: %v", a.snapshot.ID, err)
		a.failStart(tx, anim)
		return
	}

	blocks := a.blocks.AnimatedBlocks()
	anim.setAnimatedBlocks(blocks)
	next := Active
	if a.req.Skip || len(blocks) == 0 {
		next = Skipped
	}
	a.transition(anim, next)

	hooks := a.env.Hooks.Instantiate(anim)
	a.mu.Lock()
	a.hooks = hooks
	a.mu.Unlock()

	a.geometry.PrepareAnimation(tx, a)
	a.fire(sitePrepare, anim)

	if next == Skipped {
		a.stop(tx)
		return
	}
	a.setTask(a.env.Scheduler.RunRepeating(a.tick, a.env.Timing.InitialDelay, a.env.Timing.Tick))
}

// failStart rolls the world back after the animated blocks could not be
// created. The animation never becomes active.
func (a *Animator) failStart(tx *world.Tx, anim *Animation) {
	a.finished.Store(true)
	a.blocks.RestoreBlocksOnFailure(tx)
	if err := anim.finish(Aborted, a.snapshot.Cuboid); err != nil {
		a.log.Printf("programming error: structure %s: %v", a.snapshot.ID, err)
	}
	a.notifyFinished()
}

func (a *Animator) setTask(t scheduler.Task) {
	a.mu.Lock()
	a.task = t
	a.mu.Unlock()
	if a.finished.Load() {
		// Stopped while starting. The handle stays so the stop path can
		// still take it.
		t.Cancel()
	}
}

// takeTask cancels and clears the tick task. expected marks animations that
// must have one; a missing handle there is a programming error.
func (a *Animator) takeTask(expected bool) {
	a.mu.Lock()
	t := a.task
	a.task = nil
	a.mu.Unlock()
	if t == nil {
		if expected {
			a.log.Printf("programming error: structure %s: no tick task to cancel", a.snapshot.ID)
		}
		return
	}
	t.Cancel()
}

func (a *Animator) tick() {
	if a.finished.Load() {
		return
	}
	anim := a.Animation()
	a.fire(sitePreStep, anim)

	a.counter++
	c := a.counter
	switch {
	case a.perpetual || c <= a.duration:
		remaining := a.duration - c
		if a.perpetual {
			remaining = perpetualTicksRemaining
		}
		a.setMoveTick(c)
		a.geometry.ExecuteAnimationStep(a, c, remaining)
		a.updateRegion(anim)
		a.transition(anim, Active)
	case c > a.stopCount:
		anim.setStepsExecuted(c)
		a.fire(sitePostStep, anim)
		a.Stop()
		return
	default:
		a.setMoveTick(c)
		for _, b := range a.blocks.AnimatedBlocks() {
			a.ApplyMovement(b, b.FinalPosition(), FinishingTicks)
		}
		a.updateRegion(anim)
		a.transition(anim, Finishing)
	}
	anim.setStepsExecuted(c)
	a.fire(sitePostStep, anim)
}

func (a *Animator) setMoveTick(c int) {
	a.moveMu.Lock()
	a.moveTick = c
	a.moveMu.Unlock()
}

// ApplyMovement nudges b toward target with the animation's movement method.
func (a *Animator) ApplyMovement(b AnimatedBlock, target mgl64.Vec3, ticksRemaining int) {
	a.moveMu.Lock()
	defer a.moveMu.Unlock()
	st := a.moves[b]
	if st == nil {
		st = &movementState{}
		a.moves[b] = st
	}
	a.movement.apply(b, target, ticksRemaining, a.moveTick, st)
}

// updateRegion recomputes the swept region from the live block positions.
// With no live block left the previous region stays.
func (a *Animator) updateRegion(anim *Animation) {
	if r, ok := RegionOf(a.blocks.AnimatedBlocks()); ok {
		anim.setRegion(r)
	}
}

// ApplyRotation turns every rotatable live block and respawns it so the new
// facing shows.
func (a *Animator) ApplyRotation(tx *world.Tx, t geom.Turn) {
	for _, b := range a.blocks.AnimatedBlocks() {
		if !b.CanRotate() {
			continue
		}
		if b.Rotate(t) {
			b.Respawn(tx)
		}
	}
}

// Stop ends the animation gracefully. Only the first of any number of racing
// Stop and Abort calls has an effect.
func (a *Animator) Stop() { a.stop(nil) }

// stop runs the finalization inline when tx is set and queues it on the main
// context otherwise.
func (a *Animator) stop(tx *world.Tx) {
	if !a.finished.CompareAndSwap(false, true) {
		return
	}
	if tx == nil {
		if anim := a.Animation(); anim == nil || anim.State() == Starting {
			// The start transaction is still queued or running; stop right
			// after it.
			a.env.Main.Exec(a.shutdown)
			return
		}
	}
	a.shutdown(tx)
}

// shutdown is the body of stop once the finished flag is claimed.
func (a *Animator) shutdown(tx *world.Tx) {
	anim := a.Animation()
	if anim == nil {
		a.takeTask(false)
		a.notifyFinished()
		return
	}
	prev := anim.State()
	a.transition(anim, Stopping)
	a.takeTask(prev == Active || prev == Finishing)

	for _, b := range a.blocks.AnimatedBlocks() {
		b.SetVelocity(mgl64.Vec3{})
	}
	a.fire(siteEnding, anim)

	finalize := func(tx *world.Tx) {
		a.blocks.HandleAnimationCompletion(tx)
		a.commit()
		a.fire(siteCompleted, anim)
		if err := anim.finish(Completed, a.snapshot.Cuboid); err != nil {
			a.log.Printf("programming error: structure %s: %v", a.snapshot.ID, err)
		}
		a.notifyFinished()
		a.schedulePowerRecheck()
	}
	if tx != nil {
		finalize(tx)
		return
	}
	a.env.Main.Exec(finalize)
}

// Abort ends the animation immediately: blocks are placed at their final
// positions without the graceful preamble.
func (a *Animator) Abort() {
	a.takeTask(false)
	if !a.finished.CompareAndSwap(false, true) {
		return
	}
	a.env.Main.Exec(func(tx *world.Tx) {
		anim := a.Animation()
		if anim == nil {
			a.notifyFinished()
			return
		}
		a.blocks.HandleAnimationCompletion(tx)
		a.commit()
		a.fire(siteAborted, anim)
		if err := anim.finish(Aborted, a.snapshot.Cuboid); err != nil {
			a.log.Printf("programming error: structure %s: %v", a.snapshot.ID, err)
		}
		a.notifyFinished()
	})
}

// commit toggles the structure and moves it to its new cuboid. Must run on
// the main context.
func (a *Animator) commit() {
	if !a.req.Type.PersistsState() {
		return
	}
	snap := a.structure.CommitToggle(a.req.NewCuboid)
	if a.env.Store == nil {
		return
	}
	if err := a.env.Store.SaveStructure(snap); err != nil {
		a.log.Printf("structure %s: save: %v", snap.ID, err)
	}
}

func (a *Animator) schedulePowerRecheck() {
	if a.env.Power == nil || !a.req.Type.PersistsState() {
		return
	}
	id := a.snapshot.ID
	a.env.Scheduler.RunLater(func() { a.env.Power.VerifyPowerState(id) }, a.env.Timing.PowerRecheckDelay)
}

func (a *Animator) notifyFinished() {
	if !a.notified.CompareAndSwap(false, true) {
		return
	}
	if a.env.Registry != nil {
		a.env.Registry.ProcessFinishedAnimation(a)
	}
	close(a.done)
}

func (a *Animator) transition(anim *Animation, to State) {
	if err := anim.transition(to); err != nil && !a.finished.Load() {
		a.log.Printf("programming error: structure %s: %v", a.snapshot.ID, err)
	}
}

func (a *Animator) fire(site hookSite, anim *Animation) {
	a.mu.Lock()
	hooks := a.hooks
	a.mu.Unlock()
	for _, h := range hooks {
		site.call(a.log, h, anim)
	}
}
