package animation

import (
	"log"
	"time"

	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/geom"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/scheduler"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/structure"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/tuning"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/world"
)

// MainContext queues work for the goroutine that owns the world.
type MainContext interface {
	Exec(f func(tx *world.Tx)) <-chan struct{}
}

// Scheduler runs work on worker goroutines.
type Scheduler interface {
	RunRepeating(fn func(), initialDelay, period time.Duration) scheduler.Task
	RunLater(fn func(), delay time.Duration) scheduler.Task
}

// ActivityRegistry is told exactly once when an animation is over, whether it
// completed, was aborted or failed to start.
type ActivityRegistry interface {
	ProcessFinishedAnimation(a *Animator)
}

// PowerVerifier re-checks whether a structure's power state still matches
// its open state.
type PowerVerifier interface {
	VerifyPowerState(structureID string)
}

// Timing holds the time constants of the engine.
type Timing struct {
	Tick              time.Duration
	InitialDelay      time.Duration
	PowerRecheckDelay time.Duration
	MoveBlocksCap     time.Duration
	PreviewCap        time.Duration
	AllowPerpetual    bool
}

func TimingFrom(t tuning.Tuning) Timing {
	return Timing{
		Tick:              t.TickDuration(),
		InitialDelay:      t.Animation.InitialDelay(),
		PowerRecheckDelay: t.Animation.PowerRecheckDelay(),
		MoveBlocksCap:     time.Duration(t.Animation.MoveBlocksMaxMs) * time.Millisecond,
		PreviewCap:        time.Duration(t.Animation.PreviewMaxMs) * time.Millisecond,
		AllowPerpetual:    t.Animation.AllowPerpetual,
	}
}

// HardDurationCap is the longest an animation of type t may run.
func (tm Timing) HardDurationCap(t Type) time.Duration {
	if t == Preview {
		return tm.PreviewCap
	}
	return tm.MoveBlocksCap
}

// AllowsPerpetual reports whether animations of type t may run forever.
func (tm Timing) AllowsPerpetual(t Type) bool {
	return t == MoveBlocks && tm.AllowPerpetual
}

// Ticks converts d into whole ticks.
func (tm Timing) Ticks(d time.Duration) int {
	if tm.Tick <= 0 || d <= 0 {
		return 0
	}
	return int(d / tm.Tick)
}

// Env bundles the collaborators of an Animator.
type Env struct {
	Main      MainContext
	Scheduler Scheduler
	Registry  ActivityRegistry
	Hooks     *HookManager
	Power     PowerVerifier
	Store     structure.Store
	Timing    Timing
	Log       *log.Logger
}

// Request is what the caller asks of one toggle.
type Request struct {
	// Snapshot of the structure taken before the toggle. When empty the
	// Animator snapshots the structure itself.
	Snapshot structure.Snapshot
	Type     Type
	// Time is the requested animation time; it is capped per type.
	Time time.Duration
	// Skip finishes the toggle without animating.
	Skip bool
	// NewCuboid is where the structure ends up once the toggle completes.
	NewCuboid geom.Cuboid
	Cause     string
}
