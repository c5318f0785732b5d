package animation

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/geom"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/structure"
)

// Type selects what an animation does to the world.
type Type uint8

const (
	// MoveBlocks replaces real blocks with animated blocks and commits the
	// structure's new state when done.
	MoveBlocks Type = iota + 1
	// Preview spawns cosmetic markers only.
	Preview
)

func (t Type) String() string {
	switch t {
	case MoveBlocks:
		return "MOVE_BLOCKS"
	case Preview:
		return "PREVIEW"
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

func ParseType(s string) (Type, error) {
	switch s {
	case "MOVE_BLOCKS", "":
		return MoveBlocks, nil
	case "PREVIEW":
		return Preview, nil
	}
	return 0, fmt.Errorf("unknown animation type %q", s)
}

// PersistsState reports whether finishing the animation commits the
// structure's open state and coordinates.
func (t Type) PersistsState() bool { return t == MoveBlocks }

// Animation is the state record of one execution of the engine for a single
// structure toggle. Only the Animator mutates it; everything else reads.
type Animation struct {
	id            string
	duration      int
	snapshot      structure.Snapshot
	structureType string
	typ           Type
	startedAt     time.Time

	mu            sync.RWMutex
	state         State
	stepsExecuted int
	region        geom.Cuboid
	blocks        []AnimatedBlock
}

func newAnimation(duration int, snap structure.Snapshot, typ Type) *Animation {
	return &Animation{
		id:            uuid.NewString(),
		duration:      duration,
		snapshot:      snap,
		structureType: snap.Type,
		typ:           typ,
		startedAt:     time.Now(),
		state:         Starting,
		region:        snap.Cuboid,
	}
}

func (a *Animation) ID() string                   { return a.id }
func (a *Animation) Duration() int                { return a.duration }
func (a *Animation) Snapshot() structure.Snapshot { return a.snapshot }
func (a *Animation) StructureType() string        { return a.structureType }
func (a *Animation) Type() Type                   { return a.typ }
func (a *Animation) StartedAt() time.Time         { return a.startedAt }

func (a *Animation) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *Animation) StepsExecuted() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stepsExecuted
}

func (a *Animation) RemainingSteps() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.duration - a.stepsExecuted
}

// Region is the cuboid currently swept by the animation.
func (a *Animation) Region() geom.Cuboid {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.region
}

// AnimatedBlocks returns the blocks created for this animation. The slice is
// set once and must not be modified.
func (a *Animation) AnimatedBlocks() []AnimatedBlock {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.blocks
}

func (a *Animation) setAnimatedBlocks(blocks []AnimatedBlock) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.blocks == nil {
		a.blocks = blocks
	}
}

func (a *Animation) transition(to State) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !canTransition(a.state, to) {
		return &TransitionError{From: a.state, To: to}
	}
	a.state = to
	return nil
}

// setStepsExecuted records progress. The counter never decreases.
func (a *Animation) setStepsExecuted(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Terminal() || n < a.stepsExecuted {
		return
	}
	a.stepsExecuted = n
}

func (a *Animation) setRegion(c geom.Cuboid) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state.Terminal() {
		return
	}
	a.region = c
}

// finish moves the animation into a terminal state and resets its region in
// one step, so no reader sees a terminal animation with a stale region.
func (a *Animation) finish(to State, region geom.Cuboid) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !canTransition(a.state, to) {
		return &TransitionError{From: a.state, To: to}
	}
	a.region = region
	a.state = to
	return nil
}
