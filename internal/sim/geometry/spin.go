package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/animation"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/geom"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/structure"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/world"
)

// defaultRevolutionTicks is used when the animation has no duration to derive
// the revolution time from.
const defaultRevolutionTicks = 80

// spin keeps turning the structure about its pivot: windmills, flags and
// revolving doors. When stopped, blocks return to their start positions.
type spin struct {
	snap  structure.Snapshot
	axis  geom.Axis
	pivot mgl64.Vec3
	dir   float64
}

func newSpin(snap structure.Snapshot, axis geom.Axis) *spin {
	dir := 1.0
	if snap.Direction < 0 {
		dir = -1
	}
	return &spin{snap: snap, axis: axis, pivot: snap.Pivot.Vec3(), dir: dir}
}

func (s *spin) Radius(p geom.Vec3i) float64     { return radius(p, s.pivot, s.axis) }
func (s *spin) StartAngle(p geom.Vec3i) float64 { return startAngle(p, s.pivot, s.axis) }

func (s *spin) FinalPosition(p geom.Vec3i) mgl64.Vec3 { return p.Vec3() }

func (s *spin) MovementMethod() animation.MovementMethod { return animation.Teleport }

func (s *spin) NewCuboid() geom.Cuboid { return s.snap.Cuboid }

func (s *spin) PrepareAnimation(*world.Tx, *animation.Animator) {}

func (s *spin) ExecuteAnimationStep(a *animation.Animator, ticks, ticksRemaining int) {
	rev := a.Duration()
	if rev <= 0 {
		rev = defaultRevolutionTicks
	}
	angle := s.dir * 2 * math.Pi * float64(ticks%rev) / float64(rev)
	for _, b := range a.AnimatedBlocks() {
		a.ApplyMovement(b, geom.RotateAround(b.StartPosition(), s.pivot, s.axis, angle), ticksRemaining)
	}
}
