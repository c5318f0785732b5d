package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/animation"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/geom"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/structure"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/world"
)

// rotation swings the structure a quarter turn about an axis through its
// pivot: doors about Y, drawbridges about X or Z.
type rotation struct {
	snap  structure.Snapshot
	axis  geom.Axis
	pivot mgl64.Vec3
	angle float64
}

func newRotation(snap structure.Snapshot, axis geom.Axis) *rotation {
	return &rotation{
		snap:  snap,
		axis:  axis,
		pivot: snap.Pivot.Vec3(),
		angle: sign(snap) * math.Pi / 2,
	}
}

func (r *rotation) Radius(p geom.Vec3i) float64     { return radius(p, r.pivot, r.axis) }
func (r *rotation) StartAngle(p geom.Vec3i) float64 { return startAngle(p, r.pivot, r.axis) }

func (r *rotation) FinalPosition(p geom.Vec3i) mgl64.Vec3 {
	// Snap onto the grid so float error never leaks into placement.
	return geom.Round(geom.RotateAround(p.Vec3(), r.pivot, r.axis, r.angle)).Vec3()
}

func (r *rotation) MovementMethod() animation.MovementMethod { return animation.TeleportVelocity }

func (r *rotation) NewCuboid() geom.Cuboid {
	c := r.snap.Cuboid
	return geom.NewCuboid(geom.Round(r.FinalPosition(c.Min)), geom.Round(r.FinalPosition(c.Max)))
}

// PrepareAnimation turns the facing of carried blocks along with the swing.
// Facing is a quarter turn about Y, so swings about X or Z keep it.
func (r *rotation) PrepareAnimation(tx *world.Tx, a *animation.Animator) {
	if r.axis != geom.AxisY {
		return
	}
	a.ApplyRotation(tx, r.turn())
}

// turn is the facing change of a swing by r.angle about Y. Positive angles
// carry +X onto -Z, a counterclockwise turn seen from above.
func (r *rotation) turn() geom.Turn {
	if r.angle > 0 {
		return geom.Counterclockwise
	}
	return geom.Clockwise
}

func (r *rotation) ExecuteAnimationStep(a *animation.Animator, ticks, ticksRemaining int) {
	angle := r.angle * progress(ticks, a.Duration())
	for _, b := range a.AnimatedBlocks() {
		target := geom.RotateAround(b.StartPosition(), r.pivot, r.axis, angle)
		a.ApplyMovement(b, target, ticksRemaining)
	}
}
