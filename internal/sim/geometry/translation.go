package geometry

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/animation"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/geom"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/structure"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/world"
)

// translation slides the whole structure along one axis: sliding doors,
// portcullises and garage doors.
type translation struct {
	snap  structure.Snapshot
	delta geom.Vec3i
}

func newTranslation(snap structure.Snapshot, axis geom.Axis) *translation {
	dist := snap.Distance
	if dist <= 0 {
		// Default: slide by the structure's own length along the axis.
		d := snap.Cuboid.Dimensions()
		dist = [...]int{d.X, d.Y, d.Z}[axis]
	}
	u := unit(axis)
	s := int(sign(snap))
	return &translation{
		snap:  snap,
		delta: geom.Vec3i{X: u.X * dist * s, Y: u.Y * dist * s, Z: u.Z * dist * s},
	}
}

func (t *translation) Radius(geom.Vec3i) float64     { return 0 }
func (t *translation) StartAngle(geom.Vec3i) float64 { return 0 }

func (t *translation) FinalPosition(p geom.Vec3i) mgl64.Vec3 {
	return p.Add(t.delta).Vec3()
}

func (t *translation) MovementMethod() animation.MovementMethod { return animation.Velocity }

func (t *translation) NewCuboid() geom.Cuboid { return t.snap.Cuboid.Move(t.delta) }

func (t *translation) PrepareAnimation(*world.Tx, *animation.Animator) {}

func (t *translation) ExecuteAnimationStep(a *animation.Animator, ticks, ticksRemaining int) {
	step := t.delta.Vec3().Mul(progress(ticks, a.Duration()))
	for _, b := range a.AnimatedBlocks() {
		a.ApplyMovement(b, b.StartPosition().Add(step), ticksRemaining)
	}
}
