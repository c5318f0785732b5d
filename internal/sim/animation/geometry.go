package animation

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/geom"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/world"
)

// Geometry is the shape calculator of one structure archetype: it knows how a
// door swings or a drawbridge tilts. One instance serves one animation.
type Geometry interface {
	Radius(p geom.Vec3i) float64
	StartAngle(p geom.Vec3i) float64
	FinalPosition(p geom.Vec3i) mgl64.Vec3
	MovementMethod() MovementMethod

	// PrepareAnimation runs on the main context once the animated blocks exist.
	PrepareAnimation(tx *world.Tx, a *Animator)
	// ExecuteAnimationStep computes this tick's targets and hands each one to
	// Animator.ApplyMovement. ticks counts from 1.
	ExecuteAnimationStep(a *Animator, ticks, ticksRemaining int)
}
