// Package geometry holds the shape calculators of the structure archetypes.
package geometry

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/animation"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/geom"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/structure"
)

// Strategy is a Geometry that also knows where the structure ends up.
type Strategy interface {
	animation.Geometry
	NewCuboid() geom.Cuboid
}

// Archetype names.
const (
	SlidingDoor   = "SLIDING_DOOR"
	Portcullis    = "PORTCULLIS"
	GarageDoor    = "GARAGE_DOOR"
	Door          = "DOOR"
	BigDoor       = "BIG_DOOR"
	Drawbridge    = "DRAWBRIDGE"
	Windmill      = "WINDMILL"
	Flag          = "FLAG"
	RevolvingDoor = "REVOLVING_DOOR"
)

// ForStructure picks the strategy of a structure's archetype.
func ForStructure(snap structure.Snapshot) (Strategy, error) {
	axis, err := geom.ParseAxis(snap.Axis)
	if err != nil {
		return nil, err
	}
	switch snap.Type {
	case SlidingDoor, Portcullis, GarageDoor:
		return newTranslation(snap, axis), nil
	case Door, BigDoor, Drawbridge:
		return newRotation(snap, axis), nil
	case Windmill, Flag, RevolvingDoor:
		return newSpin(snap, axis), nil
	}
	return nil, fmt.Errorf("geometry: unknown structure type %q", snap.Type)
}

func unit(axis geom.Axis) geom.Vec3i {
	switch axis {
	case geom.AxisX:
		return geom.Vec3i{X: 1}
	case geom.AxisZ:
		return geom.Vec3i{Z: 1}
	}
	return geom.Vec3i{Y: 1}
}

// sign is +1 or -1: the configured direction, reversed when the structure is
// open so that toggling twice returns it home.
func sign(snap structure.Snapshot) float64 {
	s := 1.0
	if snap.Direction < 0 {
		s = -1
	}
	if snap.Open {
		s = -s
	}
	return s
}

// progress is how far along an animation of duration ticks is at tick t.
func progress(t, duration int) float64 {
	if duration <= 0 || t >= duration {
		return 1
	}
	return float64(t) / float64(duration)
}

// planar returns the two components of v perpendicular to axis.
func planar(v mgl64.Vec3, axis geom.Axis) (u, w float64) {
	switch axis {
	case geom.AxisX:
		return v[1], v[2]
	case geom.AxisZ:
		return v[0], v[1]
	}
	return v[0], v[2]
}

func radius(p geom.Vec3i, pivot mgl64.Vec3, axis geom.Axis) float64 {
	u, w := planar(p.Vec3().Sub(pivot), axis)
	return math.Hypot(u, w)
}

func startAngle(p geom.Vec3i, pivot mgl64.Vec3, axis geom.Axis) float64 {
	u, w := planar(p.Vec3().Sub(pivot), axis)
	return math.Atan2(w, u)
}
