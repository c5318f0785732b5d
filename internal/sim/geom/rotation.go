package geom

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Axis names one of the three world axes.
type Axis uint8

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "X"
	case AxisY:
		return "Y"
	case AxisZ:
		return "Z"
	}
	return fmt.Sprintf("Axis(%d)", uint8(a))
}

func ParseAxis(s string) (Axis, error) {
	switch s {
	case "X", "x":
		return AxisX, nil
	case "Y", "y", "":
		return AxisY, nil
	case "Z", "z":
		return AxisZ, nil
	}
	return 0, fmt.Errorf("unknown axis %q", s)
}

// RotateAround rotates p by angle radians around the line through pivot
// parallel to axis.
func RotateAround(p, pivot mgl64.Vec3, axis Axis, angle float64) mgl64.Vec3 {
	var m mgl64.Mat3
	switch axis {
	case AxisX:
		m = mgl64.Rotate3DX(angle)
	case AxisZ:
		m = mgl64.Rotate3DZ(angle)
	default:
		m = mgl64.Rotate3DY(angle)
	}
	return pivot.Add(m.Mul3x1(p.Sub(pivot)))
}

// Turn is a quarter-turn direction about the vertical axis.
type Turn int8

const (
	Clockwise        Turn = 1
	Counterclockwise Turn = -1
)

func (t Turn) String() string {
	if t == Counterclockwise {
		return "COUNTERCLOCKWISE"
	}
	return "CLOCKWISE"
}

// NormalizeQuarter folds a quarter-turn count into [0,3].
func NormalizeQuarter(r int) int {
	r %= 4
	if r < 0 {
		r += 4
	}
	return r
}
