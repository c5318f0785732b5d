package geom

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec3i is a block-grid position.
type Vec3i struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	Z int `json:"z" yaml:"z"`
}

func (v Vec3i) Add(o Vec3i) Vec3i { return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }
func (v Vec3i) Sub(o Vec3i) Vec3i { return Vec3i{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }

// Vec3 converts a grid position into world space.
func (v Vec3i) Vec3() mgl64.Vec3 { return mgl64.Vec3{float64(v.X), float64(v.Y), float64(v.Z)} }

func (v Vec3i) String() string { return fmt.Sprintf("%d,%d,%d", v.X, v.Y, v.Z) }

// Round snaps a world-space position onto the block grid (half away from zero).
func Round(p mgl64.Vec3) Vec3i {
	return Vec3i{X: int(math.Round(p[0])), Y: int(math.Round(p[1])), Z: int(math.Round(p[2]))}
}

// Cuboid is an axis-aligned box on the block grid. Min and Max are both inclusive.
type Cuboid struct {
	Min Vec3i `json:"min" yaml:"min"`
	Max Vec3i `json:"max" yaml:"max"`
}

// NewCuboid returns the cuboid spanned by two corners in any order.
func NewCuboid(a, b Vec3i) Cuboid {
	return Cuboid{
		Min: Vec3i{X: min(a.X, b.X), Y: min(a.Y, b.Y), Z: min(a.Z, b.Z)},
		Max: Vec3i{X: max(a.X, b.X), Y: max(a.Y, b.Y), Z: max(a.Z, b.Z)},
	}
}

// OutwardCuboid builds a grid cuboid from world-space extremes, rounding each
// extreme away from the box's own center: the minimum is floored and the
// maximum ceiled, so the result always contains both points.
func OutwardCuboid(lo, hi mgl64.Vec3) Cuboid {
	return NewCuboid(
		Vec3i{X: int(math.Floor(lo[0])), Y: int(math.Floor(lo[1])), Z: int(math.Floor(lo[2]))},
		Vec3i{X: int(math.Ceil(hi[0])), Y: int(math.Ceil(hi[1])), Z: int(math.Ceil(hi[2]))},
	)
}

func (c Cuboid) Contains(p Vec3i) bool {
	return p.X >= c.Min.X && p.X <= c.Max.X &&
		p.Y >= c.Min.Y && p.Y <= c.Max.Y &&
		p.Z >= c.Min.Z && p.Z <= c.Max.Z
}

func (c Cuboid) Overlaps(o Cuboid) bool {
	return c.Min.X <= o.Max.X && c.Max.X >= o.Min.X &&
		c.Min.Y <= o.Max.Y && c.Max.Y >= o.Min.Y &&
		c.Min.Z <= o.Max.Z && c.Max.Z >= o.Min.Z
}

// OnEdge reports whether p lies on any of the six faces of c.
func (c Cuboid) OnEdge(p Vec3i) bool {
	return p.X == c.Min.X || p.X == c.Max.X ||
		p.Y == c.Min.Y || p.Y == c.Max.Y ||
		p.Z == c.Min.Z || p.Z == c.Max.Z
}

// Dimensions returns the number of blocks along each axis.
func (c Cuboid) Dimensions() Vec3i {
	return Vec3i{X: c.Max.X - c.Min.X + 1, Y: c.Max.Y - c.Min.Y + 1, Z: c.Max.Z - c.Min.Z + 1}
}

func (c Cuboid) Volume() int {
	d := c.Dimensions()
	return d.X * d.Y * d.Z
}

func (c Cuboid) Center() mgl64.Vec3 {
	return c.Min.Vec3().Add(c.Max.Vec3()).Mul(0.5)
}

func (c Cuboid) Move(d Vec3i) Cuboid {
	return Cuboid{Min: c.Min.Add(d), Max: c.Max.Add(d)}
}

func (c Cuboid) String() string { return fmt.Sprintf("[%s -> %s]", c.Min, c.Max) }

// Bounds accumulates the world-space extremes of a set of points.
// The zero value is empty.
type Bounds struct {
	lo, hi mgl64.Vec3
	n      int
}

func (b *Bounds) Add(p mgl64.Vec3) {
	if b.n == 0 {
		b.lo, b.hi = p, p
	} else {
		for i := 0; i < 3; i++ {
			b.lo[i] = math.Min(b.lo[i], p[i])
			b.hi[i] = math.Max(b.hi[i], p[i])
		}
	}
	b.n++
}

func (b *Bounds) Empty() bool { return b.n == 0 }

// Cuboid returns the outward-rounded cuboid of every point added so far.
// ok is false when no point was added.
func (b *Bounds) Cuboid() (c Cuboid, ok bool) {
	if b.n == 0 {
		return Cuboid{}, false
	}
	return OutwardCuboid(b.lo, b.hi), true
}
