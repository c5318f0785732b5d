package animation

import "github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/geom"

// RegionOf returns the outward-rounded bounding cuboid of every live block.
// ok is false when no block is alive.
func RegionOf(blocks []AnimatedBlock) (geom.Cuboid, bool) {
	var b geom.Bounds
	for _, blk := range blocks {
		if blk.Alive() {
			b.Add(blk.Position())
		}
	}
	return b.Cuboid()
}
