package world

import (
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/catalogs"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/geom"
)

// BlockData is the state of one block: its catalog id and, for rotatable
// blocks, a facing in quarter turns about the Y axis.
type BlockData struct {
	Type      string `json:"type"`
	Facing    int    `json:"facing,omitempty"`
	Rotatable bool   `json:"-"`
}

func (b BlockData) IsAir() bool { return b.Type == "" || b.Type == catalogs.Air }

func (b BlockData) CanRotate() bool { return b.Rotatable }

// Rotated returns b turned a quarter in the given direction. Blocks without
// a facing are returned unchanged.
func (b BlockData) Rotated(t geom.Turn) BlockData {
	if !b.Rotatable {
		return b
	}
	b.Facing = geom.NormalizeQuarter(b.Facing + int(t))
	return b
}
