package world

import (
	"fmt"
	"sync/atomic"

	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/catalogs"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/geom"
)

// Tx is the main-context token handed to transactions queued through
// World.Exec. It is only valid while the transaction runs; using it
// afterwards panics.
type Tx struct {
	w      *World
	closed atomic.Bool
}

// BlockChange describes one block write performed on the main context.
type BlockChange struct {
	Tick uint64     `json:"tick"`
	Pos  geom.Vec3i `json:"pos"`
	Old  BlockData  `json:"old"`
	New  BlockData  `json:"new"`
}

func (tx *Tx) check() {
	if tx == nil || tx.closed.Load() {
		panic("world: transaction used outside the main context")
	}
}

func (tx *Tx) World() *World {
	tx.check()
	return tx.w
}

// Block returns the block at p. Unset cells are air.
func (tx *Tx) Block(p geom.Vec3i) BlockData {
	tx.check()
	if b, ok := tx.w.blocks[p]; ok {
		return b
	}
	return BlockData{Type: catalogs.Air}
}

// SetBlock writes b at p. Writing air clears the cell.
func (tx *Tx) SetBlock(p geom.Vec3i, b BlockData) error {
	tx.check()
	if !tx.w.inBounds(p) {
		return fmt.Errorf("set block %s: %w", p, ErrOutOfBounds)
	}
	old := tx.Block(p)
	if b.IsAir() {
		delete(tx.w.blocks, p)
		b = BlockData{Type: catalogs.Air}
	} else {
		b.Rotatable = tx.w.catalog.Rotatable(b.Type)
		tx.w.blocks[p] = b
	}
	if fn := tx.w.cfg.OnBlockChange; fn != nil {
		fn(BlockChange{Tick: tx.w.tick.Load(), Pos: p, Old: old, New: b})
	}
	return nil
}

func (tx *Tx) RemoveBlock(p geom.Vec3i) error {
	return tx.SetBlock(p, BlockData{Type: catalogs.Air})
}

// Advance moves the world one tick forward, integrating the velocity of every
// live animated block.
func (tx *Tx) Advance() {
	tx.check()
	tx.w.tick.Add(1)
	for _, e := range tx.w.entities {
		e.integrate()
	}
}

// EntityCount returns the number of live animated blocks and markers.
func (tx *Tx) EntityCount() int {
	tx.check()
	return len(tx.w.entities)
}
