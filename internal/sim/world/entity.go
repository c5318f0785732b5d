package world

import (
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/geom"
)

// SpawnSpec describes one animated block to create from the block at Pos.
type SpawnSpec struct {
	Pos        geom.Vec3i
	Final      mgl64.Vec3
	Radius     float64
	StartAngle float64
	OnEdge     bool
	// Marker spawns a cosmetic preview entity. Markers never read or write
	// real blocks on placement.
	Marker bool
}

// BlockEntity is the visual stand-in for one block while it is being
// animated. Position and velocity may be changed from any goroutine; spawning,
// killing, respawning and placing need the main context.
type BlockEntity struct {
	w *World

	start      mgl64.Vec3
	final      mgl64.Vec3
	radius     float64
	startAngle float64
	onEdge     bool
	marker     bool

	mu       sync.Mutex
	id       uint64
	pos      mgl64.Vec3
	vel      mgl64.Vec3
	data     BlockData
	alive    bool
	respawns int
}

// SpawnAnimatedBlock creates an animated block for the block at spec.Pos.
// ok is false when the cell holds nothing that may be animated (air or a
// block the catalog does not allow); no entity is created then.
func (tx *Tx) SpawnAnimatedBlock(spec SpawnSpec) (e *BlockEntity, ok bool, err error) {
	tx.check()
	if !tx.w.inBounds(spec.Pos) {
		return nil, false, fmt.Errorf("spawn at %s: %w", spec.Pos, ErrOutOfBounds)
	}
	data := tx.Block(spec.Pos)
	if !tx.w.catalog.Animatable(data.Type) {
		return nil, false, nil
	}
	e = &BlockEntity{
		w:          tx.w,
		start:      spec.Pos.Vec3(),
		final:      spec.Final,
		radius:     spec.Radius,
		startAngle: spec.StartAngle,
		onEdge:     spec.OnEdge,
		marker:     spec.Marker,
		pos:        spec.Pos.Vec3(),
		data:       data,
		alive:      true,
	}
	tx.w.addEntity(e)
	return e, true, nil
}

func (w *World) addEntity(e *BlockEntity) {
	e.id = w.nextEntity.Add(1)
	w.entities[e.id] = e
}

func (e *BlockEntity) ID() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.id
}

func (e *BlockEntity) StartPosition() mgl64.Vec3 { return e.start }
func (e *BlockEntity) FinalPosition() mgl64.Vec3 { return e.final }
func (e *BlockEntity) Radius() float64           { return e.radius }
func (e *BlockEntity) StartAngle() float64       { return e.startAngle }
func (e *BlockEntity) OnEdge() bool              { return e.onEdge }
func (e *BlockEntity) Marker() bool              { return e.marker }

func (e *BlockEntity) Position() mgl64.Vec3 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pos
}

func (e *BlockEntity) Velocity() mgl64.Vec3 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vel
}

func (e *BlockEntity) Alive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.alive
}

func (e *BlockEntity) Data() BlockData {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.data
}

func (e *BlockEntity) Respawns() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.respawns
}

// Teleport moves the entity to pos. It reports false for dead entities.
func (e *BlockEntity) Teleport(pos mgl64.Vec3) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.alive {
		return false
	}
	e.pos = pos
	return true
}

func (e *BlockEntity) SetVelocity(v mgl64.Vec3) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.alive {
		e.vel = v
	}
}

func (e *BlockEntity) integrate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.alive {
		e.pos = e.pos.Add(e.vel)
	}
}

// Kill removes the entity from the world. Killing twice is a no-op.
func (e *BlockEntity) Kill(tx *Tx) {
	tx.check()
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.alive {
		return
	}
	e.alive = false
	e.vel = mgl64.Vec3{}
	delete(tx.w.entities, e.id)
}

// Respawn recreates the entity's visual representation under a new id,
// keeping its position, velocity and block data.
func (e *BlockEntity) Respawn(tx *Tx) {
	tx.check()
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.alive {
		return
	}
	delete(tx.w.entities, e.id)
	e.id = tx.w.nextEntity.Add(1)
	tx.w.entities[e.id] = e
	e.respawns++
}

// CanRotate reports whether the carried block has a facing.
func (e *BlockEntity) CanRotate() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.data.CanRotate()
}

// Rotate turns the carried block's facing. It reports false when the block
// cannot rotate.
func (e *BlockEntity) Rotate(t geom.Turn) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.data.CanRotate() {
		return false
	}
	e.data = e.data.Rotated(t)
	return true
}

// Place writes the carried block into the world at p.
func (e *BlockEntity) Place(tx *Tx, p geom.Vec3i) error {
	tx.check()
	return tx.SetBlock(p, e.Data())
}
