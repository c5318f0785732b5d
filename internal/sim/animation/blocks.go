package animation

import (
	"fmt"
	"log"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/geom"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/structure"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/world"
)

// AnimatedBlock is the visual stand-in for one block position. Movement may
// happen on any goroutine; Kill, Respawn and Place need the main context.
type AnimatedBlock interface {
	StartPosition() mgl64.Vec3
	FinalPosition() mgl64.Vec3
	Position() mgl64.Vec3
	// OnEdge reports whether the block touches a face of the structure's cuboid.
	OnEdge() bool
	Alive() bool

	Teleport(pos mgl64.Vec3) bool
	SetVelocity(v mgl64.Vec3)

	Kill(tx *world.Tx)
	Respawn(tx *world.Tx)
	// Place writes the carried block into the world at p.
	Place(tx *world.Tx, p geom.Vec3i) error

	CanRotate() bool
	Rotate(t geom.Turn) bool
}

// BlockFactory creates animated blocks. It declines (ok == false) cells that
// hold nothing that may be animated.
type BlockFactory interface {
	Spawn(tx *world.Tx, spec world.SpawnSpec) (b AnimatedBlock, ok bool, err error)
}

// WorldFactory spawns world.BlockEntity instances.
type WorldFactory struct{}

func (WorldFactory) Spawn(tx *world.Tx, spec world.SpawnSpec) (AnimatedBlock, bool, error) {
	e, ok, err := tx.SpawnAnimatedBlock(spec)
	if err != nil || !ok {
		return nil, false, err
	}
	return e, true, nil
}

// BlockManager owns the live animated blocks of one animation.
type BlockManager interface {
	// CreateAnimatedBlocks replaces the structure's blocks with animated
	// blocks. On error, blocks created so far stay registered so
	// RestoreBlocksOnFailure can clean them up.
	CreateAnimatedBlocks(tx *world.Tx, snap structure.Snapshot, geo Geometry) error
	// RestoreBlocksOnFailure kills every animated block and puts its block
	// back where it started.
	RestoreBlocksOnFailure(tx *world.Tx)
	// HandleAnimationCompletion kills every animated block and places its
	// block at its final position.
	HandleAnimationCompletion(tx *world.Tx)
	AnimatedBlocks() []AnimatedBlock
}

type blockSet struct {
	factory BlockFactory
	log     *log.Logger

	mu     sync.Mutex
	blocks []AnimatedBlock
}

func (s *blockSet) AnimatedBlocks() []AnimatedBlock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AnimatedBlock(nil), s.blocks...)
}

func (s *blockSet) register(blocks []AnimatedBlock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = append(s.blocks, blocks...)
}

// takeAll empties the live set and returns what it held.
func (s *blockSet) takeAll() []AnimatedBlock {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.blocks
	s.blocks = nil
	return out
}

// scan walks the cuboid X ascending, Y descending, Z ascending and spawns an
// animated block for every cell the factory accepts. Blocks created before an
// error are registered anyway.
func (s *blockSet) scan(tx *world.Tx, snap structure.Snapshot, geo Geometry, marker bool) (interior, edge []geom.Vec3i, err error) {
	c := snap.Cuboid
	var created []AnimatedBlock
	defer func() { s.register(created) }()

	for x := c.Min.X; x <= c.Max.X; x++ {
		for y := c.Max.Y; y >= c.Min.Y; y-- {
			for z := c.Min.Z; z <= c.Max.Z; z++ {
				p := geom.Vec3i{X: x, Y: y, Z: z}
				onEdge := c.OnEdge(p)
				b, ok, err := s.factory.Spawn(tx, world.SpawnSpec{
					Pos:        p,
					Final:      geo.FinalPosition(p),
					Radius:     geo.Radius(p),
					StartAngle: geo.StartAngle(p),
					OnEdge:     onEdge,
					Marker:     marker,
				})
				if err != nil {
					return interior, edge, fmt.Errorf("spawn animated block at %s: %w", p, err)
				}
				if !ok {
					continue
				}
				created = append(created, b)
				if onEdge {
					edge = append(edge, p)
				} else {
					interior = append(interior, p)
				}
			}
		}
	}
	return interior, edge, nil
}

// MovingBlockManager replaces real blocks with animated blocks and puts them
// back into the world when the animation ends.
type MovingBlockManager struct {
	blockSet
}

func NewMovingBlockManager(factory BlockFactory, logger *log.Logger) *MovingBlockManager {
	if logger == nil {
		logger = log.Default()
	}
	return &MovingBlockManager{blockSet{factory: factory, log: logger}}
}

func (m *MovingBlockManager) CreateAnimatedBlocks(tx *world.Tx, snap structure.Snapshot, geo Geometry) error {
	interior, edge, err := m.scan(tx, snap, geo, false)
	if err != nil {
		return err
	}
	// Interior blocks go first: edge blocks are the ones other blocks hang on.
	for _, pass := range [][]geom.Vec3i{interior, edge} {
		for _, p := range pass {
			if err := tx.RemoveBlock(p); err != nil {
				m.log.Printf("remove original block at %s: %v", p, err)
			}
		}
	}
	return nil
}

func (m *MovingBlockManager) RestoreBlocksOnFailure(tx *world.Tx) {
	for _, b := range m.takeAll() {
		b.Kill(tx)
		p := geom.Round(b.StartPosition())
		if err := b.Place(tx, p); err != nil {
			m.log.Printf("restore block at %s: %v", p, err)
		}
	}
}

func (m *MovingBlockManager) HandleAnimationCompletion(tx *world.Tx) {
	for _, b := range m.takeAll() {
		b.Kill(tx)
		p := geom.Round(b.FinalPosition())
		if err := b.Place(tx, p); err != nil {
			m.log.Printf("place block at %s: %v", p, err)
		}
	}
}

// PreviewBlockManager spawns cosmetic markers. The world's blocks are never
// touched; ending the animation only kills the markers.
type PreviewBlockManager struct {
	blockSet
}

func NewPreviewBlockManager(factory BlockFactory, logger *log.Logger) *PreviewBlockManager {
	if logger == nil {
		logger = log.Default()
	}
	return &PreviewBlockManager{blockSet{factory: factory, log: logger}}
}

func (m *PreviewBlockManager) CreateAnimatedBlocks(tx *world.Tx, snap structure.Snapshot, geo Geometry) error {
	_, _, err := m.scan(tx, snap, geo, true)
	return err
}

func (m *PreviewBlockManager) RestoreBlocksOnFailure(tx *world.Tx) { m.killAll(tx) }

func (m *PreviewBlockManager) HandleAnimationCompletion(tx *world.Tx) { m.killAll(tx) }

func (m *PreviewBlockManager) killAll(tx *world.Tx) {
	for _, b := range m.takeAll() {
		b.Kill(tx)
	}
}

// NewBlockManager picks the manager variant for an animation type.
func NewBlockManager(t Type, factory BlockFactory, logger *log.Logger) BlockManager {
	if t == Preview {
		return NewPreviewBlockManager(factory, logger)
	}
	return NewMovingBlockManager(factory, logger)
}
