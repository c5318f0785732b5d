package structure

import (
	"fmt"
	"strings"
	"sync"

	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/geom"
)

// Snapshot is an immutable copy of a structure's data. It is the ground truth
// for every geometry calculation of one animation.
type Snapshot struct {
	ID        string      `yaml:"id" json:"id"`
	Name      string      `yaml:"name" json:"name"`
	Type      string      `yaml:"type" json:"type"`
	Cuboid    geom.Cuboid `yaml:"cuboid" json:"cuboid"`
	Pivot     geom.Vec3i  `yaml:"pivot" json:"pivot"`
	Axis      string      `yaml:"axis,omitempty" json:"axis,omitempty"`
	Direction int         `yaml:"direction,omitempty" json:"direction,omitempty"`
	Distance  int         `yaml:"distance,omitempty" json:"distance,omitempty"`
	Open      bool        `yaml:"open" json:"open"`
	Perpetual bool        `yaml:"perpetual,omitempty" json:"perpetual,omitempty"`
	// PowerBlock is the block whose presence means "powered". Empty when the
	// structure is not power-driven.
	PowerBlock *geom.Vec3i `yaml:"power_block,omitempty" json:"power_block,omitempty"`
}

func (s Snapshot) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("structure: empty id")
	}
	if strings.TrimSpace(s.Type) == "" {
		return fmt.Errorf("structure %s: empty type", s.ID)
	}
	if s.Cuboid != geom.NewCuboid(s.Cuboid.Min, s.Cuboid.Max) {
		return fmt.Errorf("structure %s: cuboid min > max", s.ID)
	}
	if _, err := geom.ParseAxis(s.Axis); err != nil {
		return fmt.Errorf("structure %s: %w", s.ID, err)
	}
	return nil
}

// Structure is the live, shared record of one animatable structure. Readers
// take snapshots; the final commit of an animation takes the write lock.
type Structure struct {
	mu   sync.RWMutex
	data Snapshot
}

func New(s Snapshot) (*Structure, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &Structure{data: s}, nil
}

func (s *Structure) ID() string { return s.data.ID }

func (s *Structure) Type() string { return s.data.Type }

func (s *Structure) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.data
	if s.data.PowerBlock != nil {
		p := *s.data.PowerBlock
		out.PowerBlock = &p
	}
	return out
}

func (s *Structure) Cuboid() geom.Cuboid {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Cuboid
}

func (s *Structure) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Open
}

// IsPerpetualMover reports whether the structure keeps moving until stopped.
func (s *Structure) IsPerpetualMover() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Perpetual
}

// CommitToggle flips the open state and moves the structure to cuboid under
// the write lock, returning the committed snapshot.
func (s *Structure) CommitToggle(cuboid geom.Cuboid) Snapshot {
	s.mu.Lock()
	s.data.Open = !s.data.Open
	s.data.Cuboid = cuboid
	s.mu.Unlock()
	return s.Snapshot()
}

// Store persists structure state.
type Store interface {
	SaveStructure(s Snapshot) error
	LoadStructures() ([]Snapshot, error)
}
