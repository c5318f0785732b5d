package activity

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/animation"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/geom"
)

var (
	ErrStructureBusy  = errors.New("structure is already animating")
	ErrRegionOccupied = errors.New("region overlaps an active animation")
)

// Registry tracks the animations currently running, one per structure.
type Registry struct {
	log *log.Logger

	mu         sync.Mutex
	active     map[string]*animation.Animator
	onFinished []func(a *animation.Animator)
}

func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{log: logger, active: map[string]*animation.Animator{}}
}

// OnFinished registers fn to run after every finished animation.
func (r *Registry) OnFinished(fn func(a *animation.Animator)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFinished = append(r.onFinished, fn)
}

// Register claims a's structure. It fails when the structure already animates
// or when a's current or target cuboid overlaps the swept region or target
// cuboid of another running animation.
func (r *Registry) Register(a *animation.Animator) error {
	id := a.Snapshot().ID
	claims := []geom.Cuboid{a.Snapshot().Cuboid, a.Request().NewCuboid}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[id]; ok {
		return fmt.Errorf("%s: %w", id, ErrStructureBusy)
	}
	for otherID, other := range r.active {
		for _, taken := range []geom.Cuboid{other.Region(), other.Request().NewCuboid} {
			for _, c := range claims {
				if c.Overlaps(taken) {
					return fmt.Errorf("%s overlaps %s at %s: %w", id, otherID, taken, ErrRegionOccupied)
				}
			}
		}
	}
	r.active[id] = a
	return nil
}

// ProcessFinishedAnimation releases a's structure.
func (r *Registry) ProcessFinishedAnimation(a *animation.Animator) {
	id := a.Snapshot().ID
	r.mu.Lock()
	if cur, ok := r.active[id]; ok && cur == a {
		delete(r.active, id)
	}
	listeners := append([]func(*animation.Animator){}, r.onFinished...)
	r.mu.Unlock()

	r.log.Printf("animation of %s finished: state=%s steps=%d", id, a.State(), a.StepsExecuted())
	for _, fn := range listeners {
		fn(a)
	}
}

func (r *Registry) Get(structureID string) (*animation.Animator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.active[structureID]
	return a, ok
}

func (r *Registry) IsBusy(structureID string) bool {
	_, ok := r.Get(structureID)
	return ok
}

// Active returns the running animations sorted by structure id.
func (r *Registry) Active() []*animation.Animator {
	r.mu.Lock()
	out := make([]*animation.Animator, 0, len(r.active))
	for _, a := range r.active {
		out = append(out, a)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Snapshot().ID < out[j].Snapshot().ID })
	return out
}

// Stop gracefully stops a running animation of the structure.
func (r *Registry) Stop(structureID string) bool {
	a, ok := r.Get(structureID)
	if ok {
		a.Stop()
	}
	return ok
}

// AbortAll aborts every running animation, e.g. on shutdown.
func (r *Registry) AbortAll() []*animation.Animator {
	all := r.Active()
	for _, a := range all {
		a.Abort()
	}
	return all
}
