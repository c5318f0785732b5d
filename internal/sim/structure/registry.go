package structure

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is the set of known structures by id.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]*Structure
}

func NewRegistry() *Registry { return &Registry{byID: map[string]*Structure{}} }

func (r *Registry) Add(s *Structure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[s.ID()]; ok {
		return fmt.Errorf("structure %s already registered", s.ID())
	}
	r.byID[s.ID()] = s
	return nil
}

func (r *Registry) Get(id string) (*Structure, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

// All returns every structure sorted by id.
func (r *Registry) All() []*Structure {
	r.mu.RLock()
	out := make([]*Structure, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
