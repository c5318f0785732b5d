package animation

import (
	"fmt"
	"log"
	"sync"
)

// Hook is an extension point attached to one animation. A hook implements any
// subset of the callback interfaces below; missing callbacks are skipped.
type Hook interface {
	Name() string
}

type PrepareHook interface {
	OnPrepare(a *Animation)
}

type AbortedHook interface {
	OnAnimationAborted(a *Animation)
}

type EndingHook interface {
	OnAnimationEnding(a *Animation)
}

type PreStepHook interface {
	OnPreAnimationStep(a *Animation)
}

type PostStepHook interface {
	OnPostAnimationStep(a *Animation)
}

type CompletedHook interface {
	OnAnimationCompleted(a *Animation)
}

// HookFactory creates a hook for one animation. It may return nil to opt out.
type HookFactory func(a *Animation) Hook

// HookManager keeps hook factories in registration order.
type HookManager struct {
	log *log.Logger

	mu        sync.RWMutex
	factories []HookFactory
}

func NewHookManager(logger *log.Logger) *HookManager {
	if logger == nil {
		logger = log.Default()
	}
	return &HookManager{log: logger}
}

func (m *HookManager) Register(f HookFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories = append(m.factories, f)
}

// Instantiate creates this animation's hooks in registration order. A factory
// that panics is logged and skipped.
func (m *HookManager) Instantiate(a *Animation) []Hook {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	factories := append([]HookFactory(nil), m.factories...)
	m.mu.RUnlock()

	hooks := make([]Hook, 0, len(factories))
	for i, f := range factories {
		h := m.instantiate(i, f, a)
		if h != nil {
			hooks = append(hooks, h)
		}
	}
	return hooks
}

func (m *HookManager) instantiate(i int, f HookFactory, a *Animation) (h Hook) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Printf("hook factory %d failed for animation %s: %v", i, a.ID(), r)
			h = nil
		}
	}()
	return f(a)
}

type hookSite string

const (
	sitePrepare   hookSite = "prepare"
	siteAborted   hookSite = "aborted"
	siteEnding    hookSite = "ending"
	sitePreStep   hookSite = "pre-step"
	sitePostStep  hookSite = "post-step"
	siteCompleted hookSite = "completed"
)

// call runs one hook callback and contains any panic it raises.
func (site hookSite) call(logger *log.Logger, h Hook, a *Animation) {
	defer func() {
		if r := recover(); r != nil {
			logger.Printf("hook %s failed at %s of animation %s: %v", hookName(h), site, a.ID(), r)
		}
	}()
	switch site {
	case sitePrepare:
		if cb, ok := h.(PrepareHook); ok {
			cb.OnPrepare(a)
		}
	case siteAborted:
		if cb, ok := h.(AbortedHook); ok {
			cb.OnAnimationAborted(a)
		}
	case siteEnding:
		if cb, ok := h.(EndingHook); ok {
			cb.OnAnimationEnding(a)
		}
	case sitePreStep:
		if cb, ok := h.(PreStepHook); ok {
			cb.OnPreAnimationStep(a)
		}
	case sitePostStep:
		if cb, ok := h.(PostStepHook); ok {
			cb.OnPostAnimationStep(a)
		}
	case siteCompleted:
		if cb, ok := h.(CompletedHook); ok {
			cb.OnAnimationCompleted(a)
		}
	}
}

func hookName(h Hook) (name string) {
	defer func() {
		if recover() != nil {
			name = fmt.Sprintf("%T", h)
		}
	}()
	return h.Name()
}
