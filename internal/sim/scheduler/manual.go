package scheduler

import (
	"sync"
	"time"
)

// Manual is a deterministic stand-in for Scheduler. Nothing runs until the
// owner calls Step or RunDelayed; delays and periods are recorded but ignored.
type Manual struct {
	mu        sync.Mutex
	repeating []*manualTask
	delayed   []*manualTask
}

type manualTask struct {
	task
	fn           func()
	initialDelay time.Duration
	period       time.Duration
}

func NewManual() *Manual { return &Manual{} }

func (m *Manual) RunRepeating(fn func(), initialDelay, period time.Duration) Task {
	t := &manualTask{task: task{cancel: make(chan struct{})}, fn: fn, initialDelay: initialDelay, period: period}
	m.mu.Lock()
	m.repeating = append(m.repeating, t)
	m.mu.Unlock()
	return t
}

func (m *Manual) RunLater(fn func(), delay time.Duration) Task {
	t := &manualTask{task: task{cancel: make(chan struct{})}, fn: fn, initialDelay: delay}
	m.mu.Lock()
	m.delayed = append(m.delayed, t)
	m.mu.Unlock()
	return t
}

// Step runs every live repeating task once, in registration order, and
// returns how many ran.
func (m *Manual) Step() int {
	m.mu.Lock()
	live := m.repeating[:0]
	for _, t := range m.repeating {
		if !t.Cancelled() {
			live = append(live, t)
		}
	}
	m.repeating = live
	run := append([]*manualTask(nil), live...)
	m.mu.Unlock()

	n := 0
	for _, t := range run {
		if t.Cancelled() {
			continue
		}
		t.fn()
		n++
	}
	return n
}

// RunDelayed runs and forgets every pending one-shot task.
func (m *Manual) RunDelayed() int {
	m.mu.Lock()
	run := m.delayed
	m.delayed = nil
	m.mu.Unlock()

	n := 0
	for _, t := range run {
		if t.Cancelled() {
			continue
		}
		t.fn()
		n++
	}
	return n
}

// Live returns the number of repeating tasks that have not been cancelled.
func (m *Manual) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.repeating {
		if !t.Cancelled() {
			n++
		}
	}
	return n
}

// LastInitialDelay returns the initial delay of the most recently registered
// repeating task.
func (m *Manual) LastInitialDelay() (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.repeating) == 0 {
		return 0, false
	}
	return m.repeating[len(m.repeating)-1].initialDelay, true
}
