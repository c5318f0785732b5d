package scheduler

import (
	"log"
	"runtime/debug"
	"sync"
	"time"
)

// Task is a handle to scheduled work.
type Task interface {
	// Cancel stops future runs. A run already in progress completes.
	// Cancelling twice is a no-op.
	Cancel()
	Cancelled() bool
}

// Scheduler runs tasks on worker goroutines.
type Scheduler struct {
	log *log.Logger

	wg        sync.WaitGroup
	closing   chan struct{}
	closeOnce sync.Once
}

func New(logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{log: logger, closing: make(chan struct{})}
}

type task struct {
	cancel chan struct{}
	once   sync.Once
}

func newTask() *task { return &task{cancel: make(chan struct{})} }

func (t *task) Cancel() { t.once.Do(func() { close(t.cancel) }) }

func (t *task) Cancelled() bool {
	select {
	case <-t.cancel:
		return true
	default:
		return false
	}
}

// RunRepeating runs fn on a worker after initialDelay and then every period
// until the task is cancelled or the scheduler closes. Runs never overlap.
func (s *Scheduler) RunRepeating(fn func(), initialDelay, period time.Duration) Task {
	t := newTask()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if !s.wait(t, initialDelay) {
			return
		}
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			s.runSafe(fn)
			select {
			case <-ticker.C:
				if t.Cancelled() {
					return
				}
			case <-t.cancel:
				return
			case <-s.closing:
				return
			}
		}
	}()
	return t
}

// RunLater runs fn once on a worker after delay unless cancelled first.
func (s *Scheduler) RunLater(fn func(), delay time.Duration) Task {
	t := newTask()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if s.wait(t, delay) {
			s.runSafe(fn)
		}
	}()
	return t
}

// Close cancels every pending task and waits for running ones to return.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() { close(s.closing) })
	s.wg.Wait()
}

func (s *Scheduler) wait(t *task, d time.Duration) bool {
	if d <= 0 {
		return !t.Cancelled()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return !t.Cancelled()
	case <-t.cancel:
		return false
	case <-s.closing:
		return false
	}
}

func (s *Scheduler) runSafe(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Printf("scheduled task panicked: %v\n%s", r, debug.Stack())
		}
	}()
	fn()
}
