package main

import (
	"fmt"

	persistlog "github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/persistence/log"
)

// record is what the checker knows about one animation.
type record struct {
	id          string
	structureID string
	duration    int
	lastStep    int
	ending      bool
	terminal    string
}

type summary struct {
	Events     int
	Animations int
	Completed  int
	Aborted    int
	Open       int
}

// checker verifies the lifecycle of every animation in an event log: it
// starts with prepare, its steps never go back, completion follows ending,
// and nothing is logged after the terminal event.
type checker struct {
	structureID string
	byID        map[string]*record
	events      int
	onFinished  func(r *record)
}

func newChecker(structureID string) *checker {
	return &checker{structureID: structureID, byID: map[string]*record{}}
}

func (c *checker) add(ev persistlog.AnimationEvent) error {
	if c.structureID != "" && ev.StructureID != c.structureID {
		return nil
	}
	c.events++
	r, ok := c.byID[ev.AnimationID]
	if !ok {
		if ev.Event != persistlog.EventPrepare {
			return fmt.Errorf("animation %s (%s): first event is %s, want prepare", ev.AnimationID, ev.StructureID, ev.Event)
		}
		c.byID[ev.AnimationID] = &record{id: ev.AnimationID, structureID: ev.StructureID, duration: ev.Duration}
		return nil
	}
	if r.terminal != "" {
		return fmt.Errorf("animation %s (%s): %s after %s", r.id, r.structureID, ev.Event, r.terminal)
	}
	if ev.Step < r.lastStep {
		return fmt.Errorf("animation %s (%s): step went back from %d to %d", r.id, r.structureID, r.lastStep, ev.Step)
	}
	r.lastStep = ev.Step

	switch ev.Event {
	case persistlog.EventPrepare:
		return fmt.Errorf("animation %s (%s): prepared twice", r.id, r.structureID)
	case persistlog.EventEnding:
		r.ending = true
	case persistlog.EventCompleted:
		if !r.ending {
			return fmt.Errorf("animation %s (%s): completed without ending", r.id, r.structureID)
		}
		r.terminal = ev.Event
	case persistlog.EventAborted:
		r.terminal = ev.Event
	}
	if r.terminal != "" && c.onFinished != nil {
		c.onFinished(r)
	}
	return nil
}

func (c *checker) summary() summary {
	s := summary{Events: c.events, Animations: len(c.byID)}
	for _, r := range c.byID {
		switch r.terminal {
		case persistlog.EventCompleted:
			s.Completed++
		case persistlog.EventAborted:
			s.Aborted++
		default:
			s.Open++
		}
	}
	return s
}
