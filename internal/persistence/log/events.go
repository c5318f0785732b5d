package log

import (
	stdlog "log"
	"path/filepath"
	"time"

	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/animation"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/geom"
)

// AnimationEvent is one line of the animation event log.
type AnimationEvent struct {
	Time        time.Time   `json:"time"`
	AnimationID string      `json:"animation_id"`
	StructureID string      `json:"structure_id"`
	Structure   string      `json:"structure_type"`
	Type        string      `json:"type"`
	Event       string      `json:"event"`
	State       string      `json:"state"`
	Step        int         `json:"step"`
	Duration    int         `json:"duration"`
	Region      geom.Cuboid `json:"region"`
}

// Event names.
const (
	EventPrepare   = "prepare"
	EventStep      = "step"
	EventEnding    = "ending"
	EventCompleted = "completed"
	EventAborted   = "aborted"
)

// EventLogger writes animation lifecycle events (compressed).
type EventLogger struct {
	w *JSONLZstdWriter
	// StepEvery logs every n-th step. Zero logs no steps.
	StepEvery int
	Log       *stdlog.Logger
}

func NewEventLogger(dataDir string) *EventLogger {
	return &EventLogger{
		w:   NewJSONLZstdWriter(filepath.Join(dataDir, "events"), "animations"),
		Log: stdlog.Default(),
	}
}

func (l *EventLogger) Close() error { return l.w.Close() }

// Hook returns the hook factory that feeds this logger.
func (l *EventLogger) Hook() animation.HookFactory {
	return func(*animation.Animation) animation.Hook { return eventHook{l} }
}

func (l *EventLogger) write(a *animation.Animation, event string) {
	ev := AnimationEvent{
		Time:        time.Now().UTC(),
		AnimationID: a.ID(),
		StructureID: a.Snapshot().ID,
		Structure:   a.StructureType(),
		Type:        a.Type().String(),
		Event:       event,
		State:       a.State().String(),
		Step:        a.StepsExecuted(),
		Duration:    a.Duration(),
		Region:      a.Region(),
	}
	if err := l.w.Write(ev); err != nil {
		l.Log.Printf("animation event log: %v", err)
	}
}

type eventHook struct{ l *EventLogger }

func (eventHook) Name() string { return "event-log" }

func (h eventHook) OnPrepare(a *animation.Animation)            { h.l.write(a, EventPrepare) }
func (h eventHook) OnAnimationEnding(a *animation.Animation)    { h.l.write(a, EventEnding) }
func (h eventHook) OnAnimationCompleted(a *animation.Animation) { h.l.write(a, EventCompleted) }
func (h eventHook) OnAnimationAborted(a *animation.Animation)   { h.l.write(a, EventAborted) }

func (h eventHook) OnPostAnimationStep(a *animation.Animation) {
	if n := h.l.StepEvery; n > 0 && a.StepsExecuted()%n == 0 {
		h.l.write(a, EventStep)
	}
}
