package log

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/animation"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/geom"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/geometry"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/structure"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/world"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/worldtest"
)

func TestEventLogger_RecordsLifecycle(t *testing.T) {
	dir := t.TempDir()
	l := NewEventLogger(dir)
	now := time.Date(2026, 5, 6, 7, 0, 0, 0, time.UTC)
	l.w.now = func() time.Time { return now }
	l.StepEvery = 2

	h := worldtest.New(t, world.WorldConfig{})
	snap := structure.Snapshot{
		ID:     "gate",
		Type:   geometry.Portcullis,
		Cuboid: geom.NewCuboid(geom.Vec3i{}, geom.Vec3i{X: 1, Y: 1}),
	}
	h.Fill(snap.Cuboid, worldtest.Stone)
	s, err := structure.New(snap)
	if err != nil {
		t.Fatalf("structure: %v", err)
	}
	strategy, err := geometry.ForStructure(snap)
	if err != nil {
		t.Fatalf("geometry: %v", err)
	}
	hooks := animation.NewHookManager(h.Logger())
	hooks.Register(l.Hook())
	a, err := animation.NewAnimator(s, animation.Request{
		Type:      animation.MoveBlocks,
		Time:      200 * time.Millisecond,
		NewCuboid: strategy.NewCuboid(),
	}, strategy, animation.NewBlockManager(animation.MoveBlocks, animation.WorldFactory{}, h.Logger()), animation.Env{
		Main:      h.W,
		Scheduler: h.Sched,
		Hooks:     hooks,
		Timing:    animation.Timing{Tick: 50 * time.Millisecond, MoveBlocksCap: time.Minute},
		Log:       h.Logger(),
	})
	if err != nil {
		t.Fatalf("animator: %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.Sync()
	h.Ticks(a.StopCount() + 1)
	h.Wait(a.Done(), "completion")
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	lines := readLines(t, filepath.Join(dir, "events", "animations-2026-05-06-07.jsonl.zst"))
	var events []string
	for _, m := range lines {
		events = append(events, m["event"].(string))
		if m["structure_id"] != "gate" || m["structure_type"] != geometry.Portcullis {
			t.Fatalf("unexpected line %v", m)
		}
	}
	if events[0] != EventPrepare {
		t.Fatalf("first event %q", events[0])
	}
	n := len(events)
	if events[n-2] != EventEnding || events[n-1] != EventCompleted {
		t.Fatalf("last events %v", events[n-2:])
	}
	steps := 0
	for _, e := range events {
		if e == EventStep {
			steps++
		}
	}
	// Steps 1..StopCount+1 are executed; every second one is logged.
	if want := (a.StopCount() + 1) / 2; steps != want {
		t.Fatalf("step events=%d want %d", steps, want)
	}
}
