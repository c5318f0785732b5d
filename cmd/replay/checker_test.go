package main

import (
	"strings"
	"testing"

	persistlog "github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/persistence/log"
)

func ev(id, event string, step int) persistlog.AnimationEvent {
	return persistlog.AnimationEvent{AnimationID: id, StructureID: "s-" + id, Event: event, Step: step, Duration: 10}
}

func TestReplay_FileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := persistlog.NewJSONLZstdWriter(dir, "animations")
	for _, e := range []persistlog.AnimationEvent{
		ev("a", persistlog.EventPrepare, 0),
		ev("b", persistlog.EventPrepare, 0),
		ev("a", persistlog.EventStep, 4),
		ev("a", persistlog.EventEnding, 12),
		ev("b", persistlog.EventAborted, 1),
		ev("a", persistlog.EventCompleted, 12),
		ev("c", persistlog.EventPrepare, 0),
	} {
		if err := w.Write(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := listEventFiles(dir)
	if err != nil || len(files) == 0 {
		t.Fatalf("files=%v err=%v", files, err)
	}
	c := newChecker("")
	var finished []string
	c.onFinished = func(r *record) { finished = append(finished, r.id+":"+r.terminal) }
	for _, path := range files {
		if err := replayFile(c, path); err != nil {
			t.Fatalf("replay: %v", err)
		}
	}
	s := c.summary()
	if s.Events != 7 || s.Animations != 3 || s.Completed != 1 || s.Aborted != 1 || s.Open != 1 {
		t.Fatalf("summary=%+v", s)
	}
	if strings.Join(finished, ",") != "b:aborted,a:completed" {
		t.Fatalf("finished=%v", finished)
	}
}

func TestChecker_Violations(t *testing.T) {
	cases := []struct {
		name   string
		events []persistlog.AnimationEvent
		want   string
	}{
		{"no prepare", []persistlog.AnimationEvent{ev("a", persistlog.EventStep, 1)}, "want prepare"},
		{"step back", []persistlog.AnimationEvent{ev("a", persistlog.EventPrepare, 0), ev("a", persistlog.EventStep, 5), ev("a", persistlog.EventStep, 3)}, "went back"},
		{"complete w/o ending", []persistlog.AnimationEvent{ev("a", persistlog.EventPrepare, 0), ev("a", persistlog.EventCompleted, 10)}, "without ending"},
		{"after terminal", []persistlog.AnimationEvent{ev("a", persistlog.EventPrepare, 0), ev("a", persistlog.EventAborted, 0), ev("a", persistlog.EventStep, 1)}, "after aborted"},
	}
	for _, tc := range cases {
		c := newChecker("")
		var err error
		for _, e := range tc.events {
			if err = c.add(e); err != nil {
				break
			}
		}
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: err=%v want %q", tc.name, err, tc.want)
		}
	}
}

func TestChecker_StructureFilter(t *testing.T) {
	c := newChecker("s-b")
	if err := c.add(ev("a", persistlog.EventStep, 1)); err != nil {
		t.Fatalf("filtered event must be ignored: %v", err)
	}
	if s := c.summary(); s.Events != 0 {
		t.Fatalf("summary=%+v", s)
	}
}
