package tuning

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_OverridesDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := "tick_duration_ms: 25\nanimation:\n  preview_max_ms: 3000\n"
	if err := os.WriteFile(p, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.TickDuration() != 25*time.Millisecond {
		t.Fatalf("tick=%v want 25ms", got.TickDuration())
	}
	if got.Animation.PreviewMaxMs != 3000 {
		t.Fatalf("preview_max_ms=%d want 3000", got.Animation.PreviewMaxMs)
	}
	// Untouched keys keep their defaults.
	if got.Animation.InitialDelayMs != Defaults().Animation.InitialDelayMs {
		t.Fatalf("initial_delay_ms=%d want default", got.Animation.InitialDelayMs)
	}
}

func TestLoad_RejectsZeroTick(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("tick_duration_ms: 0\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(p); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("tick_duration_ms: 50\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan Tuning, 4)
	go func() { _ = Watch(ctx, p, log.New(io.Discard, "", 0), func(t Tuning) { got <- t }) }()

	// The watcher may not be registered yet; keep rewriting until it notices.
	// Every rewrite passes through an empty file, which must never be
	// reported.
	deadline := time.After(5 * time.Second)
	for {
		if err := os.WriteFile(p, nil, 0o644); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		if err := os.WriteFile(p, []byte("tick_duration_ms: 40\n"), 0o644); err != nil {
			t.Fatalf("rewrite: %v", err)
		}
		select {
		case tu := <-got:
			if tu.TickDurationMs != 40 {
				t.Fatalf("tick_duration_ms=%d want 40", tu.TickDurationMs)
			}
			return
		case <-time.After(4 * reloadDelay):
		case <-deadline:
			t.Fatalf("watcher never reloaded")
		}
	}
}

func TestLoad_RejectsEmptyFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte("  \n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(p); !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("err=%v want ErrEmptyFile", err)
	}
}
