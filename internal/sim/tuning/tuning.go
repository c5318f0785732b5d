package tuning

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrEmptyFile is returned for a tuning file without content, as seen while
// an editor truncates it before writing.
var ErrEmptyFile = errors.New("tuning.yaml: empty file")

type Tuning struct {
	TickDurationMs int `yaml:"tick_duration_ms"`
	WorldBoundaryR int `yaml:"world_boundary_r"`
	WorldMinY      int `yaml:"world_min_y"`
	WorldMaxY      int `yaml:"world_max_y"`

	Animation AnimationTuning `yaml:"animation"`
	Observer  ObserverTuning  `yaml:"observer"`
}

type AnimationTuning struct {
	// Delay between spawning the animated blocks and the first tick.
	InitialDelayMs int `yaml:"initial_delay_ms"`
	// Delay before a finished structure re-checks its power state.
	PowerRecheckDelayMs int `yaml:"power_recheck_delay_ms"`
	// Time used when a toggle does not ask for a specific duration.
	DefaultTimeMs int `yaml:"default_time_ms"`

	MoveBlocksMaxMs int  `yaml:"move_blocks_max_ms"`
	PreviewMaxMs    int  `yaml:"preview_max_ms"`
	AllowPerpetual  bool `yaml:"allow_perpetual"`
}

type ObserverTuning struct {
	IntervalMs int `yaml:"interval_ms"`
}

func Defaults() Tuning {
	return Tuning{
		TickDurationMs: 50,
		WorldBoundaryR: 30000,
		WorldMinY:      -64,
		WorldMaxY:      320,
		Animation: AnimationTuning{
			InitialDelayMs:      250,
			PowerRecheckDelayMs: 1000,
			DefaultTimeMs:       4000,
			MoveBlocksMaxMs:     60000,
			PreviewMaxMs:        10000,
			AllowPerpetual:      true,
		},
		Observer: ObserverTuning{IntervalMs: 200},
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return t, ErrEmptyFile
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickDurationMs <= 0 {
		return fmt.Errorf("tick_duration_ms must be > 0")
	}
	if t.WorldMinY > t.WorldMaxY {
		return fmt.Errorf("world_min_y > world_max_y")
	}
	a := t.Animation
	if a.InitialDelayMs < 0 || a.PowerRecheckDelayMs < 0 || a.DefaultTimeMs < 0 {
		return fmt.Errorf("animation delays must be >= 0")
	}
	if a.MoveBlocksMaxMs <= 0 || a.PreviewMaxMs <= 0 {
		return fmt.Errorf("animation caps must be > 0")
	}
	return nil
}

func (t Tuning) TickDuration() time.Duration {
	return time.Duration(t.TickDurationMs) * time.Millisecond
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func (a AnimationTuning) InitialDelay() time.Duration      { return ms(a.InitialDelayMs) }
func (a AnimationTuning) PowerRecheckDelay() time.Duration { return ms(a.PowerRecheckDelayMs) }
func (a AnimationTuning) DefaultTime() time.Duration       { return ms(a.DefaultTimeMs) }
func (o ObserverTuning) Interval() time.Duration           { return ms(o.IntervalMs) }
