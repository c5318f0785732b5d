package animation

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/geom"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/structure"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/world"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/worldtest"
)

const testTick = 50 * time.Millisecond

func testTiming() Timing {
	return Timing{
		Tick:              testTick,
		InitialDelay:      250 * time.Millisecond,
		PowerRecheckDelay: time.Second,
		MoveBlocksCap:     time.Minute,
		PreviewCap:        10 * time.Second,
		AllowPerpetual:    true,
	}
}

// lift moves every block straight up by dy blocks over the animation.
type lift struct {
	method MovementMethod
	dy     int

	mu    sync.Mutex
	steps [][2]int
}

func (g *lift) Radius(geom.Vec3i) float64             { return 0 }
func (g *lift) StartAngle(geom.Vec3i) float64         { return 0 }
func (g *lift) MovementMethod() MovementMethod        { return g.method }
func (g *lift) PrepareAnimation(*world.Tx, *Animator) {}

func (g *lift) FinalPosition(p geom.Vec3i) mgl64.Vec3 {
	return p.Add(geom.Vec3i{Y: g.dy}).Vec3()
}

func (g *lift) ExecuteAnimationStep(a *Animator, ticks, ticksRemaining int) {
	g.mu.Lock()
	g.steps = append(g.steps, [2]int{ticks, ticksRemaining})
	g.mu.Unlock()
	frac := 1.0
	if d := a.Duration(); d > 0 && ticks < d {
		frac = float64(ticks) / float64(d)
	}
	for _, b := range a.AnimatedBlocks() {
		a.ApplyMovement(b, b.StartPosition().Add(mgl64.Vec3{0, float64(g.dy) * frac, 0}), ticksRemaining)
	}
}

func (g *lift) recorded() [][2]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([][2]int(nil), g.steps...)
}

type events struct {
	mu  sync.Mutex
	log []string
}

func (e *events) add(s string) {
	e.mu.Lock()
	e.log = append(e.log, s)
	e.mu.Unlock()
}

func (e *events) all() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.log...)
}

func (e *events) count(s string) int {
	n := 0
	for _, v := range e.all() {
		if v == s {
			n++
		}
	}
	return n
}

// recordingHook implements every callback.
type recordingHook struct{ ev *events }

func (h recordingHook) Name() string                    { return "recording" }
func (h recordingHook) OnPrepare(*Animation)            { h.ev.add("prepare") }
func (h recordingHook) OnAnimationAborted(*Animation)   { h.ev.add("aborted") }
func (h recordingHook) OnAnimationEnding(*Animation)    { h.ev.add("ending") }
func (h recordingHook) OnPreAnimationStep(*Animation)   { h.ev.add("pre") }
func (h recordingHook) OnPostAnimationStep(*Animation)  { h.ev.add("post") }
func (h recordingHook) OnAnimationCompleted(*Animation) { h.ev.add("completed") }

type panickingHook struct{}

func (panickingHook) Name() string                    { panic("name") }
func (panickingHook) OnPrepare(*Animation)            { panic("prepare") }
func (panickingHook) OnAnimationAborted(*Animation)   { panic("aborted") }
func (panickingHook) OnAnimationEnding(*Animation)    { panic("ending") }
func (panickingHook) OnPreAnimationStep(*Animation)   { panic("pre") }
func (panickingHook) OnPostAnimationStep(*Animation)  { panic("post") }
func (panickingHook) OnAnimationCompleted(*Animation) { panic("completed") }

type finishedLog struct {
	mu    sync.Mutex
	calls []*Animator
}

func (f *finishedLog) ProcessFinishedAnimation(a *Animator) {
	f.mu.Lock()
	f.calls = append(f.calls, a)
	f.mu.Unlock()
}

func (f *finishedLog) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type powerLog struct {
	mu  sync.Mutex
	ids []string
}

func (p *powerLog) VerifyPowerState(id string) {
	p.mu.Lock()
	p.ids = append(p.ids, id)
	p.mu.Unlock()
}

// failingFactory errors on spawn number failAt (1-based).
type failingFactory struct {
	failAt int
	n      int
}

func (f *failingFactory) Spawn(tx *world.Tx, spec world.SpawnSpec) (AnimatedBlock, bool, error) {
	f.n++
	if f.n == f.failAt {
		return nil, false, fmt.Errorf("spawn %d refused", f.n)
	}
	return WorldFactory{}.Spawn(tx, spec)
}

type fixture struct {
	h        *worldtest.Harness
	s        *structure.Structure
	geo      *lift
	ev       *events
	finished *finishedLog
	power    *powerLog
	env      Env
}

// column is the two-block stone pillar most tests animate.
var column = geom.NewCuboid(geom.Vec3i{}, geom.Vec3i{Y: 1})

func newFixture(t *testing.T, snap structure.Snapshot, method MovementMethod) *fixture {
	t.Helper()
	return newFixtureWithWorld(t, worldtest.New(t, world.WorldConfig{}), snap, method)
}

func newFixtureWithWorld(t *testing.T, h *worldtest.Harness, snap structure.Snapshot, method MovementMethod) *fixture {
	t.Helper()
	if snap.ID == "" {
		snap.ID = "s1"
	}
	if snap.Type == "" {
		snap.Type = "TEST"
	}
	if snap.Cuboid == (geom.Cuboid{}) {
		snap.Cuboid = column
	}
	s, err := structure.New(snap)
	if err != nil {
		t.Fatalf("structure: %v", err)
	}
	f := &fixture{
		h:        h,
		s:        s,
		geo:      &lift{method: method, dy: 3},
		ev:       &events{},
		finished: &finishedLog{},
		power:    &powerLog{},
	}
	hooks := NewHookManager(h.Logger())
	hooks.Register(func(*Animation) Hook { return recordingHook{f.ev} })
	f.env = Env{
		Main:      h.W,
		Scheduler: h.Sched,
		Registry:  f.finished,
		Hooks:     hooks,
		Power:     f.power,
		Timing:    testTiming(),
		Log:       h.Logger(),
	}
	return f
}

func (f *fixture) request(d time.Duration) Request {
	return Request{
		Type:      MoveBlocks,
		Time:      d,
		NewCuboid: f.s.Cuboid().Move(geom.Vec3i{Y: f.geo.dy}),
	}
}

func (f *fixture) animator(t *testing.T, req Request) *Animator {
	t.Helper()
	a, err := NewAnimator(f.s, req, f.geo, NewBlockManager(req.Type, WorldFactory{}, f.h.Logger()), f.env)
	if err != nil {
		t.Fatalf("NewAnimator: %v", err)
	}
	return a
}

func (f *fixture) start(t *testing.T, a *Animator) {
	t.Helper()
	if err := a.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.h.Sync()
}
