package animation

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/geom"
	"github.com/PimvanderLoos/AnimatedArchitecture-sub007/internal/sim/world"
)

// probe is an AnimatedBlock that records what the movement methods do to it.
type probe struct {
	pos       mgl64.Vec3
	vel       mgl64.Vec3
	teleports int
}

func (p *probe) StartPosition() mgl64.Vec3         { return mgl64.Vec3{} }
func (p *probe) FinalPosition() mgl64.Vec3         { return mgl64.Vec3{} }
func (p *probe) Position() mgl64.Vec3              { return p.pos }
func (p *probe) OnEdge() bool                      { return false }
func (p *probe) Alive() bool                       { return true }
func (p *probe) SetVelocity(v mgl64.Vec3)          { p.vel = v }
func (p *probe) Kill(*world.Tx)                    {}
func (p *probe) Respawn(*world.Tx)                 {}
func (p *probe) Place(*world.Tx, geom.Vec3i) error { return nil }
func (p *probe) CanRotate() bool                   { return false }
func (p *probe) Rotate(geom.Turn) bool             { return false }

func (p *probe) Teleport(pos mgl64.Vec3) bool {
	p.pos = pos
	p.teleports++
	return true
}

func TestFinishTicks(t *testing.T) {
	cases := []struct {
		m    MovementMethod
		tick time.Duration
		want int
	}{
		{Velocity, 50 * time.Millisecond, 30},
		{Teleport, 50 * time.Millisecond, 2},
		{TeleportVelocity, 50 * time.Millisecond, 12},
		{Teleport, 30 * time.Millisecond, 4},
		{Velocity, 0, 0},
	}
	for _, c := range cases {
		if got := c.m.FinishTicks(c.tick); got != c.want {
			t.Fatalf("%s.FinishTicks(%v)=%d want %d", c.m, c.tick, got, c.want)
		}
	}
}

func TestVelocity_SetsRemainingDistance(t *testing.T) {
	b := &probe{pos: mgl64.Vec3{1, 1, 1}}
	Velocity.apply(b, mgl64.Vec3{1, 3, 0}, 5, 1, &movementState{})
	if b.vel != (mgl64.Vec3{0, 2, -1}) || b.teleports != 0 {
		t.Fatalf("vel=%v teleports=%d", b.vel, b.teleports)
	}
}

func TestTeleport_MovesToTarget(t *testing.T) {
	b := &probe{}
	Teleport.apply(b, mgl64.Vec3{0, 2, 0}, 5, 1, &movementState{})
	if b.pos != (mgl64.Vec3{0, 2, 0}) || b.vel != (mgl64.Vec3{}) {
		t.Fatalf("pos=%v vel=%v", b.pos, b.vel)
	}
}

func TestTeleportVelocity_TeleportSchedule(t *testing.T) {
	const duration = 11
	b := &probe{}
	st := &movementState{}
	var teleported []int
	for tick := 1; tick <= duration; tick++ {
		before := b.teleports
		TeleportVelocity.apply(b, mgl64.Vec3{0, float64(tick), 0}, duration-tick, tick, st)
		if b.teleports > before {
			teleported = append(teleported, tick)
		}
	}
	want := []int{1, 4, 7, 10, 11}
	if len(teleported) != len(want) {
		t.Fatalf("teleported on %v want %v", teleported, want)
	}
	for i := range want {
		if teleported[i] != want[i] {
			t.Fatalf("teleported on %v want %v", teleported, want)
		}
	}
}

func TestTeleportVelocity_VelocityBase(t *testing.T) {
	b := &probe{pos: mgl64.Vec3{0, 0.5, 0}}
	st := &movementState{}

	// No previous target: steer from the current position.
	TeleportVelocity.apply(b, mgl64.Vec3{0, 1, 0}, 5, 2, st)
	if b.vel != (mgl64.Vec3{0, 0.5, 0}) {
		t.Fatalf("first vel=%v", b.vel)
	}
	// Plenty of ticks left: steer from the last target.
	TeleportVelocity.apply(b, mgl64.Vec3{0, 3, 0}, 4, 3, st)
	if b.vel != (mgl64.Vec3{0, 2, 0}) {
		t.Fatalf("vel from last target=%v", b.vel)
	}
	// Close to the end: steer from where the block really is.
	b.pos = mgl64.Vec3{0, 3.5, 0}
	TeleportVelocity.apply(b, mgl64.Vec3{0, 4, 0}, 1, 5, st)
	if b.vel != (mgl64.Vec3{0, 0.5, 0}) {
		t.Fatalf("vel near the end=%v", b.vel)
	}
}

func TestApply_UnknownMethodPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	MovementMethod(99).apply(&probe{}, mgl64.Vec3{}, 0, 1, &movementState{})
}

func TestParseMovementMethod(t *testing.T) {
	for _, m := range []MovementMethod{Velocity, Teleport, TeleportVelocity} {
		got, err := ParseMovementMethod(m.String())
		if err != nil || got != m {
			t.Fatalf("round trip of %s: %v, %v", m, got, err)
		}
	}
	if _, err := ParseMovementMethod("WARP"); err == nil {
		t.Fatalf("expected error")
	}
}
