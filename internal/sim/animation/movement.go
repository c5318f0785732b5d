package animation

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// MovementMethod is the closed set of ways an animated block is nudged
// toward its per-tick target.
type MovementMethod uint8

const (
	// Velocity sets the block's velocity to the remaining distance.
	Velocity MovementMethod = iota + 1
	// Teleport moves the block straight to its target.
	Teleport
	// TeleportVelocity teleports every third tick and on the last tick, and
	// steers with velocity in between.
	TeleportVelocity
)

// FinishingTicks is the ticksRemaining value passed during the finishing
// step: one final burst toward the exact final position.
const FinishingTicks = -1

func (m MovementMethod) String() string {
	switch m {
	case Velocity:
		return "VELOCITY"
	case Teleport:
		return "TELEPORT"
	case TeleportVelocity:
		return "TELEPORT_VELOCITY"
	}
	return fmt.Sprintf("MovementMethod(%d)", uint8(m))
}

func ParseMovementMethod(s string) (MovementMethod, error) {
	switch s {
	case "VELOCITY":
		return Velocity, nil
	case "TELEPORT":
		return Teleport, nil
	case "TELEPORT_VELOCITY":
		return TeleportVelocity, nil
	}
	return 0, fmt.Errorf("unknown movement method %q", s)
}

// FinishDuration is how long blocks get to settle after the nominal duration
// before the animation is stopped.
func (m MovementMethod) FinishDuration() time.Duration {
	switch m {
	case Velocity:
		return 1500 * time.Millisecond
	case Teleport:
		return 100 * time.Millisecond
	case TeleportVelocity:
		return 600 * time.Millisecond
	}
	return 0
}

// FinishTicks converts FinishDuration into ticks, rounding up.
func (m MovementMethod) FinishTicks(tick time.Duration) int {
	if tick <= 0 {
		return 0
	}
	d := m.FinishDuration()
	return int((d + tick - 1) / tick)
}

// teleportsOn reports whether TeleportVelocity teleports on the given tick.
// Ticks are counted from 1.
func teleportsOn(tick, ticksRemaining int) bool {
	return ticksRemaining == 0 || (tick-1)%3 == 0
}

// movementState is the per-block memory TeleportVelocity needs.
type movementState struct {
	lastTarget mgl64.Vec3
	hasLast    bool
}

func (m MovementMethod) apply(b AnimatedBlock, target mgl64.Vec3, ticksRemaining, tick int, st *movementState) {
	switch m {
	case Velocity:
		b.SetVelocity(target.Sub(b.Position()))
	case Teleport:
		b.Teleport(target)
	case TeleportVelocity:
		base := b.Position()
		if ticksRemaining >= 2 && st.hasLast {
			base = st.lastTarget
		}
		if teleportsOn(tick, ticksRemaining) {
			b.Teleport(target)
		}
		b.SetVelocity(target.Sub(base))
	default:
		panic(fmt.Sprintf("animation: unhandled movement method %d", uint8(m)))
	}
	st.lastTarget = target
	st.hasLast = true
}
