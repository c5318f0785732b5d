package animation

import "fmt"

// State is the lifecycle state of one animation.
type State uint8

const (
	NotStarted State = iota
	Starting
	Active
	Skipped
	Finishing
	Stopping
	Completed
	Aborted
)

var stateNames = [...]string{
	NotStarted: "NOT_STARTED",
	Starting:   "STARTING",
	Active:     "ACTIVE",
	Skipped:    "SKIPPED",
	Finishing:  "FINISHING",
	Stopping:   "STOPPING",
	Completed:  "COMPLETED",
	Aborted:    "ABORTED",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == Completed || s == Aborted }

// transitions lists the states reachable from each state. Active and
// Finishing may be re-entered on every tick.
var transitions = map[State][]State{
	NotStarted: {Starting},
	Starting:   {Active, Skipped, Aborted},
	Active:     {Active, Finishing, Stopping, Aborted},
	Skipped:    {Stopping, Aborted},
	Finishing:  {Finishing, Stopping, Aborted},
	Stopping:   {Completed, Aborted},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionError reports an attempt to move an animation backwards or
// sideways through its lifecycle.
type TransitionError struct {
	From, To State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid animation state transition %s -> %s", e.From, e.To)
}
