package attack

import "fmt"

// State is the position of the orchestrator in its per-offset cycle.
type State int

// The orchestrator goes Init -> Rounds -> Decide for every offset, then Done.
const (
	StateInit State = iota
	StateRounds
	StateDecide
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateRounds:
		return "Rounds"
	case StateDecide:
		return "Decide"
	case StateDone:
		return "Done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
