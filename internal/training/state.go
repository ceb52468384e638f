// Package training sequences one chapter: which hotspot may be opened, the
// narration playback of the open one, and the completion handshake with the
// progress service. Rendering subscribes to the session's events.
package training

// State is the unlock state of one hotspot.
type State int

const (
	Locked State = iota
	Clickable
	Done
)

func (s State) String() string {
	switch s {
	case Clickable:
		return "clickable"
	case Done:
		return "done"
	default:
		return "locked"
	}
}

// ComputeStates scans order once: ids in done are Done, the first id not
// done is Clickable, every later id is Locked.
func ComputeStates(order []string, done map[string]bool) []State {
	states := make([]State, len(order))
	unlocked := false
	for i, id := range order {
		switch {
		case done[id]:
			states[i] = Done
		case !unlocked:
			states[i] = Clickable
			unlocked = true
		default:
			states[i] = Locked
		}
	}
	return states
}

// ClickableIndex returns the index of the clickable hotspot, or -1.
func ClickableIndex(states []State) int {
	for i, s := range states {
		if s == Clickable {
			return i
		}
	}
	return -1
}
