// /internal/player/action.go
package player

import "fmt"

// Action is a closed set of player state changes. Unknown action strings
// from any control surface are rejected with ErrInvalidAction instead of
// being silently ignored.
type Action int

const (
	ActionPlayPrev Action = iota
	ActionPlayNext
	ActionPauseOrPlay
	ActionDisconnect
)

func (a Action) String() string {
	switch a {
	case ActionPlayPrev:
		return "prev"
	case ActionPlayNext:
		return "next"
	case ActionPauseOrPlay:
		return "pauseOrPlay"
	case ActionDisconnect:
		return "disconnect"
	default:
		return fmt.Sprintf("unknown(%d)", int(a))
	}
}

// ParseAction maps a wire-level action string onto an Action.
func ParseAction(s string) (Action, error) {
	switch s {
	case "prev":
		return ActionPlayPrev, nil
	case "next":
		return ActionPlayNext, nil
	case "pauseOrPlay":
		return ActionPauseOrPlay, nil
	case "disconnect":
		return ActionDisconnect, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
}
