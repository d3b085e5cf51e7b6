// /internal/player/errors.go
package player

import "errors"

var (
	// ErrInvalidInput means the media reference could not be resolved to
	// anything playable. Reported to the caller, no state change.
	ErrInvalidInput = errors.New("invalid or unresolvable media reference")

	// ErrNotInVoice means playback was requested without a voice channel
	// to join.
	ErrNotInVoice = errors.New("caller has no voice channel context")

	// ErrNoItemsInQueue is informational: a skip was requested on an empty
	// or exhausted queue.
	ErrNoItemsInQueue = errors.New("no items in the queue")

	// ErrInvalidAction means the state-change action is not one of the
	// known player actions.
	ErrInvalidAction = errors.New("invalid player action")

	// ErrNoActiveSession means the guild has no live playback session.
	ErrNoActiveSession = errors.New("no active playback session")
)
