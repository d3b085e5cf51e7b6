// /internal/voice/voice.go
package voice

// EventType enumerates what a voice connection can report back to the
// playback manager.
type EventType int

const (
	// EventReady fires once the connection can accept audio.
	EventReady EventType = iota
	// EventIdle fires when the current track ends on its own.
	EventIdle
	// EventError fires on a connection-level failure.
	EventError
	// EventDisconnected fires when the transport drops the connection.
	EventDisconnected
)

func (t EventType) String() string {
	switch t {
	case EventReady:
		return "ready"
	case EventIdle:
		return "idle"
	case EventError:
		return "error"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event is emitted on a connection's event channel.
type Event struct {
	Type EventType
	Err  error
}

// Conn is one guild's voice connection with its audio player. A Conn plays
// one track at a time; Play replaces whatever is currently streaming.
type Conn interface {
	// Play stops the current track, if any, and starts streaming url.
	Play(url string) error
	// SetPaused suspends or resumes the outgoing audio.
	SetPaused(paused bool)
	Paused() bool
	// Stop halts the current track without leaving the channel.
	Stop()
	// Events delivers ready/idle/error/disconnected signals. The channel
	// closes when the connection is closed.
	Events() <-chan Event
	// Close stops playback and leaves the voice channel.
	Close()
}

// Transport opens voice connections. The production implementation speaks
// to Discord; tests substitute their own.
type Transport interface {
	Join(guildID, channelID string) (Conn, error)
}
