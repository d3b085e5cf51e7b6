// /internal/voice/discord.go
package voice

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"layeh.com/gopus"
)

// A healthy connection drains a 20ms frame almost immediately; a send that
// stalls this long means the underlying UDP connection is gone.
const opusSendTimeout = time.Second

// DiscordTransport opens voice connections through an active discordgo
// session.
type DiscordTransport struct {
	dg *discordgo.Session
}

func NewDiscordTransport(dg *discordgo.Session) *DiscordTransport {
	return &DiscordTransport{dg: dg}
}

func (t *DiscordTransport) Join(guildID, channelID string) (Conn, error) {
	vc, err := t.dg.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("failed to join voice channel: %w", err)
	}
	log.Printf("[Voice] Joined voice channel %s on guild %s", channelID, guildID)

	conn := &discordConn{
		vc:     vc,
		events: make(chan Event, 10),
	}
	conn.emit(Event{Type: EventReady})
	return conn, nil
}

type discordConn struct {
	mu     sync.Mutex
	vc     *discordgo.VoiceConnection
	events chan Event
	paused bool
	closed bool

	// per-track playback goroutine control
	stop chan struct{}
	done chan struct{}
}

func (c *discordConn) Play(url string) error {
	c.Stop()

	stream, cleanup, err := openPCMStream(url)
	if err != nil {
		return fmt.Errorf("failed to open PCM stream: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cleanup()
		stream.Close()
		return fmt.Errorf("voice connection is closed")
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	c.stop = stop
	c.done = done
	c.mu.Unlock()

	go c.stream(stream, cleanup, stop, done)
	return nil
}

// stream pushes PCM frames through the Opus encoder into the voice
// connection until the track ends or stop closes.
func (c *discordConn) stream(pcm io.ReadCloser, cleanup func(), stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer cleanup()
	defer pcm.Close()

	encoder, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		log.Printf("[Voice] Encoder error: %v", err)
		c.emit(Event{Type: EventError, Err: err})
		return
	}

	c.vc.Speaking(true)
	defer c.vc.Speaking(false)

	pcmBuf := make([]byte, frameSize*channels*2)
	intBuf := make([]int16, frameSize*channels)

	for {
		select {
		case <-stop:
			return
		default:
		}

		if c.Paused() {
			select {
			case <-stop:
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		_, err := io.ReadFull(pcm, pcmBuf)
		if err != nil {
			// EOF is the natural end of the track; anything else is logged
			// and treated the same so playback can move on.
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				log.Printf("[Voice] Stream read error: %v", err)
			}
			c.emit(Event{Type: EventIdle})
			return
		}

		for i := range intBuf {
			intBuf[i] = int16(binary.LittleEndian.Uint16(pcmBuf[i*2 : i*2+2]))
		}

		opus, err := encoder.Encode(intBuf, frameSize, len(pcmBuf))
		if err != nil {
			log.Printf("[Voice] Encode error: %v", err)
			c.emit(Event{Type: EventError, Err: err})
			return
		}

		select {
		case <-stop:
			return
		case c.vc.OpusSend <- opus:
		case <-time.After(opusSendTimeout):
			log.Printf("[Voice] Opus send stalled, treating the connection as lost")
			c.emit(Event{Type: EventDisconnected})
			return
		}
	}
}

func (c *discordConn) SetPaused(paused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = paused
}

func (c *discordConn) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Stop halts the current track, waiting for the playback goroutine to
// finish so a following Play never races it.
func (c *discordConn) Stop() {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (c *discordConn) Events() <-chan Event {
	return c.events
}

func (c *discordConn) Close() {
	c.Stop()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	if err := c.vc.Disconnect(); err != nil {
		log.Printf("[Voice] Disconnect error: %v", err)
	}
	close(c.events)
}

// emit drops the event instead of blocking when nobody is draining the
// channel fast enough.
func (c *discordConn) emit(ev Event) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}

	select {
	case c.events <- ev:
	default:
		log.Printf("[Voice] Event dropped (channel full): %s", ev.Type)
	}
}
