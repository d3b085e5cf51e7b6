// /internal/playermsg/playermsg.go
package playermsg

import (
	"fmt"
	"log"
	"sync"

	"github.com/keshon/datastore"
	"golang.org/x/time/rate"
)

const refKeyPrefix = "player-message:"

// Discord throttles rapid edits of the same message, so each guild gets a
// small token bucket for them.
const (
	editRate  = rate.Limit(5)
	editBurst = 10
)

// Payload is a rendered now-playing message, ready for the hosting surface
// to send or edit.
type Payload struct {
	Content string
	Embed   *Embed
	Buttons []Button
}

// Embed is a surface-agnostic rich block. The Discord layer maps it onto a
// message embed; other surfaces may render it however they like.
type Embed struct {
	Title       string
	Description string
	Thumbnail   string
	Fields      []EmbedField
}

type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Button is one player control attached to the message.
type Button struct {
	ID    string
	Emoji string
}

// Control button IDs shared by every surface that renders the player.
const (
	ButtonPrev        = "player:prev"
	ButtonPauseOrPlay = "player:pause-or-play"
	ButtonNext        = "player:next"
	ButtonDisconnect  = "player:disconnect"
)

// PlayerButtons returns the standard control row.
func PlayerButtons() []Button {
	return []Button{
		{ID: ButtonPrev, Emoji: "⏮"},
		{ID: ButtonPauseOrPlay, Emoji: "⏯"},
		{ID: ButtonNext, Emoji: "⏭"},
		{ID: ButtonDisconnect, Emoji: "⛔"},
	}
}

// Target is the reply capability of whichever control surface issued the
// command: a slash interaction, an HTTP call, or a socket message. The cache
// never branches on which one it is.
type Target interface {
	// ResolveActiveChannel returns the channel new player messages go to.
	ResolveActiveChannel() (string, error)
	// Send creates a new message and returns its id.
	Send(channelID string, payload *Payload) (string, error)
	// Edit updates an existing message in place.
	Edit(channelID, messageID string, payload *Payload) error
}

// Ref points at the single live player message of a guild. The message
// itself belongs to the hosting surface; this is only a back-reference for
// edit-or-create.
type Ref struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// Cache upholds the one-live-player-message-per-guild rule: it remembers
// each guild's message and edits it in place instead of posting a new one
// on every pause, skip and track change. Message I/O runs under a per-guild
// lock, so a slow Discord call for one guild never delays another guild's
// update.
type Cache struct {
	mu     sync.Mutex
	ds     *datastore.DataStore
	guilds map[string]*guildEntry
}

// guildEntry serializes one guild's message I/O. Cache.mu only guards the
// map itself and is never held across network calls.
type guildEntry struct {
	mu      sync.Mutex
	limiter *rate.Limiter
}

func NewCache(ds *datastore.DataStore) *Cache {
	return &Cache{
		ds:     ds,
		guilds: make(map[string]*guildEntry),
	}
}

// Get returns the guild's live message reference, or nil if none is cached.
func (c *Cache) Get(guildID string) *Ref {
	e := c.entry(guildID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return c.load(guildID)
}

// EditOrReply edits the guild's live player message, creating it first if
// none exists. When the cached message cannot be edited anymore (deleted,
// channel gone) a fresh one is created and the cache moves to it. I/O
// failures are logged and swallowed: a lost UI update is recoverable, a
// stuck playback transition is not.
func (c *Cache) EditOrReply(target Target, guildID string, payload *Payload) *Ref {
	e := c.entry(guildID)
	e.mu.Lock()
	defer e.mu.Unlock()

	ref := c.load(guildID)
	if ref != nil {
		if !e.limiter.Allow() {
			// Dropping an intermediate update is fine since the next one
			// carries the full state anyway.
			return ref
		}

		err := target.Edit(ref.ChannelID, ref.MessageID, payload)
		if err == nil {
			return ref
		}
		log.Printf("[PlayerMsg] Failed to edit player message %s for guild %s: %v, sending a new one", ref.MessageID, guildID, err)
	}

	channelID, err := target.ResolveActiveChannel()
	if err != nil {
		log.Printf("[PlayerMsg] Failed to resolve active channel for guild %s: %v", guildID, err)
		return nil
	}

	messageID, err := target.Send(channelID, payload)
	if err != nil {
		log.Printf("[PlayerMsg] Failed to send player message for guild %s: %v", guildID, err)
		return nil
	}

	newRef := &Ref{ChannelID: channelID, MessageID: messageID}
	if err := c.ds.Set(refKey(guildID), newRef); err != nil {
		log.Printf("[PlayerMsg] Failed to persist message ref for guild %s: %v", guildID, err)
	}
	return newRef
}

// Delete clears the guild's cached message reference. Idempotent.
func (c *Cache) Delete(guildID string) {
	e := c.entry(guildID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := c.ds.Delete(refKey(guildID)); err != nil {
		log.Printf("[PlayerMsg] Failed to clear message ref for guild %s: %v", guildID, err)
	}
	e.limiter = rate.NewLimiter(editRate, editBurst)
}

func (c *Cache) entry(guildID string) *guildEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.guilds[guildID]
	if !ok {
		e = &guildEntry{limiter: rate.NewLimiter(editRate, editBurst)}
		c.guilds[guildID] = e
	}
	return e
}

func (c *Cache) load(guildID string) *Ref {
	var ref Ref
	found, err := c.ds.Get(refKey(guildID), &ref)
	if err != nil {
		log.Printf("[PlayerMsg] Failed to read message ref for guild %s: %v", guildID, err)
		return nil
	}
	if !found {
		return nil
	}
	return &ref
}

func refKey(guildID string) string {
	return fmt.Sprintf("%s%s", refKeyPrefix, guildID)
}
