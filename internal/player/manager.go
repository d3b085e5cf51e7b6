// /internal/player/manager.go
package player

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/keshon/tunevault/internal/playermsg"
	"github.com/keshon/tunevault/internal/queue"
	"github.com/keshon/tunevault/internal/resolver"
	"github.com/keshon/tunevault/internal/voice"
)

const metadataTimeout = 10 * time.Second

// session is one guild's live playback state. All transitions for a guild
// run under its mutex, so a slow teardown in one guild never blocks
// playback in another.
type session struct {
	mu      sync.Mutex
	guildID string
	conn    voice.Conn
	target  playermsg.Target

	// generation is bumped on every teardown. Events produced by an old
	// connection carry the generation they were observed under and are
	// discarded when it no longer matches.
	generation uint64
}

// Manager owns the per-guild playback sessions: it joins voice channels,
// advances the queue when tracks end, and tears sessions down when the
// queue runs out or a disconnect is requested.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session

	transport voice.Transport
	queue     *queue.Store
	messages  *playermsg.Cache
	resolver  resolver.Resolver

	onChange func(guildID string)
}

func NewManager(transport voice.Transport, q *queue.Store, messages *playermsg.Cache, res resolver.Resolver) *Manager {
	return &Manager{
		sessions:  make(map[string]*session),
		transport: transport,
		queue:     q,
		messages:  messages,
		resolver:  res,
	}
}

// SetOnChange registers a hook invoked after every observable state
// transition, outside the session lock. Used to fan state out to
// subscribers.
func (m *Manager) SetOnChange(fn func(guildID string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// Start joins the guild's voice channel if not already connected and begins
// playing from the queue cursor. Safe to call on a live session: the
// existing connection is reused.
func (m *Manager) Start(guildID, channelID string, target playermsg.Target) error {
	var err error
	for {
		s := m.getOrCreate(guildID)

		s.mu.Lock()
		if !m.tracked(guildID, s) {
			// A concurrent teardown removed this session between lookup
			// and lock. Retry against a fresh one so a Push that landed
			// in the gap is not silently lost.
			s.mu.Unlock()
			continue
		}
		err = m.startLocked(s, channelID, target)
		s.mu.Unlock()
		break
	}

	m.notify(guildID)
	return err
}

func (m *Manager) startLocked(s *session, channelID string, target playermsg.Target) error {
	if target != nil {
		s.target = target
	}

	if s.conn == nil {
		conn, err := m.transport.Join(s.guildID, channelID)
		if err != nil {
			m.remove(s.guildID)
			return fmt.Errorf("failed to join voice channel %s: %w", channelID, err)
		}
		s.conn = conn
		go m.watchEvents(s, conn, s.generation)
		log.Printf("[Player] Session started for guild %s", s.guildID)
	}

	next, err := m.queue.NextItem(s.guildID, true)
	if err != nil {
		m.teardownLocked(s)
		return err
	}
	if next == nil {
		m.teardownLocked(s)
		return ErrNoItemsInQueue
	}

	m.playFromLocked(s, next)
	return nil
}

// SkipNext advances the cursor and plays the next track. Returns
// ErrNoItemsInQueue when the queue is exhausted; the current track keeps
// playing in that case.
func (m *Manager) SkipNext(guildID string, target playermsg.Target) error {
	s := m.lookup(guildID)
	if s == nil {
		return ErrNoActiveSession
	}

	s.mu.Lock()
	err := m.skipNextLocked(s, target)
	s.mu.Unlock()

	m.notify(guildID)
	return err
}

func (m *Manager) skipNextLocked(s *session, target playermsg.Target) error {
	if s.conn == nil {
		return ErrNoActiveSession
	}
	if target != nil {
		s.target = target
	}

	next, err := m.queue.NextItem(s.guildID, true)
	if err != nil {
		return err
	}
	if next == nil {
		return ErrNoItemsInQueue
	}

	m.playFromLocked(s, next)
	return nil
}

// SkipPrev steps the cursor back and replays the previous track. Returns
// ErrNoItemsInQueue when there is no predecessor.
func (m *Manager) SkipPrev(guildID string, target playermsg.Target) error {
	s := m.lookup(guildID)
	if s == nil {
		return ErrNoActiveSession
	}

	s.mu.Lock()
	err := m.skipPrevLocked(s, target)
	s.mu.Unlock()

	m.notify(guildID)
	return err
}

func (m *Manager) skipPrevLocked(s *session, target playermsg.Target) error {
	if s.conn == nil {
		return ErrNoActiveSession
	}
	if target != nil {
		s.target = target
	}

	prev, err := m.queue.PrevItem(s.guildID)
	if err != nil {
		return err
	}
	if prev == nil {
		return ErrNoItemsInQueue
	}

	if err := s.conn.Play(prev.URL); err != nil {
		return fmt.Errorf("failed to play previous track: %w", err)
	}
	s.conn.SetPaused(false)
	m.updateMessageLocked(s)
	return nil
}

// PauseOrResume toggles the paused state and returns the resulting one.
func (m *Manager) PauseOrResume(guildID string, target playermsg.Target) (bool, error) {
	s := m.lookup(guildID)
	if s == nil {
		return false, ErrNoActiveSession
	}

	s.mu.Lock()
	if s.conn == nil {
		s.mu.Unlock()
		return false, ErrNoActiveSession
	}
	if target != nil {
		s.target = target
	}

	paused := !s.conn.Paused()
	s.conn.SetPaused(paused)
	m.updateMessageLocked(s)
	s.mu.Unlock()

	m.notify(guildID)
	return paused, nil
}

// Disconnect tears the guild's session down. Without a live session any
// leftover persisted state is still cleared, so it is safe to call twice.
func (m *Manager) Disconnect(guildID string) {
	s := m.lookup(guildID)
	if s == nil {
		m.queue.Destroy(guildID)
		m.messages.Delete(guildID)
		return
	}

	s.mu.Lock()
	m.teardownLocked(s)
	s.mu.Unlock()

	m.notify(guildID)
}

// Refresh re-renders the guild's player message against the current queue
// state. No-op without a live session.
func (m *Manager) Refresh(guildID string, target playermsg.Target) {
	s := m.lookup(guildID)
	if s == nil {
		return
	}

	s.mu.Lock()
	if target != nil {
		s.target = target
	}
	m.updateMessageLocked(s)
	s.mu.Unlock()
}

// Connected reports whether the guild has a live voice connection.
func (m *Manager) Connected(guildID string) bool {
	s := m.lookup(guildID)
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Paused reports the paused state; false without a live session.
func (m *Manager) Paused(guildID string) bool {
	s := m.lookup(guildID)
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return false
	}
	return s.conn.Paused()
}

// watchEvents drains one connection's event channel until it closes.
// Events observed under a stale generation are dropped: they belong to a
// connection that was already torn down.
func (m *Manager) watchEvents(s *session, conn voice.Conn, gen uint64) {
	for ev := range conn.Events() {
		s.mu.Lock()
		if s.generation != gen {
			s.mu.Unlock()
			return
		}

		switch ev.Type {
		case voice.EventReady:
			log.Printf("[Player] Voice connection ready for guild %s", s.guildID)
		case voice.EventIdle:
			m.advanceLocked(s)
		case voice.EventError:
			log.Printf("[Player] Playback error on guild %s: %v", s.guildID, ev.Err)
			m.advanceLocked(s)
		case voice.EventDisconnected:
			log.Printf("[Player] Voice connection lost on guild %s", s.guildID)
			m.teardownLocked(s)
		}
		s.mu.Unlock()

		m.notify(s.guildID)
	}
}

// advanceLocked moves the cursor forward after a track ends. An exhausted
// queue tears the session down; this is the only automatic disconnect path.
func (m *Manager) advanceLocked(s *session) {
	next, err := m.queue.NextItem(s.guildID, true)
	if err != nil {
		log.Printf("[Player] Queue error on guild %s: %v", s.guildID, err)
		m.teardownLocked(s)
		return
	}
	if next == nil {
		log.Printf("[Player] Queue exhausted for guild %s", s.guildID)
		m.teardownLocked(s)
		return
	}
	m.playFromLocked(s, next)
}

// playFromLocked starts playback at item. An unplayable item is treated
// like a track that ended: the cursor moves on until something plays or the
// queue runs out, which tears the session down.
func (m *Manager) playFromLocked(s *session, item *queue.Item) {
	for item != nil {
		err := s.conn.Play(item.URL)
		if err == nil {
			s.conn.SetPaused(false)
			log.Printf("[Player] Playing %s on guild %s", item.URL, s.guildID)
			m.updateMessageLocked(s)
			return
		}
		log.Printf("[Player] Cannot play %s on guild %s: %v, skipping", item.URL, s.guildID, err)

		item, err = m.queue.NextItem(s.guildID, true)
		if err != nil {
			log.Printf("[Player] Queue error on guild %s: %v", s.guildID, err)
			break
		}
	}
	m.teardownLocked(s)
}

// teardownLocked closes the connection and destroys the guild's queue and
// player message reference. The generation bump invalidates any in-flight
// events from the old connection.
func (m *Manager) teardownLocked(s *session) {
	s.generation++
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	m.queue.Destroy(s.guildID)
	m.messages.Delete(s.guildID)
	m.remove(s.guildID)
	log.Printf("[Player] Session for guild %s torn down", s.guildID)
}

func (m *Manager) updateMessageLocked(s *session) {
	if s.target == nil {
		return
	}
	paused := s.conn != nil && s.conn.Paused()
	payload := m.renderPayload(s.guildID, paused)
	m.messages.EditOrReply(s.target, s.guildID, payload)
}

// renderPayload builds the now-playing message from the queue cursor.
// Metadata lookups degrade to the raw URL so a flaky resolver never blocks
// a playback transition from being reflected in the UI.
func (m *Manager) renderPayload(guildID string, paused bool) *playermsg.Payload {
	curr, err := m.queue.CurrentItem(guildID)
	if err != nil || curr == nil {
		return &playermsg.Payload{Content: "No items in the queue"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), metadataTimeout)
	defer cancel()

	title := "Now playing"
	if paused {
		title = "Paused"
	}
	embed := &playermsg.Embed{Title: title}

	info, err := m.resolver.ResolveTrack(ctx, curr.URL)
	if err != nil {
		embed.Description = fmt.Sprintf("**%s**", curr.URL)
	} else {
		embed.Description = fmt.Sprintf("**%s**", info.Title)
		if info.Author != "" {
			embed.Description += fmt.Sprintf("\nby %s", info.Author)
		}
		if info.Duration > 0 {
			embed.Fields = append(embed.Fields, playermsg.EmbedField{
				Name:   "Duration",
				Value:  resolver.FormatDuration(info.Duration),
				Inline: true,
			})
		}
	}

	if next, err := m.queue.NextItem(guildID, false); err == nil && next != nil {
		value := next.URL
		if nextInfo, err := m.resolver.ResolveTrack(ctx, next.URL); err == nil {
			value = nextInfo.Title
		}
		embed.Fields = append(embed.Fields, playermsg.EmbedField{
			Name:   "Up next",
			Value:  value,
			Inline: true,
		})
	}

	return &playermsg.Payload{
		Embed:   embed,
		Buttons: playermsg.PlayerButtons(),
	}
}

func (m *Manager) lookup(guildID string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[guildID]
}

func (m *Manager) getOrCreate(guildID string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[guildID]
	if !ok {
		s = &session{guildID: guildID}
		m.sessions[guildID] = s
	}
	return s
}

// tracked reports whether s is still the registered session for the guild.
// Safe to call with s.mu held; teardown takes m.mu only through remove.
func (m *Manager) tracked(guildID string, s *session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[guildID] == s
}

func (m *Manager) remove(guildID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, guildID)
}

func (m *Manager) notify(guildID string) {
	m.mu.Lock()
	fn := m.onChange
	m.mu.Unlock()
	if fn != nil {
		fn(guildID)
	}
}
