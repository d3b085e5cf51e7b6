// /internal/player/orchestrator.go
package player

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/keshon/tunevault/internal/playermsg"
	"github.com/keshon/tunevault/internal/queue"
	"github.com/keshon/tunevault/internal/resolver"
)

// Identity names the caller's place in Discord. VoiceChannelID may be empty
// when the caller is not in a voice channel; that only matters when playback
// has to start fresh.
type Identity struct {
	GuildID        string
	VoiceChannelID string
}

// Snapshot is the externally visible player state of one guild.
type Snapshot struct {
	GuildID   string              `json:"guild_id"`
	Connected bool                `json:"connected"`
	Paused    bool                `json:"paused"`
	Current   *resolver.TrackInfo `json:"current,omitempty"`
	Next      *resolver.TrackInfo `json:"next,omitempty"`
	QueueSize int                 `json:"queue_size"`
}

// Orchestrator is the single entry point all control surfaces go through:
// slash commands, message buttons, the HTTP API and the socket gateway all
// end up here with the same semantics.
type Orchestrator struct {
	queue    *queue.Store
	resolver resolver.Resolver
	manager  *Manager
}

func NewOrchestrator(q *queue.Store, res resolver.Resolver, manager *Manager) *Orchestrator {
	return &Orchestrator{queue: q, resolver: res, manager: manager}
}

// Play resolves input into one or more tracks, queues them and starts
// playback when the queue was empty before the call. The returned string is
// a user-facing confirmation; it is empty when the player message itself is
// the reply.
func (o *Orchestrator) Play(ctx context.Context, id Identity, input string, target playermsg.Target) (string, error) {
	input = strings.TrimSpace(input)

	kind := o.resolver.Classify(input)
	if kind == resolver.KindInvalid {
		return "", ErrInvalidInput
	}

	if kind == resolver.KindQuery {
		url, err := o.resolver.Search(ctx, input)
		if err != nil {
			if errors.Is(err, resolver.ErrNoVideoMatch) {
				return "⛔ No results found", nil
			}
			return "", fmt.Errorf("search failed: %w", err)
		}
		input = url
		kind = resolver.KindTrack
	}

	hadItems, err := o.queue.HasItems(id.GuildID)
	if err != nil {
		return "", err
	}
	// Starting fresh needs a channel to join; appending to a live queue
	// does not. Checked before any mutation so a rejected call leaves no
	// trace.
	if !hadItems && id.VoiceChannelID == "" {
		return "", ErrNotInVoice
	}

	if kind == resolver.KindPlaylist {
		return o.playPlaylist(ctx, id, input, hadItems, target)
	}
	return o.playTrack(ctx, id, input, hadItems, target)
}

func (o *Orchestrator) playTrack(ctx context.Context, id Identity, url string, hadItems bool, target playermsg.Target) (string, error) {
	if err := o.queue.Push(id.GuildID, []string{url}, false); err != nil {
		return "", err
	}

	if !hadItems {
		if err := o.manager.Start(id.GuildID, id.VoiceChannelID, target); err != nil {
			return "", err
		}
		return "", nil
	}

	o.manager.Refresh(id.GuildID, target)

	title := "Unknown"
	if info, err := o.resolver.ResolveTrack(ctx, url); err == nil && info.Title != "" {
		title = info.Title
	}
	return fmt.Sprintf("Added to queue: **%s**", title), nil
}

func (o *Orchestrator) playPlaylist(ctx context.Context, id Identity, url string, hadItems bool, target playermsg.Target) (string, error) {
	pl, err := o.resolver.ResolvePlaylist(ctx, url)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(pl.URLs) == 0 {
		return "", ErrInvalidInput
	}

	if err := o.queue.Push(id.GuildID, pl.URLs, false); err != nil {
		return "", err
	}

	if !hadItems {
		if err := o.manager.Start(id.GuildID, id.VoiceChannelID, target); err != nil {
			return "", err
		}
	} else {
		o.manager.Refresh(id.GuildID, target)
	}

	title := pl.Title
	if title == "" {
		title = "playlist"
	}
	return fmt.Sprintf("Added **%d** items from **%s** to queue", len(pl.URLs), title), nil
}

// ChangeState applies one of the closed player actions and returns a
// user-facing confirmation. Skips on an empty queue are informational, not
// errors.
func (o *Orchestrator) ChangeState(id Identity, action Action, target playermsg.Target) (string, error) {
	switch action {
	case ActionPlayPrev:
		return stateMessage(o.manager.SkipPrev(id.GuildID, target), "Playing previous track")
	case ActionPlayNext:
		return stateMessage(o.manager.SkipNext(id.GuildID, target), "Playing next track")
	case ActionPauseOrPlay:
		paused, err := o.manager.PauseOrResume(id.GuildID, target)
		if err != nil {
			return stateMessage(err, "")
		}
		if paused {
			return "⏸️ Paused", nil
		}
		return "▶️ Resumed", nil
	case ActionDisconnect:
		o.manager.Disconnect(id.GuildID)
		return "Disconnected from the voice channel", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidAction, action)
	}
}

// State snapshots the guild's player without mutating anything. Metadata
// lookups degrade to the raw URL.
func (o *Orchestrator) State(ctx context.Context, guildID string) (*Snapshot, error) {
	items, err := o.queue.Items(guildID)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		GuildID:   guildID,
		Connected: o.manager.Connected(guildID),
		Paused:    o.manager.Paused(guildID),
		QueueSize: len(items),
	}

	if curr, err := o.queue.CurrentItem(guildID); err == nil && curr != nil {
		snap.Current = o.trackInfo(ctx, curr.URL)
	}
	if next, err := o.queue.NextItem(guildID, false); err == nil && next != nil {
		snap.Next = o.trackInfo(ctx, next.URL)
	}
	return snap, nil
}

func (o *Orchestrator) trackInfo(ctx context.Context, url string) *resolver.TrackInfo {
	info, err := o.resolver.ResolveTrack(ctx, url)
	if err != nil {
		return &resolver.TrackInfo{URL: url, Title: url}
	}
	return info
}

func stateMessage(err error, ok string) (string, error) {
	switch {
	case err == nil:
		return ok, nil
	case errors.Is(err, ErrNoItemsInQueue), errors.Is(err, ErrNoActiveSession):
		return "No items in the queue", nil
	default:
		return "", err
	}
}
