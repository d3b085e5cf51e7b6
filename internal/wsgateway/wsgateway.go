// /internal/wsgateway/wsgateway.go
package wsgateway

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/keshon/tunevault/internal/bot"
	"github.com/keshon/tunevault/internal/player"
)

const stateTimeout = 10 * time.Second

// Hub serves player commands over websockets and pushes state updates to
// every connected client after each playback transition.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}

	orch     *player.Orchestrator
	dg       *discordgo.Session
	upgrader websocket.Upgrader
}

type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func New(orch *player.Orchestrator, dg *discordgo.Session) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		orch:    orch,
		dg:      dg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Inbound is a client command frame.
type Inbound struct {
	Type           string `json:"type"`
	GuildID        string `json:"guild_id"`
	VoiceChannelID string `json:"voice_channel_id,omitempty"`
	Input          string `json:"input,omitempty"`
	Action         string `json:"action,omitempty"`
}

// Outbound is a server frame: a command result, a state push, or an error.
type Outbound struct {
	Type    string           `json:"type"`
	GuildID string           `json:"guild_id,omitempty"`
	Message string           `json:"message,omitempty"`
	State   *player.Snapshot `json:"state,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// Handle upgrades the request and serves the client until it disconnects.
func (h *Hub) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] Upgrade failed: %v", err)
		return
	}

	cl := &client{conn: conn}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()
	log.Printf("[WS] Client connected: %s", conn.RemoteAddr())

	defer func() {
		h.mu.Lock()
		delete(h.clients, cl)
		h.mu.Unlock()
		conn.Close()
		log.Printf("[WS] Client disconnected: %s", conn.RemoteAddr())
	}()

	for {
		var in Inbound
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[WS] Read error: %v", err)
			}
			return
		}
		h.dispatch(cl, in)
	}
}

func (h *Hub) dispatch(cl *client, in Inbound) {
	if in.GuildID == "" {
		h.send(cl, Outbound{Type: "error", Error: "guild_id is required"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), stateTimeout)
	defer cancel()

	switch in.Type {
	case "play":
		identity := player.Identity{GuildID: in.GuildID, VoiceChannelID: in.VoiceChannelID}
		target := bot.NewGuildTarget(h.dg, in.GuildID)

		msg, err := h.orch.Play(ctx, identity, in.Input, target)
		if err != nil {
			h.send(cl, Outbound{Type: "error", GuildID: in.GuildID, Error: err.Error()})
			return
		}
		h.send(cl, Outbound{Type: "result", GuildID: in.GuildID, Message: msg})

	case "state":
		action, err := player.ParseAction(in.Action)
		if err != nil {
			h.send(cl, Outbound{Type: "error", GuildID: in.GuildID, Error: err.Error()})
			return
		}
		target := bot.NewGuildTarget(h.dg, in.GuildID)

		msg, err := h.orch.ChangeState(player.Identity{GuildID: in.GuildID}, action, target)
		if err != nil {
			h.send(cl, Outbound{Type: "error", GuildID: in.GuildID, Error: err.Error()})
			return
		}
		h.send(cl, Outbound{Type: "result", GuildID: in.GuildID, Message: msg})

	case "snapshot":
		state, err := h.orch.State(ctx, in.GuildID)
		if err != nil {
			h.send(cl, Outbound{Type: "error", GuildID: in.GuildID, Error: err.Error()})
			return
		}
		h.send(cl, Outbound{Type: "state", GuildID: in.GuildID, State: state})

	default:
		h.send(cl, Outbound{Type: "error", GuildID: in.GuildID, Error: "unknown message type: " + in.Type})
	}
}

// BroadcastState pushes the guild's current snapshot to every client.
// Registered as the playback manager's change hook.
func (h *Hub) BroadcastState(guildID string) {
	ctx, cancel := context.WithTimeout(context.Background(), stateTimeout)
	defer cancel()

	state, err := h.orch.State(ctx, guildID)
	if err != nil {
		log.Printf("[WS] Failed to snapshot guild %s: %v", guildID, err)
		return
	}

	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for cl := range h.clients {
		clients = append(clients, cl)
	}
	h.mu.Unlock()

	frame := Outbound{Type: "state", GuildID: guildID, State: state}
	for _, cl := range clients {
		if err := cl.write(frame); err != nil {
			log.Printf("[WS] Dropping client after write error: %v", err)
			h.mu.Lock()
			delete(h.clients, cl)
			h.mu.Unlock()
			cl.conn.Close()
		}
	}
}

func (h *Hub) send(cl *client, out Outbound) {
	if err := cl.write(out); err != nil {
		log.Printf("[WS] Write error: %v", err)
	}
}
