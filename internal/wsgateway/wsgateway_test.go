package wsgateway

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/keshon/datastore"

	"github.com/keshon/tunevault/internal/player"
	"github.com/keshon/tunevault/internal/playermsg"
	"github.com/keshon/tunevault/internal/queue"
	"github.com/keshon/tunevault/internal/resolver"
	"github.com/keshon/tunevault/internal/voice"
)

type stubTransport struct{}

func (stubTransport) Join(guildID, channelID string) (voice.Conn, error) {
	return nil, errors.New("no voice in tests")
}

type stubResolver struct{}

func (stubResolver) Classify(input string) resolver.Kind {
	if input == "" {
		return resolver.KindInvalid
	}
	return resolver.KindTrack
}

func (stubResolver) ResolveTrack(context.Context, string) (*resolver.TrackInfo, error) {
	return nil, errors.New("metadata unavailable")
}

func (stubResolver) ResolvePlaylist(context.Context, string) (*resolver.PlaylistInfo, error) {
	return nil, errors.New("playlist unavailable")
}

func (stubResolver) Search(context.Context, string) (string, error) {
	return "", resolver.ErrNoVideoMatch
}

func newTestHub(t *testing.T) (*Hub, *player.Manager) {
	t.Helper()

	ds, err := datastore.New(context.Background(), filepath.Join(t.TempDir(), "datastore.json"))
	if err != nil {
		t.Fatalf("failed to create datastore: %v", err)
	}

	q := queue.New(ds)
	messages := playermsg.NewCache(ds)
	manager := player.NewManager(stubTransport{}, q, messages, stubResolver{})
	orch := player.NewOrchestrator(q, stubResolver{}, manager)

	dg, err := discordgo.New("Bot test-token")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return New(orch, dg), manager
}

func dialTestHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ws", hub.Handle)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func TestSnapshotRequest(t *testing.T) {
	hub, _ := newTestHub(t)
	conn := dialTestHub(t, hub)

	if err := conn.WriteJSON(Inbound{Type: "snapshot", GuildID: "g1"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var out Outbound
	if err := conn.ReadJSON(&out); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if out.Type != "state" || out.GuildID != "g1" {
		t.Errorf("frame = %+v, want a g1 state frame", out)
	}
	if out.State == nil || out.State.Connected {
		t.Errorf("state = %+v, want an idle snapshot", out.State)
	}
}

func TestStateActionRoundTrip(t *testing.T) {
	hub, _ := newTestHub(t)
	conn := dialTestHub(t, hub)

	if err := conn.WriteJSON(Inbound{Type: "state", GuildID: "g1", Action: "next"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var out Outbound
	if err := conn.ReadJSON(&out); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if out.Type != "result" {
		t.Fatalf("frame type = %q, want result", out.Type)
	}
	if want := "No items in the queue"; out.Message != want {
		t.Errorf("message = %q, want %q", out.Message, want)
	}
}

func TestUnknownFramesAreRejected(t *testing.T) {
	hub, _ := newTestHub(t)
	conn := dialTestHub(t, hub)

	if err := conn.WriteJSON(Inbound{Type: "state", GuildID: "g1", Action: "shuffle"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	var out Outbound
	if err := conn.ReadJSON(&out); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if out.Type != "error" || out.Error == "" {
		t.Errorf("frame = %+v, want an error frame", out)
	}

	if err := conn.WriteJSON(Inbound{Type: "dance", GuildID: "g1"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := conn.ReadJSON(&out); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if out.Type != "error" {
		t.Errorf("frame = %+v, want an error frame", out)
	}

	if err := conn.WriteJSON(Inbound{Type: "snapshot"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := conn.ReadJSON(&out); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if out.Type != "error" {
		t.Errorf("missing guild: frame = %+v, want an error frame", out)
	}
}

func TestBroadcastStateReachesClients(t *testing.T) {
	hub, _ := newTestHub(t)
	conn := dialTestHub(t, hub)

	hub.BroadcastState("g1")

	var out Outbound
	if err := conn.ReadJSON(&out); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if out.Type != "state" || out.GuildID != "g1" || out.State == nil {
		t.Errorf("frame = %+v, want a g1 state push", out)
	}
}
