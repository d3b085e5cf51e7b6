package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
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
	switch {
	case input == "":
		return resolver.KindInvalid
	case strings.HasPrefix(input, "http"):
		return resolver.KindTrack
	default:
		return resolver.KindQuery
	}
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

func newTestServer(t *testing.T) *Server {
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
	return New(orch, dg)
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestPlayRejectsMalformedBody(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodPost, "/player/play", "{not json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}

	w = doRequest(t, s, http.MethodPost, "/player/play", `{"guild_id":"g1"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing input: status = %d, want 400", w.Code)
	}
}

func TestPlayWithoutVoiceChannel(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodPost, "/player/play", `{"guild_id":"g1","input":"http://a"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if resp["error"] == "" {
		t.Error("expected an error message in the response")
	}
}

func TestChangeStateRejectsUnknownAction(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodPost, "/player/state", `{"guild_id":"g1","action":"shuffle"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestChangeStateOnIdleGuild(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodPost, "/player/state", `{"guild_id":"g1","action":"next"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if want := "No items in the queue"; resp.Message != want {
		t.Errorf("message = %q, want %q", resp.Message, want)
	}
}

func TestChangeStateDisconnect(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodPost, "/player/state", `{"guild_id":"g1","action":"disconnect"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestStateSnapshotForIdleGuild(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/player/state/g1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var snap player.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("invalid snapshot body: %v", err)
	}
	if snap.GuildID != "g1" || snap.Connected || snap.QueueSize != 0 {
		t.Errorf("snapshot = %+v, want idle g1", snap)
	}
}
