package playermsg

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/keshon/datastore"
)

type fakeTarget struct {
	channelID string
	sent      int
	edited    int
	failEdit  bool
	lastEdit  string
}

func (f *fakeTarget) ResolveActiveChannel() (string, error) {
	if f.channelID == "" {
		return "", errors.New("no active channel")
	}
	return f.channelID, nil
}

func (f *fakeTarget) Send(channelID string, payload *Payload) (string, error) {
	f.sent++
	return fmt.Sprintf("msg-%d", f.sent), nil
}

func (f *fakeTarget) Edit(channelID, messageID string, payload *Payload) error {
	if f.failEdit {
		return errors.New("unknown message")
	}
	f.edited++
	f.lastEdit = messageID
	return nil
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()

	ds, err := datastore.New(context.Background(), filepath.Join(t.TempDir(), "datastore.json"))
	if err != nil {
		t.Fatalf("failed to create datastore: %v", err)
	}

	return NewCache(ds)
}

func TestEditOrReplyCreatesThenEdits(t *testing.T) {
	c := newTestCache(t)
	target := &fakeTarget{channelID: "chan-1"}

	first := c.EditOrReply(target, "g1", &Payload{Content: "one"})
	if first == nil {
		t.Fatal("expected a message ref")
	}
	if target.sent != 1 {
		t.Errorf("sent = %d, want 1", target.sent)
	}

	second := c.EditOrReply(target, "g1", &Payload{Content: "two"})
	if second == nil {
		t.Fatal("expected a message ref")
	}
	if target.sent != 1 {
		t.Errorf("sent = %d after second call, want still 1", target.sent)
	}
	if target.edited != 1 {
		t.Errorf("edited = %d, want 1", target.edited)
	}
	if second.MessageID != first.MessageID {
		t.Errorf("message id changed from %s to %s, want one live message", first.MessageID, second.MessageID)
	}
}

func TestEditOrReplyFallsBackWhenEditFails(t *testing.T) {
	c := newTestCache(t)
	target := &fakeTarget{channelID: "chan-1"}

	first := c.EditOrReply(target, "g1", &Payload{Content: "one"})
	if first == nil {
		t.Fatal("expected a message ref")
	}

	// Simulate the cached message having been deleted.
	target.failEdit = true

	second := c.EditOrReply(target, "g1", &Payload{Content: "two"})
	if second == nil {
		t.Fatal("expected a fallback message ref")
	}
	if second.MessageID == first.MessageID {
		t.Error("expected a new message id after edit failure")
	}
	if got := c.Get("g1"); got == nil || got.MessageID != second.MessageID {
		t.Errorf("cache = %+v, want updated to %s", got, second.MessageID)
	}
}

func TestEditOrReplySwallowsSendFailure(t *testing.T) {
	c := newTestCache(t)
	target := &fakeTarget{} // no resolvable channel

	if ref := c.EditOrReply(target, "g1", &Payload{Content: "one"}); ref != nil {
		t.Errorf("expected nil ref on send failure, got %+v", ref)
	}
	if got := c.Get("g1"); got != nil {
		t.Errorf("cache should stay empty on failure, got %+v", got)
	}
}

func TestRefsAreGuildScoped(t *testing.T) {
	c := newTestCache(t)
	target := &fakeTarget{channelID: "chan-1"}

	c.EditOrReply(target, "g1", &Payload{Content: "one"})

	if got := c.Get("g2"); got != nil {
		t.Errorf("expected no ref for g2, got %+v", got)
	}
}

// blockingTarget parks inside Send until released, standing in for a stalled
// Discord API call.
type blockingTarget struct {
	channelID string
	entered   chan struct{}
	release   chan struct{}
}

func (b *blockingTarget) ResolveActiveChannel() (string, error) {
	return b.channelID, nil
}

func (b *blockingTarget) Send(channelID string, payload *Payload) (string, error) {
	close(b.entered)
	<-b.release
	return "msg-slow", nil
}

func (b *blockingTarget) Edit(channelID, messageID string, payload *Payload) error {
	return nil
}

func TestEditOrReplyDoesNotBlockOtherGuilds(t *testing.T) {
	c := newTestCache(t)

	slow := &blockingTarget{
		channelID: "chan-1",
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	slowDone := make(chan struct{})
	go func() {
		defer close(slowDone)
		c.EditOrReply(slow, "g1", &Payload{Content: "slow"})
	}()
	<-slow.entered

	fast := &fakeTarget{channelID: "chan-2"}
	fastDone := make(chan struct{})
	go func() {
		defer close(fastDone)
		c.EditOrReply(fast, "g2", &Payload{Content: "fast"})
	}()

	select {
	case <-fastDone:
	case <-time.After(2 * time.Second):
		t.Fatal("guild g2's update waited on guild g1's in-flight message I/O")
	}

	close(slow.release)
	<-slowDone

	if got := c.Get("g2"); got == nil {
		t.Error("expected g2's message ref to be cached")
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	c := newTestCache(t)
	target := &fakeTarget{channelID: "chan-1"}

	c.EditOrReply(target, "g1", &Payload{Content: "one"})
	c.Delete("g1")
	c.Delete("g1")

	if got := c.Get("g1"); got != nil {
		t.Errorf("expected no ref after delete, got %+v", got)
	}
}
