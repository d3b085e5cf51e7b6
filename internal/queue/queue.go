// /internal/queue/queue.go
package queue

import (
	"fmt"
	"log"
	"sync"

	"github.com/keshon/datastore"
)

const guildKeyPrefix = "play-queue:"

// Item is one playable media reference in a guild's queue.
// Insertion order never changes; only the Played flag does.
type Item struct {
	URL    string `json:"url"`
	Played bool   `json:"already_played"`
}

// Store persists and mutates per-guild play queues. The current and next
// track positions are derived from the Played flags instead of a stored
// index: current is the last played item, next is the first unplayed one.
// All mutations go through a single read-modify-write section per call.
type Store struct {
	mu sync.Mutex
	ds *datastore.DataStore
}

func New(ds *datastore.DataStore) *Store {
	return &Store{ds: ds}
}

func guildKey(guildID string) string {
	return guildKeyPrefix + guildID
}

// Push appends new items to the guild's queue, creating the queue if needed.
// Existing items are never reordered or removed.
func (s *Store) Push(guildID string, urls []string, markPlayedByDefault bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(guildID)
	if err != nil {
		return err
	}

	for _, url := range urls {
		items = append(items, Item{URL: url, Played: markPlayedByDefault})
	}

	return s.save(guildID, items)
}

// Items returns a copy of the guild's queue, or nil if none exists.
func (s *Store) Items(guildID string) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(guildID)
}

// CurrentItem returns the last played item, or nil if nothing has been
// played yet.
func (s *Store) CurrentItem(guildID string) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(guildID)
	if err != nil {
		return nil, err
	}

	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Played {
			item := items[i]
			return &item, nil
		}
	}
	return nil, nil
}

// NextItem locates the first unplayed item. When the queue is exhausted it
// returns nil and mutates nothing. Otherwise items before the located one
// are marked played; with markCurrentAsPlayed the located item is marked
// played too, moving the cursor past it. markCurrentAsPlayed=false is the
// look-ahead mode used by UI previews. The returned item keeps its
// pre-mutation flags.
func (s *Store) NextItem(guildID string, markCurrentAsPlayed bool) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(guildID)
	if err != nil {
		return nil, err
	}

	nextIndex := -1
	for i, item := range items {
		if !item.Played {
			nextIndex = i
			break
		}
	}
	if nextIndex == -1 {
		return nil, nil
	}

	next := items[nextIndex]

	for i := range items {
		if i < nextIndex || (markCurrentAsPlayed && i == nextIndex) {
			items[i].Played = true
		}
	}

	if err := s.save(guildID, items); err != nil {
		return nil, err
	}
	return &next, nil
}

// PrevItem steps the cursor one item back: the current item is unmarked and
// its predecessor, which stays played, becomes current and is returned.
// Without a current item nothing mutates. When the current item is the
// first one it is still unmarked, rewinding to the nothing-played state,
// but nil is returned since there is no predecessor.
func (s *Store) PrevItem(guildID string) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(guildID)
	if err != nil {
		return nil, err
	}

	currIndex := -1
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Played {
			currIndex = i
			break
		}
	}
	if currIndex == -1 {
		return nil, nil
	}

	items[currIndex].Played = false
	if err := s.save(guildID, items); err != nil {
		return nil, err
	}

	if currIndex == 0 {
		return nil, nil
	}

	prev := items[currIndex-1]
	return &prev, nil
}

// HasItems reports whether the guild has a non-empty queue.
func (s *Store) HasItems(guildID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(guildID)
	if err != nil {
		return false, err
	}
	return len(items) > 0, nil
}

// Destroy removes the guild's queue. Calling it when no queue exists is a
// no-op.
func (s *Store) Destroy(guildID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ds.Delete(guildKey(guildID)); err != nil {
		log.Printf("[Queue] Failed to destroy queue for guild %s: %v", guildID, err)
	}
}

// load returns the guild's queue or nil when none is stored.
func (s *Store) load(guildID string) ([]Item, error) {
	var items []Item
	found, err := s.ds.Get(guildKey(guildID), &items)
	if err != nil {
		return nil, fmt.Errorf("error reading queue for guild %s: %w", guildID, err)
	}
	if !found {
		return nil, nil
	}
	return items, nil
}

func (s *Store) save(guildID string, items []Item) error {
	assertPlayedPrefix(guildID, items)
	if err := s.ds.Set(guildKey(guildID), items); err != nil {
		return fmt.Errorf("error saving queue for guild %s: %w", guildID, err)
	}
	return nil
}

// assertPlayedPrefix enforces the queue invariant: played items always form
// a prefix of the sequence. A violation means a serialization bug, not bad
// user input, so it fails loudly.
func assertPlayedPrefix(guildID string, items []Item) {
	seenUnplayed := false
	for i, item := range items {
		if !item.Played {
			seenUnplayed = true
			continue
		}
		if seenUnplayed {
			panic(fmt.Sprintf("queue invariant violated for guild %s: played item at index %d follows an unplayed one", guildID, i))
		}
	}
}
