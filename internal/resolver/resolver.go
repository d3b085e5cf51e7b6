// /internal/resolver/resolver.go
package resolver

import (
	"context"
	"fmt"
	"time"
)

// Kind classifies raw user input before any network lookup happens.
type Kind int

const (
	KindInvalid Kind = iota
	KindTrack
	KindPlaylist
	KindQuery
)

func (k Kind) String() string {
	switch k {
	case KindTrack:
		return "track"
	case KindPlaylist:
		return "playlist"
	case KindQuery:
		return "query"
	default:
		return "invalid"
	}
}

// TrackInfo is the display metadata for a single playable track.
type TrackInfo struct {
	URL      string        `json:"url"`
	Title    string        `json:"title"`
	Author   string        `json:"author,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// PlaylistInfo is an expanded playlist: its title and the track URLs in
// playlist order.
type PlaylistInfo struct {
	Title string
	URLs  []string
}

// Resolver turns user input into playable media references. Implementations
// do network I/O and must honor the context on every lookup.
type Resolver interface {
	Classify(input string) Kind
	ResolveTrack(ctx context.Context, url string) (*TrackInfo, error)
	ResolvePlaylist(ctx context.Context, url string) (*PlaylistInfo, error)
	Search(ctx context.Context, query string) (string, error)
}

// FormatDuration renders a duration as mm:ss, or hh:mm:ss once it reaches
// an hour.
func FormatDuration(d time.Duration) string {
	total := int(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	if hours == 0 {
		return fmt.Sprintf("%02d:%02d", minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
