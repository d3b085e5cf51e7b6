// /internal/resolver/youtube.go
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/keshon/tunevault/pkg/retrylimit"
	youtube "github.com/kkdai/youtube/v2"
)

var (
	watchURLPattern = regexp.MustCompile(`"url":"/watch\?v=([a-zA-Z0-9_-]{11})`)

	ErrNoVideoMatch = errors.New("no video found for the given query")
)

// YouTube resolves YouTube links and free-text queries. Metadata lookups go
// through the youtube client, search scrapes the public results page the
// same way a browser request would.
type YouTube struct {
	baseURL string
	client  *youtube.Client
	http    *http.Client
	limiter *retrylimit.AdaptiveLimiter
}

func NewYouTube() *YouTube {
	httpClient := &http.Client{Timeout: 10 * time.Second}
	return &YouTube{
		baseURL: "https://www.youtube.com",
		client:  &youtube.Client{HTTPClient: httpClient},
		http:    httpClient,
		limiter: retrylimit.NewAdaptiveLimiter(5, 1, 20),
	}
}

func (y *YouTube) Classify(input string) Kind {
	input = strings.TrimSpace(input)
	if input == "" {
		return KindInvalid
	}

	if !isYouTubeURL(input) {
		// Anything that is not a YouTube link is treated as a search query,
		// including bare text with spaces.
		return KindQuery
	}

	if isPlaylistURL(input) {
		return KindPlaylist
	}
	if _, err := youtube.ExtractVideoID(input); err == nil {
		return KindTrack
	}
	return KindInvalid
}

func (y *YouTube) ResolveTrack(ctx context.Context, trackURL string) (*TrackInfo, error) {
	videoID, err := youtube.ExtractVideoID(trackURL)
	if err != nil {
		return nil, fmt.Errorf("invalid video URL %q: %w", trackURL, err)
	}

	var video *youtube.Video
	err = retrylimit.WithRetry(ctx, func() error {
		var vErr error
		video, vErr = y.client.GetVideoContext(ctx, videoID)
		return vErr
	}, y.limiter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch video info for %s: %w", videoID, err)
	}

	return &TrackInfo{
		URL:      y.baseURL + "/watch?v=" + videoID,
		Title:    video.Title,
		Author:   strings.TrimSuffix(video.Author, " - Topic"),
		Duration: video.Duration,
	}, nil
}

func (y *YouTube) ResolvePlaylist(ctx context.Context, playlistURL string) (*PlaylistInfo, error) {
	var playlist *youtube.Playlist
	err := retrylimit.WithRetry(ctx, func() error {
		var pErr error
		playlist, pErr = y.client.GetPlaylistContext(ctx, playlistURL)
		return pErr
	}, y.limiter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlist info: %w", err)
	}

	urls := make([]string, 0, len(playlist.Videos))
	seen := make(map[string]struct{}, len(playlist.Videos))
	for _, entry := range playlist.Videos {
		if _, ok := seen[entry.ID]; ok {
			continue
		}
		seen[entry.ID] = struct{}{}
		urls = append(urls, y.baseURL+"/watch?v="+entry.ID)
	}

	return &PlaylistInfo{Title: playlist.Title, URLs: urls}, nil
}

// Search returns the watch URL of the first result for a free-text query.
func (y *YouTube) Search(ctx context.Context, query string) (string, error) {
	searchURL := fmt.Sprintf("%s/results?search_query=%s", y.baseURL, url.QueryEscape(query))

	var body []byte
	err := retrylimit.WithRetry(ctx, func() error {
		req, rErr := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
		if rErr != nil {
			return retrylimit.Fatal(rErr)
		}

		resp, rErr := y.http.Do(req)
		if rErr != nil {
			return rErr
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("YouTube search failed with status code %v", resp.StatusCode)
		}

		body, rErr = io.ReadAll(resp.Body)
		return rErr
	}, y.limiter)
	if err != nil {
		return "", err
	}

	matches := watchURLPattern.FindStringSubmatch(string(body))
	if len(matches) < 2 {
		return "", ErrNoVideoMatch
	}

	return fmt.Sprintf("%s/watch?v=%s", y.baseURL, matches[1]), nil
}

func isYouTubeURL(input string) bool {
	return strings.Contains(input, "youtube.com/") || strings.Contains(input, "youtu.be/")
}

func isPlaylistURL(input string) bool {
	u, err := url.Parse(input)
	if err != nil {
		return false
	}
	return u.Query().Get("list") != ""
}
