package resolver

import (
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	y := NewYouTube()

	tests := []struct {
		input string
		want  Kind
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", KindTrack},
		{"https://youtu.be/dQw4w9WgXcQ", KindTrack},
		{"https://music.youtube.com/watch?v=dQw4w9WgXcQ", KindTrack},
		{"https://www.youtube.com/playlist?list=PL1234567890", KindPlaylist},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PL1234567890", KindPlaylist},
		{"never gonna give you up", KindQuery},
		{"rick astley", KindQuery},
		{"https://example.com/song.mp3", KindQuery},
		{"https://www.youtube.com/channel/UC123", KindInvalid},
		{"", KindInvalid},
		{"   ", KindInvalid},
	}

	for _, tt := range tests {
		if got := y.Classify(tt.input); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00"},
		{42 * time.Second, "00:42"},
		{3*time.Minute + 7*time.Second, "03:07"},
		{59*time.Minute + 59*time.Second, "59:59"},
		{time.Hour, "01:00:00"},
		{2*time.Hour + 3*time.Minute + 4*time.Second, "02:03:04"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
