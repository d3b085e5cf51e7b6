// /internal/voice/stream.go
package voice

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"time"

	youtube "github.com/kkdai/youtube/v2"
)

const (
	channels   = 2
	sampleRate = 48000
	frameSize  = 960 // 20ms at 48kHz
)

// openPCMStream turns a watch URL into a raw s16le PCM stream: the direct
// media link is resolved first, then ffmpeg decodes it to PCM on stdout.
// The returned cleanup kills the decoder process.
func openPCMStream(trackURL string) (io.ReadCloser, func(), error) {
	videoID, err := youtube.ExtractVideoID(trackURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid track URL %q: %w", trackURL, err)
	}

	client := &youtube.Client{
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}

	video, err := client.GetVideo(videoID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch video %s: %w", videoID, err)
	}

	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return nil, nil, errors.New("no audio formats found for video")
	}

	link, err := client.GetStreamURL(video, &formats[0])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get stream URL: %w", err)
	}

	ffmpeg := exec.Command("ffmpeg",
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-i", link,
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", fmt.Sprintf("%d", channels),
		"-loglevel", "warning",
		"pipe:1",
	)

	reader, err := ffmpeg.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdout pipe error: %w", err)
	}

	if err := ffmpeg.Start(); err != nil {
		return nil, nil, fmt.Errorf("command start error: %w", err)
	}

	cleanup := func() {
		ffmpeg.Process.Kill()
	}

	return reader, cleanup, nil
}
