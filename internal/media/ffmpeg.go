// Package media wraps the external ffmpeg and ffprobe binaries for audio
// extraction, transcoding, container rebuilds and stream probing.
package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
)

// video extensions accepted for upload; everything else that passes upload
// validation is treated as audio.
var videoExts = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true,
	".mov": true, ".webm": true, ".flv": true,
}

// IsVideo reports whether a filename carries a known video extension.
func IsVideo(name string) bool {
	return videoExts[strings.ToLower(filepath.Ext(name))]
}

// Tools invokes ffmpeg/ffprobe with a fixed working sample rate.
type Tools struct {
	FFmpeg     string
	FFprobe    string
	SampleRate int
}

// NewTools returns a Tools using the given binary paths, defaulting to
// looking the commands up on PATH.
func NewTools(ffmpeg, ffprobe string, sampleRate int) *Tools {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	return &Tools{FFmpeg: ffmpeg, FFprobe: ffprobe, SampleRate: sampleRate}
}

// ExtractAudio demuxes or converts any input into mono 16-bit PCM WAV at
// the working sample rate. Used both for video soundtracks and for
// normalizing uploaded audio files.
func (t *Tools) ExtractAudio(ctx context.Context, in, out string) error {
	return t.runFFmpeg(ctx, "extract audio",
		"-y", "-i", in,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprint(t.SampleRate),
		"-ac", "1",
		out,
	)
}

// RebuildVideo muxes a replacement audio track into the original video
// container, copying the video stream untouched.
func (t *Tools) RebuildVideo(ctx context.Context, video, audioTrack, out string) error {
	return t.runFFmpeg(ctx, "rebuild video",
		"-y", "-i", video, "-i", audioTrack,
		"-c:v", "copy",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-shortest",
		out,
	)
}

// ExportMP3 converts a WAV to MP3 at high VBR quality.
func (t *Tools) ExportMP3(ctx context.Context, wav, out string) error {
	return t.runFFmpeg(ctx, "export mp3",
		"-y", "-i", wav,
		"-codec:a", "libmp3lame",
		"-qscale:a", "2",
		out,
	)
}

func (t *Tools) runFFmpeg(ctx context.Context, action string, args ...string) error {
	cmd := exec.CommandContext(ctx, t.FFmpeg, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	slog.Debug("media: running ffmpeg", "action", action, "args", args)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("media: %s: %w: %s", action, err, lastLine(stderr.String()))
	}
	return nil
}

// lastLine trims ffmpeg's noisy stderr to the line carrying the actual
// failure.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
