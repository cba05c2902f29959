// Package diarize defines the speaker-diarization provider interface: an
// external worker that answers who spoke when.
package diarize

import "context"

// Turn is one contiguous span of speech attributed to a single speaker.
type Turn struct {
	SpeakerID string  `json:"speaker"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
}

// Provider segments an audio file by speaker.
type Provider interface {
	// Diarize returns the speaker turns of wavPath in chronological
	// order. minSpeakers and maxSpeakers bound the search; 0 means the
	// provider's default.
	Diarize(ctx context.Context, wavPath string, minSpeakers, maxSpeakers int) ([]Turn, error)

	// Name returns the provider's identifier for logs and metrics.
	Name() string
}
