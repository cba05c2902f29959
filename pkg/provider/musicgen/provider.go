// Package musicgen defines the music-generation provider interface: an
// external worker that renders a music track from a text prompt.
package musicgen

import "context"

// Request describes one generation call.
type Request struct {
	// Prompt is the textual description of the desired music.
	Prompt string

	// Duration is the requested track length in seconds.
	Duration float64

	// Style optionally narrows the genre; providers prepend it to the
	// prompt when they have no dedicated field for it.
	Style string

	// ReferenceWAV optionally conditions generation on an existing
	// melody.
	ReferenceWAV string
}

// Provider generates music into a WAV file.
type Provider interface {
	// Generate renders req into a WAV at outPath.
	Generate(ctx context.Context, req Request, outPath string) error

	// Name returns the provider's identifier for logs and metrics.
	Name() string
}
