// Package transcribe defines the speech-to-text provider interface used to
// transcribe diarized segment clips.
package transcribe

import "context"

// Provider converts one audio clip into text.
type Provider interface {
	// Transcribe returns the text spoken in clipWAV. Silence or
	// unintelligible audio yields an empty string, not an error.
	Transcribe(ctx context.Context, clipWAV string) (string, error)

	// Name returns the provider's identifier for logs and metrics.
	Name() string
}
