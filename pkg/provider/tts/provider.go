// Package tts defines the text-to-speech provider interface used for voice
// replacement and the standalone synthesis workflow.
package tts

import "context"

// Request describes one synthesis call.
type Request struct {
	// Text is the content to speak.
	Text string

	// ReferenceWAV conditions the voice on a speaker sample; empty uses
	// the provider's default voice. ReferenceText optionally transcribes
	// the sample for providers that want it.
	ReferenceWAV  string
	ReferenceText string

	// Language is a BCP-47-ish language hint (e.g. "en", "de").
	Language string

	// Model overrides the provider's configured model for this call;
	// empty keeps the configured default.
	Model string

	// Speed and Pitch adjust delivery; 0 means provider default, valid
	// range is [0.5, 2.0].
	Speed float64
	Pitch float64

	// TargetDuration asks the provider to fit the output to this many
	// seconds (within 100 ms) when positive, typically by time-stretching
	// its raw output.
	TargetDuration float64
}

// Provider synthesizes speech into a WAV file.
//
// Implementations must be safe for concurrent use; the standalone synthesis
// workflow and a running replacement job may synthesize at the same time.
type Provider interface {
	// Synthesize renders req into a 16-bit PCM WAV at outPath.
	Synthesize(ctx context.Context, req Request, outPath string) error

	// Name returns the provider's identifier for logs and metrics.
	Name() string
}
