// Package whispercpp provides an in-process transcription provider backed
// by the whisper.cpp CGO bindings, avoiding HTTP overhead entirely. The
// whisper.cpp static library (libwhisper.a) and headers (whisper.h) must be
// available at link time via LIBRARY_PATH and C_INCLUDE_PATH.
package whispercpp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/revoicehq/revoice/pkg/audio"
	"github.com/revoicehq/revoice/pkg/provider/transcribe"
)

// whisper.cpp models are trained on 16 kHz mono audio.
const modelSampleRate = 16000

// Compile-time assertion that Provider satisfies transcribe.Provider.
var _ transcribe.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the language code for transcription (e.g., "en", "de").
// Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// Provider implements transcribe.Provider over a whisper.cpp model loaded
// once at startup. The model is shared; each Transcribe call creates its own
// whisper context, so concurrent calls do not interfere.
type Provider struct {
	model    whisperlib.Model
	language string
}

// New loads the whisper.cpp model from the given file path. The caller must
// call Close when the provider is no longer needed.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whispercpp: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whispercpp: load model %q: %w", modelPath, err)
	}
	p := &Provider{model: model, language: "en"}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements transcribe.Provider.
func (p *Provider) Name() string { return "whisper-native" }

// Close releases the whisper model.
func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe reads the clip, resamples it to the model rate and runs
// inference on a fresh whisper context.
func (p *Provider) Transcribe(ctx context.Context, clipWAV string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("whispercpp: %w", err)
	}
	c, err := audio.ReadWAV(clipWAV)
	if err != nil {
		return "", fmt.Errorf("whispercpp: read clip: %w", err)
	}
	mono := audio.Resample(c.Samples, c.Rate, modelSampleRate)
	samples := make([]float32, len(mono))
	for i, s := range mono {
		samples[i] = float32(s)
	}

	// Contexts are not thread-safe but are cheap relative to inference;
	// the shared model carries the weights.
	wctx, err := p.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whispercpp: create context: %w", err)
	}
	if err := wctx.SetLanguage(p.language); err != nil {
		slog.Warn("whispercpp: failed to set language, using default",
			"language", p.language, "error", err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whispercpp: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whispercpp: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}
