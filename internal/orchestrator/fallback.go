package orchestrator

import (
	"context"

	"github.com/revoicehq/revoice/internal/resilience"
	"github.com/revoicehq/revoice/pkg/provider/transcribe"
	"github.com/revoicehq/revoice/pkg/provider/tts"
)

// FallbackTranscriber is a transcribe.Provider that routes each call
// through a [resilience.FallbackGroup], so a dead primary (local server
// down, API outage) degrades to the fallback instead of failing jobs.
type FallbackTranscriber struct {
	group *resilience.FallbackGroup[transcribe.Provider]
}

// Compile-time interface check.
var _ transcribe.Provider = (*FallbackTranscriber)(nil)

// NewFallbackTranscriber builds a failover chain from primary plus any
// number of fallbacks, tried in order.
func NewFallbackTranscriber(primary transcribe.Provider, fallbacks ...transcribe.Provider) *FallbackTranscriber {
	g := resilience.NewFallbackGroup("transcriber/"+primary.Name(), primary)
	for _, f := range fallbacks {
		g.Add("transcriber/"+f.Name(), f)
	}
	return &FallbackTranscriber{group: g}
}

// Transcribe implements transcribe.Provider.
func (f *FallbackTranscriber) Transcribe(ctx context.Context, clipWAV string) (string, error) {
	return resilience.Call(f.group, func(p transcribe.Provider) (string, error) {
		return p.Transcribe(ctx, clipWAV)
	})
}

// Name implements transcribe.Provider.
func (f *FallbackTranscriber) Name() string { return "failover" }

// FallbackTTS is a tts.Provider with the same failover behavior.
type FallbackTTS struct {
	group *resilience.FallbackGroup[tts.Provider]
}

// Compile-time interface check.
var _ tts.Provider = (*FallbackTTS)(nil)

// NewFallbackTTS builds a failover chain from primary plus any number of
// fallbacks, tried in order.
func NewFallbackTTS(primary tts.Provider, fallbacks ...tts.Provider) *FallbackTTS {
	g := resilience.NewFallbackGroup("tts/"+primary.Name(), primary)
	for _, f := range fallbacks {
		g.Add("tts/"+f.Name(), f)
	}
	return &FallbackTTS{group: g}
}

// Synthesize implements tts.Provider.
func (f *FallbackTTS) Synthesize(ctx context.Context, req tts.Request, outPath string) error {
	return f.group.Do(func(p tts.Provider) error {
		return p.Synthesize(ctx, req, outPath)
	})
}

// Name implements tts.Provider.
func (f *FallbackTTS) Name() string { return "failover" }
