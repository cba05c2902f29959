package orchestrator

import (
	"context"

	"github.com/revoicehq/revoice/pkg/audio/mix"
	"github.com/revoicehq/revoice/pkg/provider/musicgen"
	"github.com/revoicehq/revoice/pkg/provider/tts"
)

// The Start helpers are the fire-and-forget entry points the HTTP layer
// uses: each wraps its workflow in [Orchestrator.Background].

// StartAnalysis kicks off the analysis workflow for a fresh job.
func (o *Orchestrator) StartAnalysis(jobID string) {
	o.Background(jobID, "analysis", func(ctx context.Context) error {
		return o.RunAnalysis(ctx, jobID)
	})
}

// StartTTS kicks off a standalone synthesis job.
func (o *Orchestrator) StartTTS(jobID string, req tts.Request) {
	o.Background(jobID, "generating_speech", func(ctx context.Context) error {
		return o.RunTTS(ctx, jobID, req)
	})
}

// StartMusic kicks off a standalone music-generation job.
func (o *Orchestrator) StartMusic(jobID string, req musicgen.Request) {
	o.Background(jobID, "generating_music", func(ctx context.Context) error {
		return o.RunMusic(ctx, jobID, req)
	})
}

// StartMix kicks off a standalone mixing job.
func (o *Orchestrator) StartMix(jobID, speechPath, musicPath string, opt mix.SimpleOptions) {
	o.Background(jobID, "merging", func(ctx context.Context) error {
		return o.RunMix(ctx, jobID, speechPath, musicPath, opt)
	})
}
