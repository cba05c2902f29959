package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/revoicehq/revoice/internal/job"
	"github.com/revoicehq/revoice/pkg/audio/mix"
	"github.com/revoicehq/revoice/pkg/provider/musicgen"
	"github.com/revoicehq/revoice/pkg/provider/tts"
)

// Standalone workflows (text-to-speech, music generation, mixing) use a
// shorter progress scale than the dubbing pipeline: they start at their
// first working stage and jump straight to done.
const (
	progressSynthStart = 0.30
	progressMixStart   = 0.20
	progressMixDone    = 0.70
)

// RunTTS renders a standalone synthesis job. Run it via
// [Orchestrator.Background].
func (o *Orchestrator) RunTTS(ctx context.Context, jobID string, req tts.Request) error {
	if o.cfg.TTS == nil {
		return errors.New("no TTS provider configured")
	}
	if err := o.advance(jobID, job.StatusGenerating, progressSynthStart); err != nil {
		return err
	}
	out := filepath.Join(o.ws.OutputDir(jobID), "tts_output.wav")
	err := o.timed(ctx, "generating_speech", func() error {
		return o.cfg.TTS.Synthesize(ctx, req, out)
	})
	o.recordProvider(ctx, o.cfg.TTS.Name(), "tts", err)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	return o.complete(ctx, jobID, out)
}

// RunMusic renders a standalone music-generation job. Run it via
// [Orchestrator.Background].
func (o *Orchestrator) RunMusic(ctx context.Context, jobID string, req musicgen.Request) error {
	if o.cfg.Music == nil {
		return errors.New("no music provider configured")
	}
	if err := o.advance(jobID, job.StatusGenerating, progressSynthStart); err != nil {
		return err
	}
	out := filepath.Join(o.ws.OutputDir(jobID), "music_output.wav")
	err := o.timed(ctx, "generating_music", func() error {
		return o.cfg.Music.Generate(ctx, req, out)
	})
	o.recordProvider(ctx, o.cfg.Music.Name(), "music", err)
	if err != nil {
		return fmt.Errorf("generate music: %w", err)
	}
	return o.complete(ctx, jobID, out)
}

// RunMix blends an uploaded speech track with an uploaded music bed.
// Run it via [Orchestrator.Background].
func (o *Orchestrator) RunMix(ctx context.Context, jobID, speechPath, musicPath string, opt mix.SimpleOptions) error {
	if err := o.advance(jobID, job.StatusMerging, progressMixStart); err != nil {
		return err
	}
	out := filepath.Join(o.ws.OutputDir(jobID), "mixed_output.wav")
	if err := o.timed(ctx, "merging", func() error {
		return o.merger.MixSimple(ctx, speechPath, musicPath, out, opt)
	}); err != nil {
		return fmt.Errorf("mix: %w", err)
	}
	o.progress(jobID, progressMixDone)
	return o.complete(ctx, jobID, out)
}

// complete exports the convenience MP3 and moves the job to completed,
// recording the absolute artifact path on the job.
func (o *Orchestrator) complete(ctx context.Context, jobID, outWAV string) error {
	outMP3 := strings.TrimSuffix(outWAV, ".wav") + ".mp3"
	if err := o.media.ExportMP3(ctx, outWAV, outMP3); err != nil {
		slog.Warn("mp3 export failed", "job_id", jobID, "error", err)
	}
	_, err := o.jobs.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusCompleted
		j.Progress = ProgressDone
		j.OutputFile = outWAV
	})
	if err == nil {
		o.metrics.JobsCompleted.Add(ctx, 1)
	}
	return err
}
