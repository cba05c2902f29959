// Package orchestrator drives the dubbing pipeline: it walks jobs through
// analysis (extract, separate, diarize, transcribe), voice replacement
// (synthesize, align, merge), and the standalone synthesis workflows.
//
// Workflows run in fire-and-forget goroutines started via
// [Orchestrator.Background]; a panic or error inside a workflow marks the
// job failed instead of crashing the process.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/revoicehq/revoice/internal/job"
	"github.com/revoicehq/revoice/internal/media"
	"github.com/revoicehq/revoice/internal/observe"
	"github.com/revoicehq/revoice/internal/workspace"
	"github.com/revoicehq/revoice/pkg/audio/align"
	"github.com/revoicehq/revoice/pkg/audio/mix"
	"github.com/revoicehq/revoice/pkg/provider/diarize"
	"github.com/revoicehq/revoice/pkg/provider/musicgen"
	"github.com/revoicehq/revoice/pkg/provider/separate"
	"github.com/revoicehq/revoice/pkg/provider/transcribe"
	"github.com/revoicehq/revoice/pkg/provider/tts"
)

// Published progress values. Analysis walks 0.05 through 0.65 and parks;
// replacement resumes at 0.70 and ends at 1.0. Per-segment work
// interpolates inside its 0.15-wide band.
const (
	ProgressExtracting   = 0.05
	ProgressSeparating   = 0.15
	ProgressDiarizing    = 0.35
	ProgressTranscribing = 0.50
	ProgressAwaiting     = 0.65
	ProgressGenerating   = 0.70
	ProgressAligning     = 0.85
	ProgressMerging      = 0.90
	ProgressDone         = 1.0
)

// MediaTools is the ffmpeg surface the orchestrator needs. *media.Tools
// implements it; tests substitute a fake.
type MediaTools interface {
	ExtractAudio(ctx context.Context, in, out string) error
	RebuildVideo(ctx context.Context, video, audioTrack, out string) error
	ExportMP3(ctx context.Context, wav, out string) error
	Probe(ctx context.Context, path string) (media.Info, error)
}

// Compile-time interface check.
var _ MediaTools = (*media.Tools)(nil)

// Config carries the providers and tuning knobs for an [Orchestrator].
// Separator, Diarizer, Transcriber, TTS, and Music may each be nil; the
// workflows that need a missing provider fail their jobs with a clear
// error instead of panicking.
type Config struct {
	SampleRate  int
	MinSpeakers int
	MaxSpeakers int

	Separator   separate.Provider
	Diarizer    diarize.Provider
	Transcriber transcribe.Provider
	TTS         tts.Provider
	Music       musicgen.Provider

	// Metrics defaults to [observe.DefaultMetrics] when nil.
	Metrics *observe.Metrics
}

// Orchestrator owns the pipeline workflows over one job store.
type Orchestrator struct {
	jobs    *job.Store
	ws      *workspace.Manager
	media   MediaTools
	aligner *align.Aligner
	merger  *mix.Merger
	cfg     Config
	metrics *observe.Metrics
	warm    singleflight.Group
}

// New creates an Orchestrator for the given store and workspace.
func New(jobs *job.Store, ws *workspace.Manager, tools MediaTools, cfg Config) *Orchestrator {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 24000
	}
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Orchestrator{
		jobs:    jobs,
		ws:      ws,
		media:   tools,
		aligner: align.New(cfg.SampleRate),
		merger:  mix.New(cfg.SampleRate),
		cfg:     cfg,
		metrics: m,
	}
}

// Background runs fn in its own goroutine. A returned error or a panic
// marks the job failed; the process itself never dies from a workflow.
func (o *Orchestrator) Background(jobID, stage string, fn func(ctx context.Context) error) {
	go func() {
		ctx := context.Background()
		o.metrics.ActiveJobs.Add(ctx, 1)
		defer o.metrics.ActiveJobs.Add(ctx, -1)
		start := time.Now()

		defer func() {
			if r := recover(); r != nil {
				slog.Error("workflow panicked",
					"job_id", jobID, "stage", stage,
					"panic", r, "stack", string(debug.Stack()))
				o.fail(ctx, jobID, stage, fmt.Errorf("panic: %v", r))
			}
		}()

		if err := fn(ctx); err != nil {
			o.fail(ctx, jobID, stage, err)
			return
		}
		o.metrics.RecordStage(ctx, stage, time.Since(start).Seconds())
	}()
}

// fail moves the job to the failed state and records why.
func (o *Orchestrator) fail(ctx context.Context, jobID, stage string, err error) {
	slog.Error("workflow failed", "job_id", jobID, "stage", stage, "error", err)
	o.metrics.RecordJobFailed(ctx, stage)
	if _, uerr := o.jobs.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusFailed
		j.Error = err.Error()
	}); uerr != nil {
		slog.Error("could not record job failure", "job_id", jobID, "error", uerr)
	}
}

// advance publishes a status and progress change.
func (o *Orchestrator) advance(jobID string, status job.Status, progress float64) error {
	_, err := o.jobs.Update(jobID, func(j *job.Job) {
		j.Status = status
		j.Progress = progress
	})
	return err
}

// progress publishes a progress change without touching the status.
func (o *Orchestrator) progress(jobID string, p float64) {
	if _, err := o.jobs.Update(jobID, func(j *job.Job) { j.Progress = p }); err != nil {
		slog.Warn("could not publish progress", "job_id", jobID, "error", err)
	}
}

// timed runs fn and records its wall time as a pipeline stage metric.
func (o *Orchestrator) timed(ctx context.Context, stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	o.metrics.RecordStage(ctx, stage, time.Since(start).Seconds())
	return err
}

// moveFile renames src to dst, falling back to copy across filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return err
	}
	return os.Remove(src)
}
