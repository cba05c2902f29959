package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/revoicehq/revoice/internal/job"
	"github.com/revoicehq/revoice/internal/workspace"
	"github.com/revoicehq/revoice/pkg/audio/align"
	"github.com/revoicehq/revoice/pkg/audio/mix"
	"github.com/revoicehq/revoice/pkg/provider/tts"
)

// Replacement precondition failures. The server maps these to 400s.
var (
	ErrNotAwaiting      = errors.New("orchestrator: job is not awaiting voice assignment")
	ErrUnknownSpeaker   = errors.New("orchestrator: unknown speaker")
	ErrMissingReference = errors.New("orchestrator: reference recording not found")
)

// BeginReplacement validates the voice assignments synchronously, stores
// them on the job, and starts the replacement workflow in the
// background. assignments maps speaker IDs to reference WAV paths.
func (o *Orchestrator) BeginReplacement(jobID string, assignments map[string]string) error {
	if o.cfg.TTS == nil {
		return errors.New("orchestrator: no TTS provider configured")
	}
	j, err := o.jobs.Get(jobID)
	if err != nil {
		return err
	}
	if j.Status != job.StatusAwaitingVoices {
		return fmt.Errorf("%w: status is %q", ErrNotAwaiting, j.Status)
	}

	known := make(map[string]bool, len(j.Speakers))
	for _, s := range j.Speakers {
		known[s.ID] = true
	}
	for speakerID, ref := range assignments {
		if !known[speakerID] {
			return fmt.Errorf("%w: %q", ErrUnknownSpeaker, speakerID)
		}
		if _, err := os.Stat(ref); err != nil {
			return fmt.Errorf("%w: speaker %q: %q", ErrMissingReference, speakerID, ref)
		}
	}

	if _, err := o.jobs.Update(jobID, func(j *job.Job) {
		for i := range j.Speakers {
			if ref, ok := assignments[j.Speakers[i].ID]; ok {
				j.Speakers[i].VoiceRef = ref
			}
		}
		j.Status = job.StatusGenerating
		j.Progress = ProgressGenerating
	}); err != nil {
		return err
	}

	o.Background(jobID, "replacement", func(ctx context.Context) error {
		return o.runReplacement(ctx, jobID)
	})
	return nil
}

// runReplacement synthesizes every transcribed segment in its assigned
// voice, aligns the clips into their original slots, and merges them
// with the accompaniment into the final output.
func (o *Orchestrator) runReplacement(ctx context.Context, jobID string) error {
	j, err := o.jobs.Get(jobID)
	if err != nil {
		return err
	}
	refs := make(map[string]string, len(j.Speakers))
	for _, s := range j.Speakers {
		refs[s.ID] = s.VoiceRef
	}

	items, err := o.synthesizeSegments(ctx, jobID, j.Segments, refs)
	if err != nil {
		return err
	}

	if err := o.advance(jobID, job.StatusAligning, ProgressAligning); err != nil {
		return err
	}
	items = o.aligner.AlignAll(ctx, items, o.ws.SegmentsDir(jobID))

	if err := o.advance(jobID, job.StatusMerging, ProgressMerging); err != nil {
		return err
	}
	outWAV := filepath.Join(o.ws.OutputDir(jobID), "output.wav")
	if err := o.mergeAligned(ctx, jobID, items, outWAV); err != nil {
		return err
	}

	outputFile, err := o.finalizeOutput(ctx, jobID, j, outWAV)
	if err != nil {
		return err
	}

	_, err = o.jobs.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusCompleted
		j.Progress = ProgressDone
		j.OutputFile = outputFile
	})
	if err == nil {
		o.metrics.JobsCompleted.Add(ctx, 1)
	}
	return err
}

// synthesizeSegments renders one clip per non-empty segment, asking the
// provider to fit each clip to its slot duration. Segments whose speaker
// has no assigned voice are skipped; their slot stays silent.
func (o *Orchestrator) synthesizeSegments(ctx context.Context, jobID string, segments []job.Segment, refs map[string]string) ([]align.Item, error) {
	var items []align.Item
	for i, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if seg.Text == "" {
			slog.Debug("skipping segment without text", "job_id", jobID, "segment", i)
			continue
		}
		if refs[seg.SpeakerID] == "" {
			slog.Warn("skipping segment, speaker has no assigned voice",
				"job_id", jobID, "segment", i, "speaker", seg.SpeakerID)
			continue
		}
		out := filepath.Join(o.ws.SegmentsDir(jobID), fmt.Sprintf("tts_%04d.wav", i))
		err := o.cfg.TTS.Synthesize(ctx, tts.Request{
			Text:           seg.Text,
			ReferenceWAV:   refs[seg.SpeakerID],
			TargetDuration: seg.Duration(),
		}, out)
		o.recordProvider(ctx, o.cfg.TTS.Name(), "tts", err)
		if err != nil {
			return nil, fmt.Errorf("synthesize segment %d: %w", i, err)
		}
		items = append(items, align.Item{
			AudioPath: out,
			SpeakerID: seg.SpeakerID,
			Start:     seg.Start,
			End:       seg.End,
		})
		o.progress(jobID, ProgressGenerating+(ProgressAligning-ProgressGenerating)*float64(i+1)/float64(len(segments)))
	}
	if len(items) == 0 {
		return nil, errors.New("no segments with text and an assigned voice to synthesize")
	}
	return items, nil
}

// mergeAligned stamps the aligned clips onto a canvas the length of the
// original recording and mixes the accompaniment underneath.
func (o *Orchestrator) mergeAligned(ctx context.Context, jobID string, items []align.Item, outWAV string) error {
	placements := make([]mix.Placement, 0, len(items))
	var lastEnd float64
	for _, it := range items {
		placements = append(placements, mix.Placement{
			Path:  it.AlignedPath,
			Start: it.Start,
			End:   it.End,
		})
		if it.End > lastEnd {
			lastEnd = it.End
		}
	}

	total := lastEnd
	if info, err := o.media.Probe(ctx, o.ws.InputWAV(jobID)); err == nil && info.Duration > 0 {
		total = info.Duration
	}

	musicPath, err := o.ws.ResolveMusic(jobID)
	if err != nil && !errors.Is(err, workspace.ErrNoAccompaniment) {
		return err
	}
	return o.merger.Merge(ctx, placements, musicPath, outWAV, total)
}

// finalizeOutput rebuilds the video container when the job came from
// video and exports a convenience MP3. The MP3 is best-effort. Returns
// the absolute path of the final artifact.
func (o *Orchestrator) finalizeOutput(ctx context.Context, jobID string, j *job.Job, outWAV string) (string, error) {
	outputFile := outWAV
	if j.InputKind == job.InputVideo {
		original, err := o.ws.ResolveOriginal(jobID)
		if err != nil {
			return "", err
		}
		if original != "" {
			outMP4 := filepath.Join(o.ws.OutputDir(jobID), "output.mp4")
			if err := o.media.RebuildVideo(ctx, original, outWAV, outMP4); err != nil {
				return "", fmt.Errorf("rebuild video: %w", err)
			}
			outputFile = outMP4
		}
	}

	outMP3 := filepath.Join(o.ws.OutputDir(jobID), "output.mp3")
	if err := o.media.ExportMP3(ctx, outWAV, outMP3); err != nil {
		slog.Warn("mp3 export failed", "job_id", jobID, "error", err)
	}
	return outputFile, nil
}
