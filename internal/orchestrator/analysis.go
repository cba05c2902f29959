package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/revoicehq/revoice/internal/job"
	"github.com/revoicehq/revoice/pkg/audio"
)

const (
	// maxMergeGap is the largest silence between same-speaker segments
	// that still counts as one utterance.
	maxMergeGap = 0.3

	// minSegmentDuration drops splinters too short to resynthesize.
	minSegmentDuration = 0.5
)

// RunAnalysis walks a fresh job through extraction, separation,
// diarization, and transcription, then parks it awaiting voice
// assignment. Run it via [Orchestrator.Background].
func (o *Orchestrator) RunAnalysis(ctx context.Context, jobID string) error {
	j, err := o.jobs.Get(jobID)
	if err != nil {
		return err
	}

	// Extract a mono PCM track from whatever was uploaded.
	if err := o.advance(jobID, job.StatusExtractingAudio, ProgressExtracting); err != nil {
		return err
	}
	input := filepath.Join(o.ws.InputDir(jobID), j.InputFilename)
	wav := o.ws.InputWAV(jobID)
	if err := o.timed(ctx, "extracting_audio", func() error {
		return o.media.ExtractAudio(ctx, input, wav)
	}); err != nil {
		return fmt.Errorf("extract audio: %w", err)
	}

	// Split speech from everything else.
	if err := o.advance(jobID, job.StatusSeparating, ProgressSeparating); err != nil {
		return err
	}
	vocals, err := o.separateVocals(ctx, jobID, wav)
	if err != nil {
		return fmt.Errorf("separate: %w", err)
	}

	// Who speaks when.
	if err := o.advance(jobID, job.StatusDiarizing, ProgressDiarizing); err != nil {
		return err
	}
	if o.cfg.Diarizer == nil {
		return errors.New("no diarization provider configured")
	}
	turns, err := o.cfg.Diarizer.Diarize(ctx, vocals, o.cfg.MinSpeakers, o.cfg.MaxSpeakers)
	o.recordProvider(ctx, o.cfg.Diarizer.Name(), "diarizer", err)
	if err != nil {
		return fmt.Errorf("diarize: %w", err)
	}
	if len(turns) == 0 {
		return errors.New("diarization found no speech")
	}

	// Fuse adjacent same-speaker turns and drop splinters first, so each
	// utterance is transcribed as one clip and sub-minimum fragments
	// never reach the transcriber.
	segments := make([]job.Segment, 0, len(turns))
	for _, turn := range turns {
		segments = append(segments, job.Segment{
			SpeakerID: turn.SpeakerID,
			Start:     turn.Start,
			End:       turn.End,
		})
	}
	segments = mergeShortSegments(segments)
	if len(segments) == 0 {
		return errors.New("no usable speech segments after merging")
	}

	// Transcribe each segment from its own clip. A failed clip keeps its
	// slot with empty text; losing one line must not kill the job.
	if err := o.advance(jobID, job.StatusTranscribing, ProgressTranscribing); err != nil {
		return err
	}
	if err := o.transcribeSegments(ctx, jobID, vocals, segments); err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}

	speakers := deriveSpeakers(segments)

	_, err = o.jobs.Update(jobID, func(j *job.Job) {
		j.Segments = segments
		j.Speakers = speakers
		j.Status = job.StatusAwaitingVoices
		j.Progress = ProgressAwaiting
	})
	return err
}

// separateVocals runs the separation provider and settles its outputs
// into the workspace layout: vocals/vocals.wav and music/accompaniment.wav.
func (o *Orchestrator) separateVocals(ctx context.Context, jobID, wav string) (string, error) {
	if o.cfg.Separator == nil {
		// No separator means the raw track doubles as the vocal track
		// and the final mix carries no accompaniment.
		slog.Warn("no separation provider configured, treating input as pure speech", "job_id", jobID)
		vocals := filepath.Join(o.ws.VocalsDir(jobID), "vocals.wav")
		data, err := os.ReadFile(wav)
		if err != nil {
			return "", err
		}
		return vocals, os.WriteFile(vocals, data, 0o644)
	}

	var v, a string
	err := o.timed(ctx, "separating", func() error {
		var err error
		v, a, err = o.cfg.Separator.Separate(ctx, wav, o.ws.Dir(jobID))
		return err
	})
	o.recordProvider(ctx, o.cfg.Separator.Name(), "separator", err)
	if err != nil {
		return "", err
	}

	vocals := filepath.Join(o.ws.VocalsDir(jobID), "vocals.wav")
	if err := moveFile(v, vocals); err != nil {
		return "", fmt.Errorf("place vocal stem: %w", err)
	}
	accompaniment := filepath.Join(o.ws.MusicDir(jobID), "accompaniment.wav")
	if err := moveFile(a, accompaniment); err != nil {
		return "", fmt.Errorf("place accompaniment stem: %w", err)
	}
	return vocals, nil
}

// transcribeSegments slices the vocal track per merged segment and fills
// each segment's text from its own clip.
func (o *Orchestrator) transcribeSegments(ctx context.Context, jobID, vocalsPath string, segments []job.Segment) error {
	if o.cfg.Transcriber == nil {
		return errors.New("no transcription provider configured")
	}
	o.warmTranscriber(ctx)

	clip, err := audio.ReadWAV(vocalsPath)
	if err != nil {
		return fmt.Errorf("read vocal track: %w", err)
	}

	for i := range segments {
		if err := ctx.Err(); err != nil {
			return err
		}
		seg := &segments[i]
		clipPath := filepath.Join(o.ws.SegmentsDir(jobID), fmt.Sprintf("clip_%04d.wav", i))
		text := ""
		if err := writeSlice(clip, seg.Start, seg.End, clipPath); err != nil {
			slog.Warn("could not cut segment clip", "job_id", jobID, "segment", i, "error", err)
		} else {
			text, err = o.cfg.Transcriber.Transcribe(ctx, clipPath)
			o.recordProvider(ctx, o.cfg.Transcriber.Name(), "transcriber", err)
			if err != nil {
				slog.Warn("segment transcription failed", "job_id", jobID, "segment", i, "error", err)
				text = ""
			}
		}
		seg.Text = strings.TrimSpace(text)
		o.progress(jobID, ProgressTranscribing+(ProgressAwaiting-ProgressTranscribing)*float64(i+1)/float64(len(segments)))
	}
	return nil
}

// writeSlice cuts [start,end) seconds out of clip into its own file.
func writeSlice(clip audio.Clip, start, end float64, outPath string) error {
	a := int(math.Round(start * float64(clip.Rate)))
	b := int(math.Round(end * float64(clip.Rate)))
	if a < 0 {
		a = 0
	}
	if b > len(clip.Samples) {
		b = len(clip.Samples)
	}
	if b <= a {
		return fmt.Errorf("empty slice [%f, %f)", start, end)
	}
	return audio.WriteWAV(outPath, audio.Clip{Samples: clip.Samples[a:b], Rate: clip.Rate})
}

// warmTranscriber loads the transcription model once by feeding it a
// short silent clip. Concurrent analyses share the single warm-up call.
func (o *Orchestrator) warmTranscriber(ctx context.Context) {
	o.warm.Do("transcriber", func() (any, error) {
		tmp, err := os.CreateTemp("", "warmup-*.wav")
		if err != nil {
			return nil, nil
		}
		tmp.Close()
		defer os.Remove(tmp.Name())
		silence := audio.Clip{Samples: make([]float64, o.cfg.SampleRate/2), Rate: o.cfg.SampleRate}
		if err := audio.WriteWAV(tmp.Name(), silence); err != nil {
			return nil, nil
		}
		if _, err := o.cfg.Transcriber.Transcribe(ctx, tmp.Name()); err != nil {
			slog.Debug("transcriber warm-up failed", "error", err)
		}
		return nil, nil
	})
}

// mergeShortSegments joins same-speaker segments separated by at most
// maxMergeGap seconds and drops fragments shorter than
// minSegmentDuration.
func mergeShortSegments(segs []job.Segment) []job.Segment {
	if len(segs) == 0 {
		return segs
	}
	merged := []job.Segment{segs[0]}
	for _, s := range segs[1:] {
		last := &merged[len(merged)-1]
		if s.SpeakerID == last.SpeakerID && s.Start-last.End <= maxMergeGap {
			last.End = s.End
			last.Text = joinText(last.Text, s.Text)
			continue
		}
		merged = append(merged, s)
	}

	kept := merged[:0]
	for _, s := range merged {
		if s.Duration() < minSegmentDuration {
			continue
		}
		kept = append(kept, s)
	}
	return kept
}

func joinText(a, b string) string {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}

// deriveSpeakers builds the speaker roster from the final segment list,
// labelled "Speaker 1", "Speaker 2", ... by order of first appearance.
func deriveSpeakers(segs []job.Segment) []job.Speaker {
	var speakers []job.Speaker
	index := make(map[string]int)
	for _, s := range segs {
		i, ok := index[s.SpeakerID]
		if !ok {
			i = len(speakers)
			index[s.SpeakerID] = i
			speakers = append(speakers, job.Speaker{
				ID:    s.SpeakerID,
				Label: fmt.Sprintf("Speaker %d", i+1),
			})
		}
		speakers[i].SegmentCount++
		speakers[i].TotalDuration += s.Duration()
	}
	return speakers
}

// recordProvider tracks one provider call in the metrics.
func (o *Orchestrator) recordProvider(ctx context.Context, provider, kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		o.metrics.RecordProviderError(ctx, provider, kind)
	}
	o.metrics.RecordProviderRequest(ctx, provider, kind, status)
}
