// Package align fits synthesized speech clips into the time slots of the
// segments they replace, preferring pitch-preserving time-stretch over hard
// padding or truncation whenever the required correction is within usable
// bounds.
package align

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"

	"github.com/revoicehq/revoice/pkg/audio"
)

const (
	// tolerance below which a clip is only padded or trimmed; stretching
	// for corrections this small costs more in artifacts than it buys.
	durationTolerance = 0.05

	// usable stretch ratio bounds. Outside of these WSOLA output sounds
	// worse than a hard cut, so the aligner falls back to pad/trim.
	minStretchRatio = 0.5
	maxStretchRatio = 2.5

	// fade applied to the tail of a truncated clip.
	truncateFade = 0.010
)

// Aligner adjusts clip durations at a fixed working sample rate.
type Aligner struct {
	SampleRate int
}

// New returns an Aligner working at the given sample rate.
func New(sampleRate int) *Aligner {
	return &Aligner{SampleRate: sampleRate}
}

// Item is one clip of a batch alignment: the synthesized audio and the
// segment slot it must fill. AlignedPath is set by AlignAll.
type Item struct {
	AudioPath   string
	SpeakerID   string
	Start       float64
	End         float64
	AlignedPath string
}

// Align forces x to exactly round(target * rate) samples. When the duration
// error exceeds the tolerance and the stretch ratio is usable, the clip is
// time-stretched first so the pad/trim correction stays tiny.
func (a *Aligner) Align(x []float64, target float64) []float64 {
	targetSamples := int(math.Round(target * float64(a.SampleRate)))
	if targetSamples <= 0 {
		return nil
	}
	fade := int(truncateFade * float64(a.SampleRate))

	actual := float64(len(x)) / float64(a.SampleRate)
	diff := actual - target
	if math.Abs(diff) <= durationTolerance {
		return audio.PadOrTrim(x, targetSamples, fade)
	}

	ratio := actual / target
	if ratio < minStretchRatio || ratio > maxStretchRatio {
		slog.Warn("align: stretch ratio out of bounds, padding or trimming instead",
			"ratio", ratio, "actual", actual, "target", target)
		return audio.PadOrTrim(x, targetSamples, fade)
	}

	stretched := audio.Stretch(x, ratio, a.SampleRate)
	return audio.PadOrTrim(stretched, targetSamples, fade)
}

// AlignFile reads a WAV clip, aligns it to target seconds and writes the
// result to outPath at the aligner's sample rate.
func (a *Aligner) AlignFile(path string, target float64, outPath string) error {
	c, err := audio.ReadWAV(path)
	if err != nil {
		return fmt.Errorf("align: read clip: %w", err)
	}
	x := audio.Resample(c.Samples, c.Rate, a.SampleRate)
	out := a.Align(x, target)
	if err := audio.WriteWAV(outPath, audio.Clip{Samples: out, Rate: a.SampleRate}); err != nil {
		return fmt.Errorf("align: write clip: %w", err)
	}
	return nil
}

// AlignAll aligns a batch of clips into outDir, naming each output
// aligned_<speaker>_<index>.wav. Items with a non-positive slot duration
// are passed through untouched, and a failure on one item falls back to the
// unaligned clip rather than aborting the batch; the merger clamps
// whatever it receives.
func (a *Aligner) AlignAll(ctx context.Context, items []Item, outDir string) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = it
		out[i].AlignedPath = it.AudioPath

		if err := ctx.Err(); err != nil {
			slog.Warn("align: batch canceled", "remaining", len(items)-i)
			return out
		}
		target := it.End - it.Start
		if target <= 0 {
			slog.Warn("align: skipping non-positive slot",
				"speaker", it.SpeakerID, "start", it.Start, "end", it.End)
			continue
		}
		dst := filepath.Join(outDir, fmt.Sprintf("aligned_%s_%04d.wav", it.SpeakerID, i))
		if err := a.AlignFile(it.AudioPath, target, dst); err != nil {
			slog.Warn("align: clip failed, using unaligned audio",
				"clip", it.AudioPath, "error", err)
			continue
		}
		out[i].AlignedPath = dst
	}
	return out
}

// Concat joins consecutive clips with a linear crossfade, used when two
// merged segments share one synthesized utterance.
func (a *Aligner) Concat(clips [][]float64, fade float64) []float64 {
	var out []float64
	for _, c := range clips {
		if out == nil {
			out = c
			continue
		}
		out = audio.Crossfade(out, c, fade, a.SampleRate)
	}
	return out
}
