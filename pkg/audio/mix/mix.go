// Package mix assembles final audio tracks: stamping aligned speech clips
// onto a timeline canvas, ducking accompaniment under speech, and the simple
// two-track speech/music mix.
package mix

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/revoicehq/revoice/pkg/audio"
)

const (
	// symmetric fade applied at each stamped clip boundary.
	segmentFade = 0.015

	// ducking: samples louder than the threshold count as speech, the
	// activity mask is box-smoothed over the window and re-thresholded.
	duckThresholdDB = -40.0
	duckWindow      = 0.020
	duckActivity    = 0.3
	duckGain        = 0.4

	// final output peak target.
	normalizeDB = -1.0

	// fade on hard cuts when fitting music to the canvas.
	fitFade = 0.010

	// music fade-in/out length in the simple two-track mix.
	simpleMixFade = 0.5
)

// Merger builds output tracks at a fixed sample rate.
type Merger struct {
	SampleRate int
}

// New returns a Merger working at the given sample rate.
func New(sampleRate int) *Merger {
	return &Merger{SampleRate: sampleRate}
}

// Placement is one aligned speech clip and its slot on the timeline.
type Placement struct {
	Path  string
	Start float64
	End   float64
}

// Merge stamps the speech clips onto a totalDur-second canvas, ducks the
// accompaniment under speech activity, normalizes and writes the result as
// 16-bit PCM WAV. musicPath may be empty for speech-only output. A clip
// that cannot be read is logged and skipped; its slot stays silent.
func (m *Merger) Merge(ctx context.Context, placements []Placement, musicPath, outPath string, totalDur float64) error {
	n := int(math.Ceil(totalDur * float64(m.SampleRate)))
	if n <= 0 {
		return fmt.Errorf("mix: non-positive canvas duration %g", totalDur)
	}

	speech := make([]float64, n)
	for _, p := range placements {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("mix: %w", err)
		}
		if err := m.stamp(speech, p); err != nil {
			slog.Warn("mix: skipping clip", "clip", p.Path, "error", err)
		}
	}

	out := speech
	if musicPath != "" {
		music, err := m.loadFitted(musicPath, n)
		if err != nil {
			return fmt.Errorf("mix: load accompaniment: %w", err)
		}
		out = Duck(speech, music, m.SampleRate)
		for i := range out {
			out[i] += speech[i]
		}
	}

	audio.Normalize(out, normalizeDB)
	if err := audio.WriteWAV(outPath, audio.Clip{Samples: out, Rate: m.SampleRate}); err != nil {
		return fmt.Errorf("mix: %w", err)
	}
	return nil
}

// stamp adds one clip onto the canvas with boundary fades, clamping any
// overhang at either edge.
func (m *Merger) stamp(canvas []float64, p Placement) error {
	c, err := audio.ReadWAV(p.Path)
	if err != nil {
		return err
	}
	x := audio.Resample(c.Samples, c.Rate, m.SampleRate)

	start := int(math.Round(p.Start * float64(m.SampleRate)))
	if start < 0 {
		if -start >= len(x) {
			return nil
		}
		x = x[-start:]
		start = 0
	}
	if start >= len(canvas) {
		return nil
	}
	if start+len(x) > len(canvas) {
		x = x[:len(canvas)-start]
	}
	if len(x) == 0 {
		return nil
	}

	fade := max(1, int(segmentFade*float64(m.SampleRate)))
	if fade > len(x)/2 {
		fade = len(x) / 2
	}
	// Copy before fading: the aligner may hand back a shared buffer when
	// a clip needed no resample.
	y := make([]float64, len(x))
	copy(y, x)
	audio.FadeIn(y, fade)
	audio.FadeOut(y, fade)
	for i, s := range y {
		canvas[start+i] += s
	}
	return nil
}

// loadFitted reads a WAV, resamples it to the merger rate and forces it to
// exactly n samples.
func (m *Merger) loadFitted(path string, n int) ([]float64, error) {
	c, err := audio.ReadWAV(path)
	if err != nil {
		return nil, err
	}
	x := audio.Resample(c.Samples, c.Rate, m.SampleRate)
	return audio.PadOrTrim(x, n, int(fitFade*float64(m.SampleRate))), nil
}

// Duck attenuates music wherever speech is active. Speech activity is a
// thresholded envelope: samples above -40 dBFS, box-smoothed over 20 ms and
// re-thresholded, gate the music down to the duck gain. Returns the ducked
// music; the inputs are not modified.
func Duck(speech, music []float64, sr int) []float64 {
	threshold := math.Pow(10, duckThresholdDB/20)
	mask := make([]float64, len(speech))
	for i, s := range speech {
		if math.Abs(s) > threshold {
			mask[i] = 1
		}
	}
	env := audio.BoxSmooth(mask, max(1, int(duckWindow*float64(sr))))

	out := make([]float64, len(music))
	for i := range music {
		g := 1.0
		if i < len(env) && env[i] > duckActivity {
			g = duckGain
		}
		out[i] = music[i] * g
	}
	return out
}

// SimpleOptions parameterizes MixSimple.
type SimpleOptions struct {
	SpeechVolume float64
	MusicVolume  float64
	MusicDelay   float64
}

// MixSimple overlays a music bed under a finished speech track: the music
// enters after the configured delay with a half-second fade-in, is fitted
// to the speech length with a matching fade-out, and both tracks are summed
// at their configured volumes. No ducking is applied. The normalized result
// is written as 16-bit PCM WAV.
func (m *Merger) MixSimple(ctx context.Context, speechPath, musicPath, outPath string, opt SimpleOptions) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mix: %w", err)
	}
	sc, err := audio.ReadWAV(speechPath)
	if err != nil {
		return fmt.Errorf("mix: read speech: %w", err)
	}
	speech := audio.Resample(sc.Samples, sc.Rate, m.SampleRate)

	mc, err := audio.ReadWAV(musicPath)
	if err != nil {
		return fmt.Errorf("mix: read music: %w", err)
	}
	music := audio.Resample(mc.Samples, mc.Rate, m.SampleRate)

	delay := int(opt.MusicDelay * float64(m.SampleRate))
	if delay > 0 {
		music = append(make([]float64, delay), music...)
	}
	music = audio.PadOrTrim(music, len(speech), 0)

	fade := int(simpleMixFade * float64(m.SampleRate))
	if delay < len(music) {
		audio.FadeIn(music[delay:], fade)
	}
	audio.FadeOut(music, fade)

	out := make([]float64, len(speech))
	for i := range out {
		out[i] = speech[i]*opt.SpeechVolume + music[i]*opt.MusicVolume
	}
	audio.Normalize(out, normalizeDB)
	if err := audio.WriteWAV(outPath, audio.Clip{Samples: out, Rate: m.SampleRate}); err != nil {
		return fmt.Errorf("mix: %w", err)
	}
	return nil
}
