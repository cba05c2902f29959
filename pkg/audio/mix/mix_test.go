package mix_test

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/revoicehq/revoice/pkg/audio"
	"github.com/revoicehq/revoice/pkg/audio/mix"
)

const testRate = 24000

func writeClip(t *testing.T, dir, name string, samples []float64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := audio.WriteWAV(path, audio.Clip{Samples: samples, Rate: testRate}); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func constant(dur, level float64) []float64 {
	out := make([]float64, int(dur*testRate))
	for i := range out {
		out[i] = level
	}
	return out
}

func TestMergeCanvasLength(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	clip := writeClip(t, dir, "clip.wav", constant(1.0, 0.5))
	outPath := filepath.Join(dir, "out.wav")

	m := mix.New(testRate)
	err := m.Merge(context.Background(), []mix.Placement{
		{Path: clip, Start: 0.5, End: 1.5},
	}, "", outPath, 3.25)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	out, err := audio.ReadWAV(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if want := int(math.Ceil(3.25 * testRate)); len(out.Samples) != want {
		t.Errorf("canvas len = %d, want %d", len(out.Samples), want)
	}
}

func TestMergeClampsOutOfBoundsClips(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	clip := writeClip(t, dir, "clip.wav", constant(2.0, 0.5))
	outPath := filepath.Join(dir, "out.wav")

	m := mix.New(testRate)
	// One clip starting before zero, one overrunning the end; both must
	// be clamped instead of failing.
	err := m.Merge(context.Background(), []mix.Placement{
		{Path: clip, Start: -0.5, End: 1.5},
		{Path: clip, Start: 2.5, End: 4.5},
	}, "", outPath, 3.0)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	out, err := audio.ReadWAV(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if want := 3 * testRate; len(out.Samples) != want {
		t.Errorf("len = %d, want %d", len(out.Samples), want)
	}
}

func TestMergeSkipsUnreadableClip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := writeClip(t, dir, "good.wav", constant(0.5, 0.5))
	outPath := filepath.Join(dir, "out.wav")

	m := mix.New(testRate)
	err := m.Merge(context.Background(), []mix.Placement{
		{Path: filepath.Join(dir, "missing.wav"), Start: 0, End: 0.5},
		{Path: good, Start: 1.0, End: 1.5},
	}, "", outPath, 2.0)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	out, err := audio.ReadWAV(outPath)
	if err != nil {
		t.Fatal(err)
	}
	// The readable clip must still be audible in its slot.
	mid := int(1.25 * testRate)
	if math.Abs(out.Samples[mid]) < 0.1 {
		t.Errorf("sample at 1.25s = %g, want audible", out.Samples[mid])
	}
}

func TestMergeNormalizesPeak(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// Two overlapping hot clips would clip without normalization.
	clip := writeClip(t, dir, "clip.wav", constant(1.0, 0.9))
	outPath := filepath.Join(dir, "out.wav")

	m := mix.New(testRate)
	err := m.Merge(context.Background(), []mix.Placement{
		{Path: clip, Start: 0, End: 1},
		{Path: clip, Start: 0, End: 1},
	}, "", outPath, 1.0)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	out, err := audio.ReadWAV(outPath)
	if err != nil {
		t.Fatal(err)
	}
	want := math.Pow(10, -1.0/20)
	if p := audio.Peak(out.Samples); p > want+1.0/32768 {
		t.Errorf("peak = %g, want <= %g", p, want)
	}
}

func TestMergeWithMusicDucks(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	speech := writeClip(t, dir, "speech.wav", constant(1.0, 0.5))
	music := writeClip(t, dir, "music.wav", constant(4.0, 0.3))
	outPath := filepath.Join(dir, "out.wav")

	m := mix.New(testRate)
	err := m.Merge(context.Background(), []mix.Placement{
		{Path: speech, Start: 0.5, End: 1.5},
	}, music, outPath, 4.0)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	out, err := audio.ReadWAV(outPath)
	if err != nil {
		t.Fatal(err)
	}
	under := math.Abs(out.Samples[testRate])   // 1.0s: speech + ducked music
	clear := math.Abs(out.Samples[3*testRate]) // 3.0s: music only
	if clear <= 0 {
		t.Fatal("music-only region is silent")
	}
	// Under speech the output carries speech (0.5) plus ducked music
	// (0.3 * 0.4); in the clear it carries full music (0.3). The merge
	// normalizes both by the same factor, so the ratio is preserved.
	wantRatio := (0.5 + 0.3*0.4) / 0.3
	if ratio := under / clear; math.Abs(ratio-wantRatio) > 0.1 {
		t.Errorf("speech/clear level ratio = %g, want %g", ratio, wantRatio)
	}
}

func TestDuck(t *testing.T) {
	t.Parallel()

	n := 2 * testRate
	speech := make([]float64, n)
	music := make([]float64, n)
	for i := range music {
		music[i] = 0.5
	}
	// Speech active only in the first half.
	for i := range n / 2 {
		speech[i] = 0.3
	}

	out := mix.Duck(speech, music, testRate)
	if g := out[n/4] / music[n/4]; math.Abs(g-0.4) > 1e-9 {
		t.Errorf("gain under speech = %g, want 0.4", g)
	}
	if g := out[3*n/4] / music[3*n/4]; math.Abs(g-1.0) > 1e-9 {
		t.Errorf("gain in silence = %g, want 1.0", g)
	}
}

func TestDuckIgnoresSubThresholdSpeech(t *testing.T) {
	t.Parallel()

	n := testRate
	speech := make([]float64, n)
	music := make([]float64, n)
	for i := range n {
		speech[i] = 0.005 // below -40 dBFS
		music[i] = 0.5
	}
	out := mix.Duck(speech, music, testRate)
	for i := 0; i < n; i += 1000 {
		if out[i] != 0.5 {
			t.Fatalf("music attenuated at %d by sub-threshold speech: %g", i, out[i])
		}
	}
}

func TestMixSimple(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	speech := writeClip(t, dir, "speech.wav", constant(3.0, 0.5))
	music := writeClip(t, dir, "music.wav", constant(10.0, 0.5))
	outPath := filepath.Join(dir, "out.wav")

	m := mix.New(testRate)
	err := m.MixSimple(context.Background(), speech, music, outPath, mix.SimpleOptions{
		SpeechVolume: 1.0,
		MusicVolume:  0.3,
		MusicDelay:   1.0,
	})
	if err != nil {
		t.Fatalf("MixSimple: %v", err)
	}
	out, err := audio.ReadWAV(outPath)
	if err != nil {
		t.Fatal(err)
	}
	// Output fitted to the speech track length.
	if want := 3 * testRate; len(out.Samples) != want {
		t.Errorf("len = %d, want %d", len(out.Samples), want)
	}
	// Before the delay there is speech only; after delay + fade the music
	// bed raises the level.
	before := math.Abs(out.Samples[testRate/2])
	after := math.Abs(out.Samples[2*testRate])
	if after <= before {
		t.Errorf("music bed not audible: before=%g after=%g", before, after)
	}
	want := math.Pow(10, -1.0/20)
	if p := audio.Peak(out.Samples); p > want+1.0/32768 {
		t.Errorf("peak = %g, want <= %g", p, want)
	}
}

func TestMixSimpleNoDucking(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// Loud speech over steady music: with ducking the music level would
	// drop under speech; the simple mix must keep the bed steady, so two
	// points inside the bed differ only by the normalization-scaled
	// speech, never by a gain step.
	n := 4 * testRate
	sp := make([]float64, n)
	for i := range 2 * testRate {
		sp[i] = 0.5
	}
	speech := writeClip(t, dir, "speech.wav", sp)
	music := writeClip(t, dir, "music.wav", constant(4.0, 0.4))
	outPath := filepath.Join(dir, "out.wav")

	m := mix.New(testRate)
	err := m.MixSimple(context.Background(), speech, music, outPath, mix.SimpleOptions{
		SpeechVolume: 1.0,
		MusicVolume:  1.0,
	})
	if err != nil {
		t.Fatalf("MixSimple: %v", err)
	}
	out, err := audio.ReadWAV(outPath)
	if err != nil {
		t.Fatal(err)
	}
	underSpeech := out.Samples[testRate]   // speech 0.5 + music 0.4
	afterSpeech := out.Samples[3*testRate] // music 0.4 only
	ratio := underSpeech / afterSpeech
	if math.Abs(ratio-0.9/0.4) > 0.05 {
		t.Errorf("level ratio = %g, want %g (no ducking)", ratio, 0.9/0.4)
	}
}
