package audio_test

import (
	"math"
	"testing"

	"github.com/revoicehq/revoice/pkg/audio"
)

func TestResampleLength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       int
		src, dst int
		want     int
	}{
		{"upsample", 24000, 24000, 48000, 48000},
		{"downsample", 48000, 48000, 24000, 24000},
		{"same rate", 1000, 24000, 24000, 1000},
		{"odd ratio", 24000, 24000, 44100, 44100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := audio.Resample(make([]float64, tt.in), tt.src, tt.dst)
			if len(out) != tt.want {
				t.Errorf("len = %d, want %d", len(out), tt.want)
			}
		})
	}
}

func TestResamplePreservesDC(t *testing.T) {
	t.Parallel()

	in := make([]float64, 1000)
	for i := range in {
		in[i] = 0.25
	}
	out := audio.Resample(in, 16000, 24000)
	for i, s := range out {
		if math.Abs(s-0.25) > 1e-9 {
			t.Fatalf("sample %d = %g, want 0.25", i, s)
		}
	}
}

func TestPadOrTrim(t *testing.T) {
	t.Parallel()

	t.Run("pads with zeros", func(t *testing.T) {
		t.Parallel()
		out := audio.PadOrTrim([]float64{1, 1}, 5, 0)
		if len(out) != 5 {
			t.Fatalf("len = %d, want 5", len(out))
		}
		for i := 2; i < 5; i++ {
			if out[i] != 0 {
				t.Errorf("out[%d] = %g, want 0", i, out[i])
			}
		}
	})

	t.Run("trims with fade", func(t *testing.T) {
		t.Parallel()
		in := make([]float64, 100)
		for i := range in {
			in[i] = 1
		}
		out := audio.PadOrTrim(in, 50, 10)
		if len(out) != 50 {
			t.Fatalf("len = %d, want 50", len(out))
		}
		if out[49] >= out[40] {
			t.Errorf("expected decaying tail, got out[40]=%g out[49]=%g", out[40], out[49])
		}
		if out[39] != 1 {
			t.Errorf("out[39] = %g, want 1 (before fade region)", out[39])
		}
	})

	t.Run("exact length untouched", func(t *testing.T) {
		t.Parallel()
		in := []float64{0.1, 0.2, 0.3}
		out := audio.PadOrTrim(in, 3, 10)
		for i := range in {
			if out[i] != in[i] {
				t.Errorf("out[%d] = %g, want %g", i, out[i], in[i])
			}
		}
	})

	t.Run("non-positive target", func(t *testing.T) {
		t.Parallel()
		if out := audio.PadOrTrim([]float64{1}, 0, 0); out != nil {
			t.Errorf("got %v, want nil", out)
		}
	})
}

func TestCrossfadeLength(t *testing.T) {
	t.Parallel()

	a := make([]float64, 1000)
	b := make([]float64, 800)
	sr := 1000

	out := audio.Crossfade(a, b, 0.1, sr) // 100-sample overlap
	if want := 1000 + 800 - 100; len(out) != want {
		t.Errorf("len = %d, want %d", len(out), want)
	}

	// Overlap capped at the shorter input.
	out = audio.Crossfade(a[:50], b, 0.1, sr)
	if want := 50 + 800 - 50; len(out) != want {
		t.Errorf("capped len = %d, want %d", len(out), want)
	}

	out = audio.Crossfade(a, b, 0, sr)
	if want := 1800; len(out) != want {
		t.Errorf("zero-fade len = %d, want %d", len(out), want)
	}
}

func TestCrossfadeIsMonotoneBlend(t *testing.T) {
	t.Parallel()

	a := make([]float64, 100)
	b := make([]float64, 100)
	for i := range a {
		a[i] = 1
		b[i] = 0
	}
	out := audio.Crossfade(a, b, 0.5, 100) // 50-sample overlap
	// Inside the overlap the value must ramp from a toward b.
	for i := 51; i < 100; i++ {
		if out[i] > out[i-1]+1e-12 {
			t.Fatalf("blend not decreasing at %d: %g -> %g", i, out[i-1], out[i])
		}
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	x := []float64{0.1, -0.4, 0.2}
	audio.Normalize(x, -1)
	want := math.Pow(10, -1.0/20)
	if p := audio.Peak(x); math.Abs(p-want) > 1e-9 {
		t.Errorf("peak = %g, want %g", p, want)
	}

	// Near-silence must not be amplified.
	quiet := []float64{1e-10, -1e-10}
	audio.Normalize(quiet, -1)
	if p := audio.Peak(quiet); p > 1e-9 {
		t.Errorf("silence was amplified to peak %g", p)
	}
}

func TestBoxSmooth(t *testing.T) {
	t.Parallel()

	// Constant input is a fixed point of the smoother.
	in := make([]float64, 50)
	for i := range in {
		in[i] = 0.7
	}
	out := audio.BoxSmooth(in, 9)
	for i, s := range out {
		if math.Abs(s-0.7) > 1e-12 {
			t.Fatalf("out[%d] = %g, want 0.7", i, s)
		}
	}

	// An impulse spreads but conserves no more than its own mass.
	impulse := make([]float64, 21)
	impulse[10] = 1
	out = audio.BoxSmooth(impulse, 5)
	if out[10] >= 1 {
		t.Errorf("impulse not smoothed: %g", out[10])
	}
	if out[0] != 0 {
		t.Errorf("smoothing leaked beyond window: out[0] = %g", out[0])
	}
}
