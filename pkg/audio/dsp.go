package audio

import "math"

// Resample converts x from srcRate to dstRate using linear interpolation.
// Returns x unchanged when the rates already match. Linear interpolation is
// plenty for speech at the pipeline's working rate; everything upstream has
// already been band-limited by the codecs that produced it.
func Resample(x []float64, srcRate, dstRate int) []float64 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(x) == 0 {
		return x
	}
	n := int(int64(len(x)) * int64(dstRate) / int64(srcRate))
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		s0 := x[idx]
		s1 := s0
		if idx+1 < len(x) {
			s1 = x[idx+1]
		}
		out[i] = s0*(1-frac) + s1*frac
	}
	return out
}

// PadOrTrim forces x to exactly n samples. Shorter input is zero-padded at
// the end; longer input is truncated with a fade applied over the final
// fadeSamples to avoid an audible click at the cut. A fadeSamples of zero
// truncates hard.
func PadOrTrim(x []float64, n, fadeSamples int) []float64 {
	switch {
	case n <= 0:
		return nil
	case len(x) == n:
		return x
	case len(x) < n:
		out := make([]float64, n)
		copy(out, x)
		return out
	default:
		out := make([]float64, n)
		copy(out, x[:n])
		if fadeSamples > n {
			fadeSamples = n
		}
		FadeOut(out, fadeSamples)
		return out
	}
}

// FadeIn applies a linear ramp from 0 to 1 over the first n samples, in place.
func FadeIn(x []float64, n int) {
	if n > len(x) {
		n = len(x)
	}
	if n <= 0 {
		return
	}
	for i := range n {
		x[i] *= float64(i) / float64(n)
	}
}

// FadeOut applies a linear ramp from 1 to 0 over the last n samples, in place.
func FadeOut(x []float64, n int) {
	if n > len(x) {
		n = len(x)
	}
	if n <= 0 {
		return
	}
	off := len(x) - n
	for i := range n {
		x[off+i] *= float64(n-i) / float64(n)
	}
}

// Crossfade joins a and b with a linear crossfade of fade seconds at rate sr.
// The overlap is capped at the shorter of the two inputs, so the result
// always has len(a)+len(b)-overlap samples.
func Crossfade(a, b []float64, fade float64, sr int) []float64 {
	overlap := int(fade * float64(sr))
	if overlap > len(a) {
		overlap = len(a)
	}
	if overlap > len(b) {
		overlap = len(b)
	}
	if overlap <= 0 {
		out := make([]float64, len(a)+len(b))
		copy(out, a)
		copy(out[len(a):], b)
		return out
	}
	out := make([]float64, len(a)+len(b)-overlap)
	copy(out, a)
	start := len(a) - overlap
	for i := range overlap {
		t := float64(i) / float64(overlap)
		out[start+i] = a[start+i]*(1-t) + b[i]*t
	}
	copy(out[len(a):], b[overlap:])
	return out
}

// Peak returns the maximum absolute sample value in x.
func Peak(x []float64) float64 {
	var p float64
	for _, s := range x {
		if a := math.Abs(s); a > p {
			p = a
		}
	}
	return p
}

// Normalize scales x in place so its peak sits at targetDB dBFS. Buffers
// whose peak is below 1e-8 are left untouched; scaling effective silence
// only amplifies noise.
func Normalize(x []float64, targetDB float64) {
	p := Peak(x)
	if p < 1e-8 {
		return
	}
	g := math.Pow(10, targetDB/20) / p
	for i := range x {
		x[i] *= g
	}
}

// BoxSmooth returns the moving average of x over a centered window of w
// samples. Edges use the available neighborhood, matching a same-size
// convolution with a box kernel.
func BoxSmooth(x []float64, w int) []float64 {
	if w <= 1 || len(x) == 0 {
		out := make([]float64, len(x))
		copy(out, x)
		return out
	}
	out := make([]float64, len(x))
	half := w / 2
	// Running sum over the sliding window keeps this linear in len(x).
	lo, hi := 0, 0
	var sum float64
	for i := range x {
		wantLo := i - half
		wantHi := i + (w - half - 1)
		if wantLo < 0 {
			wantLo = 0
		}
		if wantHi >= len(x) {
			wantHi = len(x) - 1
		}
		for hi <= wantHi {
			sum += x[hi]
			hi++
		}
		for lo < wantLo {
			sum -= x[lo]
			lo++
		}
		out[i] = sum / float64(hi-lo)
	}
	return out
}
