package audio

import "math"

// Stretch changes the duration of x by 1/rate without shifting pitch, using
// WSOLA (waveform similarity overlap-add). A rate above 1 shortens the
// audio, below 1 lengthens it. The output length is round(len(x)/rate) give
// or take a frame; callers needing an exact sample count follow up with
// PadOrTrim.
func Stretch(x []float64, rate float64, sr int) []float64 {
	if len(x) == 0 || rate <= 0 {
		return nil
	}
	outLen := int(math.Round(float64(len(x)) / rate))
	if outLen <= 0 {
		return nil
	}
	if math.Abs(rate-1) < 1e-3 {
		out := make([]float64, len(x))
		copy(out, x)
		return out
	}

	// 50 ms analysis window, half-overlapping Hann frames. The search
	// tolerance of a quarter window is enough to land on the waveform
	// period for speech pitch ranges.
	win := sr / 20
	if win < 64 {
		win = 64
	}
	if win%2 == 1 {
		win++
	}
	if len(x) <= win {
		// Too short for overlap-add; fall back to interpolation. The
		// pitch error on a sub-window clip is inaudible.
		return Resample(x, int(math.Round(rate*10000)), 10000)
	}
	hop := win / 2
	tol := win / 4

	hann := make([]float64, win)
	for i := range hann {
		hann[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(win)))
	}

	out := make([]float64, outLen+win)
	norm := make([]float64, outLen+win)
	prev := -1
	for sp := 0; sp < outLen; sp += hop {
		ap := int(math.Round(float64(sp) * rate))
		if prev >= 0 {
			ap += bestOffset(x, ap, prev+hop, hop, tol)
		}
		if ap < 0 {
			ap = 0
		}
		if ap > len(x)-win {
			ap = len(x) - win
		}
		for i := range win {
			out[sp+i] += x[ap+i] * hann[i]
			norm[sp+i] += hann[i]
		}
		prev = ap
	}
	for i := range outLen {
		if norm[i] > 1e-8 {
			out[i] /= norm[i]
		}
	}
	return out[:outLen]
}

// bestOffset finds the shift d in [-tol, tol] for which the candidate frame
// at ap+d best continues the previously emitted frame, by maximizing the
// cross-correlation with the natural continuation at position natural.
func bestOffset(x []float64, ap, natural, overlap, tol int) int {
	best, bestScore := 0, math.Inf(-1)
	for d := -tol; d <= tol; d++ {
		cand := ap + d
		if cand < 0 || cand+overlap > len(x) || natural+overlap > len(x) {
			continue
		}
		var score float64
		for i := 0; i < overlap; i += 2 {
			score += x[natural+i] * x[cand+i]
		}
		if score > bestScore {
			bestScore = score
			best = d
		}
	}
	return best
}
