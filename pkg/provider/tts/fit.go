package tts

import (
	"fmt"
	"math"

	"github.com/revoicehq/revoice/pkg/audio"
)

// fitTolerance is how far a rendered clip may deviate from the requested
// target duration before FitDuration rewrites it.
const fitTolerance = 0.1

// FitDuration time-stretches the WAV at path to the target duration and
// rewrites it in place. Providers whose engines cannot render to an exact
// length call this after synthesis to honour Request.TargetDuration. A
// non-positive target or a clip already within tolerance is left untouched.
func FitDuration(path string, target float64) error {
	if target <= 0 {
		return nil
	}
	c, err := audio.ReadWAV(path)
	if err != nil {
		return fmt.Errorf("tts: fit duration: %w", err)
	}
	actual := c.Duration()
	if math.Abs(actual-target) <= fitTolerance {
		return nil
	}
	stretched := audio.Stretch(c.Samples, actual/target, c.Rate)
	n := int(math.Round(target * float64(c.Rate)))
	fade := c.Rate / 100
	out := audio.PadOrTrim(stretched, n, fade)
	if err := audio.WriteWAV(path, audio.Clip{Samples: out, Rate: c.Rate}); err != nil {
		return fmt.Errorf("tts: fit duration: %w", err)
	}
	return nil
}
