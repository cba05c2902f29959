// Package demucs provides a source-separation provider that shells out to
// the Demucs CLI. Demucs writes its stems into a model/track subtree; the
// provider normalizes that into the canonical vocals.wav and
// accompaniment.wav pair the pipeline expects, summing instrument stems
// when the model emits more than two.
package demucs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/revoicehq/revoice/pkg/audio"
	"github.com/revoicehq/revoice/pkg/provider/separate"
)

// Compile-time interface assertion.
var _ separate.Provider = (*Provider)(nil)

const defaultModel = "htdemucs"

// ErrNoVocalStem is returned when the model output contains no vocal stem.
var ErrNoVocalStem = errors.New("demucs: no vocal stem in model output")

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithBinary overrides the demucs executable path. Defaults to "demucs" on
// PATH.
func WithBinary(bin string) Option {
	return func(p *Provider) { p.bin = bin }
}

// WithModel selects the separation model (e.g., "htdemucs", "mdx_extra").
// Defaults to "htdemucs".
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// Provider implements separate.Provider over the Demucs CLI.
type Provider struct {
	bin   string
	model string
}

// New creates a Demucs-backed Provider.
func New(opts ...Option) *Provider {
	p := &Provider{bin: "demucs", model: defaultModel}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Name implements separate.Provider.
func (p *Provider) Name() string { return "demucs" }

// Separate implements separate.Provider. It runs Demucs in two-stem mode
// and flattens the model's output tree into outDir/vocals.wav and
// outDir/accompaniment.wav.
func (p *Provider) Separate(ctx context.Context, inputWAV, outDir string) (string, string, error) {
	cmd := exec.CommandContext(ctx, p.bin,
		"--two-stems", "vocals",
		"-n", p.model,
		"-o", outDir,
		inputWAV,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", "", fmt.Errorf("demucs: run: %w: %s", err, lastLine(stderr.String()))
	}

	track := strings.TrimSuffix(filepath.Base(inputWAV), filepath.Ext(inputWAV))
	stemDir := filepath.Join(outDir, p.model, track)
	return assembleStems(stemDir, outDir)
}

// assembleStems flattens a Demucs stem directory into the canonical output
// pair. A no_vocals stem is used as the accompaniment directly; otherwise
// every non-vocal stem is summed into one.
func assembleStems(stemDir, outDir string) (string, string, error) {
	entries, err := os.ReadDir(stemDir)
	if err != nil {
		return "", "", fmt.Errorf("demucs: read stem dir: %w", err)
	}
	stems := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".wav") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".wav")
		stems[name] = filepath.Join(stemDir, e.Name())
	}

	vocalsSrc, ok := stems["vocals"]
	if !ok {
		return "", "", ErrNoVocalStem
	}
	delete(stems, "vocals")

	vocals := filepath.Join(outDir, "vocals.wav")
	if err := moveFile(vocalsSrc, vocals); err != nil {
		return "", "", fmt.Errorf("demucs: place vocals: %w", err)
	}

	accompaniment := filepath.Join(outDir, "accompaniment.wav")
	if src, ok := stems["no_vocals"]; ok {
		if err := moveFile(src, accompaniment); err != nil {
			return "", "", fmt.Errorf("demucs: place accompaniment: %w", err)
		}
		return vocals, accompaniment, nil
	}
	if len(stems) == 0 {
		return "", "", errors.New("demucs: model produced only a vocal stem")
	}
	if err := sumStems(stems, accompaniment); err != nil {
		return "", "", fmt.Errorf("demucs: sum instrument stems: %w", err)
	}
	return vocals, accompaniment, nil
}

// sumStems mixes all given stem files into a single accompaniment track.
func sumStems(stems map[string]string, outPath string) error {
	var sum []float64
	rate := 0
	for _, path := range stems {
		c, err := audio.ReadWAV(path)
		if err != nil {
			return err
		}
		if rate == 0 {
			rate = c.Rate
		}
		x := audio.Resample(c.Samples, c.Rate, rate)
		if len(x) > len(sum) {
			grown := make([]float64, len(x))
			copy(grown, sum)
			sum = grown
		}
		for i, s := range x {
			sum[i] += s
		}
	}
	// Stems are complementary parts of one mix; their sum can still peak
	// above full scale after rounding, so clamp-on-write is enough.
	return audio.WriteWAV(outPath, audio.Clip{Samples: sum, Rate: rate})
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

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
