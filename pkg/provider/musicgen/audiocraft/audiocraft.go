// Package audiocraft provides a music-generation provider backed by a
// locally running AudioCraft/MusicGen server (POST /generate,
// multipart/form-data, WAV reply).
package audiocraft

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/revoicehq/revoice/pkg/audio"
	"github.com/revoicehq/revoice/pkg/provider/musicgen"
)

// Compile-time interface assertion.
var _ musicgen.Provider = (*Provider)(nil)

const (
	defaultTimeout   = 600 * time.Second
	generateEndpoint = "/generate"
)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithTimeout sets the per-request HTTP timeout. Generating thirty seconds
// of music on CPU can take minutes; defaults to 600 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithModel forwards a model identifier (e.g., "facebook/musicgen-small")
// to servers hosting several checkpoints.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithHTTPClient replaces the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements musicgen.Provider backed by an AudioCraft server.
type Provider struct {
	serverURL  string
	model      string
	httpClient *http.Client
}

// New creates a Provider that connects to the generation server at
// serverURL. serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("audiocraft: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements musicgen.Provider.
func (p *Provider) Name() string { return "audiocraft" }

// Generate implements musicgen.Provider. The style, when set, is folded
// into the prompt; a reference recording is uploaded for melody
// conditioning. The WAV reply is validated before being written to outPath.
func (p *Provider) Generate(ctx context.Context, req musicgen.Request, outPath string) error {
	prompt := req.Prompt
	if req.Style != "" {
		prompt = req.Style + ", " + prompt
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("prompt", prompt); err != nil {
		return fmt.Errorf("audiocraft: write prompt: %w", err)
	}
	if req.Duration > 0 {
		if err := mw.WriteField("duration", strconv.FormatFloat(req.Duration, 'f', -1, 64)); err != nil {
			return fmt.Errorf("audiocraft: write duration: %w", err)
		}
	}
	if p.model != "" {
		if err := mw.WriteField("model", p.model); err != nil {
			return fmt.Errorf("audiocraft: write model: %w", err)
		}
	}
	if req.ReferenceWAV != "" {
		ref, err := os.Open(req.ReferenceWAV)
		if err != nil {
			return fmt.Errorf("audiocraft: open reference: %w", err)
		}
		fw, err := mw.CreateFormFile("melody", "melody.wav")
		if err != nil {
			ref.Close()
			return fmt.Errorf("audiocraft: create melody part: %w", err)
		}
		_, err = io.Copy(fw, ref)
		ref.Close()
		if err != nil {
			return fmt.Errorf("audiocraft: write melody: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("audiocraft: close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+generateEndpoint, &body)
	if err != nil {
		return fmt.Errorf("audiocraft: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("audiocraft: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("audiocraft: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("audiocraft: read response: %w", err)
	}
	if _, err := audio.DecodeWAV(bytes.NewReader(wav)); err != nil {
		return fmt.Errorf("audiocraft: server reply is not valid audio: %w", err)
	}
	if err := os.WriteFile(outPath, wav, 0o644); err != nil {
		return fmt.Errorf("audiocraft: write output: %w", err)
	}
	return nil
}
