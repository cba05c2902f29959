// Package qwen provides a TTS provider backed by a locally running
// Qwen-TTS synthesis server. The server exposes a batch REST API
// (POST /synthesize, multipart/form-data) and supports zero-shot voice
// cloning from a reference recording, which makes it the primary engine for
// voice replacement.
package qwen

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
	"github.com/revoicehq/revoice/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

const (
	defaultLanguage    = "en"
	defaultTimeout     = 300 * time.Second
	synthesizeEndpoint = "/synthesize"
)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the default language code sent to the server (e.g.,
// "en", "de", "zh"). Defaults to "en"; per-request languages override it.
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithTimeout sets the per-request HTTP timeout. Synthesis of long passages
// on CPU can take minutes; defaults to 300 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithModel forwards a model identifier to servers hosting several
// checkpoints.
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

// Provider implements tts.Provider backed by a Qwen-TTS server.
// It is safe for concurrent use.
type Provider struct {
	serverURL  string
	language   string
	model      string
	httpClient *http.Client
}

// New creates a Provider that connects to the synthesis server at
// serverURL (e.g., "http://localhost:8880"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("qwen: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements tts.Provider.
func (p *Provider) Name() string { return "qwen" }

// Synthesize implements tts.Provider. The reference recording, when given,
// is uploaded alongside the text so the server clones that voice. The reply
// must be a decodable WAV; it is validated before being written to outPath,
// then stretched to the target duration when one is requested.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request, outPath string) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fields := map[string]string{
		"text":     req.Text,
		"language": p.language,
	}
	if req.Language != "" {
		fields["language"] = req.Language
	}
	if model := p.model; model != "" || req.Model != "" {
		if req.Model != "" {
			model = req.Model
		}
		fields["model"] = model
	}
	if req.Speed > 0 {
		fields["speed"] = strconv.FormatFloat(req.Speed, 'f', -1, 64)
	}
	if req.Pitch > 0 {
		fields["pitch"] = strconv.FormatFloat(req.Pitch, 'f', -1, 64)
	}
	if req.ReferenceText != "" {
		fields["ref_text"] = req.ReferenceText
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("qwen: write field %s: %w", k, err)
		}
	}
	if req.ReferenceWAV != "" {
		ref, err := os.Open(req.ReferenceWAV)
		if err != nil {
			return fmt.Errorf("qwen: open reference: %w", err)
		}
		fw, err := mw.CreateFormFile("reference", "reference.wav")
		if err != nil {
			ref.Close()
			return fmt.Errorf("qwen: create reference part: %w", err)
		}
		_, err = io.Copy(fw, ref)
		ref.Close()
		if err != nil {
			return fmt.Errorf("qwen: write reference: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("qwen: close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+synthesizeEndpoint, &body)
	if err != nil {
		return fmt.Errorf("qwen: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("qwen: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("qwen: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("qwen: read response: %w", err)
	}
	// Reject HTML error pages and truncated replies before they reach the
	// pipeline as audio.
	if _, err := audio.DecodeWAV(bytes.NewReader(wav)); err != nil {
		return fmt.Errorf("qwen: server reply is not valid audio: %w", err)
	}
	if err := os.WriteFile(outPath, wav, 0o644); err != nil {
		return fmt.Errorf("qwen: write output: %w", err)
	}

	if err := tts.FitDuration(outPath, req.TargetDuration); err != nil {
		return fmt.Errorf("qwen: %w", err)
	}
	return nil
}
