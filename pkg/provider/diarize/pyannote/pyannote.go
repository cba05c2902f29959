// Package pyannote provides a diarization provider backed by a locally
// running pyannote.audio server. The server exposes a batch REST API
// (POST /diarize, multipart/form-data) returning the speaker turns of the
// uploaded recording.
package pyannote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/revoicehq/revoice/pkg/provider/diarize"
)

// Compile-time interface assertion.
var _ diarize.Provider = (*Provider)(nil)

const (
	defaultTimeout  = 600 * time.Second
	diarizeEndpoint = "/diarize"
)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithTimeout sets the per-request HTTP timeout. Diarizing a long recording
// on CPU can take several minutes; defaults to 600 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements diarize.Provider backed by a pyannote server.
type Provider struct {
	serverURL  string
	httpClient *http.Client
}

// New creates a Provider that connects to the diarization server at
// serverURL. serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("pyannote: serverURL must not be empty")
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

// Name implements diarize.Provider.
func (p *Provider) Name() string { return "pyannote" }

// Diarize uploads the recording and returns its speaker turns sorted by
// start time.
func (p *Provider) Diarize(ctx context.Context, wavPath string, minSpeakers, maxSpeakers int) ([]diarize.Turn, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return nil, fmt.Errorf("pyannote: open recording: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("pyannote: create form file: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, fmt.Errorf("pyannote: write recording: %w", err)
	}
	if minSpeakers > 0 {
		if err := mw.WriteField("min_speakers", strconv.Itoa(minSpeakers)); err != nil {
			return nil, fmt.Errorf("pyannote: write min_speakers: %w", err)
		}
	}
	if maxSpeakers > 0 {
		if err := mw.WriteField("max_speakers", strconv.Itoa(maxSpeakers)); err != nil {
			return nil, fmt.Errorf("pyannote: write max_speakers: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("pyannote: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+diarizeEndpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("pyannote: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pyannote: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("pyannote: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result struct {
		Segments []diarize.Turn `json:"segments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("pyannote: parse response: %w", err)
	}
	sort.Slice(result.Segments, func(a, b int) bool {
		return result.Segments[a].Start < result.Segments[b].Start
	})
	return result.Segments, nil
}
