// Package server exposes the REST API: job upload and lifecycle, voice
// assignment, standalone synthesis, voice profile management, and the
// operational endpoints (health, readiness, metrics).
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/revoicehq/revoice/internal/health"
	"github.com/revoicehq/revoice/internal/job"
	"github.com/revoicehq/revoice/internal/observe"
	"github.com/revoicehq/revoice/internal/orchestrator"
	"github.com/revoicehq/revoice/internal/voice"
	"github.com/revoicehq/revoice/internal/workspace"
	"github.com/revoicehq/revoice/pkg/audio/mix"
	"github.com/revoicehq/revoice/pkg/provider/musicgen"
	"github.com/revoicehq/revoice/pkg/provider/tts"
)

// Pipeline is the orchestration surface the HTTP layer drives.
// *orchestrator.Orchestrator implements it; tests substitute a fake.
type Pipeline interface {
	StartAnalysis(jobID string)
	BeginReplacement(jobID string, assignments map[string]string) error
	StartTTS(jobID string, req tts.Request)
	StartMusic(jobID string, req musicgen.Request)
	StartMix(jobID, speechPath, musicPath string, opt mix.SimpleOptions)
}

// Compile-time interface check.
var _ Pipeline = (*orchestrator.Orchestrator)(nil)

// Config carries the server's collaborators and limits.
type Config struct {
	Addr        string
	MaxUploadMB int

	Jobs      *job.Store
	Workspace *workspace.Manager
	Voices    voice.Profiles
	Pipeline  Pipeline

	// Health may be nil; the endpoints then report only liveness.
	Health *health.Handler

	// Metrics defaults to [observe.DefaultMetrics] when nil.
	Metrics *observe.Metrics
}

// Server is the HTTP front of the service.
type Server struct {
	cfg     Config
	handler http.Handler
}

// New builds a Server with all routes registered.
func New(cfg Config) *Server {
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 500
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Health == nil {
		cfg.Health = health.New()
	}
	s := &Server{cfg: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("DELETE /api/jobs/{id}", s.handleDeleteJob)
	mux.HandleFunc("POST /api/jobs/{id}/reference-voice", s.handleReferenceVoice)
	mux.HandleFunc("POST /api/jobs/{id}/assign-voices", s.handleAssignVoices)
	mux.HandleFunc("GET /api/jobs/{id}/download", s.handleDownload)
	mux.HandleFunc("POST /api/tts", s.handleTTS)
	mux.HandleFunc("POST /api/music", s.handleMusic)
	mux.HandleFunc("POST /api/mix", s.handleMix)
	mux.HandleFunc("POST /api/voices", s.handleCreateVoice)
	mux.HandleFunc("GET /api/voices", s.handleListVoices)
	mux.HandleFunc("GET /api/voices/{id}", s.handleGetVoice)
	mux.HandleFunc("DELETE /api/voices/{id}", s.handleDeleteVoice)
	cfg.Health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.handler = observe.Middleware(cfg.Metrics)(mux)
	return s
}

// Handler returns the fully wrapped route tree, mainly for tests.
func (s *Server) Handler() http.Handler { return s.handler }

// Run serves until ctx is cancelled, then drains connections for up to
// ten seconds.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	err := <-errCh
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ── JSON helpers ─────────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("could not encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// jobError maps store lookups to the right HTTP status.
func jobError(w http.ResponseWriter, err error) {
	if errors.Is(err, job.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
