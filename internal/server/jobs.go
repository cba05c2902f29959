package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/revoicehq/revoice/internal/job"
	"github.com/revoicehq/revoice/internal/media"
	"github.com/revoicehq/revoice/internal/observe"
	"github.com/revoicehq/revoice/internal/orchestrator"

	"go.opentelemetry.io/otel/metric"
)

// audioExts lists the non-video upload types the pipeline accepts.
var audioExts = map[string]bool{".wav": true, ".mp3": true}

// handleUpload accepts a media file and starts analysis on it. An
// explicit input_type field overrides extension detection.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.MaxUploadMB)<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file upload: "+err.Error())
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	ext := strings.ToLower(filepath.Ext(filename))
	var kind job.InputKind
	switch strings.ToLower(r.FormValue("input_type")) {
	case string(job.InputAudio):
		kind = job.InputAudio
	case string(job.InputVideo):
		kind = job.InputVideo
	case "":
		switch {
		case media.IsVideo(filename):
			kind = job.InputVideo
		case audioExts[ext]:
			kind = job.InputAudio
		default:
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported file type %q", ext))
			return
		}
	default:
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("invalid input_type %q, use %q or %q", r.FormValue("input_type"), job.InputAudio, job.InputVideo))
		return
	}

	j, err := s.cfg.Jobs.Create(kind, filename)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	dst := filepath.Join(s.cfg.Workspace.InputDir(j.ID), filename)
	if err := saveUpload(file, dst); err != nil {
		writeError(w, http.StatusInternalServerError, "store upload: "+err.Error())
		return
	}

	s.cfg.Metrics.JobsCreated.Add(r.Context(), 1,
		metric.WithAttributes(observe.Attr("kind", string(kind))))
	s.cfg.Pipeline.StartAnalysis(j.ID)
	writeJSON(w, http.StatusAccepted, j)
}

// handleListJobs returns all jobs, newest first.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Jobs.List())
}

// handleGetJob returns one job's full state.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.cfg.Jobs.Get(r.PathValue("id"))
	if err != nil {
		jobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// handleDeleteJob removes a job and its workspace.
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Jobs.Delete(r.PathValue("id")); err != nil {
		jobError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReferenceVoice stores an uploaded speaker reference recording in
// the job's workspace.
func (s *Server) handleReferenceVoice(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if _, err := s.cfg.Jobs.Get(jobID); err != nil {
		jobError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.MaxUploadMB)<<20)
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file upload: "+err.Error())
		return
	}
	defer file.Close()

	speakerID := r.FormValue("speaker_id")
	if speakerID == "" {
		writeError(w, http.StatusBadRequest, "speaker_id is required")
		return
	}

	filename := referenceFilename(speakerID)
	dst := filepath.Join(s.cfg.Workspace.ReferencesDir(jobID), filename)
	if err := saveUpload(file, dst); err != nil {
		writeError(w, http.StatusInternalServerError, "store reference: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"speaker_id": speakerID,
		"filename":   filename,
	})
}

// assignRequest is the body of POST /api/jobs/{id}/assign-voices. Each
// assignment value is either a stored voice profile ID or the filename
// of a reference uploaded for this job.
type assignRequest struct {
	Assignments map[string]string `json:"assignments"`
}

func (s *Server) handleAssignVoices(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	var req assignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Assignments) == 0 {
		writeError(w, http.StatusBadRequest, "assignments must not be empty")
		return
	}

	resolved := make(map[string]string, len(req.Assignments))
	for speakerID, ref := range req.Assignments {
		path, err := s.resolveReference(r, jobID, ref)
		if err != nil {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("speaker %q: %v", speakerID, err))
			return
		}
		resolved[speakerID] = path
	}

	switch err := s.cfg.Pipeline.BeginReplacement(jobID, resolved); {
	case err == nil:
	case errors.Is(err, job.ErrNotFound):
		jobError(w, err)
		return
	case errors.Is(err, orchestrator.ErrNotAwaiting):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, orchestrator.ErrUnknownSpeaker),
		errors.Is(err, orchestrator.ErrMissingReference):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	j, err := s.cfg.Jobs.Get(jobID)
	if err != nil {
		jobError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, j)
}

// resolveReference turns an assignment value into a reference WAV path:
// a voice profile ID wins over an uploaded per-job reference filename.
func (s *Server) resolveReference(r *http.Request, jobID, ref string) (string, error) {
	if s.cfg.Voices != nil {
		if p, err := s.cfg.Voices.Get(r.Context(), ref); err == nil && p != nil {
			if p.AudioFilename == "" {
				return "", fmt.Errorf("voice %q has no reference recording", ref)
			}
			return filepath.Join(s.cfg.Voices.Dir(ref), p.AudioFilename), nil
		}
	}
	return filepath.Join(s.cfg.Workspace.ReferencesDir(jobID), filepath.Base(ref)), nil
}

// downloadExts maps the format query parameter to an artifact extension;
// exports share the main output's base name.
var downloadExts = map[string]string{
	"wav": ".wav",
	"mp3": ".mp3",
	"mp4": ".mp4",
}

// handleDownload serves the finished output in the requested format.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	j, err := s.cfg.Jobs.Get(r.PathValue("id"))
	if err != nil {
		jobError(w, err)
		return
	}
	if j.Status != job.StatusCompleted {
		writeError(w, http.StatusConflict,
			fmt.Sprintf("job is %q, not completed", j.Status))
		return
	}
	if j.OutputFile == "" {
		writeError(w, http.StatusNotFound, "job has no output file")
		return
	}

	path := j.OutputFile
	if format := r.URL.Query().Get("format"); format != "" {
		ext, ok := downloadExts[format]
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format))
			return
		}
		path = strings.TrimSuffix(path, filepath.Ext(path)) + ext
	}
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound,
			fmt.Sprintf("output %q not available", filepath.Base(path)))
		return
	}
	http.ServeFile(w, r, path)
}

// ── helpers ──────────────────────────────────────────────────────────────────

func referenceFilename(speakerID string) string {
	return fmt.Sprintf("ref_%s.wav", filepath.Base(speakerID))
}

func saveUpload(src io.Reader, dst string) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
