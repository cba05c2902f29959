package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/revoicehq/revoice/internal/job"
	"github.com/revoicehq/revoice/pkg/audio/mix"
	"github.com/revoicehq/revoice/pkg/provider/musicgen"
	"github.com/revoicehq/revoice/pkg/provider/tts"
)

// Parameter bounds and defaults for the standalone endpoints.
const (
	minRate = 0.5
	maxRate = 2.0

	minMusicDuration = 5.0
	maxMusicDuration = 30.0

	defaultSpeechVolume = 0.8
	defaultMusicVolume  = 0.3
)

// decodeJSON reads a JSON body, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// handleTTS accepts a multipart synthesis request: text plus optional
// language, speed, pitch, tts_model, ref_text, and either a voice_id
// referencing a stored profile or an uploaded reference_audio sample.
func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.MaxUploadMB)<<20)

	text := r.FormValue("text")
	if text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	speed, err := formRate(r, "speed")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pitch, err := formRate(r, "pitch")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	synth := tts.Request{
		Text:          text,
		Language:      r.FormValue("language"),
		Model:         r.FormValue("tts_model"),
		ReferenceText: r.FormValue("ref_text"),
		Speed:         speed,
		Pitch:         pitch,
	}
	if voiceID := r.FormValue("voice_id"); voiceID != "" {
		if s.cfg.Voices == nil {
			writeError(w, http.StatusBadRequest, "voice profiles are not configured")
			return
		}
		p, err := s.cfg.Voices.Get(r.Context(), voiceID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if p == nil || p.AudioFilename == "" {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("voice %q not found or has no reference recording", voiceID))
			return
		}
		synth.ReferenceWAV = filepath.Join(s.cfg.Voices.Dir(p.VoiceID), p.AudioFilename)
	}

	j, err := s.cfg.Jobs.Create(job.InputText, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// An uploaded sample loses to an explicit voice profile.
	if synth.ReferenceWAV == "" {
		ref, err := s.saveReferenceAudio(r, j.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		synth.ReferenceWAV = ref
	}

	s.cfg.Pipeline.StartTTS(j.ID, synth)
	writeJSON(w, http.StatusAccepted, j)
}

// handleMusic accepts a multipart generation request: prompt and
// duration, optional style and reference_audio for melody conditioning.
func (s *Server) handleMusic(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.MaxUploadMB)<<20)

	prompt := r.FormValue("prompt")
	if prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	duration, err := formFloat(r, "duration", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if duration < minMusicDuration || duration > maxMusicDuration {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("duration must be between %g and %g seconds", minMusicDuration, maxMusicDuration))
		return
	}

	j, err := s.cfg.Jobs.Create(job.InputText, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ref, err := s.saveReferenceAudio(r, j.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.cfg.Pipeline.StartMusic(j.ID, musicgen.Request{
		Prompt:       prompt,
		Duration:     duration,
		Style:        r.FormValue("style"),
		ReferenceWAV: ref,
	})
	writeJSON(w, http.StatusAccepted, j)
}

// mixRequest is the body of POST /api/mix. The volume fields are
// pointers so an absent field keeps its default.
type mixRequest struct {
	TTSJobID    string   `json:"tts_job_id"`
	MusicJobID  string   `json:"music_job_id"`
	TTSVolume   *float64 `json:"tts_volume,omitempty"`
	MusicVolume *float64 `json:"music_volume,omitempty"`
	MusicDelay  float64  `json:"music_delay,omitempty"`
}

// handleMix composes the outputs of two finished jobs into a new mixing
// job. Both referenced jobs must be completed with their artifacts still
// on disk.
func (s *Server) handleMix(w http.ResponseWriter, r *http.Request) {
	var req mixRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.TTSJobID == "" || req.MusicJobID == "" {
		writeError(w, http.StatusBadRequest, "tts_job_id and music_job_id are required")
		return
	}

	opt := mix.SimpleOptions{
		SpeechVolume: defaultSpeechVolume,
		MusicVolume:  defaultMusicVolume,
		MusicDelay:   req.MusicDelay,
	}
	if req.TTSVolume != nil {
		opt.SpeechVolume = *req.TTSVolume
	}
	if req.MusicVolume != nil {
		opt.MusicVolume = *req.MusicVolume
	}
	if err := checkVolume("tts_volume", opt.SpeechVolume); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := checkVolume("music_volume", opt.MusicVolume); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if opt.MusicDelay < 0 {
		writeError(w, http.StatusBadRequest, "music_delay must not be negative")
		return
	}

	speechPath, err := s.completedOutput(req.TTSJobID, "tts")
	if err != nil {
		mixSourceError(w, err)
		return
	}
	musicPath, err := s.completedOutput(req.MusicJobID, "music")
	if err != nil {
		mixSourceError(w, err)
		return
	}

	j, err := s.cfg.Jobs.Create(job.InputText, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.cfg.Pipeline.StartMix(j.ID, speechPath, musicPath, opt)
	writeJSON(w, http.StatusAccepted, j)
}

// errMixSource marks mix-source precondition failures for status mapping.
var errMixSource = errors.New("mix source")

// completedOutput returns the output artifact of a source job, requiring
// the job to be completed with its file still present.
func (s *Server) completedOutput(jobID, role string) (string, error) {
	j, err := s.cfg.Jobs.Get(jobID)
	if err != nil {
		return "", fmt.Errorf("%s job: %w", role, err)
	}
	if j.Status != job.StatusCompleted {
		return "", fmt.Errorf("%w: %s job %s is %q, not completed", errMixSource, role, jobID, j.Status)
	}
	if j.OutputFile == "" {
		return "", fmt.Errorf("%w: %s job %s has no output file", errMixSource, role, jobID)
	}
	if _, err := os.Stat(j.OutputFile); err != nil {
		return "", fmt.Errorf("%w: %s job %s output missing: %v", errMixSource, role, jobID, err)
	}
	return j.OutputFile, nil
}

// mixSourceError maps a completedOutput failure onto 404 for unknown
// jobs and 400 for precondition violations.
func mixSourceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, job.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errMixSource):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// saveReferenceAudio stores an optional reference_audio upload in the
// job's references directory. Absent parts return "" without error.
func (s *Server) saveReferenceAudio(r *http.Request, jobID string) (string, error) {
	file, header, err := r.FormFile("reference_audio")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", fmt.Errorf("read reference_audio: %w", err)
	}
	defer file.Close()

	dst := filepath.Join(s.cfg.Workspace.ReferencesDir(jobID), filepath.Base(header.Filename))
	if err := saveUpload(file, dst); err != nil {
		return "", fmt.Errorf("store reference_audio: %w", err)
	}
	return dst, nil
}

// formRate parses a delivery-rate form field: absent means provider
// default, anything else must be within [0.5, 2.0].
func formRate(r *http.Request, name string) (float64, error) {
	v, err := formFloat(r, name, 0)
	if err != nil {
		return 0, err
	}
	if v != 0 && (v < minRate || v > maxRate) {
		return 0, fmt.Errorf("%s must be between %g and %g", name, minRate, maxRate)
	}
	return v, nil
}

// formFloat parses a numeric form field, keeping def when absent.
func formFloat(r *http.Request, name string, def float64) (float64, error) {
	v := r.FormValue(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	return f, nil
}

func checkVolume(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be between 0 and 1", name)
	}
	return nil
}
