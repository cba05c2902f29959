package server

import (
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/revoicehq/revoice/internal/job"
	"github.com/revoicehq/revoice/internal/voice"
)

// voiceAudioFile is the stored name of a profile's reference recording.
const voiceAudioFile = "reference.wav"

// handleCreateVoice registers a voice profile from a multipart form:
// name (required), description, and an optional reference recording
// under "file".
func (s *Server) handleCreateVoice(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Voices == nil {
		writeError(w, http.StatusServiceUnavailable, "voice profiles are not configured")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.MaxUploadMB)<<20)

	name := r.FormValue("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	p := &voice.Profile{
		VoiceID:     job.NewID(),
		Name:        name,
		Description: r.FormValue("description"),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.cfg.Voices.Create(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if file, _, err := r.FormFile("file"); err == nil {
		dst := filepath.Join(s.cfg.Voices.Dir(p.VoiceID), voiceAudioFile)
		saveErr := saveUpload(file, dst)
		file.Close()
		if saveErr != nil {
			writeError(w, http.StatusInternalServerError, "store recording: "+saveErr.Error())
			return
		}
		if err := s.cfg.Voices.SetAudio(r.Context(), p.VoiceID, voiceAudioFile); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		p.AudioFilename = voiceAudioFile
	}

	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleListVoices(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Voices == nil {
		writeError(w, http.StatusServiceUnavailable, "voice profiles are not configured")
		return
	}
	profiles, err := s.cfg.Voices.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (s *Server) handleGetVoice(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Voices == nil {
		writeError(w, http.StatusServiceUnavailable, "voice profiles are not configured")
		return
	}
	p, err := s.cfg.Voices.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "voice not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteVoice(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Voices == nil {
		writeError(w, http.StatusServiceUnavailable, "voice profiles are not configured")
		return
	}
	if err := s.cfg.Voices.Delete(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, voice.ErrNotFound) {
			writeError(w, http.StatusNotFound, "voice not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
