// Package workspace owns the on-disk layout of job directories and the
// file-resolution policies the pipeline relies on between stages.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoAccompaniment is returned by ResolveMusic when no accompaniment
// track can be located anywhere in a job's workspace.
var ErrNoAccompaniment = errors.New("workspace: no accompaniment track found")

// subdirs created for every job, alongside job.json.
var subdirs = []string{"input", "vocals", "music", "segments", "references", "output"}

// accompaniment name markers, checked as substrings in priority order
// against WAV files in the search directories.
var musicMarkers = []string{"accompaniment", "no_vocals", "music"}

// Manager creates, resolves and destroys per-job directory trees under a
// single root.
type Manager struct {
	root string
}

// NewManager returns a Manager rooted at dir, creating it if needed.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: create root: %w", err)
	}
	return &Manager{root: dir}, nil
}

// Root returns the directory all job workspaces live under.
func (m *Manager) Root() string { return m.root }

// Dir returns the workspace directory for a job.
func (m *Manager) Dir(jobID string) string { return filepath.Join(m.root, jobID) }

// Create builds the workspace tree for a job. It is idempotent; existing
// directories and their contents are left alone.
func (m *Manager) Create(jobID string) error {
	dir := m.Dir(jobID)
	for _, sub := range subdirs {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return fmt.Errorf("workspace: create %s/%s: %w", jobID, sub, err)
		}
	}
	return nil
}

// Destroy removes the entire workspace tree for a job.
func (m *Manager) Destroy(jobID string) error {
	if err := os.RemoveAll(m.Dir(jobID)); err != nil {
		return fmt.Errorf("workspace: destroy %s: %w", jobID, err)
	}
	return nil
}

// JobFile returns the path of the job's metadata file.
func (m *Manager) JobFile(jobID string) string {
	return filepath.Join(m.Dir(jobID), "job.json")
}

// InputWAV returns the canonical extracted-audio path for a job.
func (m *Manager) InputWAV(jobID string) string {
	return filepath.Join(m.Dir(jobID), "input", "audio.wav")
}

// InputDir returns the job's input directory.
func (m *Manager) InputDir(jobID string) string { return filepath.Join(m.Dir(jobID), "input") }

// VocalsDir returns the job's separated-vocals directory.
func (m *Manager) VocalsDir(jobID string) string { return filepath.Join(m.Dir(jobID), "vocals") }

// MusicDir returns the job's accompaniment directory.
func (m *Manager) MusicDir(jobID string) string { return filepath.Join(m.Dir(jobID), "music") }

// SegmentsDir returns the job's per-segment clips directory.
func (m *Manager) SegmentsDir(jobID string) string { return filepath.Join(m.Dir(jobID), "segments") }

// ReferencesDir returns the job's reference-voice directory.
func (m *Manager) ReferencesDir(jobID string) string {
	return filepath.Join(m.Dir(jobID), "references")
}

// OutputDir returns the job's output directory.
func (m *Manager) OutputDir(jobID string) string { return filepath.Join(m.Dir(jobID), "output") }

// ResolveMusic locates the accompaniment track of a job. WAV files whose
// name contains an accompaniment marker are searched for in music/, then
// vocals/, then the workspace root; failing that, any WAV in music/ is
// accepted. Returns ErrNoAccompaniment when nothing qualifies.
func (m *Manager) ResolveMusic(jobID string) (string, error) {
	dirs := []string{m.MusicDir(jobID), m.VocalsDir(jobID), m.Dir(jobID)}
	for _, marker := range musicMarkers {
		for _, dir := range dirs {
			if p := findWAV(dir, marker); p != "" {
				return p, nil
			}
		}
	}
	if p := findWAV(m.MusicDir(jobID), ""); p != "" {
		return p, nil
	}
	return "", ErrNoAccompaniment
}

// ResolveOriginal locates the originally uploaded file in input/, which is
// any file other than the extracted audio.wav. Returns "" with a nil error
// when only the extracted audio exists, as for direct text jobs.
func (m *Manager) ResolveOriginal(jobID string) (string, error) {
	entries, err := os.ReadDir(m.InputDir(jobID))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("workspace: read input dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || e.Name() == "audio.wav" {
			continue
		}
		return filepath.Join(m.InputDir(jobID), e.Name()), nil
	}
	return "", nil
}

// findWAV returns the first WAV in dir whose lowercased name contains
// marker, in lexical order for determinism. An empty marker matches any
// WAV. Missing directories yield "".
func findWAV(dir, marker string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		if !strings.HasSuffix(name, ".wav") {
			continue
		}
		if marker != "" && !strings.Contains(name, marker) {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return filepath.Join(dir, names[0])
}
