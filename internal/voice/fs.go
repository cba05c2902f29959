package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const profileFile = "profile.json"

// Manager is a filesystem-backed [Profiles] implementation. Each profile
// lives in its own directory under the root, with metadata in
// profile.json next to the reference audio.
type Manager struct {
	mu       sync.Mutex
	root     string
	profiles map[string]*Profile
}

// Compile-time interface check.
var _ Profiles = (*Manager)(nil)

// NewManager creates a Manager rooted at dir and recovers any profiles
// already on disk. Directories without a readable profile.json are
// skipped with a warning.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("voice: create root: %w", err)
	}
	m := &Manager{root: dir, profiles: make(map[string]*Profile)}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("voice: scan root: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p, err := readProfile(filepath.Join(dir, e.Name(), profileFile))
		if err != nil {
			slog.Warn("skipping unreadable voice profile", "dir", e.Name(), "error", err)
			continue
		}
		if p.VoiceID == "" {
			p.VoiceID = e.Name()
		}
		m.profiles[p.VoiceID] = p
	}
	if n := len(m.profiles); n > 0 {
		slog.Info("recovered voice profiles from disk", "count", n)
	}
	return m, nil
}

// Dir implements [Profiles].
func (m *Manager) Dir(id string) string {
	return filepath.Join(m.root, id)
}

// Create implements [Profiles].
func (m *Manager) Create(ctx context.Context, p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[p.VoiceID]; ok {
		return fmt.Errorf("voice: profile %q already exists", p.VoiceID)
	}
	if err := os.MkdirAll(m.Dir(p.VoiceID), 0o755); err != nil {
		return fmt.Errorf("voice: create profile dir: %w", err)
	}
	if err := m.persistLocked(p); err != nil {
		return err
	}
	m.profiles[p.VoiceID] = clone(p)
	return nil
}

// Get implements [Profiles].
func (m *Manager) Get(ctx context.Context, id string) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, nil
	}
	return clone(p), nil
}

// SetAudio implements [Profiles].
func (m *Manager) SetAudio(ctx context.Context, id, filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	p.AudioFilename = filename
	return m.persistLocked(p)
}

// List implements [Profiles].
func (m *Manager) List(ctx context.Context) ([]Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, *p)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out, nil
}

// Delete implements [Profiles].
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.profiles, id)
	if err := os.RemoveAll(m.Dir(id)); err != nil {
		return fmt.Errorf("voice: delete profile %q: %w", id, err)
	}
	return nil
}

func (m *Manager) persistLocked(p *Profile) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("voice: marshal profile: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.Dir(p.VoiceID), profileFile), data, 0o644); err != nil {
		return fmt.Errorf("voice: write profile: %w", err)
	}
	return nil
}

func readProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func clone(p *Profile) *Profile {
	c := *p
	return &c
}
