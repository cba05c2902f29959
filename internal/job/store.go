package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/revoicehq/revoice/internal/workspace"
)

// ErrNotFound is returned when a job ID resolves to nothing, in memory or
// on disk.
var ErrNotFound = errors.New("job: not found")

// Store keeps all jobs in memory and writes every change through to the
// job's workspace as indented job.json. The in-memory map is authoritative;
// a failed write is logged and the workflow carries on, so a crash can lose
// at most the latest transition.
type Store struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ws   *workspace.Manager
}

// NewStore builds a store over the given workspace manager and recovers
// every job whose job.json survives on disk. Unreadable metadata files are
// logged and skipped rather than failing startup.
func NewStore(ws *workspace.Manager) (*Store, error) {
	s := &Store{jobs: make(map[string]*Job), ws: ws}

	entries, err := os.ReadDir(ws.Root())
	if err != nil {
		return nil, fmt.Errorf("job: scan workspaces: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		j, err := s.loadFromDisk(e.Name())
		if err != nil {
			slog.Warn("job: skipping unreadable workspace", "job", e.Name(), "error", err)
			continue
		}
		s.jobs[j.ID] = j
	}
	if len(s.jobs) > 0 {
		slog.Info("job: recovered persisted jobs", "count", len(s.jobs))
	}
	return s, nil
}

// Create allocates a job with a fresh ID, builds its workspace and persists
// the initial pending state.
func (s *Store) Create(kind InputKind, filename string) (*Job, error) {
	now := time.Now().UTC()
	j := &Job{
		ID:            NewID(),
		Status:        StatusPending,
		InputKind:     kind,
		InputFilename: filename,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.ws.Create(j.ID); err != nil {
		return nil, fmt.Errorf("job: create workspace: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = j
	s.persist(j)
	return j.Clone(), nil
}

// Get returns a copy of a job. A job missing from memory is looked up on
// disk once and cached, which lets a restarted process serve jobs it has
// not listed yet.
func (s *Store) Get(id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		return j.Clone(), nil
	}
	j, err := s.loadFromDisk(id)
	if err != nil {
		return nil, ErrNotFound
	}
	s.jobs[id] = j
	return j.Clone(), nil
}

// Update applies mutate to a job under the store lock, stamps UpdatedAt and
// persists the result. Returns a copy of the updated job.
func (s *Store) Update(id string, mutate func(*Job)) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	mutate(j)
	j.UpdatedAt = time.Now().UTC()
	s.persist(j)
	return j.Clone(), nil
}

// List returns copies of all jobs, newest first.
func (s *Store) List() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.Clone())
	}
	sort.Slice(out, func(a, b int) bool {
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return out
}

// Delete removes a job and its entire workspace tree. Deleting an unknown
// job returns ErrNotFound.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		if _, err := s.loadFromDisk(id); err != nil {
			return ErrNotFound
		}
	}
	delete(s.jobs, id)
	if err := s.ws.Destroy(id); err != nil {
		return fmt.Errorf("job: delete %s: %w", id, err)
	}
	return nil
}

// Workspace returns the job's workspace directory.
func (s *Store) Workspace(id string) string { return s.ws.Dir(id) }

// persist writes job.json; callers hold the lock. Failures are logged, not
// propagated, keeping the in-memory state authoritative.
func (s *Store) persist(j *Job) {
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		slog.Error("job: marshal metadata", "job", j.ID, "error", err)
		return
	}
	if err := os.WriteFile(s.ws.JobFile(j.ID), data, 0o644); err != nil {
		slog.Error("job: persist metadata", "job", j.ID, "error", err)
	}
}

func (s *Store) loadFromDisk(id string) (*Job, error) {
	data, err := os.ReadFile(s.ws.JobFile(id))
	if err != nil {
		return nil, err
	}
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse job.json: %w", err)
	}
	if j.ID == "" {
		j.ID = id
	}
	return &j, nil
}
