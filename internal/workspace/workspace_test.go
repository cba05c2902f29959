package workspace_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/revoicehq/revoice/internal/workspace"
)

func newManager(t *testing.T) *workspace.Manager {
	t.Helper()
	m, err := workspace.NewManager(filepath.Join(t.TempDir(), "jobs"))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("touch %s: %v", path, err)
	}
}

func TestCreateBuildsTree(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	if err := m.Create("abc123"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, sub := range []string{"input", "vocals", "music", "segments", "references", "output"} {
		info, err := os.Stat(filepath.Join(m.Dir("abc123"), sub))
		if err != nil || !info.IsDir() {
			t.Errorf("missing subdir %s: %v", sub, err)
		}
	}

	// Idempotent: existing content survives a second Create.
	touch(t, filepath.Join(m.InputDir("abc123"), "keep.mp4"))
	if err := m.Create("abc123"); err != nil {
		t.Fatalf("second Create: %v", err)
	}
	if _, err := os.Stat(filepath.Join(m.InputDir("abc123"), "keep.mp4")); err != nil {
		t.Errorf("Create clobbered existing file: %v", err)
	}
}

func TestDestroy(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	if err := m.Create("gone"); err != nil {
		t.Fatal(err)
	}
	if err := m.Destroy("gone"); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if _, err := os.Stat(m.Dir("gone")); !os.IsNotExist(err) {
		t.Errorf("workspace still present after Destroy")
	}
	// Destroying a missing workspace is not an error.
	if err := m.Destroy("never-existed"); err != nil {
		t.Errorf("Destroy on missing workspace: %v", err)
	}
}

func TestResolveMusic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		files []string // relative to job dir
		want  string   // "" means ErrNoAccompaniment
	}{
		{
			name:  "accompaniment in music dir",
			files: []string{"music/accompaniment.wav", "vocals/vocals.wav"},
			want:  "music/accompaniment.wav",
		},
		{
			name:  "marker priority over directory order",
			files: []string{"vocals/accompaniment.wav", "music/no_vocals.wav"},
			want:  "vocals/accompaniment.wav",
		},
		{
			name:  "no_vocals naming",
			files: []string{"music/no_vocals.wav"},
			want:  "music/no_vocals.wav",
		},
		{
			name:  "marker at workspace root",
			files: []string{"background_music.wav"},
			want:  "background_music.wav",
		},
		{
			name:  "fallback to any wav in music dir",
			files: []string{"music/track01.wav"},
			want:  "music/track01.wav",
		},
		{
			name:  "non-wav files ignored",
			files: []string{"music/accompaniment.mp3", "vocals/vocals.wav"},
			want:  "",
		},
		{
			name:  "empty workspace",
			files: []string{"vocals/vocals.wav"},
			want:  "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := newManager(t)
			if err := m.Create("j"); err != nil {
				t.Fatal(err)
			}
			for _, f := range tt.files {
				touch(t, filepath.Join(m.Dir("j"), filepath.FromSlash(f)))
			}
			got, err := m.ResolveMusic("j")
			if tt.want == "" {
				if !errors.Is(err, workspace.ErrNoAccompaniment) {
					t.Fatalf("err = %v, want ErrNoAccompaniment", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveMusic: %v", err)
			}
			if want := filepath.Join(m.Dir("j"), filepath.FromSlash(tt.want)); got != want {
				t.Errorf("got %q, want %q", got, want)
			}
		})
	}
}

func TestResolveOriginal(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	if err := m.Create("j"); err != nil {
		t.Fatal(err)
	}

	// Only extracted audio: no original.
	touch(t, m.InputWAV("j"))
	got, err := m.ResolveOriginal("j")
	if err != nil {
		t.Fatalf("ResolveOriginal: %v", err)
	}
	if got != "" {
		t.Errorf("got %q, want empty", got)
	}

	touch(t, filepath.Join(m.InputDir("j"), "movie.mp4"))
	got, err = m.ResolveOriginal("j")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(m.InputDir("j"), "movie.mp4"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveOriginalMissingWorkspace(t *testing.T) {
	t.Parallel()

	m := newManager(t)
	got, err := m.ResolveOriginal("nope")
	if err != nil || got != "" {
		t.Errorf("got (%q, %v), want empty and nil", got, err)
	}
}
