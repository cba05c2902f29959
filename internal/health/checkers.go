package health

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// StorageWritable returns a [Checker] that verifies the storage directory
// exists and accepts writes. The pipeline persists every job artifact
// there, so a read-only volume means the service cannot do useful work.
func StorageWritable(dir string) Checker {
	return Checker{
		Name: "storage",
		Check: func(ctx context.Context) error {
			probe := filepath.Join(dir, ".readyz")
			if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
				return fmt.Errorf("storage not writable: %w", err)
			}
			return os.Remove(probe)
		},
	}
}

// BinaryPresent returns a [Checker] that verifies an external tool (ffmpeg,
// ffprobe) resolves on PATH or at its configured location.
func BinaryPresent(name, path string) Checker {
	return Checker{
		Name: name,
		Check: func(ctx context.Context) error {
			if _, err := exec.LookPath(path); err != nil {
				return fmt.Errorf("%s not found at %q: %w", name, path, err)
			}
			return nil
		},
	}
}
