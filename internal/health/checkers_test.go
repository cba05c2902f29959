package health

import (
	"context"
	"testing"
)

func TestStorageWritable(t *testing.T) {
	c := StorageWritable(t.TempDir())
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("writable dir failed check: %v", err)
	}

	missing := StorageWritable("/nonexistent/revoice-storage")
	if err := missing.Check(context.Background()); err == nil {
		t.Error("missing dir passed check")
	}
}

func TestBinaryPresent(t *testing.T) {
	// sh exists on every platform the service targets.
	c := BinaryPresent("shell", "sh")
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("sh failed check: %v", err)
	}

	absent := BinaryPresent("ffmpeg", "definitely-not-ffmpeg-bin")
	if err := absent.Check(context.Background()); err == nil {
		t.Error("absent binary passed check")
	}
}
