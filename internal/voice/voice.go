// Package voice manages reusable voice profiles: named reference
// recordings that text-to-speech providers clone from. Profile metadata
// lives in the configured backend (filesystem or PostgreSQL); the
// reference audio itself always lives on disk under the profile's
// directory, since providers read it as a file.
package voice

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a voice profile does not exist.
var ErrNotFound = errors.New("voice: profile not found")

// Profile is a stored voice: a display name plus a reference recording.
type Profile struct {
	VoiceID       string    `json:"voice_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	AudioFilename string    `json:"audio_filename,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Validate checks the fields a profile must carry before persistence.
func (p *Profile) Validate() error {
	if p.VoiceID == "" {
		return errors.New("voice: profile id must not be empty")
	}
	if p.Name == "" {
		return fmt.Errorf("voice: profile %q: name must not be empty", p.VoiceID)
	}
	return nil
}

// Profiles provides CRUD operations for voice profiles.
// Implementations must be safe for concurrent use.
type Profiles interface {
	// Create inserts a new profile. The profile is validated before
	// insertion. Returns an error if a profile with the same ID exists.
	Create(ctx context.Context, p *Profile) error

	// Get retrieves a profile by ID. Returns (nil, nil) if not found.
	Get(ctx context.Context, id string) (*Profile, error)

	// SetAudio records the reference recording's filename for a profile.
	// The caller writes the audio bytes into Dir(id) beforehand.
	SetAudio(ctx context.Context, id, filename string) error

	// List returns all profiles sorted by name.
	List(ctx context.Context) ([]Profile, error)

	// Delete removes a profile and its reference audio. Deleting a
	// non-existent profile is not an error.
	Delete(ctx context.Context, id string) error

	// Dir returns the on-disk directory holding the profile's audio.
	// It does not guarantee the directory exists.
	Dir(id string) string
}
