// Package separate defines the source-separation provider interface: an
// external worker that splits a mixed track into vocals and accompaniment.
package separate

import "context"

// Provider splits a mixed audio file into stems.
type Provider interface {
	// Separate splits inputWAV into a vocal and an accompaniment stem
	// inside outDir and returns the paths of both files. Implementations
	// with more than two stems sum the non-vocal stems into the
	// accompaniment.
	Separate(ctx context.Context, inputWAV, outDir string) (vocals, accompaniment string, err error)

	// Name returns the provider's identifier for logs and metrics.
	Name() string
}
