package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/revoicehq/revoice/pkg/provider/diarize"
	"github.com/revoicehq/revoice/pkg/provider/musicgen"
	"github.com/revoicehq/revoice/pkg/provider/separate"
	"github.com/revoicehq/revoice/pkg/provider/transcribe"
	"github.com/revoicehq/revoice/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider kind. It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	separator   map[string]func(ProviderEntry) (separate.Provider, error)
	diarizer    map[string]func(ProviderEntry) (diarize.Provider, error)
	transcriber map[string]func(ProviderEntry) (transcribe.Provider, error)
	tts         map[string]func(ProviderEntry) (tts.Provider, error)
	music       map[string]func(ProviderEntry) (musicgen.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		separator:   make(map[string]func(ProviderEntry) (separate.Provider, error)),
		diarizer:    make(map[string]func(ProviderEntry) (diarize.Provider, error)),
		transcriber: make(map[string]func(ProviderEntry) (transcribe.Provider, error)),
		tts:         make(map[string]func(ProviderEntry) (tts.Provider, error)),
		music:       make(map[string]func(ProviderEntry) (musicgen.Provider, error)),
	}
}

// RegisterSeparator registers a source-separation provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSeparator(name string, factory func(ProviderEntry) (separate.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.separator[name] = factory
}

// RegisterDiarizer registers a diarization provider factory under name.
func (r *Registry) RegisterDiarizer(name string, factory func(ProviderEntry) (diarize.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diarizer[name] = factory
}

// RegisterTranscriber registers a transcription provider factory under name.
func (r *Registry) RegisterTranscriber(name string, factory func(ProviderEntry) (transcribe.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcriber[name] = factory
}

// RegisterTTS registers a TTS provider factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterMusic registers a music-generation provider factory under name.
func (r *Registry) RegisterMusic(name string, factory func(ProviderEntry) (musicgen.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.music[name] = factory
}

// CreateSeparator instantiates a separation provider using the factory
// registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateSeparator(entry ProviderEntry) (separate.Provider, error) {
	r.mu.RLock()
	factory, ok := r.separator[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: separator/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateDiarizer instantiates a diarization provider using the factory registered under entry.Name.
func (r *Registry) CreateDiarizer(entry ProviderEntry) (diarize.Provider, error) {
	r.mu.RLock()
	factory, ok := r.diarizer[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: diarizer/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateTranscriber instantiates a transcription provider using the factory registered under entry.Name.
func (r *Registry) CreateTranscriber(entry ProviderEntry) (transcribe.Provider, error) {
	r.mu.RLock()
	factory, ok := r.transcriber[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: transcriber/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateTTS instantiates a TTS provider using the factory registered under entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateMusic instantiates a music-generation provider using the factory registered under entry.Name.
func (r *Registry) CreateMusic(entry ProviderEntry) (musicgen.Provider, error) {
	r.mu.RLock()
	factory, ok := r.music[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: music/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
