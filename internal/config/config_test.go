package config_test

import (
	"context"
	"errors"
	"testing"

	"github.com/revoicehq/revoice/internal/config"
	"github.com/revoicehq/revoice/pkg/provider/transcribe"
	"github.com/revoicehq/revoice/pkg/provider/tts"
)

// ── registry test doubles ────────────────────────────────────────────────────

type stubTranscriber struct{ model string }

func (s *stubTranscriber) Transcribe(context.Context, string) (string, error) { return "", nil }
func (s *stubTranscriber) Name() string                                       { return "stub" }

type stubTTS struct{}

func (s *stubTTS) Synthesize(context.Context, tts.Request, string) error { return nil }
func (s *stubTTS) Name() string                                          { return "stub" }

// ── tests ────────────────────────────────────────────────────────────────────

func TestRegistryCreate(t *testing.T) {
	t.Parallel()

	r := config.NewRegistry()
	r.RegisterTranscriber("stub", func(e config.ProviderEntry) (transcribe.Provider, error) {
		return &stubTranscriber{model: e.Model}, nil
	})
	r.RegisterTTS("stub", func(config.ProviderEntry) (tts.Provider, error) {
		return &stubTTS{}, nil
	})

	p, err := r.CreateTranscriber(config.ProviderEntry{Name: "stub", Model: "base.en"})
	if err != nil {
		t.Fatalf("CreateTranscriber: %v", err)
	}
	if got := p.(*stubTranscriber).model; got != "base.en" {
		t.Errorf("factory did not receive entry, model = %q", got)
	}
	if _, err := r.CreateTTS(config.ProviderEntry{Name: "stub"}); err != nil {
		t.Errorf("CreateTTS: %v", err)
	}
}

func TestRegistryUnregisteredName(t *testing.T) {
	t.Parallel()

	r := config.NewRegistry()
	_, err := r.CreateSeparator(config.ProviderEntry{Name: "spleeter"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Fatalf("err = %v, want ErrProviderNotRegistered", err)
	}
	if _, err := r.CreateDiarizer(config.ProviderEntry{Name: "nemo"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("diarizer err = %v", err)
	}
	if _, err := r.CreateMusic(config.ProviderEntry{Name: "suno"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("music err = %v", err)
	}
}

func TestRegistryOverwrite(t *testing.T) {
	t.Parallel()

	r := config.NewRegistry()
	r.RegisterTranscriber("stub", func(config.ProviderEntry) (transcribe.Provider, error) {
		return &stubTranscriber{model: "first"}, nil
	})
	r.RegisterTranscriber("stub", func(config.ProviderEntry) (transcribe.Provider, error) {
		return &stubTranscriber{model: "second"}, nil
	})
	p, err := r.CreateTranscriber(config.ProviderEntry{Name: "stub"})
	if err != nil {
		t.Fatal(err)
	}
	if got := p.(*stubTranscriber).model; got != "second" {
		t.Errorf("re-registration not honoured, model = %q", got)
	}
}
