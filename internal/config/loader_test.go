package config_test

import (
	"strings"
	"testing"

	"github.com/revoicehq/revoice/internal/config"
)

func TestDefaults(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	if cfg.Server.ListenAddr != ":8000" {
		t.Errorf("listen addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Audio.SampleRate != 24000 {
		t.Errorf("sample rate = %d", cfg.Audio.SampleRate)
	}
	if cfg.Limits.MaxUploadMB != 500 {
		t.Errorf("max upload = %d", cfg.Limits.MaxUploadMB)
	}
	if err := config.Validate(cfg); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadFromReader(t *testing.T) {
	t.Parallel()

	yaml := `
server:
  listen_addr: ":9000"
  log_level: debug
storage:
  dir: /var/lib/revoice
audio:
  sample_rate: 22050
providers:
  transcriber:
    name: whisper
    base_url: http://localhost:8080
  tts:
    name: qwen
    base_url: http://localhost:8880
    options:
      ref_text: "hello there"
`
	cfg := config.Default()
	if err := config.LoadFromReader(strings.NewReader(yaml), cfg); err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":9000" || cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Storage.Dir != "/var/lib/revoice" {
		t.Errorf("storage dir = %q", cfg.Storage.Dir)
	}
	if cfg.Audio.SampleRate != 22050 {
		t.Errorf("sample rate = %d", cfg.Audio.SampleRate)
	}
	// Fields not mentioned in the file keep their defaults.
	if cfg.Audio.MaxSpeakers != 10 {
		t.Errorf("max speakers = %d, want default 10", cfg.Audio.MaxSpeakers)
	}
	if got := cfg.Providers.TTS.OptString("ref_text", ""); got != "hello there" {
		t.Errorf("tts ref_text option = %q", got)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	err := config.LoadFromReader(strings.NewReader("server:\n  listen_adr: ':1'\n"), cfg)
	if err == nil {
		t.Fatal("expected error for misspelled field")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("STORAGE_DIR", "/tmp/rv")
	t.Setenv("SAMPLE_RATE", "16000")
	t.Setenv("MAX_FILE_SIZE_MB", "100")
	t.Setenv("TRANSCRIBER_PROVIDER", "openai")
	t.Setenv("TRANSCRIBER_API_KEY", "sk-test")
	t.Setenv("MIN_SPEAKERS", "not-a-number")

	cfg := config.Default()
	config.ApplyEnv(cfg)
	if cfg.Storage.Dir != "/tmp/rv" {
		t.Errorf("storage dir = %q", cfg.Storage.Dir)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("sample rate = %d", cfg.Audio.SampleRate)
	}
	if cfg.Limits.MaxUploadMB != 100 {
		t.Errorf("max upload = %d", cfg.Limits.MaxUploadMB)
	}
	if cfg.Providers.Transcriber.Name != "openai" || cfg.Providers.Transcriber.APIKey != "sk-test" {
		t.Errorf("transcriber = %+v", cfg.Providers.Transcriber)
	}
	// Bad integer is ignored, default kept.
	if cfg.Audio.MinSpeakers != 1 {
		t.Errorf("min speakers = %d, want default 1", cfg.Audio.MinSpeakers)
	}
}

func TestStorageDerivedDirs(t *testing.T) {
	t.Parallel()

	s := config.StorageConfig{Dir: "/data"}
	if s.JobsDir() != "/data/jobs" {
		t.Errorf("jobs dir = %q", s.JobsDir())
	}
	if s.VoicesDir() != "/data/voices" {
		t.Errorf("voices dir = %q", s.VoicesDir())
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Server.LogLevel = "loud"
	cfg.Audio.SampleRate = 0
	cfg.Audio.MinSpeakers = 5
	cfg.Audio.MaxSpeakers = 2
	cfg.Limits.MaxUploadMB = -1

	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"log_level", "sample_rate", "max_speakers", "max_upload_mb"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q: %v", want, err)
		}
	}
}

func TestLogLevelIsValid(t *testing.T) {
	t.Parallel()

	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("%q should be valid", l)
		}
	}
	if config.LogLevel("verbose").IsValid() {
		t.Error("verbose should be invalid")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if err := config.Load("/nonexistent/revoice.yaml", config.Default()); err == nil {
		t.Fatal("expected error")
	}
}
