package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"separator":   {"demucs"},
	"diarizer":    {"pyannote"},
	"transcriber": {"whisper", "whisper-native", "openai"},
	"tts":         {"qwen", "openai"},
	"music":       {"audiocraft"},
}

// Load layers the YAML configuration file at path over cfg. The decoder
// rejects unknown fields, so typos fail loudly instead of being ignored.
func Load(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	if err := LoadFromReader(f, cfg); err != nil {
		return fmt.Errorf("config: parse %q: %w", path, err)
	}
	return nil
}

// LoadFromReader decodes a YAML config from r into cfg. Useful in tests
// where configs are constructed from string literals.
func LoadFromReader(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg from environment variables. Env vars win over both
// defaults and the YAML file, mirroring the deployment convention of
// configuring the service entirely through its environment.
func ApplyEnv(cfg *Config) {
	envString(&cfg.Server.ListenAddr, "LISTEN_ADDR")
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = LogLevel(v)
	}
	envString(&cfg.Storage.Dir, "STORAGE_DIR")
	envInt(&cfg.Audio.SampleRate, "SAMPLE_RATE")
	envInt(&cfg.Audio.MinSpeakers, "MIN_SPEAKERS")
	envInt(&cfg.Audio.MaxSpeakers, "MAX_SPEAKERS")
	envString(&cfg.Media.FFmpegPath, "FFMPEG_PATH")
	envString(&cfg.Media.FFprobePath, "FFPROBE_PATH")
	envInt(&cfg.Limits.MaxUploadMB, "MAX_FILE_SIZE_MB")
	envString(&cfg.Voices.PostgresDSN, "VOICES_POSTGRES_DSN")

	envProvider(&cfg.Providers.Separator, "SEPARATOR")
	envProvider(&cfg.Providers.Diarizer, "DIARIZER")
	envProvider(&cfg.Providers.Transcriber, "TRANSCRIBER")
	envProvider(&cfg.Providers.TranscriberFallback, "TRANSCRIBER_FALLBACK")
	envProvider(&cfg.Providers.TTS, "TTS")
	envProvider(&cfg.Providers.TTSFallback, "TTS_FALLBACK")
	envProvider(&cfg.Providers.Music, "MUSIC")
}

func envProvider(e *ProviderEntry, prefix string) {
	envString(&e.Name, prefix+"_PROVIDER")
	envString(&e.APIKey, prefix+"_API_KEY")
	envString(&e.BaseURL, prefix+"_BASE_URL")
	envString(&e.Model, prefix+"_MODEL")
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config: ignoring non-integer environment value", "key", key, "value", v)
		return
	}
	*dst = n
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if cfg.Storage.Dir == "" {
		errs = append(errs, errors.New("storage.dir is required"))
	}
	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.MinSpeakers < 1 {
		errs = append(errs, fmt.Errorf("audio.min_speakers %d must be at least 1", cfg.Audio.MinSpeakers))
	}
	if cfg.Audio.MaxSpeakers < cfg.Audio.MinSpeakers {
		errs = append(errs, fmt.Errorf("audio.max_speakers %d must not be below audio.min_speakers %d", cfg.Audio.MaxSpeakers, cfg.Audio.MinSpeakers))
	}
	if cfg.Limits.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("limits.max_upload_mb %d must be positive", cfg.Limits.MaxUploadMB))
	}

	validateProviderName("separator", cfg.Providers.Separator.Name)
	validateProviderName("diarizer", cfg.Providers.Diarizer.Name)
	validateProviderName("transcriber", cfg.Providers.Transcriber.Name)
	validateProviderName("transcriber", cfg.Providers.TranscriberFallback.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("tts", cfg.Providers.TTSFallback.Name)
	validateProviderName("music", cfg.Providers.Music.Name)

	// Soft warnings: the server can run without workers for some
	// endpoints, so absence is not an error.
	if cfg.Providers.Separator.Name == "" || cfg.Providers.Diarizer.Name == "" || cfg.Providers.Transcriber.Name == "" {
		slog.Warn("analysis providers incomplete; media analysis jobs will fail",
			"separator", cfg.Providers.Separator.Name,
			"diarizer", cfg.Providers.Diarizer.Name,
			"transcriber", cfg.Providers.Transcriber.Name,
		)
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("no TTS provider configured; speech generation will fail")
	}
	if cfg.Providers.Music.Name == "" {
		slog.Warn("no music provider configured; music generation will fail")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
