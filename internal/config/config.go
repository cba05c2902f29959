// Package config provides the configuration schema, loaders, and provider
// registry for the revoice server.
package config

import "path/filepath"

// LogLevel controls log verbosity for the revoice server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for revoice. Defaults come from
// [Default], an optional YAML file layers on top via [Load], and environment
// variables override both via [ApplyEnv].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Audio     AudioConfig     `yaml:"audio"`
	Media     MediaConfig     `yaml:"media"`
	Limits    LimitsConfig    `yaml:"limits"`
	Providers ProvidersConfig `yaml:"providers"`
	Voices    VoicesConfig    `yaml:"voices"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8000").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// StorageConfig locates the on-disk state of the server.
type StorageConfig struct {
	// Dir is the root under which job workspaces and voice profiles live.
	Dir string `yaml:"dir"`
}

// JobsDir returns the directory job workspaces are created under.
func (s StorageConfig) JobsDir() string { return filepath.Join(s.Dir, "jobs") }

// VoicesDir returns the directory voice profiles are stored under.
func (s StorageConfig) VoicesDir() string { return filepath.Join(s.Dir, "voices") }

// AudioConfig holds the pipeline's working audio parameters.
type AudioConfig struct {
	// SampleRate is the mono working rate every stage operates at.
	SampleRate int `yaml:"sample_rate"`

	// MinSpeakers and MaxSpeakers bound the diarizer's speaker search.
	MinSpeakers int `yaml:"min_speakers"`
	MaxSpeakers int `yaml:"max_speakers"`
}

// MediaConfig locates the external media binaries.
type MediaConfig struct {
	// FFmpegPath and FFprobePath override the binaries used for
	// demux/mux/transcode. Empty means look them up on PATH.
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`
}

// LimitsConfig bounds what the API accepts.
type LimitsConfig struct {
	// MaxUploadMB caps the size of uploaded media files.
	MaxUploadMB int `yaml:"max_upload_mb"`
}

// ProvidersConfig declares which external worker implementation serves each
// pipeline stage. Each field selects a named provider registered in the
// [Registry]. The fallback entries are optional; when set, the primary and
// fallback are chained behind a circuit breaker.
type ProvidersConfig struct {
	Separator           ProviderEntry `yaml:"separator"`
	Diarizer            ProviderEntry `yaml:"diarizer"`
	Transcriber         ProviderEntry `yaml:"transcriber"`
	TranscriberFallback ProviderEntry `yaml:"transcriber_fallback"`
	TTS                 ProviderEntry `yaml:"tts"`
	TTSFallback         ProviderEntry `yaml:"tts_fallback"`
	Music               ProviderEntry `yaml:"music"`
}

// ProviderEntry is the common configuration block shared by all provider
// kinds. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "demucs", "whisper").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "htdemucs").
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered by the standard
	// fields above.
	Options map[string]any `yaml:"options"`
}

// OptString returns the named option as a string, or def when absent or not
// a string.
func (e ProviderEntry) OptString(key, def string) string {
	if v, ok := e.Options[key].(string); ok {
		return v
	}
	return def
}

// VoicesConfig selects the voice-profile store backend.
type VoicesConfig struct {
	// PostgresDSN enables the Postgres-backed profile store when set;
	// empty keeps profiles on the filesystem under the storage dir.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8000",
			LogLevel:   LogInfo,
		},
		Storage: StorageConfig{Dir: "storage"},
		Audio: AudioConfig{
			SampleRate:  24000,
			MinSpeakers: 1,
			MaxSpeakers: 10,
		},
		Limits: LimitsConfig{MaxUploadMB: 500},
	}
}
