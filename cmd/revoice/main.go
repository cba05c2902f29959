// Command revoice is the voice replacement and dubbing server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/revoicehq/revoice/internal/config"
	"github.com/revoicehq/revoice/internal/health"
	"github.com/revoicehq/revoice/internal/job"
	"github.com/revoicehq/revoice/internal/media"
	"github.com/revoicehq/revoice/internal/observe"
	"github.com/revoicehq/revoice/internal/orchestrator"
	"github.com/revoicehq/revoice/internal/server"
	"github.com/revoicehq/revoice/internal/voice"
	"github.com/revoicehq/revoice/internal/workspace"
	"github.com/revoicehq/revoice/pkg/provider/diarize"
	"github.com/revoicehq/revoice/pkg/provider/diarize/pyannote"
	"github.com/revoicehq/revoice/pkg/provider/musicgen"
	"github.com/revoicehq/revoice/pkg/provider/musicgen/audiocraft"
	"github.com/revoicehq/revoice/pkg/provider/separate"
	"github.com/revoicehq/revoice/pkg/provider/separate/demucs"
	"github.com/revoicehq/revoice/pkg/provider/transcribe"
	oaitr "github.com/revoicehq/revoice/pkg/provider/transcribe/openai"
	"github.com/revoicehq/revoice/pkg/provider/transcribe/whisper"
	"github.com/revoicehq/revoice/pkg/provider/transcribe/whispercpp"
	"github.com/revoicehq/revoice/pkg/provider/tts"
	oaitts "github.com/revoicehq/revoice/pkg/provider/tts/openai"
	"github.com/revoicehq/revoice/pkg/provider/tts/qwen"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg := config.Default()
	if err := config.Load(*configPath, cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "revoice: %v\n", err)
			return 1
		}
		// No file is fine; defaults plus environment carry the config.
	}
	config.ApplyEnv(cfg)

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	if err := config.Validate(cfg); err != nil {
		slog.Error("invalid configuration", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	// Log level changes apply live; everything else is reported as needing
	// a restart.
	if _, err := os.Stat(*configPath); err == nil {
		watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
			c := config.Compare(old, new)
			if c.LogLevelChanged {
				logLevel.Set(slogLevel(c.NewLogLevel))
				slog.Info("log level changed", "level", c.NewLogLevel)
			}
			if len(c.RestartNeeded) > 0 {
				slog.Warn("config changes need a restart to take effect", "paths", c.RestartNeeded)
			}
		})
		if err != nil {
			slog.Warn("config watcher disabled", "err", err)
		} else {
			defer watcher.Stop()
		}
	}

	slog.Info("revoice starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	pipelineCfg, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Storage ───────────────────────────────────────────────────────────────
	ws, err := workspace.NewManager(cfg.Storage.JobsDir())
	if err != nil {
		slog.Error("failed to initialise workspace", "err", err)
		return 1
	}
	jobs, err := job.NewStore(ws)
	if err != nil {
		slog.Error("failed to initialise job store", "err", err)
		return 1
	}
	voices, cleanupVoices, err := buildVoiceStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise voice store", "err", err)
		return 1
	}
	defer cleanupVoices()

	// ── Pipeline ──────────────────────────────────────────────────────────────
	tools := media.NewTools(cfg.Media.FFmpegPath, cfg.Media.FFprobePath, cfg.Audio.SampleRate)
	pipelineCfg.SampleRate = cfg.Audio.SampleRate
	pipelineCfg.MinSpeakers = cfg.Audio.MinSpeakers
	pipelineCfg.MaxSpeakers = cfg.Audio.MaxSpeakers
	orch := orchestrator.New(jobs, ws, tools, pipelineCfg)

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := server.New(server.Config{
		Addr:        cfg.Server.ListenAddr,
		MaxUploadMB: cfg.Limits.MaxUploadMB,
		Jobs:        jobs,
		Workspace:   ws,
		Voices:      voices,
		Pipeline:    orch,
		Health: health.New(
			health.StorageWritable(cfg.Storage.Dir),
			health.BinaryPresent("ffmpeg", cfg.Media.FFmpegPath),
			health.BinaryPresent("ffprobe", cfg.Media.FFprobePath),
		),
	})

	printStartupSummary(cfg)
	slog.Info("server ready — press Ctrl+C to shut down")

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the provider
// from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Separation ────────────────────────────────────────────────────────────

	reg.RegisterSeparator("demucs", func(entry config.ProviderEntry) (separate.Provider, error) {
		var opts []demucs.Option
		if bin := entry.OptString("binary", ""); bin != "" {
			opts = append(opts, demucs.WithBinary(bin))
		}
		if entry.Model != "" {
			opts = append(opts, demucs.WithModel(entry.Model))
		}
		return demucs.New(opts...), nil
	})

	// ── Diarization ───────────────────────────────────────────────────────────

	reg.RegisterDiarizer("pyannote", func(entry config.ProviderEntry) (diarize.Provider, error) {
		return pyannote.New(entry.BaseURL)
	})

	// ── Transcription ─────────────────────────────────────────────────────────

	reg.RegisterTranscriber("whisper", func(entry config.ProviderEntry) (transcribe.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := entry.OptString("language", ""); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterTranscriber("whisper-native", func(entry config.ProviderEntry) (transcribe.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = entry.OptString("model_path", "")
		}
		var opts []whispercpp.Option
		if lang := entry.OptString("language", ""); lang != "" {
			opts = append(opts, whispercpp.WithLanguage(lang))
		}
		return whispercpp.New(modelPath, opts...)
	})

	reg.RegisterTranscriber("openai", func(entry config.ProviderEntry) (transcribe.Provider, error) {
		var opts []oaitr.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaitr.WithBaseURL(entry.BaseURL))
		}
		if lang := entry.OptString("language", ""); lang != "" {
			opts = append(opts, oaitr.WithLanguage(lang))
		}
		return oaitr.New(entry.APIKey, entry.Model, opts...)
	})

	// ── Speech synthesis ──────────────────────────────────────────────────────

	reg.RegisterTTS("qwen", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []qwen.Option
		if entry.Model != "" {
			opts = append(opts, qwen.WithModel(entry.Model))
		}
		if lang := entry.OptString("language", ""); lang != "" {
			opts = append(opts, qwen.WithLanguage(lang))
		}
		return qwen.New(entry.BaseURL, opts...)
	})

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []oaitts.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaitts.WithBaseURL(entry.BaseURL))
		}
		if voiceName := entry.OptString("voice", ""); voiceName != "" {
			opts = append(opts, oaitts.WithVoice(voiceName))
		}
		return oaitts.New(entry.APIKey, entry.Model, opts...)
	})

	// ── Music generation ──────────────────────────────────────────────────────

	reg.RegisterMusic("audiocraft", func(entry config.ProviderEntry) (musicgen.Provider, error) {
		var opts []audiocraft.Option
		if entry.Model != "" {
			opts = append(opts, audiocraft.WithModel(entry.Model))
		}
		return audiocraft.New(entry.BaseURL, opts...)
	})
}

// buildProviders instantiates every provider named in cfg and returns them
// assembled into the orchestrator's configuration. An unconfigured stage
// stays nil; jobs needing it fail with a clear error at run time.
func buildProviders(cfg *config.Config, reg *config.Registry) (orchestrator.Config, error) {
	var out orchestrator.Config

	if name := cfg.Providers.Separator.Name; name != "" {
		p, err := reg.CreateSeparator(cfg.Providers.Separator)
		if err != nil {
			return out, fmt.Errorf("create separator %q: %w", name, err)
		}
		out.Separator = p
		slog.Info("provider created", "kind", "separator", "name", name)
	}

	if name := cfg.Providers.Diarizer.Name; name != "" {
		p, err := reg.CreateDiarizer(cfg.Providers.Diarizer)
		if err != nil {
			return out, fmt.Errorf("create diarizer %q: %w", name, err)
		}
		out.Diarizer = p
		slog.Info("provider created", "kind", "diarizer", "name", name)
	}

	if name := cfg.Providers.Transcriber.Name; name != "" {
		p, err := reg.CreateTranscriber(cfg.Providers.Transcriber)
		if err != nil {
			return out, fmt.Errorf("create transcriber %q: %w", name, err)
		}
		if fbName := cfg.Providers.TranscriberFallback.Name; fbName != "" {
			fb, err := reg.CreateTranscriber(cfg.Providers.TranscriberFallback)
			if err != nil {
				return out, fmt.Errorf("create transcriber fallback %q: %w", fbName, err)
			}
			p = orchestrator.NewFallbackTranscriber(p, fb)
			slog.Info("transcriber failover enabled", "primary", name, "fallback", fbName)
		}
		out.Transcriber = p
		slog.Info("provider created", "kind", "transcriber", "name", name)
	}

	if name := cfg.Providers.TTS.Name; name != "" {
		p, err := reg.CreateTTS(cfg.Providers.TTS)
		if err != nil {
			return out, fmt.Errorf("create tts %q: %w", name, err)
		}
		if fbName := cfg.Providers.TTSFallback.Name; fbName != "" {
			fb, err := reg.CreateTTS(cfg.Providers.TTSFallback)
			if err != nil {
				return out, fmt.Errorf("create tts fallback %q: %w", fbName, err)
			}
			p = orchestrator.NewFallbackTTS(p, fb)
			slog.Info("tts failover enabled", "primary", name, "fallback", fbName)
		}
		out.TTS = p
		slog.Info("provider created", "kind", "tts", "name", name)
	}

	if name := cfg.Providers.Music.Name; name != "" {
		p, err := reg.CreateMusic(cfg.Providers.Music)
		if err != nil {
			return out, fmt.Errorf("create music %q: %w", name, err)
		}
		out.Music = p
		slog.Info("provider created", "kind", "music", "name", name)
	}

	return out, nil
}

// buildVoiceStore picks the profile backend: Postgres when a DSN is
// configured, plain directories under the storage root otherwise. The
// returned cleanup closes the connection pool, if any.
func buildVoiceStore(ctx context.Context, cfg *config.Config) (voice.Profiles, func(), error) {
	dir := cfg.Storage.VoicesDir()
	if dsn := cfg.Voices.PostgresDSN; dsn != "" {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("connect voices database: %w", err)
		}
		store := voice.NewPostgresStore(pool, dir)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate voices database: %w", err)
		}
		slog.Info("voice profiles stored in postgres")
		return store, pool.Close, nil
	}
	m, err := voice.NewManager(dir)
	if err != nil {
		return nil, nil, err
	}
	return m, func() {}, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Revoice — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Separator", cfg.Providers.Separator.Name, cfg.Providers.Separator.Model)
	printProvider("Diarizer", cfg.Providers.Diarizer.Name, cfg.Providers.Diarizer.Model)
	printProvider("Transcriber", cfg.Providers.Transcriber.Name, cfg.Providers.Transcriber.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	printProvider("Music", cfg.Providers.Music.Name, cfg.Providers.Music.Model)
	if cfg.Voices.PostgresDSN != "" {
		fmt.Printf("║  Voice store     : %-19s ║\n", "postgres")
	} else {
		fmt.Printf("║  Voice store     : %-19s ║\n", "filesystem")
	}
	fmt.Printf("║  Sample rate     : %-19d ║\n", cfg.Audio.SampleRate)
	fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
