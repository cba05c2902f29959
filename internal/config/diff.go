package config

import "reflect"

// ChangeSet describes what differs between two configs, split into the one
// change the server can apply live (log level) and everything that needs a
// restart to take effect.
type ChangeSet struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RestartNeeded lists the dotted config paths whose new values only
	// apply after a restart, e.g. "providers.tts" or "storage.dir".
	RestartNeeded []string
}

// Empty reports whether nothing relevant changed.
func (c ChangeSet) Empty() bool {
	return !c.LogLevelChanged && len(c.RestartNeeded) == 0
}

// Compare diffs old against new and classifies every change.
func Compare(old, new *Config) ChangeSet {
	var c ChangeSet

	if old.Server.LogLevel != new.Server.LogLevel {
		c.LogLevelChanged = true
		c.NewLogLevel = new.Server.LogLevel
	}

	restart := func(path string, changed bool) {
		if changed {
			c.RestartNeeded = append(c.RestartNeeded, path)
		}
	}

	restart("server.listen_addr", old.Server.ListenAddr != new.Server.ListenAddr)
	restart("storage.dir", old.Storage.Dir != new.Storage.Dir)
	restart("audio", old.Audio != new.Audio)
	restart("media", old.Media != new.Media)
	restart("limits.max_upload_mb", old.Limits.MaxUploadMB != new.Limits.MaxUploadMB)
	restart("voices.postgres_dsn", old.Voices.PostgresDSN != new.Voices.PostgresDSN)

	restart("providers.separator", !entryEqual(old.Providers.Separator, new.Providers.Separator))
	restart("providers.diarizer", !entryEqual(old.Providers.Diarizer, new.Providers.Diarizer))
	restart("providers.transcriber", !entryEqual(old.Providers.Transcriber, new.Providers.Transcriber))
	restart("providers.transcriber_fallback", !entryEqual(old.Providers.TranscriberFallback, new.Providers.TranscriberFallback))
	restart("providers.tts", !entryEqual(old.Providers.TTS, new.Providers.TTS))
	restart("providers.tts_fallback", !entryEqual(old.Providers.TTSFallback, new.Providers.TTSFallback))
	restart("providers.music", !entryEqual(old.Providers.Music, new.Providers.Music))

	return c
}

// entryEqual compares two provider entries field by field. The free-form
// options map can hold nested YAML values, so it is compared deeply.
func entryEqual(a, b ProviderEntry) bool {
	return a.Name == b.Name &&
		a.APIKey == b.APIKey &&
		a.BaseURL == b.BaseURL &&
		a.Model == b.Model &&
		reflect.DeepEqual(a.Options, b.Options)
}
