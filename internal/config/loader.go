package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"agent": {"gemini", "openai-realtime"},
	"stt":   {"deepgram"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation: warn for unknown provider names.
	validateProviderName("agent", cfg.Providers.Agent.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)

	// Provider availability warnings
	if cfg.Providers.Agent.Name == "" {
		slog.Warn("no agent provider configured; interview sessions cannot be started")
	}
	if cfg.Providers.Agent.Name != "" && cfg.Providers.Agent.APIKey == "" {
		errs = append(errs, fmt.Errorf("providers.agent.api_key is required when providers.agent.name is set"))
	}
	if cfg.Providers.STT.Name != "" && cfg.Providers.STT.APIKey == "" {
		errs = append(errs, fmt.Errorf("providers.stt.api_key is required when providers.stt.name is set"))
	}
	if cfg.Providers.Landmarks.URL == "" {
		slog.Warn("providers.landmarks.url is empty; gaze metrics will be disabled")
	}
	if cfg.Providers.Landmarks.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("providers.landmarks.timeout_seconds %d must not be negative", cfg.Providers.Landmarks.TimeoutSeconds))
	}

	// Interview defaults
	if cfg.Interview.Difficulty != "" && !cfg.Interview.Difficulty.IsValid() {
		errs = append(errs, fmt.Errorf("interview.difficulty %q is invalid; valid values: junior, mid-level, senior", cfg.Interview.Difficulty))
	}
	if cfg.Interview.DurationMinutes < 0 {
		errs = append(errs, fmt.Errorf("interview.duration_minutes %d must not be negative", cfg.Interview.DurationMinutes))
	}
	if cfg.Interview.DocumentBudget < 0 {
		errs = append(errs, fmt.Errorf("interview.document_budget %d must not be negative", cfg.Interview.DocumentBudget))
	}
	for i, kw := range cfg.Interview.Keywords {
		prefix := fmt.Sprintf("interview.keywords[%d]", i)
		if kw.Keyword == "" {
			errs = append(errs, fmt.Errorf("%s.keyword is required", prefix))
		}
		if kw.Boost <= 0 {
			errs = append(errs, fmt.Errorf("%s.boost %.2f must be positive", prefix, kw.Boost))
		}
	}

	// Audio tuning
	if cfg.Audio.VoiceThreshold < 0 || cfg.Audio.VoiceThreshold > 1 {
		errs = append(errs, fmt.Errorf("audio.voice_threshold %.3f is out of range [0, 1]", cfg.Audio.VoiceThreshold))
	}
	if cfg.Audio.HangoverMS < 0 {
		errs = append(errs, fmt.Errorf("audio.hangover_ms %d must not be negative", cfg.Audio.HangoverMS))
	}

	// Store availability
	if cfg.Store.PostgresDSN == "" {
		slog.Warn("store.postgres_dsn is empty; session records will be kept in memory only")
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
	slog.Warn("unknown provider name; may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
