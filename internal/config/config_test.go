package config_test

import (
	"testing"

	"github.com/cadenza-ai/cadenza/internal/config"
)

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()
	valid := []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError}
	for _, l := range valid {
		if !l.IsValid() {
			t.Errorf("%q should be valid", l)
		}
	}
	invalid := []config.LogLevel{"", "trace", "INFO", "verbose"}
	for _, l := range invalid {
		if l.IsValid() {
			t.Errorf("%q should be invalid", l)
		}
	}
}

func TestDifficulty_IsValid(t *testing.T) {
	t.Parallel()
	valid := []config.Difficulty{config.DifficultyJunior, config.DifficultyMid, config.DifficultySenior}
	for _, d := range valid {
		if !d.IsValid() {
			t.Errorf("%q should be valid", d)
		}
	}
	invalid := []config.Difficulty{"", "staff", "Mid-Level", "intermediate"}
	for _, d := range invalid {
		if d.IsValid() {
			t.Errorf("%q should be invalid", d)
		}
	}
}
