package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider and store
// changes require a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// InterviewChanged is true when any per-session default changed. New
	// sessions pick up the new defaults; running sessions are unaffected.
	InterviewChanged bool

	// AudioChanged is true when the voice gate tuning changed. Applies to
	// sessions started after the reload.
	AudioChanged bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if interviewChanged(&old.Interview, &new.Interview) {
		d.InterviewChanged = true
	}

	if old.Audio != new.Audio {
		d.AudioChanged = true
	}

	return d
}

// interviewChanged compares the per-session interview defaults.
func interviewChanged(old, new *InterviewConfig) bool {
	if old.Role != new.Role ||
		old.Difficulty != new.Difficulty ||
		old.DurationMinutes != new.DurationMinutes ||
		old.DocumentBudget != new.DocumentBudget ||
		old.Voice != new.Voice ||
		old.Language != new.Language {
		return true
	}
	if len(old.Keywords) != len(new.Keywords) {
		return true
	}
	for i := range old.Keywords {
		if old.Keywords[i] != new.Keywords[i] {
			return true
		}
	}
	return false
}
