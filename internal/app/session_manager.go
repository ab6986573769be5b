package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cadenza-ai/cadenza/internal/channel"
	"github.com/cadenza-ai/cadenza/internal/config"
	"github.com/cadenza-ai/cadenza/internal/interview"
	"github.com/cadenza-ai/cadenza/internal/observe"
	"github.com/cadenza-ai/cadenza/pkg/audio"
	"github.com/cadenza-ai/cadenza/pkg/provider/stt"
	"github.com/cadenza-ai/cadenza/pkg/session"
)

// SessionInfo holds metadata about an active session.
type SessionInfo struct {
	// SessionID is the unique identifier for this session.
	SessionID string

	// Role is the position interviewed for.
	Role string

	// StartedAt is when the session was started.
	StartedAt time.Time

	// Duration is the requested interview length.
	Duration time.Duration
}

// StartRequest carries per-session overrides of the configured interview
// defaults. Zero values fall back to the config.
type StartRequest struct {
	Role            string
	Difficulty      string
	DurationMinutes int
	JobDescription  string
	Resume          string
}

// SessionManager manages the lifecycle of interview sessions.
// Only one session can be active at a time (enforced by mutex).
// All exported methods are safe for concurrent use.
type SessionManager struct {
	mu     sync.Mutex
	active bool
	info   SessionInfo
	orch   *interview.Orchestrator

	// Dependencies injected at construction.
	cfg       *config.Config
	providers *Providers
	devices   audio.Devices
	store     session.Store
	metrics   *observe.Metrics
}

// SessionManagerConfig holds all dependencies for a [SessionManager].
type SessionManagerConfig struct {
	Config    *config.Config
	Providers *Providers
	Devices   audio.Devices
	Store     session.Store
	Metrics   *observe.Metrics
}

// NewSessionManager creates a SessionManager with the given dependencies.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	return &SessionManager{
		cfg:       cfg.Config,
		providers: cfg.Providers,
		devices:   cfg.Devices,
		store:     cfg.Store,
		metrics:   cfg.Metrics,
	}
}

// Start begins a new interview session. It acquires the audio devices,
// connects to the agent and speech-to-text collaborators, and begins
// streaming.
//
// Returns an error if a session is already active.
func (sm *SessionManager) Start(ctx context.Context, req StartRequest) (SessionInfo, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.active {
		return SessionInfo{}, fmt.Errorf("session: a session is already active (id=%s)", sm.info.SessionID)
	}

	sessionID := "interview-" + uuid.NewString()
	cfg := sm.sessionConfig(sessionID, req)

	var chanOpts []channel.Option
	if sm.cfg.Audio.VoiceThreshold > 0 || sm.cfg.Audio.HangoverMS > 0 {
		chanOpts = append(chanOpts, channel.WithVAD(
			sm.cfg.Audio.VoiceThreshold,
			time.Duration(sm.cfg.Audio.HangoverMS)*time.Millisecond,
		))
	}

	orch, err := interview.New(cfg, interview.Deps{
		Agent:     sm.providers.Agent,
		STT:       sm.providers.STT,
		Landmarks: sm.providers.Landmarks,
		Devices:   sm.devices,
		Store:     sm.store,
	}, interview.WithChannelOptions(chanOpts...), interview.WithMetrics(sm.metrics))
	if err != nil {
		return SessionInfo{}, fmt.Errorf("session: create orchestrator: %w", err)
	}

	orch.OnComplete(func(transcript []session.TranscriptEntry, assessments []session.QuestionAssessment) {
		slog.Info("interview completed",
			"session_id", sessionID,
			"transcript_entries", len(transcript),
			"assessments", len(assessments),
		)
		sm.deactivate(sessionID)
	})
	orch.OnError(func(err error) {
		slog.Error("interview transport fault", "session_id", sessionID, "err", err)
		sm.metrics.RecordProviderError(context.Background(), sm.cfg.Providers.Agent.Name, "agent")
	})

	if err := orch.StartSession(ctx); err != nil {
		return SessionInfo{}, fmt.Errorf("session: start: %w", err)
	}

	sm.active = true
	sm.orch = orch
	sm.info = SessionInfo{
		SessionID: sessionID,
		Role:      cfg.Role,
		StartedAt: time.Now().UTC(),
		Duration:  cfg.Duration,
	}
	sm.metrics.ActiveSessions.Add(ctx, 1)

	slog.Info("session started",
		"session_id", sessionID,
		"role", cfg.Role,
		"difficulty", cfg.Difficulty,
		"duration", cfg.Duration,
	)

	return sm.info, nil
}

// Stop ends the active session without waiting for the closing statement.
// Returns an error if no session is active.
func (sm *SessionManager) Stop() error {
	sm.mu.Lock()
	if !sm.active {
		sm.mu.Unlock()
		return fmt.Errorf("session: no active session to stop")
	}
	sessionID := sm.info.SessionID
	orch := sm.orch
	sm.mu.Unlock()

	orch.StopSession()
	sm.deactivate(sessionID)

	slog.Info("session stopped", "session_id", sessionID)
	return nil
}

// IsActive reports whether a session is currently running.
func (sm *SessionManager) IsActive() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.active
}

// Info returns metadata about the active session.
// Returns zero value if no session is active.
func (sm *SessionManager) Info() SessionInfo {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.info
}

// Snapshot returns the active session's observer view. The second return is
// false when no session is active.
func (sm *SessionManager) Snapshot() (interview.Snapshot, bool) {
	sm.mu.Lock()
	orch := sm.orch
	sm.mu.Unlock()
	if orch == nil {
		return interview.Snapshot{}, false
	}
	return orch.Snapshot(), true
}

// ProcessVideoFrame forwards one camera frame to the active session's
// analysis engine. A no-op when no session is active.
func (sm *SessionManager) ProcessVideoFrame(ctx context.Context, image []byte) error {
	sm.mu.Lock()
	orch := sm.orch
	sm.mu.Unlock()
	if orch == nil {
		return nil
	}
	return orch.ProcessVideoFrame(ctx, image)
}

// deactivate clears the active session state if sessionID still names it.
// Called from both Stop and the completion callback; whichever runs first
// wins and decrements the gauge.
func (sm *SessionManager) deactivate(sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if !sm.active || sm.info.SessionID != sessionID {
		return
	}
	sm.active = false
	sm.orch = nil
	sm.info = SessionInfo{}
	sm.metrics.ActiveSessions.Add(context.Background(), -1)
}

// sessionConfig merges the start request with the configured interview
// defaults.
func (sm *SessionManager) sessionConfig(sessionID string, req StartRequest) interview.Config {
	ic := sm.cfg.Interview

	role := req.Role
	if role == "" {
		role = ic.Role
	}
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = string(ic.Difficulty)
	}
	minutes := req.DurationMinutes
	if minutes <= 0 {
		minutes = ic.DurationMinutes
	}

	keywords := make([]stt.KeywordBoost, 0, len(ic.Keywords))
	for _, kw := range ic.Keywords {
		keywords = append(keywords, stt.KeywordBoost{Keyword: kw.Keyword, Boost: kw.Boost})
	}

	return interview.Config{
		SessionID:      sessionID,
		Role:           role,
		Difficulty:     difficulty,
		Duration:       time.Duration(minutes) * time.Minute,
		JobDescription: req.JobDescription,
		Resume:         req.Resume,
		DocumentBudget: ic.DocumentBudget,
		Voice:          ic.Voice,
		Language:       ic.Language,
		Keywords:       keywords,
	}
}
