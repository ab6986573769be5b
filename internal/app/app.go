// Package app wires all Cadenza subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run blocks until the context is cancelled, and Shutdown tears
// everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithStore, WithMetrics). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cadenza-ai/cadenza/internal/config"
	"github.com/cadenza-ai/cadenza/internal/health"
	"github.com/cadenza-ai/cadenza/internal/observe"
	"github.com/cadenza-ai/cadenza/internal/resilience"
	"github.com/cadenza-ai/cadenza/pkg/audio"
	"github.com/cadenza-ai/cadenza/pkg/provider/agent"
	"github.com/cadenza-ai/cadenza/pkg/provider/agent/gemini"
	"github.com/cadenza-ai/cadenza/pkg/provider/agent/openairt"
	"github.com/cadenza-ai/cadenza/pkg/provider/landmarks"
	"github.com/cadenza-ai/cadenza/pkg/provider/landmarks/httpdet"
	"github.com/cadenza-ai/cadenza/pkg/provider/stt"
	"github.com/cadenza-ai/cadenza/pkg/provider/stt/deepgram"
	"github.com/cadenza-ai/cadenza/pkg/session"
	sessionpg "github.com/cadenza-ai/cadenza/pkg/session/postgres"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via [BuildProviders].
type Providers struct {
	Agent     agent.Provider
	STT       stt.Provider
	Landmarks landmarks.Detector
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	devices   audio.Devices
	metrics   *observe.Metrics

	store    session.Store
	sessions *SessionManager

	// closers are called in reverse order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a session store instead of creating one from config.
func WithStore(s session.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics injects a metrics instance instead of using the package default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// ─── Registry ────────────────────────────────────────────────────────────────

// DefaultRegistry returns a [config.Registry] populated with the built-in
// provider factories.
func DefaultRegistry() *config.Registry {
	r := config.NewRegistry()

	r.RegisterAgent("gemini", func(e config.ProviderEntry) (agent.Provider, error) {
		var opts []gemini.Option
		if e.Model != "" {
			opts = append(opts, gemini.WithModel(e.Model))
		}
		if e.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(e.BaseURL))
		}
		return gemini.New(e.APIKey, opts...), nil
	})

	r.RegisterAgent("openai-realtime", func(e config.ProviderEntry) (agent.Provider, error) {
		var opts []openairt.Option
		if e.Model != "" {
			opts = append(opts, openairt.WithModel(e.Model))
		}
		if e.BaseURL != "" {
			opts = append(opts, openairt.WithBaseURL(e.BaseURL))
		}
		return openairt.New(e.APIKey, opts...), nil
	})

	r.RegisterSTT("deepgram", func(e config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if e.Model != "" {
			opts = append(opts, deepgram.WithModel(e.Model))
		}
		if e.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(e.BaseURL))
		}
		return deepgram.New(e.APIKey, opts...)
	})

	return r
}

// BuildProviders instantiates the configured providers from cfg using the
// given registry. Unconfigured slots stay nil.
func BuildProviders(cfg *config.Config, reg *config.Registry) (*Providers, error) {
	p := &Providers{}

	if cfg.Providers.Agent.Name != "" {
		ap, err := reg.CreateAgent(cfg.Providers.Agent)
		if err != nil {
			return nil, fmt.Errorf("app: create agent provider: %w", err)
		}
		p.Agent = ap
	}

	if cfg.Providers.STT.Name != "" {
		sp, err := reg.CreateSTT(cfg.Providers.STT)
		if err != nil {
			return nil, fmt.Errorf("app: create stt provider: %w", err)
		}
		p.STT = sp
	}

	if cfg.Providers.Landmarks.URL != "" {
		var opts []httpdet.Option
		if cfg.Providers.Landmarks.TimeoutSeconds > 0 {
			opts = append(opts, httpdet.WithHTTPClient(&http.Client{
				Timeout: time.Duration(cfg.Providers.Landmarks.TimeoutSeconds) * time.Second,
			}))
		}
		det, err := httpdet.New(cfg.Providers.Landmarks.URL, opts...)
		if err != nil {
			return nil, fmt.Errorf("app: create landmark detector: %w", err)
		}
		// A dead sidecar must not stall the analysis tick on every frame.
		p.Landmarks = resilience.NewDetector(det, resilience.CircuitBreakerConfig{Name: "landmarks"})
	}

	return p, nil
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via [BuildProviders]); devices is the
// platform audio adapter. Use Option functions to inject test doubles.
func New(ctx context.Context, cfg *config.Config, providers *Providers, devices audio.Devices, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
		devices:   devices,
	}
	for _, o := range opts {
		o(a)
	}

	if providers == nil || providers.Agent == nil {
		return nil, fmt.Errorf("app: an agent provider is required")
	}
	if providers.STT == nil {
		return nil, fmt.Errorf("app: an stt provider is required")
	}
	if devices == nil {
		return nil, fmt.Errorf("app: audio devices are required")
	}

	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	a.sessions = NewSessionManager(SessionManagerConfig{
		Config:    cfg,
		Providers: providers,
		Devices:   devices,
		Store:     a.store,
		Metrics:   a.metrics,
	})

	return a, nil
}

// initStore sets up the PostgreSQL session store or falls back to the
// in-memory store when no DSN is configured.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil // injected
	}

	dsn := a.cfg.Store.PostgresDSN
	if dsn == "" {
		slog.Warn("no postgres_dsn configured; session records will not survive restarts")
		a.store = session.NewInMemoryStore()
		return nil
	}

	store, err := sessionpg.NewStore(ctx, dsn)
	if err != nil {
		return err
	}
	a.store = store
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	return nil
}

// Sessions returns the session manager.
func (a *App) Sessions() *SessionManager {
	return a.sessions
}

// Store returns the session store in use.
func (a *App) Store() session.Store {
	return a.store
}

// HealthHandler builds the health endpoint handler. Readiness requires the
// store to answer a read for a sentinel session and, when the landmark
// sidecar is breaker-wrapped, the breaker to not be open.
func (a *App) HealthHandler() *health.Handler {
	checkers := []health.Checker{{
		Name: "store",
		Check: func(ctx context.Context) error {
			_, err := a.store.Transcript(ctx, "healthcheck")
			return err
		},
	}}

	if det, ok := a.providers.Landmarks.(*resilience.Detector); ok {
		checkers = append(checkers, health.Checker{
			Name: "landmarks",
			Check: func(context.Context) error {
				if state := det.BreakerState(); state == resilience.StateOpen {
					return fmt.Errorf("circuit breaker %s", state)
				}
				return nil
			},
		})
	}

	return health.New(checkers...)
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run blocks until ctx is cancelled, then stops the active session if one is
// running. The HTTP surface is served separately by main.
func (a *App) Run(ctx context.Context) error {
	slog.Info("app running")
	<-ctx.Done()

	if a.sessions.IsActive() {
		if err := a.sessions.Stop(); err != nil {
			slog.Warn("app: stop session on shutdown", "err", err)
		}
	}
	return ctx.Err()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if a.sessions != nil && a.sessions.IsActive() {
			if err := a.sessions.Stop(); err != nil {
				slog.Warn("session stop error", "err", err)
			}
		}

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
