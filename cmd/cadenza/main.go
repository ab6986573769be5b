// Command cadenza is the main entry point for the Cadenza interview server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/cadenza-ai/cadenza/internal/app"
	"github.com/cadenza-ai/cadenza/internal/config"
	"github.com/cadenza-ai/cadenza/internal/gateway"
	"github.com/cadenza-ai/cadenza/internal/observe"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "cadenza: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "cadenza: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	logger := newLogger(cfg.Server.LogFile, logLevel)
	slog.SetDefault(logger)

	slog.Info("cadenza starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "cadenza"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := app.BuildProviders(cfg, app.DefaultRegistry())
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Audio bridge ──────────────────────────────────────────────────────────
	// The browser client streams microphone PCM over a WebSocket and plays
	// back whatever the server writes; the bridge presents that connection as
	// the audio device pair.
	bridge := gateway.NewBridge(gateway.WithBridgeLogger(logger))

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers, bridge, app.WithMetrics(metrics))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config watcher ────────────────────────────────────────────────────────
	// Log level changes apply live; everything else requires a restart.
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		diff := config.Diff(old, new)
		if diff.LogLevelChanged {
			logLevel.Set(slogLevel(diff.NewLogLevel))
			slog.Info("log level changed", "level", diff.NewLogLevel)
		}
		if diff.InterviewChanged || diff.AudioChanged {
			slog.Warn("interview or audio settings changed; they apply to the next session")
		}
	})
	if err != nil {
		slog.Warn("config watcher unavailable", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── HTTP surface ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	gateway.New(application.Sessions(), bridge).Register(mux)
	application.HealthHandler().Register(mux)
	// Path-only pattern with an explicit method guard: the pre-1.22
	// toolchain's ServeMux lacks "GET /metrics" method patterns.
	metricsHandler := promhttp.Handler()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		metricsHandler.ServeHTTP(w, r)
	})

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("server ready; press Ctrl+C to shut down")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(stopCtx)
	})
	g.Go(func() error {
		return application.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Cadenza — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Agent", cfg.Providers.Agent.Name, cfg.Providers.Agent.Model)
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	if cfg.Providers.Landmarks.URL != "" {
		fmt.Printf("║  Landmarks       : %-19s ║\n", "enabled")
	} else {
		fmt.Printf("║  Landmarks       : %-19s ║\n", "(disabled)")
	}
	if cfg.Store.PostgresDSN != "" {
		fmt.Printf("║  Session store   : %-19s ║\n", "postgres")
	} else {
		fmt.Printf("║  Session store   : %-19s ║\n", "in-memory")
	}
	fmt.Printf("║  Default role    : %-19s ║\n", truncSummary(cfg.Interview.Role))
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, truncSummary(value))
}

func truncSummary(s string) string {
	if len(s) > 19 {
		return s[:16] + "…"
	}
	return s
}

// ── Logger ─────────────────────────────────────────────────────────────────────

// newLogger builds the process logger. When logFile is set, output goes to a
// size-rotated file; otherwise to stderr.
func newLogger(logFile string, level *slog.LevelVar) *slog.Logger {
	var out io.Writer = os.Stderr
	if logFile != "" {
		out = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

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
