// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/brainreset/internal/api"
	"github.com/starford/brainreset/internal/brainreset"
	"github.com/starford/brainreset/internal/craft"
	"github.com/starford/brainreset/internal/mcpserver"
	"github.com/starford/brainreset/internal/metrics"
	"github.com/starford/brainreset/internal/ratelimit"
	"github.com/starford/brainreset/internal/reflection"
	"github.com/starford/brainreset/internal/sse"
	"github.com/starford/brainreset/internal/validate"
	pkgconfig "github.com/starford/brainreset/pkg/config"
)

const reloadDebounce = 250 * time.Millisecond

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOutput: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// newLogger initializes the structured JSON logger. The returned LevelVar
// lets a config reload change the level in place.
func (a *application) newLogger() (*slog.Logger, *slog.LevelVar) {
	level := new(slog.LevelVar)
	level.Set(a.config.App.LogLevel)

	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger, level
}

// newService wires the pipeline stages from the configuration. m may be nil
// when metrics are not served.
func (a *application) newService(logger *slog.Logger, limiter ratelimit.Limiter, m *metrics.Metrics, observers ...brainreset.Observer) (*brainreset.Service, error) {
	cfg := a.config

	loc, err := time.LoadLocation(cfg.Craft.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	craftOpts := []craft.Option{
		craft.WithHTTPClient(&http.Client{Timeout: cfg.Craft.Timeout}),
		craft.WithLocation(loc),
		craft.WithConcurrency(cfg.Craft.FetchConcurrency),
		craft.WithDeepLinkScheme(cfg.Craft.DeepLinkScheme),
		craft.WithLogger(logger),
	}
	if m != nil {
		craftOpts = append(craftOpts, craft.WithHooks(m.FetchFailed, m.WriteFallback))
	}
	craftClient := craft.NewClient(craftOpts...)

	generator := reflection.New(reflection.Config{
		BaseURL:           cfg.AI.BaseURL,
		Model:             cfg.AI.Model,
		APIKeyEnv:         cfg.AI.APIKeyEnv,
		Timeout:           cfg.AI.Timeout,
		RequestsPerSecond: cfg.AI.RequestsPerSecond,
		Burst:             cfg.AI.Burst,
	}, reflection.WithLogger(logger), reflection.WithClock(func() time.Time {
		return time.Now().In(loc)
	}))

	svcOpts := []brainreset.Option{
		brainreset.WithLogger(logger),
		brainreset.WithObserver(brainreset.ObserverFunc(func(_ context.Context, t brainreset.Transition) {
			logger.Debug("stage changed",
				slog.String("request_id", t.RequestID),
				slog.String("from", string(t.From)),
				slog.String("to", string(t.To)),
				slog.Duration("elapsed", t.Elapsed))
		})),
	}
	for _, o := range observers {
		svcOpts = append(svcOpts, brainreset.WithObserver(o))
	}

	return brainreset.NewService(validate.New(cfg.Craft.Domain), limiter, craftClient, generator, craftClient, svcOpts...), nil
}

// reload re-reads the config file and applies the settings that can change
// without a restart. Invalid files are logged and ignored.
func (a *application) reload(logger *slog.Logger, level *slog.LevelVar, cors *api.CORSPolicy) {
	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(a.configPath, cfg); err != nil {
		logger.Warn("config reload failed", slog.String("path", a.configPath), slog.String("error", err.Error()))
		return
	}
	cors.Update(cfg.CORS.Origins, cfg.CORS.Suffixes)
	level.Set(cfg.App.LogLevel)
	logger.Info("Configuration reloaded",
		slog.String("path", a.configPath),
		slog.String("log_level", cfg.App.LogLevel.String()),
		slog.Int("cors_origins", len(cfg.CORS.Origins)))
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	cfg := app.config
	logger, level := app.newLogger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("craft_domain", cfg.Craft.Domain),
		slog.String("ai_model", cfg.AI.Model),
		slog.Bool("trust_proxy_headers", cfg.RateLimit.TrustProxyHeaders),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if os.Getenv(cfg.AI.APIKeyEnv) == "" {
		logger.Warn("AI API key is not set; brain reset requests will fail until it is",
			slog.String("env", cfg.AI.APIKeyEnv))
	}

	m := metrics.New()
	broker := sse.NewBroker()
	limiter := ratelimit.NewWindow(cfg.RateLimit.Window, cfg.RateLimit.MaxRequests)

	svc, err := app.newService(logger, limiter, m, m, broker)
	if err != nil {
		return err
	}

	cors := api.NewCORSPolicy(cfg.CORS.Origins, cfg.CORS.Suffixes)
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Key, cfg.RateLimit.TrustProxyHeaders, cors, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if cfg.RateLimit.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", m.Handler())

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Reload CORS and log level when the config file changes.
	if app.configPath != "" {
		g.Go(func() error {
			err := pkgconfig.Watch(gCtx, app.configPath, reloadDebounce, func() {
				app.reload(logger, level, cors)
			})
			if err != nil {
				logger.Warn("config watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Release open event streams so Shutdown does not wait on them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the brain reset tools over stdio until the client
// disconnects. Logs must not go to stdout in this mode.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger, _ := app.newLogger()

	limiter := ratelimit.NewWindow(app.config.RateLimit.Window, app.config.RateLimit.MaxRequests)
	svc, err := app.newService(logger, limiter, nil)
	if err != nil {
		return err
	}

	logger.Info("MCP server starting on stdio", slog.String("version", app.version))
	return mcpserver.New(svc, app.version).Serve(ctx, os.Stdin, os.Stdout)
}

// Generate runs a single brain reset outside the server and returns its
// result. No rate limit applies.
func Generate(ctx context.Context, requestID string, raw validate.RawRequest, opts ...Option) (*brainreset.Result, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	logger, _ := app.newLogger()

	svc, err := app.newService(logger, nil, nil)
	if err != nil {
		return nil, err
	}
	return svc.Run(ctx, requestID, "cli", raw)
}
