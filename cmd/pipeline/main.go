// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/olegiv/ocms-pipeline/internal/auth"
	"github.com/olegiv/ocms-pipeline/internal/cache"
	"github.com/olegiv/ocms-pipeline/internal/config"
	"github.com/olegiv/ocms-pipeline/internal/generator"
	"github.com/olegiv/ocms-pipeline/internal/handler"
	"github.com/olegiv/ocms-pipeline/internal/handler/api"
	"github.com/olegiv/ocms-pipeline/internal/logging"
	"github.com/olegiv/ocms-pipeline/internal/middleware"
	"github.com/olegiv/ocms-pipeline/internal/publish"
	"github.com/olegiv/ocms-pipeline/internal/scheduler"
	"github.com/olegiv/ocms-pipeline/internal/service"
	"github.com/olegiv/ocms-pipeline/internal/store"
	"github.com/olegiv/ocms-pipeline/internal/version"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func buildInfo() version.Info {
	return version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}
}

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	envFile := flag.String("env-file", ".env", "Optional dotenv file loaded before the environment")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "pipeline - content production pipeline\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PIPELINE_SECRET_KEY       Key for sealing endpoint credentials (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PIPELINE_API_TOKEN        Bearer token for the API (required outside development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PIPELINE_DB_PATH          SQLite database path (default: ./data/pipeline.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PIPELINE_OPENAI_API_KEY   Enables draft generation\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PIPELINE_REDIS_URL        Redis URL for the shared cache (optional)\n")
	}

	flag.Parse()

	if *showVersion {
		_, _ = fmt.Printf("pipeline %s\n", buildInfo())
		os.Exit(0)
	}

	if err := run(*envFile); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(envFile string) error {
	// Load .env if present (development)
	_ = godotenv.Load(envFile)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// Upgrade logger to also write WARN and ERROR logs to the event log
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	logger = slog.New(logging.NewEventLogHandler(textHandler, db))
	slog.SetDefault(logger)
	slog.Info("event log integration enabled", "min_level", "warn")

	sharedCache := cache.New(cache.Config{
		RedisURL:   cfg.RedisURL,
		Prefix:     cfg.CachePrefix,
		DefaultTTL: cfg.CacheTTL,
	}, logger)
	defer func() { _ = sharedCache.Close() }()

	sealer, err := auth.NewSealer(cfg.SecretKey)
	if err != nil {
		return fmt.Errorf("creating credential sealer: %w", err)
	}

	gen, err := newGenerator(cfg, logger)
	if err != nil {
		return err
	}

	contexts := service.NewStoreContextLoader(db, sharedCache, cfg.CacheTTL)
	settingsSvc := service.NewSettingsService(db, sealer, logger, service.SettingsOptions{
		Contexts:              contexts,
		AllowPrivateEndpoints: cfg.PublishAllowPrivate,
	})
	ideaSvc := service.NewIdeaService(db, settingsSvc, logger, cfg.StaleAfter)
	draftSvc := service.NewDraftService(db, gen, contexts, logger, service.DraftOptions{
		Timeout:       cfg.GenerationTimeout,
		StaleAfter:    cfg.StaleAfter,
		AutoReview:    cfg.AutoReview,
		MinNativeness: cfg.AutoReviewMinNativeness,
		MinHeadline:   cfg.AutoReviewMinHeadline,
	})
	publishClient := publish.NewHTTPClient(publish.HTTPClientOptions{
		Timeout:              cfg.PublishTimeout,
		AllowPrivateNetworks: cfg.PublishAllowPrivate,
	})
	publishSvc := service.NewPublishService(db, publishClient, settingsSvc, logger, cfg.PublishTimeout)

	sched, err := scheduler.New(db, publishSvc, ideaSvc, logger, scheduler.Config{
		PublishSchedule:   cfg.PublishSchedule,
		RecoverySchedule:  cfg.RecoverySchedule,
		StaleAfter:        cfg.StaleAfter,
		Retention:         cfg.EventRetention,
		TriggersPerMinute: cfg.JobTriggerRate,
	})
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	var cachePinger handler.Pinger
	if p, ok := sharedCache.(handler.Pinger); ok {
		cachePinger = p
	}
	healthHandler := handler.NewHealthHandler(db, cachePinger, buildInfo())
	apiHandler := api.NewHandler(api.Services{
		Ideas:     ideaSvc,
		Drafts:    draftSvc,
		Publisher: publishSvc,
		Settings:  settingsSvc,
		Jobs:      sched.Registry(),
	}, logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	// Liveness stays reachable without credentials for orchestrators
	r.Get("/healthz/live", healthHandler.Liveness)
	r.Get("/healthz/ready", healthHandler.Readiness)

	r.Group(func(r chi.Router) {
		if cfg.APIToken != "" {
			r.Use(middleware.TokenAuth(cfg.APIToken))
		} else {
			slog.Warn("PIPELINE_API_TOKEN is not set; the API is unauthenticated", "category", "config")
		}

		r.Get("/healthz", healthHandler.Health)
		r.Handle("/metrics", promhttp.Handler())

		r.Route("/api/v1", func(r chi.Router) {
			r.Use(middleware.NewGlobalRateLimiter(10, 20).Middleware())
			// Draft requests block for the whole generation
			r.Use(middleware.Timeout(cfg.GenerationTimeout + 30*time.Second))
			apiHandler.Routes(r)
		})
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.GenerationTimeout + time.Minute,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", appVersion)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// newGenerator returns the OpenAI adapter, or a disabled generator that
// fails every draft request when no key is configured.
func newGenerator(cfg *config.Config, logger *slog.Logger) (generator.Generator, error) {
	if !cfg.GenerationEnabled() {
		logger.Warn("PIPELINE_OPENAI_API_KEY is not set; draft generation is disabled", "category", "config")
		return generator.Disabled{}, nil
	}

	gen, err := generator.NewOpenAIGenerator(generator.OpenAIOptions{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	})
	if err != nil {
		return nil, fmt.Errorf("creating generator: %w", err)
	}
	logger.Info("draft generation enabled", "provider", generator.ProviderOpenAI, "model", cfg.OpenAIModel)
	return gen, nil
}
