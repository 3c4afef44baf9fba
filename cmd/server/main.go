package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/xfeed/xfeed/internal/api"
	"github.com/xfeed/xfeed/internal/auth"
	"github.com/xfeed/xfeed/internal/cloudsql"
	"github.com/xfeed/xfeed/internal/config"
	"github.com/xfeed/xfeed/internal/coordinate"
	"github.com/xfeed/xfeed/internal/dedup"
	"github.com/xfeed/xfeed/internal/llm"
	"github.com/xfeed/xfeed/internal/logging"
	"github.com/xfeed/xfeed/internal/metrics"
	"github.com/xfeed/xfeed/internal/scheduler"
	"github.com/xfeed/xfeed/internal/scraper"
	"github.com/xfeed/xfeed/internal/server"
	"github.com/xfeed/xfeed/internal/store"
	"github.com/xfeed/xfeed/internal/summarize"
	"github.com/xfeed/xfeed/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting xfeed")

	dbURL, err := cloudsql.BuildDatabaseURL()
	if err != nil {
		logger.Error("failed to build database URL", "error", err)
		os.Exit(1)
	}
	logger.Info("database configuration", "config", cloudsql.GetConnectionConfig())

	dbCfg := store.Config{
		URL:                dbURL,
		MaxConnections:     cfg.Database.MaxConnections,
		MaxIdleConnections: cfg.Database.MaxIdleConnections,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		ConnectTimeout:     cfg.Database.ConnectTimeout,
	}
	db, err := store.Connect(context.Background(), dbCfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database connected")

	if err := store.RunMigrations(db, "./migrations", logger); err != nil {
		logger.Warn("failed to run migrations, continuing anyway", "error", err)
	}

	// Repositories.
	tweetRepo := store.NewPostgresTweetRepository(db)
	summaryRepo := store.NewPostgresSummaryRepository(db)
	dedupRepo := store.NewPostgresDedupRepository(db)
	followRepo := store.NewPostgresFollowRepository(db)
	userFollowRepo := store.NewPostgresUserFollowRepository(db)
	filterRuleRepo := store.NewPostgresFilterRuleRepository(db)
	fetchStatsRepo := store.NewPostgresFetchStatsRepository(db)
	scheduleRepo := store.NewPostgresScheduleRepository(db)
	userRepo := store.NewPostgresUserRepository(db)
	apiKeyRepo := store.NewPostgresAPIKeyRepository(db)
	_ = userFollowRepo // wired into future per-user feed filtering; not yet exposed over HTTP

	// Upstream tweet provider.
	scraperClient := scraper.NewClient(cfg.Twitter.BaseURL, cfg.Twitter.APIKey, logger)

	// LLM provider fan-out, tried in the order configured: OpenRouter,
	// MiniMax, then the self-hosted open-source fallback, then Anthropic
	// as the last resort when a key is present.
	var providers []llm.Provider
	if cfg.OpenRouter.APIKey != "" {
		providers = append(providers, llm.NewOpenAIProvider("openrouter", cfg.OpenRouter.APIKey, cfg.OpenRouter.BaseURL, cfg.OpenRouter.Model, 30*time.Second, llm.DefaultOpenRouterRates))
	}
	if cfg.MiniMax.APIKey != "" {
		providers = append(providers, llm.NewOpenAIProvider("minimax", cfg.MiniMax.APIKey, cfg.MiniMax.BaseURL, cfg.MiniMax.Model, 30*time.Second, llm.DefaultMiniMaxRates))
	}
	if cfg.OpenSource.BaseURL != "" {
		providers = append(providers, llm.NewOpenAIProvider("opensource", cfg.OpenSource.APIKey, cfg.OpenSource.BaseURL, cfg.OpenSource.Model, 30*time.Second, llm.DefaultOpenSourceRates))
	}
	if cfg.Anthropic.APIKey != "" {
		providers = append(providers, llm.NewAnthropicProvider(cfg.Anthropic.APIKey, cfg.Anthropic.Model, 30*time.Second, llm.DefaultAnthropicRates))
	}
	if len(providers) == 0 {
		logger.Warn("no LLM provider API keys configured, summarisation will always fail over to ErrAllProvidersFailed")
	}
	router := llm.NewRouter(providers...)

	// Domain engines.
	dedupEngine := dedup.New(tweetRepo, dedupRepo, dedup.DefaultConfig(), logger)
	summaryCfg := summarize.DefaultConfig()
	summaryCfg.MaxConcurrentRequests = cfg.Summary.MaxConcurrentRequests
	summariser := summarize.New(tweetRepo, dedupRepo, summaryRepo, router, summaryCfg, logger)

	taskRegistry := tasks.New(logger)

	coordinatorCfg := coordinate.DefaultConfig()
	coordinatorCfg.MaxConcurrentScrapes = cfg.Scraper.MaxConcurrentScrapes
	coordinatorCfg.AutoSummarizationEnabled = cfg.Summary.AutoEnabled
	coordinatorCfg.AutoSummarizationBatchSize = cfg.Summary.AutoBatchSize
	scrapeCoordinator := coordinate.New(scraperClient, tweetRepo, fetchStatsRepo, dedupEngine, summariser, taskRegistry, coordinatorCfg, logger)

	// Scraper job scheduler: restores persisted state and runs in the
	// background for the process lifetime.
	jobScheduler := scheduler.New(followRepo, scrapeCoordinator, scheduleRepo, logger)
	scheduler.Register(jobScheduler)
	defer scheduler.Unregister()

	schedulerCtx, cancelScheduler := context.WithCancel(context.Background())
	defer cancelScheduler()
	go jobScheduler.Start(schedulerCtx)

	taskSweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	go taskRegistry.StartSweep(taskSweepCtx, time.Hour)

	// Auth.
	authCfg := auth.Config{
		JWTSecret:     cfg.Auth.JWTSecret,
		AdminAPIKey:   cfg.Auth.AdminAPIKey,
		TokenDuration: time.Duration(cfg.Auth.JWTExpireHrs) * time.Hour,
	}
	authenticator := auth.NewAuthenticator(userRepo, apiKeyRepo, authCfg)

	// HTTP surface.
	mux := http.NewServeMux()

	collector, err := metrics.NewHTTPCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}
	mux.Handle("/metrics", collector.Handler())

	api.SetupRoutes(mux, db, tweetRepo, summaryRepo, dedupRepo, followRepo, filterRuleRepo, userRepo, apiKeyRepo, taskRegistry, scrapeCoordinator, dedupEngine, summariser, authenticator, authCfg, logger)

	handler := collector.InstrumentHandler(mux)

	srv := server.New(cfg.Server, logger, handler)

	go func() {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("xfeed started successfully")
	logger.Info("API available", "url", fmt.Sprintf("http://localhost:%s", cfg.Server.Port))

	waitForSignal(logger)

	logger.Info("shutting down")
	jobScheduler.Stop()
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}

func waitForSignal(logger *slog.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Info("received signal", "signal", sig.String())
	signal.Stop(c)
	close(c)
}
