package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deshpanderitwik/temenos-sub000/internal/api"
	"github.com/deshpanderitwik/temenos-sub000/internal/api/handler"
	"github.com/deshpanderitwik/temenos-sub000/internal/audit"
	"github.com/deshpanderitwik/temenos-sub000/internal/config"
	"github.com/deshpanderitwik/temenos-sub000/internal/domain"
	"github.com/deshpanderitwik/temenos-sub000/internal/migrate"
	"github.com/deshpanderitwik/temenos-sub000/internal/store"
	"github.com/deshpanderitwik/temenos-sub000/pkg/crypto"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("temenos %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting temenos",
		"version", Version,
		"build_time", BuildTime,
	)

	// Load configuration; both secrets are validated here, before any
	// cipher is constructed.
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Ensure the data root exists
	if err := os.MkdirAll(cfg.Storage.DataPath, 0o700); err != nil {
		logger.Error("failed to create data directory", "error", err)
		os.Exit(1)
	}

	// The at-rest cipher owns persisted records; the transport cipher is an
	// independent instance keyed for request/response payloads only.
	atRest, err := crypto.New(cfg.Keys.AtRest)
	if err != nil {
		logger.Error("at-rest key rejected", "error", err)
		os.Exit(1)
	}
	transport, err := crypto.New(cfg.Keys.Transport)
	if err != nil {
		logger.Error("transport key rejected", "error", err)
		os.Exit(1)
	}

	// Optional audit trail; a nil trail drops events
	var trail *audit.Trail
	if cfg.Audit.Enabled {
		trail, err = audit.Open(cfg.Audit.Path, logger)
		if err != nil {
			logger.Error("failed to open audit trail", "error", err)
			os.Exit(1)
		}
		defer trail.Close()
	}

	// Initialize stores, one per entity class
	conversations, err := store.New(domain.ClassConversations, cfg.Storage.DataPath, atRest,
		func() *domain.Conversation { return &domain.Conversation{} }, logger)
	if err != nil {
		logger.Error("failed to init conversations store", "error", err)
		os.Exit(1)
	}
	narratives, err := store.New(domain.ClassNarratives, cfg.Storage.DataPath, atRest,
		func() *domain.Narrative { return &domain.Narrative{} }, logger)
	if err != nil {
		logger.Error("failed to init narratives store", "error", err)
		os.Exit(1)
	}
	prompts, err := store.New(domain.ClassSystemPrompts, cfg.Storage.DataPath, atRest,
		func() *domain.SystemPrompt { return &domain.SystemPrompt{} }, logger)
	if err != nil {
		logger.Error("failed to init system prompts store", "error", err)
		os.Exit(1)
	}
	contexts, err := store.New(domain.ClassContexts, cfg.Storage.DataPath, atRest,
		func() *domain.ContextNote { return &domain.ContextNote{} }, logger)
	if err != nil {
		logger.Error("failed to init contexts store", "error", err)
		os.Exit(1)
	}
	images, err := store.NewImages(cfg.Storage.DataPath, atRest, logger)
	if err != nil {
		logger.Error("failed to init image store", "error", err)
		os.Exit(1)
	}

	// Migration job shares the at-rest cipher with the stores
	job := migrate.NewJob(atRest, logger)

	counters := map[domain.EntityClass]handler.Counter{
		domain.ClassConversations: conversations.Count,
		domain.ClassNarratives:    narratives.Count,
		domain.ClassSystemPrompts: prompts.Count,
		domain.ClassContexts:      contexts.Count,
		domain.ClassImages: func(ctx context.Context) (int, error) {
			index, err := images.Index()
			return len(index), err
		},
	}

	// Setup router
	router := api.NewRouter(api.Handlers{
		Conversations: handler.NewEntityHandler(conversations, trail, logger),
		Narratives:    handler.NewEntityHandler(narratives, trail, logger),
		SystemPrompts: handler.NewEntityHandler(prompts, trail, logger),
		Contexts:      handler.NewEntityHandler(contexts, trail, logger),
		Images:        handler.NewImageHandler(images, trail, logger),
		Migration:     handler.NewMigrationHandler(job, cfg.Storage.DataPath, images, trail, logger),
		Transport:     handler.NewTransportHandler(transport, logger),
		Health:        handler.NewHealthHandler(cfg.Storage.DataPath, counters),
	}, cfg.Server.APIKey)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
