package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/agentgrid/backend/internal/chat"
	"github.com/agentgrid/backend/internal/config"
	"github.com/agentgrid/backend/internal/discovery"
	"github.com/agentgrid/backend/internal/maintenance"
	"github.com/agentgrid/backend/internal/registry"
	"github.com/agentgrid/backend/internal/router"
	"github.com/agentgrid/backend/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL (connection refused or invalid). Ensure Postgres is running, e.g. docker-compose up -d", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL database successfully!")

	agentStore := store.NewPostgres(pool)
	if err := agentStore.Migrate(ctx); err != nil {
		slog.Error("Agent store migration failed", "error", err)
		os.Exit(1)
	}

	// River migrations + client (reindex worker)
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed. If the error is 'connection refused', start PostgreSQL first", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	workers := river.NewWorkers()
	river.AddWorker(workers, maintenance.NewReindexWorker(agentStore, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 2},
		},
		Workers: workers,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	enqueueReindex := func(ctx context.Context, requestedBy string) error {
		_, err := riverClient.Insert(ctx, maintenance.ReindexArgs{RequestedBy: requestedBy}, nil)
		return err
	}

	// Registration payload schema; a load failure disables validation rather
	// than the whole registry.
	validator, err := registry.NewValidator(cfg.SchemaDir)
	if err != nil {
		slog.Warn("Agent schema validator init failed (schema validation disabled)", "error", err)
		validator = nil
	}

	registrySvc := registry.NewService(agentStore)
	discoverySvc := discovery.NewService(agentStore, cfg.DiscoveryTopK, cfg.HydrateMax, logger)
	registryHandler := registry.NewHandler(registrySvc, discoverySvc, validator, enqueueReindex, logger)

	var completer chat.Completer
	if cfg.AnthropicAPIKey != "" {
		completer = chat.NewAnthropicCompleter(cfg.AnthropicAPIKey, cfg.ChatModel)
	} else {
		slog.Warn("ANTHROPIC_API_KEY not set, chat proxy disabled")
	}
	chatHandler := chat.NewHandler(agentStore, completer, []byte(cfg.ChatJWTSecret), logger)

	apiRouter := router.New(registryHandler, chatHandler, cfg.AdminKey)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "x-admin-key", "x-agent-appid", "x-agent-roles"},
		AllowCredentials: true,
	}).Handler(apiRouter)

	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	serverAddr := "0.0.0.0:" + cfg.Port
	slog.Info("Starting HTTP server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
