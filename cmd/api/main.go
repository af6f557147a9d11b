package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"example.com/garminsync/internal/api"
	"example.com/garminsync/internal/config"
	"example.com/garminsync/internal/events"
	"example.com/garminsync/internal/garmin"
	"example.com/garminsync/internal/logging"
	"example.com/garminsync/internal/persistence/postgres"
	syncpkg "example.com/garminsync/internal/sync"
	httptransport "example.com/garminsync/internal/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to optional config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting garmin sync service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Storage.PostgresURL)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	store := postgres.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal("failed to ensure schema", zap.Error(err))
	}

	client := garmin.NewClient(cfg.Garmin.BaseURL, cfg.Garmin.RequestTimeout)
	sessions := garmin.NewSessionManager(client, store, cfg.Garmin.Username, cfg.Garmin.Password, logger)

	fetcher := syncpkg.NewFetcher(client, syncpkg.FetcherConfig{
		PageSize:             cfg.Sync.PageSize,
		InitialSyncLimit:     cfg.Sync.InitialSyncLimit,
		IncrementalSyncLimit: cfg.Sync.IncrementalSyncLimit,
		PageDelay:            cfg.Sync.PageDelay,
	}, logger)
	processor := syncpkg.NewProcessor(logger)

	var publisher *events.Publisher
	if cfg.Kafka.Enabled() {
		publisher = events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()
		logger.Info("event publishing enabled", zap.String("topic", cfg.Kafka.Topic))
	}

	orchestrator := newOrchestrator(sessions, fetcher, processor, client, store, publisher, cfg, logger)

	worker := syncpkg.NewWorker(orchestrator, logger)
	go worker.Start(ctx)

	scheduler := syncpkg.NewScheduler(cfg.Sync.Schedule, worker, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}

	handler := api.NewHandler(worker, store, cfg.Webhook.Secret, cfg.Webhook.RideWithGPSSecret, logger)
	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.Server.Address,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, handler.Routes())

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-shutdownCh
	logger.Info("shutting down")

	scheduler.Stop()
	cancel()
	worker.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
}

func newOrchestrator(
	sessions *garmin.SessionManager,
	fetcher *syncpkg.Fetcher,
	processor *syncpkg.Processor,
	client *garmin.Client,
	store *postgres.Store,
	publisher *events.Publisher,
	cfg config.Config,
	logger *zap.Logger,
) *syncpkg.Orchestrator {
	// A nil *Publisher must not reach the orchestrator as a non-nil interface.
	if publisher == nil {
		return syncpkg.NewOrchestrator(sessions, fetcher, processor, client, store, store, nil,
			syncpkg.OrchestratorConfig{ActivityDelay: cfg.Sync.ActivityDelay, RunTimeout: cfg.Sync.RunTimeout}, logger)
	}
	return syncpkg.NewOrchestrator(sessions, fetcher, processor, client, store, store, publisher,
		syncpkg.OrchestratorConfig{ActivityDelay: cfg.Sync.ActivityDelay, RunTimeout: cfg.Sync.RunTimeout}, logger)
}
