package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/sensor-dashboard-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/sensor-dashboard-service/internal/adapter/kafka"
	"github.com/couchcryptid/sensor-dashboard-service/internal/adapter/postgrest"
	"github.com/couchcryptid/sensor-dashboard-service/internal/auth"
	"github.com/couchcryptid/sensor-dashboard-service/internal/config"
	"github.com/couchcryptid/sensor-dashboard-service/internal/observability"
	"github.com/couchcryptid/sensor-dashboard-service/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
)

const maxSessions = 10000

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	catalog, err := config.LoadCatalog(cfg.SourcesFile)
	if err != nil {
		logger.Error("failed to load sources", "error", err)
		os.Exit(1)
	}

	users, err := auth.OpenUserStore(cfg.UsersDB)
	if err != nil {
		logger.Error("failed to open user database", "error", err)
		os.Exit(1)
	}
	defer users.Close()

	clock := clockwork.NewRealClock()
	store := postgrest.NewClient(cfg.StoreURL, cfg.StoreAPIKey, cfg.StoreTimeout, logger)
	svc := pipeline.NewService(catalog, store, pipeline.Options{
		PageSize: cfg.PageSize,
		Location: cfg.SourceLocation,
		Clock:    clock,
	}, logger, metrics)

	// Optional snapshot sink (feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS).
	var sinks []pipeline.SnapshotSink
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, writer)
		logger.Info("kafka snapshot sink enabled", "topic", cfg.KafkaSnapshotTopic)
	} else {
		logger.Info("kafka snapshot sink disabled")
	}

	poller := pipeline.NewPoller(svc, cfg.PollInterval, clock, logger, metrics, sinks...)
	authenticator := auth.NewAuthenticator(users, auth.NewSessionStore(cfg.SessionTTL, maxSessions, clock), logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Deps{
		Reader:        svc,
		Snapshots:     poller,
		Auth:          authenticator,
		InputLocation: cfg.InputLocation,
		Logger:        logger,
		Metrics:       metrics,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start poller.
	go func() {
		if err := poller.Run(ctx); err != nil {
			logger.Error("poller error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	poller.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
