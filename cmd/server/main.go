package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/roadmetrics/defect-analytics/internal/adapter/httpapi"
	kafkaadapter "github.com/roadmetrics/defect-analytics/internal/adapter/kafka"
	"github.com/roadmetrics/defect-analytics/internal/adapter/ops"
	"github.com/roadmetrics/defect-analytics/internal/adapter/postgres"
	"github.com/roadmetrics/defect-analytics/internal/config"
	"github.com/roadmetrics/defect-analytics/internal/domain"
	"github.com/roadmetrics/defect-analytics/internal/observability"
	"github.com/roadmetrics/defect-analytics/internal/pipeline"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using system environment")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, pool := openStore(ctx, cfg, logger)
	if pool != nil {
		defer pool.Close()
	}

	ingestor := pipeline.NewIngestor(store, logger, metrics)
	handler := httpapi.NewHandler(store, ingestor, logger)
	app := httpapi.NewApp(handler)

	checks := []ops.Check{{Name: "database", Probe: store.Ping}}

	// Streaming ingestion is feature-flagged: API-only deployments run
	// without a broker.
	var reader *kafkaadapter.Reader
	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		p := pipeline.New(reader, store, logger, metrics, cfg.BatchSize)
		checks = append(checks, ops.Check{Name: "pipeline", Probe: p.CheckReadiness})

		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	} else {
		logger.Info("kafka ingestion disabled")
	}

	opsSrv := ops.NewServer(cfg.OpsAddr, logger, checks...)

	go func() {
		if err := opsSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server error", "error", err)
		}
	}()

	go func() {
		logger.Info("api server starting", "addr", cfg.HTTPAddr)
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			logger.Error("api server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("api server shutdown error", "error", err)
	}
	if err := opsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// openStore connects to PostgreSQL, falling back to the in-memory store so
// the API stays usable in local development without a database. The returned
// pool is nil in fallback mode.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.DefectStore, *pgxpool.Pool) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		return postgres.NewMock(), nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(connectCtx, cfg.DatabaseURL)
	if err == nil {
		err = pool.Ping(connectCtx)
	}
	if err != nil {
		logger.Warn("could not connect to database, using in-memory store", "error", err)
		return postgres.NewMock(), nil
	}

	logger.Info("connected to postgres")
	return postgres.NewStore(pool), pool
}
