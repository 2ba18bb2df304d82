package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	kafkaadapter "github.com/roadmetrics/defect-analytics/internal/adapter/kafka"
	"github.com/roadmetrics/defect-analytics/internal/adapter/postgres"
	"github.com/roadmetrics/defect-analytics/internal/analytics"
	"github.com/roadmetrics/defect-analytics/internal/config"
	"github.com/roadmetrics/defect-analytics/internal/domain"
	"github.com/roadmetrics/defect-analytics/internal/observability"
)

// aggregate rolls up one window of defect reports into a durable report.
// Reruns for the same date are safe: publishing is keyed by date and the
// statistics row is upserted.
//
// The process is one-shot, so its counters are pushed to a Prometheus
// Pushgateway (PUSHGATEWAY_URL) on completion instead of being scraped.
func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using system environment")
	}

	dateFlag := flag.String("date", "", "window date, YYYY-MM-DD (default: yesterday)")
	windowFlag := flag.String("window", "day", "window size: day, month or year")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	if err := run(context.Background(), cfg, logger, metrics, *dateFlag, *windowFlag); err != nil {
		logger.Error("aggregation failed", "error", err)
		os.Exit(1)
	}

	if cfg.PushgatewayURL != "" {
		if err := pushMetrics(cfg.PushgatewayURL, prometheus.DefaultGatherer); err != nil {
			logger.Warn("push metrics failed", "error", err)
		}
	}
}

// pushMetrics pushes the job's metrics to a Pushgateway under a fixed job
// label, replacing the previous run's values.
func pushMetrics(url string, g prometheus.Gatherer) error {
	return push.New(url, "defect_aggregate").Gatherer(g).Push()
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, dateStr, windowSize string) error {
	w, label, err := resolveWindow(dateStr, windowSize)
	if err != nil {
		return err
	}

	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()
	store := postgres.NewStore(pool)

	defects, err := store.FetchByFilter(ctx, domain.FilterQuery{
		Since: &w.Start,
		Until: &w.End,
		Limit: -1,
	})
	if err != nil {
		return fmt.Errorf("fetch window defects: %w", err)
	}

	report := analytics.BuildReport(defects, w, label)
	logger.Info("report built",
		"date", report.Date,
		"window", windowSize,
		"total", report.Statistics.TotalCount,
		"critical_cells", len(report.CriticalCells),
	)

	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer writer.Close()
		if err := writer.PublishReport(ctx, report); err != nil {
			return err
		}
		metrics.ReportsPublished.Inc()
	} else {
		logger.Info("kafka disabled, skipping report publish")
	}

	// Only daily runs land in the per-date statistics table.
	if windowSize == "day" {
		blob, err := json.Marshal(report.Statistics)
		if err != nil {
			return fmt.Errorf("marshal statistics: %w", err)
		}
		if err := store.UpsertDailyStatistics(ctx, w.Start, blob); err != nil {
			return fmt.Errorf("upsert daily statistics: %w", err)
		}
		metrics.StatisticsUpserts.Inc()
		logger.Info("daily statistics upserted", "date", report.Date)
	}
	return nil
}

// resolveWindow turns the date and window-size flags into a concrete window
// and its report label. An empty date means yesterday.
func resolveWindow(dateStr, windowSize string) (analytics.Window, string, error) {
	date := domain.Now().UTC().AddDate(0, 0, -1)
	if dateStr != "" {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return analytics.Window{}, "", fmt.Errorf("invalid -date %q: expected YYYY-MM-DD", dateStr)
		}
		date = parsed
	}
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	switch windowSize {
	case "day":
		return analytics.DayWindow(day), day.Format("2006-01-02"), nil
	case "month":
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
		return analytics.Window{Start: start, End: start.AddDate(0, 1, 0)}, start.Format("2006-01"), nil
	case "year":
		return analytics.YearWindow(day.Year()), day.Format("2006"), nil
	}
	return analytics.Window{}, "", fmt.Errorf("invalid -window %q: expected day, month or year", windowSize)
}
