// Command backfill rebuilds daily elevation statistics from provider history.
// It either fetches the last -days of the elevation series or reads a saved
// provider response with -input, groups samples by calendar day in
// REPORT_TIMEZONE and upserts one row per day.
//
// Usage:
//
//	go run ./cmd/backfill -days 30
//	go run ./cmd/backfill -input data/elevation_history.json -db data/reservoir.db
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/couchcryptid/reservoir-forecast/internal/adapter/usace"
	"github.com/couchcryptid/reservoir-forecast/internal/config"
	"github.com/couchcryptid/reservoir-forecast/internal/domain"
	"github.com/couchcryptid/reservoir-forecast/internal/observability"
	"github.com/couchcryptid/reservoir-forecast/internal/storage"
)

const fetchTimeout = 2 * time.Minute

func main() {
	if err := run(); err != nil {
		slog.Error("backfill failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	days := flag.Int("days", 30, "days of history to fetch from the provider")
	input := flag.String("input", "", "read a saved provider JSON response instead of fetching")
	dbPath := flag.String("db", "", "SQLite database path (defaults to DATABASE_PATH; ignored when DATABASE_URL is set)")
	flag.Parse()

	if *input == "" && *days <= 0 {
		flag.Usage()
		return fmt.Errorf("-days must be positive")
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}
	logger := observability.NewLogger(cfg)

	var resp domain.ProviderResponse
	if *input != "" {
		resp, err = readResponse(*input)
	} else {
		resp, err = fetchHistory(cfg, *days, logger)
	}
	if err != nil {
		return err
	}

	samples, err := domain.NormalizeSeries(resp, cfg.TargetStation, cfg.ElevationSeries, usace.ZoneLocation(cfg.USACETimezone))
	if err != nil {
		return fmt.Errorf("normalize elevation: %w", err)
	}
	stats, err := reduceDays(samples, cfg.ReportLocation)
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		logger.Warn("no samples to backfill", "station", cfg.TargetStation, "series", cfg.ElevationSeries)
		return nil
	}

	ctx := context.Background()
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.UpsertDailyStats(ctx, stats); err != nil {
		return fmt.Errorf("store daily stats: %w", err)
	}
	logger.Info("backfill complete",
		"days", len(stats),
		"samples", len(samples),
		"from", stats[0].Date,
		"to", stats[len(stats)-1].Date,
		"db", store.Path(),
	)
	return nil
}

func readResponse(path string) (domain.ProviderResponse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	var resp domain.ProviderResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode input %s: %w", path, err)
	}
	return resp, nil
}

func fetchHistory(cfg *config.Config, days int, logger *slog.Logger) (domain.ProviderResponse, error) {
	client := usace.NewClient(cfg.USACEBaseURL, cfg.USACETimezone, fetchTimeout, observability.NewMetricsForTesting(), logger)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	resp, err := client.Fetch(ctx, domain.TelemetryQuery{
		Backward: time.Duration(days) * 24 * time.Hour,
		Series:   []string{cfg.ElevationSeries},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch elevation history: %w", err)
	}
	return resp, nil
}

// reduceDays reduces each calendar day of samples in loc, in date order.
func reduceDays(samples []domain.Sample, loc *time.Location) ([]domain.DailyStat, error) {
	groups := domain.GroupByDay(samples, loc)
	stats := make([]domain.DailyStat, 0, len(groups))
	for _, g := range groups {
		stat, err := domain.ReduceDay(g.Date, g.Samples)
		if err != nil {
			return nil, fmt.Errorf("reduce %s: %w", g.Date, err)
		}
		stats = append(stats, stat)
	}
	return stats, nil
}
