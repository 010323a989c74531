package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/reservoir-forecast/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/reservoir-forecast/internal/adapter/kafka"
	"github.com/couchcryptid/reservoir-forecast/internal/adapter/telegram"
	"github.com/couchcryptid/reservoir-forecast/internal/adapter/usace"
	"github.com/couchcryptid/reservoir-forecast/internal/config"
	"github.com/couchcryptid/reservoir-forecast/internal/domain"
	"github.com/couchcryptid/reservoir-forecast/internal/observability"
	"github.com/couchcryptid/reservoir-forecast/internal/pipeline"
	"github.com/couchcryptid/reservoir-forecast/internal/records"
	"github.com/couchcryptid/reservoir-forecast/internal/storage"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	providerZone := usace.ZoneLocation(cfg.USACETimezone)
	client := usace.NewClient(cfg.USACEBaseURL, cfg.USACETimezone, cfg.USACETimeout, metrics, logger)
	provider := usace.NewCachedProvider(client, cfg.USACECacheSize, cfg.USACECacheTTL, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	logger.Info("database opened", "target", store.Path())

	forecaster := domain.NewForecaster(domain.ForecastConfig{
		Target:             cfg.TargetStation,
		Upstream:           cfg.UpstreamStations,
		SurfaceAreaSqFt:    cfg.SurfaceAreaAcres * domain.SqFtPerAcre,
		Threshold:          cfg.ForecastThreshold,
		SignificantNetFlow: domain.DefaultForecastConfig().SignificantNetFlow,
	})

	trend := domain.DefaultTrendOptions()
	trend.Threshold = cfg.TrendThreshold

	extractor := pipeline.NewExtractor(provider, cfg.ElevationSeries, forecaster)
	transformer := pipeline.NewTransformer(forecaster, domain.ReportOptions{
		ElevationSeries: cfg.ElevationSeries,
		Location:        providerZone,
		Trend:           trend,
	}, logger)

	// Publishing is feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS.
	var publisher pipeline.Publisher
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaReportTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	p := pipeline.New(extractor, transformer, publisher, cfg.PollInterval, logger, metrics)

	recorder := pipeline.NewRecorder(provider, store, pipeline.RecorderConfig{
		Target:          cfg.TargetStation,
		ElevationSeries: cfg.ElevationSeries,
		Stations:        forecaster.Stations(),
		ProviderZone:    providerZone,
		ReportZone:      cfg.ReportLocation,
	}, logger, metrics)

	scheduler, err := pipeline.NewScheduler(cfg.RecordSchedule, cfg.ReportLocation, cfg.ShutdownTimeout, recorder.RecordAll, logger)
	if err != nil {
		logger.Error("invalid record schedule", "schedule", cfg.RecordSchedule, "error", err)
		os.Exit(1)
	}

	summaries := records.NewService(store, cfg.ReportLocation, records.DefaultRecentDays)
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, summaries, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start forecast pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	scheduler.Start()
	logger.Info("recorder scheduled", "schedule", cfg.RecordSchedule, "next", scheduler.Next())

	// Start Telegram bot (feature-flagged via TELEGRAM_ENABLED / TELEGRAM_BOT_TOKEN).
	if cfg.TelegramEnabled {
		bot, err := telegram.NewBot(cfg.TelegramToken, telegram.NewResponder(p, summaries), logger)
		if err != nil {
			logger.Error("telegram bot disabled", "error", err)
		} else {
			go bot.Run(ctx)
		}
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Error("recorder shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := store.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("shutdown complete")
}
