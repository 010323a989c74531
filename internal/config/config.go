package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// DefaultUSACEBaseURL is the Northwestern Division data query endpoint.
const DefaultUSACEBaseURL = "https://www.nwd-wc.usace.army.mil/dd/common/web_service/webexec/getjson"

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// USACE data query configuration.
	USACEBaseURL   string
	USACETimezone  string
	USACETimeout   time.Duration
	USACECacheTTL  time.Duration
	USACECacheSize int

	// Forecast inputs.
	TargetStation     string
	ElevationSeries   string
	UpstreamStations  []string // nearest first
	SurfaceAreaAcres  float64
	TrendThreshold    float64 // ft/hr
	ForecastThreshold float64 // ft/hr
	PollInterval      time.Duration
	ReportTimezone    string
	ReportLocation    *time.Location

	DatabasePath   string
	DatabaseURL    string // postgres connection URL; overrides DatabasePath when set
	RecordSchedule string

	KafkaBrokers     []string
	KafkaEnabled     bool
	KafkaReportTopic string

	TelegramToken   string
	TelegramEnabled bool
}

// LoadDotEnv seeds the environment from a .env file without overriding
// variables that are already set. A missing file is ignored.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	usaceTimeout, err := parseDuration("USACE_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDuration("USACE_CACHE_TTL", "5m")
	if err != nil {
		return nil, err
	}
	pollInterval, err := parseDuration("POLL_INTERVAL", "5m")
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("USACE_CACHE_SIZE", 64)
	if err != nil {
		return nil, err
	}
	surfaceArea, err := parsePositiveFloat("SURFACE_AREA_ACRES", 15000)
	if err != nil {
		return nil, err
	}
	trendThreshold, err := parsePositiveFloat("TREND_THRESHOLD_FT_PER_HOUR", 0.05)
	if err != nil {
		return nil, err
	}
	forecastThreshold, err := parsePositiveFloat("FORECAST_THRESHOLD_FT_PER_HOUR", 0.05)
	if err != nil {
		return nil, err
	}

	reportTZ := sharedcfg.EnvOrDefault("REPORT_TIMEZONE", "America/Los_Angeles")
	reportLoc, err := time.LoadLocation(reportTZ)
	if err != nil {
		return nil, fmt.Errorf("invalid REPORT_TIMEZONE: %w", err)
	}

	target := strings.ToUpper(sharedcfg.EnvOrDefault("TARGET_STATION", "WAN"))

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	telegramToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	telegramEnabled := telegramToken != ""
	if v := os.Getenv("TELEGRAM_ENABLED"); v != "" {
		telegramEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		USACEBaseURL:   sharedcfg.EnvOrDefault("USACE_BASE_URL", DefaultUSACEBaseURL),
		USACETimezone:  sharedcfg.EnvOrDefault("USACE_TIMEZONE", "PST"),
		USACETimeout:   usaceTimeout,
		USACECacheTTL:  cacheTTL,
		USACECacheSize: cacheSize,

		TargetStation:     target,
		ElevationSeries:   sharedcfg.EnvOrDefault("ELEVATION_SERIES", target+".Elev-Forebay.Inst.1Hour.0.CBT-REV"),
		UpstreamStations:  parseStations(sharedcfg.EnvOrDefault("UPSTREAM_STATIONS", "RIS,RRH,WEL,CJO,GCL")),
		SurfaceAreaAcres:  surfaceArea,
		TrendThreshold:    trendThreshold,
		ForecastThreshold: forecastThreshold,
		PollInterval:      pollInterval,
		ReportTimezone:    reportTZ,
		ReportLocation:    reportLoc,

		DatabasePath:   sharedcfg.EnvOrDefault("DATABASE_PATH", "data/reservoir.db"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RecordSchedule: sharedcfg.EnvOrDefault("RECORD_SCHEDULE", "0 * * * *"),

		KafkaBrokers:     brokers,
		KafkaEnabled:     kafkaEnabled,
		KafkaReportTopic: sharedcfg.EnvOrDefault("KAFKA_REPORT_TOPIC", "reservoir-reports"),

		TelegramToken:   telegramToken,
		TelegramEnabled: telegramEnabled,
	}

	if len(cfg.UpstreamStations) == 0 {
		return nil, errors.New("UPSTREAM_STATIONS is required")
	}
	if cfg.DatabasePath == "" {
		return nil, errors.New("DATABASE_PATH is required")
	}
	if cfg.DatabaseURL != "" && !strings.HasPrefix(cfg.DatabaseURL, "postgres://") && !strings.HasPrefix(cfg.DatabaseURL, "postgresql://") {
		return nil, errors.New("DATABASE_URL must be a postgres:// or postgresql:// URL")
	}
	if _, err := cron.ParseStandard(cfg.RecordSchedule); err != nil {
		return nil, fmt.Errorf("invalid RECORD_SCHEDULE: %w", err)
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaReportTopic == "" {
		return nil, errors.New("KAFKA_REPORT_TOPIC is required")
	}
	if cfg.TelegramEnabled && cfg.TelegramToken == "" {
		return nil, errors.New("TELEGRAM_ENABLED is true but TELEGRAM_BOT_TOKEN is not set")
	}

	return cfg, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parsePositiveFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}

func parseStations(s string) []string {
	var out []string
	for _, code := range strings.Split(s, ",") {
		if code = strings.ToUpper(strings.TrimSpace(code)); code != "" {
			out = append(out, code)
		}
	}
	return out
}
