package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTelegramToken = "123456:test-token"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, DefaultUSACEBaseURL, cfg.USACEBaseURL)
	assert.Equal(t, "PST", cfg.USACETimezone)
	assert.Equal(t, 10*time.Second, cfg.USACETimeout)
	assert.Equal(t, 5*time.Minute, cfg.USACECacheTTL)
	assert.Equal(t, 64, cfg.USACECacheSize)
	assert.Equal(t, "WAN", cfg.TargetStation)
	assert.Equal(t, "WAN.Elev-Forebay.Inst.1Hour.0.CBT-REV", cfg.ElevationSeries)
	assert.Equal(t, []string{"RIS", "RRH", "WEL", "CJO", "GCL"}, cfg.UpstreamStations)
	assert.Equal(t, 15000.0, cfg.SurfaceAreaAcres)
	assert.Equal(t, 0.05, cfg.TrendThreshold)
	assert.Equal(t, 0.05, cfg.ForecastThreshold)
	assert.Equal(t, 5*time.Minute, cfg.PollInterval)
	assert.Equal(t, "America/Los_Angeles", cfg.ReportLocation.String())
	assert.Equal(t, "data/reservoir.db", cfg.DatabasePath)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, "0 * * * *", cfg.RecordSchedule)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, "reservoir-reports", cfg.KafkaReportTopic)
	assert.False(t, cfg.TelegramEnabled)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("USACE_BASE_URL", "http://localhost:9999/getjson")
	t.Setenv("USACE_TIMEOUT", "3s")
	t.Setenv("USACE_CACHE_TTL", "1m")
	t.Setenv("USACE_CACHE_SIZE", "8")
	t.Setenv("TARGET_STATION", "pri")
	t.Setenv("UPSTREAM_STATIONS", " wan, ris ,,RRH")
	t.Setenv("SURFACE_AREA_ACRES", "7700")
	t.Setenv("POLL_INTERVAL", "90s")
	t.Setenv("REPORT_TIMEZONE", "UTC")
	t.Setenv("RECORD_SCHEDULE", "*/15 * * * *")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_REPORT_TOPIC", "custom-reports")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "http://localhost:9999/getjson", cfg.USACEBaseURL)
	assert.Equal(t, 3*time.Second, cfg.USACETimeout)
	assert.Equal(t, time.Minute, cfg.USACECacheTTL)
	assert.Equal(t, 8, cfg.USACECacheSize)
	assert.Equal(t, "PRI", cfg.TargetStation)
	assert.Equal(t, "PRI.Elev-Forebay.Inst.1Hour.0.CBT-REV", cfg.ElevationSeries)
	assert.Equal(t, []string{"WAN", "RIS", "RRH"}, cfg.UpstreamStations)
	assert.Equal(t, 7700.0, cfg.SurfaceAreaAcres)
	assert.Equal(t, 90*time.Second, cfg.PollInterval)
	assert.Equal(t, time.UTC, cfg.ReportLocation)
	assert.Equal(t, "*/15 * * * *", cfg.RecordSchedule)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, "custom-reports", cfg.KafkaReportTopic)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration"},
		{"SHUTDOWN_TIMEOUT", "-1s"},
		{"USACE_TIMEOUT", "bad"},
		{"USACE_CACHE_TTL", "0s"},
		{"USACE_CACHE_SIZE", "0"},
		{"POLL_INTERVAL", "soon"},
		{"SURFACE_AREA_ACRES", "-15000"},
		{"TREND_THRESHOLD_FT_PER_HOUR", "zero"},
		{"FORECAST_THRESHOLD_FT_PER_HOUR", "0"},
		{"REPORT_TIMEZONE", "Mars/Olympus_Mons"},
		{"RECORD_SCHEDULE", "every hour"},
		{"UPSTREAM_STATIONS", " , "},
		{"DATABASE_URL", "mysql://localhost/reservoir"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_DatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://reservoir:secret@db:5432/reservoir")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://reservoir:secret@db:5432/reservoir", cfg.DatabaseURL)
}

func TestLoad_KafkaEnabledWithoutBrokers(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}

func TestLoad_KafkaExplicitlyDisabled(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "localhost:9092")
	t.Setenv("KAFKA_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.KafkaEnabled)
}

func TestLoad_TelegramEnabledWithoutToken(t *testing.T) {
	t.Setenv("TELEGRAM_ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELEGRAM_BOT_TOKEN")
}

func TestLoad_TelegramTokenImpliesEnabled(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", testTelegramToken)
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.TelegramEnabled)
	assert.Equal(t, testTelegramToken, cfg.TelegramToken)
}

func TestLoadDotEnv(t *testing.T) {
	t.Run("missing file is ignored", func(t *testing.T) {
		require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
	})

	t.Run("seeds unset variables only", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("POLL_INTERVAL=2m\nHTTP_ADDR=:7070\n"), 0o600))
		t.Setenv("HTTP_ADDR", ":9191")
		t.Setenv("POLL_INTERVAL", "")
		require.NoError(t, os.Unsetenv("POLL_INTERVAL"))

		require.NoError(t, LoadDotEnv(path))

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 2*time.Minute, cfg.PollInterval)
		assert.Equal(t, ":9191", cfg.HTTPAddr)
	})
}
