//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/reservoir-forecast/internal/adapter/kafka"
	"github.com/couchcryptid/reservoir-forecast/internal/config"
	"github.com/couchcryptid/reservoir-forecast/internal/domain"
	"github.com/couchcryptid/reservoir-forecast/internal/observability"
	"github.com/couchcryptid/reservoir-forecast/internal/pipeline"
)

const (
	kafkaImage          = "confluentinc/confluent-local:7.5.0"
	testReportTopic     = "test-reservoir-reports"
	testElevationSeries = "WAN.Elev-Forebay.Inst.1Hour.0.CBT-REV"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, kafkaImage, tckafka.WithClusterID("reservoir-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// publishedReport holds a deserialized message read from the report topic.
type publishedReport struct {
	Report  domain.Report
	Key     string
	Headers map[string]string
}

func readReport(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedReport {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from report topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var report domain.Report
	require.NoError(t, json.Unmarshal(msg.Value, &report), "unmarshal report")

	return publishedReport{Report: report, Key: string(msg.Key), Headers: headers}
}

func newConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testReportTopic,
		GroupID:     "test-consumer-" + strconv.FormatInt(time.Now().UnixNano(), 10),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

func testConfig(broker string) *config.Config {
	return &config.Config{
		KafkaBrokers:     []string{broker},
		KafkaReportTopic: testReportTopic,
	}
}

// TestWriterPublish verifies a report round-trips through the topic with its key and headers.
func TestWriterPublish(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testReportTopic)

	writer := kafka.NewWriter(testConfig(broker), discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	generated := time.Date(2024, time.May, 1, 19, 0, 0, 0, time.UTC)
	report := domain.Report{
		ID:          "3f1c2a4e-0000-4000-8000-000000000001",
		Station:     "WAN",
		GeneratedAt: generated,
		Current:     domain.CurrentCondition{CurrentLevel: 571.42, Trend: domain.TrendRising},
		Prediction:  domain.PredictionData{Direction: domain.TrendRising, Confidence: domain.ConfidenceMedium},
	}
	require.NoError(t, writer.Publish(ctx, report))

	got := readReport(ctx, t, newConsumer(t, broker))
	assert.Equal(t, "WAN", got.Key)
	assert.Equal(t, report.ID, got.Headers["report_id"])
	assert.Equal(t, "rising", got.Headers["direction"])
	assert.Equal(t, generated.Format(time.RFC3339), got.Headers["generated_at"])
	assert.Equal(t, 571.42, got.Report.Current.CurrentLevel)
	assert.True(t, got.Report.GeneratedAt.Equal(generated))
}

// fixtureProvider serves the pipeline testdata by requested series.
type fixtureProvider struct {
	elevation domain.ProviderResponse
	flows     domain.ProviderResponse
}

func (p fixtureProvider) Fetch(_ context.Context, q domain.TelemetryQuery) (domain.ProviderResponse, error) {
	if len(q.Series) == 1 && q.Series[0] == testElevationSeries {
		return p.elevation, nil
	}
	return p.flows, nil
}

func loadFixture(t *testing.T, name string) domain.ProviderResponse {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "pipeline", "testdata", name))
	require.NoError(t, err)
	var resp domain.ProviderResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	return resp
}

// TestPipelineEndToEnd runs one forecast cycle from fixture telemetry through
// the Kafka writer and reads the published report back.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testReportTopic)

	forecaster := domain.NewForecaster(domain.DefaultForecastConfig())
	provider := fixtureProvider{
		elevation: loadFixture(t, "elevation.json"),
		flows:     loadFixture(t, "flows.json"),
	}
	extractor := pipeline.NewExtractor(provider, testElevationSeries, forecaster)
	// Stamp snapshots at the last fixture hour, 2024-05-01 12:00 PDT.
	extractor.SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.May, 1, 19, 0, 0, 0, time.UTC)))
	transformer := pipeline.NewTransformer(forecaster, domain.ReportOptions{
		ElevationSeries: testElevationSeries,
		Location:        time.FixedZone("PST", -8*60*60),
		Trend:           domain.DefaultTrendOptions(),
	}, discardLogger())

	writer := kafka.NewWriter(testConfig(broker), discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(extractor, transformer, writer, time.Hour, discardLogger(), observability.NewMetricsForTesting())

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(pipelineCtx) }()

	got := readReport(ctx, t, newConsumer(t, broker))

	pipelineCancel()
	require.NoError(t, <-errCh)

	latest, ok := p.Latest()
	require.True(t, ok)
	assert.Equal(t, latest.ID, got.Headers["report_id"])
	assert.Equal(t, latest.ID, got.Report.ID)
	assert.Equal(t, "WAN", got.Key)
	assert.InDelta(t, 571.44, got.Report.Current.CurrentLevel, 1e-9)
	assert.Len(t, got.Report.Upstream, len(forecaster.Stations()))
	assert.NotEmpty(t, got.Report.Prediction.Reasons)
}
