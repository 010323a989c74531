package pipeline_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/reservoir-forecast/internal/domain"
	"github.com/couchcryptid/reservoir-forecast/internal/observability"
)

const testElevationSeries = "WAN.Elev-Forebay.Inst.1Hour.0.CBT-REV"

// fixtureNow is the last hourly timestamp in testdata, 2024-05-01 12:00 PDT.
var fixtureNow = time.Date(2024, time.May, 1, 19, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func loadFixture(t *testing.T, name string) domain.ProviderResponse {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)

	var resp domain.ProviderResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	return resp
}

// fakeProvider answers queries by their Backward window.
type fakeProvider struct {
	mu        sync.Mutex
	responses map[time.Duration]domain.ProviderResponse
	err       error
	queries   []domain.TelemetryQuery
}

func (f *fakeProvider) Fetch(_ context.Context, q domain.TelemetryQuery) (domain.ProviderResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	if resp, ok := f.responses[q.Backward]; ok {
		return resp, nil
	}
	return domain.ProviderResponse{}, nil
}
