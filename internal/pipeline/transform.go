package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/reservoir-forecast/internal/domain"
)

const (
	// elevationBackward covers the report history plus the trend lookback.
	elevationBackward = domain.HistoryWindow + 24*time.Hour
	// flowBackward matches the upstream history window.
	flowBackward = 7 * 24 * time.Hour
)

// TelemetryExtractor fetches the elevation and flow series for one cycle.
type TelemetryExtractor struct {
	provider        domain.TelemetryProvider
	elevationSeries string
	flowSeries      []string
	clock           clockwork.Clock
}

// NewExtractor creates an extractor for the forecaster's stations.
func NewExtractor(provider domain.TelemetryProvider, elevationSeries string, f *domain.Forecaster) *TelemetryExtractor {
	stations := f.Stations()
	codes := make([]string, len(stations))
	for i, st := range stations {
		codes[i] = st.Code
	}
	return &TelemetryExtractor{
		provider:        provider,
		elevationSeries: elevationSeries,
		flowSeries:      domain.FlowSeries(codes...),
		clock:           clockwork.NewRealClock(),
	}
}

// SetClock replaces the clock that stamps snapshots. Intended for tests.
func (e *TelemetryExtractor) SetClock(clock clockwork.Clock) {
	e.clock = clock
}

func (e *TelemetryExtractor) Extract(ctx context.Context) (domain.Snapshot, error) {
	elevation, err := e.provider.Fetch(ctx, domain.TelemetryQuery{
		Backward: elevationBackward,
		Series:   []string{e.elevationSeries},
	})
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("fetch elevation: %w", err)
	}

	flows, err := e.provider.Fetch(ctx, domain.TelemetryQuery{
		Backward: flowBackward,
		Series:   e.flowSeries,
	})
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("fetch flows: %w", err)
	}

	return domain.Snapshot{Elevation: elevation, Flows: flows, FetchedAt: e.clock.Now()}, nil
}

// ReportTransformer implements Transformer using the domain report builder.
type ReportTransformer struct {
	forecaster *domain.Forecaster
	opts       domain.ReportOptions
	logger     *slog.Logger
}

// NewTransformer creates a ReportTransformer.
func NewTransformer(f *domain.Forecaster, opts domain.ReportOptions, logger *slog.Logger) *ReportTransformer {
	return &ReportTransformer{
		forecaster: f,
		opts:       opts,
		logger:     logger,
	}
}

func (t *ReportTransformer) Transform(_ context.Context, snap domain.Snapshot) (domain.Report, error) {
	report, err := domain.BuildReport(snap, t.forecaster, t.opts)
	if err != nil {
		return domain.Report{}, err
	}

	for _, r := range report.Upstream {
		if !r.Available {
			t.logger.Debug("station unavailable", "station", r.Code, "reason", r.Error)
		}
	}
	return report, nil
}
