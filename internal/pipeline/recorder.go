package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/reservoir-forecast/internal/domain"
	"github.com/couchcryptid/reservoir-forecast/internal/observability"
)

const (
	dailyBackward    = 24 * time.Hour
	upstreamBackward = 2 * time.Hour
)

// RecordStore persists recorder output.
type RecordStore interface {
	UpsertDailyStat(ctx context.Context, stat domain.DailyStat) error
	UpsertUpstreamFlows(ctx context.Context, flows []domain.UpstreamFlow) error
}

// RecorderConfig selects what the recorder fetches and how dates are keyed.
type RecorderConfig struct {
	Target          string
	ElevationSeries string
	Stations        []domain.Station
	ProviderZone    *time.Location // zone for provider timestamps without an offset
	ReportZone      *time.Location // calendar used for the daily key
}

// Recorder runs the scheduled persistence jobs.
type Recorder struct {
	provider domain.TelemetryProvider
	store    RecordStore
	cfg      RecorderConfig
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewRecorder creates a Recorder.
func NewRecorder(provider domain.TelemetryProvider, store RecordStore, cfg RecorderConfig, logger *slog.Logger, metrics *observability.Metrics) *Recorder {
	return &Recorder{
		provider: provider,
		store:    store,
		cfg:      cfg,
		clock:    clockwork.NewRealClock(),
		logger:   logger,
		metrics:  metrics,
	}
}

// SetClock replaces the clock used for the daily key. Intended for tests.
func (r *Recorder) SetClock(clock clockwork.Clock) {
	r.clock = clock
}

// RecordDailyStats reduces the last day of elevation samples and upserts the
// summary under today's date. stored is false when there were no samples.
func (r *Recorder) RecordDailyStats(ctx context.Context) (stat domain.DailyStat, stored bool, err error) {
	resp, err := r.provider.Fetch(ctx, domain.TelemetryQuery{
		Backward: dailyBackward,
		Series:   []string{r.cfg.ElevationSeries},
	})
	if err != nil {
		return domain.DailyStat{}, false, fmt.Errorf("fetch elevation: %w", err)
	}

	samples, err := domain.NormalizeSeries(resp, r.cfg.Target, r.cfg.ElevationSeries, r.cfg.ProviderZone)
	if err != nil {
		return domain.DailyStat{}, false, fmt.Errorf("normalize elevation: %w", err)
	}

	date := domain.DateOf(r.clock.Now(), r.cfg.ReportZone)
	stat, err = domain.ReduceDay(date, samples)
	if errors.Is(err, domain.ErrEmptyWindow) {
		r.logger.Warn("no elevation data available to store", "date", date, "series", r.cfg.ElevationSeries)
		return domain.DailyStat{}, false, nil
	}
	if err != nil {
		return domain.DailyStat{}, false, err
	}

	if err := r.store.UpsertDailyStat(ctx, stat); err != nil {
		return domain.DailyStat{}, false, fmt.Errorf("store daily stat: %w", err)
	}
	r.metrics.DailyStatsRecorded.Inc()
	r.logger.Info("daily stats stored",
		"date", stat.Date,
		"min", stat.MinElevation,
		"max", stat.MaxElevation,
		"avg", stat.AvgElevation,
		"samples", len(samples),
	)
	return stat, true, nil
}

// RecordUpstreamFlows stores each station's latest outflow with its matching
// inflow. Stations without data are skipped.
func (r *Recorder) RecordUpstreamFlows(ctx context.Context) ([]domain.UpstreamFlow, error) {
	codes := make([]string, len(r.cfg.Stations))
	for i, st := range r.cfg.Stations {
		codes[i] = st.Code
	}

	resp, err := r.provider.Fetch(ctx, domain.TelemetryQuery{
		Backward: upstreamBackward,
		Series:   domain.FlowSeries(codes...),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch flows: %w", err)
	}

	var flows []domain.UpstreamFlow
	for _, st := range r.cfg.Stations {
		flow, ok, err := domain.LatestUpstreamFlow(resp, st, r.cfg.ProviderZone)
		if err != nil {
			r.logger.Warn("skipping station with malformed flows", "station", st.Code, "error", err)
			continue
		}
		if !ok {
			r.logger.Warn("no flow data available", "station", st.Code)
			continue
		}
		flows = append(flows, flow)
	}

	if len(flows) == 0 {
		r.logger.Info("no new upstream flow data to store")
		return nil, nil
	}
	if err := r.store.UpsertUpstreamFlows(ctx, flows); err != nil {
		return nil, fmt.Errorf("store upstream flows: %w", err)
	}
	r.metrics.UpstreamFlowRows.Add(float64(len(flows)))
	r.logger.Info("upstream flows stored", "rows", len(flows))
	return flows, nil
}

// RecordAll runs both jobs, logging failures. It is the scheduled entry point.
func (r *Recorder) RecordAll(ctx context.Context) {
	if _, _, err := r.RecordDailyStats(ctx); err != nil {
		r.logger.Error("record daily stats failed", "error", err)
	}
	if _, err := r.RecordUpstreamFlows(ctx); err != nil {
		r.logger.Error("record upstream flows failed", "error", err)
	}
}
