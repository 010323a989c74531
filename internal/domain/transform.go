package domain

import (
	"fmt"
	"time"
)

// HistoryWindow is the elevation history attached to each report.
const HistoryWindow = 7 * 24 * time.Hour

// Snapshot is the raw telemetry fetched for one cycle.
type Snapshot struct {
	Elevation ProviderResponse
	Flows     ProviderResponse
	FetchedAt time.Time
}

// Report is the derived state published after each cycle.
type Report struct {
	ID          string           `json:"id"`
	Station     string           `json:"station"`
	GeneratedAt time.Time        `json:"generatedAt"`
	Current     CurrentCondition `json:"current"`
	FlowBalance FlowBalance      `json:"flowBalance"`
	Prediction  PredictionData   `json:"prediction"`
	Upstream    []DamReading     `json:"upstream"`
	History     []Sample         `json:"history"`
}

// ReportOptions carries the series and tuning used to build a report.
type ReportOptions struct {
	ElevationSeries string
	Location        *time.Location // zone for provider timestamps without an offset
	Trend           TrendOptions
}

// BuildReport derives the current condition, upstream readings and forecast
// from one snapshot. It fails if the elevation series is malformed or empty;
// missing upstream data only lowers forecast confidence.
func BuildReport(snap Snapshot, f *Forecaster, opts ReportOptions) (Report, error) {
	target := f.Config().Target

	elevation, err := NormalizeSeries(snap.Elevation, target, opts.ElevationSeries, opts.Location)
	if err != nil {
		return Report{}, fmt.Errorf("normalize elevation: %w", err)
	}
	current, err := EstimateTrend(elevation, opts.Trend)
	if err != nil {
		return Report{}, &NoDataError{Station: target, Series: opts.ElevationSeries}
	}

	stations := f.Stations()
	readings := make([]DamReading, 0, len(stations))
	for _, st := range stations {
		readings = append(readings, BuildDamReading(snap.Flows, st, snap.FetchedAt, opts.Location))
	}

	return Report{
		Station:     target,
		GeneratedAt: snap.FetchedAt,
		Current:     current,
		FlowBalance: f.FlowBalance(readings),
		Prediction:  f.Predict(readings),
		Upstream:    readings,
		History:     TrailingWindow(elevation, snap.FetchedAt, HistoryWindow),
	}, nil
}
