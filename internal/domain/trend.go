package domain

import (
	"math"
	"time"
)

// lastUpdatedLayout renders the condition timestamp for display, e.g. "Mar 4, 2:00 PM".
const lastUpdatedLayout = "Jan 2, 3:04 PM"

// CurrentCondition is the live state of the forebay derived on every poll.
type CurrentCondition struct {
	CurrentLevel float64   `json:"currentLevel"`
	Trend        Trend     `json:"trend"`
	RateOfChange float64   `json:"rateOfChange"` // magnitude in ft/hr
	LastUpdated  string    `json:"lastUpdated"`
	Timestamp    time.Time `json:"timestamp"`
}

// TrendOptions tunes the trend estimator.
type TrendOptions struct {
	Lookback  time.Duration // how far back the comparison sample is sought
	Threshold float64       // ft/hr beyond which the level counts as moving
}

// DefaultTrendOptions compares against the sample nearest one hour ago with a 0.05 ft/hr band.
func DefaultTrendOptions() TrendOptions {
	return TrendOptions{Lookback: time.Hour, Threshold: 0.05}
}

// EstimateTrend derives the current condition from samples sorted by timestamp.
//
// The comparison sample is the one nearest to (latest - Lookback), found by a
// linear scan where the earliest sample wins ties. Irregular spacing means the
// elapsed time is usually not exactly Lookback; the rate is divided by the real
// elapsed time rather than interpolated.
func EstimateTrend(samples []Sample, opts TrendOptions) (CurrentCondition, error) {
	if len(samples) == 0 {
		return CurrentCondition{}, &NoDataError{}
	}

	current := samples[len(samples)-1]
	previous := nearestSample(samples, current.Timestamp.Add(-opts.Lookback))
	rate := ratePerHour(previous, current)

	return CurrentCondition{
		CurrentLevel: current.Value,
		Trend:        classifyRate(rate, opts.Threshold),
		RateOfChange: roundTo(math.Abs(rate), 2),
		LastUpdated:  current.Timestamp.Format(lastUpdatedLayout),
		Timestamp:    current.Timestamp,
	}, nil
}

// nearestSample returns the sample closest to target. samples must be non-empty.
func nearestSample(samples []Sample, target time.Time) Sample {
	best := samples[0]
	bestDiff := absDuration(best.Timestamp.Sub(target))
	for _, s := range samples[1:] {
		if d := absDuration(s.Timestamp.Sub(target)); d < bestDiff {
			best, bestDiff = s, d
		}
	}
	return best
}

// ratePerHour is the signed change between two samples in units per hour, 0 when no time elapsed.
func ratePerHour(from, to Sample) float64 {
	hours := to.Timestamp.Sub(from.Timestamp).Hours()
	if hours <= 0 {
		return 0
	}
	return (to.Value - from.Value) / hours
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
