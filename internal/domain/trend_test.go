package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateTrend_RisingOneHour(t *testing.T) {
	samples := []Sample{sample(0, 10.0), sample(time.Hour, 10.2)}

	cond, err := EstimateTrend(samples, DefaultTrendOptions())
	require.NoError(t, err)

	assert.Equal(t, 10.2, cond.CurrentLevel)
	assert.Equal(t, TrendRising, cond.Trend)
	assert.InDelta(t, 0.2, cond.RateOfChange, 1e-9)
	assert.Equal(t, "May 1, 1:00 PM", cond.LastUpdated)
	assert.Equal(t, testBase.Add(time.Hour), cond.Timestamp)
}

func TestEstimateTrend_NoSamples(t *testing.T) {
	_, err := EstimateTrend(nil, DefaultTrendOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestEstimateTrend_SingleSampleIsStable(t *testing.T) {
	cond, err := EstimateTrend([]Sample{sample(0, 571.4)}, DefaultTrendOptions())
	require.NoError(t, err)
	assert.Equal(t, TrendStable, cond.Trend)
	assert.Zero(t, cond.RateOfChange)
	assert.Equal(t, 571.4, cond.CurrentLevel)
}

func TestEstimateTrend_TwoPointClassification(t *testing.T) {
	tests := []struct {
		name     string
		delta    float64
		elapsed  time.Duration
		expected Trend
	}{
		{"fast rise", 0.3, time.Hour, TrendRising},
		{"slow rise", 0.04, time.Hour, TrendStable},
		{"flat", 0, time.Hour, TrendStable},
		{"slow fall", -0.04, time.Hour, TrendStable},
		{"fast fall", -0.3, time.Hour, TrendFalling},
		{"rise over two hours", 0.2, 2 * time.Hour, TrendRising},
		{"small rise over half hour", 0.04, 30 * time.Minute, TrendRising},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from := sample(0, 100)
			to := sample(tt.elapsed, 100+tt.delta)

			cond, err := EstimateTrend([]Sample{from, to}, DefaultTrendOptions())
			require.NoError(t, err)

			signed := ratePerHour(from, to)
			assert.Equal(t, tt.expected, cond.Trend)
			assert.Equal(t, classifyRate(signed, 0.05), cond.Trend)
			assert.GreaterOrEqual(t, cond.RateOfChange, 0.0)
		})
	}
}

func TestEstimateTrend_NearestSampleEarliestWinsTie(t *testing.T) {
	// Target is 1h before the latest sample; the 0:30 and 1:30 samples are
	// equally far from it and the earlier one must be used.
	samples := []Sample{
		sample(30*time.Minute, 10.0),
		sample(90*time.Minute, 10.3),
		sample(2*time.Hour, 10.6),
	}

	cond, err := EstimateTrend(samples, DefaultTrendOptions())
	require.NoError(t, err)
	assert.InDelta(t, 0.4, cond.RateOfChange, 1e-9)
}

func TestEstimateTrend_UsesElapsedTimeNotLookback(t *testing.T) {
	// Nearest to 1h ago is 1.5h ago.
	samples := []Sample{
		sample(0, 570.0),
		sample(90*time.Minute, 570.3),
	}

	cond, err := EstimateTrend(samples, DefaultTrendOptions())
	require.NoError(t, err)
	assert.InDelta(t, 0.2, cond.RateOfChange, 1e-9)
	assert.Equal(t, TrendRising, cond.Trend)
}

func TestEstimateTrend_RoundsToHundredths(t *testing.T) {
	samples := []Sample{sample(0, 570.0), sample(time.Hour, 569.87654)}

	cond, err := EstimateTrend(samples, DefaultTrendOptions())
	require.NoError(t, err)
	assert.Equal(t, TrendFalling, cond.Trend)
	assert.InDelta(t, 0.12, cond.RateOfChange, 1e-9)
}

func TestTrailingWindow(t *testing.T) {
	samples := []Sample{
		sample(-25*time.Hour, 1),
		sample(-24*time.Hour, 2),
		sample(-23*time.Hour, 3),
		sample(0, 4),
	}

	got := TrailingWindow(samples, testBase, 24*time.Hour)
	require.Len(t, got, 2)
	assert.Equal(t, 3.0, got[0].Value)
	assert.Equal(t, 4.0, got[1].Value)
}
