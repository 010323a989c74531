package domain

import (
	"time"
)

// Sample is one normalized elevation or flow reading.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Trend is the discrete movement of the water surface.
type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendStable  Trend = "stable"
)

// classifyRate maps a signed rate onto a Trend using a symmetric threshold.
func classifyRate(rate, threshold float64) Trend {
	switch {
	case rate > threshold:
		return TrendRising
	case rate < -threshold:
		return TrendFalling
	default:
		return TrendStable
	}
}

// TrailingWindow returns the samples strictly newer than now minus d.
// The input order is preserved.
func TrailingWindow(samples []Sample, now time.Time, d time.Duration) []Sample {
	cutoff := now.Add(-d)
	out := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if s.Timestamp.After(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

// lastN returns at most the final n samples.
func lastN(samples []Sample, n int) []Sample {
	if len(samples) <= n {
		return samples
	}
	return samples[len(samples)-n:]
}
