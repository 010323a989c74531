package domain

import (
	"sort"
	"time"
)

// DateLayout is the calendar-day key used for DailyStat rows.
const DateLayout = "2006-01-02"

// DailyStat is one day's elevation summary, keyed by Date.
type DailyStat struct {
	Date         string    `json:"date"`
	MinElevation float64   `json:"min_elevation"`
	MaxElevation float64   `json:"max_elevation"`
	AvgElevation float64   `json:"avg_elevation"`
	MinTimestamp time.Time `json:"min_timestamp"`
	MaxTimestamp time.Time `json:"max_timestamp"`
}

// DateOf returns the calendar date of t in loc.
func DateOf(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateLayout)
}

// ReduceDay computes min, max and mean over one day's samples in a single pass.
// The first occurrence of an extreme keeps its timestamp. The mean is not
// rounded, only held inside [min, max] against float drift.
func ReduceDay(date string, samples []Sample) (DailyStat, error) {
	if len(samples) == 0 {
		return DailyStat{}, &EmptyWindowError{Window: "day " + date}
	}

	stat := DailyStat{
		Date:         date,
		MinElevation: samples[0].Value,
		MaxElevation: samples[0].Value,
		MinTimestamp: samples[0].Timestamp,
		MaxTimestamp: samples[0].Timestamp,
	}
	sum := 0.0
	for _, s := range samples {
		if s.Value < stat.MinElevation {
			stat.MinElevation = s.Value
			stat.MinTimestamp = s.Timestamp
		}
		if s.Value > stat.MaxElevation {
			stat.MaxElevation = s.Value
			stat.MaxTimestamp = s.Timestamp
		}
		sum += s.Value
	}

	avg := sum / float64(len(samples))
	switch {
	case avg < stat.MinElevation:
		avg = stat.MinElevation
	case avg > stat.MaxElevation:
		avg = stat.MaxElevation
	}
	stat.AvgElevation = avg
	return stat, nil
}

// DayGroup is the samples that fall on one calendar date.
type DayGroup struct {
	Date    string
	Samples []Sample
}

// GroupByDay buckets samples by calendar date in loc, returning groups in date order.
// Samples keep their input order within a group.
func GroupByDay(samples []Sample, loc *time.Location) []DayGroup {
	index := make(map[string]int)
	var groups []DayGroup
	for _, s := range samples {
		date := DateOf(s.Timestamp, loc)
		i, ok := index[date]
		if !ok {
			i = len(groups)
			index[date] = i
			groups = append(groups, DayGroup{Date: date})
		}
		groups[i].Samples = append(groups[i].Samples, s)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Date < groups[j].Date })
	return groups
}
