package domain

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// Record is one all-time extreme.
type Record struct {
	Elevation float64   `json:"elevation"`
	Date      string    `json:"date"`
	Timestamp time.Time `json:"timestamp"`
}

// AllTimeRecords holds the highest and lowest levels ever stored. Either is
// nil when there are no rows.
type AllTimeRecords struct {
	AllTimeHigh *Record `json:"allTimeHigh"`
	AllTimeLow  *Record `json:"allTimeLow"`
}

// PeriodStats summarizes a window of daily rows.
type PeriodStats struct {
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Avg      float64 `json:"avg"`
	HighDate string  `json:"high_date"`
	LowDate  string  `json:"low_date"`
	Days     int     `json:"days"`
}

// AllTime selects the row with the highest max and, independently, the row
// with the lowest min. On equal values the first row in input order wins.
func AllTime(rows []DailyStat) AllTimeRecords {
	if len(rows) == 0 {
		return AllTimeRecords{}
	}

	hi, lo := rows[0], rows[0]
	for _, r := range rows[1:] {
		if r.MaxElevation > hi.MaxElevation {
			hi = r
		}
		if r.MinElevation < lo.MinElevation {
			lo = r
		}
	}

	return AllTimeRecords{
		AllTimeHigh: &Record{Elevation: hi.MaxElevation, Date: hi.Date, Timestamp: hi.MaxTimestamp},
		AllTimeLow:  &Record{Elevation: lo.MinElevation, Date: lo.Date, Timestamp: lo.MinTimestamp},
	}
}

// SummarizePeriod reduces a window of rows to high, low and average. The
// average is the plain mean of the daily means; days are not weighted by
// sample count.
func SummarizePeriod(window string, rows []DailyStat) (PeriodStats, error) {
	if len(rows) == 0 {
		return PeriodStats{}, &EmptyWindowError{Window: window}
	}

	out := PeriodStats{
		High:     rows[0].MaxElevation,
		HighDate: rows[0].Date,
		Low:      rows[0].MinElevation,
		LowDate:  rows[0].Date,
		Days:     len(rows),
	}
	avgs := make([]float64, len(rows))
	for i, r := range rows {
		if r.MaxElevation > out.High {
			out.High, out.HighDate = r.MaxElevation, r.Date
		}
		if r.MinElevation < out.Low {
			out.Low, out.LowDate = r.MinElevation, r.Date
		}
		avgs[i] = r.AvgElevation
	}
	out.Avg = stat.Mean(avgs, nil)
	return out, nil
}

// YearlyWindow is the trailing 365 days ending on now's date, inclusive.
func YearlyWindow(now time.Time, loc *time.Location) (from, to string) {
	return DateOf(now.AddDate(0, 0, -364), loc), DateOf(now, loc)
}

// MonthlyWindow is the calendar month containing now.
func MonthlyWindow(now time.Time, loc *time.Location) (from, to string) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	first := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	last := first.AddDate(0, 1, -1)
	return first.Format(DateLayout), last.Format(DateLayout)
}

// RowsBetween keeps the rows whose date falls in [from, to], preserving order.
func RowsBetween(rows []DailyStat, from, to string) []DailyStat {
	out := make([]DailyStat, 0, len(rows))
	for _, r := range rows {
		if r.Date >= from && r.Date <= to {
			out = append(out, r)
		}
	}
	return out
}
