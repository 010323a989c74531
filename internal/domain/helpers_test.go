package domain

import (
	"time"
)

const (
	testTarget    = "WAN"
	testElevation = "WAN.Elev-Forebay.Inst.1Hour.0.CBT-REV"
)

var testBase = time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)

func rv(ts time.Time, v float64) RawValue {
	return RawValue{Timestamp: ts.Format(time.RFC3339), Value: &v}
}

func hourly(end time.Time, values ...float64) []RawValue {
	out := make([]RawValue, len(values))
	start := end.Add(-time.Duration(len(values)-1) * time.Hour)
	for i, v := range values {
		out[i] = rv(start.Add(time.Duration(i)*time.Hour), v)
	}
	return out
}

func sample(offset time.Duration, v float64) Sample {
	return Sample{Timestamp: testBase.Add(offset), Value: v}
}

func flowReading(code string, outflow, inflow *float64) DamReading {
	st := LookupStation(code)
	r := DamReading{Name: st.Name, Code: code, Available: true, Current: &DamCurrent{}}
	if outflow != nil {
		r.Current.Outflow = &DamFlow{Value: *outflow, Timestamp: testBase, Unit: flowUnit}
	}
	if inflow != nil {
		r.Current.Inflow = &DamFlow{Value: *inflow, Timestamp: testBase, Unit: flowUnit}
	}
	return r
}

func cfs(v float64) *float64 { return &v }
