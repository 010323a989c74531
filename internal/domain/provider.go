package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

// TelemetryQuery selects named series over a trailing window.
type TelemetryQuery struct {
	Timezone string        // provider timezone label, e.g. "PST"; empty uses the provider default
	Backward time.Duration // how far back from now to fetch
	Series   []string
}

// TelemetryProvider fetches station-keyed series data. Returned responses
// may be shared between callers and must not be modified.
type TelemetryProvider interface {
	Fetch(ctx context.Context, q TelemetryQuery) (ProviderResponse, error)
}

// ProviderResponse is the USACE dataquery payload keyed by station code.
type ProviderResponse map[string]LocationData

// LocationData holds the named time series reported for one station.
type LocationData struct {
	Timeseries map[string]SeriesData `json:"timeseries"`
}

// SeriesData is one named series. Values is nil when the provider omitted it.
type SeriesData struct {
	Values []RawValue `json:"values"`
}

// RawValue is a provider triple: [timestamp, value, quality].
// Value is nil when the provider sent null or a non-numeric placeholder.
type RawValue struct {
	Timestamp string
	Value     *float64
	Quality   int
}

var jsonNull = []byte("null")

// UnmarshalJSON decodes the triple leniently: only the timestamp is mandatory.
func (v *RawValue) UnmarshalJSON(b []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(b, &parts); err != nil {
		return fmt.Errorf("decode value triple: %w", err)
	}
	if len(parts) < 2 {
		return fmt.Errorf("decode value triple: want at least 2 elements, got %d", len(parts))
	}
	if err := json.Unmarshal(parts[0], &v.Timestamp); err != nil {
		return fmt.Errorf("decode value timestamp: %w", err)
	}

	v.Value = nil
	if raw := bytes.TrimSpace(parts[1]); !bytes.Equal(raw, jsonNull) {
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			v.Value = &f
		}
	}

	if len(parts) > 2 {
		var q float64
		if err := json.Unmarshal(parts[2], &q); err == nil {
			v.Quality = int(q)
		}
	}
	return nil
}

// MarshalJSON writes the triple back in provider form.
func (v RawValue) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{v.Timestamp, v.Value, v.Quality})
}

// timestampLayouts are tried in order; zone-less layouts are read in the query timezone.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses a provider timestamp, reading zone-less values in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	var firstErr error
	for _, layout := range timestampLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// NormalizeSeries extracts one station series as samples sorted by timestamp.
// Null and non-finite values are dropped; ties keep provider order. A
// well-formed series with no values yields an empty slice, not an error.
func NormalizeSeries(resp ProviderResponse, station, series string, loc *time.Location) ([]Sample, error) {
	location, ok := resp[station]
	if !ok {
		return nil, &DataShapeError{Station: station, Series: series, Field: "station"}
	}
	if location.Timeseries == nil {
		return nil, &DataShapeError{Station: station, Series: series, Field: "timeseries"}
	}
	data, ok := location.Timeseries[series]
	if !ok {
		return nil, &DataShapeError{Station: station, Series: series, Field: "series"}
	}
	if data.Values == nil {
		return nil, &DataShapeError{Station: station, Series: series, Field: "values"}
	}

	samples := make([]Sample, 0, len(data.Values))
	for _, raw := range data.Values {
		if raw.Value == nil || math.IsNaN(*raw.Value) || math.IsInf(*raw.Value, 0) {
			continue
		}
		ts, err := ParseTimestamp(raw.Timestamp, loc)
		if err != nil {
			return nil, &DataShapeError{Station: station, Series: series, Field: "timestamp", Detail: err.Error()}
		}
		samples = append(samples, Sample{Timestamp: ts, Value: *raw.Value})
	}

	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})
	return samples, nil
}
