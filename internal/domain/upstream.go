package domain

import (
	"strings"
	"time"
)

// UpstreamFlow is one recorded flow observation for a station.
type UpstreamFlow struct {
	Station   string    `json:"station"`
	DamName   string    `json:"dam_name"`
	Timestamp time.Time `json:"timestamp"`
	Outflow   float64   `json:"outflow_cfs"`
	Inflow    *float64  `json:"inflow_cfs"` // nil when no inflow shares the outflow's timestamp
}

// LatestUpstreamFlow pairs a station's most recent outflow with the inflow
// reported at exactly the same timestamp. ok is false when the station has no
// outflow values; a malformed series is an error.
func LatestUpstreamFlow(resp ProviderResponse, st Station, loc *time.Location) (flow UpstreamFlow, ok bool, err error) {
	location, found := resp[st.Code]
	if !found || location.Timeseries == nil {
		return UpstreamFlow{}, false, nil
	}

	outflow, err := optionalSeries(resp, st.Code, OutflowSeries(st.Code), loc)
	if err != nil {
		return UpstreamFlow{}, false, err
	}
	if len(outflow) == 0 {
		return UpstreamFlow{}, false, nil
	}
	inflow, err := optionalSeries(resp, st.Code, InflowSeries(st.Code), loc)
	if err != nil {
		return UpstreamFlow{}, false, err
	}

	latest := outflow[len(outflow)-1]
	flow = UpstreamFlow{
		Station:   st.Code,
		DamName:   DamName(st),
		Timestamp: latest.Timestamp,
		Outflow:   latest.Value,
	}
	for i := len(inflow) - 1; i >= 0; i-- {
		if inflow[i].Timestamp.Equal(latest.Timestamp) {
			v := inflow[i].Value
			flow.Inflow = &v
			break
		}
	}
	return flow, true, nil
}

// DamName is the stored form of a station name, e.g. "ROCK_ISLAND".
func DamName(st Station) string {
	return strings.ToUpper(strings.ReplaceAll(st.Name, " ", "_"))
}
