// Package domain models reservoir forebay elevation and upstream dam flows
// reported by the USACE Northwestern Division dataquery service.
//
// # Data Source
//
// Telemetry comes from the dataquery "getjson" endpoint, queried with a
// timezone, a lookback ("1d", "7d", "2h") and a JSON array of series IDs. The
// response is keyed by station code:
//
//	{"WAN": {"timeseries": {"WAN.Elev-Forebay.Inst.1Hour.0.CBT-REV": {"values": [
//	    ["2024-05-01T08:00:00-07:00", 571.32, 0], ...]}}}}
//
// Each value is a [timestamp, value, quality] triple. Values may be null when
// a gauge missed a reading; those are dropped during normalization.
//
// # Series IDs
//
//	<CODE>.Elev-Forebay.Inst.1Hour.0.CBT-REV   forebay elevation, ft
//	<CODE>.Flow-Out.Ave.1Hour.1Hour.CBT-REV    hourly average outflow, cfs
//	<CODE>.Flow-In.Ave.1Hour.1Hour.CBT-REV     hourly average inflow, cfs
//
// Not every dam publishes inflow.
//
// # Stations
//
// Wanapum (WAN) is the pool being forecast. The upstream roster, nearest
// first: Rock Island (RIS), Rocky Reach (RRH), Wells (WEL), Chief Joseph
// (CJO), Grand Coulee (GCL). Rock Island's outflow is the best estimate of
// water arriving at Wanapum.
//
// # Heuristics
//
// Current trend compares the latest elevation with the sample nearest one
// hour earlier:
//
//	rate > 0.05 ft/hr rising | rate < -0.05 ft/hr falling | else stable
//
// Upstream trend compares the latest outflow with the newest value at least
// six hours old:
//
//	change > 5% increasing | change < -5% decreasing | else stable
//
// Pool forecast converts net flow to a level rate over the reservoir surface
// (15,000 acres by default) and extrapolates linearly to 6 and 12 hours:
//
//	ft/hr = (inflow - outflow) cfs * 3600 / surface area ft²
//
// None of these are statistical models.
package domain
