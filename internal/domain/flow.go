package domain

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

const (
	// SqFtPerAcre converts surface area from acres.
	SqFtPerAcre = 43560

	// ShortHorizonHours and LongHorizonHours are the forecast offsets.
	ShortHorizonHours = 6
	LongHorizonHours  = 12
)

// Confidence grades how complete the flow inputs were.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// FlowBalance is the net flow at the target dam and the level change it implies.
type FlowBalance struct {
	Inflow      float64    `json:"inflow"`
	Outflow     float64    `json:"outflow"`
	NetFlow     float64    `json:"netFlow"`     // cfs
	RatePerHour float64    `json:"ratePerHour"` // ft/hr
	Prediction  Trend      `json:"prediction"`
	Confidence  Confidence `json:"confidence"`
}

// PredictionData is the forecast handed to presentation.
type PredictionData struct {
	Direction          Trend      `json:"direction"`
	Confidence         Confidence `json:"confidence"`
	EstimatedChange6h  float64    `json:"estimatedChange6h"`
	EstimatedChange12h float64    `json:"estimatedChange12h"`
	Reasons            []string   `json:"reasons"`
}

// ForecastConfig holds the immutable inputs of the flow-balance heuristic.
type ForecastConfig struct {
	Target             string   // dam whose pool is forecast
	Upstream           []string // roster codes, nearest first
	SurfaceAreaSqFt    float64
	Threshold          float64 // ft/hr beyond which the pool counts as moving
	SignificantNetFlow float64 // cfs beyond which the balance is narrated as lopsided
}

// DefaultForecastConfig forecasts Wanapum from its upstream dams.
func DefaultForecastConfig() ForecastConfig {
	return ForecastConfig{
		Target:             "WAN",
		Upstream:           []string{"RIS", "RRH", "WEL", "CJO", "GCL"},
		SurfaceAreaSqFt:    15000 * SqFtPerAcre,
		Threshold:          0.05,
		SignificantNetFlow: 1000,
	}
}

// Forecaster turns a roster of dam readings into a linear level forecast.
// It holds no mutable state and is safe for concurrent use.
type Forecaster struct {
	cfg ForecastConfig
}

// NewForecaster creates a Forecaster.
func NewForecaster(cfg ForecastConfig) *Forecaster {
	return &Forecaster{cfg: cfg}
}

// Config returns the forecaster's configuration.
func (f *Forecaster) Config() ForecastConfig {
	return f.cfg
}

// Stations returns the target followed by the upstream roster.
func (f *Forecaster) Stations() []Station {
	out := make([]Station, 0, len(f.cfg.Upstream)+1)
	out = append(out, LookupStation(f.cfg.Target))
	for _, code := range f.cfg.Upstream {
		out = append(out, LookupStation(code))
	}
	return out
}

// FlowBalance computes the balance at the target dam.
//
// Inflow is the nearest upstream dam's outflow when it is available and
// reporting, else the target's own inflow, else zero. Outflow is the target's
// reported outflow or zero. An unavailable target yields a zero balance.
func (f *Forecaster) FlowBalance(readings []DamReading) FlowBalance {
	byCode := indexReadings(readings)
	target, ok := byCode[f.cfg.Target]
	if !ok || !target.Available || target.Current == nil {
		return FlowBalance{Prediction: TrendStable, Confidence: ConfidenceLow}
	}

	var inflow float64
	hasInflow := false
	if len(f.cfg.Upstream) > 0 {
		if nearest, ok := byCode[f.cfg.Upstream[0]]; ok && nearest.Available &&
			nearest.Current != nil && nearest.Current.Outflow != nil {
			inflow, hasInflow = nearest.Current.Outflow.Value, true
		}
	}
	if !hasInflow && target.Current.Inflow != nil {
		inflow, hasInflow = target.Current.Inflow.Value, true
	}

	var outflow float64
	hasOutflow := target.Current.Outflow != nil
	if hasOutflow {
		outflow = target.Current.Outflow.Value
	}

	net := inflow - outflow
	rate := net * 3600 / f.cfg.SurfaceAreaSqFt

	confidence := ConfidenceLow
	switch {
	case hasInflow && hasOutflow:
		confidence = ConfidenceHigh
	case hasOutflow:
		confidence = ConfidenceMedium
	}

	return FlowBalance{
		Inflow:      inflow,
		Outflow:     outflow,
		NetFlow:     net,
		RatePerHour: rate,
		Prediction:  classifyRate(rate, f.cfg.Threshold),
		Confidence:  confidence,
	}
}

// Predict builds the forecast: direction and confidence from the flow
// balance, straight-line level changes at the fixed horizons, and the
// narrative reasons with the primary upstream driver first.
func (f *Forecaster) Predict(readings []DamReading) PredictionData {
	balance := f.FlowBalance(readings)

	reasons := make([]string, 0, 2)
	if primary, ok := f.PrimaryDriver(readings); ok {
		reasons = append(reasons, fmt.Sprintf("%s Dam releases %s", primary.Name, releaseWord(primary.Trend.Direction)))
	}
	reasons = append(reasons, f.balanceReason(readings, balance.NetFlow))

	return PredictionData{
		Direction:          balance.Prediction,
		Confidence:         balance.Confidence,
		EstimatedChange6h:  balance.RatePerHour * ShortHorizonHours,
		EstimatedChange12h: balance.RatePerHour * LongHorizonHours,
		Reasons:            reasons,
	}
}

// PrimaryDriver is the first upstream dam, nearest first, that is available
// and reports a trend.
func (f *Forecaster) PrimaryDriver(readings []DamReading) (DamReading, bool) {
	byCode := indexReadings(readings)
	for _, code := range f.cfg.Upstream {
		r, ok := byCode[code]
		if ok && r.Available && r.Trend != nil {
			return r, true
		}
	}
	return DamReading{}, false
}

func (f *Forecaster) balanceReason(readings []DamReading, net float64) string {
	name := LookupStation(f.cfg.Target).Name
	if r, ok := indexReadings(readings)[f.cfg.Target]; ok && r.Name != "" {
		name = r.Name
	}

	switch {
	case net > f.cfg.SignificantNetFlow:
		return fmt.Sprintf("%s inflow exceeds outflow by %s cfs", name, humanize.Comma(int64(math.Round(net))))
	case net < -f.cfg.SignificantNetFlow:
		return fmt.Sprintf("%s outflow exceeds inflow by %s cfs", name, humanize.Comma(int64(math.Round(-net))))
	default:
		return "Flow balance approximately neutral"
	}
}

func releaseWord(d FlowDirection) string {
	switch d {
	case FlowIncreasing:
		return "increasing"
	case FlowDecreasing:
		return "decreasing"
	default:
		return "steady"
	}
}

func indexReadings(readings []DamReading) map[string]DamReading {
	m := make(map[string]DamReading, len(readings))
	for _, r := range readings {
		if _, dup := m[r.Code]; !dup {
			m[r.Code] = r
		}
	}
	return m
}

// FormatFlow renders a flow for display: "12.3 kcfs" from 1000 cfs up, "850 cfs" below.
func FormatFlow(cfs float64) string {
	if cfs >= 1000 {
		return fmt.Sprintf("%.1f kcfs", cfs/1000)
	}
	return humanize.Comma(int64(math.Round(cfs))) + " cfs"
}
