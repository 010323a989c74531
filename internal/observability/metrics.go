package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "reservoir"

// Metrics holds the Prometheus counters, histograms, and gauges for the forecast service.
type Metrics struct {
	PollCycles      prometheus.Counter
	CycleFailures   *prometheus.CounterVec // labels: stage={extract,transform,load}
	DataShapeErrors prometheus.Counter
	CycleDuration   prometheus.Histogram
	PipelineRunning prometheus.Gauge

	// Telemetry provider metrics.
	TelemetryRequests *prometheus.CounterVec // labels: outcome={success,error}
	TelemetryCache    *prometheus.CounterVec // labels: result={hit,miss}
	TelemetryDuration prometheus.Histogram

	// Recorder and publisher metrics.
	DailyStatsRecorded prometheus.Counter
	UpstreamFlowRows   prometheus.Counter
	ReportsPublished   prometheus.Counter

	// Latest derived state.
	CurrentElevation prometheus.Gauge
	NetFlow          prometheus.Gauge
	ForecastRate     prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PollCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Total snapshot poll cycles started.",
		}),
		CycleFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycle_failures_total",
			Help:      "Failed poll cycles by stage.",
		}, []string{"stage"}),
		DataShapeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_shape_errors_total",
			Help:      "Provider payloads missing a required field.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete extract-transform-load cycle.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		TelemetryRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_requests_total",
			Help:      "USACE data query requests by outcome.",
		}, []string{"outcome"}),
		TelemetryCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_cache_total",
			Help:      "Telemetry cache lookups by result.",
		}, []string{"result"}),
		TelemetryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "telemetry_request_duration_seconds",
			Help:      "USACE data query duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		DailyStatsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "daily_stats_recorded_total",
			Help:      "Daily elevation summaries upserted.",
		}),
		UpstreamFlowRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_flow_rows_total",
			Help:      "Upstream flow rows upserted.",
		}),
		ReportsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_published_total",
			Help:      "Reports written to the report topic.",
		}),
		CurrentElevation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_elevation_feet",
			Help:      "Latest forebay elevation.",
		}),
		NetFlow: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "net_flow_cfs",
			Help:      "Latest inflow minus outflow at the target dam.",
		}),
		ForecastRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "forecast_rate_feet_per_hour",
			Help:      "Latest flow-balance level change rate.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PollCycles,
		m.CycleFailures,
		m.DataShapeErrors,
		m.CycleDuration,
		m.PipelineRunning,
		m.TelemetryRequests,
		m.TelemetryCache,
		m.TelemetryDuration,
		m.DailyStatsRecorded,
		m.UpstreamFlowRows,
		m.ReportsPublished,
		m.CurrentElevation,
		m.NetFlow,
		m.ForecastRate,
	}
}
