package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/reservoir-forecast/internal/domain"
	"github.com/couchcryptid/reservoir-forecast/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Extractor fetches the raw telemetry for one cycle.
type Extractor interface {
	Extract(ctx context.Context) (domain.Snapshot, error)
}

// Transformer derives a report from a snapshot.
type Transformer interface {
	Transform(ctx context.Context, snap domain.Snapshot) (domain.Report, error)
}

// Publisher delivers a finished report downstream.
type Publisher interface {
	Publish(ctx context.Context, report domain.Report) error
}

// Pipeline orchestrates the poll-transform-publish loop and holds the latest report.
type Pipeline struct {
	extractor    Extractor
	transformer  Transformer
	publisher    Publisher // nil when publishing is disabled
	logger       *slog.Logger
	metrics      *observability.Metrics
	clock        clockwork.Clock
	pollInterval time.Duration
	latest       atomic.Pointer[domain.Report]
}

// New creates a Pipeline with the given stages and observability. Pass a nil
// publisher to keep reports in memory only.
func New(e Extractor, t Transformer, pub Publisher, pollInterval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		extractor:    e,
		transformer:  t,
		publisher:    pub,
		logger:       logger,
		metrics:      metrics,
		clock:        clockwork.NewRealClock(),
		pollInterval: pollInterval,
	}
}

// SetClock replaces the clock used for poll and backoff waits. Intended for tests.
func (p *Pipeline) SetClock(clock clockwork.Clock) {
	p.clock = clock
}

// CheckReadiness returns nil once the pipeline has produced a report.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.latest.Load() == nil {
		return errors.New("pipeline has not produced a report yet")
	}
	return nil
}

// Latest returns the most recent report, if any.
func (p *Pipeline) Latest() (domain.Report, bool) {
	r := p.latest.Load()
	if r == nil {
		return domain.Report{}, false
	}
	return *r, true
}

// Run polls until the context is cancelled. Failed cycles are retried with
// exponential backoff; successful cycles wait the poll interval.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "poll_interval", p.pollInterval)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	backoff := initialBackoff
	for {
		wait := p.pollInterval
		if err := p.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			wait = backoff
			backoff = retry.NextBackoff(backoff, maxBackoff)
		} else {
			backoff = initialBackoff
		}

		if !sleepWithContext(ctx, p.clock, wait) {
			break
		}
	}

	p.logger.Info("pipeline stopping", "reason", ctx.Err())
	return nil
}

// RunOnce performs a single extract-transform-load cycle.
func (p *Pipeline) RunOnce(ctx context.Context) error {
	start := time.Now()
	cycleID := uuid.NewString()
	logger := p.logger.With("cycle_id", cycleID)
	p.metrics.PollCycles.Inc()

	snap, err := p.extractor.Extract(ctx)
	if err != nil {
		return p.fail(ctx, logger, "extract", err)
	}

	report, err := p.transformer.Transform(ctx, snap)
	if err != nil {
		return p.fail(ctx, logger, "transform", err)
	}
	report.ID = cycleID

	p.latest.Store(&report)
	p.metrics.CurrentElevation.Set(report.Current.CurrentLevel)
	p.metrics.NetFlow.Set(report.FlowBalance.NetFlow)
	p.metrics.ForecastRate.Set(report.FlowBalance.RatePerHour)

	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, report); err != nil {
			return p.fail(ctx, logger, "load", err)
		}
		p.metrics.ReportsPublished.Inc()
	}

	p.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	logger.Info("cycle complete",
		"elevation", report.Current.CurrentLevel,
		"trend", report.Current.Trend,
		"forecast", report.Prediction.Direction,
		"confidence", report.Prediction.Confidence,
		"duration", time.Since(start),
	)
	return nil
}

func (p *Pipeline) fail(ctx context.Context, logger *slog.Logger, stage string, err error) error {
	if ctx.Err() != nil {
		return err
	}
	p.metrics.CycleFailures.WithLabelValues(stage).Inc()
	if errors.Is(err, domain.ErrDataShape) {
		p.metrics.DataShapeErrors.Inc()
	}
	logger.Error("cycle failed", "stage", stage, "error", err)
	return err
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
