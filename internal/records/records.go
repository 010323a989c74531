// Package records summarizes stored daily elevation statistics into
// all-time, yearly and monthly extremes.
package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/reservoir-forecast/internal/domain"
)

// DefaultRecentDays is how many daily rows a summary lists.
const DefaultRecentDays = 7

// Store reads stored daily rows.
type Store interface {
	DailyStats(ctx context.Context) ([]domain.DailyStat, error)
	RecentDailyStats(ctx context.Context, limit int) ([]domain.DailyStat, error)
}

// Summary is the records view. Yearly and Monthly are nil when their window holds no rows.
type Summary struct {
	AllTime     domain.AllTimeRecords `json:"all_time"`
	Yearly      *domain.PeriodStats   `json:"yearly,omitempty"`
	Monthly     *domain.PeriodStats   `json:"monthly,omitempty"`
	Recent      []domain.DailyStat    `json:"recent"` // newest first
	GeneratedAt time.Time             `json:"generated_at"`
}

// Service builds record summaries from the store.
type Service struct {
	store      Store
	loc        *time.Location
	recentDays int
	clock      clockwork.Clock
}

// NewService creates a Service whose calendar windows are evaluated in loc.
func NewService(store Store, loc *time.Location, recentDays int) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if recentDays <= 0 {
		recentDays = DefaultRecentDays
	}
	return &Service{
		store:      store,
		loc:        loc,
		recentDays: recentDays,
		clock:      clockwork.NewRealClock(),
	}
}

// SetClock replaces the clock that anchors the yearly and monthly windows. Intended for tests.
func (s *Service) SetClock(clock clockwork.Clock) {
	s.clock = clock
}

// Summary reads all stored rows and reduces them.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	rows, err := s.store.DailyStats(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("load daily stats: %w", err)
	}
	recent, err := s.store.RecentDailyStats(ctx, s.recentDays)
	if err != nil {
		return Summary{}, fmt.Errorf("load recent daily stats: %w", err)
	}

	now := s.clock.Now()
	out := Summary{
		AllTime:     domain.AllTime(rows),
		Recent:      recent,
		GeneratedAt: now,
	}

	from, to := domain.YearlyWindow(now, s.loc)
	if out.Yearly, err = period("year", domain.RowsBetween(rows, from, to)); err != nil {
		return Summary{}, err
	}
	from, to = domain.MonthlyWindow(now, s.loc)
	if out.Monthly, err = period("month", domain.RowsBetween(rows, from, to)); err != nil {
		return Summary{}, err
	}
	return out, nil
}

func period(window string, rows []domain.DailyStat) (*domain.PeriodStats, error) {
	stats, err := domain.SummarizePeriod(window, rows)
	if errors.Is(err, domain.ErrEmptyWindow) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
