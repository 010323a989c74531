// Package storage opens the configured record store backend.
package storage

import (
	"context"
	"time"

	"github.com/couchcryptid/reservoir-forecast/internal/adapter/postgres"
	"github.com/couchcryptid/reservoir-forecast/internal/adapter/sqlite"
	"github.com/couchcryptid/reservoir-forecast/internal/config"
	"github.com/couchcryptid/reservoir-forecast/internal/domain"
)

// Store is the persistence surface shared by the SQLite and PostgreSQL backends.
type Store interface {
	Path() string
	Ping(ctx context.Context) error
	Close() error

	UpsertDailyStat(ctx context.Context, stat domain.DailyStat) error
	UpsertDailyStats(ctx context.Context, stats []domain.DailyStat) error
	DailyStats(ctx context.Context) ([]domain.DailyStat, error)
	RecentDailyStats(ctx context.Context, limit int) ([]domain.DailyStat, error)

	UpsertUpstreamFlows(ctx context.Context, flows []domain.UpstreamFlow) error
	UpstreamFlows(ctx context.Context, station string, since time.Time) ([]domain.UpstreamFlow, error)
}

var (
	_ Store = (*sqlite.Store)(nil)
	_ Store = (*postgres.Store)(nil)
)

// Open connects to PostgreSQL when DATABASE_URL is set, otherwise to the
// SQLite file at DATABASE_PATH.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	if cfg.DatabaseURL != "" {
		s, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	return s, nil
}
