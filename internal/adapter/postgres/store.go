// Package postgres persists daily elevation summaries and upstream flow
// observations in PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/reservoir-forecast/internal/domain"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS daily_stats (
		date TEXT PRIMARY KEY,
		min_elevation DOUBLE PRECISION NOT NULL,
		max_elevation DOUBLE PRECISION NOT NULL,
		avg_elevation DOUBLE PRECISION NOT NULL,
		min_timestamp TIMESTAMPTZ NOT NULL,
		max_timestamp TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS upstream_flows (
		id BIGSERIAL PRIMARY KEY,
		station TEXT NOT NULL,
		dam_name TEXT NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL,
		outflow_cfs DOUBLE PRECISION NOT NULL,
		inflow_cfs DOUBLE PRECISION,
		UNIQUE (station, timestamp)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_upstream_flows_timestamp ON upstream_flows (timestamp)`,
}

const (
	upsertDailyStat = `
		INSERT INTO daily_stats (date, min_elevation, max_elevation, avg_elevation, min_timestamp, max_timestamp, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (date) DO UPDATE SET
			min_elevation = EXCLUDED.min_elevation,
			max_elevation = EXCLUDED.max_elevation,
			avg_elevation = EXCLUDED.avg_elevation,
			min_timestamp = EXCLUDED.min_timestamp,
			max_timestamp = EXCLUDED.max_timestamp,
			updated_at = now()`

	upsertUpstreamFlow = `
		INSERT INTO upstream_flows (station, dam_name, timestamp, outflow_cfs, inflow_cfs)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (station, timestamp) DO UPDATE SET
			dam_name = EXCLUDED.dam_name,
			outflow_cfs = EXCLUDED.outflow_cfs,
			inflow_cfs = EXCLUDED.inflow_cfs`

	selectDailyStats = `
		SELECT date, min_elevation, max_elevation, avg_elevation, min_timestamp, max_timestamp
		FROM daily_stats`
)

// Store is the PostgreSQL-backed record store.
type Store struct {
	pool *pgxpool.Pool
	dsn  string
}

// Open connects to the database at url and applies the schema.
func Open(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("create tables: %w", err)
		}
	}
	return &Store{pool: pool, dsn: redact(pool.Config().ConnConfig)}, nil
}

// Path returns the connection target without credentials.
func (s *Store) Path() string {
	return s.dsn
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all pooled connections.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// UpsertDailyStat inserts or replaces the row for stat.Date.
func (s *Store) UpsertDailyStat(ctx context.Context, stat domain.DailyStat) error {
	return s.UpsertDailyStats(ctx, []domain.DailyStat{stat})
}

// UpsertDailyStats inserts or replaces one row per date in a single transaction.
func (s *Store) UpsertDailyStats(ctx context.Context, stats []domain.DailyStat) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, st := range stats {
			if _, err := tx.Exec(ctx, upsertDailyStat,
				st.Date,
				st.MinElevation,
				st.MaxElevation,
				st.AvgElevation,
				st.MinTimestamp.UTC(),
				st.MaxTimestamp.UTC(),
			); err != nil {
				return fmt.Errorf("upsert daily stat %s: %w", st.Date, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store daily stats: %w", err)
	}
	return nil
}

// DailyStats returns every stored row in ascending date order.
func (s *Store) DailyStats(ctx context.Context) ([]domain.DailyStat, error) {
	return s.queryDailyStats(ctx, selectDailyStats+` ORDER BY date ASC`)
}

// RecentDailyStats returns up to limit rows, newest first.
func (s *Store) RecentDailyStats(ctx context.Context, limit int) ([]domain.DailyStat, error) {
	return s.queryDailyStats(ctx, selectDailyStats+` ORDER BY date DESC LIMIT $1`, limit)
}

func (s *Store) queryDailyStats(ctx context.Context, query string, args ...any) ([]domain.DailyStat, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query daily stats: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.DailyStat, error) {
		var st domain.DailyStat
		err := row.Scan(&st.Date, &st.MinElevation, &st.MaxElevation, &st.AvgElevation, &st.MinTimestamp, &st.MaxTimestamp)
		return st, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan daily stats: %w", err)
	}
	return out, nil
}

// UpsertUpstreamFlows stores flow rows keyed by (station, timestamp). A
// revised value for an existing key replaces the stored one.
func (s *Store) UpsertUpstreamFlows(ctx context.Context, flows []domain.UpstreamFlow) error {
	if len(flows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, f := range flows {
		batch.Queue(upsertUpstreamFlow, f.Station, f.DamName, f.Timestamp.UTC(), f.Outflow, f.Inflow)
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("store upstream flows: %w", err)
	}
	return nil
}

// UpstreamFlows returns a station's stored rows at or after since, oldest first.
func (s *Store) UpstreamFlows(ctx context.Context, station string, since time.Time) ([]domain.UpstreamFlow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT station, dam_name, timestamp, outflow_cfs, inflow_cfs
		FROM upstream_flows
		WHERE station = $1 AND timestamp >= $2
		ORDER BY timestamp ASC`, station, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query upstream flows for %s: %w", station, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.UpstreamFlow, error) {
		var f domain.UpstreamFlow
		err := row.Scan(&f.Station, &f.DamName, &f.Timestamp, &f.Outflow, &f.Inflow)
		return f, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan upstream flows: %w", err)
	}
	return out, nil
}

func redact(cc *pgx.ConnConfig) string {
	return fmt.Sprintf("postgres://%s:%d/%s", cc.Host, cc.Port, cc.Database)
}
