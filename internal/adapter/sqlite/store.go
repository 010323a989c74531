// Package sqlite persists daily elevation summaries and upstream flow
// observations in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/couchcryptid/reservoir-forecast/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS daily_stats (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date TEXT NOT NULL UNIQUE,
	min_elevation REAL NOT NULL,
	max_elevation REAL NOT NULL,
	avg_elevation REAL NOT NULL,
	min_timestamp TEXT NOT NULL,
	max_timestamp TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS upstream_flows (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	station TEXT NOT NULL,
	dam_name TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	outflow_cfs REAL NOT NULL,
	inflow_cfs REAL,
	UNIQUE(station, timestamp)
);
CREATE INDEX IF NOT EXISTS idx_upstream_flows_timestamp ON upstream_flows(timestamp);`

// timeLayout is fixed-width UTC so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is the SQLite-backed record store.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates the database directory if needed, opens the database at path
// and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertDailyStat inserts or replaces the row for stat.Date.
func (s *Store) UpsertDailyStat(ctx context.Context, stat domain.DailyStat) error {
	return s.UpsertDailyStats(ctx, []domain.DailyStat{stat})
}

// UpsertDailyStats inserts or replaces one row per date in a single transaction.
func (s *Store) UpsertDailyStats(ctx context.Context, stats []domain.DailyStat) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO daily_stats(date, min_elevation, max_elevation, avg_elevation, min_timestamp, max_timestamp, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			min_elevation=excluded.min_elevation,
			max_elevation=excluded.max_elevation,
			avg_elevation=excluded.avg_elevation,
			min_timestamp=excluded.min_timestamp,
			max_timestamp=excluded.max_timestamp,
			updated_at=excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare daily stat upsert: %w", err)
	}
	defer stmt.Close()

	now := formatTime(time.Now())
	for _, st := range stats {
		if _, err := stmt.ExecContext(ctx,
			st.Date,
			st.MinElevation,
			st.MaxElevation,
			st.AvgElevation,
			formatTime(st.MinTimestamp),
			formatTime(st.MaxTimestamp),
			now,
		); err != nil {
			return fmt.Errorf("upsert daily stat %s: %w", st.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit daily stats: %w", err)
	}
	return nil
}

// DailyStats returns every stored row in ascending date order.
func (s *Store) DailyStats(ctx context.Context) ([]domain.DailyStat, error) {
	return s.queryDailyStats(ctx, `
		SELECT date, min_elevation, max_elevation, avg_elevation, min_timestamp, max_timestamp
		FROM daily_stats
		ORDER BY date ASC`)
}

// RecentDailyStats returns up to limit rows, newest first.
func (s *Store) RecentDailyStats(ctx context.Context, limit int) ([]domain.DailyStat, error) {
	return s.queryDailyStats(ctx, `
		SELECT date, min_elevation, max_elevation, avg_elevation, min_timestamp, max_timestamp
		FROM daily_stats
		ORDER BY date DESC
		LIMIT ?`, limit)
}

func (s *Store) queryDailyStats(ctx context.Context, query string, args ...any) ([]domain.DailyStat, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query daily stats: %w", err)
	}
	defer rows.Close()

	var out []domain.DailyStat
	for rows.Next() {
		var (
			st           domain.DailyStat
			minTS, maxTS string
		)
		if err := rows.Scan(&st.Date, &st.MinElevation, &st.MaxElevation, &st.AvgElevation, &minTS, &maxTS); err != nil {
			return nil, fmt.Errorf("scan daily stat: %w", err)
		}
		if st.MinTimestamp, err = parseTime(minTS); err != nil {
			return nil, err
		}
		if st.MaxTimestamp, err = parseTime(maxTS); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily stats: %w", err)
	}
	return out, nil
}

// UpsertUpstreamFlows stores flow rows keyed by (station, timestamp). A
// revised value for an existing key replaces the stored one.
func (s *Store) UpsertUpstreamFlows(ctx context.Context, flows []domain.UpstreamFlow) error {
	if len(flows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO upstream_flows(station, dam_name, timestamp, outflow_cfs, inflow_cfs)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(station, timestamp) DO UPDATE SET
			dam_name=excluded.dam_name,
			outflow_cfs=excluded.outflow_cfs,
			inflow_cfs=excluded.inflow_cfs`)
	if err != nil {
		return fmt.Errorf("prepare upstream flow upsert: %w", err)
	}
	defer stmt.Close()

	for _, f := range flows {
		var inflow sql.NullFloat64
		if f.Inflow != nil {
			inflow = sql.NullFloat64{Float64: *f.Inflow, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, f.Station, f.DamName, formatTime(f.Timestamp), f.Outflow, inflow); err != nil {
			return fmt.Errorf("upsert upstream flow %s at %s: %w", f.Station, f.Timestamp.Format(time.RFC3339), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upstream flows: %w", err)
	}
	return nil
}

// UpstreamFlows returns a station's stored rows at or after since, oldest first.
func (s *Store) UpstreamFlows(ctx context.Context, station string, since time.Time) ([]domain.UpstreamFlow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT station, dam_name, timestamp, outflow_cfs, inflow_cfs
		FROM upstream_flows
		WHERE station = ? AND timestamp >= ?
		ORDER BY timestamp ASC`, station, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("query upstream flows for %s: %w", station, err)
	}
	defer rows.Close()

	var out []domain.UpstreamFlow
	for rows.Next() {
		var (
			f      domain.UpstreamFlow
			ts     string
			inflow sql.NullFloat64
		)
		if err := rows.Scan(&f.Station, &f.DamName, &ts, &f.Outflow, &inflow); err != nil {
			return nil, fmt.Errorf("scan upstream flow: %w", err)
		}
		if f.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		if inflow.Valid {
			v := inflow.Float64
			f.Inflow = &v
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate upstream flows: %w", err)
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", s, err)
	}
	return t, nil
}
