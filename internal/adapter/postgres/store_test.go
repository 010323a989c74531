//go:build postgres

package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/reservoir-forecast/internal/domain"
)

// These tests need a disposable database.
// Run with: POSTGRES_TEST_URL=postgres://... go test -tags=postgres ./internal/adapter/postgres/ -v -count=1

func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("POSTGRES_TEST_URL")
	if url == "" {
		t.Skip("POSTGRES_TEST_URL not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = s.pool.Exec(ctx, "TRUNCATE daily_stats, upstream_flows")
		s.Close()
	})
	_, err = s.pool.Exec(ctx, "TRUNCATE daily_stats, upstream_flows")
	require.NoError(t, err)
	return s
}

// timesEqual compares instants regardless of the zone they were read back in.
var timesEqual = cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })

func stat(date string, lo, hi, avg float64) domain.DailyStat {
	day, _ := time.Parse(domain.DateLayout, date)
	return domain.DailyStat{
		Date:         date,
		MinElevation: lo,
		MaxElevation: hi,
		AvgElevation: avg,
		MinTimestamp: day.Add(4 * time.Hour),
		MaxTimestamp: day.Add(17*time.Hour + 30*time.Minute),
	}
}

func TestStore_DailyStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	want := []domain.DailyStat{
		stat("2024-05-01", 570.2, 571.9, 571.1),
		stat("2024-05-02", 569.8, 571.0, 570.4),
		stat("2024-05-03", 569.5, 570.9, 570.0),
	}
	require.NoError(t, s.UpsertDailyStats(ctx, []domain.DailyStat{want[2], want[0], want[1]}))
	require.NoError(t, s.UpsertDailyStat(ctx, want[1]))

	got, err := s.DailyStats(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got, timesEqual); diff != "" {
		t.Errorf("DailyStats mismatch (-want +got):\n%s", diff)
	}

	recent, err := s.RecentDailyStats(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "2024-05-03", recent[0].Date)
	assert.Equal(t, "2024-05-02", recent[1].Date)
}

func TestStore_UpstreamFlows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ts := time.Date(2024, 5, 1, 19, 0, 0, 0, time.UTC)
	inflow := 112000.0
	revised := 111500.0

	require.NoError(t, s.UpsertUpstreamFlows(ctx, []domain.UpstreamFlow{
		{Station: "WAN", DamName: "WANAPUM", Timestamp: ts, Outflow: 110000, Inflow: &inflow},
		{Station: "RIS", DamName: "ROCK_ISLAND", Timestamp: ts, Outflow: 118000},
	}))
	require.NoError(t, s.UpsertUpstreamFlows(ctx, []domain.UpstreamFlow{
		{Station: "WAN", DamName: "WANAPUM", Timestamp: ts, Outflow: 110200, Inflow: &revised},
	}))

	got, err := s.UpstreamFlows(ctx, "WAN", ts.Add(-time.Hour))
	require.NoError(t, err)
	want := []domain.UpstreamFlow{
		{Station: "WAN", DamName: "WANAPUM", Timestamp: ts, Outflow: 110200, Inflow: &revised},
	}
	if diff := cmp.Diff(want, got, timesEqual, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("UpstreamFlows mismatch (-want +got):\n%s", diff)
	}

	ris, err := s.UpstreamFlows(ctx, "RIS", time.Time{})
	require.NoError(t, err)
	require.Len(t, ris, 1)
	assert.Nil(t, ris[0].Inflow)
}

func TestStore_Path(t *testing.T) {
	s := openTestStore(t)
	assert.NotContains(t, s.Path(), "@")
	assert.Contains(t, s.Path(), "postgres://")
}
