// Command validate performs integrity checks on the reservoir database: daily
// statistic ordering, calendar continuity and stored upstream flow rows. It
// exits non-zero when any phase fails.
//
// Usage:
//
//	go run ./cmd/validate -db data/reservoir.db
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/couchcryptid/reservoir-forecast/internal/config"
	"github.com/couchcryptid/reservoir-forecast/internal/domain"
	"github.com/couchcryptid/reservoir-forecast/internal/storage"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dbPath := flag.String("db", "", "SQLite database path (defaults to DATABASE_PATH; ignored when DATABASE_URL is set)")
	flag.Parse()

	if code := run(*dbPath); code != 0 {
		os.Exit(code)
	}
}

func run(dbPath string) int {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		return 1
	}
	if dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if cfg.DatabaseURL == "" {
		if _, err := os.Stat(cfg.DatabasePath); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			return 1
		}
	}

	ctx := context.Background()
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: open database: %v\n", err)
		return 1
	}
	defer store.Close()

	// ── Load stored rows ──
	fmt.Println("=== Reservoir Data Integrity Validation ===")
	fmt.Println()

	stats, err := store.DailyStats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load daily stats: %v\n", err)
		return 1
	}

	stations := append([]string{cfg.TargetStation}, cfg.UpstreamStations...)
	flows := make(map[string][]domain.UpstreamFlow, len(stations))
	flowCount := 0
	for _, code := range stations {
		rows, err := store.UpstreamFlows(ctx, code, time.Time{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load upstream flows: %v\n", err)
			return 1
		}
		flows[code] = rows
		flowCount += len(rows)
	}

	// ── Run validation phases ──
	phases := []*phase{
		validateDailyOrdering(stats),
		validateContinuity(stats),
		validateUpstreamFlows(stations, flows),
	}

	// ── Report results ──
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d daily stats, %d upstream flows across %d stations\n", len(stats), flowCount, len(stations))

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phases ──

// validateDailyOrdering checks max ≥ avg ≥ min and that extremes carry timestamps.
func validateDailyOrdering(stats []domain.DailyStat) *phase {
	p := &phase{name: "Phase 1: Daily stat ordering"}
	for _, s := range stats {
		if _, err := time.Parse(domain.DateLayout, s.Date); err != nil {
			p.errorf("%s: invalid date", s.Date)
			continue
		}
		if s.MinElevation > s.AvgElevation || s.AvgElevation > s.MaxElevation {
			p.errorf("%s: expected min ≤ avg ≤ max, got %.3f / %.3f / %.3f",
				s.Date, s.MinElevation, s.AvgElevation, s.MaxElevation)
		}
		if s.MinTimestamp.IsZero() || s.MaxTimestamp.IsZero() {
			p.errorf("%s: missing extreme timestamp", s.Date)
		}
	}
	return p
}

// validateContinuity reports calendar days missing between the first and last row.
func validateContinuity(stats []domain.DailyStat) *phase {
	p := &phase{name: "Phase 2: Daily stat continuity"}
	var prev time.Time
	for _, s := range stats {
		day, err := time.Parse(domain.DateLayout, s.Date)
		if err != nil {
			continue
		}
		if !prev.IsZero() {
			if gap := int(day.Sub(prev).Hours()/24) - 1; gap > 0 {
				p.errorf("%d day(s) missing between %s and %s", gap, prev.Format(domain.DateLayout), s.Date)
			}
		}
		prev = day
	}
	return p
}

// validateUpstreamFlows checks stored flows are non-negative and attributed to
// the right dam, reporting stations in roster order.
func validateUpstreamFlows(stations []string, flows map[string][]domain.UpstreamFlow) *phase {
	p := &phase{name: "Phase 3: Upstream flow rows"}
	for _, code := range stations {
		want := domain.DamName(domain.LookupStation(code))
		for _, f := range flows[code] {
			at := f.Timestamp.Format(time.RFC3339)
			if f.Outflow < 0 {
				p.errorf("%s %s: negative outflow %.0f", code, at, f.Outflow)
			}
			if f.Inflow != nil && *f.Inflow < 0 {
				p.errorf("%s %s: negative inflow %.0f", code, at, *f.Inflow)
			}
			if f.DamName != want {
				p.errorf("%s %s: dam name %q, want %q", code, at, f.DamName, want)
			}
		}
	}
	return p
}
