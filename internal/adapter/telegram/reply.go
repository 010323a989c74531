package telegram

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/couchcryptid/reservoir-forecast/internal/domain"
	"github.com/couchcryptid/reservoir-forecast/internal/records"
)

const (
	welcomeText = "Reservoir forecast bot. Use /level for the current pool, /forecast for the outlook or /help for all commands."
	helpText    = "Available commands:\n" +
		"/level - Current pool elevation and trend\n" +
		"/forecast - Expected level change from the flow balance\n" +
		"/upstream - Releases at the upstream dams\n" +
		"/records - All-time, yearly and monthly extremes\n" +
		"/help - Show this help message"
	unknownText   = "Unknown command. Use /help to see available commands."
	noReportText  = "No data yet. The first forecast cycle has not completed, try again in a minute."
	noRecordsText = "Records are not available right now. Please try again later."
)

// ReportSource returns the most recent report, if one has been built.
type ReportSource interface {
	Latest() (domain.Report, bool)
}

// RecordsSummarizer builds the stored-records view.
type RecordsSummarizer interface {
	Summary(ctx context.Context) (records.Summary, error)
}

// Responder renders command replies from the latest report and stored records.
type Responder struct {
	reports ReportSource
	records RecordsSummarizer // nil disables /records
}

// NewResponder creates a Responder.
func NewResponder(reports ReportSource, summarizer RecordsSummarizer) *Responder {
	return &Responder{reports: reports, records: summarizer}
}

// Reply returns the text answering command, given without its leading slash.
func (r *Responder) Reply(ctx context.Context, command string) (string, error) {
	switch command {
	case "start":
		return welcomeText, nil
	case "help":
		return helpText, nil
	case "level", "forecast", "upstream":
		report, ok := r.reports.Latest()
		if !ok {
			return noReportText, nil
		}
		switch command {
		case "level":
			return formatLevel(report), nil
		case "forecast":
			return formatForecast(report), nil
		default:
			return formatUpstream(report.Upstream), nil
		}
	case "records":
		if r.records == nil {
			return noRecordsText, nil
		}
		summary, err := r.records.Summary(ctx)
		if err != nil {
			return noRecordsText, fmt.Errorf("records summary: %w", err)
		}
		return formatRecords(summary), nil
	default:
		return unknownText, nil
	}
}

func formatLevel(report domain.Report) string {
	st := domain.LookupStation(report.Station)
	c := report.Current
	return fmt.Sprintf("%s (%s) pool: %.2f ft\nTrend: %s (%.2f ft/hr)\nUpdated %s",
		st.Name, st.Code, c.CurrentLevel, c.Trend, c.RateOfChange, c.LastUpdated)
}

func formatForecast(report domain.Report) string {
	p := report.Prediction
	var b strings.Builder
	fmt.Fprintf(&b, "Forecast: %s (%s confidence)\n", p.Direction, p.Confidence)
	fmt.Fprintf(&b, "6h: %+.2f ft, 12h: %+.2f ft\n", p.EstimatedChange6h, p.EstimatedChange12h)
	fmt.Fprintf(&b, "Net flow: %s", signedFlow(report.FlowBalance.NetFlow))
	for _, reason := range p.Reasons {
		b.WriteString("\n• " + reason)
	}
	return b.String()
}

func formatUpstream(readings []domain.DamReading) string {
	if len(readings) == 0 {
		return "No upstream readings."
	}
	lines := make([]string, 0, len(readings))
	for _, d := range readings {
		lines = append(lines, formatDam(d))
	}
	return strings.Join(lines, "\n")
}

func formatDam(d domain.DamReading) string {
	if !d.Available || d.Current == nil || d.Current.Outflow == nil {
		return d.Name + ": unavailable"
	}
	line := fmt.Sprintf("%s: %s out", d.Name, domain.FormatFlow(d.Current.Outflow.Value))
	if d.Current.Inflow != nil {
		line += ", " + domain.FormatFlow(d.Current.Inflow.Value) + " in"
	}
	if d.Trend != nil {
		line += fmt.Sprintf(", %s (%+.1f%%)", d.Trend.Direction, d.Trend.PercentChange)
	}
	if lag := domain.LookupStation(d.Code).ImpactLag; lag != domain.UnknownImpactLag {
		line += ", impact " + lag
	}
	return line
}

func formatRecords(s records.Summary) string {
	var b strings.Builder
	if s.AllTime.AllTimeHigh == nil {
		b.WriteString("No daily records stored yet.")
	} else {
		fmt.Fprintf(&b, "All-time high: %.2f ft (%s)\n", s.AllTime.AllTimeHigh.Elevation, s.AllTime.AllTimeHigh.Date)
		fmt.Fprintf(&b, "All-time low: %.2f ft (%s)", s.AllTime.AllTimeLow.Elevation, s.AllTime.AllTimeLow.Date)
	}
	if s.Yearly != nil {
		b.WriteString("\n" + formatPeriod("Past year", *s.Yearly))
	}
	if s.Monthly != nil {
		b.WriteString("\n" + formatPeriod("This month", *s.Monthly))
	}
	return b.String()
}

func formatPeriod(label string, p domain.PeriodStats) string {
	return fmt.Sprintf("%s: high %.2f ft (%s), low %.2f ft (%s), avg %.2f ft over %d days",
		label, p.High, p.HighDate, p.Low, p.LowDate, p.Avg, p.Days)
}

func signedFlow(cfs float64) string {
	sign := "+"
	if cfs < 0 {
		sign = "-"
	}
	return sign + domain.FormatFlow(math.Abs(cfs))
}
