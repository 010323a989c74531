package http

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/couchcryptid/reservoir-forecast/internal/domain"
	"github.com/couchcryptid/reservoir-forecast/internal/records"
)

const (
	defaultHistoryHours = 24
	maxHistoryHours     = int(domain.HistoryWindow / time.Hour)
	recordsTimeout      = 5 * time.Second
)

// ReportSource returns the most recent report, if one has been built.
type ReportSource interface {
	Latest() (domain.Report, bool)
}

// RecordsSummarizer builds the stored-records view.
type RecordsSummarizer interface {
	Summary(ctx context.Context) (records.Summary, error)
}

// Server exposes health, readiness, metrics and the reservoir JSON API.
type Server struct {
	httpServer *http.Server
	reports    ReportSource
	records    RecordsSummarizer
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and /api routes.
// API responses are JSON unless the request sets format=msgpack.
// A nil summarizer makes /api/records unavailable.
func NewServer(addr string, ready sharedobs.ReadinessChecker, reports ReportSource, summarizer RecordsSummarizer, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		reports: reports,
		records: summarizer,
		clock:   clockwork.NewRealClock(),
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/current", s.withReport(s.handleCurrent))
	mux.HandleFunc("GET /api/forecast", s.withReport(s.handleForecast))
	mux.HandleFunc("GET /api/upstream", s.withReport(s.handleUpstream))
	mux.HandleFunc("GET /api/history", s.withReport(s.handleHistory))
	mux.HandleFunc("GET /api/records", s.handleRecords)

	return s
}

// SetClock replaces the clock used for the history window. Intended for tests.
func (s *Server) SetClock(clock clockwork.Clock) {
	s.clock = clock
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type reportHandler func(w http.ResponseWriter, r *http.Request, report domain.Report)

// withReport answers 503 until the first report exists.
func (s *Server) withReport(next reportHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, ok := s.reports.Latest()
		if !ok {
			writeError(w, http.StatusServiceUnavailable, "no report available yet")
			return
		}
		next(w, r, report)
	}
}

type currentResponse struct {
	Station     string                  `json:"station"`
	Current     domain.CurrentCondition `json:"current"`
	GeneratedAt time.Time               `json:"generatedAt"`
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request, report domain.Report) {
	writeResponse(w, r, http.StatusOK, currentResponse{
		Station:     report.Station,
		Current:     report.Current,
		GeneratedAt: report.GeneratedAt,
	})
}

type forecastResponse struct {
	Station     string                `json:"station"`
	Prediction  domain.PredictionData `json:"prediction"`
	FlowBalance domain.FlowBalance    `json:"flowBalance"`
	GeneratedAt time.Time             `json:"generatedAt"`
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request, report domain.Report) {
	writeResponse(w, r, http.StatusOK, forecastResponse{
		Station:     report.Station,
		Prediction:  report.Prediction,
		FlowBalance: report.FlowBalance,
		GeneratedAt: report.GeneratedAt,
	})
}

type upstreamResponse struct {
	Upstream    []domain.DamReading `json:"upstream"`
	GeneratedAt time.Time           `json:"generatedAt"`
}

func (s *Server) handleUpstream(w http.ResponseWriter, r *http.Request, report domain.Report) {
	writeResponse(w, r, http.StatusOK, upstreamResponse{
		Upstream:    report.Upstream,
		GeneratedAt: report.GeneratedAt,
	})
}

type historyResponse struct {
	Station string          `json:"station"`
	Hours   int             `json:"hours"`
	History []domain.Sample `json:"history"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, report domain.Report) {
	hours := defaultHistoryHours
	if raw := r.URL.Query().Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryHours {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("hours must be an integer between 1 and %d", maxHistoryHours))
			return
		}
		hours = n
	}

	cutoff := s.clock.Now().Add(-time.Duration(hours) * time.Hour)
	history := make([]domain.Sample, 0, len(report.History))
	for _, sample := range report.History {
		if sample.Timestamp.After(cutoff) {
			history = append(history, sample)
		}
	}

	writeResponse(w, r, http.StatusOK, historyResponse{
		Station: report.Station,
		Hours:   hours,
		History: history,
	})
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		writeError(w, http.StatusServiceUnavailable, "records are not configured")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), recordsTimeout)
	defer cancel()

	summary, err := s.records.Summary(ctx)
	if err != nil {
		s.logger.Error("records summary failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load records")
		return
	}
	writeResponse(w, r, http.StatusOK, summary)
}

// writeResponse encodes v as JSON, or as MessagePack when the request asks for format=msgpack.
func writeResponse(w http.ResponseWriter, r *http.Request, status int, v any) {
	if r.URL.Query().Get("format") != "msgpack" {
		sharedobs.WriteJSON(w, status, v)
		return
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	w.Header().Set("Content-Type", "application/x-msgpack")
	w.WriteHeader(status)
	w.Write(buf.Bytes()) //nolint:errcheck // best-effort response
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
