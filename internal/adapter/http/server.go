package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/weather-forecast-etl/internal/domain"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// ForecastReader serves stored rain windows and summaries.
type ForecastReader interface {
	ListRainForecasts(ctx context.Context, city string, from time.Time) ([]domain.DailyRainForecast, error)
	Summary(ctx context.Context, city string, date time.Time) (domain.WeatherSummary, error)
	SummariesForDate(ctx context.Context, date time.Time) ([]domain.WeatherSummary, error)
}

// Server exposes health, readiness, metrics and the read-only forecast API.
type Server struct {
	httpServer *http.Server
	reader     ForecastReader
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and
// /api/v1 routes.
func NewServer(addr string, ready ReadinessChecker, reader ForecastReader, clk clockwork.Clock, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		reader: reader,
		clock:  clk,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/v1/rain-forecasts", s.handleRainForecasts)
	mux.HandleFunc("GET /api/v1/summaries", s.handleSummaries)

	return s
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

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// handleRainForecasts lists rain windows from ?from= (default today),
// optionally for a single ?city=.
func (s *Server) handleRainForecasts(w http.ResponseWriter, r *http.Request) {
	from, ok := s.dateParam(w, r, "from")
	if !ok {
		return
	}
	forecasts, err := s.reader.ListRainForecasts(r.Context(), r.URL.Query().Get("city"), from)
	if err != nil {
		s.internalError(w, "list rain forecasts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"forecasts": forecasts})
}

// handleSummaries returns the summaries for ?date= (default today). With
// ?city= it returns that city's summary or 404.
func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	date, ok := s.dateParam(w, r, "date")
	if !ok {
		return
	}

	city := r.URL.Query().Get("city")
	if city == "" {
		summaries, err := s.reader.SummariesForDate(r.Context(), date)
		if err != nil {
			s.internalError(w, "list summaries", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"summaries": summaries})
		return
	}

	summary, err := s.reader.Summary(r.Context(), city, date)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no summary for " + city + " on " + date.Format(time.DateOnly)})
		return
	}
	if err != nil {
		s.internalError(w, "get summary", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) dateParam(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return domain.StartOfDay(s.clock.Now()), true
	}
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + name + ": want YYYY-MM-DD"})
		return time.Time{}, false
	}
	return d, true
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error("api request failed", "op", op, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
