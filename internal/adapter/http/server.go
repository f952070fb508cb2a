// Package http exposes the read surface consumed by the dashboard, plus
// health, readiness, and metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/covidmodeling/covid-data-service/internal/dataset"
	"github.com/covidmodeling/covid-data-service/internal/domain"
	"github.com/covidmodeling/covid-data-service/internal/forecast"
	"github.com/covidmodeling/covid-data-service/internal/rt"
)

// Server wires the data loader, R(t) reader, and forecast reader behind an
// HTTP mux.
type Server struct {
	httpServer *http.Server
	loader     *dataset.Loader
	rtReader   *rt.Reader
	forecasts  *forecast.Reader
	logger     *slog.Logger
}

// NewServer creates the HTTP server and its routes.
func NewServer(addr string, loader *dataset.Loader, rtReader *rt.Reader, forecasts *forecast.Reader, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		loader:    loader,
		rtReader:  rtReader,
		forecasts: forecasts,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/regions", s.handleRegions)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/data/{code}", s.handleData)
	mux.HandleFunc("GET /api/daily", s.handleDaily)
	mux.HandleFunc("GET /api/rt/{code}", s.handleRt)
	mux.HandleFunc("GET /api/forecast", s.handleForecast)

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

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.loader.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  "dataset has not been loaded yet",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleRegions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"regions": s.loader.RegionNames()})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	writeJSON(w, http.StatusOK, s.loader.Search(q))
}

// handleData serves one region's table, or every region for code "all".
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	sel := pathSelector(r.PathValue("code"))

	result, err := s.loader.Get(r.Context(), sel)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if result.Table != nil {
		writeJSON(w, http.StatusOK, result.Table)
		return
	}
	writeJSON(w, http.StatusOK, result.Tables)
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	latest, previous, err := s.loader.Daily(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*domain.CrossSection{
		"latest":   latest,
		"previous": previous,
	})
}

func (s *Server) handleRt(w http.ResponseWriter, r *http.Request) {
	sel := pathSelector(r.PathValue("code"))

	result, err := s.rtReader.Load(sel)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if result.Rows != nil {
		writeJSON(w, http.StatusOK, result.Rows)
		return
	}
	writeJSON(w, http.StatusOK, result.Groups)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	method := q.Get("method")
	if method == "" {
		method = "AutoODE"
	}
	compartment := q.Get("compartment")
	if compartment == "" {
		compartment = "confirmed"
	}
	days := 7
	if v := q.Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = n
	}
	smoothing := 0
	if v := q.Get("smoothing"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || (n != 0 && n != 7) {
			writeError(w, http.StatusBadRequest, "smoothing must be 0 or 7")
			return
		}
		smoothing = n
	}

	rows, err := s.forecasts.Get(compartment, days, method, smoothing)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// pathSelector maps a path segment to a region selector: "all", a single
// code, or a comma-separated list.
func pathSelector(code string) domain.Selector {
	switch {
	case strings.EqualFold(code, "all"):
		return domain.All()
	case strings.Contains(code, ","):
		return domain.Many(strings.Split(code, ",")...)
	default:
		return domain.One(code)
	}
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrStaleUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
