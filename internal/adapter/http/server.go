package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/water-forecast-service/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures the forecast endpoints.
type Options struct {
	// Source backs GET /api/v1/forecast. Nil answers 404.
	Source pipeline.Extractor
	// UploadMaxBytes caps POST bodies. Zero means 10 MiB.
	UploadMaxBytes int64
	// RateLimitRPS throttles POST requests. Zero disables throttling.
	RateLimitRPS float64
	// Clock times requests for the access log. Nil means the real clock.
	Clock clockwork.Clock
}

// Server exposes health, readiness, metrics and forecast HTTP endpoints.
type Server struct {
	httpServer *http.Server
	forecaster pipeline.Forecaster
	source     pipeline.Extractor
	maxUpload  int64
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the probe, metrics and forecast routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, forecaster pipeline.Forecaster, opts Options, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	maxUpload := opts.UploadMaxBytes
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		forecaster: forecaster,
		source:     opts.Source,
		maxUpload:  maxUpload,
		logger:     logger,
	}

	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	api := func(h http.Handler) http.Handler {
		return requestLogging(logger, clock)(compression(h))
	}
	limit := newRateLimiter(opts.RateLimitRPS)

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /api/v1/forecast", api(http.HandlerFunc(s.handleForecastSource)))
	mux.Handle("POST /api/v1/forecast", api(limit.middleware(http.HandlerFunc(s.handleForecastUpload))))

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

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}
