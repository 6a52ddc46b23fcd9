package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/brojonat/dustwatch/service/config"
	"github.com/brojonat/dustwatch/service/detector"
	"github.com/brojonat/dustwatch/service/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Analyzer classifies a transaction by signature.
// *detector.Analyzer is the production implementation.
type Analyzer interface {
	Analyze(ctx context.Context, signature string) (*detector.AnalysisResult, error)
}

// Server represents the HTTP server for the detection API.
type Server struct {
	addr     string
	cfg      *config.Config
	analyzer Analyzer
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu     sync.Mutex
	server *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, cfg *config.Config, analyzer Analyzer, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:     addr,
		cfg:      cfg,
		analyzer: analyzer,
		metrics:  m,
		logger:   logger,
	}
}

// Handler builds the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	production := s.cfg != nil && s.cfg.IsProduction()

	mux.Handle("POST /api/analyze", metrics.HTTPMetricsMiddleware(s.metrics, "/api/analyze")(
		handleAnalyze(s.analyzer, production, s.logger),
	))

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(rootMessage))
	})

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	var handler http.Handler = mux
	handler = requestLogging(s.logger)(handler)
	handler = corsMiddleware(handler)
	return handler
}

// Start starts the HTTP server. It blocks until the server fails or is shut down.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", "addr", s.addr, "metrics_enabled", s.metrics != nil)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}
