package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/MJE43/montecarlo-pi/internal/engine"
	"github.com/MJE43/montecarlo-pi/internal/estimator"
	"github.com/MJE43/montecarlo-pi/internal/store"
	"github.com/MJE43/montecarlo-pi/internal/sweep"
)

// Options are the server limits and defaults taken from config.
type Options struct {
	MaxTries       int
	RequestTimeout time.Duration
	Generator      engine.Kind
}

func (o Options) withDefaults() Options {
	if o.MaxTries <= 0 {
		o.MaxTries = 1 << 30
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 60 * time.Second
	}
	return o
}

// Server handles HTTP requests
type Server struct {
	db           store.DB
	scanner      *sweep.Scanner
	errorHandler *ErrorHandler
	logger       *zap.Logger
	opts         Options
	startTime    time.Time
}

// NewServer creates a new API server. db may be nil, in which case nothing is recorded.
func NewServer(db store.DB, scanner *sweep.Scanner, logger *zap.Logger, opts Options) *Server {
	if scanner == nil {
		scanner = sweep.NewScanner(0, 0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("api")

	s := &Server{
		db:           db,
		scanner:      scanner,
		errorHandler: NewErrorHandler(logger),
		logger:       logger,
		opts:         opts.withDefaults(),
		startTime:    time.Now(),
	}

	logger.Info("server initialized",
		zap.Strings("estimators", estimator.IDs()),
		zap.Int("workers", scanner.Workers()),
		zap.Int("batch_size", scanner.BatchSize()),
		zap.Int("max_tries", s.opts.MaxTries),
		zap.Bool("database_enabled", db != nil),
		zap.String("engine_version", EngineVersion),
	)
	return s
}

// Routes sets up the HTTP routes with proper middleware
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.LoggingMiddleware)
	r.Use(s.MetricsMiddleware)
	r.Use(s.errorHandler.RecoveryHandler)
	r.Use(s.CORSMiddleware)

	// Health and monitoring endpoints
	r.Get("/health", s.handleHealthCheck)
	r.Get("/health/ready", s.handleReadiness)
	r.Get("/health/live", s.handleLiveness)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Streams outlive the request timeout.
		r.Get("/estimators/{id}/stream", s.handleStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.opts.RequestTimeout))

			r.Get("/estimators", s.handleListEstimators)
			r.Get("/estimators/{id}/board.png", s.handleBoard)
			r.Post("/estimate", s.handleEstimate)
			r.Post("/sweep", s.handleSweep)
			r.Post("/table", s.handleTable)
			r.Get("/runs", s.handleListRuns)
			r.Get("/runs/{id}", s.handleGetRun)
			r.Get("/sweeps/{id}", s.handleGetSweep)
		})
	})

	return r
}

// writeJSON writes a JSON response with proper headers
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

// handleInvalid writes a field error as a validation failure and anything else
// through the general error path.
func (s *Server) handleInvalid(w http.ResponseWriter, r *http.Request, err error) {
	var fe *FieldError
	if errors.As(err, &fe) {
		s.errorHandler.HandleValidationError(w, r, fe.Field, fe.Message)
		return
	}
	s.errorHandler.HandleError(w, r, err, nil)
}
