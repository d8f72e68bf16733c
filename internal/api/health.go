package api

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/MJE43/montecarlo-pi/internal/engine"
	"github.com/MJE43/montecarlo-pi/internal/estimator"
)

const pingTimeout = 2 * time.Second

// HealthStatus orders from healthy to unhealthy; the worst component wins.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

func (h HealthStatus) rank() int {
	switch h {
	case HealthStatusUnhealthy:
		return 2
	case HealthStatusDegraded:
		return 1
	default:
		return 0
	}
}

// HealthCheckResponse is the /health body
type HealthCheckResponse struct {
	Status    HealthStatus           `json:"status"`
	Version   VersionInfo            `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]HealthCheck `json:"checks"`
	Runtime   RuntimeInfo            `json:"runtime"`
	RequestID string                 `json:"request_id,omitempty"`

	// EngineVersion duplicates Version.EngineVersion for probes that read a flat field.
	EngineVersion string `json:"engine_version"`
}

// HealthCheck is the outcome of one component check
type HealthCheck struct {
	Status  HealthStatus `json:"status"`
	Message string       `json:"message"`
	TookMs  float64      `json:"took_ms"`
}

// RuntimeInfo describes the process serving estimates.
type RuntimeInfo struct {
	GoVersion  string `json:"go_version"`
	Goroutines int    `json:"goroutines"`
	GOMAXPROCS int    `json:"gomaxprocs"`
	Workers    int    `json:"workers"`
	BatchSize  int    `json:"batch_size"`
	HeapBytes  uint64 `json:"heap_bytes"`
	NumGC      uint32 `json:"num_gc"`
}

// schemaVersioner is implemented by stores that track applied migrations.
type schemaVersioner interface {
	SchemaVersion(ctx context.Context) (int64, error)
}

type componentCheck func(ctx context.Context) (HealthStatus, string)

// components maps check names to their checks.
func (s *Server) components() map[string]componentCheck {
	return map[string]componentCheck{
		"estimators": s.checkEstimators,
		"database":   s.checkDatabase,
		"scanner":    s.checkScanner,
	}
}

func runCheck(ctx context.Context, check componentCheck) HealthCheck {
	start := time.Now()
	status, msg := check(ctx)
	return HealthCheck{
		Status:  status,
		Message: msg,
		TookMs:  float64(time.Since(start).Microseconds()) / 1000,
	}
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	overall := HealthStatusHealthy
	checks := make(map[string]HealthCheck)
	for name, check := range s.components() {
		result := runCheck(r.Context(), check)
		checks[name] = result
		if result.Status.rank() > overall.rank() {
			overall = result.Status
		}
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	status := http.StatusOK
	if overall == HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	s.logger.Debug("health_check",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("status", string(overall)),
	)

	s.writeJSON(w, status, HealthCheckResponse{
		Status:  overall,
		Version: GetVersionInfo(),
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
		Checks:  checks,
		Runtime: RuntimeInfo{
			GoVersion:  runtime.Version(),
			Goroutines: runtime.NumGoroutine(),
			GOMAXPROCS: runtime.GOMAXPROCS(0),
			Workers:    s.scanner.Workers(),
			BatchSize:  s.scanner.BatchSize(),
			HeapBytes:  mem.HeapAlloc,
			NumGC:      mem.NumGC,
		},
		RequestID:     middleware.GetReqID(r.Context()),
		EngineVersion: EngineVersion,
	})
}

// handleReadiness fails when no estimator is registered or the store is unreachable.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ready, reason := true, "ready"
	for _, check := range []componentCheck{s.checkEstimators, s.checkDatabase} {
		if status, msg := check(r.Context()); status == HealthStatusUnhealthy {
			ready, reason = false, msg
			break
		}
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, map[string]any{
		"ready":          ready,
		"message":        reason,
		"engine_version": EngineVersion,
		"request_id":     middleware.GetReqID(r.Context()),
	})
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"alive":          true,
		"uptime":         time.Since(s.startTime).Round(time.Second).String(),
		"engine_version": EngineVersion,
		"request_id":     middleware.GetReqID(r.Context()),
	})
}

func (s *Server) checkEstimators(context.Context) (HealthStatus, string) {
	ids := estimator.IDs()
	if len(ids) == 0 {
		return HealthStatusUnhealthy, "no estimators registered"
	}
	return HealthStatusHealthy, fmt.Sprintf("%v with generators %v", ids, engine.Kinds())
}

// checkDatabase pings the store. Running without a store is degraded, not down.
func (s *Server) checkDatabase(ctx context.Context) (HealthStatus, string) {
	if s.db == nil {
		return HealthStatusDegraded, "no run history configured, runs are not recorded"
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.db.Ping(ctx); err != nil {
		return HealthStatusUnhealthy, fmt.Sprintf("run history unreachable: %v", err)
	}
	versioned, ok := s.db.(schemaVersioner)
	if !ok {
		return HealthStatusHealthy, "run history reachable"
	}
	version, err := versioned.SchemaVersion(ctx)
	if err != nil {
		return HealthStatusDegraded, fmt.Sprintf("run history reachable, schema version unknown: %v", err)
	}
	return HealthStatusHealthy, fmt.Sprintf("run history reachable (schema v%d)", version)
}

func (s *Server) checkScanner(context.Context) (HealthStatus, string) {
	if s.scanner.Workers() < 1 {
		return HealthStatusUnhealthy, "scanner has no workers"
	}
	return HealthStatusHealthy, fmt.Sprintf("%d workers, %d trials per batch", s.scanner.Workers(), s.scanner.BatchSize())
}
