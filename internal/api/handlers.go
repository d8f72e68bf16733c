package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MJE43/montecarlo-pi/internal/engine"
	"github.com/MJE43/montecarlo-pi/internal/estimator"
	"github.com/MJE43/montecarlo-pi/internal/store"
	"github.com/MJE43/montecarlo-pi/internal/sweep"
)

const maxPerPage = 500

// configFor fills zero geometry and generator fields from the estimator's defaults.
func (s *Server) configFor(spec estimator.Spec, cfg estimator.Config) estimator.Config {
	d := spec.Defaults
	if cfg.NeedleLength == 0 {
		cfg.NeedleLength = d.NeedleLength
	}
	if cfg.StripeWidth == 0 {
		cfg.StripeWidth = d.StripeWidth
	}
	if cfg.Stripes == 0 {
		cfg.Stripes = d.Stripes
	}
	if cfg.Width == 0 {
		cfg.Width = d.Width
	}
	if cfg.Generator == "" {
		cfg.Generator = s.opts.Generator
	}
	if cfg.Generator == "" {
		cfg.Generator = d.Generator
	}
	return cfg
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", fmt.Sprintf("invalid JSON: %v", err))
		return false
	}
	return true
}

// handleListEstimators returns the registered estimators and generators
func (s *Server) handleListEstimators(w http.ResponseWriter, r *http.Request) {
	kinds := engine.Kinds()
	generators := make([]string, len(kinds))
	for i, k := range kinds {
		generators[i] = string(k)
	}

	s.writeJSON(w, http.StatusOK, EstimatorsResponse{
		Estimators:    estimator.List(),
		Generators:    generators,
		EngineVersion: EngineVersion,
	})
}

// handleEstimate runs one estimate, in process or split across the scanner's
// workers, and records it. A degenerate tally is recorded and reported as 422.
func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := ValidateEstimateRequest(&req, s.opts.MaxTries); err != nil {
		s.handleInvalid(w, r, err)
		return
	}

	spec, _ := estimator.Lookup(req.Method)
	cfg := s.configFor(spec, req.Config)
	mode, _ := estimator.ParseMode(req.Mode)
	log := s.logger.With(
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("method", req.Method),
		zap.Int("tries", cfg.Tries),
		zap.String("seed_hash", hashSeed(strconv.FormatInt(cfg.Seed, 10))),
	)

	start := time.Now()
	var (
		res     estimator.Result
		err     error
		workers = 1
	)
	if req.Workers > 0 {
		workers = req.Workers
		mode = estimator.ModeBatch
		res, err = s.scanner.Estimate(r.Context(), sweep.Request{Method: req.Method, Config: cfg, Workers: workers})
	} else {
		res, err = estimator.Estimate(req.Method, cfg, mode)
	}
	elapsed := time.Since(start)

	degenerate := errors.Is(err, estimator.ErrDegenerateResult)
	if err != nil && !degenerate {
		recordEstimate(req.Method, string(mode), "error", 0)
		s.errorHandler.HandleError(w, r, err, map[string]any{"method": req.Method})
		return
	}

	outcome := "ok"
	if degenerate {
		outcome = "degenerate"
	}
	recordEstimate(req.Method, string(mode), outcome, res.Tries)
	log.Info("estimate_completed",
		zap.Int("hits", res.Hits),
		zap.Bool("degenerate", res.Degenerate),
		zap.Duration("duration", elapsed),
	)

	var runID string
	if s.db != nil {
		run := store.NewRun(cfg, res, mode, workers, elapsed, EngineVersion)
		if err := s.db.SaveRun(r.Context(), run); err != nil {
			s.errorHandler.HandleError(w, r, fmt.Errorf("failed to save run: %w", err), nil)
			return
		}
		runID = run.ID
	}

	if degenerate {
		eb := NewError(ErrTypeDegenerate, err.Error()).
			WithRequestID(middleware.GetReqID(r.Context())).
			WithContext("method", req.Method).
			WithContext("hits", res.Hits).
			WithContext("tries", res.Tries)
		if runID != "" {
			eb.WithContext("run_id", runID)
		}
		s.errorHandler.HandleError(w, r, eb.Build(), nil)
		return
	}

	s.writeJSON(w, http.StatusOK, EstimateResponse{
		RunID:         runID,
		Result:        res,
		Config:        cfg,
		Mode:          mode,
		Workers:       workers,
		DurationMs:    elapsed.Milliseconds(),
		EngineVersion: EngineVersion,
	})
}

// handleSweep runs a convergence sweep and records it
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	var req sweep.SweepRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := ValidateSweepRequest(&req, s.opts.MaxTries); err != nil {
		s.handleInvalid(w, r, err)
		return
	}

	spec, _ := estimator.Lookup(req.Method)
	req.Config = s.configFor(spec, req.Config)

	result, err := s.scanner.Sweep(r.Context(), req, nil)
	if err != nil {
		s.errorHandler.HandleError(w, r, err, map[string]any{
			"method":  req.Method,
			"max_exp": req.MaxExp,
		})
		return
	}
	sweepDuration.WithLabelValues(req.Method).Observe(result.Summary.Duration.Seconds())
	for _, series := range result.Series {
		for _, p := range series.Points {
			trialsTotal.WithLabelValues(req.Method).Add(float64(p.Result.Tries))
		}
	}

	s.logger.Info("sweep_completed",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("method", req.Method),
		zap.Int("series", result.Summary.Series),
		zap.Int("points", result.Summary.Points),
		zap.Int("degenerate", result.Summary.Degenerate),
		zap.Duration("duration", result.Summary.Duration),
	)

	var sweepID string
	if s.db != nil {
		rec := store.NewSweep(result, EngineVersion)
		if err := s.db.SaveSweep(r.Context(), rec); err != nil {
			s.errorHandler.HandleError(w, r, fmt.Errorf("failed to save sweep: %w", err), nil)
			return
		}
		sweepID = rec.ID
	}

	s.writeJSON(w, http.StatusOK, SweepResponse{
		SweepID:       sweepID,
		Result:        *result,
		EngineVersion: EngineVersion,
	})
}

// handleTable runs one estimate per seed 0..n-1
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	var req TableRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := ValidateTableRequest(&req, s.opts.MaxTries); err != nil {
		s.handleInvalid(w, r, err)
		return
	}

	spec, _ := estimator.Lookup(req.Method)
	cfg := s.configFor(spec, req.Config)

	rows, err := s.scanner.SeedTable(r.Context(), req.Method, cfg, sweep.Seeds(req.Seeds), nil)
	if err != nil {
		s.errorHandler.HandleError(w, r, err, map[string]any{"method": req.Method})
		return
	}
	trialsTotal.WithLabelValues(req.Method).Add(float64(cfg.Tries * len(rows)))

	s.writeJSON(w, http.StatusOK, TableResponse{Rows: rows, EngineVersion: EngineVersion})
}

func (s *Server) requireDB(w http.ResponseWriter, r *http.Request) bool {
	if s.db != nil {
		return true
	}
	s.errorHandler.HandleError(w, r, NewError(ErrTypeNotFound, "Run history is not configured").
		WithRequestID(middleware.GetReqID(r.Context())).
		Build(), nil)
	return false
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalid(name, "not an integer: %q", raw)
	}
	return v, nil
}

// handleListRuns returns recorded runs, newest first
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w, r) {
		return
	}

	page, err := queryInt(r, "page", 1)
	if err != nil {
		s.handleInvalid(w, r, err)
		return
	}
	perPage, err := queryInt(r, "per_page", 50)
	if err != nil {
		s.handleInvalid(w, r, err)
		return
	}
	if page < 1 || perPage < 1 || perPage > maxPerPage {
		s.errorHandler.HandleValidationError(w, r, "per_page",
			fmt.Sprintf("page must be >= 1 and per_page between 1 and %d", maxPerPage))
		return
	}

	list, err := s.db.ListRuns(r.Context(), store.RunsQuery{
		Method:  r.URL.Query().Get("method"),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		s.errorHandler.HandleError(w, r, err, nil)
		return
	}
	s.writeJSON(w, http.StatusOK, RunsResponse{RunsList: list, EngineVersion: EngineVersion})
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		s.errorHandler.HandleValidationError(w, r, "id", fmt.Sprintf("not a valid id: %q", id))
		return "", false
	}
	return id, true
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w, r) {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	run, err := s.db.GetRun(r.Context(), id)
	if err != nil {
		s.errorHandler.HandleError(w, r, err, map[string]any{"run_id": id})
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleGetSweep(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w, r) {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	sw, err := s.db.GetSweep(r.Context(), id)
	if err != nil {
		s.errorHandler.HandleError(w, r, err, map[string]any{"sweep_id": id})
		return
	}
	s.writeJSON(w, http.StatusOK, sw)
}
