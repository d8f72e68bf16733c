package api

import (
	"fmt"

	"github.com/MJE43/montecarlo-pi/internal/estimator"
	"github.com/MJE43/montecarlo-pi/internal/store"
	"github.com/MJE43/montecarlo-pi/internal/sweep"
)

// EngineError represents a structured error response with context
type EngineError struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// Error implements the error interface
func (e EngineError) Error() string {
	return e.Message
}

const (
	// Input validation errors
	ErrTypeValidation      = "validation_error"
	ErrTypeInvalidGeometry = "invalid_geometry"

	// Estimation errors
	ErrTypeDegenerate        = "degenerate_result"
	ErrTypeEstimatorNotFound = "estimator_not_found"

	// Lookup and system errors
	ErrTypeNotFound = "not_found"
	ErrTypeTimeout  = "timeout"
	ErrTypeInternal = "internal_error"
)

// ErrorCategory groups error types for monitoring
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryEstimation ErrorCategory = "estimation"
	CategoryLookup     ErrorCategory = "lookup"
	CategorySystem     ErrorCategory = "system"
	CategoryTimeout    ErrorCategory = "timeout"
)

// GetErrorCategory returns the category for an error type
func GetErrorCategory(errType string) ErrorCategory {
	switch errType {
	case ErrTypeValidation, ErrTypeInvalidGeometry:
		return CategoryValidation
	case ErrTypeDegenerate, ErrTypeEstimatorNotFound:
		return CategoryEstimation
	case ErrTypeNotFound:
		return CategoryLookup
	case ErrTypeTimeout:
		return CategoryTimeout
	default:
		return CategorySystem
	}
}

// VersionInfo contains engine version information
type VersionInfo struct {
	EngineVersion string `json:"engine_version"`
	GitCommit     string `json:"git_commit,omitempty"`
	BuildTime     string `json:"build_time,omitempty"`
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", v.EngineVersion, v.GitCommit, v.BuildTime)
}

// EstimatorsResponse lists the registered estimators
type EstimatorsResponse struct {
	Estimators    []estimator.Spec `json:"estimators"`
	Generators    []string         `json:"generators"`
	EngineVersion string           `json:"engine_version"`
}

// EstimateRequest asks for a single estimate. Zero geometry and generator
// fields take the estimator's defaults; tries and seed are used as given.
type EstimateRequest struct {
	Method  string           `json:"method" validate:"required"`
	Config  estimator.Config `json:"config"`
	Mode    string           `json:"mode,omitempty"`
	Workers int              `json:"workers,omitempty" validate:"min=0,max=1024"`
}

// EstimateResponse is a completed estimate and the id it was recorded under
type EstimateResponse struct {
	RunID         string           `json:"run_id,omitempty"`
	Result        estimator.Result `json:"result"`
	Config        estimator.Config `json:"config"`
	Mode          estimator.Mode   `json:"mode"`
	Workers       int              `json:"workers"`
	DurationMs    int64            `json:"duration_ms"`
	EngineVersion string           `json:"engine_version"`
}

// SweepResponse is a completed sweep and the id it was recorded under
type SweepResponse struct {
	SweepID       string            `json:"sweep_id,omitempty"`
	Result        sweep.SweepResult `json:"result"`
	EngineVersion string            `json:"engine_version"`
}

// TableRequest asks for one estimate per seed 0..Seeds-1
type TableRequest struct {
	Method string           `json:"method" validate:"required"`
	Config estimator.Config `json:"config"`
	Seeds  int              `json:"seeds" validate:"min=1,max=10000"`
}

// TableResponse carries the per-seed rows
type TableResponse struct {
	Rows          []sweep.Row `json:"rows"`
	EngineVersion string      `json:"engine_version"`
}

// RunsResponse is a page of recorded runs
type RunsResponse struct {
	*store.RunsList
	EngineVersion string `json:"engine_version"`
}

// StreamBoard is the first message of a trial stream
type StreamBoard struct {
	Type   string           `json:"type"`
	Spec   estimator.Spec   `json:"spec"`
	Config estimator.Config `json:"config"`
	Board  estimator.Board  `json:"board"`
}

// StreamTrial is sent once per trial with the running tally. The closing
// "done" message carries the final tally and no trial.
type StreamTrial struct {
	Type   string           `json:"type"`
	Trial  *estimator.Trial `json:"trial,omitempty"`
	Result estimator.Result `json:"result"`
}
