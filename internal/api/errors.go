package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/MJE43/montecarlo-pi/internal/engine"
	"github.com/MJE43/montecarlo-pi/internal/estimator"
	"github.com/MJE43/montecarlo-pi/internal/store"
	"github.com/MJE43/montecarlo-pi/internal/sweep"
)

// ErrorBuilder helps construct structured errors with context
type ErrorBuilder struct {
	errType   string
	message   string
	context   map[string]any
	requestID string
}

// NewError creates a new error builder
func NewError(errType, message string) *ErrorBuilder {
	return &ErrorBuilder{
		errType: errType,
		message: message,
		context: make(map[string]any),
	}
}

// WithContext adds context information to the error
func (eb *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	eb.context[key] = value
	return eb
}

func (eb *ErrorBuilder) WithRequestID(requestID string) *ErrorBuilder {
	eb.requestID = requestID
	return eb
}

// WithCause records the underlying error message under "cause"
func (eb *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	if err != nil {
		eb.context["cause"] = err.Error()
	}
	return eb
}

// Build creates the final EngineError
func (eb *ErrorBuilder) Build() EngineError {
	ctx := eb.context
	if len(ctx) == 0 {
		ctx = nil
	}
	return EngineError{
		Type:      eb.errType,
		Message:   eb.message,
		Context:   ctx,
		RequestID: eb.requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// classify maps a domain error onto an API error type.
func classify(err error) string {
	switch {
	case errors.Is(err, estimator.ErrInvalidGeometry):
		return ErrTypeInvalidGeometry
	case errors.Is(err, estimator.ErrInvalidTries),
		errors.Is(err, engine.ErrUnknownGenerator),
		errors.Is(err, sweep.ErrInvalidRange),
		errors.Is(err, sweep.ErrInvalidSeries),
		errors.Is(err, sweep.ErrNoSeeds):
		return ErrTypeValidation
	case errors.Is(err, estimator.ErrUnknownEstimator):
		return ErrTypeEstimatorNotFound
	case errors.Is(err, estimator.ErrDegenerateResult):
		return ErrTypeDegenerate
	case errors.Is(err, store.ErrNotFound):
		return ErrTypeNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTypeTimeout
	default:
		return ErrTypeInternal
	}
}

// ErrorHandler provides centralized error handling with logging
type ErrorHandler struct {
	logger *zap.Logger
}

func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleError classifies err, logs it and writes the error response.
// Context entries are attached to the response body.
func (eh *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error, details map[string]any) {
	var engineErr EngineError
	if !errors.As(err, &engineErr) {
		errType := classify(err)
		message := err.Error()
		if errType == ErrTypeInternal {
			message = "Internal server error"
		}
		eb := NewError(errType, message).
			WithRequestID(middleware.GetReqID(r.Context()))
		if errType == ErrTypeInternal {
			eb.WithCause(err)
		}
		for k, v := range details {
			eb.WithContext(k, v)
		}
		engineErr = eb.Build()
	}

	status := statusFor(engineErr.Type)
	eh.logError(r, engineErr, status)
	eh.writeErrorResponse(w, status, engineErr)
}

// HandleValidationError handles validation-specific errors
func (eh *ErrorHandler) HandleValidationError(w http.ResponseWriter, r *http.Request, field, message string) {
	engineErr := NewError(ErrTypeValidation, fmt.Sprintf("Validation failed: %s", message)).
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("field", field).
		Build()

	eh.logError(r, engineErr, http.StatusBadRequest)
	eh.writeErrorResponse(w, http.StatusBadRequest, engineErr)
}

func statusFor(errType string) int {
	switch errType {
	case ErrTypeValidation, ErrTypeInvalidGeometry:
		return http.StatusBadRequest
	case ErrTypeEstimatorNotFound, ErrTypeNotFound:
		return http.StatusNotFound
	case ErrTypeDegenerate:
		return http.StatusUnprocessableEntity
	case ErrTypeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (eh *ErrorHandler) logError(r *http.Request, engineErr EngineError, status int) {
	category := GetErrorCategory(engineErr.Type)
	fields := []zap.Field{
		zap.String("type", engineErr.Type),
		zap.String("category", string(category)),
		zap.Int("status", status),
		zap.String("request_id", engineErr.RequestID),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Any("context", engineErr.Context),
	}

	if status >= http.StatusInternalServerError {
		eh.logger.Error(engineErr.Message, fields...)
	} else {
		eh.logger.Warn(engineErr.Message, fields...)
	}
}

// writeErrorResponse writes the error response as JSON
func (eh *ErrorHandler) writeErrorResponse(w http.ResponseWriter, status int, engineErr EngineError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.Header().Set("X-Error-Type", engineErr.Type)
	w.Header().Set("X-Error-Category", string(GetErrorCategory(engineErr.Type)))
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(engineErr); err != nil {
		eh.logger.Error("failed to encode error response", zap.Error(err))
	}
}

// RecoveryHandler turns panics into internal_error responses
func (eh *ErrorHandler) RecoveryHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				requestID := middleware.GetReqID(r.Context())

				eh.logger.Error("panic recovered",
					zap.String("request_id", requestID),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Any("panic", rvr),
					zap.Stack("stack"),
				)

				engineErr := NewError(ErrTypeInternal, "Internal server error").
					WithRequestID(requestID).
					WithContext("path", r.URL.Path).
					Build()
				eh.writeErrorResponse(w, http.StatusInternalServerError, engineErr)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
