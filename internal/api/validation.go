package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/MJE43/montecarlo-pi/internal/engine"
	"github.com/MJE43/montecarlo-pi/internal/estimator"
	"github.com/MJE43/montecarlo-pi/internal/sweep"
)

// Worker, series, seed and body stripe limits are the validate tags on the request types.
const (
	maxBoardTries  = 20_000
	maxStreamTries = 100_000
	maxStripes     = estimator.MaxStripes
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FieldError is a validation failure on one request field
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func fieldMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("must have at least %s entries", e.Param())
		}
		return fmt.Sprintf("must be at least %s, got %v", e.Param(), e.Value())
	case "max":
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("must have at most %s entries", e.Param())
		}
		return fmt.Sprintf("must be at most %s, got %v", e.Param(), e.Value())
	default:
		return fmt.Sprintf("failed validation: %s", e.Tag())
	}
}

// checkStruct applies the validate tags and reports the first failing field.
func checkStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return err
	}
	e := errs[0]
	_, field, _ := strings.Cut(e.Namespace(), ".")
	return invalid(field, "%s", fieldMessage(e))
}

func validateMethod(method string) error {
	if method == "" {
		return invalid("method", "method is required")
	}
	if _, ok := estimator.Lookup(method); !ok {
		return fmt.Errorf("%w: %q", estimator.ErrUnknownEstimator, method)
	}
	return nil
}

func validateTries(field string, tries, limit int) error {
	if tries < 0 {
		return invalid(field, "must not be negative, got %d", tries)
	}
	if tries > limit {
		return invalid(field, "must be at most %d, got %d", limit, tries)
	}
	return nil
}

func validateGenerator(kind engine.Kind) error {
	if kind == "" {
		return nil
	}
	if _, err := engine.ParseKind(string(kind)); err != nil {
		return invalid("config.generator", "%v", err)
	}
	return nil
}

// ValidateEstimateRequest checks a single-estimate request against the tries limit
func ValidateEstimateRequest(req *EstimateRequest, maxTries int) error {
	if err := validateMethod(req.Method); err != nil {
		return err
	}
	if err := validateTries("config.tries", req.Config.Tries, maxTries); err != nil {
		return err
	}
	if err := validateGenerator(req.Config.Generator); err != nil {
		return err
	}
	if _, err := estimator.ParseMode(req.Mode); err != nil {
		return invalid("mode", "%v", err)
	}
	return checkStruct(req)
}

// ValidateSweepRequest checks the exponent range, series count and largest trial count
func ValidateSweepRequest(req *sweep.SweepRequest, maxTries int) error {
	if err := validateMethod(req.Method); err != nil {
		return err
	}
	if err := validateGenerator(req.Config.Generator); err != nil {
		return err
	}
	if err := checkStruct(req); err != nil {
		return err
	}
	if req.Mode != "" {
		if _, err := estimator.ParseMode(string(req.Mode)); err != nil {
			return invalid("mode", "%v", err)
		}
	}

	tries, err := req.Tries()
	if err != nil {
		return invalid("max_exp", "%v", err)
	}
	if last := tries[len(tries)-1]; last > maxTries {
		return invalid("max_exp", "largest sweep point has %d trials, limit is %d", last, maxTries)
	}
	return nil
}

// ValidateTableRequest checks a seed table request
func ValidateTableRequest(req *TableRequest, maxTries int) error {
	if err := validateMethod(req.Method); err != nil {
		return err
	}
	if err := validateTries("config.tries", req.Config.Tries, maxTries); err != nil {
		return err
	}
	if err := validateGenerator(req.Config.Generator); err != nil {
		return err
	}
	return checkStruct(req)
}
