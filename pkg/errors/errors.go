// Package errors defines the sentinel errors shared by the pipeline stages and
// the serving layer, and maps them to HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidInput marks a malformed or empty corpus record. The record is
	// skipped; the build continues.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks an unknown term, document or entity. Query paths
	// resolve it to an empty result.
	ErrNotFound = errors.New("not found")
	// ErrComputation marks a stage that could not produce its artifact
	// (bad dimensions, failed factorisation, no convergence).
	ErrComputation = errors.New("computation failed")
	// ErrConsistency marks artifacts that reference documents or entities
	// missing from another artifact of the same snapshot.
	ErrConsistency = errors.New("snapshot inconsistent")
	// ErrNoSnapshot is returned when no snapshot has been published yet.
	ErrNoSnapshot = errors.New("no snapshot published")
	ErrInternal   = errors.New("internal error")
	ErrTimeout    = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Computationf wraps ErrComputation with a formatted message.
func Computationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrComputation, fmt.Sprintf(format, args...))
}

// Consistencyf wraps ErrConsistency with a formatted message.
func Consistencyf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConsistency, fmt.Sprintf(format, args...))
}

// InvalidInputf wraps ErrInvalidInput with a formatted message.
func InvalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoSnapshot), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
