// Package errors provides standardized error handling for the point mapping
// engine. It classifies failures into transient, invalid, and fatal classes,
// defines the sentinel errors of the mapping pipeline (oracle transport,
// rate limiting, malformed requests, format violations, cache corruption),
// and offers helpers for consistent wrapping across components.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or data
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop the current path
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Oracle errors
	ErrOracleTransport        = errors.New("oracle transport failure")
	ErrOracleTimeout          = errors.New("oracle request timeout")
	ErrOracleRateLimited      = errors.New("oracle rate limited")
	ErrOracleMalformedRequest = errors.New("oracle request malformed")
	ErrOracleEmptyResponse    = errors.New("oracle returned empty response")
	ErrOracleUnavailable      = errors.New("oracle unavailable")

	// Schema and format errors
	ErrFormatInvalid      = errors.New("identifier failed schema validation")
	ErrUnknownDeviceType  = errors.New("unknown device type")
	ErrUnknownMeasurement = errors.New("unknown measurement type")

	// Memory store errors
	ErrRecordNotFound   = errors.New("mapping record not found")
	ErrStoreUnavailable = errors.New("memory store unavailable")
	ErrBelowThreshold   = errors.New("no mapping above confidence threshold")
	ErrStoreClosed      = errors.New("memory store closed")

	// Cache errors
	ErrCacheCorrupted = errors.New("cache entry corrupted")
	ErrCacheDisabled  = errors.New("cache disabled")
	ErrCacheMiss      = errors.New("cache miss")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")

	// Retry errors
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsTransient checks if an error is transient and should be retried
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	if errors.Is(err, ErrOracleTransport) ||
		errors.Is(err, ErrOracleTimeout) ||
		errors.Is(err, ErrOracleUnavailable) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"timeout",
		"connection",
		"network",
		"temporary",
		"unavailable",
		"502",
		"503",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsFatal checks if an error is fatal for the current mapping path and
// should short-circuit straight to the fallback ladder
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	return errors.Is(err, ErrOracleMalformedRequest) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingConfig) ||
		errors.Is(err, ErrStoreClosed)
}

// IsInvalid checks if an error is due to invalid input or data
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	return errors.Is(err, ErrFormatInvalid) ||
		errors.Is(err, ErrCacheCorrupted) ||
		errors.Is(err, ErrOracleEmptyResponse)
}

// IsRateLimited reports whether an error signals oracle rate limiting.
// Rate limiting is not retried within the current attempt; the batch
// runner observes it and backs off batch-wide.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrOracleRateLimited)
}

// Classify returns the error class for an error
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient
	}

	if IsFatal(err) {
		return ErrorFatal
	}
	if IsInvalid(err) {
		return ErrorInvalid
	}

	// Default to transient for unknown errors to allow retry
	return ErrorTransient
}

// newClassified creates a new classified error
// This is an internal helper - use WrapTransient(), WrapFatal(), or WrapInvalid() instead.
func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorTransient, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrappedErr, component, method, wrappedErr.Error())
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}
