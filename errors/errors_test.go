package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			result := test.class.String()
			if result != test.expected {
				t.Errorf("expected %s, got %s", test.expected, result)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"oracle transport", ErrOracleTransport, true},
		{"oracle timeout", ErrOracleTimeout, true},
		{"store unavailable", ErrStoreUnavailable, true},
		{"context deadline", context.DeadlineExceeded, true},
		{"wrapped transport", fmt.Errorf("query: %w", ErrOracleTransport), true},
		{"message pattern 503", errors.New("upstream returned 503"), true},
		{"message pattern timeout", errors.New("request timeout after 30s"), true},
		{"format invalid", ErrFormatInvalid, false},
		{"malformed request", ErrOracleMalformedRequest, false},
		{"plain error", errors.New("segment count"), false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsTransient(test.err); got != test.expected {
				t.Errorf("IsTransient(%v) = %v, want %v", test.err, got, test.expected)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"malformed request", ErrOracleMalformedRequest, true},
		{"invalid config", ErrInvalidConfig, true},
		{"store closed", ErrStoreClosed, true},
		{"wrapped malformed", fmt.Errorf("call: %w", ErrOracleMalformedRequest), true},
		{"oracle transport", ErrOracleTransport, false},
		{"format invalid", ErrFormatInvalid, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsFatal(test.err); got != test.expected {
				t.Errorf("IsFatal(%v) = %v, want %v", test.err, got, test.expected)
			}
		})
	}
}

func TestIsInvalid(t *testing.T) {
	if !IsInvalid(ErrFormatInvalid) {
		t.Error("ErrFormatInvalid should be invalid")
	}
	if !IsInvalid(ErrCacheCorrupted) {
		t.Error("ErrCacheCorrupted should be invalid")
	}
	if IsInvalid(ErrOracleTransport) {
		t.Error("ErrOracleTransport should not be invalid")
	}
	if IsInvalid(nil) {
		t.Error("nil should not be invalid")
	}
}

func TestIsRateLimited(t *testing.T) {
	if !IsRateLimited(ErrOracleRateLimited) {
		t.Error("ErrOracleRateLimited should report rate limited")
	}
	if !IsRateLimited(fmt.Errorf("attempt 2: %w", ErrOracleRateLimited)) {
		t.Error("wrapped rate limit error should report rate limited")
	}
	if IsRateLimited(ErrOracleTransport) {
		t.Error("transport error should not report rate limited")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"nil defaults transient", nil, ErrorTransient},
		{"malformed request fatal", ErrOracleMalformedRequest, ErrorFatal},
		{"format invalid", ErrFormatInvalid, ErrorInvalid},
		{"transport transient", ErrOracleTransport, ErrorTransient},
		{"unknown defaults transient", errors.New("mystery"), ErrorTransient},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Classify(test.err); got != test.expected {
				t.Errorf("Classify(%v) = %v, want %v", test.err, got, test.expected)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	base := errors.New("connection refused")
	wrapped := Wrap(base, "oracle", "Query", "http request")

	if wrapped == nil {
		t.Fatal("expected non-nil wrapped error")
	}
	if !strings.Contains(wrapped.Error(), "oracle.Query: http request failed") {
		t.Errorf("unexpected message: %s", wrapped.Error())
	}
	if !errors.Is(wrapped, base) {
		t.Error("wrapped error should unwrap to base")
	}
	if Wrap(nil, "a", "b", "c") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestWrapClassified(t *testing.T) {
	base := errors.New("boom")

	transient := WrapTransient(base, "engine", "MapPoint", "oracle call")
	if !IsTransient(transient) {
		t.Error("WrapTransient result should be transient")
	}

	fatal := WrapFatal(base, "engine", "MapPoint", "oracle call")
	if !IsFatal(fatal) {
		t.Error("WrapFatal result should be fatal")
	}

	invalid := WrapInvalid(base, "engine", "MapPoint", "validation")
	if !IsInvalid(invalid) {
		t.Error("WrapInvalid result should be invalid")
	}

	var ce *ClassifiedError
	if !errors.As(transient, &ce) {
		t.Fatal("expected ClassifiedError")
	}
	if ce.Component != "engine" || ce.Operation != "MapPoint" {
		t.Errorf("unexpected context: %s.%s", ce.Component, ce.Operation)
	}
	if !errors.Is(transient, base) {
		t.Error("classified error should unwrap to base")
	}
}
