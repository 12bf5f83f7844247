// Package oracle defines the semantic mapping capability as an injected
// interface. The oracle is an untrusted, non-deterministic black box: its
// output is never used without schema validation, and its failures are
// classified so the engine can decide between retry, batch-wide backoff,
// and immediate fallback.
package oracle

import (
	"context"
	"strings"

	"github.com/c360/pointmap/errors"
)

// Request is the assembled context for one oracle query.
type Request struct {
	PointName   string   `json:"point_name"`
	DeviceType  string   `json:"device_type"`
	Unit        string   `json:"unit,omitempty"`
	SampleValue string   `json:"sample_value,omitempty"`
	Siblings    []string `json:"siblings,omitempty"`
	Examples    []string `json:"examples,omitempty"`
	Hints       string   `json:"hints,omitempty"`
	Instruction string   `json:"instruction"`
}

// Oracle is the semantic mapping service. Implementations are expected to
// honor the context deadline; the engine always calls with a timeout.
type Oracle interface {
	Query(ctx context.Context, req Request) (string, error)
}

// Func adapts a plain function to the Oracle interface.
type Func func(ctx context.Context, req Request) (string, error)

// Query implements Oracle.
func (f Func) Query(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Retryable reports whether an oracle error is worth another attempt within
// the current mapping. Rate limiting and malformed requests are not: the
// first signals batch-wide backoff, the second a bug.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.IsRateLimited(err) || errors.IsFatal(err) {
		return false
	}
	return errors.IsTransient(err)
}

func isIdentifierChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
}

// ParseIdentifier extracts the candidate identifier from raw oracle output.
// Oracles wrap answers in prose, quotes, or code fences; the last token that
// looks like an underscore-delimited identifier wins. Undersegmented
// candidates such as PUMP_raw are still returned: the schema validator is
// the arbiter of segment count, and its violations drive the reflection
// retry.
func ParseIdentifier(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.WrapInvalid(errors.ErrOracleEmptyResponse, "oracle", "ParseIdentifier", "empty output")
	}

	fields := strings.FieldsFunc(trimmed, func(r rune) bool {
		return !isIdentifierChar(r)
	})
	for i := len(fields) - 1; i >= 0; i-- {
		if strings.Count(fields[i], "_") >= 1 {
			return fields[i], nil
		}
	}

	return "", errors.WrapInvalid(errors.ErrOracleEmptyResponse, "oracle", "ParseIdentifier", "no identifier in output")
}
