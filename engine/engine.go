// Package engine implements the mapping orchestrator: a per-point state
// machine (memory check, oracle call, validate, reflect, fallback, record)
// and a concurrent batch runner on top of it. The orchestrator's core
// invariant is total coverage: every point yields a schema-valid identifier
// no matter how the oracle misbehaves.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/c360/pointmap/config"
	"github.com/c360/pointmap/errors"
	"github.com/c360/pointmap/groupcache"
	"github.com/c360/pointmap/memory"
	"github.com/c360/pointmap/metric"
	"github.com/c360/pointmap/oracle"
	"github.com/c360/pointmap/pattern"
	"github.com/c360/pointmap/pkg/retry"
	"github.com/c360/pointmap/quality"
	"github.com/c360/pointmap/schema"
	"github.com/c360/pointmap/strategy"
	"github.com/c360/pointmap/types"
)

// Engine orchestrates point mapping. It owns the grouping cache and the
// strategy selector; the memory store is injected so callers control its
// lifecycle and can query it independently.
type Engine struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *memory.Store
	oracle   oracle.Oracle
	selector *strategy.Selector
	assessor *quality.Assessor
	cache    *groupcache.Store
	metrics  *engineMetrics

	// Drain wait after all points of a batch are submitted.
	stopTimeout time.Duration
}

// batchState is the shared state of one batch run: the rate-limit backoff
// signal and the patterns learned from the oracle sample. Each MapBatch
// call gets its own, so concurrent batches on one Engine cannot stomp each
// other's backoff or learned patterns. The analysis is built once before
// the workers start and is read-only from then on.
type batchState struct {
	rateLimited atomic.Bool
	analysis    pattern.Analysis
}

func newBatchState(analysis pattern.Analysis) *batchState {
	if analysis == nil {
		analysis = make(pattern.Analysis)
	}
	return &batchState{analysis: analysis}
}

// Option configures the engine.
type Option func(*Engine) error

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger != nil {
			e.logger = logger
		}
		return nil
	}
}

// WithMetricsRegistry enables Prometheus metrics.
func WithMetricsRegistry(registry *metric.MetricsRegistry) Option {
	return func(e *Engine) error {
		if registry == nil {
			return nil
		}
		m, err := newEngineMetrics(registry)
		if err != nil {
			return err
		}
		e.metrics = m
		return nil
	}
}

// New creates a mapping engine. The context bounds the lifetime of the
// grouping cache's background sweeper.
func New(ctx context.Context, cfg *config.Config, store *memory.Store, orc oracle.Oracle, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine.New: config invalid: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("engine.New: %w: memory store is required", errors.ErrMissingConfig)
	}
	if orc == nil {
		return nil, fmt.Errorf("engine.New: %w: oracle is required", errors.ErrMissingConfig)
	}

	ttl := cfg.CacheTTL
	if !cfg.CacheEnabled {
		ttl = 0
	}
	cache, err := groupcache.NewStore(ctx, ttl, groupcache.WithPersistence(cfg.CachePath))
	if err != nil {
		return nil, fmt.Errorf("engine.New: cache init failed: %w", err)
	}

	e := &Engine{
		cfg:         cfg,
		logger:      slog.Default(),
		store:       store,
		oracle:      orc,
		selector:    strategy.NewSelector(),
		assessor:    quality.NewAssessor(cfg.Quality),
		cache:       cache,
		stopTimeout: batchStopTimeout,
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			cache.Close()
			return nil, err
		}
	}

	return e, nil
}

// Close releases engine-owned resources. The memory store is left open for
// its owner to close.
func (e *Engine) Close() error {
	return e.cache.Close()
}

// MapPoint maps one point to a schema-valid identifier. It never returns an
// invalid or empty identifier; oracle failures degrade through the strategy
// ladder down to minimal construction.
func (e *Engine) MapPoint(ctx context.Context, point types.Point, group []string) Outcome {
	start := time.Now()
	outcome := e.mapPoint(ctx, point, group, true, newBatchState(nil))
	e.observe(outcome, time.Since(start))
	return outcome
}

// mapPoint runs the strategy ladder. When oracleEligible is false (sampling
// cap reached or rate limited) the oracle strategy is skipped entirely.
func (e *Engine) mapPoint(ctx context.Context, point types.Point, group []string, oracleEligible bool, bs *batchState) Outcome {
	if !point.Valid() {
		out := e.minimalOutcome(point)
		out.Warning = "point has no raw name"
		e.record(ctx, point, &out, nil)
		return out
	}

	var invalidCandidates []string

	// Memory check always runs first: a hit above the confidence threshold
	// short-circuits the whole ladder regardless of strategy ordering.
	if out, ok := e.tryMemory(ctx, point); ok {
		e.record(ctx, point, &out, invalidCandidates)
		return out
	}
	e.selector.Record(point.DeviceType, strategy.MemoryLookup, false)

	for _, id := range e.selector.Select(point.DeviceType) {
		switch id {
		case strategy.MemoryLookup:
			// Already checked above

		case strategy.OracleCall:
			if !oracleEligible || bs.rateLimited.Load() {
				continue
			}
			out, rejected, ok := e.tryOracle(ctx, point, group, bs)
			invalidCandidates = append(invalidCandidates, rejected...)
			if ok {
				e.record(ctx, point, &out, invalidCandidates)
				return out
			}
			e.selector.Record(point.DeviceType, strategy.OracleCall, false)

		case strategy.PatternFallback:
			if out, ok := e.tryPattern(point, bs); ok {
				e.record(ctx, point, &out, invalidCandidates)
				return out
			}
			e.selector.Record(point.DeviceType, strategy.PatternFallback, false)

		case strategy.MinimalConstruction:
			out := e.minimalOutcome(point)
			e.record(ctx, point, &out, invalidCandidates)
			return out
		}
	}

	// Unreachable while the selector pins minimal construction last, but
	// totality must not depend on that.
	out := e.minimalOutcome(point)
	e.record(ctx, point, &out, invalidCandidates)
	return out
}

// tryMemory checks the persistent store for a prior mapping above the
// confidence threshold.
func (e *Engine) tryMemory(ctx context.Context, point types.Point) (Outcome, bool) {
	match, err := e.store.BestMapping(ctx, point.RawName, point.DeviceType, e.cfg.ConfidenceThreshold)
	if err != nil {
		e.logger.Warn("memory lookup failed",
			"point", point.RawName,
			"error", err)
		return Outcome{}, false
	}
	if match == nil || !schema.Validate(match.Identifier, point.DeviceType) {
		return Outcome{}, false
	}

	e.logger.Debug("memory hit",
		"point", point.RawName,
		"identifier", match.Identifier,
		"confidence", match.Confidence)

	return Outcome{
		Point:      point,
		Identifier: match.Identifier,
		Method:     types.MethodOracleCached,
		Confidence: match.Confidence,
	}, true
}

// tryOracle runs the oracle with retry, validates the candidate, and on
// validation failure reflects once with the violations before giving up.
// Returns any schema-invalid candidates so RECORD can learn from them.
func (e *Engine) tryOracle(ctx context.Context, point types.Point, group []string, bs *batchState) (Outcome, []string, bool) {
	examples := e.memoryExamples(ctx, point)
	req := oracle.BuildRequest(point, group, examples, bs.analysis)

	var rejected []string
	attempts := 0
	reflected := false

	for {
		candidate, err := e.queryOracle(ctx, req, &attempts)
		if err != nil {
			if errors.IsRateLimited(err) {
				bs.rateLimited.Store(true)
				e.logger.Warn("oracle rate limited, disabling oracle for remainder of batch")
			} else {
				e.logger.Debug("oracle call failed",
					"point", point.RawName,
					"error", err)
			}
			return Outcome{}, rejected, false
		}

		violations := schema.Check(candidate, point.DeviceType)
		if len(violations) == 0 {
			return Outcome{
				Point:      point,
				Identifier: candidate,
				Method:     types.MethodOracle,
				Confidence: 1.0,
				Reflected:  reflected,
				Attempts:   attempts,
			}, rejected, true
		}

		rejected = append(rejected, candidate)

		if reflected || !e.cfg.ReflectionEnabled {
			e.logger.Debug("oracle candidate rejected",
				"point", point.RawName,
				"candidate", candidate,
				"violations", len(violations))
			return Outcome{Attempts: attempts}, rejected, false
		}

		req = oracle.BuildReflection(req, candidate, violations)
		reflected = true
	}
}

// queryOracle performs one logical oracle query with bounded backoff.
func (e *Engine) queryOracle(ctx context.Context, req oracle.Request, attempts *int) (string, error) {
	return retry.DoWithResult(ctx, retry.Oracle(e.cfg.MaxOracleRetries+1), func() (string, error) {
		*attempts++
		if e.metrics != nil {
			e.metrics.oracleCalls.Inc()
		}

		qctx, cancel := context.WithTimeout(ctx, e.cfg.OracleTimeout)
		defer cancel()

		raw, err := e.oracle.Query(qctx, req)
		if err != nil {
			if !oracle.Retryable(err) {
				return "", retry.NonRetryable(err)
			}
			return "", err
		}

		id, err := oracle.ParseIdentifier(raw)
		if err != nil {
			// Unparseable responses go through reflection, not transport retry
			return "", retry.NonRetryable(fmt.Errorf("%w: %v", errors.ErrOracleEmptyResponse, err))
		}
		return id, nil
	})
}

// tryPattern constructs an identifier from patterns learned this batch.
// It only succeeds when the analysis actually saw this device type.
func (e *Engine) tryPattern(point types.Point, bs *batchState) (Outcome, bool) {
	tokens := pattern.Extract(point.RawName)

	hint, ok := bs.analysis.MeasurementHint(point.DeviceType, tokens)
	if !ok {
		return Outcome{}, false
	}

	prefix, _ := schema.PrefixFor(point.DeviceType)
	candidate := prefix + "_raw_" + hint
	if !schema.Validate(candidate, point.DeviceType) {
		return Outcome{}, false
	}

	return Outcome{
		Point:      point,
		Identifier: candidate,
		Method:     types.MethodPattern,
		Confidence: 0.6,
	}, true
}

// minimalOutcome is the guaranteed-valid last resort: schema prefix plus
// a measurement inferred from the raw name and unit.
func (e *Engine) minimalOutcome(point types.Point) Outcome {
	prefix, _ := schema.PrefixFor(point.DeviceType)
	measurement := pattern.InferMeasurement(point.RawName, point.Unit)
	identifier := prefix + "_raw_" + measurement

	return Outcome{
		Point:      point,
		Identifier: identifier,
		Method:     types.MethodMinimal,
		Confidence: 0.3,
		Warning:    "constructed without oracle or learned patterns",
	}
}

// record is the RECORD state: it always runs, regardless of which branch
// produced the result, so memory and strategy counters observe every
// decision including the failed candidates along the way.
func (e *Engine) record(ctx context.Context, point types.Point, out *Outcome, invalidCandidates []string) {
	out.Quality = e.assess(ctx, *out)

	winner := e.methodStrategy(out.Method)
	e.selector.Record(point.DeviceType, winner, true)

	if !e.cfg.LearningEnabled || !point.Valid() {
		return
	}

	for _, candidate := range invalidCandidates {
		if err := e.store.RecordOutcome(ctx, point.RawName, point.DeviceType, candidate, false); err != nil {
			e.logger.Warn("failed to record rejected candidate",
				"point", point.RawName,
				"error", err)
		}
	}

	// Minimal construction is recorded as a failure so memory never serves
	// it back as a trusted mapping.
	succeeded := out.Method != types.MethodMinimal
	if err := e.store.RecordOutcome(ctx, point.RawName, point.DeviceType, out.Identifier, succeeded); err != nil {
		e.logger.Warn("failed to record outcome",
			"point", point.RawName,
			"identifier", out.Identifier,
			"error", err)
	}
}

func (e *Engine) methodStrategy(m types.Method) strategy.ID {
	switch m {
	case types.MethodOracleCached:
		return strategy.MemoryLookup
	case types.MethodOracle:
		return strategy.OracleCall
	case types.MethodPattern:
		return strategy.PatternFallback
	default:
		return strategy.MinimalConstruction
	}
}

// assess computes the quality report for a final outcome using recent
// mappings of the same device type as consistency references.
func (e *Engine) assess(ctx context.Context, out Outcome) quality.Report {
	var refs []quality.Reference
	if records, err := e.store.Records(ctx, out.Point.DeviceType, 20); err == nil {
		for _, r := range records {
			refs = append(refs, quality.Reference{
				PointName:  r.SourcePattern,
				DeviceType: r.DeviceType,
				Identifier: r.TargetPattern,
			})
		}
	}
	return e.assessor.Assess(out.Identifier, out.Point, refs)
}

// memoryExamples pulls prior successful mappings for oracle context.
func (e *Engine) memoryExamples(ctx context.Context, point types.Point) []string {
	records, err := e.store.Records(ctx, point.DeviceType, e.cfg.MemoryExampleCap)
	if err != nil {
		return nil
	}

	examples := make([]string, 0, len(records))
	for _, r := range records {
		if r.SuccessCount == 0 {
			continue
		}
		examples = append(examples, fmt.Sprintf("%s -> %s", r.SourcePattern, r.TargetPattern))
	}
	return examples
}

func (e *Engine) observe(out Outcome, d time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.mappings.WithLabelValues(string(out.Method)).Inc()
	e.metrics.mappingDuration.WithLabelValues(string(out.Method)).Observe(d.Seconds())
	e.metrics.qualityScore.Observe(out.Quality.OverallScore)
}
