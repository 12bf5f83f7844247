package engine

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/c360/pointmap/groupcache"
	"github.com/c360/pointmap/pattern"
	"github.com/c360/pointmap/pkg/worker"
	"github.com/c360/pointmap/types"
)

// batchStopTimeout bounds the drain wait after all points are submitted.
const batchStopTimeout = 10 * time.Minute

// otherDeviceKey groups points with no device type.
const otherDeviceKey = "Other"

// MapBatch maps a batch of points concurrently. Only the first
// OracleSampleLimit points are eligible for oracle calls; the rest are
// mapped from the patterns learned on that sample, degrading to minimal
// construction when no pattern applies. Cancellation leaves memory
// consistent and returns the outcomes completed so far.
func (e *Engine) MapBatch(ctx context.Context, points []types.Point) (*BatchResult, error) {
	start := time.Now()
	result := newBatchResult(ulid.Make().String())

	if len(points) == 0 {
		result.Duration = time.Since(start)
		return result, nil
	}

	fingerprint := groupcache.Fingerprint(points)
	grouping, cached := e.cache.Get(fingerprint)
	if !cached {
		grouping = buildGrouping(points)
		e.cache.Set(fingerprint, grouping)
	}
	result.CacheHit = cached
	result.Grouping = grouping

	// Learn patterns from the oracle-eligible sample so the remainder of a
	// large batch can be mapped without per-point oracle calls.
	limit := e.cfg.OracleSampleLimit
	sample := points
	if limit > 0 && len(points) > limit {
		sample = points[:limit]
	}
	bs := newBatchState(pattern.Analyze(sample))

	e.logger.Info("starting batch",
		"batch_id", result.BatchID,
		"points", len(points),
		"oracle_sample", len(sample),
		"cache_hit", cached)

	type job struct {
		idx            int
		point          types.Point
		oracleEligible bool
	}

	outcomes := make([]Outcome, len(points))
	durations := make([]time.Duration, len(points))
	completed := make([]atomic.Bool, len(points))

	pool := worker.NewPool(e.cfg.MaxConcurrent, len(points), func(ctx context.Context, j job) error {
		jobStart := time.Now()
		outcomes[j.idx] = e.mapPoint(ctx, j.point, siblingNames(grouping, j.point), j.oracleEligible, bs)
		durations[j.idx] = time.Since(jobStart)
		completed[j.idx].Store(true)
		return nil
	})

	if err := pool.Start(ctx); err != nil {
		return result, err
	}

	var submitErr error
	for i, p := range points {
		eligible := limit <= 0 || i < limit
		if err := pool.Submit(ctx, job{idx: i, point: p, oracleEligible: eligible}); err != nil {
			submitErr = err
			break
		}
	}

	if err := pool.Stop(e.stopTimeout); err != nil {
		result.Partial = true
		e.logger.Warn("batch drain timed out", "batch_id", result.BatchID, "error", err)
	}

	// After a drain timeout workers may still be writing their slots, so
	// only slots whose completion flag is set are read. An unset flag marks
	// a point that was in flight or never picked up.
	for i := range outcomes {
		if !completed[i].Load() {
			result.Partial = true
			continue
		}
		result.add(outcomes[i])
		e.observe(outcomes[i], durations[i])
	}

	result.Duration = time.Since(start)

	if e.metrics != nil {
		e.metrics.batches.Inc()
		e.metrics.batchPoints.Observe(float64(len(points)))
	}

	e.logger.Info("batch complete",
		"batch_id", result.BatchID,
		"mapped", len(result.Outcomes),
		"partial", result.Partial,
		"duration", result.Duration)

	if submitErr != nil {
		return result, submitErr
	}
	return result, nil
}

// buildGrouping arranges points into the canonical nested shape
// device type -> device instance -> ordered point names.
func buildGrouping(points []types.Point) types.Grouping {
	grouping := make(types.Grouping)
	for _, p := range points {
		if !p.Valid() {
			continue
		}
		device := deviceKey(p)
		instance := instanceOf(p.RawName)

		if grouping[device] == nil {
			grouping[device] = make(map[string][]string)
		}
		grouping[device][instance] = append(grouping[device][instance], p.RawName)
	}
	return grouping
}

func deviceKey(p types.Point) string {
	device := strings.ToUpper(strings.TrimSpace(p.DeviceType))
	if device == "" {
		return otherDeviceKey
	}
	return device
}

// instanceOf extracts the first run of digits in a raw name as the device
// instance, so CH-SYS-1.CWP.Hz and CH-SYS-1.CWP.Run land together.
func instanceOf(rawName string) string {
	var digits strings.Builder
	for _, r := range rawName {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
			continue
		}
		if digits.Len() > 0 {
			break
		}
	}
	if digits.Len() == 0 {
		return "1"
	}
	return digits.String()
}

// siblingNames returns the other points of the same device instance, used
// as oracle context.
func siblingNames(grouping types.Grouping, p types.Point) []string {
	instances := grouping[deviceKey(p)]
	if instances == nil {
		return nil
	}

	names := instances[instanceOf(p.RawName)]
	siblings := make([]string, 0, len(names))
	for _, name := range names {
		if name != p.RawName {
			siblings = append(siblings, name)
		}
	}
	return siblings
}
