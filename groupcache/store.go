package groupcache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/pointmap/metric"
	"github.com/c360/pointmap/types"
)

// DefaultCleanupInterval is how often expired entries are swept.
const DefaultCleanupInterval = time.Minute

type entry struct {
	grouping  types.Grouping
	expiresAt time.Time
}

func (e *entry) expired() bool {
	return time.Now().After(e.expiresAt)
}

// Statistics holds cache counters. All fields are read atomically via the
// accessor methods.
type Statistics struct {
	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	evictions atomic.Int64
}

// Hits returns the hit count.
func (s *Statistics) Hits() int64 { return s.hits.Load() }

// Misses returns the miss count.
func (s *Statistics) Misses() int64 { return s.misses.Load() }

// Sets returns the set count.
func (s *Statistics) Sets() int64 { return s.sets.Load() }

// Evictions returns the eviction count.
func (s *Statistics) Evictions() int64 { return s.evictions.Load() }

type storeMetrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions prometheus.Counter
	size      prometheus.Gauge
}

func newStoreMetrics(registry *metric.MetricsRegistry, prefix string) (*storeMetrics, error) {
	m := &storeMetrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_hits_total",
			Help: "Grouping cache hits",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_misses_total",
			Help: "Grouping cache misses",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_evictions_total",
			Help: "Grouping cache TTL evictions",
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_entries",
			Help: "Current grouping cache entries",
		}),
	}

	if err := registry.RegisterCounter("groupcache", prefix+"_hits_total", m.hits); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("groupcache", prefix+"_misses_total", m.misses); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("groupcache", prefix+"_evictions_total", m.evictions); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("groupcache", prefix+"_entries", m.size); err != nil {
		return nil, err
	}
	return m, nil
}

// Store is a thread-safe TTL cache of grouping results. A TTL of zero or
// less disables caching entirely: every Get misses and Set is a no-op, so
// every call recomputes fresh.
type Store struct {
	mu              sync.RWMutex
	ttl             time.Duration
	cleanupInterval time.Duration
	path            string
	items           map[string]*entry
	stats           *Statistics
	metrics         *storeMetrics

	shutdown chan struct{}
	done     chan struct{}
}

// Option configures the store.
type Option func(*Store) error

// WithMetrics exposes cache statistics as Prometheus metrics.
func WithMetrics(registry *metric.MetricsRegistry, prefix string) Option {
	return func(s *Store) error {
		if registry == nil || prefix == "" {
			return nil
		}
		m, err := newStoreMetrics(registry, prefix)
		if err != nil {
			return err
		}
		s.metrics = m
		return nil
	}
}

// WithPersistence snapshots the cache to path on Close and restores it on
// the next NewStore. Restored entries pass through DecodeGrouping, so
// malformed shapes are repaired or discarded before they are served.
func WithPersistence(path string) Option {
	return func(s *Store) error {
		s.path = path
		return nil
	}
}

// WithCleanupInterval overrides the background sweep interval.
func WithCleanupInterval(interval time.Duration) Option {
	return func(s *Store) error {
		if interval > 0 {
			s.cleanupInterval = interval
		}
		return nil
	}
}

// NewStore creates a grouping cache with the given TTL. The background
// sweeper runs until ctx is cancelled or Close is called.
func NewStore(ctx context.Context, ttl time.Duration, opts ...Option) (*Store, error) {
	s := &Store{
		ttl:             ttl,
		cleanupInterval: DefaultCleanupInterval,
		items:           make(map[string]*entry),
		stats:           &Statistics{},
		shutdown:        make(chan struct{}),
		done:            make(chan struct{}),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.ttl > 0 {
		if s.path != "" {
			s.loadSnapshot()
		}
		go s.cleanup(ctx)
	} else {
		close(s.done)
	}

	return s, nil
}

// Enabled reports whether caching is active.
func (s *Store) Enabled() bool {
	return s.ttl > 0
}

// Get returns the cached grouping for a fingerprint. Expired entries are
// evicted on read.
func (s *Store) Get(fingerprint string) (types.Grouping, bool) {
	if !s.Enabled() {
		s.miss()
		return nil, false
	}

	s.mu.RLock()
	e, exists := s.items[fingerprint]
	s.mu.RUnlock()

	if !exists {
		s.miss()
		return nil, false
	}

	if e.expired() {
		s.mu.Lock()
		if cur, still := s.items[fingerprint]; still && cur.expired() {
			delete(s.items, fingerprint)
			s.stats.evictions.Add(1)
			if s.metrics != nil {
				s.metrics.evictions.Inc()
				s.metrics.size.Set(float64(len(s.items)))
			}
		}
		s.mu.Unlock()
		s.miss()
		return nil, false
	}

	s.stats.hits.Add(1)
	if s.metrics != nil {
		s.metrics.hits.Inc()
	}
	return e.grouping, true
}

func (s *Store) miss() {
	s.stats.misses.Add(1)
	if s.metrics != nil {
		s.metrics.misses.Inc()
	}
}

// Set stores a grouping under a fingerprint. No-op when caching is disabled.
func (s *Store) Set(fingerprint string, grouping types.Grouping) {
	if !s.Enabled() || fingerprint == "" {
		return
	}

	s.mu.Lock()
	s.items[fingerprint] = &entry{
		grouping:  grouping,
		expiresAt: time.Now().Add(s.ttl),
	}
	size := len(s.items)
	s.mu.Unlock()

	s.stats.sets.Add(1)
	if s.metrics != nil {
		s.metrics.size.Set(float64(size))
	}
}

// Size returns the current entry count.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Stats returns the cache counters.
func (s *Store) Stats() *Statistics {
	return s.stats
}

// Close flushes the snapshot when persistence is configured and stops the
// background sweeper.
func (s *Store) Close() error {
	var saveErr error
	if s.Enabled() && s.path != "" {
		saveErr = s.saveSnapshot()
	}

	select {
	case <-s.shutdown:
	default:
		close(s.shutdown)
	}

	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
	}
	return saveErr
}

func (s *Store) cleanup(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		case <-ticker.C:
			s.removeExpired()
		}
	}
}

func (s *Store) removeExpired() {
	now := time.Now()
	evicted := 0

	s.mu.Lock()
	for fingerprint, e := range s.items {
		if now.After(e.expiresAt) {
			delete(s.items, fingerprint)
			evicted++
		}
	}
	size := len(s.items)
	s.mu.Unlock()

	if evicted > 0 {
		s.stats.evictions.Add(int64(evicted))
		if s.metrics != nil {
			s.metrics.evictions.Add(float64(evicted))
			s.metrics.size.Set(float64(size))
		}
	}
}
