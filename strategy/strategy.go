// Package strategy orders the mapping engine's fallback ladder by observed
// effectiveness. Each device type tracks per-strategy attempt and success
// counters; strategies with higher historical success rates are tried first.
// Minimal construction is pinned last because it is the only strategy
// guaranteed to produce a schema-valid identifier.
package strategy

import (
	"sort"
	"strings"
	"sync"

	"github.com/c360/pointmap/types"
)

// ID identifies a mapping strategy.
type ID string

// The strategies of the fallback ladder.
const (
	MemoryLookup        ID = "memory_lookup"
	OracleCall          ID = "oracle_call"
	PatternFallback     ID = "pattern_fallback"
	MinimalConstruction ID = "minimal_construction"
)

// Method returns the outcome method label reported for this strategy.
func (id ID) Method() types.Method {
	switch id {
	case MemoryLookup:
		return types.MethodOracleCached
	case OracleCall:
		return types.MethodOracle
	case PatternFallback:
		return types.MethodPattern
	default:
		return types.MethodMinimal
	}
}

// defaultOrder is used before any history accumulates.
var defaultOrder = []ID{MemoryLookup, OracleCall, PatternFallback}

type counter struct {
	attempts  int
	successes int
}

func (c counter) rate() float64 {
	if c.attempts == 0 {
		return 0
	}
	return float64(c.successes) / float64(c.attempts)
}

// Selector tracks strategy effectiveness per device type.
type Selector struct {
	mu    sync.RWMutex
	stats map[string]map[ID]*counter
}

// NewSelector creates an empty selector.
func NewSelector() *Selector {
	return &Selector{stats: make(map[string]map[ID]*counter)}
}

func deviceKey(deviceType string) string {
	return strings.ToUpper(strings.TrimSpace(deviceType))
}

// Select returns the ordered strategy list for a device type. Strategies
// with a higher historical success rate come first; ties keep the default
// order. MinimalConstruction is always last.
func (s *Selector) Select(deviceType string) []ID {
	s.mu.RLock()
	counters := s.stats[deviceKey(deviceType)]

	ordered := make([]ID, len(defaultOrder))
	copy(ordered, defaultOrder)

	rank := make(map[ID]int, len(ordered))
	for i, id := range ordered {
		rank[id] = i
	}
	rates := make(map[ID]float64, len(ordered))
	attempts := make(map[ID]int, len(ordered))
	for _, id := range ordered {
		if c, ok := counters[id]; ok {
			rates[id] = c.rate()
			attempts[id] = c.attempts
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		// Untried strategies keep their default position relative to each
		// other but rank below anything with a proven success rate.
		if attempts[a] == 0 && attempts[b] == 0 {
			return rank[a] < rank[b]
		}
		if attempts[a] == 0 {
			return rates[b] == 0
		}
		if attempts[b] == 0 {
			return rates[a] > 0
		}
		if rates[a] != rates[b] {
			return rates[a] > rates[b]
		}
		return rank[a] < rank[b]
	})

	return append(ordered, MinimalConstruction)
}

// Record folds one strategy outcome into the counters.
func (s *Selector) Record(deviceType string, id ID, succeeded bool) {
	if id == MinimalConstruction {
		// Always succeeds; tracking it would only dilute the signal
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := deviceKey(deviceType)
	counters := s.stats[key]
	if counters == nil {
		counters = make(map[ID]*counter)
		s.stats[key] = counters
	}
	c := counters[id]
	if c == nil {
		c = &counter{}
		counters[id] = c
	}
	c.attempts++
	if succeeded {
		c.successes++
	}
}

// SuccessRate reports the historical success rate and attempt count of a
// strategy for a device type.
func (s *Selector) SuccessRate(deviceType string, id ID) (float64, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.stats[deviceKey(deviceType)][id]; ok {
		return c.rate(), c.attempts
	}
	return 0, 0
}
