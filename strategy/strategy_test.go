package strategy

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/c360/pointmap/types"
)

func TestSelect_DefaultOrder(t *testing.T) {
	s := NewSelector()

	order := s.Select("CWP")
	assert.Equal(t, []ID{MemoryLookup, OracleCall, PatternFallback, MinimalConstruction}, order)
}

func TestSelect_MinimalAlwaysLast(t *testing.T) {
	s := NewSelector()

	// Even a perfect pattern fallback record cannot displace minimal
	// construction from the last slot
	for i := 0; i < 10; i++ {
		s.Record("CWP", PatternFallback, true)
	}

	order := s.Select("CWP")
	assert.Equal(t, MinimalConstruction, order[len(order)-1])
	assert.Equal(t, PatternFallback, order[0])
}

func TestSelect_ReordersBySuccessRate(t *testing.T) {
	s := NewSelector()

	// Oracle succeeds often, memory lookups mostly miss
	for i := 0; i < 8; i++ {
		s.Record("CWP", OracleCall, true)
	}
	for i := 0; i < 8; i++ {
		s.Record("CWP", MemoryLookup, i == 0)
	}

	order := s.Select("CWP")
	assert.Equal(t, OracleCall, order[0])
	assert.Equal(t, MemoryLookup, order[1])
}

func TestSelect_PerDeviceIsolation(t *testing.T) {
	s := NewSelector()

	for i := 0; i < 5; i++ {
		s.Record("CWP", PatternFallback, true)
		s.Record("CWP", OracleCall, false)
	}

	// AHU has no history and keeps the default order
	assert.Equal(t, []ID{MemoryLookup, OracleCall, PatternFallback, MinimalConstruction}, s.Select("AHU"))
	assert.Equal(t, PatternFallback, s.Select("CWP")[0])

	// Device key is case-insensitive
	assert.Equal(t, s.Select("CWP"), s.Select("cwp"))
}

func TestRecord_MinimalConstructionIgnored(t *testing.T) {
	s := NewSelector()

	s.Record("CWP", MinimalConstruction, true)
	_, attempts := s.SuccessRate("CWP", MinimalConstruction)
	assert.Equal(t, 0, attempts)
}

func TestSuccessRate(t *testing.T) {
	s := NewSelector()

	rate, attempts := s.SuccessRate("CWP", OracleCall)
	assert.Equal(t, 0.0, rate)
	assert.Equal(t, 0, attempts)

	s.Record("CWP", OracleCall, true)
	s.Record("CWP", OracleCall, true)
	s.Record("CWP", OracleCall, false)

	rate, attempts = s.SuccessRate("CWP", OracleCall)
	assert.InDelta(t, 2.0/3.0, rate, 1e-9)
	assert.Equal(t, 3, attempts)
}

func TestSelector_ConcurrentAccess(t *testing.T) {
	s := NewSelector()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Record("CWP", OracleCall, j%2 == 0)
				s.Select("CWP")
			}
		}(i)
	}
	wg.Wait()

	_, attempts := s.SuccessRate("CWP", OracleCall)
	assert.Equal(t, 800, attempts)
}

func TestIDMethod(t *testing.T) {
	assert.Equal(t, types.MethodOracleCached, MemoryLookup.Method())
	assert.Equal(t, types.MethodOracle, OracleCall.Method())
	assert.Equal(t, types.MethodPattern, PatternFallback.Method())
	assert.Equal(t, types.MethodMinimal, MinimalConstruction.Method())
}
