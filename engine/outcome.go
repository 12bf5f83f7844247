package engine

import (
	"time"

	"github.com/c360/pointmap/quality"
	"github.com/c360/pointmap/types"
)

// Outcome is the result of mapping a single point. Callers always receive a
// schema-valid identifier; the Method tells them how much to trust it.
type Outcome struct {
	Point      types.Point    `json:"point"`
	Identifier string         `json:"identifier"`
	Method     types.Method   `json:"method"`
	Confidence float64        `json:"confidence"`
	Quality    quality.Report `json:"quality"`
	Reflected  bool           `json:"reflected,omitempty"`
	Attempts   int            `json:"attempts,omitempty"`
	Warning    string         `json:"warning,omitempty"`
}

// BatchResult holds per-point outcomes plus aggregate counts for a batch.
type BatchResult struct {
	BatchID   string                `json:"batch_id"`
	Outcomes  []Outcome             `json:"outcomes"`
	ByMethod  map[types.Method]int  `json:"by_method"`
	ByQuality map[quality.Level]int `json:"by_quality"`
	Duration  time.Duration         `json:"duration"`
	CacheHit  bool                  `json:"cache_hit"`
	Grouping  types.Grouping        `json:"grouping,omitempty"`
	Partial   bool                  `json:"partial,omitempty"`
}

func newBatchResult(batchID string) *BatchResult {
	return &BatchResult{
		BatchID:   batchID,
		ByMethod:  make(map[types.Method]int),
		ByQuality: make(map[quality.Level]int),
	}
}

func (r *BatchResult) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	r.ByMethod[o.Method]++
	r.ByQuality[o.Quality.Level]++
}
