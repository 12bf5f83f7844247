// Package quality scores candidate mappings across five independent
// dimensions and buckets the weighted mean into a quality level. Reports are
// created per mapping decision and consumed immediately; only the batch
// summary aggregates them.
package quality

import (
	"fmt"
	"strings"

	"github.com/c360/pointmap/pattern"
	"github.com/c360/pointmap/schema"
	"github.com/c360/pointmap/types"
)

// Level buckets an overall score.
type Level string

// Quality levels from best to worst.
const (
	LevelExcellent    Level = "excellent"
	LevelGood         Level = "good"
	LevelFair         Level = "fair"
	LevelPoor         Level = "poor"
	LevelUnacceptable Level = "unacceptable"
)

// Thresholds are the lower bounds for each level. They are configuration,
// not per-call-site constants.
type Thresholds struct {
	Excellent float64 `json:"excellent" yaml:"excellent"`
	Good      float64 `json:"good"      yaml:"good"`
	Fair      float64 `json:"fair"      yaml:"fair"`
	Poor      float64 `json:"poor"      yaml:"poor"`
}

// Weights control the contribution of each dimension to the overall score.
type Weights struct {
	Semantic      float64 `json:"semantic"       yaml:"semantic"`
	Convention    float64 `json:"convention"     yaml:"convention"`
	Consistency   float64 `json:"consistency"    yaml:"consistency"`
	DeviceContext float64 `json:"device_context" yaml:"device_context"`
	Completeness  float64 `json:"completeness"   yaml:"completeness"`
}

// Config holds assessor configuration.
type Config struct {
	Thresholds Thresholds `json:"thresholds" yaml:"thresholds"`
	Weights    Weights    `json:"weights"    yaml:"weights"`
}

// DefaultConfig returns the standard thresholds and weights.
func DefaultConfig() Config {
	return Config{
		Thresholds: Thresholds{
			Excellent: 0.9,
			Good:      0.75,
			Fair:      0.5,
			Poor:      0.25,
		},
		Weights: Weights{
			Semantic:      0.3,
			Convention:    0.25,
			Consistency:   0.15,
			DeviceContext: 0.15,
			Completeness:  0.15,
		},
	}
}

// Validate checks thresholds for ordering and weights for range. A fully
// zero config is valid and means "use defaults".
func (c Config) Validate() error {
	if c.Thresholds == (Thresholds{}) && c.Weights == (Weights{}) {
		return nil
	}

	t := c.Thresholds
	if t.Excellent > 1 || t.Poor < 0 {
		return fmt.Errorf("thresholds must be in [0,1]")
	}
	if !(t.Excellent > t.Good && t.Good > t.Fair && t.Fair > t.Poor) {
		return fmt.Errorf("thresholds must be strictly descending")
	}

	w := c.Weights
	for _, v := range []float64{w.Semantic, w.Convention, w.Consistency, w.DeviceContext, w.Completeness} {
		if v < 0 || v > 1 {
			return fmt.Errorf("weights must be in [0,1]")
		}
	}

	return nil
}

// Report is the per-mapping quality assessment. All dimensions are in [0,1].
type Report struct {
	SemanticCorrectness float64 `json:"semantic_correctness"`
	ConventionAdherence float64 `json:"convention_adherence"`
	Consistency         float64 `json:"consistency"`
	DeviceContext       float64 `json:"device_context"`
	SchemaCompleteness  float64 `json:"schema_completeness"`
	OverallScore        float64 `json:"overall_score"`
	Level               Level   `json:"quality_level"`
}

// Reference is a prior mapping used for the consistency dimension.
type Reference struct {
	PointName  string
	DeviceType string
	Identifier string
}

// Assessor computes quality reports.
type Assessor struct {
	cfg Config
}

// NewAssessor creates an assessor. Zero-valued weights fall back to defaults.
func NewAssessor(cfg Config) *Assessor {
	if cfg.Weights == (Weights{}) {
		cfg.Weights = DefaultConfig().Weights
	}
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultConfig().Thresholds
	}
	return &Assessor{cfg: cfg}
}

// Assess scores a candidate identifier for a point against the grammar and
// a set of reference mappings. Each dimension is computed independently.
func (a *Assessor) Assess(candidate string, point types.Point, references []Reference) Report {
	tokens := pattern.Extract(point.RawName)
	segments := strings.Split(candidate, "_")

	r := Report{
		SemanticCorrectness: semanticCorrectness(segments, tokens, point),
		ConventionAdherence: conventionAdherence(candidate, point.DeviceType),
		Consistency:         consistency(segments, point, references),
		DeviceContext:       deviceContext(point.DeviceType),
		SchemaCompleteness:  schemaCompleteness(segments),
	}

	w := a.cfg.Weights
	total := w.Semantic + w.Convention + w.Consistency + w.DeviceContext + w.Completeness
	r.OverallScore = (r.SemanticCorrectness*w.Semantic +
		r.ConventionAdherence*w.Convention +
		r.Consistency*w.Consistency +
		r.DeviceContext*w.DeviceContext +
		r.SchemaCompleteness*w.Completeness) / total

	r.Level = a.LevelFor(r.OverallScore)
	return r
}

// LevelFor buckets a score using the configured thresholds.
func (a *Assessor) LevelFor(score float64) Level {
	t := a.cfg.Thresholds
	switch {
	case score >= t.Excellent:
		return LevelExcellent
	case score >= t.Good:
		return LevelGood
	case score >= t.Fair:
		return LevelFair
	case score >= t.Poor:
		return LevelPoor
	default:
		return LevelUnacceptable
	}
}

// semanticCorrectness measures how well the mapped measurement type matches
// the point's canonical tokens.
func semanticCorrectness(segments, tokens []string, point types.Point) float64 {
	if len(segments) < 3 {
		return 0
	}
	measurement := segments[2]

	for _, t := range tokens {
		if t == measurement {
			return 1.0
		}
	}
	if pattern.InferMeasurement(point.RawName, point.Unit) == measurement {
		return 0.8
	}

	// Weak signal: word overlap between the point and the identifier context
	idWords := make(map[string]bool)
	for _, seg := range segments {
		idWords[strings.ToLower(seg)] = true
	}
	hits := 0
	for _, t := range tokens {
		for _, w := range strings.Split(t, "_") {
			if idWords[w] {
				hits++
				break
			}
		}
	}
	if len(tokens) == 0 {
		return 0.2
	}
	score := 0.2 + 0.4*float64(hits)/float64(len(tokens))
	if score > 1 {
		score = 1
	}
	return score
}

// conventionAdherence is 1.0 when the validator passes and loses a quarter
// per violated rule otherwise.
func conventionAdherence(candidate, deviceType string) float64 {
	violations := schema.Check(candidate, deviceType)
	score := 1.0 - 0.25*float64(len(violations))
	if score < 0 {
		score = 0
	}
	return score
}

// consistency is the agreement rate with reference mappings that share the
// device type and have similar canonical tokens. With no comparable
// references the dimension is vacuously satisfied.
func consistency(segments []string, point types.Point, references []Reference) float64 {
	if len(segments) < 3 {
		return 0
	}
	measurement := segments[2]
	pointKey := pattern.Key(point.RawName)

	comparable, agreeing := 0, 0
	for _, ref := range references {
		if !strings.EqualFold(ref.DeviceType, point.DeviceType) {
			continue
		}
		if wordOverlap(pointKey, pattern.Key(ref.PointName)) < 0.5 {
			continue
		}
		comparable++
		refSegments := strings.Split(ref.Identifier, "_")
		if len(refSegments) >= 3 && refSegments[2] == measurement {
			agreeing++
		}
	}
	if comparable == 0 {
		return 1.0
	}
	return float64(agreeing) / float64(comparable)
}

func wordOverlap(a, b string) float64 {
	aw := strings.Split(a, "_")
	if len(aw) == 0 || a == "" {
		return 0
	}
	set := make(map[string]bool)
	for _, w := range strings.Split(b, "_") {
		set[w] = true
	}
	hits := 0
	for _, w := range aw {
		if set[w] {
			hits++
		}
	}
	return float64(hits) / float64(len(aw))
}

// deviceContext scores how directly the device type resolved to its prefix.
func deviceContext(deviceType string) float64 {
	_, match := schema.PrefixFor(deviceType)
	switch match {
	case schema.MatchExact:
		return 1.0
	case schema.MatchSynonym:
		return 0.7
	case schema.MatchPartial:
		return 0.5
	default:
		return 0.4
	}
}

// schemaCompleteness measures whether the required segments are populated.
func schemaCompleteness(segments []string) float64 {
	if len(segments) == 0 {
		return 0
	}
	populated := 0
	for i := 0; i < 3; i++ {
		if i < len(segments) && segments[i] != "" {
			populated++
		}
	}
	return float64(populated) / 3.0
}
