package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/c360/pointmap/types"
)

func TestAssess_ValidMappingScoresHigh(t *testing.T) {
	a := NewAssessor(DefaultConfig())

	point := types.Point{RawName: "CH-SYS-1.CWP.VSD.Hz", DeviceType: "CWP"}
	report := a.Assess("PUMP_raw_frequency", point, nil)

	assert.Equal(t, 1.0, report.SemanticCorrectness, "frequency token present on the point")
	assert.Equal(t, 1.0, report.ConventionAdherence)
	assert.Equal(t, 1.0, report.Consistency, "no comparable references")
	assert.Equal(t, 1.0, report.DeviceContext, "CWP is an exact table entry")
	assert.Equal(t, 1.0, report.SchemaCompleteness)
	assert.Equal(t, 1.0, report.OverallScore)
	assert.Equal(t, LevelExcellent, report.Level)
}

func TestAssess_InvalidIdentifierPenalized(t *testing.T) {
	a := NewAssessor(DefaultConfig())

	point := types.Point{RawName: "CH-SYS-1.CWP.VSD.Hz", DeviceType: "CWP"}
	report := a.Assess("PUMP_raw_wobble", point, nil)

	assert.Equal(t, 0.75, report.ConventionAdherence, "one violated rule")
	assert.Less(t, report.SemanticCorrectness, 1.0)
	assert.Less(t, report.OverallScore, 1.0)
}

func TestAssess_TooFewSegments(t *testing.T) {
	a := NewAssessor(DefaultConfig())

	point := types.Point{RawName: "CWP-1.Status", DeviceType: "CWP"}
	report := a.Assess("PUMP_raw", point, nil)

	assert.Equal(t, 0.0, report.SemanticCorrectness)
	assert.Equal(t, 0.75, report.ConventionAdherence)
	assert.InDelta(t, 2.0/3.0, report.SchemaCompleteness, 1e-9)
}

func TestAssess_Consistency(t *testing.T) {
	a := NewAssessor(DefaultConfig())
	point := types.Point{RawName: "CWP-1.VSD.Hz", DeviceType: "CWP"}

	agreeing := []Reference{
		{PointName: "CWP-2.VSD.Hz", DeviceType: "CWP", Identifier: "PUMP_raw_frequency"},
		{PointName: "CWP-3.VSD.Hz", DeviceType: "CWP", Identifier: "PUMP_raw_frequency"},
	}
	report := a.Assess("PUMP_raw_frequency", point, agreeing)
	assert.Equal(t, 1.0, report.Consistency)

	disagreeing := []Reference{
		{PointName: "CWP-2.VSD.Hz", DeviceType: "CWP", Identifier: "PUMP_raw_speed"},
		{PointName: "CWP-3.VSD.Hz", DeviceType: "CWP", Identifier: "PUMP_raw_frequency"},
	}
	report = a.Assess("PUMP_raw_frequency", point, disagreeing)
	assert.Equal(t, 0.5, report.Consistency)

	// References of other device types or dissimilar tokens are ignored
	unrelated := []Reference{
		{PointName: "AHU-1.SupplyAirTemp", DeviceType: "AHU", Identifier: "AHU_raw_temp"},
	}
	report = a.Assess("PUMP_raw_frequency", point, unrelated)
	assert.Equal(t, 1.0, report.Consistency)
}

func TestAssess_DeviceContext(t *testing.T) {
	a := NewAssessor(DefaultConfig())

	exact := a.Assess("PUMP_raw_status", types.Point{RawName: "CWP.Run", DeviceType: "CWP"}, nil)
	assert.Equal(t, 1.0, exact.DeviceContext)

	synonym := a.Assess("PUMP_raw_status", types.Point{RawName: "P.Run", DeviceType: "chilled water pump"}, nil)
	assert.Equal(t, 0.7, synonym.DeviceContext)

	unknown := a.Assess("DEV_raw_status", types.Point{RawName: "X.Run", DeviceType: "frobulator"}, nil)
	assert.Equal(t, 0.4, unknown.DeviceContext)
}

func TestLevelFor_ConfigurableThresholds(t *testing.T) {
	a := NewAssessor(DefaultConfig())

	assert.Equal(t, LevelExcellent, a.LevelFor(0.95))
	assert.Equal(t, LevelExcellent, a.LevelFor(0.9))
	assert.Equal(t, LevelGood, a.LevelFor(0.8))
	assert.Equal(t, LevelFair, a.LevelFor(0.6))
	assert.Equal(t, LevelPoor, a.LevelFor(0.3))
	assert.Equal(t, LevelUnacceptable, a.LevelFor(0.1))

	// Custom thresholds shift the buckets
	strict := NewAssessor(Config{
		Thresholds: Thresholds{Excellent: 0.99, Good: 0.9, Fair: 0.8, Poor: 0.5},
	})
	assert.Equal(t, LevelGood, strict.LevelFor(0.95))
	assert.Equal(t, LevelUnacceptable, strict.LevelFor(0.3))
}

func TestNewAssessor_ZeroConfigDefaults(t *testing.T) {
	a := NewAssessor(Config{})

	point := types.Point{RawName: "CWP-1.VSD.Hz", DeviceType: "CWP"}
	report := a.Assess("PUMP_raw_frequency", point, nil)
	assert.Equal(t, LevelExcellent, report.Level)
}
