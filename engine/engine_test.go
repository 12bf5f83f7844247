package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/pointmap/config"
	pointmaperrors "github.com/c360/pointmap/errors"
	"github.com/c360/pointmap/memory"
	"github.com/c360/pointmap/oracle"
	"github.com/c360/pointmap/schema"
	"github.com/c360/pointmap/types"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.MaxOracleRetries = 1
	cfg.OracleTimeout = 2 * time.Second
	return cfg
}

func newTestEngine(t *testing.T, cfg *config.Config, orc oracle.Oracle) (*Engine, *memory.Store) {
	t.Helper()

	store, err := memory.NewStore(filepath.Join(t.TempDir(), "mappings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	eng, err := New(context.Background(), cfg, store, orc)
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })

	return eng, store
}

var vsdPoint = types.Point{
	RawName:    "CH-SYS-1.CWP.VSD.Hz",
	DeviceType: "CWP",
	Unit:       "Hz",
}

func TestNew_RequiresDependencies(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, testConfig(), nil, oracle.NewScripted())
	require.Error(t, err)

	store, err := memory.NewStore(filepath.Join(t.TempDir(), "mappings.db"))
	require.NoError(t, err)
	defer store.Close()

	_, err = New(ctx, testConfig(), store, nil)
	require.Error(t, err)
}

func TestMapPoint_OracleSuccess(t *testing.T) {
	orc := oracle.NewScripted(oracle.ScriptedResponse{Text: "PUMP_raw_frequency"})
	eng, store := newTestEngine(t, testConfig(), orc)

	out := eng.MapPoint(context.Background(), vsdPoint, nil)

	assert.Equal(t, "PUMP_raw_frequency", out.Identifier)
	assert.Equal(t, types.MethodOracle, out.Method)
	assert.False(t, out.Reflected)
	assert.Equal(t, 1, orc.CallCount())

	// The outcome is recorded in memory
	rec, err := store.Get(context.Background(), vsdPoint.RawName, vsdPoint.DeviceType)
	require.NoError(t, err)
	assert.Equal(t, "PUMP_raw_frequency", rec.TargetPattern)
	assert.Equal(t, 1, rec.SuccessCount)
}

func TestMapPoint_MemoryHitSkipsOracle(t *testing.T) {
	orc := oracle.NewScripted(oracle.ScriptedResponse{Text: "PUMP_raw_frequency"})
	eng, _ := newTestEngine(t, testConfig(), orc)

	ctx := context.Background()
	first := eng.MapPoint(ctx, vsdPoint, nil)
	require.Equal(t, types.MethodOracle, first.Method)
	require.Equal(t, 1, orc.CallCount())

	second := eng.MapPoint(ctx, vsdPoint, nil)
	assert.Equal(t, "PUMP_raw_frequency", second.Identifier)
	assert.Equal(t, types.MethodOracleCached, second.Method)
	assert.Equal(t, 1, orc.CallCount(), "cached mapping must not invoke the oracle")
}

func TestMapPoint_ReflectionRecovers(t *testing.T) {
	// First answer violates the grammar; the reflection retry corrects it.
	orc := oracle.NewScripted(
		oracle.ScriptedResponse{Text: "PUMP_raw_freq"},
		oracle.ScriptedResponse{Text: "PUMP_raw_frequency"},
	)
	eng, _ := newTestEngine(t, testConfig(), orc)

	out := eng.MapPoint(context.Background(), vsdPoint, nil)

	assert.Equal(t, "PUMP_raw_frequency", out.Identifier)
	assert.Equal(t, types.MethodOracle, out.Method)
	assert.True(t, out.Reflected)
	assert.Equal(t, 2, orc.CallCount())

	// The reflection request cites the rejected candidate
	calls := orc.Calls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[1].Instruction, "PUMP_raw_freq")
}

func TestMapPoint_FormatFailuresFallBack(t *testing.T) {
	// Both the answer and its reflection are invalid; the ladder must still
	// produce the schema-valid fallback from the raw name and unit.
	orc := oracle.NewScripted(
		oracle.ScriptedResponse{Text: "CWP_frequency_reading"},
		oracle.ScriptedResponse{Text: "PUMP_calc_freq"},
	)
	eng, store := newTestEngine(t, testConfig(), orc)

	out := eng.MapPoint(context.Background(), vsdPoint, nil)

	assert.Equal(t, "PUMP_raw_frequency", out.Identifier)
	assert.Equal(t, types.MethodMinimal, out.Method)
	assert.True(t, schema.Validate(out.Identifier, vsdPoint.DeviceType))
	assert.Equal(t, 2, orc.CallCount())

	// Rejected candidates are remembered as failures, the fallback result
	// is not remembered as a success.
	rec, err := store.Get(context.Background(), vsdPoint.RawName, vsdPoint.DeviceType)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.SuccessCount)
	assert.Greater(t, rec.FailureCount, 0)
}

func TestMapPoint_TotalityUnderFailingOracle(t *testing.T) {
	orc := oracle.Func(func(_ context.Context, _ oracle.Request) (string, error) {
		return "", errors.New("oracle exploded")
	})
	eng, _ := newTestEngine(t, testConfig(), orc)

	points := []types.Point{
		vsdPoint,
		{RawName: "AHU-2.SupplyTemp", DeviceType: "AHU", Unit: "degC"},
		{RawName: "Meter.Building.kWh", DeviceType: "METER", Unit: "kWh"},
		{RawName: "mystery-point"},
		{RawName: ""},
	}

	for _, p := range points {
		out := eng.MapPoint(context.Background(), p, nil)
		assert.NotEmpty(t, out.Identifier, "point %q", p.RawName)
		assert.True(t, schema.Validate(out.Identifier, p.DeviceType),
			"identifier %q for point %q must be schema-valid", out.Identifier, p.RawName)
	}
}

func TestMapPoint_MalformedRequestSkipsRetry(t *testing.T) {
	orc := oracle.NewScripted(oracle.ScriptedResponse{
		Err: pointmaperrors.ErrOracleMalformedRequest,
	})
	eng, _ := newTestEngine(t, testConfig(), orc)

	out := eng.MapPoint(context.Background(), vsdPoint, nil)

	assert.Equal(t, 1, orc.CallCount(), "fatal oracle errors must not be retried")
	assert.Equal(t, types.MethodMinimal, out.Method)
	assert.Equal(t, "PUMP_raw_frequency", out.Identifier)
}

func TestMapPoint_TransientErrorRetries(t *testing.T) {
	orc := oracle.NewScripted(
		oracle.ScriptedResponse{Err: pointmaperrors.ErrOracleTransport},
		oracle.ScriptedResponse{Text: "PUMP_raw_frequency"},
	)
	cfg := testConfig()
	cfg.MaxOracleRetries = 2
	eng, _ := newTestEngine(t, cfg, orc)

	out := eng.MapPoint(context.Background(), vsdPoint, nil)

	assert.Equal(t, types.MethodOracle, out.Method)
	assert.Equal(t, "PUMP_raw_frequency", out.Identifier)
	assert.Equal(t, 2, orc.CallCount())
}

func TestMapPoint_ReflectionDisabled(t *testing.T) {
	orc := oracle.NewScripted(
		oracle.ScriptedResponse{Text: "PUMP_raw_freq"},
		oracle.ScriptedResponse{Text: "PUMP_raw_frequency"},
	)
	cfg := testConfig()
	cfg.ReflectionEnabled = false
	eng, _ := newTestEngine(t, cfg, orc)

	out := eng.MapPoint(context.Background(), vsdPoint, nil)

	assert.Equal(t, 1, orc.CallCount(), "reflection disabled means one shot only")
	assert.Equal(t, types.MethodMinimal, out.Method)
}

func TestMapPoint_LearningDisabled(t *testing.T) {
	orc := oracle.NewScripted(oracle.ScriptedResponse{Text: "PUMP_raw_frequency"})
	cfg := testConfig()
	cfg.LearningEnabled = false
	eng, store := newTestEngine(t, cfg, orc)

	ctx := context.Background()
	out := eng.MapPoint(ctx, vsdPoint, nil)
	require.Equal(t, types.MethodOracle, out.Method)

	_, err := store.Get(ctx, vsdPoint.RawName, vsdPoint.DeviceType)
	assert.ErrorIs(t, err, pointmaperrors.ErrRecordNotFound,
		"learning disabled must not write memory")
}

func TestMapPoint_QualityReport(t *testing.T) {
	orc := oracle.NewScripted(oracle.ScriptedResponse{Text: "PUMP_raw_frequency"})
	eng, _ := newTestEngine(t, testConfig(), orc)

	out := eng.MapPoint(context.Background(), vsdPoint, nil)

	assert.Greater(t, out.Quality.OverallScore, 0.0)
	assert.NotEmpty(t, out.Quality.Level)
}

func TestMapPoint_EnergyDeviceAmbiguity(t *testing.T) {
	t.Skip("energy points on non-meter devices inherit the device prefix; " +
		"revisit if meter rollup points need METER routing")
}

func TestMapPoint_ReflectsOnSegmentCountFailure(t *testing.T) {
	// Two-segment candidates must reach the validator so the reflection
	// retry can cite the segment-count violation.
	orc := oracle.NewScripted(
		oracle.ScriptedResponse{Text: "PUMP_raw"},
		oracle.ScriptedResponse{Text: "PUMP_raw_frequency"},
	)
	eng, _ := newTestEngine(t, testConfig(), orc)

	out := eng.MapPoint(context.Background(), vsdPoint, nil)

	assert.Equal(t, "PUMP_raw_frequency", out.Identifier)
	assert.Equal(t, types.MethodOracle, out.Method)
	assert.True(t, out.Reflected)
	assert.Equal(t, 2, orc.CallCount())
	require.Len(t, orc.Calls(), 2)
	assert.Contains(t, orc.Calls()[1].Instruction, "PUMP_raw")
}
