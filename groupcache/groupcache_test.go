package groupcache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/pointmap/errors"
	"github.com/c360/pointmap/types"
)

func TestFingerprint_OrderIndependent(t *testing.T) {
	a := []types.Point{
		{RawName: "CH-SYS-1.CWP.VSD.Hz", DeviceType: "PUMP"},
		{RawName: "AHU-2.SupplyTemp", DeviceType: "AHU"},
	}
	b := []types.Point{
		{RawName: "AHU-2.SupplyTemp", DeviceType: "AHU"},
		{RawName: "CH-SYS-1.CWP.VSD.Hz", DeviceType: "PUMP"},
	}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprint_CaseAndWhitespaceInsensitive(t *testing.T) {
	a := []types.Point{{RawName: " ch-sys-1.cwp.vsd.hz ", DeviceType: "pump"}}
	b := []types.Point{{RawName: "CH-SYS-1.CWP.VSD.Hz", DeviceType: "PUMP"}}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprint_DistinctBatches(t *testing.T) {
	a := []types.Point{{RawName: "CH-SYS-1.CWP.VSD.Hz", DeviceType: "PUMP"}}
	b := []types.Point{{RawName: "CH-SYS-2.CWP.VSD.Hz", DeviceType: "PUMP"}}

	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}

func TestDecodeGrouping_Canonical(t *testing.T) {
	data := []byte(`{"PUMP":{"1":["CH-SYS-1.CWP.VSD.Hz","CH-SYS-1.CWP.Run"]}}`)

	g, err := DecodeGrouping(data)
	require.NoError(t, err)

	assert.Equal(t, []string{"CH-SYS-1.CWP.VSD.Hz", "CH-SYS-1.CWP.Run"}, g["PUMP"]["1"])
}

func TestDecodeGrouping_RepairsListShape(t *testing.T) {
	// "Other" persisted as a bare list instead of the nested dict.
	data := []byte(`{"Other":["Misc.Point.1","Misc.Point.2"],"PUMP":{"1":["CWP.Hz"]}}`)

	g, err := DecodeGrouping(data)
	require.NoError(t, err)

	assert.Equal(t, []string{"Misc.Point.1", "Misc.Point.2"}, g["Other"][repairedInstanceKey],
		"list entries must survive repair without loss")
	assert.Equal(t, []string{"CWP.Hz"}, g["PUMP"]["1"],
		"well-formed entries must pass through untouched")
}

func TestDecodeGrouping_RepairsStringShape(t *testing.T) {
	data := []byte(`{"SENSOR":"Zone.Temp"}`)

	g, err := DecodeGrouping(data)
	require.NoError(t, err)

	assert.Equal(t, []string{"Zone.Temp"}, g["SENSOR"][repairedInstanceKey])
}

func TestDecodeGrouping_Corrupt(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not json", `{"PUMP":`},
		{"top level array", `["PUMP"]`},
		{"numeric device value", `{"PUMP":42}`},
		{"non-string point name", `{"PUMP":{"1":[1,2]}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeGrouping([]byte(tc.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrCacheCorrupted)
		})
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	g := types.Grouping{
		"PUMP": {"1": {"CWP.Hz"}, "2": {"CWP2.Hz"}},
	}

	data, err := EncodeGrouping(g)
	require.NoError(t, err)

	decoded, err := DecodeGrouping(data)
	require.NoError(t, err)
	assert.Equal(t, g, decoded)
}

func TestStore_GetSet(t *testing.T) {
	store, err := NewStore(context.Background(), time.Minute)
	require.NoError(t, err)
	defer store.Close()

	g := types.Grouping{"PUMP": {"1": {"CWP.Hz"}}}
	fp := Fingerprint([]types.Point{{RawName: "CWP.Hz", DeviceType: "PUMP"}})

	_, ok := store.Get(fp)
	assert.False(t, ok)

	store.Set(fp, g)
	got, ok := store.Get(fp)
	require.True(t, ok)
	assert.Equal(t, g, got)

	assert.Equal(t, int64(1), store.Stats().Hits())
	assert.Equal(t, int64(1), store.Stats().Misses())
	assert.Equal(t, int64(1), store.Stats().Sets())
}

func TestStore_ZeroTTLDisablesCaching(t *testing.T) {
	store, err := NewStore(context.Background(), 0)
	require.NoError(t, err)
	defer store.Close()

	assert.False(t, store.Enabled())

	g := types.Grouping{"PUMP": {"1": {"CWP.Hz"}}}
	store.Set("fp", g)

	// Every read misses so callers always recompute.
	_, ok := store.Get("fp")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Size())
	assert.Equal(t, int64(0), store.Stats().Sets())
}

func TestStore_ExpiredEntryEvictedOnRead(t *testing.T) {
	store, err := NewStore(context.Background(), 10*time.Millisecond,
		WithCleanupInterval(time.Hour))
	require.NoError(t, err)
	defer store.Close()

	store.Set("fp", types.Grouping{"PUMP": {"1": {"CWP.Hz"}}})
	require.Equal(t, 1, store.Size())

	time.Sleep(25 * time.Millisecond)

	_, ok := store.Get("fp")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Size())
	assert.Equal(t, int64(1), store.Stats().Evictions())
}

func TestStore_BackgroundCleanup(t *testing.T) {
	store, err := NewStore(context.Background(), 10*time.Millisecond,
		WithCleanupInterval(20*time.Millisecond))
	require.NoError(t, err)
	defer store.Close()

	store.Set("fp1", types.Grouping{"PUMP": {"1": {"a"}}})
	store.Set("fp2", types.Grouping{"AHU": {"1": {"b"}}})

	assert.Eventually(t, func() bool {
		return store.Size() == 0
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(2), store.Stats().Evictions())
}

func TestStore_Close(t *testing.T) {
	store, err := NewStore(context.Background(), time.Minute)
	require.NoError(t, err)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestStore_SnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "groupings.json")
	grouping := types.Grouping{"CWP": {"1": {"CH-SYS-1.CWP.VSD.Hz", "CH-SYS-1.CWP.Run"}}}

	store, err := NewStore(ctx, time.Hour, WithPersistence(path))
	require.NoError(t, err)
	store.Set("fp", grouping)
	require.NoError(t, store.Close())

	reopened, err := NewStore(ctx, time.Hour, WithPersistence(path))
	require.NoError(t, err)
	defer reopened.Close()

	got, ok := reopened.Get("fp")
	require.True(t, ok)
	assert.Equal(t, grouping, got)
}

func TestStore_SnapshotRepairsListShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groupings.json")
	expires := time.Now().Add(time.Hour).Format(time.RFC3339Nano)
	snapshot := fmt.Sprintf(
		`{"fp":{"expires_at":%q,"grouping":{"Other":["Misc.Point.1","Misc.Point.2"]}}}`,
		expires)
	require.NoError(t, os.WriteFile(path, []byte(snapshot), 0o600))

	store, err := NewStore(context.Background(), time.Hour, WithPersistence(path))
	require.NoError(t, err)
	defer store.Close()

	got, ok := store.Get("fp")
	require.True(t, ok)
	assert.Equal(t, []string{"Misc.Point.1", "Misc.Point.2"}, got["Other"]["1"])
}

func TestStore_SnapshotDiscardsUnrepairableEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groupings.json")
	expires := time.Now().Add(time.Hour).Format(time.RFC3339Nano)
	snapshot := fmt.Sprintf(
		`{"bad":{"expires_at":%q,"grouping":{"CWP":42}},`+
			`"good":{"expires_at":%q,"grouping":{"CWP":{"1":["a"]}}}}`,
		expires, expires)
	require.NoError(t, os.WriteFile(path, []byte(snapshot), 0o600))

	store, err := NewStore(context.Background(), time.Hour, WithPersistence(path))
	require.NoError(t, err)
	defer store.Close()

	_, ok := store.Get("bad")
	assert.False(t, ok)
	_, ok = store.Get("good")
	assert.True(t, ok)
	assert.Equal(t, int64(1), store.Stats().Evictions())
}

func TestStore_SnapshotSkipsExpiredEntries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "groupings.json")

	store, err := NewStore(ctx, 10*time.Millisecond, WithPersistence(path),
		WithCleanupInterval(time.Hour))
	require.NoError(t, err)
	store.Set("fp", types.Grouping{"CWP": {"1": {"a"}}})
	time.Sleep(25 * time.Millisecond)
	require.NoError(t, store.Close())

	reopened, err := NewStore(ctx, time.Hour, WithPersistence(path))
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, 0, reopened.Size())
}

func TestStore_DisabledSkipsSnapshot(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "groupings.json")

	store, err := NewStore(ctx, 0, WithPersistence(path))
	require.NoError(t, err)
	store.Set("fp", types.Grouping{"CWP": {"1": {"a"}}})
	require.NoError(t, store.Close())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
