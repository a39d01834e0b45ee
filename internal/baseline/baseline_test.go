package baseline_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Centaurus99/Spearmint/internal/aggregate"
	"github.com/Centaurus99/Spearmint/internal/baseline"
)

func TestMain(m *testing.M) {
	logrus.SetLevel(logrus.ErrorLevel)
	os.Exit(m.Run())
}

// copyLogs copies the fixture replicate logs into a scratch directory so the
// cache can be written.
func copyLogs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	entries, err := os.ReadDir("../../testdata/replicate_logs")
	require.NoError(t, err)
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join("../../testdata/replicate_logs", e.Name()))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, e.Name()), data, 0o644))
	}
	return dir
}

var (
	cubic = aggregate.Key{Scheme: "cubic", Flow: 1}
	bbr   = aggregate.Key{Scheme: "bbr", Flow: 1}
)

func TestComputeMedians(t *testing.T) {
	table, err := baseline.Compute("../../testdata/replicate_logs", []string{"cubic", "bbr"})
	require.NoError(t, err)
	require.Len(t, table, 2)
	assert.InDelta(t, 12.0, table[cubic].Throughput, 1e-9)
	assert.InDelta(t, 45.0, table[cubic].Delay, 1e-9)
	assert.Equal(t, 3, table[cubic].Samples)
	assert.InDelta(t, 22.0, table[bbr].Throughput, 1e-9)
	assert.InDelta(t, 70.0, table[bbr].Delay, 1e-9)
}

func TestComputeMissingScheme(t *testing.T) {
	_, err := baseline.Compute("../../testdata/replicate_logs", []string{"vegas"})
	assert.ErrorContains(t, err, "no stats logs for vegas")
}

func TestComputeRefusesUndefined(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cubic_stats_run1.log"), []byte("-- Flow 1:\nAverage throughput: 3 Mbit/s\n"), 0o644))
	_, err := baseline.Compute(dir, []string{"cubic"})
	assert.ErrorContains(t, err, "no samples")
}

func TestLoadOrComputeWritesAndTrustsCache(t *testing.T) {
	dir := copyLogs(t)
	first, err := baseline.LoadOrCompute(dir, []string{"cubic", "bbr"})
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, baseline.CacheFile))
	require.NoError(t, err, "cache written")

	// Changing a log after caching must not change the baseline.
	require.NoError(t, os.Remove(filepath.Join(dir, "cubic_stats_run1.log")))
	second, err := baseline.LoadOrCompute(dir, []string{"cubic", "bbr"})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	only, err := baseline.LoadOrCompute(dir, []string{"bbr"})
	require.NoError(t, err)
	assert.Len(t, only, 1)

	_, err = baseline.LoadOrCompute(dir, []string{"vegas"})
	assert.ErrorIs(t, err, baseline.ErrSchemeMissing)
}

func TestLoadFlatLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), baseline.CacheFile)
	doc := `{"cubic": {"tput": 12.5, "delay": 44.0}, "bbr": {"1": {"tput": 20, "delay": 60, "samples": 2}, "2": {"tput": 18, "delay": 61}}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	table, err := baseline.Load(path)
	require.NoError(t, err)
	require.Len(t, table, 3)
	assert.Equal(t, aggregate.Metric{Throughput: 12.5, Delay: 44}, table[cubic])
	assert.Equal(t, 2, table[bbr].Samples)
	assert.Equal(t, 18.0, table[aggregate.Key{Scheme: "bbr", Flow: 2}].Throughput)
}

func TestSaveRefusesUndefined(t *testing.T) {
	path := filepath.Join(t.TempDir(), baseline.CacheFile)
	err := baseline.Save(path, aggregate.Table{cubic: aggregate.Undefined()})
	assert.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
