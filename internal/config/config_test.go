package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_MatchesDocumentedValues(t *testing.T) {
	o := Defaults()
	assert.Equal(t, 1, o.SliceDepth)
	assert.Equal(t, 300, o.MaxAvgNumBlocks)
	assert.Equal(t, 50, o.MaxWork)
	assert.Equal(t, 50, o.MaxTracePerSlice)
	assert.Equal(t, 1000, o.MaxExploredTracePerSlice)
	assert.Equal(t, 5000, o.MaxNodePerTrace)
	assert.Equal(t, 10, o.CausalityDictionarySize)
	assert.Equal(t, int64(12345), o.Seed)
	assert.False(t, o.UseSerial)
}

func TestLoadYAML_OverridesSelectedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "options.yaml")
	require.NoError(t, os.WriteFile(path, []byte("slice_depth: 3\nmax_work: 10\n"), 0o644))

	o := Defaults()
	require.NoError(t, LoadYAML(&o, path))
	assert.Equal(t, 3, o.SliceDepth)
	assert.Equal(t, 10, o.MaxWork)
	// Untouched fields keep their defaults.
	assert.Equal(t, 1000, o.MaxExploredTracePerSlice)
}

func TestParseFlags_PositionalAndNamed(t *testing.T) {
	o, err := ParseFlags(Defaults(), []string{"-slice-depth=2", "-no-random-work", "in.bc", "out"})
	require.NoError(t, err)
	assert.Equal(t, "in.bc", o.Input)
	assert.Equal(t, "out", o.Output)
	assert.Equal(t, 2, o.SliceDepth)
	assert.True(t, o.NoRandomWork)
}

func TestParseFlags_RequiresInputAndOutput(t *testing.T) {
	_, err := ParseFlags(Defaults(), []string{"-slice-depth=2"})
	require.Error(t, err)
}

func TestOptions_PathHelpersWithSubfolder(t *testing.T) {
	o := Defaults()
	o.Output = "/tmp/run"
	o.Subfolder = "batch1"

	assert.Equal(t, "/tmp/run/slices/strcpy/batch1/3.json", o.SliceFilePath("strcpy", 3))
	assert.Equal(t, "/tmp/run/traces/strcpy/batch1/3/7.json", o.TraceFilePath("strcpy", 3, 7))
	assert.Equal(t, "/tmp/run/features/strcpy/batch1/3/7.json", o.FeaturesFilePath("strcpy", 3, 7))
	assert.Equal(t, "/tmp/run/log.txt", o.LogFilePath())
}

func TestOptions_PathHelpersWithoutSubfolder(t *testing.T) {
	o := Defaults()
	o.Output = "/tmp/run"

	assert.Equal(t, "/tmp/run/slices/strcpy/3.json", o.SliceFilePath("strcpy", 3))
}
