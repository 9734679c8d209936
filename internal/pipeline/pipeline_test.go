package pipeline

import (
	"sync/atomic"
	"testing"

	"arbitrar/internal/ir"
	"arbitrar/internal/slicer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileFilter_LiteralVsRegex(t *testing.T) {
	lit, err := compileFilter("a.b", false)
	require.NoError(t, err)
	assert.True(t, lit.MatchString("a.b"))
	assert.False(t, lit.MatchString("axb"))

	re, err := compileFilter("a.b", true)
	require.NoError(t, err)
	assert.True(t, re.MatchString("axb"))
}

func TestCompileFilter_Empty(t *testing.T) {
	re, err := compileFilter("", true)
	require.NoError(t, err)
	assert.Nil(t, re)
}

func buildSliceWithFunctions(t *testing.T, blockCounts ...int) *slicer.Slice {
	t.Helper()
	b := ir.NewBuilder()
	functions := map[string]ir.Function{}
	for i, n := range blockCounts {
		fb := b.Function(fnName(i), ir.FuncType{})
		for j := 0; j < n; j++ {
			blk := fb.Block(blockName(j))
			blk.Return(nil)
		}
		functions[fb.Func().Name()] = fb.Func()
	}
	return &slicer.Slice{Functions: functions}
}

func fnName(i int) string   { return string(rune('a' + i)) }
func blockName(j int) string { return string(rune('A' + j)) }

func TestAverageBlockCount(t *testing.T) {
	sl := buildSliceWithFunctions(t, 2, 4)
	assert.Equal(t, 3.0, averageBlockCount(sl))
}

func TestFilterByAvgBlocks_DropsOversizedSlices(t *testing.T) {
	small := buildSliceWithFunctions(t, 1, 1)
	big := buildSliceWithFunctions(t, 10, 10)

	kept := filterByAvgBlocks([]*slicer.Slice{small, big}, 5)
	require.Len(t, kept, 1)
	assert.Same(t, small, kept[0])
}

func TestFilterByAvgBlocks_ZeroMeansUnbounded(t *testing.T) {
	big := buildSliceWithFunctions(t, 100)
	kept := filterByAvgBlocks([]*slicer.Slice{big}, 0)
	assert.Len(t, kept, 1)
}

func TestRunPool_VisitsEveryIndexExactlyOnce(t *testing.T) {
	const n = 50
	var seen [n]int32
	err := runPool(n, false, func(i int) error {
		atomic.AddInt32(&seen[i], 1)
		return nil
	})
	require.NoError(t, err)
	for i, v := range seen {
		require.Equalf(t, int32(1), v, "index %d visited %d times", i, v)
	}
}

func TestRunPool_Serial(t *testing.T) {
	var order []int
	err := runPool(5, true, func(i int) error {
		order = append(order, i)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, order, 5)
}

func TestRunPoolNamed_PropagatesError(t *testing.T) {
	boom := assert.AnError
	err := runPoolNamed([]string{"a", "b", "c"}, true, func(name string) error {
		if name == "b" {
			return boom
		}
		return nil
	})
	require.Error(t, err)
}

func TestSliceAliasID_IsStablePerSlice(t *testing.T) {
	assert.Equal(t, "strcpy#3", sliceAliasID("strcpy", 3))
}
