package slicer

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbitrar/internal/callgraph"
	"arbitrar/internal/ir"
)

// diamondModule builds:
//
//	root --> mid --> target
//	other -----------^
//
// so `target` has two incoming edges reachable from two distinct roots.
func diamondModule() (ir.Module, map[string]ir.Function) {
	b := ir.NewBuilder()
	target := b.Declare("do_target", ir.FuncType{})

	midFB := b.Function("do_mid", ir.FuncType{})
	midFB.Block("entry").Call(target, ir.FuncRef(target), ir.FuncType{})
	midFB.Block("entry").Return(nil)

	rootFB := b.Function("do_root", ir.FuncType{})
	rootFB.Block("entry").Call(midFB.Func(), ir.FuncRef(midFB.Func()), ir.FuncType{})
	rootFB.Block("entry").Return(nil)

	otherFB := b.Function("xx_other", ir.FuncType{})
	otherFB.Block("entry").Call(target, ir.FuncRef(target), ir.FuncType{})
	otherFB.Block("entry").Return(nil)

	fns := map[string]ir.Function{
		"target": target,
		"mid":    midFB.Func(),
		"root":   rootFB.Func(),
		"other":  otherFB.Func(),
	}
	return b.Build(), fns
}

func TestTargetFilterStripsCloneSuffix(t *testing.T) {
	f := TargetFilter{Include: regexp.MustCompile(`^do_target$`)}
	assert.True(t, f.Matches("do_target.123"))
	assert.False(t, f.Matches("do_target_extra"))
}

func TestTargetFilterExcludeWins(t *testing.T) {
	f := TargetFilter{Exclude: regexp.MustCompile(`^do_`)}
	assert.False(t, f.Matches("do_target"))
	assert.True(t, f.Matches("xx_other"))
}

func TestBuildTargetEdgesMapCollectsIncoming(t *testing.T) {
	mod, fns := diamondModule()
	g := callgraph.FromModule(mod, false)

	m := BuildTargetEdgesMap(g, TargetFilter{Include: regexp.MustCompile(`^do_target$`)})
	edges, ok := m["do_target"]
	require.True(t, ok)
	assert.Len(t, edges, 2)
	_ = fns
}

func TestFindEntriesReachesRootAboveCaller(t *testing.T) {
	mod, fns := diamondModule()
	g := callgraph.FromModule(mod, false)
	s := &Slicer{Graph: g, SliceDepth: 2}

	entries := s.FindEntries(fns["mid"])
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "do_root")
}

func TestFindEntriesRootWithNoCallersIsEntry(t *testing.T) {
	mod, fns := diamondModule()
	g := callgraph.FromModule(mod, false)
	s := &Slicer{Graph: g, SliceDepth: 5}

	entries := s.FindEntries(fns["root"])
	require.Len(t, entries, 1)
	assert.Equal(t, "do_root", entries[0].Name())
}

func TestSliceOfEntryExcludesCallee(t *testing.T) {
	mod, fns := diamondModule()
	g := callgraph.FromModule(mod, false)
	s := &Slicer{Graph: g, SliceDepth: 2, NoReduceSlice: true}

	edges := g.InEdges(fns["target"])
	var edgeFromMid callgraph.Edge
	for _, e := range edges {
		if e.Caller.Name() == "do_mid" {
			edgeFromMid = e
		}
	}
	require.NotNil(t, edgeFromMid.Instr)

	slice := s.SliceOfEntry(fns["root"], edgeFromMid)
	assert.True(t, slice.Contains(fns["root"]))
	assert.True(t, slice.Contains(fns["mid"]))
	assert.False(t, slice.Contains(fns["target"]))
}

func TestSliceOfEntryReductionKeepsRelated(t *testing.T) {
	mod, fns := diamondModule()
	g := callgraph.FromModule(mod, false)
	s := &Slicer{Graph: g, SliceDepth: 2}

	edges := g.InEdges(fns["target"])
	var edgeFromMid callgraph.Edge
	for _, e := range edges {
		if e.Caller.Name() == "do_mid" {
			edgeFromMid = e
		}
	}

	slice := s.SliceOfEntry(fns["root"], edgeFromMid)
	// "do_mid" shares the "d" prefix with "do_target", and "do_root" reaches
	// "do_mid": both kept.
	assert.True(t, slice.Contains(fns["root"]))
	assert.True(t, slice.Contains(fns["mid"]))
}

func TestSlicesOfCallEdgeOneSlicePerEntry(t *testing.T) {
	mod, fns := diamondModule()
	g := callgraph.FromModule(mod, false)
	s := &Slicer{Graph: g, SliceDepth: 2, NoReduceSlice: true}

	edges := g.InEdges(fns["target"])
	var edgeFromMid callgraph.Edge
	for _, e := range edges {
		if e.Caller.Name() == "do_mid" {
			edgeFromMid = e
		}
	}

	slices := s.SlicesOfCallEdge(edgeFromMid)
	require.Len(t, slices, 1)
	assert.Equal(t, "do_target", slices[0].TargetName())
}

func TestDirectlyRelatedFirstCharacter(t *testing.T) {
	_, fns := diamondModule()
	assert.True(t, directlyRelated(fns["root"], fns["target"]))
	assert.False(t, directlyRelated(fns["other"], fns["target"]))
}
