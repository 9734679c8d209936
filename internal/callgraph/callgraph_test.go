package callgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbitrar/internal/ir"
)

func chainModule() (ir.Module, ir.Function, ir.Function, ir.Function) {
	b := ir.NewBuilder()
	leaf := b.Declare("leaf", ir.FuncType{})

	midFB := b.Function("mid", ir.FuncType{})
	midEntry := midFB.Block("entry")
	midEntry.Call(leaf, ir.FuncRef(leaf), ir.FuncType{})
	midEntry.Return(nil)

	topFB := b.Function("top", ir.FuncType{})
	topEntry := topFB.Block("entry")
	topEntry.Call(midFB.Func(), ir.FuncRef(midFB.Func()), ir.FuncType{})
	topEntry.Return(nil)

	return b.Build(), topFB.Func(), midFB.Func(), leaf
}

func TestFromModuleBuildsEdges(t *testing.T) {
	mod, top, mid, leaf := chainModule()
	g := FromModule(mod, false)

	require.Len(t, g.Nodes(), 3)
	assert.Len(t, g.OutEdges(top), 1)
	assert.Equal(t, mid.Name(), g.OutEdges(top)[0].Callee.Name())
	assert.Len(t, g.InEdges(leaf), 1)
}

func TestPathsFindsChain(t *testing.T) {
	mod, top, _, leaf := chainModule()
	g := FromModule(mod, false)

	paths := g.Paths(top, leaf, 4)
	require.Len(t, paths, 1)
	fns := paths[0].Functions()
	require.Len(t, fns, 3)
	assert.Equal(t, "top", fns[0].Name())
	assert.Equal(t, "leaf", fns[2].Name())
}

func TestPathsRespectsMaxDepth(t *testing.T) {
	mod, top, _, leaf := chainModule()
	g := FromModule(mod, false)

	paths := g.Paths(top, leaf, 1)
	assert.Empty(t, paths)
}

func TestRemoveLLVMFuncsDropsIntrinsics(t *testing.T) {
	b := ir.NewBuilder()
	memcpy := b.Declare("llvm.memcpy.p0i8.p0i8.i64", ir.FuncType{})
	callerFB := b.Function("caller", ir.FuncType{})
	entry := callerFB.Block("entry")
	entry.Call(memcpy, ir.FuncRef(memcpy), ir.FuncType{})
	entry.Return(nil)

	g := FromModule(b.Build(), true)
	for _, n := range g.Nodes() {
		assert.NotContains(t, n.Name(), "llvm.")
	}
	assert.Empty(t, g.Edges())
}
