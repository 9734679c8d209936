package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderSingleBlockReturn(t *testing.T) {
	b := NewBuilder()
	fb := b.Function("add", FuncType{NumParams: 2, HasReturn: true})
	entry := fb.Block("entry")
	sum := entry.Binary("add", Arg(0, IntType{Bits: 64}), Arg(1, IntType{Bits: 64}), IntType{Bits: 64})
	entry.Return(sum)

	mod := b.Build()
	require.Len(t, mod.Functions(), 1)

	fn := mod.Functions()[0]
	assert.Equal(t, "add", fn.Name())
	assert.False(t, fn.IsDeclaration())
	assert.Equal(t, 2, fn.Type().NumParams)

	first, ok := fn.FirstBlock()
	require.True(t, ok)
	assert.Equal(t, "entry", first.Label())

	term := first.Terminator()
	require.Equal(t, Return, term.Kind())
	retInstr, ok := term.(ReturnInstr)
	require.True(t, ok)
	op, hasOp := retInstr.Operand()
	require.True(t, hasOp)
	assert.Equal(t, OpInstruction, op.Kind())
}

func TestBuilderCondBrSuccessors(t *testing.T) {
	b := NewBuilder()
	fb := b.Function("branchy", FuncType{NumParams: 1, HasReturn: true})
	entry := fb.Block("entry")
	thenB := fb.Block("then")
	elseB := fb.Block("else")

	cond := entry.ICmp(SGT, Arg(0, IntType{Bits: 64}), ConstInt(0, IntType{Bits: 64}))
	entry.CondBr(cond, thenB, elseB)
	thenB.Return(ConstInt(1, IntType{Bits: 64}))
	elseB.Return(ConstInt(0, IntType{Bits: 64}))

	succs := entry.Block().Successors()
	require.Len(t, succs, 2)
	assert.Equal(t, "then", succs[0].Label())
	assert.Equal(t, "else", succs[1].Label())
}

func TestBuilderCallDeclaredFunction(t *testing.T) {
	b := NewBuilder()
	callee := b.Declare("malloc", FuncType{NumParams: 1, HasReturn: true})

	fb := b.Function("caller", FuncType{HasReturn: true})
	entry := fb.Block("entry")
	result := entry.Call(callee, FuncRef(callee), FuncType{NumParams: 1, HasReturn: true}, ConstInt(16, IntType{Bits: 64}))
	entry.Return(result)

	callInstrVal, ok := entry.Block().Instructions()[0].(CallInstr)
	require.True(t, ok)
	fn, ok := callInstrVal.Callee()
	require.True(t, ok)
	assert.Equal(t, "malloc", fn.Name())
}

func TestBuilderLoopHeaderFlag(t *testing.T) {
	b := NewBuilder()
	fb := b.Function("loopy", FuncType{})
	header := fb.Block("header")
	fb.MarkLoopHeader(header)
	header.UncondBr(header, true)

	assert.True(t, header.Block().IsLoopHeader())
}

func TestSimplifyNameOnFunction(t *testing.T) {
	b := NewBuilder()
	fb := b.Function("llvm.memcpy.p0i8.p0i8.i64", FuncType{})
	entry := fb.Block("entry")
	entry.Return(nil)

	assert.Equal(t, "memcpy", fb.Func().SimpName())
}
