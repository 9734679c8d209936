package blocktrace

import (
	"testing"

	"arbitrar/internal/callgraph"
	"arbitrar/internal/ir"
)

// buildDiamond builds: entry -> {left, right} -> join, with a call to
// "target" in join.
func buildDiamond(t *testing.T) (ir.Function, ir.CallInstr) {
	t.Helper()
	b := ir.NewBuilder()
	target := b.Declare("target", ir.FuncType{})

	fb := b.Function("f", ir.FuncType{})
	entry := fb.Block("entry")
	left := fb.Block("left")
	right := fb.Block("right")
	join := fb.Block("join")

	cond := ir.ConstInt(1, ir.IntType{Bits: 1})
	entry.CondBr(cond, left, right)
	left.UncondBr(join, false)
	right.UncondBr(join, false)
	call := join.Call(target, nil, ir.FuncType{})
	join.Return(nil)

	instr := call.(ir.InstructionOperand).Instr().(ir.CallInstr)
	return fb.Func(), instr
}

func TestPathsTo_Diamond(t *testing.T) {
	fn, instr := buildDiamond(t)
	paths := PathsTo(fn, instr, 10)
	if len(paths) != 2 {
		t.Fatalf("expected 2 simple paths through a diamond, got %d", len(paths))
	}
	for _, p := range paths {
		if len(p) != 3 {
			t.Fatalf("expected 3 blocks per path (entry, side, join), got %d", len(p))
		}
	}
}

func TestPathsTo_TrivialSingleBlock(t *testing.T) {
	b := ir.NewBuilder()
	target := b.Declare("target", ir.FuncType{})
	fb := b.Function("f", ir.FuncType{})
	entry := fb.Block("entry")
	call := entry.Call(target, nil, ir.FuncType{})
	entry.Return(nil)
	instr := call.(ir.InstructionOperand).Instr().(ir.CallInstr)

	paths := PathsTo(fb.Func(), instr, 10)
	if len(paths) != 1 || len(paths[0]) != 1 {
		t.Fatalf("expected a single trivial one-block path, got %v", paths)
	}
}

func TestComposite_TwoHops(t *testing.T) {
	b := ir.NewBuilder()
	target := b.Declare("target", ir.FuncType{})

	callee := b.Function("callee", ir.FuncType{})
	calleeEntry := callee.Block("entry")
	calleeCall := calleeEntry.Call(target, nil, ir.FuncType{})
	calleeEntry.Return(nil)
	calleeCallInstr := calleeCall.(ir.InstructionOperand).Instr().(ir.CallInstr)

	caller := b.Function("caller", ir.FuncType{})
	callerEntry := caller.Block("entry")
	callerCall := callerEntry.Call(callee.Func(), nil, ir.FuncType{})
	callerEntry.Return(nil)
	callerCallInstr := callerCall.(ir.InstructionOperand).Instr().(ir.CallInstr)

	g := callgraph.FromModule(b.Build(), false)
	paths := g.Paths(caller.Func(), target, 4)
	if len(paths) != 1 {
		t.Fatalf("expected 1 call-graph path, got %d", len(paths))
	}
	_ = callerCallInstr
	_ = calleeCallInstr

	composites := Composite(paths[0], 10)
	if len(composites) != 1 {
		t.Fatalf("expected 1 composite trace, got %d", len(composites))
	}
	if len(composites[0].Hops) != 2 {
		t.Fatalf("expected 2 hops, got %d", len(composites[0].Hops))
	}

	cur := NewCursor(composites[0])
	if cur.Done() {
		t.Fatalf("cursor should not be done at start")
	}
	cur.NotifyCall(callerCallInstr)
	if cur.Done() {
		t.Fatalf("cursor should have one more hop after the first call")
	}
	cur.NotifyCall(calleeCallInstr)
	if !cur.Done() {
		t.Fatalf("cursor should be done once the target call is reached")
	}
}
