package features

import (
	"arbitrar/internal/ir"
	"arbitrar/internal/slicer"
	"arbitrar/internal/symexec"
	"arbitrar/internal/values"
)

// controlFlow summarizes the shape of the trace around the target call:
// whether it passed through a loop at all, whether the target itself ran
// inside one, and whether any conditional branch follows it.
type controlFlow struct{}

func newControlFlow() *controlFlow { return &controlFlow{} }

func (*controlFlow) Name() string { return "control_flow" }

func (*controlFlow) Applies(ir.Function, ir.FuncType) bool { return true }

func (*controlFlow) Init(string, *slicer.Slice, int, *symexec.Trace) {}
func (*controlFlow) Finalize()                                      {}

func (*controlFlow) Extract(_ string, _ *slicer.Slice, trace *symexec.Trace) any {
	hasLoop := false
	loopDepth := 0
	targetInLoop := false
	hasCondBrAfterTarget := false

	for i, n := range trace.Nodes {
		switch n.Sem.Kind {
		case values.SemCondBr:
			if n.Sem.CondBrBegLoop {
				hasLoop = true
				loopDepth++
			}
			if i > trace.Target {
				hasCondBrAfterTarget = true
			}
		case values.SemUncondBr:
			if n.Sem.UncondBrEndLoop && loopDepth > 0 {
				loopDepth--
			}
		}
		if i == trace.Target && loopDepth > 0 {
			targetInLoop = true
		}
	}

	return map[string]any{
		"has_loop":              hasLoop,
		"target_in_a_loop":      targetInLoop,
		"has_cond_br_after_target": hasCondBrAfterTarget,
	}
}
