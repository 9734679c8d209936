package features

import (
	deadlock "github.com/sasha-s/go-deadlock"

	"arbitrar/internal/ir"
	"arbitrar/internal/slicer"
	"arbitrar/internal/symexec"
	"arbitrar/internal/values"
)

// returnCheck records, per slice, whether any trace checks the target's
// result value, then reports per-trace checking detail alongside that
// slice-level aggregate.
type returnCheck struct {
	mu           deadlock.Mutex
	sliceChecked map[string]bool
}

func newReturnCheck() *returnCheck {
	return &returnCheck{sliceChecked: make(map[string]bool)}
}

func (*returnCheck) Name() string { return "return_value_check" }

func (*returnCheck) Applies(_ ir.Function, targetType ir.FuncType) bool { return targetType.HasReturn }

func (e *returnCheck) Init(sliceID string, _ *slicer.Slice, _ int, trace *symexec.Trace) {
	root := trace.Nodes[trace.Target].Res
	if root == nil || !traceChecksValue(trace, root) {
		return
	}
	e.mu.Lock()
	e.sliceChecked[sliceID] = true
	e.mu.Unlock()
}

func (*returnCheck) Finalize() {}

func (e *returnCheck) Extract(sliceID string, _ *slicer.Slice, trace *symexec.Trace) any {
	e.mu.Lock()
	sliceChecked := e.sliceChecked[sliceID]
	e.mu.Unlock()

	result := map[string]any{
		"checked": false, "slice_checked": sliceChecked,
		"br_eq_zero": false, "br_neq_zero": false,
		"compared_with_zero": false, "compared_with_non_const": false,
	}
	root := trace.Nodes[trace.Target].Res
	if root == nil {
		return result
	}
	after := nodesAfter(trace)
	for i, n := range after {
		if n.Sem.Kind != values.SemICmp {
			continue
		}
		if !n.Sem.Op0.Equal(root) && !n.Sem.Op1.Equal(root) {
			continue
		}
		result["checked"] = true
		if n.HasRes {
			branch, ok := guardingBranch(after, i+1, n.Res, len(after))
			if ok {
				other := otherOperand(n, root)
				switch {
				case other != nil && (other.Kind == values.Null || (other.Kind == values.Int && other.IntVal == 0)):
					result["compared_with_zero"] = true
				case other != nil && other.Kind != values.Int:
					result["compared_with_non_const"] = true
				}
			}
			brEq, brNeq := zeroAndBranchFlags(n.Sem.Pred, branch, ok)
			result["br_eq_zero"] = brEq
			result["br_neq_zero"] = brNeq
		}
		break
	}
	return result
}
