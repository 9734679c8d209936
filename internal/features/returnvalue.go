package features

import (
	"arbitrar/internal/ir"
	"arbitrar/internal/slicer"
	"arbitrar/internal/symexec"
	"arbitrar/internal/values"
)

// returnValue derives how the target call's result is consumed after the
// call: as a later call argument, as a binary operand, as a dereferenced
// location, or as (part of) the function's own return value.
type returnValue struct{}

func newReturnValue() *returnValue { return &returnValue{} }

func (*returnValue) Name() string { return "return_value" }

func (*returnValue) Applies(_ ir.Function, targetType ir.FuncType) bool { return targetType.HasReturn }

func (*returnValue) Init(string, *slicer.Slice, int, *symexec.Trace) {}
func (*returnValue) Finalize()                                       {}

func (*returnValue) Extract(_ string, _ *slicer.Slice, trace *symexec.Trace) any {
	result := map[string]any{
		"used": false, "used_in_call": false, "used_in_bin": false,
		"derefed": false, "returned": false, "indir_returned": false,
	}
	root := trace.Nodes[trace.Target].Res
	if root == nil {
		return result
	}
	after := nodesAfter(trace)
	aliases := buildAliasSet(after, root)

	for _, n := range after {
		switch n.Sem.Kind {
		case values.SemCall:
			for _, a := range n.Sem.CallArgs {
				if isAlias(aliases, a) {
					result["used"] = true
					result["used_in_call"] = true
				}
			}
		case values.SemBin:
			if isAlias(aliases, n.Sem.Op0) || isAlias(aliases, n.Sem.Op1) {
				result["used"] = true
				result["used_in_bin"] = true
			}
		case values.SemLoad:
			if isAlias(aliases, n.Sem.Loc) {
				result["derefed"] = true
			}
		case values.SemStore:
			if isAlias(aliases, n.Sem.StoreLoc) {
				result["derefed"] = true
			}
		}
	}

	for i := len(after) - 1; i >= 0; i-- {
		if after[i].Sem.Kind == values.SemRet {
			if after[i].Sem.HasRetOp {
				switch {
				case after[i].Sem.RetOp.Equal(root):
					result["returned"] = true
				case isAlias(aliases, after[i].Sem.RetOp):
					result["indir_returned"] = true
				}
			}
			break
		}
	}
	return result
}
