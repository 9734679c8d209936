package features

import (
	"arbitrar/internal/ir"
	"arbitrar/internal/symexec"
	"arbitrar/internal/values"
)

// nodesAfter returns the trace nodes strictly after the target call node.
func nodesAfter(trace *symexec.Trace) []symexec.TraceNode {
	if trace.Target+1 >= len(trace.Nodes) {
		return nil
	}
	return trace.Nodes[trace.Target+1:]
}

// nodesBefore returns the trace nodes strictly before the target call node.
func nodesBefore(trace *symexec.Trace) []symexec.TraceNode {
	return trace.Nodes[:trace.Target]
}

// buildAliasSet starts from root and grows a set of values that (loosely)
// alias it along the given node sequence: a GEP based at a tracked value
// extends tracking to its result (a derived child pointer), and a store
// whose value is tracked extends tracking to its destination location (so
// a later load of that location, or a final return of it, is still
// recognized as touching root).
func buildAliasSet(nodes []symexec.TraceNode, root *values.Value) map[string]bool {
	aliases := map[string]bool{}
	if root == nil {
		return aliases
	}
	aliases[root.CacheKey()] = true
	for _, n := range nodes {
		switch n.Sem.Kind {
		case values.SemGEP:
			if aliases[key(n.Sem.Loc)] && n.HasRes {
				aliases[key(n.Res)] = true
			}
		case values.SemStore:
			if aliases[key(n.Sem.StoreVal)] {
				aliases[key(n.Sem.StoreLoc)] = true
			}
		}
	}
	return aliases
}

func key(v *values.Value) string {
	if v == nil {
		return "nil"
	}
	return v.CacheKey()
}

func isAlias(aliases map[string]bool, v *values.Value) bool {
	return v != nil && aliases[key(v)]
}

// otherOperand returns whichever of an icmp's two operands is not root,
// assuming exactly one of them equals root.
func otherOperand(n symexec.TraceNode, root *values.Value) *values.Value {
	if n.Sem.Op0 != nil && n.Sem.Op0.Equal(root) {
		return n.Sem.Op1
	}
	return n.Sem.Op0
}

// traceChecksValue reports whether any icmp in the trace compares root
// directly.
func traceChecksValue(trace *symexec.Trace, root *values.Value) bool {
	if root == nil {
		return false
	}
	for _, n := range trace.Nodes {
		if n.Sem.Kind == values.SemICmp && (n.Sem.Op0.Equal(root) || n.Sem.Op1.Equal(root)) {
			return true
		}
	}
	return false
}

// guardingBranch scans up to maxSteps nodes forward from start for a
// conditional branch whose condition is cond, returning its taken side.
func guardingBranch(nodes []symexec.TraceNode, start int, cond *values.Value, maxSteps int) (values.Branch, bool) {
	for j := start; j < len(nodes) && j < start+maxSteps; j++ {
		if nodes[j].Sem.Kind == values.SemCondBr && nodes[j].Sem.CondBrCond.Equal(cond) {
			return nodes[j].Sem.CondBrBranch, true
		}
	}
	return values.Then, false
}

// zeroAndBranchFlags derives the EQ/NE-against-zero-branch flags shared by
// the return-value-check and argument-precondition extractors: pred is the
// icmp predicate comparing the checked value, branch is the taken side of
// the nearest guarding conditional branch found.
func zeroAndBranchFlags(pred ir.Predicate, branch values.Branch, hasBranch bool) (brEqZero, brNeqZero bool) {
	if !hasBranch {
		return false, false
	}
	switch pred {
	case ir.EQ:
		return branch.IsThen(), branch.IsElse()
	case ir.NE:
		return branch.IsElse(), branch.IsThen()
	default:
		return false, false
	}
}

func classifyValue(v *values.Value) (isArg, isConstant, isGlobal, isAlloca bool) {
	if v == nil {
		return false, false, false, false
	}
	switch v.Kind {
	case values.Arg:
		return true, false, false, false
	case values.Int, values.Null:
		return false, true, false, false
	case values.Glob:
		return false, false, true, false
	case values.Alloca:
		return false, false, false, true
	default:
		return false, false, false, false
	}
}
