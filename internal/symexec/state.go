package symexec

import (
	"arbitrar/internal/ir"
	"arbitrar/internal/solver"
	"arbitrar/internal/values"
)

// Frame is one activation record on the interpreter's call stack.
type Frame struct {
	Func ir.Function
	// HasCall is false only for the bottommost (entry) frame.
	HasCall  bool
	CallNode int
	CallSite ir.CallInstr
	Locals   map[ir.Instruction]*values.Value
	Args     []*values.Value
}

func (f *Frame) clone() *Frame {
	locals := make(map[ir.Instruction]*values.Value, len(f.Locals))
	for k, v := range f.Locals {
		locals[k] = v
	}
	return &Frame{
		Func: f.Func, HasCall: f.HasCall, CallNode: f.CallNode, CallSite: f.CallSite,
		Locals: locals, Args: append([]*values.Value(nil), f.Args...),
	}
}

// globalEntry is one binding of the global memory map: a location value to
// the value last stored (or lazily loaded) there.
type globalEntry struct {
	Loc *values.Value
	Val *values.Value
}

// branchKey identifies one directed branch edge for the visited set.
type branchKey struct {
	From, To ir.Block
}

// State is a symbolic-execution state: one exploration path's full
// mutable context. It is cloned at every branch point so forked
// alternatives never alias memory or the visited-branch set.
type State struct {
	Frames  []*Frame
	Globals map[string]globalEntry

	Visited map[branchKey]bool

	Trace      []TraceNode
	TargetNode int
	HasTarget  bool

	PrevBlock ir.Block
	Reason    Reason

	AllocaCounter int
	SymCounter    int

	Constraints []solver.Constraint
}

func newState(entry ir.Function) *State {
	numArgs := entry.Type().NumParams
	args := make([]*values.Value, numArgs)
	for i := range args {
		args[i] = values.NewArg(i)
	}
	return &State{
		Frames: []*Frame{{
			Func:   entry,
			Locals: make(map[ir.Instruction]*values.Value),
			Args:   args,
		}},
		Globals: make(map[string]globalEntry),
		Visited: make(map[branchKey]bool),
	}
}

func (s *State) topFrame() *Frame { return s.Frames[len(s.Frames)-1] }

func (s *State) onStack(fn ir.Function) bool {
	for _, f := range s.Frames {
		if f.Func.Name() == fn.Name() {
			return true
		}
	}
	return false
}

// clone deep-copies everything a forked alternative must not alias:
// frames (and their local-memory maps), the global memory map, the
// visited-branch set, the trace so far, and the path-constraint list.
// Counters are copied by value, so each fork's fresh ids diverge
// independently after the fork point, matching the spec's "per-state
// counters" lifecycle.
func (s *State) clone() *State {
	frames := make([]*Frame, len(s.Frames))
	for i, f := range s.Frames {
		frames[i] = f.clone()
	}
	globals := make(map[string]globalEntry, len(s.Globals))
	for k, v := range s.Globals {
		globals[k] = v
	}
	visited := make(map[branchKey]bool, len(s.Visited))
	for k, v := range s.Visited {
		visited[k] = v
	}
	return &State{
		Frames:        frames,
		Globals:       globals,
		Visited:       visited,
		Trace:         append([]TraceNode(nil), s.Trace...),
		TargetNode:    s.TargetNode,
		HasTarget:     s.HasTarget,
		PrevBlock:     s.PrevBlock,
		Reason:        ReasonNone,
		AllocaCounter: s.AllocaCounter,
		SymCounter:    s.SymCounter,
		Constraints:   append([]solver.Constraint(nil), s.Constraints...),
	}
}
