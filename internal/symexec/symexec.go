// Package symexec is the bounded symbolic executor: a work-list
// interpreter that explores a slice's call chain, tracking a value
// lattice, a minimal memory model, path constraints and a visited-branch
// set, and emits one Trace per satisfiable, non-duplicate path that
// passes through the slice's target call.
package symexec

import (
	"math/rand"
	"strings"

	"arbitrar/internal/blocktrace"
	"arbitrar/internal/ir"
	"arbitrar/internal/slicer"
	"arbitrar/internal/solver"
	"arbitrar/internal/values"
)

// Budgets bounds one slice's exploration.
type Budgets struct {
	MaxWork                  int
	MaxTracePerSlice         int
	MaxExploredTracePerSlice int
	MaxNodePerTrace          int
}

// Seed is one initial work item: the block to start executing, and
// (when block-trace guidance is enabled) the composite trace cursor that
// names its live successors.
type Seed struct {
	Block  ir.Block
	Cursor *blocktrace.Cursor
}

// Interpreter explores a single slice.
type Interpreter struct {
	Slice   *slicer.Slice
	Checker solver.Checker
	Budgets Budgets

	// NoRandomWork disables randomized work selection, popping the last
	// pushed item instead (deterministic, useful for tests).
	NoRandomWork bool
	Seed         int64

	// callCounter mints call-site result ids, shared across every work item
	// of this slice's exploration (unlike the per-state Alloca/Sym
	// counters). One Interpreter explores exactly one slice on one
	// goroutine, so no locking is needed.
	callCounter int
}

// Result is one slice's exploration outcome.
type Result struct {
	Traces []Trace
	Meta   MetaData
}

type workItem struct {
	instr  ir.Instruction
	state  *State
	cursor *blocktrace.Cursor
}

// Run explores every seed to completion (or budget exhaustion) and
// returns the surviving traces plus the outcome counters.
func (in *Interpreter) Run(seeds []Seed) Result {
	rng := rand.New(rand.NewSource(in.Seed))

	var work []workItem
	push := func(w workItem) {
		if in.Budgets.MaxWork > 0 && len(work) >= in.Budgets.MaxWork {
			return // a work item that would push beyond max_work is dropped
		}
		work = append(work, w)
	}

	for _, seed := range seeds {
		instrs := seed.Block.Instructions()
		if len(instrs) == 0 {
			continue
		}
		push(workItem{instr: instrs[0], state: newState(in.Slice.Entry), cursor: seed.Cursor})
	}

	emitted := map[string]bool{}
	var traces []Trace
	meta := MetaData{}

	for len(work) > 0 {
		if in.Budgets.MaxTracePerSlice > 0 && meta.Proper >= in.Budgets.MaxTracePerSlice {
			break
		}
		if in.Budgets.MaxExploredTracePerSlice > 0 && meta.Explored >= in.Budgets.MaxExploredTracePerSlice {
			break
		}

		idx := len(work) - 1
		if !in.NoRandomWork {
			idx = rng.Intn(len(work))
		}
		item := work[idx]
		work[idx] = work[len(work)-1]
		work = work[:len(work)-1]

		follow := in.step(item)
		if len(follow) == 0 {
			meta.Explored++
			in.finish(item.state, emitted, &traces, &meta)
			continue
		}
		for _, f := range follow {
			push(f)
		}
	}

	return Result{Traces: traces, Meta: meta}
}

// finish classifies a work item that stopped advancing and, for a
// properly-returned path through the target, checks feasibility and
// de-duplication before emitting it.
func (in *Interpreter) finish(state *State, emitted map[string]bool, traces *[]Trace, meta *MetaData) {
	if !state.HasTarget {
		meta.NoTarget++
		return
	}
	switch state.Reason {
	case ReasonBranchExplored:
		meta.BranchExplored++
	case ReasonExceedingLength:
		meta.ExceedingLength++
	case ReasonUnreachable:
		meta.Unreachable++
	case ReasonProperlyReturned:
		trace := Trace{Nodes: append([]TraceNode(nil), state.Trace...), Target: state.TargetNode}
		key := trace.BlockTrace().Key()
		if emitted[key] {
			meta.Duplicate++
			return
		}
		if !in.Checker.IsSatisfiable(state.Constraints) {
			meta.PathUnsat++
			return
		}
		emitted[key] = true
		meta.Proper++
		*traces = append(*traces, trace)
	}
}

// step executes exactly one instruction for item and returns the work
// items that continue from it: zero means the work is finished (the
// reason is already recorded on item.state), one means straight-line
// continuation (possibly into a new block or frame), and two or more mean
// the step forked.
func (in *Interpreter) step(item workItem) []workItem {
	instr := item.instr
	state := item.state
	frame := state.topFrame()

	switch instr.Kind() {
	case ir.Return:
		return in.stepReturn(item, instr.(ir.ReturnInstr), frame)
	case ir.UncondBr:
		return in.stepUncondBr(item, instr.(ir.UncondBrInstr))
	case ir.CondBr:
		return in.stepCondBr(item, instr.(ir.CondBrInstr), frame)
	case ir.Switch:
		return in.stepSwitch(item, instr.(ir.SwitchInstr), frame)
	case ir.Call:
		return in.stepCall(item, instr.(ir.CallInstr), frame)
	case ir.Alloca:
		return advanceNoNode(item, instr)
	case ir.Store:
		return in.stepStore(item, instr.(ir.StoreInstr), frame)
	case ir.Load:
		return in.stepLoad(item, instr.(ir.LoadInstr), frame)
	case ir.ICmp:
		return in.stepICmp(item, instr.(ir.ICmpInstr), frame)
	case ir.Phi:
		return in.stepPhi(item, instr.(ir.PhiInstr), frame, state)
	case ir.GEP:
		return in.stepGEP(item, instr.(ir.GEPInstr), frame)
	case ir.Unary:
		return in.stepUnary(item, instr.(ir.UnaryInstr), frame)
	case ir.Binary:
		return in.stepBinary(item, instr.(ir.BinaryInstr), frame)
	case ir.Unreachable:
		state.Reason = ReasonUnreachable
		return nil
	default:
		return advanceNoNode(item, instr)
	}
}

// appendNode records instr's effect in state's trace and enforces the
// per-trace length budget.
func (in *Interpreter) appendNode(state *State, instr ir.Instruction, sem values.Semantics, res *values.Value) bool {
	state.Trace = append(state.Trace, TraceNode{
		Loc: instr.DebugLoc(), Sem: sem, Res: res, HasRes: res != nil, Block: instr.Block(),
	})
	if in.Budgets.MaxNodePerTrace > 0 && len(state.Trace) > in.Budgets.MaxNodePerTrace {
		state.Reason = ReasonExceedingLength
		return false
	}
	return true
}

// advanceNoNode moves to the next instruction in the same block without
// recording a trace node (alloca is lazy; any façade instruction kind
// this interpreter does not specifically model falls through here too).
func advanceNoNode(item workItem, instr ir.Instruction) []workItem {
	next, ok := instr.Next()
	if !ok {
		item.state.Reason = ReasonUnreachable
		return nil
	}
	item.instr = next
	return []workItem{item}
}

// advanceAfter records instr's node then moves to the next instruction in
// the same block.
func (in *Interpreter) advanceAfter(item workItem, instr ir.Instruction, sem values.Semantics, res *values.Value) []workItem {
	if !in.appendNode(item.state, instr, sem, res) {
		return nil
	}
	return advanceNoNode(item, instr)
}

func (in *Interpreter) stepReturn(item workItem, r ir.ReturnInstr, frame *Frame) []workItem {
	state := item.state
	var retVal *values.Value
	if op, ok := r.Operand(); ok {
		retVal = eval(state, frame, op)
	}
	if !in.appendNode(state, r, values.NewSemRet(retVal), nil) {
		return nil
	}

	popped := state.Frames[len(state.Frames)-1]
	state.Frames = state.Frames[:len(state.Frames)-1]
	if len(state.Frames) == 0 {
		state.Reason = ReasonProperlyReturned
		return nil
	}
	if !popped.HasCall {
		state.Reason = ReasonUnreachable
		return nil
	}
	if retVal != nil {
		state.Trace[popped.CallNode].Res = retVal
		state.Trace[popped.CallNode].HasRes = true
	}
	callerFrame := state.topFrame()
	if retVal != nil {
		callerFrame.Locals[popped.CallSite] = retVal
	}
	next, ok := popped.CallSite.Next()
	if !ok {
		state.Reason = ReasonUnreachable
		return nil
	}
	item.instr = next
	return []workItem{item}
}

func (in *Interpreter) stepUncondBr(item workItem, u ir.UncondBrInstr) []workItem {
	state := item.state
	if !in.appendNode(state, u, values.NewSemUncondBr(u.EndsLoop()), nil) {
		return nil
	}
	state.PrevBlock = u.Block()
	target := u.Target()
	if item.cursor != nil {
		item.cursor.Advance(target)
	}
	instrs := target.Instructions()
	if len(instrs) == 0 {
		state.Reason = ReasonUnreachable
		return nil
	}
	item.instr = instrs[0]
	return []workItem{item}
}

func (in *Interpreter) stepCondBr(item workItem, c ir.CondBrInstr, frame *Frame) []workItem {
	state := item.state
	condVal := eval(state, frame, c.Condition())
	cmp, hasCmp := condVal.AsComparison()
	isLoopHeader := c.Block().IsLoopHeader()

	if item.cursor != nil {
		return in.stepCondBrGuided(item, c, condVal, cmp, hasCmp, isLoopHeader)
	}
	return in.stepCondBrFree(item, c, condVal, cmp, hasCmp, isLoopHeader)
}

func enter(item workItem, dest ir.Block) []workItem {
	instrs := dest.Instructions()
	if len(instrs) == 0 {
		item.state.Reason = ReasonUnreachable
		return nil
	}
	item.instr = instrs[0]
	return []workItem{item}
}

func (in *Interpreter) stepCondBrGuided(item workItem, c ir.CondBrInstr, condVal *values.Value, cmp values.Comparison, hasCmp, isLoopHeader bool) []workItem {
	state := item.state
	next, ok := item.cursor.NextBlock(c.Block())
	if !ok {
		state.Reason = ReasonBranchExplored
		return nil
	}
	key := branchKey{c.Block(), next}
	if state.Visited[key] {
		state.Reason = ReasonBranchExplored
		return nil
	}
	branch := values.Then
	if next.Label() != c.ThenBlock().Label() {
		branch = values.Else
	}
	if !in.appendNode(state, c, values.NewSemCondBr(condVal, branch, isLoopHeader), nil) {
		return nil
	}
	state.Visited[key] = true
	if hasCmp && !isLoopHeader {
		state.Constraints = append(state.Constraints, solver.Constraint{Cmp: cmp, Taken: branch.IsThen()})
	}
	state.PrevBlock = c.Block()
	item.cursor.Advance(next)
	return enter(item, next)
}

func (in *Interpreter) stepCondBrFree(item workItem, c ir.CondBrInstr, condVal *values.Value, cmp values.Comparison, hasCmp, isLoopHeader bool) []workItem {
	state := item.state
	thenKey := branchKey{c.Block(), c.ThenBlock()}
	elseKey := branchKey{c.Block(), c.ElseBlock()}
	thenVisited, elseVisited := state.Visited[thenKey], state.Visited[elseKey]

	if thenVisited && elseVisited {
		state.Reason = ReasonBranchExplored
		return nil
	}

	var follow []workItem

	if !thenVisited && !elseVisited {
		// Fork: else becomes a queued alternative, then continues inline.
		elseState := state.clone()
		elseState.Visited[elseKey] = true
		elseItem := workItem{instr: item.instr, state: elseState, cursor: nil}
		if in.appendNode(elseState, c, values.NewSemCondBr(condVal, values.Else, isLoopHeader), nil) {
			if hasCmp && !isLoopHeader {
				elseState.Constraints = append(elseState.Constraints, solver.Constraint{Cmp: cmp, Taken: false})
			}
			elseState.PrevBlock = c.Block()
			if f := enter(elseItem, c.ElseBlock()); len(f) > 0 {
				follow = append(follow, f...)
			}
		}
	}

	if !thenVisited {
		state.Visited[thenKey] = true
		if !in.appendNode(state, c, values.NewSemCondBr(condVal, values.Then, isLoopHeader), nil) {
			return follow
		}
		if hasCmp && !isLoopHeader {
			state.Constraints = append(state.Constraints, solver.Constraint{Cmp: cmp, Taken: true})
		}
		state.PrevBlock = c.Block()
		if f := enter(item, c.ThenBlock()); len(f) > 0 {
			follow = append(follow, f...)
		}
		return follow
	}

	// Then already visited, else is not: take else on the current state.
	state.Visited[elseKey] = true
	if !in.appendNode(state, c, values.NewSemCondBr(condVal, values.Else, isLoopHeader), nil) {
		return follow
	}
	if hasCmp && !isLoopHeader {
		state.Constraints = append(state.Constraints, solver.Constraint{Cmp: cmp, Taken: false})
	}
	state.PrevBlock = c.Block()
	if f := enter(item, c.ElseBlock()); len(f) > 0 {
		follow = append(follow, f...)
	}
	return follow
}

func (in *Interpreter) stepSwitch(item workItem, sw ir.SwitchInstr, frame *Frame) []workItem {
	state := item.state
	condVal := eval(state, frame, sw.Condition())
	if !in.appendNode(state, sw, values.NewSemSwitch(condVal), nil) {
		return nil
	}
	state.PrevBlock = sw.Block()

	var follow []workItem
	any := false
	for _, c := range sw.Cases() {
		key := branchKey{sw.Block(), c.Dest}
		if state.Visited[key] {
			continue
		}
		any = true
		caseState := state.clone()
		caseState.Visited[key] = true
		if f := enter(workItem{instr: item.instr, state: caseState, cursor: nil}, c.Dest); len(f) > 0 {
			follow = append(follow, f...)
		}
	}
	defKey := branchKey{sw.Block(), sw.Default()}
	if !state.Visited[defKey] {
		any = true
		state.Visited[defKey] = true
		if f := enter(item, sw.Default()); len(f) > 0 {
			follow = append(follow, f...)
		}
	}
	if !any {
		state.Reason = ReasonBranchExplored
		return nil
	}
	return follow
}

func isIntrinsicCall(call ir.CallInstr) bool {
	callee, ok := call.Callee()
	if !ok {
		return false
	}
	return strings.Contains(callee.Name(), "llvm.")
}

func (in *Interpreter) stepCall(item workItem, call ir.CallInstr, frame *Frame) []workItem {
	state := item.state
	if isIntrinsicCall(call) {
		return advanceNoNode(item, call)
	}
	if item.cursor != nil {
		item.cursor.NotifyCall(call)
	}

	callee, hasCallee := call.Callee()
	isTargetCall := call == in.Slice.Instr
	stepIn := hasCallee &&
		!state.onStack(callee) &&
		callee.Name() != in.Slice.Callee.Name() &&
		!callee.IsDeclaration() &&
		in.Slice.Contains(callee)

	if stepIn {
		args := evalArgs(state, frame, call.Args())
		calleeVal := values.NewFunc(callee.SimpName())
		if !in.appendNode(state, call, values.NewSemCall(calleeVal, args...), nil) {
			return nil
		}
		nodeIdx := len(state.Trace) - 1
		newFrame := &Frame{
			Func: callee, HasCall: true, CallNode: nodeIdx, CallSite: call,
			Locals: make(map[ir.Instruction]*values.Value), Args: args,
		}
		state.Frames = append(state.Frames, newFrame)
		entryBlock, ok := callee.FirstBlock()
		if !ok {
			state.Reason = ReasonUnreachable
			return nil
		}
		return enter(item, entryBlock)
	}

	// Opaque call: never entered, modeled as a fresh call-result value.
	var calleeVal *values.Value
	if hasCallee {
		calleeVal = values.NewFunc(callee.SimpName())
	} else {
		calleeVal = eval(state, frame, call.CalleeOperand())
	}
	args := evalArgs(state, frame, call.Args())

	var resVal *values.Value
	if call.CalleeType().HasReturn {
		resVal = values.NewCall(in.nextCallID(), calleeVal, args...)
	}
	if !in.appendNode(state, call, values.NewSemCall(calleeVal, args...), resVal) {
		return nil
	}
	if resVal != nil {
		frame.Locals[call] = resVal
	}
	if isTargetCall && !state.HasTarget {
		state.HasTarget = true
		state.TargetNode = len(state.Trace) - 1
	}
	return advanceNoNode(item, call)
}

func (in *Interpreter) stepStore(item workItem, s ir.StoreInstr, frame *Frame) []workItem {
	state := item.state
	addr := eval(state, frame, s.Address())
	val := eval(state, frame, s.Value())
	if !in.appendNode(state, s, values.NewSemStore(addr, val), nil) {
		return nil
	}
	state.Globals[addr.CacheKey()] = globalEntry{Loc: addr, Val: val}
	return advanceNoNode(item, s)
}

func (in *Interpreter) stepLoad(item workItem, l ir.LoadInstr, frame *Frame) []workItem {
	state := item.state
	addr := eval(state, frame, l.Address())
	var res *values.Value
	if entry, ok := state.Globals[addr.CacheKey()]; ok {
		res = entry.Val
	} else if addr.Kind != values.Unknown {
		res = values.NewSym(state.SymCounter)
		state.SymCounter++
		state.Globals[addr.CacheKey()] = globalEntry{Loc: addr, Val: res}
	} else {
		res = values.NewUnknown()
	}
	if !in.appendNode(state, l, values.NewSemLoad(addr), res) {
		return nil
	}
	frame.Locals[l] = res
	return advanceNoNode(item, l)
}

func (in *Interpreter) stepICmp(item workItem, ic ir.ICmpInstr, frame *Frame) []workItem {
	state := item.state
	op0 := eval(state, frame, ic.Op0())
	op1 := eval(state, frame, ic.Op1())
	res := values.NewICmp(ic.Predicate(), op0, op1)
	if !in.appendNode(state, ic, values.NewSemICmp(ic.Predicate(), op0, op1), res) {
		return nil
	}
	frame.Locals[ic] = res
	return advanceNoNode(item, ic)
}

// stepPhi resolves the incoming value from PrevBlock and installs it as
// the phi's local result. Phi carries no Semantics variant -- it is pure
// control-flow bookkeeping, not an observable effect -- so no trace node
// is recorded and the length budget is not charged.
func (in *Interpreter) stepPhi(item workItem, p ir.PhiInstr, frame *Frame, state *State) []workItem {
	var chosen ir.Operand
	if state.PrevBlock != nil {
		for _, inc := range p.Incoming() {
			if inc.Block.Label() == state.PrevBlock.Label() {
				chosen = inc.Value
				break
			}
		}
	}
	var res *values.Value
	if chosen != nil {
		res = eval(state, frame, chosen)
	} else {
		res = values.NewUnknown()
	}
	frame.Locals[p] = res
	return advanceNoNode(item, p)
}

func (in *Interpreter) stepGEP(item workItem, g ir.GEPInstr, frame *Frame) []workItem {
	state := item.state
	base := eval(state, frame, g.Base())
	idxOps := g.Indices()
	idxVals := make([]*values.Value, len(idxOps))
	for i, op := range idxOps {
		idxVals[i] = eval(state, frame, op)
	}
	res := values.NewGEP(base, idxVals...)
	if !in.appendNode(state, g, values.NewSemGEP(base, idxVals...), res) {
		return nil
	}
	frame.Locals[g] = res
	return advanceNoNode(item, g)
}

func (in *Interpreter) stepUnary(item workItem, u ir.UnaryInstr, frame *Frame) []workItem {
	state := item.state
	op0 := eval(state, frame, u.Operand())
	res := values.NewUna(u.Op(), op0)
	if !in.appendNode(state, u, values.NewSemUna(u.Op(), op0), res) {
		return nil
	}
	frame.Locals[u] = res
	return advanceNoNode(item, u)
}

func (in *Interpreter) stepBinary(item workItem, b ir.BinaryInstr, frame *Frame) []workItem {
	state := item.state
	op0 := eval(state, frame, b.Op0())
	op1 := eval(state, frame, b.Op1())
	res := values.NewBin(b.Op(), op0, op1)
	if !in.appendNode(state, b, values.NewSemBin(b.Op(), op0, op1), res) {
		return nil
	}
	frame.Locals[b] = res
	return advanceNoNode(item, b)
}

func (in *Interpreter) nextCallID() int {
	in.callCounter++
	return in.callCounter
}
