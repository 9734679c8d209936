// Package blocktrace enumerates intra-procedural block paths and composes
// them, across a call-graph path, into guided block traces the symbolic
// executor can follow deterministically.
package blocktrace

import (
	"arbitrar/internal/callgraph"
	"arbitrar/internal/ir"
)

// BlockPath is a simple sequence of blocks, first to last.
type BlockPath []ir.Block

// PathsTo enumerates up to maxTraces simple block paths from fn's first
// block to the block containing target, via bounded depth-first search
// over the function's block graph (no block is repeated on one path: a
// function's block graph is usually small and loops back on itself, so an
// unbounded search would never terminate). The single-block case (target
// lives in fn's first block) yields exactly one trivial path.
func PathsTo(fn ir.Function, target ir.Instruction, maxTraces int) []BlockPath {
	first, ok := fn.FirstBlock()
	if !ok {
		return nil
	}
	destLabel := target.Block().Label()
	if first.Label() == destLabel {
		return []BlockPath{{first}}
	}
	if maxTraces <= 0 {
		return nil
	}

	var results []BlockPath
	visited := map[string]bool{}
	var path []ir.Block

	var walk func(b ir.Block)
	walk = func(b ir.Block) {
		if len(results) >= maxTraces {
			return
		}
		visited[b.Label()] = true
		path = append(path, b)
		if b.Label() == destLabel {
			results = append(results, append(BlockPath(nil), path...))
		} else {
			for _, succ := range b.Successors() {
				if succ == nil || visited[succ.Label()] {
					continue
				}
				walk(succ)
				if len(results) >= maxTraces {
					break
				}
			}
		}
		path = path[:len(path)-1]
		visited[b.Label()] = false
	}
	walk(first)
	return results
}

// HopPath is one leg of a composite trace: the function the interpreter
// is stepping through, the call instruction that leaves it for the next
// hop (or reaches the target, for the final hop), and the intra-procedural
// block path leading to that instruction.
type HopPath struct {
	Func   ir.Function
	Instr  ir.CallInstr
	Blocks BlockPath
}

// CompositeTrace is one fully inter-procedural guided block trace: a
// sequence of hops connecting the slice's entry to the target call site.
type CompositeTrace struct {
	Hops []HopPath
}

// Composite builds the Cartesian product of each hop's intra-procedural
// block paths along callPath, capped at maxTraces total composite traces
// (the per-hop enumeration is itself capped at maxTraces; multiplying
// hops together can still explode, so the product is capped again as it
// is built, dropping the remainder rather than enumerating it).
func Composite(callPath callgraph.Path, maxTraces int) []CompositeTrace {
	if len(callPath.Steps) == 0 || maxTraces <= 0 {
		return nil
	}

	perHop := make([][]BlockPath, len(callPath.Steps))
	for i, step := range callPath.Steps {
		perHop[i] = PathsTo(step.Edge.Caller, step.Edge.Instr, maxTraces)
		if len(perHop[i]) == 0 {
			return nil
		}
	}

	var results []CompositeTrace
	combo := make([]HopPath, len(callPath.Steps))

	var build func(hop int)
	build = func(hop int) {
		if len(results) >= maxTraces {
			return
		}
		if hop == len(callPath.Steps) {
			results = append(results, CompositeTrace{Hops: append([]HopPath(nil), combo...)})
			return
		}
		step := callPath.Steps[hop]
		for _, bp := range perHop[hop] {
			combo[hop] = HopPath{Func: step.Edge.Caller, Instr: step.Edge.Instr, Blocks: bp}
			build(hop + 1)
			if len(results) >= maxTraces {
				return
			}
		}
	}
	build(0)
	return results
}

// Cursor drives a single symbolic-execution work item along one
// CompositeTrace: it names, at each conditional branch, the single live
// successor, and advances to the next hop once the current hop's call
// site has been visited.
type Cursor struct {
	trace *CompositeTrace
	hop    int
	pos    int // index of the current (already-executed) block within the hop
}

// NewCursor starts a cursor at the first block of the first hop.
func NewCursor(trace CompositeTrace) *Cursor {
	return &Cursor{trace: &trace, hop: 0, pos: 0}
}

// Done reports whether every hop has been exhausted, i.e. the trace has
// reached the final call site.
func (c *Cursor) Done() bool {
	return c.hop >= len(c.trace.Hops)
}

// NextBlock names the single successor of current that the guided trace
// prescribes, if current matches the cursor's expected position.
func (c *Cursor) NextBlock(current ir.Block) (ir.Block, bool) {
	if c.Done() {
		return nil, false
	}
	blocks := c.trace.Hops[c.hop].Blocks
	if c.pos >= len(blocks)-1 {
		return nil, false
	}
	if blocks[c.pos].Label() != current.Label() {
		return nil, false
	}
	return blocks[c.pos+1], true
}

// Advance records that the interpreter moved into next, which must be the
// block NextBlock just named.
func (c *Cursor) Advance(next ir.Block) {
	if c.Done() {
		return
	}
	blocks := c.trace.Hops[c.hop].Blocks
	if c.pos+1 < len(blocks) && blocks[c.pos+1].Label() == next.Label() {
		c.pos++
	}
}

// NotifyCall tells the cursor that instr was just visited; if it is the
// designated call site of the current hop, the cursor moves on to the
// next hop's block path.
func (c *Cursor) NotifyCall(instr ir.CallInstr) {
	if c.Done() {
		return
	}
	if c.trace.Hops[c.hop].Instr == instr {
		c.hop++
		c.pos = 0
	}
}

// TargetInstr is the call instruction the final hop reaches -- the
// target call site itself.
func (c *Cursor) TargetInstr() ir.CallInstr {
	return c.trace.Hops[len(c.trace.Hops)-1].Instr
}
