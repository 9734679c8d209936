// Package callgraph builds a whole-program call graph from an ir.Module
// and enumerates bounded-depth simple paths through it.
package callgraph

import "arbitrar/internal/ir"

// Edge is one call instruction connecting a caller to a callee.
type Edge struct {
	Caller ir.Function
	Callee ir.Function
	Instr  ir.CallInstr
}

// CallGraph is a directed multigraph: function nodes, call-instruction
// edges. Multiple edges between the same pair of functions (multiple call
// sites) are distinct edges.
type CallGraph struct {
	nodes  []ir.Function
	index  map[string]int // function Name() -> index into nodes
	edges  []Edge
	out    map[int][]int // node index -> edge indices leaving it
	in     map[int][]int // node index -> edge indices entering it
}

func newCallGraph() *CallGraph {
	return &CallGraph{
		index: make(map[string]int),
		out:   make(map[int][]int),
		in:    make(map[int][]int),
	}
}

func (g *CallGraph) nodeID(f ir.Function) int {
	name := f.Name()
	if id, ok := g.index[name]; ok {
		return id
	}
	id := len(g.nodes)
	g.nodes = append(g.nodes, f)
	g.index[name] = id
	return id
}

func (g *CallGraph) addEdge(caller, callee ir.Function, instr ir.CallInstr) {
	callerID := g.nodeID(caller)
	calleeID := g.nodeID(callee)
	edgeID := len(g.edges)
	g.edges = append(g.edges, Edge{Caller: caller, Callee: callee, Instr: instr})
	g.out[callerID] = append(g.out[callerID], edgeID)
	g.in[calleeID] = append(g.in[calleeID], edgeID)
}

// FromModule scans every instruction of every function in m and adds an
// edge (caller, call instruction, callee) whenever the call instruction
// names a concrete callee function. Calls through function pointers or
// inline asm contribute no edge. When removeLLVMFuncs is set, any node
// whose Name() contains "llvm." (and the edges touching it) is dropped
// after construction, matching the original analyzer's cleanup of
// compiler intrinsics from the graph.
func FromModule(m ir.Module, removeLLVMFuncs bool) *CallGraph {
	g := newCallGraph()
	for _, fn := range m.Functions() {
		g.nodeID(fn) // ensure every function is a node even if it calls nothing
		for _, blk := range fn.Blocks() {
			for _, instr := range blk.Instructions() {
				if instr.Kind() != ir.Call {
					continue
				}
				call, ok := instr.(ir.CallInstr)
				if !ok {
					continue
				}
				callee, ok := call.Callee()
				if !ok {
					continue
				}
				g.addEdge(fn, callee, call)
			}
		}
	}
	if removeLLVMFuncs {
		g.removeLLVMFuncs()
	}
	return g
}

func containsLLVMPrefix(name string) bool {
	for i := 0; i+5 <= len(name); i++ {
		if name[i:i+5] == "llvm." {
			return true
		}
	}
	return false
}

func (g *CallGraph) removeLLVMFuncs() {
	keep := make([]bool, len(g.nodes))
	for i, n := range g.nodes {
		keep[i] = !containsLLVMPrefix(n.Name())
	}

	var filteredEdges []Edge
	for _, e := range g.edges {
		callerID := g.index[e.Caller.Name()]
		calleeID := g.index[e.Callee.Name()]
		if keep[callerID] && keep[calleeID] {
			filteredEdges = append(filteredEdges, e)
		}
	}

	ng := newCallGraph()
	for i, n := range g.nodes {
		if keep[i] {
			ng.nodeID(n)
		}
	}
	for _, e := range filteredEdges {
		ng.addEdge(e.Caller, e.Callee, e.Instr)
	}
	*g = *ng
}

// Nodes returns every function in the graph.
func (g *CallGraph) Nodes() []ir.Function { return g.nodes }

// Edges returns every edge in the graph.
func (g *CallGraph) Edges() []Edge { return g.edges }

// InEdges returns every edge whose callee is fn.
func (g *CallGraph) InEdges(fn ir.Function) []Edge {
	id, ok := g.index[fn.Name()]
	if !ok {
		return nil
	}
	out := make([]Edge, 0, len(g.in[id]))
	for _, eid := range g.in[id] {
		out = append(out, g.edges[eid])
	}
	return out
}

// OutEdges returns every edge whose caller is fn.
func (g *CallGraph) OutEdges(fn ir.Function) []Edge {
	id, ok := g.index[fn.Name()]
	if !ok {
		return nil
	}
	out := make([]Edge, 0, len(g.out[id]))
	for _, eid := range g.out[id] {
		out = append(out, g.edges[eid])
	}
	return out
}

// PathStep is one hop of a Path: the edge taken and the node arrived at.
type PathStep struct {
	Edge Edge
	To   ir.Function
}

// Path is a simple walk through the call graph: a begin node followed by
// the sequence of (edge, next node) hops that reached it.
type Path struct {
	From  ir.Function
	Steps []PathStep
}

// Functions returns the node sequence of the path, from first to last.
func (p Path) Functions() []ir.Function {
	out := make([]ir.Function, 0, len(p.Steps)+1)
	out = append(out, p.From)
	for _, s := range p.Steps {
		out = append(out, s.To)
	}
	return out
}

// Paths enumerates every simple path (no repeated node) from `from` to
// `to` with at most maxDepth edges, via bounded depth-first search.
func (g *CallGraph) Paths(from, to ir.Function, maxDepth int) []Path {
	fromID, ok := g.index[from.Name()]
	if !ok {
		return nil
	}
	toID, ok := g.index[to.Name()]
	if !ok {
		return nil
	}

	var results []Path
	visited := make(map[int]bool)
	var steps []PathStep

	var walk func(nodeID, depth int)
	walk = func(nodeID, depth int) {
		if nodeID == toID && len(steps) > 0 {
			results = append(results, Path{From: from, Steps: append([]PathStep(nil), steps...)})
			return
		}
		if depth >= maxDepth {
			return
		}
		visited[nodeID] = true
		for _, eid := range g.out[nodeID] {
			e := g.edges[eid]
			nextID := g.index[e.Callee.Name()]
			if visited[nextID] {
				continue
			}
			steps = append(steps, PathStep{Edge: e, To: e.Callee})
			walk(nextID, depth+1)
			steps = steps[:len(steps)-1]
		}
		visited[nodeID] = false
	}
	walk(fromID, 0)
	return results
}
