// Package slicer carves, for each target function, the bounded set of
// program slices that reach it: an entry function, a bounded set of
// functions reachable from that entry, and the call site that reaches the
// target.
package slicer

import (
	"regexp"

	"arbitrar/internal/callgraph"
	"arbitrar/internal/ir"
)

// Slice is the bounded neighborhood of one call edge reaching a target
// function: the entry point the slice was grown from, the caller/callee of
// the target call site, and the set of functions the slice covers.
type Slice struct {
	Entry     ir.Function
	Caller    ir.Function
	Callee    ir.Function
	Instr     ir.CallInstr
	Functions map[string]ir.Function
}

// Contains reports whether fn is part of the slice.
func (s *Slice) Contains(fn ir.Function) bool {
	_, ok := s.Functions[fn.Name()]
	return ok
}

// TargetName is the simplified name of the slice's target function.
func (s *Slice) TargetName() string { return s.Callee.SimpName() }

// Size is the number of functions covered by the slice.
func (s *Slice) Size() int { return len(s.Functions) }

// TargetFilter decides whether a function is a slicing target. Both Include
// and Exclude are matched against the function's simplified name with any
// trailing clone suffix (".123") stripped; a nil Include matches everything,
// a nil Exclude matches nothing.
type TargetFilter struct {
	Include *regexp.Regexp
	Exclude *regexp.Regexp
}

func stripCloneSuffix(name string) string {
	i := -1
	for idx := len(name) - 1; idx >= 0; idx-- {
		if name[idx] == '.' {
			i = idx
			break
		}
	}
	if i < 0 {
		return name
	}
	suffix := name[i+1:]
	if suffix == "" {
		return name
	}
	for _, c := range suffix {
		if c < '0' || c > '9' {
			return name
		}
	}
	return name[:i]
}

// Matches reports whether simpName passes the filter.
func (f TargetFilter) Matches(simpName string) bool {
	name := stripCloneSuffix(simpName)
	if f.Include != nil && !f.Include.MatchString(name) {
		return false
	}
	if f.Exclude != nil && f.Exclude.MatchString(name) {
		return false
	}
	return true
}

// TargetEdgesMap maps each selected target's simplified name to the set of
// call edges that reach it.
type TargetEdgesMap map[string][]callgraph.Edge

// BuildTargetEdgesMap scans every node of g and, for each one the filter
// selects, records its incoming edges under its simplified name. Functions
// with no incoming edges contribute no entry (there is nothing to slice).
func BuildTargetEdgesMap(g *callgraph.CallGraph, filter TargetFilter) TargetEdgesMap {
	m := make(TargetEdgesMap)
	for _, fn := range g.Nodes() {
		name := fn.SimpName()
		if !filter.Matches(name) {
			continue
		}
		edges := g.InEdges(fn)
		if len(edges) == 0 {
			continue
		}
		m[name] = append(m[name], edges...)
	}
	return m
}

// Slicer carves slices out of a call graph.
type Slicer struct {
	Graph *callgraph.CallGraph
	// SliceDepth bounds both the upward entry search (exactly this many
	// hops) and the downward slice carving (2 * SliceDepth hops).
	SliceDepth int
	// EntryFilter, when set, only admits entries whose source filename
	// matches it; entries with no debug filename are always admitted.
	EntryFilter *regexp.Regexp
	// NoReduceSlice disables the directly-related reduction pass, keeping
	// every function the downward walk reached.
	NoReduceSlice bool
}

type fringeItem struct {
	fn    ir.Function
	depth int
}

// FindEntries walks the call graph upward from start (the caller side of a
// target edge) by exactly SliceDepth hops. A node reached at depth zero is
// an entry; a node with no incoming callers is also an entry even if the
// bound was not reached yet (it is a root). The search does not guard
// against revisiting a node along a different path, matching the bounded
// (depth strictly decreases every hop) but not cycle-safe walk of the
// original analyzer -- recursion in the call graph cannot loop this search
// forever, only revisit a node through distinct call chains.
func (s *Slicer) FindEntries(start ir.Function) []ir.Function {
	result := make(map[string]ir.Function)
	fringe := []fringeItem{{start, s.SliceDepth}}
	for len(fringe) > 0 {
		item := fringe[len(fringe)-1]
		fringe = fringe[:len(fringe)-1]

		if item.depth == 0 {
			result[item.fn.Name()] = item.fn
			continue
		}
		callers := s.Graph.InEdges(item.fn)
		if len(callers) == 0 {
			result[item.fn.Name()] = item.fn
			continue
		}
		for _, e := range callers {
			fringe = append(fringe, fringeItem{e.Caller, item.depth - 1})
		}
	}

	entries := make([]ir.Function, 0, len(result))
	for _, fn := range result {
		if !s.admitEntry(fn) {
			continue
		}
		entries = append(entries, fn)
	}
	return entries
}

func (s *Slicer) admitEntry(fn ir.Function) bool {
	if s.EntryFilter == nil {
		return true
	}
	name, ok := fn.Filename()
	if !ok {
		return true
	}
	return s.EntryFilter.MatchString(name)
}

// SliceOfEntry grows a slice from entry down to 2*SliceDepth hops,
// excluding the target edge's callee (functions past the target belong to
// a different slice), then applies slice reduction unless disabled.
func (s *Slicer) SliceOfEntry(entry ir.Function, edge callgraph.Edge) *Slice {
	fringe := []fringeItem{{entry, s.SliceDepth * 2}}
	visited := make(map[string]bool)
	functions := make(map[string]ir.Function)

	for len(fringe) > 0 {
		item := fringe[len(fringe)-1]
		fringe = fringe[:len(fringe)-1]
		visited[item.fn.Name()] = true

		if item.fn.Name() == edge.Callee.Name() {
			continue
		}
		functions[item.fn.Name()] = item.fn
		if item.depth <= 0 {
			continue
		}
		for _, e := range s.Graph.OutEdges(item.fn) {
			if visited[e.Callee.Name()] {
				continue
			}
			fringe = append(fringe, fringeItem{e.Callee, item.depth - 1})
		}
	}

	if !s.NoReduceSlice {
		functions = s.reduceSlice(edge.Callee, functions)
	}

	return &Slice{
		Entry:     entry,
		Caller:    edge.Caller,
		Callee:    edge.Callee,
		Instr:     edge.Instr,
		Functions: functions,
	}
}

// reduceSlice keeps only functions that lie within reach of some function
// directly related to target: first collect every function one hop past
// the slice's current members, keep the ones directly related to target,
// then keep a slice member iff a simple path of at most 2*SliceDepth edges
// connects it to one of those related functions.
func (s *Slicer) reduceSlice(target ir.Function, functions map[string]ir.Function) map[string]ir.Function {
	presented := make(map[string]ir.Function)
	for _, f := range functions {
		for _, e := range s.Graph.OutEdges(f) {
			presented[e.Callee.Name()] = e.Callee
		}
	}

	related := make(map[string]ir.Function)
	for name, f := range presented {
		if directlyRelated(f, target) {
			related[name] = f
		}
	}

	bound := s.SliceDepth * 2
	kept := make(map[string]ir.Function, len(functions))
	for name, f := range functions {
		for _, rf := range related {
			if f.Name() == rf.Name() || len(s.Graph.Paths(f, rf, bound)) > 0 {
				kept[name] = f
				break
			}
		}
	}
	return kept
}

// SlicesOfCallEdge finds every entry reaching edge's caller and carves a
// slice from each.
func (s *Slicer) SlicesOfCallEdge(edge callgraph.Edge) []*Slice {
	entries := s.FindEntries(edge.Caller)
	slices := make([]*Slice, 0, len(entries))
	for _, entry := range entries {
		slices = append(slices, s.SliceOfEntry(entry, edge))
	}
	return slices
}

// SlicesOfCallEdges carves slices for every edge, in edge order. Fanning
// this out across a worker pool is the orchestration layer's concern
// (internal/pipeline), not this package's.
func (s *Slicer) SlicesOfCallEdges(edges []callgraph.Edge) []*Slice {
	var all []*Slice
	for _, e := range edges {
		all = append(all, s.SlicesOfCallEdge(e)...)
	}
	return all
}

// TargetSlicesMap maps each target's simplified name to every slice found
// for it.
type TargetSlicesMap map[string][]*Slice

// BuildTargetSlicesMap carves slices for every target edge in targetEdges.
func (s *Slicer) BuildTargetSlicesMap(targetEdges TargetEdgesMap) TargetSlicesMap {
	result := make(TargetSlicesMap, len(targetEdges))
	for target, edges := range targetEdges {
		result[target] = s.SlicesOfCallEdges(edges)
	}
	return result
}

// directlyRelated decides whether two functions belong in each other's
// slicing neighborhood: either their simplified names share a first
// character, or the sets of parameter types their signatures mention
// overlap. The latter stands in for the original analyzer's named-struct-
// usage overlap check: this IR façade has no named struct type (only
// Int/Pointer/Void), so the closest available substitute is the textual
// signature shape a function exposes.
func directlyRelated(f1, f2 ir.Function) bool {
	n1, n2 := f1.SimpName(), f2.SimpName()
	if len(n1) > 0 && len(n2) > 0 && n1[0] == n2[0] {
		return true
	}
	return typeSetsIntersect(usedTypes(f1), usedTypes(f2))
}

func usedTypes(f ir.Function) map[string]bool {
	set := make(map[string]bool)
	for _, t := range f.Type().ParamTypes {
		set[t.String()] = true
	}
	return set
}

func typeSetsIntersect(a, b map[string]bool) bool {
	for k := range a {
		if b[k] {
			return true
		}
	}
	return false
}
