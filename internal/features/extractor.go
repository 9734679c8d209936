// Package features implements the per-trace feature extraction pipeline:
// a fixed set of extractors, each walking the symbolic-execution trace
// around one target call site to derive a small JSON-shaped summary of
// how the call's return value and arguments are used.
package features

import (
	"arbitrar/internal/ir"
	"arbitrar/internal/slicer"
	"arbitrar/internal/symexec"
)

// Extractor is one feature-extraction rule. Init is called once per
// (slice, trace) pair before any Extract call, in the order traces are
// discovered; Finalize runs once all traces for a target have been seen;
// Extract then runs once more per trace to produce its JSON value.
type Extractor interface {
	Name() string
	Applies(target ir.Function, targetType ir.FuncType) bool
	Init(sliceID string, slice *slicer.Slice, numTraces int, trace *symexec.Trace)
	Finalize()
	Extract(sliceID string, slice *slicer.Slice, trace *symexec.Trace) any
}

// MaxArgIndex bounds the per-argument precondition/postcondition extractor
// set: one extractor per argument index 0..6, guarded at construction time
// by the target's arity.
const MaxArgIndex = 6

// Pipeline is one target function's applicable extractor subset, alive
// for the whole run of that target's slices.
type Pipeline struct {
	extractors []Extractor
}

// NewPipeline builds the fixed extractor set and narrows it to the ones
// that apply to target/targetType.
func NewPipeline(target ir.Function, targetType ir.FuncType) *Pipeline {
	all := []Extractor{
		newReturnValue(),
		newReturnCheck(),
	}
	for i := 0; i <= MaxArgIndex; i++ {
		all = append(all, newArgPrecondition(i), newArgPostcondition(i))
	}
	all = append(all, newCausality(true), newCausality(false), newControlFlow())

	p := &Pipeline{}
	for _, e := range all {
		if e.Applies(target, targetType) {
			p.extractors = append(p.extractors, e)
		}
	}
	return p
}

// Init folds one (slice, trace) pair through every applicable extractor's
// init phase.
func (p *Pipeline) Init(sliceID string, slice *slicer.Slice, numTraces int, trace *symexec.Trace) {
	for _, e := range p.extractors {
		e.Init(sliceID, slice, numTraces, trace)
	}
}

// Finalize runs every extractor's finalize phase, once all traces for
// this target have been folded through Init.
func (p *Pipeline) Finalize() {
	for _, e := range p.extractors {
		e.Finalize()
	}
}

// Extract renders one trace's feature object, keyed by extractor name.
func (p *Pipeline) Extract(sliceID string, slice *slicer.Slice, trace *symexec.Trace) map[string]any {
	out := make(map[string]any, len(p.extractors))
	for _, e := range p.extractors {
		out[e.Name()] = e.Extract(sliceID, slice, trace)
	}
	return out
}
