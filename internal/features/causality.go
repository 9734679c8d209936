package features

import (
	"sort"

	deadlock "github.com/sasha-s/go-deadlock"

	"arbitrar/internal/ir"
	"arbitrar/internal/slicer"
	"arbitrar/internal/symexec"
	"arbitrar/internal/values"
)

// defaultCausalityDictionarySize is the top-K cutoff every causality
// extractor starts with; it equals the default of
// config.Options.CausalityDictionarySize. NewPipeline builds the causality
// extractors at this size and internal/pipeline never calls
// SetDictionarySize, so the CausalityDictionarySize option does not change
// the cutoff of a pipeline run.
const defaultCausalityDictionarySize = 10

// causality accumulates, across every trace of a target, how often each
// callee name appears before (pre) or after (post) the target call, then
// reports per-trace co-occurrence flags against the top-K most frequent
// names.
type causality struct {
	pre            bool
	dictionarySize int

	mu        deadlock.Mutex
	frequency map[string]float64
	topK      []string
}

func newCausality(pre bool) *causality {
	return &causality{pre: pre, dictionarySize: defaultCausalityDictionarySize, frequency: make(map[string]float64)}
}

// SetDictionarySize overrides the top-K cutoff before any trace is folded in.
func (e *causality) SetDictionarySize(n int) { e.dictionarySize = n }

func (e *causality) Name() string {
	if e.pre {
		return "causality_pre"
	}
	return "causality_post"
}

func (*causality) Applies(ir.Function, ir.FuncType) bool { return true }

func (e *causality) sideNodes(trace *symexec.Trace) []symexec.TraceNode {
	if e.pre {
		return nodesBefore(trace)
	}
	return nodesAfter(trace)
}

func (e *causality) Init(_ string, _ *slicer.Slice, numTraces int, trace *symexec.Trace) {
	if numTraces <= 0 {
		numTraces = 1
	}
	seen := map[string]bool{}
	for _, n := range e.sideNodes(trace) {
		if n.Sem.Kind != values.SemCall || n.Sem.CallFunc == nil || n.Sem.CallFunc.Kind != values.Func {
			continue
		}
		seen[n.Sem.CallFunc.Name] = true
	}
	if len(seen) == 0 {
		return
	}
	inc := 1.0 / float64(numTraces)
	e.mu.Lock()
	for name := range seen {
		e.frequency[name] += inc
	}
	e.mu.Unlock()
}

func (e *causality) Finalize() {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.frequency))
	for name := range e.frequency {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		fi, fj := e.frequency[names[i]], e.frequency[names[j]]
		if fi != fj {
			return fi > fj
		}
		return names[i] < names[j]
	})
	if len(names) > e.dictionarySize {
		names = names[:e.dictionarySize]
	}
	e.topK = names
}

func (e *causality) Extract(_ string, _ *slicer.Slice, trace *symexec.Trace) any {
	root := trace.Nodes[trace.Target].Res
	nodes := e.sideNodes(trace)

	type occurrence struct {
		count          int
		sharesReturn   bool
		sharesArgument bool
	}
	byName := map[string]*occurrence{}
	for _, n := range nodes {
		if n.Sem.Kind != values.SemCall || n.Sem.CallFunc == nil || n.Sem.CallFunc.Kind != values.Func {
			continue
		}
		o := byName[n.Sem.CallFunc.Name]
		if o == nil {
			o = &occurrence{}
			byName[n.Sem.CallFunc.Name] = o
		}
		o.count++
		if root != nil && n.HasRes && n.Res.Equal(root) {
			o.sharesReturn = true
		}
		if root != nil {
			for _, a := range n.Sem.CallArgs {
				if a.Equal(root) {
					o.sharesArgument = true
				}
			}
		}
	}

	out := make(map[string]any, len(e.topK))
	for _, name := range e.topK {
		o, ok := byName[name]
		if !ok {
			out[name] = map[string]any{
				"invoked": false, "invoked_more_than_once": false,
				"share_return": false, "share_argument": false,
			}
			continue
		}
		out[name] = map[string]any{
			"invoked":                true,
			"invoked_more_than_once": o.count > 1,
			"share_return":           o.sharesReturn,
			"share_argument":         o.sharesArgument,
		}
	}
	return out
}
