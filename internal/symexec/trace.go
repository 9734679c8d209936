package symexec

import (
	"encoding/json"

	"arbitrar/internal/ir"
	"arbitrar/internal/values"
)

// TraceNode is one recorded instruction's observable effect.
type TraceNode struct {
	Loc    string
	Sem    values.Semantics
	Res    *values.Value
	HasRes bool

	// Block is the instruction's containing block; it is not part of the
	// wire format (recomputed from IR positions, not from the trace file)
	// but is needed in-process to compress a trace into its block trace.
	Block ir.Block
}

// Trace is an ordered, emitted symbolic-execution trace: the node
// sequence plus the index of the node that is the call to the sliced
// target.
type Trace struct {
	Nodes  []TraceNode
	Target int
}

// BlockTrace is the sequence of blocks induced by a Trace, compressing
// consecutive nodes in the same block down to one entry.
type BlockTrace []ir.Block

// BlockTrace compresses t's node sequence into its induced block trace.
func (t Trace) BlockTrace() BlockTrace {
	var bt BlockTrace
	for _, n := range t.Nodes {
		if len(bt) > 0 && bt[len(bt)-1].Label() == n.Block.Label() {
			continue
		}
		bt = append(bt, n.Block)
	}
	return bt
}

// Key renders bt as a comparable string, used to de-duplicate traces that
// induce the same block trace within a slice.
func (bt BlockTrace) Key() string {
	var b []byte
	for _, blk := range bt {
		b = append(b, blk.Label()...)
		b = append(b, '\x00')
	}
	return string(b)
}

// jsonTrace is the on-disk shape: {"target": <int>, "instrs": [...]}.
type jsonTrace struct {
	Target int              `json:"target"`
	Instrs []jsonTraceNode  `json:"instrs"`
}

type jsonTraceNode struct {
	Loc string           `json:"loc"`
	Sem values.Semantics `json:"sem"`
	Res *values.Value    `json:"res"`
}

// MarshalJSON renders the trace in the on-disk {target, instrs} shape.
func (t Trace) MarshalJSON() ([]byte, error) {
	w := jsonTrace{Target: t.Target, Instrs: make([]jsonTraceNode, len(t.Nodes))}
	for i, n := range t.Nodes {
		var res *values.Value
		if n.HasRes {
			res = n.Res
		}
		w.Instrs[i] = jsonTraceNode{Loc: n.Loc, Sem: n.Sem, Res: res}
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses the on-disk {target, instrs} shape. The resulting
// nodes carry no Block (it is not serialized); callers that need block
// information must recompute it from the IR the trace is replayed against.
func (t *Trace) UnmarshalJSON(data []byte) error {
	var w jsonTrace
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	nodes := make([]TraceNode, len(w.Instrs))
	for i, n := range w.Instrs {
		nodes[i] = TraceNode{Loc: n.Loc, Sem: n.Sem, Res: n.Res, HasRes: n.Res != nil}
	}
	*t = Trace{Nodes: nodes, Target: w.Target}
	return nil
}
