package values

import (
	"encoding/json"
	"fmt"

	"arbitrar/internal/ir"
)

// Branch names which side of a conditional branch was taken.
type Branch int

const (
	Then Branch = iota
	Else
)

func (b Branch) IsThen() bool { return b == Then }
func (b Branch) IsElse() bool { return b == Else }

func (b Branch) String() string {
	if b == Then {
		return "Then"
	}
	return "Else"
}

// SemanticsKind discriminates a Semantics variant.
type SemanticsKind int

const (
	SemCall SemanticsKind = iota
	SemICmp
	SemCondBr
	SemUncondBr
	SemSwitch
	SemRet
	SemStore
	SemLoad
	SemGEP
	SemUna
	SemBin
)

// Semantics describes the observable effect of one instruction at
// trace-emit time. Only the fields relevant to Kind are populated.
type Semantics struct {
	Kind SemanticsKind

	// Call
	CallFunc *Value
	CallArgs []*Value

	// ICmp
	Pred ir.Predicate
	Op0  *Value
	Op1  *Value

	// CondBr
	CondBrCond    *Value
	CondBrBranch  Branch
	CondBrBegLoop bool

	// UncondBr
	UncondBrEndLoop bool

	// Switch
	SwitchCond *Value

	// Ret
	RetOp    *Value
	HasRetOp bool

	// Store
	StoreLoc *Value
	StoreVal *Value

	// Load / GEP share Loc; GEP additionally carries Indices.
	Loc     *Value
	Indices []*Value

	// Una
	UnaOp  string
	UnaOp0 *Value

	// Bin shares Op0/Op1 above.
	BinOp string
}

func NewSemCall(fn *Value, args ...*Value) Semantics {
	return Semantics{Kind: SemCall, CallFunc: fn, CallArgs: args}
}

func NewSemICmp(pred ir.Predicate, op0, op1 *Value) Semantics {
	return Semantics{Kind: SemICmp, Pred: pred, Op0: op0, Op1: op1}
}

func NewSemCondBr(cond *Value, br Branch, beginsLoop bool) Semantics {
	return Semantics{Kind: SemCondBr, CondBrCond: cond, CondBrBranch: br, CondBrBegLoop: beginsLoop}
}

func NewSemUncondBr(endsLoop bool) Semantics {
	return Semantics{Kind: SemUncondBr, UncondBrEndLoop: endsLoop}
}

func NewSemSwitch(cond *Value) Semantics { return Semantics{Kind: SemSwitch, SwitchCond: cond} }

func NewSemRet(op *Value) Semantics {
	return Semantics{Kind: SemRet, RetOp: op, HasRetOp: op != nil}
}

func NewSemStore(loc, val *Value) Semantics {
	return Semantics{Kind: SemStore, StoreLoc: loc, StoreVal: val}
}

func NewSemLoad(loc *Value) Semantics { return Semantics{Kind: SemLoad, Loc: loc} }

func NewSemGEP(loc *Value, indices ...*Value) Semantics {
	return Semantics{Kind: SemGEP, Loc: loc, Indices: indices}
}

func NewSemUna(op string, op0 *Value) Semantics {
	return Semantics{Kind: SemUna, UnaOp: op, UnaOp0: op0}
}

func NewSemBin(op string, op0, op1 *Value) Semantics {
	return Semantics{Kind: SemBin, BinOp: op, Op0: op0, Op1: op1}
}

// CallArguments returns the argument list of a SemCall, panicking if Kind
// is anything else: this mirrors the Rust `call_args` helper, which is
// only ever invoked by extractors that have already filtered to call
// targets.
func (s Semantics) CallArguments() []*Value {
	if s.Kind != SemCall {
		panic("values: CallArguments called on non-call semantics")
	}
	return s.CallArgs
}

// CallArgument returns the index'th call argument, or nil if out of range.
func (s Semantics) CallArgument(index int) *Value {
	args := s.CallArguments()
	if index < 0 || index >= len(args) {
		return nil
	}
	return args[index]
}

type jsonSemantics struct {
	Call    *jsonSemCall    `json:"Call,omitempty"`
	ICmp    *jsonICmp       `json:"ICmp,omitempty"`
	CondBr  *jsonCondBr     `json:"CondBr,omitempty"`
	UncondBr *jsonUncondBr  `json:"UncondBr,omitempty"`
	Switch  *jsonSwitch     `json:"Switch,omitempty"`
	Ret     *jsonRet        `json:"Ret,omitempty"`
	Store   *jsonStore      `json:"Store,omitempty"`
	Load    *jsonLoad       `json:"Load,omitempty"`
	GEP     *jsonGEP        `json:"GEP,omitempty"`
	Una     *jsonUna        `json:"Una,omitempty"`
	Bin     *jsonBin        `json:"Bin,omitempty"`
}

type jsonSemCall struct {
	Func *Value   `json:"func"`
	Args []*Value `json:"args"`
}
type jsonCondBr struct {
	Cond    *Value `json:"cond"`
	Br      string `json:"br"`
	BegLoop bool   `json:"beg_loop"`
}
type jsonUncondBr struct {
	EndLoop bool `json:"end_loop"`
}
type jsonSwitch struct {
	Cond *Value `json:"cond"`
}
type jsonRet struct {
	Op *Value `json:"op"`
}
type jsonStore struct {
	Loc *Value `json:"loc"`
	Val *Value `json:"val"`
}
type jsonLoad struct {
	Loc *Value `json:"loc"`
}
type jsonUna struct {
	Op  string `json:"op"`
	Op0 *Value `json:"op0"`
}

func (s Semantics) MarshalJSON() ([]byte, error) {
	var w jsonSemantics
	switch s.Kind {
	case SemCall:
		w.Call = &jsonSemCall{Func: s.CallFunc, Args: s.CallArgs}
	case SemICmp:
		w.ICmp = &jsonICmp{Pred: predicateName(s.Pred), Op0: s.Op0, Op1: s.Op1}
	case SemCondBr:
		w.CondBr = &jsonCondBr{Cond: s.CondBrCond, Br: s.CondBrBranch.String(), BegLoop: s.CondBrBegLoop}
	case SemUncondBr:
		w.UncondBr = &jsonUncondBr{EndLoop: s.UncondBrEndLoop}
	case SemSwitch:
		w.Switch = &jsonSwitch{Cond: s.SwitchCond}
	case SemRet:
		var op *Value
		if s.HasRetOp {
			op = s.RetOp
		}
		w.Ret = &jsonRet{Op: op}
	case SemStore:
		w.Store = &jsonStore{Loc: s.StoreLoc, Val: s.StoreVal}
	case SemLoad:
		w.Load = &jsonLoad{Loc: s.Loc}
	case SemGEP:
		w.GEP = &jsonGEP{Loc: s.Loc, Indices: s.Indices}
	case SemUna:
		w.Una = &jsonUna{Op: s.UnaOp, Op0: s.UnaOp0}
	case SemBin:
		w.Bin = &jsonBin{Op: s.BinOp, Op0: s.Op0, Op1: s.Op1}
	}
	return json.Marshal(w)
}

func (s *Semantics) UnmarshalJSON(data []byte) error {
	var w jsonSemantics
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch {
	case w.Call != nil:
		*s = Semantics{Kind: SemCall, CallFunc: w.Call.Func, CallArgs: w.Call.Args}
	case w.ICmp != nil:
		*s = Semantics{Kind: SemICmp, Pred: predicateFromName(w.ICmp.Pred), Op0: w.ICmp.Op0, Op1: w.ICmp.Op1}
	case w.CondBr != nil:
		br := Then
		if w.CondBr.Br == "Else" {
			br = Else
		}
		*s = Semantics{Kind: SemCondBr, CondBrCond: w.CondBr.Cond, CondBrBranch: br, CondBrBegLoop: w.CondBr.BegLoop}
	case w.UncondBr != nil:
		*s = Semantics{Kind: SemUncondBr, UncondBrEndLoop: w.UncondBr.EndLoop}
	case w.Switch != nil:
		*s = Semantics{Kind: SemSwitch, SwitchCond: w.Switch.Cond}
	case w.Ret != nil:
		*s = Semantics{Kind: SemRet, RetOp: w.Ret.Op, HasRetOp: w.Ret.Op != nil}
	case w.Store != nil:
		*s = Semantics{Kind: SemStore, StoreLoc: w.Store.Loc, StoreVal: w.Store.Val}
	case w.Load != nil:
		*s = Semantics{Kind: SemLoad, Loc: w.Load.Loc}
	case w.GEP != nil:
		*s = Semantics{Kind: SemGEP, Loc: w.GEP.Loc, Indices: w.GEP.Indices}
	case w.Una != nil:
		*s = Semantics{Kind: SemUna, UnaOp: w.Una.Op, UnaOp0: w.Una.Op0}
	case w.Bin != nil:
		*s = Semantics{Kind: SemBin, BinOp: w.Bin.Op, Op0: w.Bin.Op0, Op1: w.Bin.Op1}
	default:
		return fmt.Errorf("values: empty or unrecognized Semantics encoding")
	}
	return nil
}
