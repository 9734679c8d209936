// Package values implements the semantic value algebra: the tagged-union
// Value type used both as a concrete operand value and as a symbolic
// expression built up during symbolic execution, plus the Semantics type
// describing what an instruction did at trace-emit time.
package values

import (
	"encoding/json"
	"fmt"
	"strings"

	"arbitrar/internal/ir"
)

// Kind discriminates a Value's variant.
type Kind int

const (
	Arg Kind = iota
	Sym
	Glob
	Func
	FuncPtr
	Asm
	Int
	Null
	Alloca
	GEP
	Bin
	Una
	ICmp
	Call
	Unknown
)

var kindNames = map[Kind]string{
	Arg: "Arg", Sym: "Sym", Glob: "Glob", Func: "Func", FuncPtr: "FuncPtr",
	Asm: "Asm", Int: "Int", Null: "Null", Alloca: "Alloca", GEP: "GEP",
	Bin: "Bin", Una: "Una", ICmp: "ICmp", Call: "Call", Unknown: "Unknown",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Unknown"
}

// Value is the tagged union. Only the fields relevant to Kind are
// populated; it is a struct rather than an interface so instances are
// directly comparable with Equal and usable as a recursive tree without
// an allocation per accessor.
type Value struct {
	Kind Kind

	// Arg / Sym / Alloca: index into the respective id space.
	Index int

	// Glob / Func: the name.
	Name string

	// Int: the literal.
	IntVal int64

	// GEP: base location plus index operands.
	Loc     *Value
	Indices []*Value

	// Bin: opcode (the façade's raw BinaryInstr.Op() string) plus operands.
	Op       string
	Op0, Op1 *Value

	// ICmp: predicate plus operands. Shares Op0/Op1 with Bin.
	Pred ir.Predicate

	// Call: a unique call-site id, the callee value, and argument values.
	CallID int
	Callee *Value
	Args   []*Value
}

func NewArg(index int) *Value    { return &Value{Kind: Arg, Index: index} }
func NewSym(index int) *Value    { return &Value{Kind: Sym, Index: index} }
func NewGlob(name string) *Value { return &Value{Kind: Glob, Name: name} }
func NewFunc(name string) *Value { return &Value{Kind: Func, Name: name} }
func NewFuncPtr() *Value         { return &Value{Kind: FuncPtr} }
func NewAsm() *Value             { return &Value{Kind: Asm} }
func NewInt(v int64) *Value      { return &Value{Kind: Int, IntVal: v} }
func NewNull() *Value            { return &Value{Kind: Null} }
func NewAlloca(index int) *Value { return &Value{Kind: Alloca, Index: index} }
func NewUnknown() *Value         { return &Value{Kind: Unknown} }

func NewGEP(loc *Value, indices ...*Value) *Value {
	return &Value{Kind: GEP, Loc: loc, Indices: indices}
}

func NewBin(op string, op0, op1 *Value) *Value {
	return &Value{Kind: Bin, Op: op, Op0: op0, Op1: op1}
}

func NewUna(op string, op0 *Value) *Value {
	return &Value{Kind: Una, Op: op, Op0: op0}
}

func NewICmp(pred ir.Predicate, op0, op1 *Value) *Value {
	return &Value{Kind: ICmp, Pred: pred, Op0: op0, Op1: op1}
}

func NewCall(callID int, callee *Value, args ...*Value) *Value {
	return &Value{Kind: Call, CallID: callID, Callee: callee, Args: args}
}

// Equal is structural equality, recursing through sub-values.
func (v *Value) Equal(other *Value) bool {
	if v == nil || other == nil {
		return v == other
	}
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case Arg, Sym, Alloca:
		return v.Index == other.Index
	case Glob, Func:
		return v.Name == other.Name
	case Int:
		return v.IntVal == other.IntVal
	case Null, FuncPtr, Asm, Unknown:
		return true
	case GEP:
		if !v.Loc.Equal(other.Loc) || len(v.Indices) != len(other.Indices) {
			return false
		}
		for i := range v.Indices {
			if !v.Indices[i].Equal(other.Indices[i]) {
				return false
			}
		}
		return true
	case Bin:
		return v.Op == other.Op && v.Op0.Equal(other.Op0) && v.Op1.Equal(other.Op1)
	case Una:
		return v.Op == other.Op && v.Op0.Equal(other.Op0)
	case ICmp:
		return v.Pred == other.Pred && v.Op0.Equal(other.Op0) && v.Op1.Equal(other.Op1)
	case Call:
		if v.CallID != other.CallID || !v.Callee.Equal(other.Callee) || len(v.Args) != len(other.Args) {
			return false
		}
		for i := range v.Args {
			if !v.Args[i].Equal(other.Args[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// CacheKey renders a canonical string encoding of v's structure, suitable
// as a map key for interning (the solver's symbol table, the interpreter's
// global memory map, the feature extractors' alias sets) in place of Rust's
// derived Hash+Eq.
func (v *Value) CacheKey() string {
	var sb strings.Builder
	v.writeKey(&sb)
	return sb.String()
}

func (v *Value) writeKey(sb *strings.Builder) {
	if v == nil {
		sb.WriteString("nil")
		return
	}
	switch v.Kind {
	case Arg:
		fmt.Fprintf(sb, "Arg(%d)", v.Index)
	case Sym:
		fmt.Fprintf(sb, "Sym(%d)", v.Index)
	case Alloca:
		fmt.Fprintf(sb, "Alloca(%d)", v.Index)
	case Glob:
		fmt.Fprintf(sb, "Glob(%s)", v.Name)
	case Func:
		fmt.Fprintf(sb, "Func(%s)", v.Name)
	case FuncPtr:
		sb.WriteString("FuncPtr")
	case Asm:
		sb.WriteString("Asm")
	case Int:
		fmt.Fprintf(sb, "Int(%d)", v.IntVal)
	case Null:
		sb.WriteString("Null")
	case Unknown:
		sb.WriteString("Unknown")
	case GEP:
		sb.WriteString("GEP(")
		v.Loc.writeKey(sb)
		for _, idx := range v.Indices {
			sb.WriteString(",")
			idx.writeKey(sb)
		}
		sb.WriteString(")")
	case Bin:
		fmt.Fprintf(sb, "Bin(%s,", v.Op)
		v.Op0.writeKey(sb)
		sb.WriteString(",")
		v.Op1.writeKey(sb)
		sb.WriteString(")")
	case Una:
		fmt.Fprintf(sb, "Una(%s,", v.Op)
		v.Op0.writeKey(sb)
		sb.WriteString(")")
	case ICmp:
		fmt.Fprintf(sb, "ICmp(%d,", v.Pred)
		v.Op0.writeKey(sb)
		sb.WriteString(",")
		v.Op1.writeKey(sb)
		sb.WriteString(")")
	case Call:
		fmt.Fprintf(sb, "Call(%d,", v.CallID)
		v.Callee.writeKey(sb)
		for _, a := range v.Args {
			sb.WriteString(",")
			a.writeKey(sb)
		}
		sb.WriteString(")")
	}
}

// Contains reports whether v structurally contains needle: true when v
// equals needle, or v is a GEP whose base (recursively) contains needle.
func (v *Value) Contains(needle *Value) bool {
	if v.Equal(needle) {
		return true
	}
	if v.Kind == GEP {
		return v.Loc.Contains(needle)
	}
	return false
}

// Comparison is an ICmp value narrowed to its predicate+operands, used by
// the path-constraint list.
type Comparison struct {
	Pred ir.Predicate
	Op0  *Value
	Op1  *Value
}

// AsComparison returns v narrowed to a Comparison when v.Kind == ICmp.
func (v *Value) AsComparison() (Comparison, bool) {
	if v.Kind != ICmp {
		return Comparison{}, false
	}
	return Comparison{Pred: v.Pred, Op0: v.Op0, Op1: v.Op1}, true
}

// jsonValue is the externally-tagged wire representation, one field set
// per variant, mirroring the shape serde produces for a Rust enum.
type jsonValue struct {
	Arg     *int       `json:"Arg,omitempty"`
	Sym     *int       `json:"Sym,omitempty"`
	Glob    *string    `json:"Glob,omitempty"`
	Func    *string    `json:"Func,omitempty"`
	FuncPtr bool       `json:"FuncPtr,omitempty"`
	Asm     bool       `json:"Asm,omitempty"`
	Int     *int64     `json:"Int,omitempty"`
	Null    bool       `json:"Null,omitempty"`
	Alloca  *int       `json:"Alloca,omitempty"`
	GEP     *jsonGEP   `json:"GEP,omitempty"`
	Bin     *jsonBin   `json:"Bin,omitempty"`
	Una     *jsonUna   `json:"Una,omitempty"`
	ICmp    *jsonICmp  `json:"ICmp,omitempty"`
	Call    *jsonCall  `json:"Call,omitempty"`
	Unknown bool       `json:"Unknown,omitempty"`
}

type jsonGEP struct {
	Loc     *Value   `json:"loc"`
	Indices []*Value `json:"indices"`
}

type jsonBin struct {
	Op  string `json:"op"`
	Op0 *Value `json:"op0"`
	Op1 *Value `json:"op1"`
}

// jsonUna is also used by Semantics' MarshalJSON/UnmarshalJSON (semantics.go).

type jsonICmp struct {
	Pred string `json:"pred"`
	Op0  *Value `json:"op0"`
	Op1  *Value `json:"op1"`
}

type jsonCall struct {
	ID   int      `json:"id"`
	Func *Value   `json:"func"`
	Args []*Value `json:"args"`
}

func predicateName(p ir.Predicate) string {
	names := map[ir.Predicate]string{
		ir.EQ: "EQ", ir.NE: "NE", ir.SGE: "SGE", ir.SGT: "SGT", ir.SLE: "SLE",
		ir.SLT: "SLT", ir.UGE: "UGE", ir.UGT: "UGT", ir.ULE: "ULE", ir.ULT: "ULT",
	}
	return names[p]
}

func predicateFromName(s string) ir.Predicate {
	byName := map[string]ir.Predicate{
		"EQ": ir.EQ, "NE": ir.NE, "SGE": ir.SGE, "SGT": ir.SGT, "SLE": ir.SLE,
		"SLT": ir.SLT, "UGE": ir.UGE, "UGT": ir.UGT, "ULE": ir.ULE, "ULT": ir.ULT,
	}
	return byName[s]
}

// MarshalJSON renders v as an externally-tagged variant, matching the
// shape the Rust analyzer's serde_json encoding produces for trace files.
func (v *Value) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	var w jsonValue
	switch v.Kind {
	case Arg:
		w.Arg = &v.Index
	case Sym:
		w.Sym = &v.Index
	case Glob:
		w.Glob = &v.Name
	case Func:
		w.Func = &v.Name
	case FuncPtr:
		w.FuncPtr = true
	case Asm:
		w.Asm = true
	case Int:
		w.Int = &v.IntVal
	case Null:
		w.Null = true
	case Alloca:
		w.Alloca = &v.Index
	case GEP:
		w.GEP = &jsonGEP{Loc: v.Loc, Indices: v.Indices}
	case Bin:
		w.Bin = &jsonBin{Op: v.Op, Op0: v.Op0, Op1: v.Op1}
	case Una:
		w.Una = &jsonUna{Op: v.Op, Op0: v.Op0}
	case ICmp:
		w.ICmp = &jsonICmp{Pred: predicateName(v.Pred), Op0: v.Op0, Op1: v.Op1}
	case Call:
		w.Call = &jsonCall{ID: v.CallID, Func: v.Callee, Args: v.Args}
	case Unknown:
		w.Unknown = true
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses the externally-tagged representation written by
// MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var w jsonValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch {
	case w.Arg != nil:
		*v = Value{Kind: Arg, Index: *w.Arg}
	case w.Sym != nil:
		*v = Value{Kind: Sym, Index: *w.Sym}
	case w.Glob != nil:
		*v = Value{Kind: Glob, Name: *w.Glob}
	case w.Func != nil:
		*v = Value{Kind: Func, Name: *w.Func}
	case w.FuncPtr:
		*v = Value{Kind: FuncPtr}
	case w.Asm:
		*v = Value{Kind: Asm}
	case w.Int != nil:
		*v = Value{Kind: Int, IntVal: *w.Int}
	case w.Null:
		*v = Value{Kind: Null}
	case w.Alloca != nil:
		*v = Value{Kind: Alloca, Index: *w.Alloca}
	case w.GEP != nil:
		*v = Value{Kind: GEP, Loc: w.GEP.Loc, Indices: w.GEP.Indices}
	case w.Bin != nil:
		*v = Value{Kind: Bin, Op: w.Bin.Op, Op0: w.Bin.Op0, Op1: w.Bin.Op1}
	case w.Una != nil:
		*v = Value{Kind: Una, Op: w.Una.Op, Op0: w.Una.Op0}
	case w.ICmp != nil:
		*v = Value{Kind: ICmp, Pred: predicateFromName(w.ICmp.Pred), Op0: w.ICmp.Op0, Op1: w.ICmp.Op1}
	case w.Call != nil:
		*v = Value{Kind: Call, CallID: w.Call.ID, Callee: w.Call.Func, Args: w.Call.Args}
	case w.Unknown:
		*v = Value{Kind: Unknown}
	default:
		return fmt.Errorf("values: empty or unrecognized Value encoding")
	}
	return nil
}
