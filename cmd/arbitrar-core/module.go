package main

// Loading a whole-program IR module from a real bitcode file is an
// external collaborator this tool only consumes through internal/ir's
// façade; no bitcode reader ships in this repository. This file loads the
// façade's own JSON interchange form instead -- the same shape tests and
// fixtures across the repository build through internal/ir's in-memory
// Builder, serialized so a run can be driven from a file on disk.

import (
	"encoding/json"
	"fmt"
	"os"

	"arbitrar/internal/ir"
)

type moduleJSON struct {
	Functions []functionJSON `json:"functions"`
}

type functionJSON struct {
	Name        string      `json:"name"`
	Params      int         `json:"params"`
	HasReturn   bool        `json:"has_return"`
	Filename    string      `json:"filename,omitempty"`
	Declaration bool        `json:"declaration,omitempty"`
	Blocks      []blockJSON `json:"blocks,omitempty"`
}

type blockJSON struct {
	Label        string      `json:"label"`
	LoopHeader   bool        `json:"loop_header,omitempty"`
	Instructions []instrJSON `json:"instructions"`
}

type operandJSON struct {
	Kind   string `json:"kind"` // arg | ref | global | func | int | null | unknown
	Index  int    `json:"index,omitempty"`
	Ref    string `json:"ref,omitempty"`
	Name   string `json:"name,omitempty"`
	Int    int64  `json:"int,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type switchCaseJSON struct {
	Value int64  `json:"value"`
	Dest  string `json:"dest"`
}

type incomingJSON struct {
	Block string      `json:"block"`
	Value operandJSON `json:"value"`
}

type instrJSON struct {
	ID  string `json:"id,omitempty"`
	Op  string `json:"op"`
	Loc string `json:"loc,omitempty"`

	Callee          string           `json:"callee,omitempty"`
	CalleeOperand   *operandJSON     `json:"callee_operand,omitempty"`
	CalleeParams    int              `json:"callee_params,omitempty"`
	CalleeHasReturn bool             `json:"callee_has_return,omitempty"`
	Args            []operandJSON    `json:"args,omitempty"`
	Cond            *operandJSON     `json:"cond,omitempty"`
	Then            string           `json:"then,omitempty"`
	Else            string           `json:"else,omitempty"`
	Target          string           `json:"target,omitempty"`
	EndsLoop        bool             `json:"ends_loop,omitempty"`
	Default         string           `json:"default,omitempty"`
	Cases           []switchCaseJSON `json:"cases,omitempty"`
	Operand         *operandJSON     `json:"operand,omitempty"`
	Addr            *operandJSON     `json:"addr,omitempty"`
	Value           *operandJSON     `json:"value,omitempty"`
	Pred            string           `json:"pred,omitempty"`
	Op0             *operandJSON     `json:"op0,omitempty"`
	Op1             *operandJSON     `json:"op1,omitempty"`
	Incoming        []incomingJSON   `json:"incoming,omitempty"`
	Indices         []operandJSON    `json:"indices,omitempty"`
	UnaryOp         string           `json:"unary_op,omitempty"`
	BinaryOp        string           `json:"binary_op,omitempty"`
}

// loadModule reads path as a moduleJSON document and assembles it into an
// in-memory ir.Module via the façade's Builder.
func loadModule(path string) (ir.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc moduleJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing module json: %w", err)
	}

	b := ir.NewBuilder()
	funcs := make(map[string]ir.Function, len(doc.Functions))
	funcBuilders := make(map[string]*ir.FuncBuilder, len(doc.Functions))

	for _, f := range doc.Functions {
		typ := ir.FuncType{NumParams: f.Params, HasReturn: f.HasReturn}
		if f.Declaration || len(f.Blocks) == 0 {
			fn := b.Declare(f.Name, typ)
			funcs[f.Name] = fn
			continue
		}
		fb := b.Function(f.Name, typ)
		if f.Filename != "" {
			fb.SetFilename(f.Filename)
		}
		funcBuilders[f.Name] = fb
		funcs[f.Name] = fb.Func()
	}

	for _, f := range doc.Functions {
		fb, ok := funcBuilders[f.Name]
		if !ok {
			continue
		}
		if err := buildFunctionBody(fb, f, funcs); err != nil {
			return nil, fmt.Errorf("function %q: %w", f.Name, err)
		}
	}

	return b.Build(), nil
}

func buildFunctionBody(fb *ir.FuncBuilder, f functionJSON, funcs map[string]ir.Function) error {
	blocks := make(map[string]*ir.BlockBuilder, len(f.Blocks))
	for _, bj := range f.Blocks {
		blocks[bj.Label] = fb.Block(bj.Label)
	}
	for _, bj := range f.Blocks {
		if bj.LoopHeader {
			fb.MarkLoopHeader(blocks[bj.Label])
		}
	}

	results := make(map[string]ir.Operand)
	resolve := func(o *operandJSON) (ir.Operand, error) {
		if o == nil {
			return nil, nil
		}
		switch o.Kind {
		case "arg":
			return ir.Arg(o.Index, ir.IntType{Bits: 64}), nil
		case "ref":
			op, ok := results[o.Ref]
			if !ok {
				return nil, fmt.Errorf("unresolved operand reference %q", o.Ref)
			}
			return op, nil
		case "global":
			return ir.Global(o.Name, ir.PointerType{}), nil
		case "func":
			fn, ok := funcs[o.Name]
			if !ok {
				return nil, fmt.Errorf("unknown function operand %q", o.Name)
			}
			return ir.FuncRef(fn), nil
		case "int":
			return ir.ConstInt(o.Int, ir.IntType{Bits: 64}), nil
		case "null":
			return ir.Null(), nil
		case "unknown", "":
			return ir.Unknown(o.Reason, ir.PointerType{}), nil
		default:
			return nil, fmt.Errorf("unknown operand kind %q", o.Kind)
		}
	}

	for _, bj := range f.Blocks {
		bb := blocks[bj.Label]
		for _, ins := range bj.Instructions {
			if err := appendInstruction(bb, ins, blocks, funcs, resolve, results); err != nil {
				return err
			}
		}
	}
	return nil
}

func appendInstruction(bb *ir.BlockBuilder, ins instrJSON, blocks map[string]*ir.BlockBuilder, funcs map[string]ir.Function, resolve func(*operandJSON) (ir.Operand, error), results map[string]ir.Operand) error {
	switch ins.Op {
	case "call":
		var callee ir.Function
		if ins.Callee != "" {
			callee = funcs[ins.Callee]
		}
		calleeOp, err := resolve(ins.CalleeOperand)
		if err != nil {
			return err
		}
		args := make([]ir.Operand, len(ins.Args))
		for i := range ins.Args {
			op, err := resolve(&ins.Args[i])
			if err != nil {
				return err
			}
			args[i] = op
		}
		calleeType := ir.FuncType{NumParams: ins.CalleeParams, HasReturn: ins.CalleeHasReturn}
		if callee != nil {
			calleeType = callee.Type()
		}
		res := bb.Call(callee, calleeOp, calleeType, args...)
		if ins.ID != "" {
			results[ins.ID] = res
		}
	case "condbr":
		cond, err := resolve(ins.Cond)
		if err != nil {
			return err
		}
		bb.CondBr(cond, blocks[ins.Then], blocks[ins.Else])
	case "uncondbr":
		bb.UncondBr(blocks[ins.Target], ins.EndsLoop)
	case "switch":
		cond, err := resolve(ins.Cond)
		if err != nil {
			return err
		}
		cases := make([]ir.SwitchCase, len(ins.Cases))
		for i, c := range ins.Cases {
			cases[i] = ir.SwitchCase{Value: ir.ConstInt(c.Value, ir.IntType{Bits: 64}), Dest: blocks[c.Dest].Block()}
		}
		bb.Switch(cond, blocks[ins.Default], cases...)
	case "return":
		op, err := resolve(ins.Operand)
		if err != nil {
			return err
		}
		bb.Return(op)
	case "unreachable":
		bb.Unreachable()
	case "alloca":
		res := bb.Alloca()
		if ins.ID != "" {
			results[ins.ID] = res
		}
	case "store":
		addr, err := resolve(ins.Addr)
		if err != nil {
			return err
		}
		val, err := resolve(ins.Value)
		if err != nil {
			return err
		}
		bb.Store(addr, val)
	case "load":
		addr, err := resolve(ins.Addr)
		if err != nil {
			return err
		}
		res := bb.Load(addr, ir.IntType{Bits: 64})
		if ins.ID != "" {
			results[ins.ID] = res
		}
	case "icmp":
		op0, err := resolve(ins.Op0)
		if err != nil {
			return err
		}
		op1, err := resolve(ins.Op1)
		if err != nil {
			return err
		}
		pred, err := parsePredicate(ins.Pred)
		if err != nil {
			return err
		}
		res := bb.ICmp(pred, op0, op1)
		if ins.ID != "" {
			results[ins.ID] = res
		}
	case "phi":
		incoming := make([]ir.PhiIncoming, len(ins.Incoming))
		for i, in := range ins.Incoming {
			val, err := resolve(&in.Value)
			if err != nil {
				return err
			}
			incoming[i] = ir.PhiIncoming{Block: blocks[in.Block].Block(), Value: val}
		}
		res := bb.Phi(ir.IntType{Bits: 64}, incoming...)
		if ins.ID != "" {
			results[ins.ID] = res
		}
	case "gep":
		base, err := resolve(ins.Addr)
		if err != nil {
			return err
		}
		indices := make([]ir.Operand, len(ins.Indices))
		for i := range ins.Indices {
			op, err := resolve(&ins.Indices[i])
			if err != nil {
				return err
			}
			indices[i] = op
		}
		res := bb.GEP(base, indices...)
		if ins.ID != "" {
			results[ins.ID] = res
		}
	case "unary":
		val, err := resolve(ins.Operand)
		if err != nil {
			return err
		}
		res := bb.Unary(ins.UnaryOp, val, ir.IntType{Bits: 64})
		if ins.ID != "" {
			results[ins.ID] = res
		}
	case "binary":
		op0, err := resolve(ins.Op0)
		if err != nil {
			return err
		}
		op1, err := resolve(ins.Op1)
		if err != nil {
			return err
		}
		res := bb.Binary(ins.BinaryOp, op0, op1, ir.IntType{Bits: 64})
		if ins.ID != "" {
			results[ins.ID] = res
		}
	case "other":
		bb.Other()
	default:
		return fmt.Errorf("unknown instruction op %q", ins.Op)
	}
	return nil
}

func parsePredicate(s string) (ir.Predicate, error) {
	switch s {
	case "eq", "EQ":
		return ir.EQ, nil
	case "ne", "NE":
		return ir.NE, nil
	case "slt", "SLT":
		return ir.SLT, nil
	case "sle", "SLE":
		return ir.SLE, nil
	case "sgt", "SGT":
		return ir.SGT, nil
	case "sge", "SGE":
		return ir.SGE, nil
	default:
		return 0, fmt.Errorf("unknown predicate %q", s)
	}
}
