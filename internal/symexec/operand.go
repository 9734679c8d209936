package symexec

import (
	"arbitrar/internal/ir"
	"arbitrar/internal/values"
)

// eval resolves op to a semantic Value in the context of frame/state:
// instruction operands consult local memory (minting a fresh Alloca value
// lazily on first reference to an Alloca instruction), argument operands
// index the frame's argument vector, and constants map directly onto
// their matching Value variant.
func eval(state *State, frame *Frame, op ir.Operand) *values.Value {
	if op == nil {
		return values.NewUnknown()
	}
	switch op.Kind() {
	case ir.OpArgument:
		idx := op.(ir.ArgumentOperand).Index()
		if idx >= 0 && idx < len(frame.Args) {
			return frame.Args[idx]
		}
		return values.NewUnknown()

	case ir.OpInstruction:
		instr := op.(ir.InstructionOperand).Instr()
		if v, ok := frame.Locals[instr]; ok {
			return v
		}
		if instr.Kind() == ir.Alloca {
			v := values.NewAlloca(state.AllocaCounter)
			state.AllocaCounter++
			frame.Locals[instr] = v
			return v
		}
		// Not yet evaluated (e.g. a phi or call result this work item
		// hasn't reached) -- treat as opaque rather than failing.
		return values.NewUnknown()

	case ir.OpGlobal:
		return values.NewGlob(op.(ir.GlobalOperand).Name())

	case ir.OpFunction:
		return values.NewFunc(op.(ir.FunctionOperand).Func().SimpName())

	case ir.OpConstantInt:
		return values.NewInt(op.(ir.ConstantIntOperand).Int())

	case ir.OpNull:
		return values.NewNull()

	case ir.OpUnknown:
		u := op.(ir.UnknownOperand)
		switch u.Reason() {
		case "function pointer":
			return values.NewFuncPtr()
		case "inline asm":
			return values.NewAsm()
		default:
			return values.NewUnknown()
		}

	default:
		return values.NewUnknown()
	}
}

// evalArgs evaluates every operand in ops, in order.
func evalArgs(state *State, frame *Frame, ops []ir.Operand) []*values.Value {
	out := make([]*values.Value, len(ops))
	for i, op := range ops {
		out[i] = eval(state, frame, op)
	}
	return out
}
