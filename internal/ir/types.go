package ir

import "fmt"

// Type is a minimal type surface: the analyzer only reads a type's String
// form (the slicer compares parameter types by it); IntType additionally
// records its bit width.
type Type interface {
	String() string
}

// IntType is an integer of the given bit width (1 for i1/bool, 8, 32, 64, ...).
type IntType struct {
	Bits int
}

func (i IntType) String() string { return fmt.Sprintf("i%d", i.Bits) }

// PointerType is any pointer type; the façade does not track pointee types.
type PointerType struct{}

func (PointerType) String() string { return "ptr" }

// VoidType is the type of an instruction that produces no value.
type VoidType struct{}

func (VoidType) String() string { return "void" }

// OperandKind classifies an Operand the way the interpreter needs to
// dispatch on it when it mints a semantic Value for the operand.
type OperandKind int

const (
	// OpArgument is a reference to one of the containing function's formal
	// parameters.
	OpArgument OperandKind = iota
	// OpInstruction is a reference to the result value of a prior
	// instruction (its defining instruction is reachable via Instr()).
	OpInstruction
	// OpGlobal is a reference to a named global variable.
	OpGlobal
	// OpFunction is a direct reference to a function (as a value, not a
	// call target -- e.g. a function used as a callback argument).
	OpFunction
	// OpConstantInt is a compile-time integer constant.
	OpConstantInt
	// OpNull is the null/zero pointer constant.
	OpNull
	// OpUnknown covers anything the façade cannot resolve further: a
	// function pointer computed from unmodeled arithmetic, inline
	// assembly results, vector/aggregate constants, and the like. The
	// interpreter evaluates these to a FuncPtr or Asm value when the
	// operand's reason names a function pointer or inline asm, and to an
	// Unknown value otherwise.
	OpUnknown
)

// Operand is one operand of an Instruction. Callers switch on Kind() and
// type-assert to the matching specialized interface below.
type Operand interface {
	Kind() OperandKind
	// Type is the operand's static type, when known.
	Type() Type
}

// ArgumentOperand is an OpArgument Operand.
type ArgumentOperand interface {
	Operand
	Index() int
}

// InstructionOperand is an OpInstruction Operand.
type InstructionOperand interface {
	Operand
	Instr() Instruction
}

// GlobalOperand is an OpGlobal Operand.
type GlobalOperand interface {
	Operand
	Name() string
}

// FunctionOperand is an OpFunction Operand.
type FunctionOperand interface {
	Operand
	Func() Function
}

// ConstantIntOperand is an OpConstantInt Operand.
type ConstantIntOperand interface {
	Operand
	Int() int64
}

// NullOperand is an OpNull Operand.
type NullOperand interface {
	Operand
}

// UnknownOperand is an OpUnknown Operand.
type UnknownOperand interface {
	Operand
	// Reason is a short human-readable note on why the operand could not
	// be resolved further, e.g. "inline asm" or "vector constant".
	Reason() string
}
