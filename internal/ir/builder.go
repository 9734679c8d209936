package ir

import "fmt"

// This file is the in-memory reference implementation of the façade
// declared in ir.go. Nothing downstream of internal/ir depends on these
// concrete types directly -- they exist so tests across the repository
// can build small fixture modules without needing a real bitcode reader.

type module struct {
	fns []*function
}

func (m *module) Functions() []Function {
	out := make([]Function, len(m.fns))
	for i, f := range m.fns {
		out[i] = f
	}
	return out
}

type function struct {
	name     string
	simpName string
	decl     bool
	typ      FuncType
	filename string
	hasFile  bool
	blocks   []*block
}

func (f *function) Name() string     { return f.name }
func (f *function) SimpName() string { return f.simpName }
func (f *function) IsDeclaration() bool { return f.decl }
func (f *function) Type() FuncType   { return f.typ }
func (f *function) Filename() (string, bool) { return f.filename, f.hasFile }
func (f *function) FirstBlock() (Block, bool) {
	if len(f.blocks) == 0 {
		return nil, false
	}
	return f.blocks[0], true
}
func (f *function) Blocks() []Block {
	out := make([]Block, len(f.blocks))
	for i, b := range f.blocks {
		out[i] = b
	}
	return out
}

type block struct {
	label    string
	fn       *function
	instrs   []Instruction
	loopHead bool
}

func (b *block) Label() string { return b.label }
func (b *block) Instructions() []Instruction { return b.instrs }
func (b *block) Terminator() Instruction {
	if len(b.instrs) == 0 {
		return nil
	}
	return b.instrs[len(b.instrs)-1]
}
func (b *block) IsLoopHeader() bool { return b.loopHead }

func (b *block) Successors() []Block {
	term := b.Terminator()
	if term == nil {
		return nil
	}
	switch t := term.(type) {
	case *condBrInstr:
		return []Block{t.thenBlk, t.elseBlk}
	case *uncondBrInstr:
		return []Block{t.target}
	case *switchInstr:
		succs := make([]Block, 0, len(t.cases)+1)
		for _, c := range t.cases {
			succs = append(succs, c.Dest)
		}
		return append(succs, t.def)
	default:
		return nil
	}
}

func labelByBlock(blk Block) string {
	if blk == nil {
		return "<nil>"
	}
	return blk.Label()
}

// base is embedded by every concrete Instruction.
type base struct {
	kind Kind
	blk  *block
	pos  int
	loc  string
}

func (b *base) Kind() Kind      { return b.kind }
func (b *base) Block() Block    { return b.blk }
func (b *base) DebugLoc() string { return b.loc }
func (b *base) Next() (Instruction, bool) {
	if b.pos+1 >= len(b.blk.instrs) {
		return nil, false
	}
	return b.blk.instrs[b.pos+1], true
}

type returnInstr struct {
	base
	op    Operand
	hasOp bool
}

func (r *returnInstr) Operand() (Operand, bool) { return r.op, r.hasOp }

type condBrInstr struct {
	base
	cond    Operand
	thenBlk *block
	elseBlk *block
}

func (c *condBrInstr) Condition() Operand { return c.cond }
func (c *condBrInstr) ThenBlock() Block   { return c.thenBlk }
func (c *condBrInstr) ElseBlock() Block   { return c.elseBlk }

type uncondBrInstr struct {
	base
	target  *block
	endLoop bool
}

func (u *uncondBrInstr) Target() Block  { return u.target }
func (u *uncondBrInstr) EndsLoop() bool { return u.endLoop }

type switchInstr struct {
	base
	cond  Operand
	def   *block
	cases []SwitchCase
}

func (s *switchInstr) Condition() Operand  { return s.cond }
func (s *switchInstr) Default() Block      { return s.def }
func (s *switchInstr) Cases() []SwitchCase { return s.cases }

type callInstr struct {
	base
	callee     *function
	hasCallee  bool
	calleeOp   Operand
	calleeType FuncType
	args       []Operand
}

func (c *callInstr) Callee() (Function, bool) {
	if !c.hasCallee {
		return nil, false
	}
	return c.callee, true
}
func (c *callInstr) CalleeOperand() Operand { return c.calleeOp }
func (c *callInstr) CalleeType() FuncType   { return c.calleeType }
func (c *callInstr) Args() []Operand        { return c.args }

type allocaInstr struct{ base }

type storeInstr struct {
	base
	addr Operand
	val  Operand
}

func (s *storeInstr) Address() Operand { return s.addr }
func (s *storeInstr) Value() Operand   { return s.val }

type loadInstr struct {
	base
	addr Operand
}

func (l *loadInstr) Address() Operand { return l.addr }

type icmpInstr struct {
	base
	pred   Predicate
	op0    Operand
	op1    Operand
}

func (i *icmpInstr) Predicate() Predicate { return i.pred }
func (i *icmpInstr) Op0() Operand         { return i.op0 }
func (i *icmpInstr) Op1() Operand         { return i.op1 }

type phiInstr struct {
	base
	incoming []PhiIncoming
}

func (p *phiInstr) Incoming() []PhiIncoming { return p.incoming }

type gepInstr struct {
	base
	addrBase Operand
	indices  []Operand
}

func (g *gepInstr) Base() Operand      { return g.addrBase }
func (g *gepInstr) Indices() []Operand { return g.indices }

type unaryInstr struct {
	base
	op  string
	val Operand
}

func (u *unaryInstr) Op() string      { return u.op }
func (u *unaryInstr) Operand() Operand { return u.val }

type binaryInstr struct {
	base
	op   string
	op0  Operand
	op1  Operand
}

func (b *binaryInstr) Op() string  { return b.op }
func (b *binaryInstr) Op0() Operand { return b.op0 }
func (b *binaryInstr) Op1() Operand { return b.op1 }

type otherInstr struct{ base }

// Operands.

type argumentOperand struct {
	idx int
	typ Type
}

func (a argumentOperand) Kind() OperandKind { return OpArgument }
func (a argumentOperand) Type() Type        { return a.typ }
func (a argumentOperand) Index() int        { return a.idx }

// Arg builds a reference to the i'th formal parameter of the containing
// function.
func Arg(index int, typ Type) Operand { return argumentOperand{idx: index, typ: typ} }

type instructionOperand struct {
	instr Instruction
	typ   Type
}

func (o instructionOperand) Kind() OperandKind { return OpInstruction }
func (o instructionOperand) Type() Type        { return o.typ }
func (o instructionOperand) Instr() Instruction { return o.instr }

// Result builds a reference to the value produced by instr.
func Result(instr Instruction, typ Type) Operand {
	return instructionOperand{instr: instr, typ: typ}
}

type globalOperand struct {
	name string
	typ  Type
}

func (g globalOperand) Kind() OperandKind { return OpGlobal }
func (g globalOperand) Type() Type        { return g.typ }
func (g globalOperand) Name() string      { return g.name }

// Global builds a reference to a named global variable.
func Global(name string, typ Type) Operand { return globalOperand{name: name, typ: typ} }

type functionOperand struct {
	fn Function
}

func (f functionOperand) Kind() OperandKind { return OpFunction }
func (f functionOperand) Type() Type        { return PointerType{} }
func (f functionOperand) Func() Function    { return f.fn }

// FuncRef builds a direct reference to fn used as a first-class value.
func FuncRef(fn Function) Operand { return functionOperand{fn: fn} }

type constIntOperand struct {
	v   int64
	typ Type
}

func (c constIntOperand) Kind() OperandKind { return OpConstantInt }
func (c constIntOperand) Type() Type        { return c.typ }
func (c constIntOperand) Int() int64        { return c.v }

// ConstInt builds a compile-time integer constant.
func ConstInt(v int64, typ Type) Operand { return constIntOperand{v: v, typ: typ} }

type nullOperand struct{}

func (nullOperand) Kind() OperandKind { return OpNull }
func (nullOperand) Type() Type        { return PointerType{} }

// Null is the null pointer constant.
func Null() Operand { return nullOperand{} }

type unknownOperand struct {
	reason string
	typ    Type
}

func (u unknownOperand) Kind() OperandKind { return OpUnknown }
func (u unknownOperand) Type() Type        { return u.typ }
func (u unknownOperand) Reason() string    { return u.reason }

// Unknown builds an operand the façade could not resolve, e.g. an inline
// asm result or a vector constant.
func Unknown(reason string, typ Type) Operand { return unknownOperand{reason: reason, typ: typ} }

// Builder assembles an in-memory Module one function and block at a time.
type Builder struct {
	mod *module
}

// NewBuilder starts an empty module.
func NewBuilder() *Builder {
	return &Builder{mod: &module{}}
}

// Build returns the assembled Module. The Builder must not be reused
// afterwards.
func (b *Builder) Build() Module { return b.mod }

// Declare adds a function declaration (no body) to the module and returns
// it for use as a call target.
func (b *Builder) Declare(name string, typ FuncType) Function {
	f := &function{name: name, simpName: SimplifyName(name), decl: true, typ: typ}
	b.mod.fns = append(b.mod.fns, f)
	return f
}

// Function starts a new function definition.
func (b *Builder) Function(name string, typ FuncType) *FuncBuilder {
	f := &function{name: name, simpName: SimplifyName(name), typ: typ}
	b.mod.fns = append(b.mod.fns, f)
	return &FuncBuilder{b: b, fn: f}
}

// FuncBuilder assembles one function's blocks.
type FuncBuilder struct {
	b  *Builder
	fn *function
}

// SetFilename attaches debug-info source filename to the function.
func (fb *FuncBuilder) SetFilename(name string) *FuncBuilder {
	fb.fn.filename = name
	fb.fn.hasFile = true
	return fb
}

// Func returns the Function being built, for use as a call target or
// FuncRef operand before its body is complete.
func (fb *FuncBuilder) Func() Function { return fb.fn }

// Block starts a new basic block in this function.
func (fb *FuncBuilder) Block(label string) *BlockBuilder {
	blk := &block{label: label, fn: fb.fn}
	fb.fn.blocks = append(fb.fn.blocks, blk)
	return &BlockBuilder{fb: fb, blk: blk}
}

// MarkLoopHeader flags blk as the target of a loop back-edge.
func (fb *FuncBuilder) MarkLoopHeader(blk *BlockBuilder) *FuncBuilder {
	blk.blk.loopHead = true
	return fb
}

// BlockBuilder appends instructions to one basic block in program order.
// Every method that yields a value returns an Operand referencing it,
// suitable as an operand to a later instruction in the same module.
type BlockBuilder struct {
	fb  *FuncBuilder
	blk *block
}

// Block returns the underlying Block, for use as a branch target.
func (bb *BlockBuilder) Block() Block { return bb.blk }

func (bb *BlockBuilder) append(instr Instruction) {
	switch v := instr.(type) {
	case *returnInstr:
		v.pos = len(bb.blk.instrs)
		v.blk = bb.blk
	case *condBrInstr:
		v.pos = len(bb.blk.instrs)
		v.blk = bb.blk
	case *uncondBrInstr:
		v.pos = len(bb.blk.instrs)
		v.blk = bb.blk
	case *switchInstr:
		v.pos = len(bb.blk.instrs)
		v.blk = bb.blk
	case *callInstr:
		v.pos = len(bb.blk.instrs)
		v.blk = bb.blk
	case *allocaInstr:
		v.pos = len(bb.blk.instrs)
		v.blk = bb.blk
	case *storeInstr:
		v.pos = len(bb.blk.instrs)
		v.blk = bb.blk
	case *loadInstr:
		v.pos = len(bb.blk.instrs)
		v.blk = bb.blk
	case *icmpInstr:
		v.pos = len(bb.blk.instrs)
		v.blk = bb.blk
	case *phiInstr:
		v.pos = len(bb.blk.instrs)
		v.blk = bb.blk
	case *gepInstr:
		v.pos = len(bb.blk.instrs)
		v.blk = bb.blk
	case *unaryInstr:
		v.pos = len(bb.blk.instrs)
		v.blk = bb.blk
	case *binaryInstr:
		v.pos = len(bb.blk.instrs)
		v.blk = bb.blk
	case *otherInstr:
		v.pos = len(bb.blk.instrs)
		v.blk = bb.blk
	default:
		panic(fmt.Sprintf("ir: unknown instruction type %T", instr))
	}
	bb.blk.instrs = append(bb.blk.instrs, instr)
}

// Return terminates the block, optionally returning op.
func (bb *BlockBuilder) Return(op Operand) {
	bb.append(&returnInstr{base: base{kind: Return}, op: op, hasOp: op != nil})
}

// CondBr terminates the block with a conditional branch.
func (bb *BlockBuilder) CondBr(cond Operand, then, els *BlockBuilder) {
	bb.append(&condBrInstr{base: base{kind: CondBr}, cond: cond, thenBlk: then.blk, elseBlk: els.blk})
}

// UncondBr terminates the block with an unconditional branch. endsLoop
// marks this as a loop back-edge.
func (bb *BlockBuilder) UncondBr(target *BlockBuilder, endsLoop bool) {
	bb.append(&uncondBrInstr{base: base{kind: UncondBr}, target: target.blk, endLoop: endsLoop})
}

// Switch terminates the block with a multi-way branch.
func (bb *BlockBuilder) Switch(cond Operand, def *BlockBuilder, cases ...SwitchCase) {
	bb.append(&switchInstr{base: base{kind: Switch}, cond: cond, def: def.blk, cases: cases})
}

// Unreachable terminates the block with an unreachable marker.
func (bb *BlockBuilder) Unreachable() {
	bb.append(&otherInstr{base: base{kind: Unreachable}})
}

// Call appends a call instruction and returns its result operand. callee
// may be nil for an indirect call through calleeOp.
func (bb *BlockBuilder) Call(callee Function, calleeOp Operand, calleeType FuncType, args ...Operand) Operand {
	instr := &callInstr{base: base{kind: Call}, calleeOp: calleeOp, calleeType: calleeType, args: args}
	if callee != nil {
		instr.callee = callee.(*function)
		instr.hasCallee = true
	}
	bb.append(instr)
	resultType := Type(VoidType{})
	if calleeType.HasReturn {
		resultType = IntType{Bits: 64}
	}
	return Result(instr, resultType)
}

// Alloca appends an alloca instruction and returns a pointer operand to it.
func (bb *BlockBuilder) Alloca() Operand {
	instr := &allocaInstr{base: base{kind: Alloca}}
	bb.append(instr)
	return Result(instr, PointerType{})
}

// Store appends a store instruction.
func (bb *BlockBuilder) Store(addr, val Operand) {
	bb.append(&storeInstr{base: base{kind: Store}, addr: addr, val: val})
}

// Load appends a load instruction and returns its result operand.
func (bb *BlockBuilder) Load(addr Operand, typ Type) Operand {
	instr := &loadInstr{base: base{kind: Load}, addr: addr}
	bb.append(instr)
	return Result(instr, typ)
}

// ICmp appends an integer comparison and returns an i1 result operand.
func (bb *BlockBuilder) ICmp(pred Predicate, op0, op1 Operand) Operand {
	instr := &icmpInstr{base: base{kind: ICmp}, pred: pred, op0: op0, op1: op1}
	bb.append(instr)
	return Result(instr, IntType{Bits: 1})
}

// Phi appends a phi node and returns its result operand.
func (bb *BlockBuilder) Phi(typ Type, incoming ...PhiIncoming) Operand {
	instr := &phiInstr{base: base{kind: Phi}, incoming: incoming}
	bb.append(instr)
	return Result(instr, typ)
}

// GEP appends a get-element-pointer instruction and returns a pointer
// result operand.
func (bb *BlockBuilder) GEP(addrBase Operand, indices ...Operand) Operand {
	instr := &gepInstr{base: base{kind: GEP}, addrBase: addrBase, indices: indices}
	bb.append(instr)
	return Result(instr, PointerType{})
}

// Unary appends a unary operation and returns its result operand.
func (bb *BlockBuilder) Unary(op string, val Operand, typ Type) Operand {
	instr := &unaryInstr{base: base{kind: Unary}, op: op, val: val}
	bb.append(instr)
	return Result(instr, typ)
}

// Binary appends a binary operation and returns its result operand.
func (bb *BlockBuilder) Binary(op string, op0, op1 Operand, typ Type) Operand {
	instr := &binaryInstr{base: base{kind: Binary}, op: op, op0: op0, op1: op1}
	bb.append(instr)
	return Result(instr, typ)
}

// Other appends an instruction kind the façade does not otherwise model
// (e.g. a landing pad, a fence). It carries no operands.
func (bb *BlockBuilder) Other() {
	bb.append(&otherInstr{base: base{kind: Other}})
}
