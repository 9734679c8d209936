// Package solver answers a single narrow question for the symbolic
// executor: is this conjunction of path constraints satisfiable? It is the
// only place the SMT vocabulary appears; everything upstream only ever
// sees the Checker interface.
package solver

import (
	"fmt"

	z3 "github.com/mitchellh/go-z3"

	"arbitrar/internal/ir"
	"arbitrar/internal/values"
)

// Constraint is one entry of a symbolic-execution state's path-constraint
// list: a branch comparison plus whether it was taken.
type Constraint struct {
	Cmp   values.Comparison
	Taken bool
}

// Checker decides path feasibility. The executor depends on this
// interface, not on package solver's concrete session type, so a stub or
// always-true checker can stand in for tests that don't care about
// feasibility.
type Checker interface {
	IsSatisfiable(constraints []Constraint) bool
}

// Z3Checker is the production Checker, backed by a fresh z3 session per
// query.
type Z3Checker struct{}

// New returns the production satisfiability checker.
func New() Z3Checker { return Z3Checker{} }

// IsSatisfiable builds a fresh solver session, lowers every constraint
// that can be lowered (an unlowerable sub-expression drops only its own
// enclosing constraint, per the integer-theory lowering rules), and
// queries the solver. z3's Undef result is treated as satisfiable: the
// analysis is conservative, not sound, and would rather keep a trace than
// drop one the solver couldn't decide.
func (Z3Checker) IsSatisfiable(constraints []Constraint) bool {
	s := newSession()
	defer s.close()

	for _, c := range constraints {
		formula, ok := s.lowerConstraint(c)
		if !ok {
			continue
		}
		s.solver.Assert(formula)
	}

	switch s.solver.Check() {
	case z3.False:
		return false
	default:
		return true
	}
}

// session is a single feasibility query's lowering context: the z3 handles
// plus the memo table mapping a Value's structural identity to the fresh
// integer constant that stands in for it.
type session struct {
	config  *z3.Config
	ctx     *z3.Context
	solver  *z3.Solver
	intSort *z3.Sort
	memo    map[string]*z3.AST
}

func newSession() *session {
	cfg := z3.NewConfig()
	ctx := z3.NewContext(cfg)
	return &session{
		config:  cfg,
		ctx:     ctx,
		solver:  ctx.NewSolver(),
		intSort: ctx.IntSort(),
		memo:    make(map[string]*z3.AST),
	}
}

func (s *session) close() {
	s.solver.Close()
	s.ctx.Close()
	s.config.Close()
}

// lowerConstraint lowers one (comparison, taken?) path-constraint entry,
// negating the comparison when it was not the side taken.
func (s *session) lowerConstraint(c Constraint) (*z3.AST, bool) {
	formula, ok := s.lowerComparison(c.Cmp)
	if !ok {
		return nil, false
	}
	if !c.Taken {
		formula = formula.Not()
	}
	return formula, true
}

// lowerComparison lowers both sides of cmp and applies its predicate.
// SLE/ULE (likewise LT/GE/GT) collapse to the same signed integer
// operator: this is an integer-theory encoding with no unsigned overflow
// semantics, so signed and unsigned comparisons of the same shape lower
// identically.
func (s *session) lowerComparison(cmp values.Comparison) (*z3.AST, bool) {
	lhs, ok := s.lower(cmp.Op0)
	if !ok {
		return nil, false
	}
	rhs, ok := s.lower(cmp.Op1)
	if !ok {
		return nil, false
	}
	switch cmp.Pred {
	case ir.EQ:
		return lhs.Eq(rhs), true
	case ir.NE:
		return lhs.Eq(rhs).Not(), true
	case ir.SGE, ir.UGE:
		return lhs.Ge(rhs), true
	case ir.SGT, ir.UGT:
		return lhs.Gt(rhs), true
	case ir.SLE, ir.ULE:
		return lhs.Le(rhs), true
	case ir.SLT, ir.ULT:
		return lhs.Lt(rhs), true
	default:
		return nil, false
	}
}

// lower maps a Value into a linear-integer term. Only integer literals,
// null, and the integer-arithmetic binary opcodes have dedicated lowering
// rules; every other leaf (and every other binary opcode) becomes a fresh
// integer constant memoized by the value's structural identity, so two
// occurrences of the same symbolic sub-expression share one constant
// across the whole conjunction. Kind == Unknown is the only case that
// fails outright.
func (s *session) lower(v *values.Value) (*z3.AST, bool) {
	if v == nil {
		return nil, false
	}
	switch v.Kind {
	case values.Unknown:
		return nil, false
	case values.Int:
		return s.ctx.Int(int(v.IntVal), s.intSort), true
	case values.Null:
		return s.ctx.Int(0, s.intSort), true
	case values.Bin:
		if op, ok := arithOp(v.Op); ok {
			lhs, lok := s.lower(v.Op0)
			rhs, rok := s.lower(v.Op1)
			if !lok || !rok {
				return nil, false
			}
			return op(lhs, rhs), true
		}
		return s.freshFor(v), true
	default:
		return s.freshFor(v), true
	}
}

// freshFor returns the fresh integer constant standing in for v, memoized
// by v's CacheKey so repeated references to the same sub-expression within
// one query share a single constant.
func (s *session) freshFor(v *values.Value) *z3.AST {
	key := v.CacheKey()
	if ast, ok := s.memo[key]; ok {
		return ast
	}
	name := fmt.Sprintf("v%d", len(s.memo))
	ast := s.ctx.Const(s.ctx.Symbol(name), s.intSort)
	s.memo[key] = ast
	return ast
}

type binOp func(lhs, rhs *z3.AST) *z3.AST

// arithOp maps the façade's raw opcode strings for the integer-arithmetic
// operators to their z3 AST method; every other opcode (shifts, bitwise
// ops, floating point) has no lowering rule and falls back to a fresh
// symbol.
func arithOp(op string) (binOp, bool) {
	switch op {
	case "add":
		return func(l, r *z3.AST) *z3.AST { return l.Add(r) }, true
	case "sub":
		return func(l, r *z3.AST) *z3.AST { return l.Sub(r) }, true
	case "mul":
		return func(l, r *z3.AST) *z3.AST { return l.Mul(r) }, true
	case "udiv", "sdiv":
		return func(l, r *z3.AST) *z3.AST { return l.Div(r) }, true
	case "urem", "srem":
		return func(l, r *z3.AST) *z3.AST { return l.Rem(r) }, true
	default:
		return nil, false
	}
}
