package solver

import (
	"testing"

	"arbitrar/internal/ir"
	"arbitrar/internal/values"
)

func eqZero(v *values.Value) values.Comparison {
	return values.Comparison{Pred: ir.EQ, Op0: v, Op1: values.NewInt(0)}
}

func TestIsSatisfiable_SingleConstraintTaken(t *testing.T) {
	c := New()
	sym := values.NewSym(0)
	ok := c.IsSatisfiable([]Constraint{{Cmp: eqZero(sym), Taken: true}})
	if !ok {
		t.Fatalf("sym == 0 should be satisfiable")
	}
}

func TestIsSatisfiable_ContradictoryConstraints(t *testing.T) {
	c := New()
	sym := values.NewSym(0)
	cmp := eqZero(sym)
	ok := c.IsSatisfiable([]Constraint{
		{Cmp: cmp, Taken: true},
		{Cmp: cmp, Taken: false},
	})
	if ok {
		t.Fatalf("sym == 0 and sym != 0 should be unsatisfiable")
	}
}

func TestIsSatisfiable_UnknownLeafDropsConstraint(t *testing.T) {
	c := New()
	cmp := eqZero(values.NewUnknown())
	// Both directions of an unlowerable comparison are dropped, so the
	// (vacuous) conjunction is trivially satisfiable.
	ok := c.IsSatisfiable([]Constraint{
		{Cmp: cmp, Taken: true},
		{Cmp: cmp, Taken: false},
	})
	if !ok {
		t.Fatalf("unlowerable constraints should be dropped, leaving sat")
	}
}

func TestIsSatisfiable_SharedSubexpressionMemoized(t *testing.T) {
	c := New()
	sym := values.NewSym(0)
	lhs := eqZero(sym)
	// sym == 0 and sym == 1 must refer to the same underlying constant to
	// correctly report unsat.
	rhs := values.Comparison{Pred: ir.EQ, Op0: sym, Op1: values.NewInt(1)}
	ok := c.IsSatisfiable([]Constraint{
		{Cmp: lhs, Taken: true},
		{Cmp: rhs, Taken: true},
	})
	if ok {
		t.Fatalf("sym cannot equal both 0 and 1")
	}
}
