package features

import (
	"testing"

	"arbitrar/internal/ir"
	"arbitrar/internal/slicer"
	"arbitrar/internal/symexec"
	"arbitrar/internal/values"
)

func TestReturnValue_UsedInCallAndReturned(t *testing.T) {
	targetRes := values.NewCall(1, values.NewFunc("target"))
	helperCall := values.NewSemCall(values.NewFunc("sink"), targetRes)

	trace := &symexec.Trace{
		Target: 0,
		Nodes: []symexec.TraceNode{
			{Sem: values.NewSemCall(values.NewFunc("target")), Res: targetRes, HasRes: true},
			{Sem: helperCall},
			{Sem: values.NewSemRet(targetRes)},
		},
	}

	e := newReturnValue()
	got := e.Extract("s1", &slicer.Slice{}, trace).(map[string]any)
	if got["used_in_call"] != true {
		t.Fatalf("expected used_in_call=true, got %+v", got)
	}
	if got["returned"] != true {
		t.Fatalf("expected returned=true, got %+v", got)
	}
	if got["used_in_bin"] != false {
		t.Fatalf("expected used_in_bin=false, got %+v", got)
	}
}

func TestReturnCheck_DetectsEqZeroBranch(t *testing.T) {
	targetRes := values.NewCall(1, values.NewFunc("target"))
	cmp := values.NewICmp(ir.EQ, targetRes, values.NewInt(0))

	trace := &symexec.Trace{
		Target: 0,
		Nodes: []symexec.TraceNode{
			{Sem: values.NewSemCall(values.NewFunc("target")), Res: targetRes, HasRes: true},
			{Sem: values.NewSemICmp(ir.EQ, targetRes, values.NewInt(0)), Res: cmp, HasRes: true},
			{Sem: values.NewSemCondBr(cmp, values.Then, false)},
		},
	}

	e := newReturnCheck()
	e.Init("s1", &slicer.Slice{}, 1, trace)
	got := e.Extract("s1", &slicer.Slice{}, trace).(map[string]any)

	if got["checked"] != true || got["slice_checked"] != true {
		t.Fatalf("expected checked and slice_checked true, got %+v", got)
	}
	if got["br_eq_zero"] != true || got["br_neq_zero"] != false {
		t.Fatalf("expected br_eq_zero true / br_neq_zero false, got %+v", got)
	}
	if got["compared_with_zero"] != true {
		t.Fatalf("expected compared_with_zero true, got %+v", got)
	}
}

func TestReturnCheck_ICmpNotBranchedOnLeavesFlagsFalse(t *testing.T) {
	targetRes := values.NewCall(1, values.NewFunc("target"))
	cmp := values.NewICmp(ir.EQ, targetRes, values.NewInt(0))

	trace := &symexec.Trace{
		Target: 0,
		Nodes: []symexec.TraceNode{
			{Sem: values.NewSemCall(values.NewFunc("target")), Res: targetRes, HasRes: true},
			{Sem: values.NewSemICmp(ir.EQ, targetRes, values.NewInt(0)), Res: cmp, HasRes: true},
			{Sem: values.NewSemCall(values.NewFunc("log"), cmp)},
		},
	}

	e := newReturnCheck()
	e.Init("s1", &slicer.Slice{}, 1, trace)
	got := e.Extract("s1", &slicer.Slice{}, trace).(map[string]any)

	if got["checked"] != true {
		t.Fatalf("expected checked=true, got %+v", got)
	}
	if got["compared_with_zero"] != false || got["compared_with_non_const"] != false {
		t.Fatalf("expected compared flags false without a guarding branch, got %+v", got)
	}
	if got["br_eq_zero"] != false || got["br_neq_zero"] != false {
		t.Fatalf("expected branch flags false without a guarding branch, got %+v", got)
	}
}

func TestReturnCheck_NullComparisonCountsAsZero(t *testing.T) {
	targetRes := values.NewCall(1, values.NewFunc("target"))
	cmp := values.NewICmp(ir.EQ, targetRes, values.NewNull())

	trace := &symexec.Trace{
		Target: 0,
		Nodes: []symexec.TraceNode{
			{Sem: values.NewSemCall(values.NewFunc("target")), Res: targetRes, HasRes: true},
			{Sem: values.NewSemICmp(ir.EQ, targetRes, values.NewNull()), Res: cmp, HasRes: true},
			{Sem: values.NewSemCondBr(cmp, values.Then, false)},
		},
	}

	e := newReturnCheck()
	e.Init("s1", &slicer.Slice{}, 1, trace)
	got := e.Extract("s1", &slicer.Slice{}, trace).(map[string]any)

	if got["compared_with_zero"] != true {
		t.Fatalf("expected compared_with_zero=true for a null comparison, got %+v", got)
	}
	if got["compared_with_non_const"] != false {
		t.Fatalf("expected compared_with_non_const=false for a null comparison, got %+v", got)
	}
}

func TestArgPrecondition_DetectsNullCheckBeforeCall(t *testing.T) {
	arg0 := values.NewArg(0)
	cmp := values.NewICmp(ir.NE, arg0, values.NewNull())

	trace := &symexec.Trace{
		Target: 2,
		Nodes: []symexec.TraceNode{
			{Sem: values.NewSemICmp(ir.NE, arg0, values.NewNull()), Res: cmp, HasRes: true},
			{Sem: values.NewSemCondBr(cmp, values.Then, false)},
			{Sem: values.NewSemCall(values.NewFunc("target"), arg0)},
		},
	}

	e := newArgPrecondition(0)
	got := e.Extract("s1", &slicer.Slice{}, trace).(map[string]any)

	if got["checked"] != true {
		t.Fatalf("expected checked=true, got %+v", got)
	}
	if got["is_arg"] != true {
		t.Fatalf("expected is_arg=true, got %+v", got)
	}
	if got["arg_check_not_zero"] != true {
		t.Fatalf("expected arg_check_not_zero=true, got %+v", got)
	}
	if got["compared_with_zero"] != true {
		t.Fatalf("expected compared_with_zero=true for a null comparison, got %+v", got)
	}
}

func TestArgPrecondition_ConstantArgumentSkipsScan(t *testing.T) {
	arg0 := values.NewInt(4)
	cmp := values.NewICmp(ir.EQ, arg0, values.NewInt(0))

	trace := &symexec.Trace{
		Target: 2,
		Nodes: []symexec.TraceNode{
			{Sem: values.NewSemICmp(ir.EQ, arg0, values.NewInt(0)), Res: cmp, HasRes: true},
			{Sem: values.NewSemCondBr(cmp, values.Then, false)},
			{Sem: values.NewSemCall(values.NewFunc("target"), arg0)},
		},
	}

	e := newArgPrecondition(0)
	got := e.Extract("s1", &slicer.Slice{}, trace).(map[string]any)

	if got["is_constant"] != true {
		t.Fatalf("expected is_constant=true for a literal argument, got %+v", got)
	}
	if got["checked"] != false || got["compared_with_zero"] != false {
		t.Fatalf("expected the backward scan to be skipped for a constant argument, got %+v", got)
	}
}

func TestCausality_TopKAndCoOccurrence(t *testing.T) {
	targetRes := values.NewCall(1, values.NewFunc("target"))
	trace := &symexec.Trace{
		Target: 0,
		Nodes: []symexec.TraceNode{
			{Sem: values.NewSemCall(values.NewFunc("target")), Res: targetRes, HasRes: true},
			{Sem: values.NewSemCall(values.NewFunc("log")), Res: values.NewInt(0), HasRes: true},
			{Sem: values.NewSemCall(values.NewFunc("log")), Res: values.NewInt(0), HasRes: true},
			{Sem: values.NewSemCall(values.NewFunc("free"), targetRes)},
		},
	}

	e := newCausality(false)
	e.SetDictionarySize(10)
	e.Init("s1", &slicer.Slice{}, 1, trace)
	e.Finalize()

	got := e.Extract("s1", &slicer.Slice{}, trace).(map[string]any)
	log := got["log"].(map[string]any)
	if log["invoked"] != true || log["invoked_more_than_once"] != true {
		t.Fatalf("expected log invoked twice, got %+v", log)
	}
	free := got["free"].(map[string]any)
	if free["share_argument"] != true {
		t.Fatalf("expected free to share the target's return value as an argument, got %+v", free)
	}
}

func TestControlFlow_DetectsLoopAndCondBrAfterTarget(t *testing.T) {
	trace := &symexec.Trace{
		Target: 1,
		Nodes: []symexec.TraceNode{
			{Sem: values.NewSemCondBr(values.NewInt(1), values.Then, true)},
			{Sem: values.NewSemCall(values.NewFunc("target"))},
			{Sem: values.NewSemCondBr(values.NewInt(1), values.Else, false)},
		},
	}

	e := newControlFlow()
	got := e.Extract("s1", &slicer.Slice{}, trace).(map[string]any)
	if got["has_loop"] != true {
		t.Fatalf("expected has_loop=true, got %+v", got)
	}
	if got["has_cond_br_after_target"] != true {
		t.Fatalf("expected has_cond_br_after_target=true, got %+v", got)
	}
}

func TestPipeline_AppliesFiltersByArity(t *testing.T) {
	target := ir.NewBuilder().Declare("target", ir.FuncType{NumParams: 2, HasReturn: true})
	p := NewPipeline(target, ir.FuncType{NumParams: 2, HasReturn: true})

	names := map[string]bool{}
	for _, e := range p.extractors {
		names[e.Name()] = true
	}
	if !names["arg_precondition_0"] || !names["arg_precondition_1"] {
		t.Fatalf("expected arg extractors for the declared arity, got %v", names)
	}
	if names["arg_precondition_2"] {
		t.Fatalf("did not expect an extractor beyond the declared arity")
	}
	if !names["return_value"] || !names["return_value_check"] {
		t.Fatalf("expected return-value extractors since the target has a return type")
	}
}
