package values

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemanticsCallArguments(t *testing.T) {
	sem := NewSemCall(NewFunc("malloc"), NewInt(16))
	args := sem.CallArguments()
	require.Len(t, args, 1)
	assert.True(t, args[0].Equal(NewInt(16)))
	assert.True(t, sem.CallArgument(0).Equal(NewInt(16)))
	assert.Nil(t, sem.CallArgument(1))
}

func TestSemanticsCallArgumentsPanicsOnWrongKind(t *testing.T) {
	sem := NewSemLoad(NewAlloca(0))
	assert.Panics(t, func() { sem.CallArguments() })
}

func TestBranchPredicates(t *testing.T) {
	assert.True(t, Then.IsThen())
	assert.False(t, Then.IsElse())
	assert.True(t, Else.IsElse())
}

func TestSemanticsJSONRoundTripCondBr(t *testing.T) {
	sem := NewSemCondBr(NewArg(0), Else, true)
	data, err := json.Marshal(sem)
	require.NoError(t, err)

	var decoded Semantics
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, SemCondBr, decoded.Kind)
	assert.Equal(t, Else, decoded.CondBrBranch)
	assert.True(t, decoded.CondBrBegLoop)
	assert.True(t, sem.CondBrCond.Equal(decoded.CondBrCond))
}

func TestSemanticsJSONRoundTripRetWithNoOperand(t *testing.T) {
	sem := NewSemRet(nil)
	data, err := json.Marshal(sem)
	require.NoError(t, err)

	var decoded Semantics
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, SemRet, decoded.Kind)
	assert.False(t, decoded.HasRetOp)
}
