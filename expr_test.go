package pulsive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalCtxFor(target *Entity, entities *EntityStore, globals *ValueMap, params *ValueMap) *EvalContext {
	return &EvalContext{Target: target, Entities: entities, Globals: globals, Params: params, Rng: NewRng(1)}
}

func TestExpr_ArithmeticCoercesIntToFloat(t *testing.T) {
	ctx := evalCtxFor(nil, nil, nil, nil)
	v, err := Add(LitInt(1), LitFloat(2.5)).Eval(ctx)
	require.NoError(t, err)
	f, ok := v.AsFloat()
	require.True(t, ok)
	assert.InDelta(t, 3.5, f, 1e-12)
}

func TestExpr_DivisionByZeroReturnsSentinelError(t *testing.T) {
	ctx := evalCtxFor(nil, nil, nil, nil)
	_, err := Div(LitInt(1), LitInt(0)).Eval(ctx)
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestExpr_ModifyByNonNumberIsTypeError(t *testing.T) {
	ctx := evalCtxFor(nil, nil, nil, nil)
	_, err := Add(LitString("x"), LitInt(1)).Eval(ctx)
	var typeErr *TypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, "number", typeErr.Expected)
	assert.Equal(t, "string", typeErr.Got)
}

func TestExpr_PropertyWithoutTargetIsEvaluationError(t *testing.T) {
	ctx := evalCtxFor(nil, nil, nil, nil)
	_, err := Property("gold").Eval(ctx)
	var evalErr *EvaluationError
	assert.ErrorAs(t, err, &evalErr)
}

func TestExpr_PropertyReadsFromTarget(t *testing.T) {
	ent := NewEntity(1, "nation")
	ent.Set("gold", FloatValue(100))
	ctx := evalCtxFor(ent, nil, nil, nil)
	v, err := Property("gold").Eval(ctx)
	require.NoError(t, err)
	f, _ := v.AsFloat()
	assert.Equal(t, 100.0, f)
}

func TestExpr_AndOrShortCircuit(t *testing.T) {
	ctx := evalCtxFor(nil, nil, nil, nil)

	// A division-by-zero inside a never-evaluated branch must not surface.
	v, err := And(LitBool(false), Div(LitInt(1), LitInt(0))).Eval(ctx)
	require.NoError(t, err)
	assert.False(t, v.Truthy())

	v, err = Or(LitBool(true), Div(LitInt(1), LitInt(0))).Eval(ctx)
	require.NoError(t, err)
	assert.True(t, v.Truthy())
}

func TestExpr_IfEvaluatesOnlyChosenBranch(t *testing.T) {
	ctx := evalCtxFor(nil, nil, nil, nil)
	v, err := If(LitBool(true), LitInt(1), Div(LitInt(1), LitInt(0))).Eval(ctx)
	require.NoError(t, err)
	i, _ := v.AsInt()
	assert.Equal(t, int64(1), i)
}

func TestExpr_ClampBoundsValue(t *testing.T) {
	ctx := evalCtxFor(nil, nil, nil, nil)
	v, err := Clamp(LitFloat(15), LitFloat(0), LitFloat(10)).Eval(ctx)
	require.NoError(t, err)
	f, _ := v.AsFloat()
	assert.Equal(t, 10.0, f)
}

func TestExpr_HasFlagReadsTargetFlags(t *testing.T) {
	ent := NewEntity(1, "nation")
	ent.Flags.Add("at_war")
	ctx := evalCtxFor(ent, nil, nil, nil)
	v, err := HasFlag("at_war").Eval(ctx)
	require.NoError(t, err)
	assert.True(t, v.Truthy())

	v, err = HasFlag("rebellion").Eval(ctx)
	require.NoError(t, err)
	assert.False(t, v.Truthy())
}

func TestExpr_CountEntitiesCountsByKind(t *testing.T) {
	store := NewEntityStore()
	store.Create("nation")
	store.Create("nation")
	store.Create("city")
	ctx := evalCtxFor(nil, store, nil, nil)
	v, err := CountEntities("nation").Eval(ctx)
	require.NoError(t, err)
	i, _ := v.AsInt()
	assert.Equal(t, int64(2), i)
}

func TestExpr_FormatSubstitutesPositionalArgsLeftToRight(t *testing.T) {
	ctx := evalCtxFor(nil, nil, nil, nil)
	v, err := Format("{0} has {1} gold", LitString("Rome"), LitInt(100)).Eval(ctx)
	require.NoError(t, err)
	s, _ := v.AsString()
	assert.Equal(t, `"Rome" has 100 gold`, s)
}

func TestExpr_ConcatUsesTextualForm(t *testing.T) {
	ctx := evalCtxFor(nil, nil, nil, nil)
	v, err := Concat(LitString("count="), LitInt(3)).Eval(ctx)
	require.NoError(t, err)
	s, _ := v.AsString()
	assert.Equal(t, `"count="3`, s)
}

func LitBool(b bool) Expr { return Lit(BoolValue(b)) }
