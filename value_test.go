package pulsive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_Truthy(t *testing.T) {
	assert.False(t, Null().Truthy())
	assert.False(t, BoolValue(false).Truthy())
	assert.True(t, BoolValue(true).Truthy())
	assert.False(t, IntValue(0).Truthy())
	assert.True(t, IntValue(1).Truthy())
	assert.False(t, FloatValue(0).Truthy())
	assert.False(t, StringValue("").Truthy())
	assert.True(t, StringValue("x").Truthy())
	assert.True(t, EntityRefValue(RefOf(1)).Truthy())
	assert.False(t, ListValue(nil).Truthy())
	assert.False(t, MapValue(NewValueMap()).Truthy())
}

func TestValue_EqualUsesEpsilonForNumbers(t *testing.T) {
	assert.True(t, FloatValue(1.0).Equal(IntValue(1)))
	assert.True(t, FloatValue(1.0000000000000001).Equal(FloatValue(1.0)))
	assert.False(t, FloatValue(1.1).Equal(IntValue(1)))
	assert.False(t, StringValue("1").Equal(IntValue(1)))
}

func TestValue_Text(t *testing.T) {
	assert.Equal(t, "null", Null().Text())
	assert.Equal(t, "true", BoolValue(true).Text())
	assert.Equal(t, "42", IntValue(42).Text())
	assert.Equal(t, `"hi"`, StringValue("hi").Text())
}

func TestValueMap_PreservesInsertionOrderAcrossUpdates(t *testing.T) {
	m := NewValueMap()
	m.Set("b", IntValue(2))
	m.Set("a", IntValue(1))
	m.Set("b", IntValue(20))

	require.Equal(t, []string{"b", "a"}, m.Keys())
	v, ok := m.Get("b")
	require.True(t, ok)
	assert.Equal(t, int64(20), v.i)
}

func TestValueMap_DeleteRemovesFromKeyOrder(t *testing.T) {
	m := NewValueMap()
	m.Set("a", IntValue(1))
	m.Set("b", IntValue(2))
	m.Set("c", IntValue(3))

	require.True(t, m.Delete("b"))
	assert.Equal(t, []string{"a", "c"}, m.Keys())
	assert.False(t, m.Delete("b"))
}

func TestValueMap_CloneIsIndependent(t *testing.T) {
	m := NewValueMap()
	m.Set("a", IntValue(1))
	clone := m.Clone()
	clone.Set("a", IntValue(2))

	v, _ := m.Get("a")
	assert.Equal(t, int64(1), v.i)
}
