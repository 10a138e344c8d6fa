package loxvm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFalseyLaw(t *testing.T) {
	falsey := []Value{NilValue(), BoolValue(false)}
	truthy := []Value{
		BoolValue(true),
		NumberValue(0),
		NumberValue(1),
		ObjValue(&String{bytes: []byte("")}),
		ObjValue(&String{bytes: []byte("x")}),
	}

	for _, v := range falsey {
		assert.True(t, v.IsFalsey(), "%v should be falsey", v)
	}
	for _, v := range truthy {
		assert.False(t, v.IsFalsey(), "%v should be truthy", v)
	}
}

func TestEqualityReflexivity(t *testing.T) {
	values := []Value{
		NilValue(),
		BoolValue(true),
		BoolValue(false),
		NumberValue(3.5),
		NumberValue(-1),
	}
	for _, v := range values {
		assert.True(t, Equal(v, v))
	}
}

func TestEqualityNaNIsUnequal(t *testing.T) {
	nan := NumberValue(math.NaN())
	assert.False(t, Equal(nan, nan), "IEEE NaN is never equal to itself")
}

func TestEqualityBoolNumberCoercion(t *testing.T) {
	assert.True(t, Equal(BoolValue(true), NumberValue(1)))
	assert.True(t, Equal(NumberValue(0), BoolValue(false)))
	assert.False(t, Equal(BoolValue(true), NumberValue(2)))
}

func TestEqualityStringsByPointer(t *testing.T) {
	a := &String{bytes: []byte("same")}
	b := &String{bytes: []byte("same")}
	assert.False(t, Equal(ObjValue(a), ObjValue(b)), "un-interned strings with equal bytes are distinct pointers")
	assert.True(t, Equal(ObjValue(a), ObjValue(a)))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "7", NumberValue(7).String())
	assert.Equal(t, "3.5", NumberValue(3.5).String())
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "nil", NilValue().TypeName())
	assert.Equal(t, "bool", BoolValue(true).TypeName())
	assert.Equal(t, "num", NumberValue(1).TypeName())
	assert.Equal(t, "str", ObjValue(&String{bytes: []byte("s")}).TypeName())
}
