package loxvm

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileOK(t *testing.T, source string) *Function {
	t.Helper()
	heap := NewHeap()
	interner := NewInternTable(heap)
	fn, err := Compile(source, interner)
	require.NoError(t, err)
	require.NotNil(t, fn)
	return fn
}

func TestCompileSimpleArithmetic(t *testing.T) {
	fn := compileOK(t, "print 1 + 2 * 3;")
	assert.Greater(t, fn.chunk.Len(), 0)
}

func TestCompileReturnAtTopLevelErrors(t *testing.T) {
	heap := NewHeap()
	interner := NewInternTable(heap)
	_, err := Compile("return 1;", interner)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Can't return from top-level code.")
}

func TestCompileLocalShadowingInSameScopeErrors(t *testing.T) {
	heap := NewHeap()
	interner := NewInternTable(heap)
	_, err := Compile("{ var a = 1; var a = 2; }", interner)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Already a variable with this name in this scope.")
}

func TestCompileSelfReferentialInitializerErrors(t *testing.T) {
	heap := NewHeap()
	interner := NewInternTable(heap)
	_, err := Compile("{ var a = a; }", interner)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "own initializer")
}

func TestCompileInvalidAssignmentTarget(t *testing.T) {
	heap := NewHeap()
	interner := NewInternTable(heap)
	_, err := Compile("1 + 2 = 3;", interner)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid assignment target.")
}

func TestCompileAccumulatesMultipleErrors(t *testing.T) {
	heap := NewHeap()
	interner := NewInternTable(heap)
	_, err := Compile("return 1; return 2;", interner)
	require.Error(t, err)
	merr, ok := err.(interface{ WrappedErrors() []error })
	require.True(t, ok, "compile errors accumulate via go-multierror")
	assert.Len(t, merr.WrappedErrors(), 2)
}

func TestCompileFunctionDeclaration(t *testing.T) {
	fn := compileOK(t, `fun add(a, b) { return a + b; } print add(1, 2);`)
	assert.Greater(t, fn.chunk.ConstantCount(), 0)
}

func TestCompileTooManyParameters(t *testing.T) {
	params := ""
	for i := 0; i < 33; i++ {
		if i > 0 {
			params += ", "
		}
		params += "p" + strconv.Itoa(i)
	}
	heap := NewHeap()
	interner := NewInternTable(heap)
	_, err := Compile("fun f("+params+") { return 0; }", interner)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Can't have more than 32 parameters.")
}
