package loxvm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runAndCapture(t *testing.T, source string) (string, InterpretResult) {
	t.Helper()
	var out bytes.Buffer
	vm := New(&out)
	defer vm.Close()
	result := vm.RunSource(source)
	return out.String(), result
}

func TestEndToEndArithmetic(t *testing.T) {
	out, result := runAndCapture(t, "print 1 + 2 * 3;")
	require.Equal(t, InterpretOK, result)
	assert.Equal(t, "7\n", out)
}

func TestEndToEndStringConcatAndIntern(t *testing.T) {
	heap := NewHeap()
	interner := NewInternTable(heap)
	var out bytes.Buffer
	vm := &VM{globals: NewTable(), interner: interner, heap: heap, stdout: &out}

	result := vm.RunSource(`var x = "ab"; var y = "c"; print x + y;`)
	require.Equal(t, InterpretOK, result)
	assert.Equal(t, "abc\n", out.String())

	xValue, ok := vm.globals.Get(interner.InternString("x"))
	require.True(t, ok)
	assert.Same(t, interner.InternString("ab"), xValue.AsString())
}

func TestEndToEndRecursiveFibonacci(t *testing.T) {
	out, result := runAndCapture(t, `
		fun fib(n) { if (n < 2) return n; return fib(n-1) + fib(n-2); }
		print fib(10);
	`)
	require.Equal(t, InterpretOK, result)
	assert.Equal(t, "55\n", out)
}

func TestEndToEndBlockScopeShadowing(t *testing.T) {
	out, result := runAndCapture(t, `var a = 1; { var a = 2; print a; } print a;`)
	require.Equal(t, InterpretOK, result)
	assert.Equal(t, "2\n1\n", out)
}

func TestEndToEndUndefinedVariableRuntimeError(t *testing.T) {
	out, result := runAndCapture(t, "print undefined_var;")
	require.Equal(t, InterpretRuntimeError, result)
	assert.Contains(t, out, "Undefined variable 'undefined_var'.")
}

func TestEndToEndStackOverflow(t *testing.T) {
	out, result := runAndCapture(t, `fun f() { f(); } f();`)
	require.Equal(t, InterpretRuntimeError, result)
	assert.Contains(t, out, "Stack overflow.")
	// A 64-deep backtrace (spec.md §8 scenario 6): one "in f" line per
	// recursive activation still on the frame stack when it overflowed.
	assert.GreaterOrEqual(t, strings.Count(out, "in f"), framesMax-2)
}

func TestEndToEndWhileLoop(t *testing.T) {
	out, result := runAndCapture(t, `
		var i = 0;
		var sum = 0;
		while (i < 5) { sum = sum + i; i = i + 1; }
		print sum;
	`)
	require.Equal(t, InterpretOK, result)
	assert.Equal(t, "10\n", out)
}

func TestEndToEndForLoop(t *testing.T) {
	out, result := runAndCapture(t, `
		var sum = 0;
		for (var i = 0; i < 5; i = i + 1) { sum = sum + i; }
		print sum;
	`)
	require.Equal(t, InterpretOK, result)
	assert.Equal(t, "10\n", out)
}

func TestEndToEndLogicalOperators(t *testing.T) {
	out, result := runAndCapture(t, `print false or 2; print 1 and 2; print nil and 1;`)
	require.Equal(t, InterpretOK, result)
	assert.Equal(t, "2\n2\nnil\n", out)
}

func TestEndToEndBoolNumberCoercion(t *testing.T) {
	out, result := runAndCapture(t, `print true + 1; print -true;`)
	require.Equal(t, InterpretOK, result)
	assert.Equal(t, "2\n-1\n", out)
}

func TestEndToEndNativeMathLibrary(t *testing.T) {
	var out bytes.Buffer
	vm := New(&out)
	defer vm.Close()
	RegisterStdlib(vm)

	mathVal, ok := vm.globals.Get(vm.interner.InternString("math"))
	require.True(t, ok)
	sqrtFn, ok := mathVal.AsMap().Get(vm.interner.InternString("sqrt"))
	require.True(t, ok)

	result, err := sqrtFn.AsCFn()(vm, []Value{NumberValue(16)})
	require.NoError(t, err)
	assert.Equal(t, 4.0, result.AsNumber())
}
