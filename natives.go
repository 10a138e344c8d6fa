package loxvm

import (
	"fmt"
	"math"
	"time"
)

// natives.go registers the native library surface spec.md §4.9 requires:
// `math` and `thread.sleep`. Each module is a Map of name→CFn defined as a
// named global (spec.md: "Native modules are built by creating a Map,
// registering entries, and defining the map as a named global"). math/time
// are the "tiny standard-library shims" spec.md §1 explicitly carves out as
// out-of-scope external collaborators, so reaching for Go's stdlib here
// (rather than a third-party math/time library) is the sanctioned choice,
// not a fallback.

// RegisterStdlib defines the `math` and `thread` globals on vm, the
// bundled native libraries every embedding is expected to provide. Field
// keys are interned through vm's own intern table so that later lookups by
// name (Map.Get) -- from Go-level host code, since this grammar has no
// `.`/`[]` field-access opcode -- resolve by the same pointer-equality rule
// every other String comparison in this VM uses (spec.md §3 "String").
func RegisterStdlib(vm *VM) {
	vm.DefineGlobal("math", ObjValue(mathModule(vm.interner)))
	vm.DefineGlobal("thread", ObjValue(threadModule(vm.interner)))
}

func mathModule(interner *InternTable) *Map {
	m := newMap(interner.heap)
	set1 := func(name string, fn func(float64) float64) {
		m.Set(interner.InternString(name), NativeFnValue(unaryMathFn(name, fn)))
	}

	set1("abs", math.Abs)
	set1("ceil", math.Ceil)
	set1("cos", math.Cos)
	set1("floor", math.Floor)
	set1("log", math.Log)
	set1("log10", math.Log10)
	set1("sin", math.Sin)
	set1("sqrt", math.Sqrt)

	m.Set(interner.InternString("pow"), NativeFnValue(func(vm *VM, args []Value) (Value, error) {
		if len(args) != 2 {
			return NilValue(), fmt.Errorf("math.pow expects 2 arguments but got %d.", len(args))
		}
		base, ok1 := asNumber(args[0])
		exp, ok2 := asNumber(args[1])
		if !ok1 || !ok2 {
			return NilValue(), fmt.Errorf("math.pow expects numbers.")
		}
		return NumberValue(math.Pow(base, exp)), nil
	}))

	return m
}

func unaryMathFn(name string, fn func(float64) float64) NativeFn {
	return func(vm *VM, args []Value) (Value, error) {
		if len(args) != 1 {
			return NilValue(), fmt.Errorf("math.%s expects 1 argument but got %d.", name, len(args))
		}
		n, ok := asNumber(args[0])
		if !ok {
			return NilValue(), fmt.Errorf("math.%s expects a number.", name)
		}
		return NumberValue(fn(n)), nil
	}
}

func threadModule(interner *InternTable) *Map {
	m := newMap(interner.heap)
	m.Set(interner.InternString("sleep"), NativeFnValue(func(vm *VM, args []Value) (Value, error) {
		if len(args) != 1 {
			return NilValue(), fmt.Errorf("thread.sleep expects 1 argument but got %d.", len(args))
		}
		ms, ok := asNumber(args[0])
		if !ok {
			return NilValue(), fmt.Errorf("thread.sleep expects a number of milliseconds.")
		}
		time.Sleep(time.Duration(ms) * time.Millisecond)
		return NilValue(), nil
	}))
	return m
}
