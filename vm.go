package loxvm

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// framesMax/stackMax are the fixed capacities spec.md §3 VM state specifies:
// 64 call frames, and a value stack sized FRAMES_MAX*256.
const (
	framesMax = 64
	stackMax  = framesMax * 256
)

// CallFrame is one function activation: the function being executed, its
// instruction pointer, and the base slot into the VM's value stack (spec.md
// §3 "CallFrame"). Slot 0 of a frame's window is the callee itself.
type CallFrame struct {
	function *Function
	ip       int
	slots    int
}

// InterpretResult is the three-way outcome of running a source buffer
// (spec.md §4.8/§7): OK, a compile-time failure, or a runtime failure.
type InterpretResult int

const (
	InterpretOK InterpretResult = iota
	InterpretCompileError
	InterpretRuntimeError
)

// VM is the bytecode interpreter: a value stack, a call-frame stack, the
// globals namespace, the string-intern table and the object heap (spec.md
// §3 "VM state"). Grounded on the teacher's own vm.go dispatch-loop shape,
// generalized from its PEG bytecode to the stack-machine opcode set here.
type VM struct {
	stack    [stackMax]Value
	stackTop int

	frames     [framesMax]CallFrame
	frameCount int

	globals  *Table
	interner *InternTable
	heap     *Heap

	stdout io.Writer

	// lastCallError carries the message from callValue to the CALL opcode's
	// runtime-error path, set just before callValue returns false.
	lastCallError string

	// lastRuntimeError is the most recent runtime failure, for callers that
	// want the structured form rather than just the InterpretResult code.
	lastRuntimeError *RuntimeError
}

// New creates a VM with its own heap, intern table and globals table. Every
// VM is independent; no Value may cross VMs (spec.md §5).
func New(stdout io.Writer) *VM {
	heap := NewHeap()
	return &VM{
		globals:  NewTable(),
		interner: NewInternTable(heap),
		heap:     heap,
		stdout:   stdout,
	}
}

// Close releases VM resources. Go's GC owns the heap's memory; this exists
// to round out the create/close lifecycle spec.md §4.8 specifies and is the
// hook a future tracing collector's final sweep would occupy.
func (vm *VM) Close() {
	vm.heap.head = nil
}

func (vm *VM) push(v Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) Value {
	return vm.stack[vm.stackTop-1-distance]
}

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
}

// DefineGlobal registers value under name in the globals table, the
// mechanism native modules use to expose themselves (spec.md §4.9:
// `defineGlobal("math", mapOfCFns)`).
func (vm *VM) DefineGlobal(name string, value Value) {
	vm.globals.Set(vm.interner.InternString(name), value)
}

// RunFile reads path and runs it as a script. File reading is an
// out-of-scope external collaborator (spec.md §1); this is the thin
// interface wrapper the core exposes.
func (vm *VM) RunFile(path string) InterpretResult {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(vm.stdout, "Could not read file %q: %v\n", path, err)
		return InterpretCompileError
	}
	return vm.RunSource(string(source))
}

// RunSource compiles and executes src on this VM (spec.md §4.8
// `runSource(src)`).
func (vm *VM) RunSource(src string) InterpretResult {
	function, err := Compile(src, vm.interner)
	if err != nil {
		Log.WithError(err).Error("compile error")
		return InterpretCompileError
	}
	traceDisassembly(functionDisplayName(function), function.chunk)

	vm.push(ObjValue(function))
	vm.callFunction(function, 0)

	return vm.run()
}

// run is the dispatch loop: a switch on opcode, the conforming alternative
// to a computed-goto jump table (spec.md §4.8, §9).
func (vm *VM) run() InterpretResult {
	frame := &vm.frames[vm.frameCount-1]
	chunk := frame.function.chunk

	readByte := func() byte {
		b := chunk.code[frame.ip]
		frame.ip++
		return b
	}
	readWord := func() uint16 {
		hi := readByte()
		lo := readByte()
		return uint16(hi)<<8 | uint16(lo)
	}
	readConstant := func() Value {
		return chunk.Constant(int(readByte()))
	}
	readConstantLong := func() Value {
		return chunk.Constant(int(readWord()))
	}

	for {
		instrOffset := frame.ip
		op := OpCode(readByte())
		traceOpcode(frame, instrOffset, op)

		switch op {
		case OpNil:
			vm.push(NilValue())
		case OpTrue:
			vm.push(BoolValue(true))
		case OpFalse:
			vm.push(BoolValue(false))
		case OpConst:
			vm.push(readConstant())
		case OpConstLong:
			vm.push(readConstantLong())
		case OpPop:
			vm.pop()

		case OpPrint:
			n := int(readByte())
			parts := make([]string, n)
			for i := n - 1; i >= 0; i-- {
				parts[i] = vm.pop().String()
			}
			fmt.Fprintln(vm.stdout, strings.Join(parts, "\t"))

		case OpNeg:
			n, ok := asNumber(vm.peek(0))
			if !ok {
				return vm.runtimeError(frame, chunk, instrOffset, "Operand must be a number.")
			}
			vm.pop()
			vm.push(NumberValue(-n))

		case OpNot:
			vm.push(BoolValue(vm.pop().IsFalsey()))

		case OpEq:
			b := vm.pop()
			a := vm.pop()
			vm.push(BoolValue(Equal(a, b)))

		case OpLt, OpLe:
			bv := vm.peek(0)
			av := vm.peek(1)
			bn, bok := asNumber(bv)
			an, aok := asNumber(av)
			if !aok || !bok {
				return vm.runtimeError(frame, chunk, instrOffset, "Operands must be numbers.")
			}
			vm.pop()
			vm.pop()
			if op == OpLt {
				vm.push(BoolValue(an < bn))
			} else {
				vm.push(BoolValue(an <= bn))
			}

		case OpAdd:
			bv := vm.peek(0)
			av := vm.peek(1)
			if av.IsString() && bv.IsString() {
				vm.pop()
				vm.pop()
				concatenated := append(append([]byte{}, av.AsString().bytes...), bv.AsString().bytes...)
				vm.push(ObjValue(vm.interner.Intern(concatenated)))
				break
			}
			an, aok := asNumber(av)
			bn, bok := asNumber(bv)
			if !aok || !bok {
				return vm.runtimeError(frame, chunk, instrOffset, "Operands must be two numbers or two strings.")
			}
			vm.pop()
			vm.pop()
			vm.push(NumberValue(an + bn))

		case OpSub, OpMul, OpDiv:
			bn, bok := asNumber(vm.peek(0))
			an, aok := asNumber(vm.peek(1))
			if !aok || !bok {
				return vm.runtimeError(frame, chunk, instrOffset, "Operands must be numbers.")
			}
			vm.pop()
			vm.pop()
			switch op {
			case OpSub:
				vm.push(NumberValue(an - bn))
			case OpMul:
				vm.push(NumberValue(an * bn))
			case OpDiv:
				vm.push(NumberValue(an / bn))
			}

		case OpDefGlobal:
			name := readConstant().AsString()
			vm.globals.Set(name, vm.peek(0))
			vm.pop()
		case OpDefGlobalLong:
			name := readConstantLong().AsString()
			vm.globals.Set(name, vm.peek(0))
			vm.pop()

		case OpGetGlobal:
			name := readConstant().AsString()
			value, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError(frame, chunk, instrOffset, "Undefined variable '%s'.", name.bytes)
			}
			vm.push(value)
		case OpGetGlobalLong:
			name := readConstantLong().AsString()
			value, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError(frame, chunk, instrOffset, "Undefined variable '%s'.", name.bytes)
			}
			vm.push(value)

		case OpSetGlobal:
			name := readConstant().AsString()
			if vm.globals.Set(name, vm.peek(0)) {
				vm.globals.Delete(name)
				return vm.runtimeError(frame, chunk, instrOffset, "Undefined variable '%s'.", name.bytes)
			}
		case OpSetGlobalLong:
			name := readConstantLong().AsString()
			if vm.globals.Set(name, vm.peek(0)) {
				vm.globals.Delete(name)
				return vm.runtimeError(frame, chunk, instrOffset, "Undefined variable '%s'.", name.bytes)
			}

		case OpGetLocal0, OpGetLocal1, OpGetLocal2, OpGetLocal3, OpGetLocal4,
			OpGetLocal5, OpGetLocal6, OpGetLocal7, OpGetLocal8:
			slot := int(op - OpGetLocal0)
			vm.push(vm.stack[frame.slots+slot])
		case OpGetLocal:
			slot := int(readByte())
			vm.push(vm.stack[frame.slots+slot])
		case OpSetLocal:
			slot := int(readByte())
			vm.stack[frame.slots+slot] = vm.peek(0)

		case OpJump:
			offset := int(int16(readWord()))
			frame.ip += offset
		case OpJumpFalse:
			offset := int(int16(readWord()))
			if vm.peek(0).IsFalsey() {
				frame.ip += offset
			}

		case OpCall:
			argc := int(readByte())
			callee := vm.peek(argc)
			if !vm.callValue(callee, argc) {
				return vm.runtimeError(frame, chunk, instrOffset, "%s", vm.lastCallError)
			}
			frame = &vm.frames[vm.frameCount-1]
			chunk = frame.function.chunk

		case OpReturn:
			result := vm.pop()
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return InterpretOK
			}
			vm.stackTop = frame.slots
			vm.push(result)
			frame = &vm.frames[vm.frameCount-1]
			chunk = frame.function.chunk

		default:
			return vm.runtimeError(frame, chunk, instrOffset, "Unknown opcode %d.", byte(op))
		}
	}
}

// asNumber implements the "bool coerces to number first" rule shared by
// NEG, comparisons and arithmetic (spec.md §4.6/§4.8).
func asNumber(v Value) (float64, bool) {
	switch {
	case v.IsNumber():
		return v.AsNumber(), true
	case v.IsBool():
		return boolToFloat(v.AsBool()), true
	default:
		return 0, false
	}
}

func (vm *VM) callValue(callee Value, argc int) bool {
	switch {
	case callee.IsFunction():
		return vm.callFunction(callee.AsFunction(), argc)
	case callee.IsCFn():
		// Native calls don't push a CallFrame, so they never consume frame
		// capacity; the framesMax check belongs only to callFunction.
		args := vm.stack[vm.stackTop-argc : vm.stackTop]
		result, err := callee.AsCFn()(vm, args)
		if err != nil {
			vm.lastCallError = err.Error()
			return false
		}
		vm.stackTop -= argc + 1
		vm.push(result)
		return true
	default:
		vm.lastCallError = "Can only call functions and classes."
		return false
	}
}

func (vm *VM) callFunction(function *Function, argc int) bool {
	if argc != function.arity {
		vm.lastCallError = fmt.Sprintf("Expected %d arguments but got %d.", function.arity, argc)
		return false
	}
	if vm.frameCount == framesMax {
		vm.lastCallError = "Stack overflow."
		return false
	}

	vm.frames[vm.frameCount] = CallFrame{
		function: function,
		ip:       0,
		slots:    vm.stackTop - argc - 1,
	}
	vm.frameCount++
	return true
}

// runtimeError formats message, walks the frame stack newest-first printing
// a `[line:col] in NAME` backtrace line per frame, resets the stack, and
// returns InterpretRuntimeError (spec.md §4.8 "Runtime-error behavior").
func (vm *VM) runtimeError(frame *CallFrame, chunk *Chunk, instrOffset int, format string, args ...any) InterpretResult {
	rtErr := &RuntimeError{Message: fmt.Sprintf(format, args...)}

	for i := vm.frameCount - 1; i >= 0; i-- {
		f := &vm.frames[i]
		ip := f.ip
		if i == vm.frameCount-1 {
			ip = instrOffset + 1
		}
		line, column := f.function.chunk.Position(ip - 1)
		rtErr.Backtrace = append(rtErr.Backtrace, BacktraceFrame{
			Name:   functionDisplayName(f.function),
			Line:   line,
			Column: column,
		})
	}

	fmt.Fprintln(vm.stdout, rtErr.Error())
	Log.WithField("error", rtErr.Message).Error("runtime error")

	vm.lastRuntimeError = rtErr
	vm.resetStack()
	return InterpretRuntimeError
}

func functionDisplayName(f *Function) string {
	if f.name == nil {
		return "script"
	}
	return string(f.name.bytes)
}
