package loxvm

import "strconv"

// valueKind tags a Value's active field. Go has no native tagged union, so
// Value carries its tag explicitly rather than attempting a NaN-boxed
// encoding; spec.md §3 calls this out as "a tagged value" and leaves the
// encoding to the implementation.
type valueKind uint8

const (
	valNil valueKind = iota
	valBool
	valNumber
	valObj
	valCFn
	valPtr
)

// NativeFn is a native (Go-implemented) callable registered as a global, the
// CFn variant of Value (spec.md §3, §4.9).
type NativeFn func(vm *VM, args []Value) (Value, error)

// Value is the tagged union over {Nil, Bool, Num, Obj, CFn, Ptr} spec.md §3
// describes.
type Value struct {
	kind valueKind
	num  float64
	obj  Obj
	cfn  NativeFn
	ptr  any
}

func NilValue() Value                 { return Value{kind: valNil} }
func BoolValue(b bool) Value          { return Value{kind: valBool, num: boolToFloat(b)} }
func NumberValue(n float64) Value     { return Value{kind: valNumber, num: n} }
func ObjValue(o Obj) Value            { return Value{kind: valObj, obj: o} }
func NativeFnValue(fn NativeFn) Value { return Value{kind: valCFn, cfn: fn} }
func PtrValue(p any) Value            { return Value{kind: valPtr, ptr: p} }

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (v Value) IsNil() bool    { return v.kind == valNil }
func (v Value) IsBool() bool   { return v.kind == valBool }
func (v Value) IsNumber() bool { return v.kind == valNumber }
func (v Value) IsObj() bool    { return v.kind == valObj }
func (v Value) IsCFn() bool    { return v.kind == valCFn }
func (v Value) IsPtr() bool    { return v.kind == valPtr }

func (v Value) IsString() bool {
	_, ok := v.obj.(*String)
	return v.kind == valObj && ok
}

func (v Value) IsFunction() bool {
	_, ok := v.obj.(*Function)
	return v.kind == valObj && ok
}

func (v Value) IsMap() bool {
	_, ok := v.obj.(*Map)
	return v.kind == valObj && ok
}

func (v Value) AsBool() bool       { return v.num != 0 }
func (v Value) AsNumber() float64  { return v.num }
func (v Value) AsObj() Obj         { return v.obj }
func (v Value) AsCFn() NativeFn    { return v.cfn }
func (v Value) AsPtr() any         { return v.ptr }
func (v Value) AsString() *String  { return v.obj.(*String) }
func (v Value) AsFunction() *Function {
	return v.obj.(*Function)
}
func (v Value) AsMap() *Map { return v.obj.(*Map) }

// IsFalsey implements spec.md §4.6's falsey law: a value is falsey iff its
// raw representation is the zero value, i.e. exactly nil and boolean false.
// Everything else -- 0.0, "", empty maps -- is truthy.
func (v Value) IsFalsey() bool {
	switch v.kind {
	case valNil:
		return true
	case valBool:
		return !v.AsBool()
	default:
		return false
	}
}

// Equal implements spec.md §4.6's val_equal: booleans by value, numbers by
// IEEE equality, strings/functions/maps/opaque Ptr values by pointer, and a
// bool-vs-number comparison coerces the bool to 0.0/1.0 before comparing.
// Every other kind mismatch is unequal. Native function (CFn) values never
// compare equal, not even to themselves.
func Equal(a, b Value) bool {
	if a.kind == b.kind {
		switch a.kind {
		case valNil:
			return true
		case valBool:
			return a.AsBool() == b.AsBool()
		case valNumber:
			return a.num == b.num
		case valObj:
			return a.obj == b.obj
		case valPtr:
			return a.ptr == b.ptr
		case valCFn:
			return false
		}
	}

	if a.kind == valBool && b.kind == valNumber {
		return a.num == b.num
	}
	if a.kind == valNumber && b.kind == valBool {
		return a.num == b.num
	}
	return false
}

// TypeName returns the value's type name from spec.md §4.6's "Type-of for
// print" list.
func (v Value) TypeName() string {
	switch v.kind {
	case valNil:
		return "nil"
	case valBool:
		return "bool"
	case valNumber:
		return "num"
	case valCFn:
		return "fn"
	case valPtr:
		return "ptr"
	case valObj:
		switch v.obj.(type) {
		case *String:
			return "str"
		case *Function:
			return "fn"
		case *Map:
			return "map"
		default:
			return "obj"
		}
	}
	return "obj"
}

// String formats v the way spec.md §4.6 "Printing" specifies: numbers with
// %.14g, strings as their raw bytes, booleans as true/false, nil as nil, and
// functions as <script> for the top-level function or "fn: NAME" otherwise.
func (v Value) String() string {
	switch v.kind {
	case valNil:
		return "nil"
	case valBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case valNumber:
		return formatNumber(v.num)
	case valCFn:
		return "<native fn>"
	case valPtr:
		return "<ptr>"
	case valObj:
		switch o := v.obj.(type) {
		case *String:
			return string(o.bytes)
		case *Function:
			if o.name == nil {
				return "<script>"
			}
			return "fn: " + string(o.name.bytes)
		case *Map:
			return "<map>"
		default:
			return "<obj>"
		}
	}
	return ""
}

// formatNumber mirrors the C original's `printf("%.14g", n)` (value.c),
// which Go's 'g' verb with 14 significant digits reproduces exactly.
func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'g', 14, 64)
}
