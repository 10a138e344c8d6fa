package loxvm

import "github.com/dustin/go-humanize"

// object.go implements the heap object subsystem spec.md §3/§4.7 describes:
// a discriminated set of heap cell types linked into a singly-linked list for
// eventual sweep, grounded on the original's object.c/object.h
// (`_examples/original_source/src/object.c`). Go's garbage collector already
// reclaims these values; the object list and counters exist because spec.md
// §4.7/§5 specifies them as part of the VM's observable contract (a future
// tracing collector needs the list), not because this implementation needs
// them for memory safety.

// Obj is the common interface every heap value implements, replacing the C
// original's "common header + manual downcast" (object.h's `obj_t` struct)
// with the tagged-object variant spec.md §9 calls for: a type switch on the
// concrete Go type stands in for the `kind` check the design note asks for.
type Obj interface {
	objNext() Obj
	setObjNext(Obj)
}

type objHeader struct {
	next Obj
}

func (h *objHeader) objNext() Obj       { return h.next }
func (h *objHeader) setObjNext(o Obj)   { h.next = o }

// String is an immutable, interned byte sequence with a precomputed FNV-1a
// hash (spec.md §3 "String"). Equality between Strings is always pointer
// equality -- enforced by routing every allocation through the VM's intern
// table (intern.go).
type String struct {
	objHeader
	bytes []byte
	hash  uint32
}

// Function is a compiled unit: arity, an optional interned name, and the
// Chunk the compiler emitted for it (spec.md §3 "Function"). The top-level
// script is an anonymous Function with arity 0 and a nil name.
type Function struct {
	objHeader
	arity int
	name  *String
	chunk *Chunk
}

// newFunction allocates a Function and links it onto heap's object list via
// track, the same call InternTable.Intern makes for new Strings, so every compiled Function
// (one per `fun` declaration plus the top-level script) stays reachable from
// the object list until freed (spec.md §3, §4.7).
func newFunction(heap *Heap) *Function {
	f := &Function{chunk: NewChunk()}
	heap.track(f, 0)
	return f
}

// Map is a composite object with an integer-keyed part (reserved for a
// future sequence/array use) and a string-keyed hash table part (spec.md §3
// "Map"). The native library tables (spec.md §4.9) are Maps; the VM's
// globals namespace is a bare Table (vm.go), not a Map.
type Map struct {
	objHeader
	array  *IntTable
	fields *Table
}

// newMap allocates a Map and links it onto heap's object list (spec.md §3,
// §4.7), the same as newFunction and InternTable.Intern: every heap cell kind
// goes through the same track call, not just strings.
func newMap(heap *Heap) *Map {
	m := &Map{array: NewIntTable(), fields: NewTable()}
	heap.track(m, 0)
	return m
}

func (m *Map) Get(key *String) (Value, bool) { return m.fields.Get(key) }
func (m *Map) Set(key *String, value Value)  { m.fields.Set(key, value) }

// Heap owns the singly linked list of live objects (spec.md §4.7) and the
// allocation counters `gc_realloc` tracks in the original. track links every
// new object at the head of the list. VM.Close drops the list head; no
// per-object free pass walks the list.
type Heap struct {
	head      Obj
	allocated int64
	next      int64
}

// defaultGCThreshold is the initial value of `next` in the original's
// gc_realloc bookkeeping. Crossing it invokes the collect hook, which
// reclaims nothing (spec.md §4.7: "may be a no-op in initial
// implementations"); it is also reported via Stats.
const defaultGCThreshold = 1 << 20

func NewHeap() *Heap {
	return &Heap{next: defaultGCThreshold}
}

// track links obj at the head of the object list and accounts for its
// allocation, mirroring allocateObject's contract (spec.md §4.7).
func (h *Heap) track(obj Obj, size int64) {
	obj.setObjNext(h.head)
	h.head = obj
	h.allocated += size
	if h.allocated > h.next {
		h.collect()
	}
}

// collect is the reserved hook for a future tracing collector (spec.md §4.7,
// §1 Non-goals: "the design reserves hooks for a tracing collector but
// implementations may start with no reclamation"). It currently only raises
// the threshold so the hook does not fire on every allocation thereafter.
func (h *Heap) collect() {
	h.next = h.allocated * 2
	traceGC(h.Stats())
}

// HeapStats holds the current allocation counters; HeapStats.String formats
// them with go-humanize for the GC trace in debug.go.
type HeapStats struct {
	Allocated int64
	Threshold int64
}

func (h *Heap) Stats() HeapStats {
	return HeapStats{Allocated: h.allocated, Threshold: h.next}
}

// String renders the heap counters as human-readable byte counts (e.g.
// "allocated 512 kB, next GC at 1.0 MB"), the way `gad-lang/gad`'s VM reports
// heap/byte counts with go-humanize; debug.go's traceGC logs it.
func (s HeapStats) String() string {
	return "allocated " + humanize.Bytes(uint64(s.Allocated)) + ", next GC at " + humanize.Bytes(uint64(s.Threshold))
}

func newString(bytes []byte, hash uint32) *String {
	return &String{bytes: bytes, hash: hash}
}
