package loxvm

// intern.go implements the process-wide (per-VM) string-intern table spec.md
// §2/§3 requires: "a process-wide string-intern table guarantees
// pointer-equality for equal strings." Every string allocation path --
// literals in the compiler, runtime concatenation in the VM -- funnels
// through InternTable.Intern, the "pure function of (VM, bytes) returning an
// interned handle" spec.md §9 asks for in place of interning as a
// crosscutting side effect.

const (
	fnvOffsetBasis32 = 2166136261
	fnvPrime32       = 16777619
)

// hashFNV1a computes the 32-bit FNV-1a hash spec.md §4.5 specifies for
// string keys.
func hashFNV1a(bytes []byte) uint32 {
	hash := uint32(fnvOffsetBasis32)
	for _, b := range bytes {
		hash ^= uint32(b)
		hash *= fnvPrime32
	}
	return hash
}

// InternTable is a Table used as a hash *set* of Strings: the stored Value is
// always NilValue, only the key (and its presence) matters. Strings are
// deduplicated by (bytes, hash) before consulting it, the same way the
// teacher's compiler deduplicates constant names into `stringsMap`
// (grammar_compiler.go).
type InternTable struct {
	table *Table
	heap  *Heap
}

func NewInternTable(heap *Heap) *InternTable {
	return &InternTable{table: NewTable(), heap: heap}
}

// Intern returns the canonical *String for bytes, allocating and linking a
// new one onto the heap only if no equal string has been interned before.
// The returned pointer is stable: two calls with byte-equal input return the
// identical pointer, which is what makes Value equality for strings a
// pointer comparison (spec.md §4.6).
func (it *InternTable) Intern(bytes []byte) *String {
	hash := hashFNV1a(bytes)
	if existing := it.table.FindString(bytes, hash); existing != nil {
		return existing
	}

	owned := make([]byte, len(bytes))
	copy(owned, bytes)
	str := newString(owned, hash)

	it.table.Set(str, NilValue())
	it.heap.track(str, int64(len(owned)))
	return str
}

// InternString is a convenience wrapper for Go string values.
func (it *InternTable) InternString(s string) *String {
	return it.Intern([]byte(s))
}

// Count returns how many distinct strings are currently interned, used by
// the property test in intern_test.go that checks "exactly one entry per
// distinct byte sequence" (spec.md §8).
func (it *InternTable) Count() int {
	return it.table.Count()
}
