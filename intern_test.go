package loxvm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternPointerEquality(t *testing.T) {
	heap := NewHeap()
	it := NewInternTable(heap)

	a := it.Intern([]byte("shared"))
	b := it.Intern([]byte("shared"))
	assert.Same(t, a, b, "byte-equal strings must intern to the same pointer (spec.md §8)")
}

func TestInternDistinctCount(t *testing.T) {
	heap := NewHeap()
	it := NewInternTable(heap)

	it.InternString("one")
	it.InternString("two")
	it.InternString("one")
	it.InternString("three")

	require.Equal(t, 3, it.Count(), "the intern table holds exactly one entry per distinct byte sequence")
}

func TestHashFNV1aKnownVector(t *testing.T) {
	// FNV-1a 32-bit of the empty string is the offset basis itself.
	assert.Equal(t, uint32(2166136261), hashFNV1a(nil))
}
