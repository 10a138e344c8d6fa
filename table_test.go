package loxvm

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func internedKeys(t *testing.T, heap *Heap, names ...string) []*String {
	t.Helper()
	it := NewInternTable(heap)
	keys := make([]*String, len(names))
	for i, n := range names {
		keys[i] = it.InternString(n)
	}
	return keys
}

func TestTableSetGetRemoveCount(t *testing.T) {
	heap := NewHeap()
	keys := internedKeys(t, heap, "alpha", "beta", "gamma", "delta")
	table := NewTable()

	for i, k := range keys {
		isNew := table.Set(k, NumberValue(float64(i)))
		assert.True(t, isNew)
	}
	require.Equal(t, len(keys), table.Count())

	for i, k := range keys {
		v, ok := table.Get(k)
		require.True(t, ok)
		assert.Equal(t, float64(i), v.AsNumber())
	}

	removed := table.Delete(keys[1])
	assert.True(t, removed)
	assert.Equal(t, len(keys), table.Count(), "count is unchanged by remove (spec.md §4.5)")

	_, ok := table.Get(keys[1])
	assert.False(t, ok)
}

func TestTableLoadFactorNeverExceeds075(t *testing.T) {
	heap := NewHeap()
	table := NewTable()
	names := make([]string, 0, 200)
	for i := 0; i < 200; i++ {
		names = append(names, fmt.Sprintf("key-%d", i))
	}
	keys := internedKeys(t, heap, names...)

	for i, k := range keys {
		table.Set(k, NumberValue(float64(i)))
		if table.capacity > 0 {
			loadFactor := float64(table.count) / float64(table.capacity)
			assert.LessOrEqual(t, loadFactor, tableMaxLoad)
		}
	}
}

func TestTableOverwriteIsNotANewKey(t *testing.T) {
	heap := NewHeap()
	keys := internedKeys(t, heap, "x")
	table := NewTable()

	assert.True(t, table.Set(keys[0], NumberValue(1)))
	assert.False(t, table.Set(keys[0], NumberValue(2)))

	v, ok := table.Get(keys[0])
	require.True(t, ok)
	assert.Equal(t, 2.0, v.AsNumber())
	assert.Equal(t, 1, table.Count())
}

func TestIntTableSetGet(t *testing.T) {
	table := NewIntTable()
	for i := uint64(0); i < 64; i++ {
		table.Set(i, NumberValue(float64(i*2)))
	}
	require.Equal(t, 64, table.Count())

	v, ok := table.Get(10)
	require.True(t, ok)
	assert.Equal(t, 20.0, v.AsNumber())

	_, ok = table.Get(999)
	assert.False(t, ok)
}

func TestFindString(t *testing.T) {
	heap := NewHeap()
	it := NewInternTable(heap)
	str := it.InternString("hello")

	table := NewTable()
	table.Set(str, NilValue())

	found := table.FindString([]byte("hello"), hashFNV1a([]byte("hello")))
	assert.Same(t, str, found)

	assert.Nil(t, table.FindString([]byte("nope"), hashFNV1a([]byte("nope"))))
}
