package loxvm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkPositionsAreOneBased(t *testing.T) {
	chunk := NewChunk()
	chunk.Emit(byte(OpNil), 1, 1)
	chunk.Emit(byte(OpTrue), 2, 5)
	chunk.Emit(byte(OpPop), 100, 1)

	for i := 0; i < chunk.Len(); i++ {
		line, col := chunk.Position(i)
		assert.GreaterOrEqual(t, line, 1)
		assert.GreaterOrEqual(t, col, 1)
	}
}

func TestConstantLongRoundTrip(t *testing.T) {
	// Assembling CONSTL k then reading it back reproduces k, for every
	// k in [0, 65535] (spec.md §8); sampled densely rather than
	// exhaustively to keep the test fast.
	for k := 0; k <= 65535; k += 97 {
		chunk := NewChunk()
		chunk.Emit(byte(OpConstLong), 1, 1)
		chunk.EmitWord(uint16(k), 1, 1)

		got := uint16(chunk.code[1])<<8 | uint16(chunk.code[2])
		require.Equal(t, uint16(k), got)
	}
}

func TestConstantDedup(t *testing.T) {
	chunk := NewChunk()
	i1 := chunk.AddConstant(NumberValue(42), true)
	i2 := chunk.AddConstant(NumberValue(42), true)
	i3 := chunk.AddConstant(NumberValue(43), true)

	assert.Equal(t, i1, i2)
	assert.NotEqual(t, i1, i3)
	assert.Equal(t, 2, chunk.ConstantCount())
}

func TestEmitWordBigEndianRoundTrip(t *testing.T) {
	for _, w := range []uint16{0, 1, 255, 256, 65535, 4099} {
		chunk := NewChunk()
		chunk.EmitWord(w, 1, 1)
		got := uint16(chunk.code[0])<<8 | uint16(chunk.code[1])
		assert.Equal(t, w, got)
	}
}
