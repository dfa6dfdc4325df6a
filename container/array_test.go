package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArray_InsertErase(t *testing.T) {
	root := newRoot()
	a := NewArray(root, 0, 4)

	for i, v := range []uint64{1, 2, 3} {
		a.InsertAt(uint64(i), v)
	}
	require.Equal(t, []uint64{1, 2, 3}, a.Values())
	assert.Equal(t, uint64(12), root.Vector().Size())

	a.InsertAt(1, 9)
	assert.Equal(t, []uint64{1, 9, 2, 3}, a.Values())

	a.EraseAt(0)
	assert.Equal(t, []uint64{9, 2, 3}, a.Values())
	assert.Equal(t, uint64(3), a.Len())
}

func TestArray_MoveElementAt(t *testing.T) {
	tests := []struct {
		name     string
		dst, src uint64
		want     []uint64
	}{
		{"forward", 3, 0, []uint64{1, 2, 3, 0, 4}},
		{"backward", 0, 4, []uint64{4, 0, 1, 2, 3}},
		{"neighbour", 2, 1, []uint64{0, 2, 1, 3, 4}},
		{"noop", 2, 2, []uint64{0, 1, 2, 3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewArray(newRoot(), 0, 7)
			for i := range uint64(5) {
				a.InsertAt(i, i)
			}

			a.MoveElementAt(tt.dst, tt.src)
			assert.Equal(t, tt.want, a.Values())
		})
	}
}

func TestArray_Bounds(t *testing.T) {
	a := NewArray(newRoot(), 0, 8)
	a.InsertRange(0, 2)

	requirePanicIs(t, ErrOutOfRange, func() { a.Get(2) })
	requirePanicIs(t, ErrOutOfRange, func() { a.InsertAt(3, 1) })
	requirePanicIs(t, ErrOutOfRange, func() { a.EraseRange(1, 2) })
	requirePanicIs(t, ErrContract, func() { NewArray(newRoot(), 0, 65) })
	requirePanicIs(t, ErrContract, func() { NewArray(newRoot(), 0, 0) })
}

func TestPairArray(t *testing.T) {
	p := NewPairArray(newRoot(), 0, 12, 5)

	p.InsertAt(0, 100, 1)
	p.InsertAt(1, 300, 3)
	p.InsertAt(1, 200, 2)

	require.Equal(t, uint64(3), p.Len())
	assert.Equal(t, uint64(200), p.Key(1))
	assert.Equal(t, uint64(2), p.Value(1))

	p.Swap(0, 2)
	assert.Equal(t, uint64(300), p.Key(0))
	assert.Equal(t, uint64(3), p.Value(0))
	assert.Equal(t, uint64(100), p.Key(2))
	assert.Equal(t, uint64(1), p.Value(2))

	p.MoveElementAt(0, 2)
	assert.Equal(t, uint64(100), p.Key(0))
	assert.Equal(t, uint64(300), p.Key(1))

	t.Run("keys only", func(t *testing.T) {
		k := NewPairArray(newRoot(), 0, 9, 0)
		k.InsertAt(0, 511, 0)
		assert.Equal(t, uint64(511), k.Key(0))
		assert.Equal(t, uint64(0), k.Value(0))
	})
}
