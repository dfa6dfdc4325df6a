package container

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireHeap[P Parent](t *testing.T, h Heap[P]) {
	t.Helper()

	n := h.Len()
	for i := range n {
		for _, c := range []uint64{2*i + 1, 2*i + 2} {
			if c >= n {
				continue
			}
			if h.order == MinHeap {
				require.LessOrEqual(t, h.Key(i), h.Key(c), "parent %d child %d", i, c)
			} else {
				require.GreaterOrEqual(t, h.Key(i), h.Key(c), "parent %d child %d", i, c)
			}
		}
	}
}

func fillHeap(h Heap[Root], keys []uint64) {
	p := h.Pairs()
	for i, k := range keys {
		p.InsertAt(uint64(i), k, k^0xF)
	}
}

func TestHeap_Build(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	keys := make([]uint64, 97)
	for i := range keys {
		keys[i] = rng.Uint64N(1000)
	}

	for _, order := range []Order{MinHeap, MaxHeap} {
		h := NewHeap(newRoot(), 0, 10, 10, order)
		fillHeap(h, keys)
		h.Build()
		requireHeap(t, h)

		for i := range h.Len() {
			assert.Equal(t, h.Key(i)^0xF, h.Value(i), "value follows key")
		}
	}
}

func TestHeap_InsertPop(t *testing.T) {
	h := NewHeap(newRoot(), 0, 16, 0, MinHeap)
	for _, k := range []uint64{42, 7, 19, 3, 88, 7, 25} {
		h.Insert(k, 0)
		requireHeap(t, h)
	}

	var got []uint64
	for {
		k, _, ok := h.Pop()
		if !ok {
			break
		}
		got = append(got, k)
		requireHeap(t, h)
	}
	assert.Equal(t, []uint64{3, 7, 7, 19, 25, 42, 88}, got)

	_, _, ok := h.Top()
	assert.False(t, ok)
}

func TestHeap_EraseAt(t *testing.T) {
	h := NewHeap(newRoot(), 0, 16, 0, MaxHeap)
	for _, k := range []uint64{50, 40, 30, 39, 38, 29, 28, 1, 2} {
		h.Insert(k, 0)
	}

	for h.Len() > 0 {
		h.EraseAt(h.Len() / 3)
		requireHeap(t, h)
	}
}

func TestHeap_ReverseSort(t *testing.T) {
	keys := []uint64{5, 1, 9, 3, 7, 3, 0, 8}

	t.Run("min heap sorts descending", func(t *testing.T) {
		h := NewHeap(newRoot(), 0, 8, 0, MinHeap)
		fillHeap(h, keys)
		h.ReverseSort()
		want := slices.Clone(keys)
		slices.Sort(want)
		slices.Reverse(want)
		assert.Equal(t, want, h.Keys())
	})

	t.Run("max heap sorts ascending", func(t *testing.T) {
		h := NewHeap(newRoot(), 0, 8, 0, MaxHeap)
		fillHeap(h, keys)
		h.ReverseSort()
		want := slices.Clone(keys)
		slices.Sort(want)
		assert.Equal(t, want, h.Keys())
	})
}

func TestHeap_SetKeyAt(t *testing.T) {
	h := NewHeap(newRoot(), 0, 16, 8, MinHeap)
	for _, k := range []uint64{1, 5, 3, 9, 6, 4} {
		h.Insert(k, k)
	}

	// Raising the root must sift it toward the leaves.
	i := h.SetKeyAt(0, 100)
	assert.NotZero(t, i)
	assert.Equal(t, uint64(100), h.Key(i))
	assert.Equal(t, uint64(1), h.Value(i))
	requireHeap(t, h)

	// Lowering a leaf sifts it to the root.
	leaf := h.Len() - 1
	i = h.SetKeyAt(leaf, 0)
	assert.Zero(t, i)
	requireHeap(t, h)

	k, _, _ := h.Top()
	assert.Equal(t, uint64(0), k)
}
