package container

// Order selects which end of the key range sits at the root of a Heap.
type Order int

const (
	// MinHeap keeps the smallest key at the root.
	MinHeap Order = iota
	// MaxHeap keeps the largest key at the root.
	MaxHeap
)

// Heap is a binary heap over a PairArray, ordered by key. The value travels
// with its key; valueBits may be zero.
type Heap[P Parent] struct {
	pairs PairArray[P]
	order Order
}

// NewHeap returns the heap stored in child index of parent.
func NewHeap[P Parent](parent P, index, keyBits, valueBits uint64, order Order) Heap[P] {
	return Heap[P]{pairs: NewPairArray(parent, index, keyBits, valueBits), order: order}
}

// Pairs exposes the underlying pair array.
func (h Heap[P]) Pairs() PairArray[P] { return h.pairs }

// Len returns the number of elements.
func (h Heap[P]) Len() uint64 { return h.pairs.Len() }

// Key returns the key of element i.
func (h Heap[P]) Key(i uint64) uint64 { return h.pairs.Key(i) }

// Value returns the value of element i.
func (h Heap[P]) Value(i uint64) uint64 { return h.pairs.Value(i) }

// Top returns the root element. ok is false on an empty heap.
func (h Heap[P]) Top() (key, value uint64, ok bool) {
	if h.Len() == 0 {
		return 0, 0, false
	}
	return h.pairs.Key(0), h.pairs.Value(0), true
}

// Build restores the heap property over the whole array in linear time.
func (h Heap[P]) Build() {
	n := h.Len()
	for i := n / 2; i > 0; i-- {
		h.siftDown(i-1, n)
	}
}

// Insert adds (k, v) and returns the index it settled at.
func (h Heap[P]) Insert(k, v uint64) uint64 {
	n := h.Len()
	h.pairs.InsertAt(n, k, v)
	return h.SiftToRoot(n)
}

// Pop removes and returns the root element. ok is false on an empty heap.
func (h Heap[P]) Pop() (key, value uint64, ok bool) {
	key, value, ok = h.Top()
	if ok {
		h.EraseAt(0)
	}
	return key, value, ok
}

// EraseAt removes element i, filling the hole with the last element and
// sifting it into place.
func (h Heap[P]) EraseAt(i uint64) {
	n := h.Len()
	checkIndex(i, n)
	last := n - 1
	h.pairs.Swap(i, last)
	h.pairs.EraseAt(last)
	if i < last {
		h.restore(i)
	}
}

// SetKeyAt rekeys element i and returns the index it settled at. The element
// may travel toward the root or toward the leaves.
func (h Heap[P]) SetKeyAt(i, k uint64) uint64 {
	h.pairs.SetKey(i, k)
	return h.restore(i)
}

// SiftToRoot moves element i up while it outranks its parent and returns its
// final index.
func (h Heap[P]) SiftToRoot(i uint64) uint64 {
	checkIndex(i, h.Len())
	for i > 0 {
		up := (i - 1) / 2
		if !h.before(i, up) {
			break
		}
		h.pairs.Swap(i, up)
		i = up
	}
	return i
}

// SiftToLeaves moves element i down while a child outranks it and returns its
// final index.
func (h Heap[P]) SiftToLeaves(i uint64) uint64 {
	n := h.Len()
	checkIndex(i, n)
	return h.siftDown(i, n)
}

// ReverseSort turns the array into sorted order opposite to the heap order:
// a MinHeap ends up descending, a MaxHeap ascending.
func (h Heap[P]) ReverseSort() {
	h.Build()
	for end := h.Len(); end > 1; end-- {
		h.pairs.Swap(0, end-1)
		h.siftDown(0, end-1)
	}
}

// Keys returns a copy of all keys in array order.
func (h Heap[P]) Keys() []uint64 {
	n := h.Len()
	out := make([]uint64, n)
	for i := range n {
		out[i] = h.pairs.Key(i)
	}
	return out
}

func (h Heap[P]) restore(i uint64) uint64 {
	if j := h.SiftToRoot(i); j != i {
		return j
	}
	return h.siftDown(i, h.Len())
}

// siftDown sifts within the first n elements.
func (h Heap[P]) siftDown(i, n uint64) uint64 {
	for {
		best := i
		if l := 2*i + 1; l < n && h.before(l, best) {
			best = l
		}
		if r := 2*i + 2; r < n && h.before(r, best) {
			best = r
		}
		if best == i {
			return i
		}
		h.pairs.Swap(i, best)
		i = best
	}
}

// before reports whether element a belongs strictly nearer the root than b.
func (h Heap[P]) before(a, b uint64) bool {
	ka, kb := h.pairs.Key(a), h.pairs.Key(b)
	if h.order == MaxHeap {
		return ka > kb
	}
	return ka < kb
}
