// Package symtab implements a paged table indexed by dense integer symbols.
package symtab

import "iter"

const (
	// segmentBits determines the size of each segment.
	// 12 bits = 4096 entries per segment.
	segmentBits = 12
	segmentSize = 1 << segmentBits
	segmentMask = segmentSize - 1
)

// Table maps dense uint64 indices to values of T. Storage is allocated in
// fixed-size segments on first write, so sparse tails cost nothing.
//
// Table is not safe for concurrent use.
type Table[T comparable] struct {
	segments []*segment[T]
	n        uint64 // one past the highest index ever set, until Truncate
}

type segment[T comparable] struct {
	items [segmentSize]T
	used  int
}

// New creates an empty Table.
func New[T comparable]() *Table[T] {
	return &Table[T]{}
}

// Get returns the value at index and whether it differs from the zero value.
func (t *Table[T]) Get(index uint64) (T, bool) {
	var zero T
	segIdx := index >> segmentBits
	if segIdx >= uint64(len(t.segments)) {
		return zero, false
	}
	seg := t.segments[segIdx]
	if seg == nil {
		return zero, false
	}
	v := seg.items[index&segmentMask]
	return v, v != zero
}

// Set stores value at index, growing the table if necessary. Setting the zero
// value clears the entry; a segment with no entries left is dropped.
func (t *Table[T]) Set(index uint64, value T) {
	var zero T
	segIdx := index >> segmentBits

	if segIdx >= uint64(len(t.segments)) {
		if value == zero {
			return
		}
		grown := make([]*segment[T], segIdx+1)
		copy(grown, t.segments)
		t.segments = grown
	}

	seg := t.segments[segIdx]
	if seg == nil {
		if value == zero {
			return
		}
		seg = &segment[T]{}
		t.segments[segIdx] = seg
	}

	slot := &seg.items[index&segmentMask]
	switch {
	case *slot == zero && value != zero:
		seg.used++
	case *slot != zero && value == zero:
		seg.used--
	}
	*slot = value

	if seg.used == 0 {
		t.segments[segIdx] = nil
	}
	if value != zero && index >= t.n {
		t.n = index + 1
	}
}

// Len returns one past the highest index ever set.
func (t *Table[T]) Len() uint64 { return t.n }

// Count returns the number of non-zero entries.
func (t *Table[T]) Count() uint64 {
	var n uint64
	for _, seg := range t.segments {
		if seg != nil {
			n += uint64(seg.used) //nolint:gosec // bounded by segmentSize
		}
	}
	return n
}

// Truncate drops every entry at or beyond n.
func (t *Table[T]) Truncate(n uint64) {
	if n >= t.n {
		return
	}
	var zero T
	keep := (n + segmentMask) >> segmentBits
	if keep < uint64(len(t.segments)) {
		clear(t.segments[keep:])
		t.segments = t.segments[:keep]
	}
	if n&segmentMask != 0 && keep > 0 && t.segments[keep-1] != nil {
		base := (keep - 1) << segmentBits
		for i := n & segmentMask; i < segmentSize; i++ {
			t.Set(base|i, zero)
		}
	}
	t.n = n
}

// All yields every non-zero entry in index order.
func (t *Table[T]) All() iter.Seq2[uint64, T] {
	return func(yield func(uint64, T) bool) {
		var zero T
		for s, seg := range t.segments {
			if seg == nil {
				continue
			}
			base := uint64(s) << segmentBits //nolint:gosec // s is a slice index
			for i, v := range seg.items {
				if v == zero {
					continue
				}
				if !yield(base+uint64(i), v) { //nolint:gosec // i < segmentSize
					return
				}
			}
		}
	}
}
