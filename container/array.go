package container

import (
	"fmt"

	"github.com/hupe1980/bitslab/bitvec"
)

// Array is a packed array of fixed-width unsigned integers occupying child
// index of its parent. Its length is the child's bit length divided by width.
type Array[P Parent] struct {
	parent P
	index  uint64
	width  uint64
}

// NewArray returns the array stored in child index of parent, with elements
// of width bits (1..64).
func NewArray[P Parent](parent P, index, width uint64) Array[P] {
	checkWidth("element", width)
	return Array[P]{parent: parent, index: index, width: width}
}

// Width returns the element width in bits.
func (a Array[P]) Width() uint64 { return a.width }

// Len returns the number of elements.
func (a Array[P]) Len() uint64 {
	return a.parent.ChildLength(a.index) / a.width
}

// Get returns element i.
func (a Array[P]) Get(i uint64) uint64 {
	checkIndex(i, a.Len())
	return a.parent.Vector().Read(a.pos(i), a.width)
}

// Set overwrites element i.
func (a Array[P]) Set(i, v uint64) {
	checkIndex(i, a.Len())
	a.parent.Vector().Write(a.pos(i), a.width, v)
}

// InsertAt inserts v before element i (i == Len appends).
func (a Array[P]) InsertAt(i, v uint64) {
	a.InsertRange(i, 1)
	a.parent.Vector().Write(a.pos(i), a.width, v)
}

// InsertRange inserts n zero elements before element i.
func (a Array[P]) InsertRange(i, n uint64) {
	checkSpan(i, 0, a.Len())
	a.parent.GrowChild(a.index, i*a.width, n*a.width)
}

// EraseAt removes element i.
func (a Array[P]) EraseAt(i uint64) {
	a.EraseRange(i, 1)
}

// EraseRange removes n elements starting at i.
func (a Array[P]) EraseRange(i, n uint64) {
	checkSpan(i, n, a.Len())
	a.parent.ShrinkChild(a.index, i*a.width, n*a.width)
}

// MoveElementAt relocates element src so that it ends up at index dst.
func (a Array[P]) MoveElementAt(dst, src uint64) {
	n := a.Len()
	checkIndex(src, n)
	checkIndex(dst, n)
	if dst == src {
		return
	}
	v := a.Get(src)
	a.EraseAt(src)
	a.InsertAt(dst, v)
}

// Values returns a copy of all elements.
func (a Array[P]) Values() []uint64 {
	n := a.Len()
	out := make([]uint64, n)
	vec := a.parent.Vector()
	for i := range n {
		out[i] = vec.Read(a.pos(i), a.width)
	}
	return out
}

func (a Array[P]) pos(i uint64) uint64 {
	return a.parent.ChildOffset(a.index) + i*a.width
}

// PairArray is an array of (key, value) elements. Either half may be wider
// than the other; valueBits may be zero for a plain key array.
type PairArray[P Parent] struct {
	parent    P
	index     uint64
	keyBits   uint64
	valueBits uint64
}

// NewPairArray returns the pair array stored in child index of parent.
func NewPairArray[P Parent](parent P, index, keyBits, valueBits uint64) PairArray[P] {
	checkWidth("key", keyBits)
	if valueBits > 64 {
		panic(fmt.Errorf("%w: value width %d exceeds 64", ErrContract, valueBits))
	}
	return PairArray[P]{parent: parent, index: index, keyBits: keyBits, valueBits: valueBits}
}

// Len returns the number of elements.
func (a PairArray[P]) Len() uint64 {
	return a.parent.ChildLength(a.index) / a.stride()
}

// Key returns the key of element i.
func (a PairArray[P]) Key(i uint64) uint64 {
	checkIndex(i, a.Len())
	return a.vec().Read(a.pos(i), a.keyBits)
}

// Value returns the value of element i.
func (a PairArray[P]) Value(i uint64) uint64 {
	checkIndex(i, a.Len())
	return a.vec().Read(a.pos(i)+a.keyBits, a.valueBits)
}

// SetKey overwrites the key of element i without regard to ordering.
func (a PairArray[P]) SetKey(i, k uint64) {
	checkIndex(i, a.Len())
	a.vec().Write(a.pos(i), a.keyBits, k)
}

// SetValue overwrites the value of element i.
func (a PairArray[P]) SetValue(i, v uint64) {
	checkIndex(i, a.Len())
	a.vec().Write(a.pos(i)+a.keyBits, a.valueBits, v)
}

// InsertAt inserts (k, v) before element i.
func (a PairArray[P]) InsertAt(i, k, v uint64) {
	a.InsertRange(i, 1)
	pos := a.pos(i)
	a.vec().Write(pos, a.keyBits, k)
	a.vec().Write(pos+a.keyBits, a.valueBits, v)
}

// InsertRange inserts n zeroed elements before element i.
func (a PairArray[P]) InsertRange(i, n uint64) {
	checkSpan(i, 0, a.Len())
	a.parent.GrowChild(a.index, i*a.stride(), n*a.stride())
}

// EraseAt removes element i.
func (a PairArray[P]) EraseAt(i uint64) {
	a.EraseRange(i, 1)
}

// EraseRange removes n elements starting at i.
func (a PairArray[P]) EraseRange(i, n uint64) {
	checkSpan(i, n, a.Len())
	a.parent.ShrinkChild(a.index, i*a.stride(), n*a.stride())
}

// MoveElementAt relocates element src so that it ends up at index dst.
func (a PairArray[P]) MoveElementAt(dst, src uint64) {
	n := a.Len()
	checkIndex(src, n)
	checkIndex(dst, n)
	if dst == src {
		return
	}
	k, v := a.Key(src), a.Value(src)
	a.EraseAt(src)
	a.InsertAt(dst, k, v)
}

// Swap exchanges elements i and j in place.
func (a PairArray[P]) Swap(i, j uint64) {
	if i == j {
		return
	}
	ki, vi := a.Key(i), a.Value(i)
	a.SetKey(i, a.Key(j))
	a.SetValue(i, a.Value(j))
	a.SetKey(j, ki)
	a.SetValue(j, vi)
}

func (a PairArray[P]) stride() uint64 { return a.keyBits + a.valueBits }

func (a PairArray[P]) vec() bitvec.Vector { return a.parent.Vector() }

func (a PairArray[P]) pos(i uint64) uint64 {
	return a.parent.ChildOffset(a.index) + i*a.stride()
}
