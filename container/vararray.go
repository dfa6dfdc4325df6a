package container

import (
	"fmt"

	"github.com/hupe1980/bitslab/bitvec"
)

// Layout fixes the field widths of a self-describing array.
type Layout struct {
	// KeyBits is the width of each element key; 0 for an unkeyed array.
	KeyBits uint64
	// OffsetBits is the width of each recorded offset and of the element count.
	OffsetBits uint64
}

// DefaultLayout uses 64-bit keys and 32-bit offsets, enough for any vector
// held by a bitslab Store.
var DefaultLayout = Layout{KeyBits: 64, OffsetBits: 32}

// VarArray is a self-describing array: every element owns a variable-length
// payload located through an offset table kept inside the array's own range.
//
// Storage layout, relative to the array's start:
//
//	[count][key₀ offset₀][key₁ offset₁]…[payload₀][payload₁]…
//
// offsetᵢ is where payloadᵢ begins; payloadᵢ ends where payloadᵢ₊₁ begins, the
// last one at the array's total length. An empty array occupies zero bits.
//
// VarArray is itself a Parent: child i is payload i.
type VarArray[P Parent] struct {
	parent P
	index  uint64
	layout Layout
}

var _ Parent = VarArray[Root]{}

// NewVarArray returns the self-describing array stored in child index of parent.
func NewVarArray[P Parent](parent P, index uint64, layout Layout) VarArray[P] {
	if layout.KeyBits > 64 {
		panic(fmt.Errorf("%w: key width %d exceeds 64", ErrContract, layout.KeyBits))
	}
	checkWidth("offset", layout.OffsetBits)
	return VarArray[P]{parent: parent, index: index, layout: layout}
}

// Vector implements Parent.
func (a VarArray[P]) Vector() bitvec.Vector { return a.parent.Vector() }

// Len returns the element count.
func (a VarArray[P]) Len() uint64 {
	if a.total() == 0 {
		return 0
	}
	return a.Vector().Read(a.base(), a.layout.OffsetBits)
}

// TotalLength returns the bits occupied by the whole array.
func (a VarArray[P]) TotalLength() uint64 { return a.total() }

// Key returns the key of element i.
func (a VarArray[P]) Key(i uint64) uint64 {
	checkIndex(i, a.Len())
	return a.Vector().Read(a.entry(i), a.layout.KeyBits)
}

// SetKey overwrites the key of element i without regard to ordering.
func (a VarArray[P]) SetKey(i, k uint64) {
	checkIndex(i, a.Len())
	a.Vector().Write(a.entry(i), a.layout.KeyBits, k)
}

// Offset returns where payload i begins, relative to the array's start.
// Offset(Len()) is the array's total length.
func (a VarArray[P]) Offset(i uint64) uint64 {
	n := a.Len()
	if i == n {
		return a.total()
	}
	checkIndex(i, n)
	return a.offsetAt(i)
}

// ChildOffset implements Parent.
func (a VarArray[P]) ChildOffset(i uint64) uint64 {
	return a.base() + a.Offset(i)
}

// ChildLength implements Parent.
func (a VarArray[P]) ChildLength(i uint64) uint64 {
	checkIndex(i, a.Len())
	return a.Offset(i+1) - a.offsetAt(i)
}

// GrowChild implements Parent: it inserts length bits into payload i at the
// payload-relative position at and shifts every later offset.
func (a VarArray[P]) GrowChild(i, at, length uint64) {
	n := a.Len()
	checkIndex(i, n)
	start := a.offsetAt(i)
	checkSpan(at, 0, a.Offset(i+1)-start)
	if length == 0 {
		return
	}
	a.parent.GrowChild(a.index, start+at, length)
	a.shiftOffsets(i+1, n, length, true)
}

// ShrinkChild implements Parent: it removes length bits from payload i at the
// payload-relative position at and shifts every later offset.
func (a VarArray[P]) ShrinkChild(i, at, length uint64) {
	n := a.Len()
	checkIndex(i, n)
	start := a.offsetAt(i)
	checkSpan(at, length, a.Offset(i+1)-start)
	if length == 0 {
		return
	}
	a.parent.ShrinkChild(a.index, start+at, length)
	a.shiftOffsets(i+1, n, length, false)
}

// InsertRange inserts n elements with empty payloads before element i.
func (a VarArray[P]) InsertRange(i, n uint64) {
	count := a.Len()
	checkSpan(i, 0, count)
	if n == 0 {
		return
	}
	if count == 0 {
		if t := a.total(); t != 0 {
			panic(fmt.Errorf("%w: empty self-describing array spans %d bits", ErrContract, t))
		}
		a.parent.GrowChild(a.index, 0, a.layout.OffsetBits)
	}
	var at uint64
	if i < count {
		at = a.offsetAt(i)
	} else {
		at = a.total()
	}
	a.insertEntries(i, n, count, at)
}

// Split inserts a new element after element i whose payload is the tail of
// payload i starting at the payload-relative position at. The new element's
// key is k; ordering is the caller's concern.
func (a VarArray[P]) Split(i, at, k uint64) {
	count := a.Len()
	checkIndex(i, count)
	start := a.offsetAt(i)
	checkSpan(at, 0, a.Offset(i+1)-start)
	a.insertEntries(i+1, 1, count, start+at)
	a.SetKey(i+1, k)
}

// EraseRange removes n elements starting at i together with their payloads.
func (a VarArray[P]) EraseRange(i, n uint64) {
	count := a.Len()
	checkSpan(i, n, count)
	if n == 0 {
		return
	}
	start, end := a.offsetAt(i), a.Offset(i+n)
	if removed := end - start; removed > 0 {
		a.parent.ShrinkChild(a.index, start, removed)
		a.shiftOffsets(i+n, count, removed, false)
	}
	a.eraseEntries(i, n, count)
}

// UnlinkRange removes the table entries of n elements starting at i but keeps
// their payloads, which become the tail of element i-1.
func (a VarArray[P]) UnlinkRange(i, n uint64) {
	count := a.Len()
	checkSpan(i, n, count)
	if n == 0 {
		return
	}
	if i == 0 {
		panic(fmt.Errorf("%w: unlinking element 0 leaves its payload without owner", ErrContract))
	}
	a.eraseEntries(i, n, count)
}

// MoveElementAt relocates element src, key and payload, so that it ends up at
// index dst.
func (a VarArray[P]) MoveElementAt(dst, src uint64) {
	count := a.Len()
	checkIndex(src, count)
	checkIndex(dst, count)
	if dst == src {
		return
	}
	ins := dst
	if dst > src {
		ins = dst + 1
	}
	from := src
	if ins <= src {
		from = src + 1
	}
	a.InsertRange(ins, 1)
	a.SetKey(ins, a.Key(from))
	if length := a.ChildLength(from); length > 0 {
		a.GrowChild(ins, 0, length)
		vec := a.Vector()
		bitvec.Copy(vec, a.ChildOffset(ins), vec, a.ChildOffset(from), length)
	}
	a.EraseRange(from, 1)
}

func (a VarArray[P]) base() uint64  { return a.parent.ChildOffset(a.index) }
func (a VarArray[P]) total() uint64 { return a.parent.ChildLength(a.index) }

func (a VarArray[P]) entryBits() uint64 { return a.layout.KeyBits + a.layout.OffsetBits }

func (a VarArray[P]) entry(i uint64) uint64 {
	return a.base() + a.layout.OffsetBits + i*a.entryBits()
}

func (a VarArray[P]) offsetAt(i uint64) uint64 {
	return a.Vector().Read(a.entry(i)+a.layout.KeyBits, a.layout.OffsetBits)
}

func (a VarArray[P]) setOffset(i, off uint64) {
	if off>>a.layout.OffsetBits != 0 && a.layout.OffsetBits < 64 {
		panic(fmt.Errorf("%w: offset %d does not fit %d bits", ErrContract, off, a.layout.OffsetBits))
	}
	a.Vector().Write(a.entry(i)+a.layout.KeyBits, a.layout.OffsetBits, off)
}

func (a VarArray[P]) setCount(n uint64) {
	a.Vector().Write(a.base(), a.layout.OffsetBits, n)
}

// shiftOffsets adds (or subtracts) delta to the offsets of elements [from, to).
func (a VarArray[P]) shiftOffsets(from, to, delta uint64, up bool) {
	for j := from; j < to; j++ {
		off := a.offsetAt(j)
		if up {
			a.setOffset(j, off+delta)
		} else {
			a.setOffset(j, off-delta)
		}
	}
}

// insertEntries opens n table slots at i in an array of count elements whose
// header already exists. New elements get the payload position at (measured
// before the table grows) and a zero key.
func (a VarArray[P]) insertEntries(i, n, count, at uint64) {
	grow := n * a.entryBits()
	a.parent.GrowChild(a.index, a.layout.OffsetBits+i*a.entryBits(), grow)
	a.shiftOffsets(0, i, grow, true)
	a.shiftOffsets(i+n, count+n, grow, true)
	vec := a.Vector()
	for j := i; j < i+n; j++ {
		vec.Write(a.entry(j), a.layout.KeyBits, 0)
		a.setOffset(j, at+grow)
	}
	a.setCount(count + n)
}

// eraseEntries drops n table slots at i from an array of count elements and
// removes the header once the array is empty.
func (a VarArray[P]) eraseEntries(i, n, count uint64) {
	shrink := n * a.entryBits()
	a.parent.ShrinkChild(a.index, a.layout.OffsetBits+i*a.entryBits(), shrink)
	left := count - n
	a.setCount(left)
	a.shiftOffsets(0, left, shrink, false)
	if left == 0 {
		a.parent.ShrinkChild(a.index, 0, a.layout.OffsetBits)
	}
}
