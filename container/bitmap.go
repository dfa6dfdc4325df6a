package container

import (
	"fmt"
	"iter"
)

// Slice is one maximal run of addresses present in a BitMap.
type Slice struct {
	Start  uint64
	Length uint64
}

// End returns the first address after the slice.
func (s Slice) End() uint64 { return s.Start + s.Length }

// BitMap maps a sparse external address space onto payload bits: a VarSet
// keyed by slice start address whose payload length is the slice length, so
// address a of a slice is backed by payload bit a-start.
//
// Slices never overlap and are never address-adjacent; adjacent runs are
// merged as soon as they appear.
type BitMap[P Parent] struct {
	set VarSet[P]
}

// NewBitMap returns the interval map stored in child index of parent.
func NewBitMap[P Parent](parent P, index uint64, layout Layout) BitMap[P] {
	return BitMap[P]{set: NewVarSet(parent, index, layout)}
}

// Set exposes the underlying self-describing set.
func (m BitMap[P]) Set() VarSet[P] { return m.set }

// Len returns the number of slices.
func (m BitMap[P]) Len() uint64 { return m.set.Len() }

// Slice returns slice i.
func (m BitMap[P]) Slice(i uint64) Slice {
	return Slice{Start: m.set.Key(i), Length: m.set.ChildLength(i)}
}

// Slices iterates over all slices in address order.
func (m BitMap[P]) Slices() iter.Seq[Slice] {
	return func(yield func(Slice) bool) {
		for i := uint64(0); i < m.Len(); i++ {
			if !yield(m.Slice(i)) {
				return
			}
		}
	}
}

// Containing returns the index of the slice covering addr.
func (m BitMap[P]) Containing(addr uint64) (uint64, bool) {
	i, found := m.set.FindKey(addr)
	if found {
		return i, true
	}
	if i > 0 && m.end(i-1) > addr {
		return i - 1, true
	}
	return 0, false
}

// ContainingRange returns the index of the slice covering all of
// [addr, addr+length).
func (m BitMap[P]) ContainingRange(addr, length uint64) (uint64, bool) {
	i, ok := m.Containing(addr)
	if !ok || m.end(i) < addr+length {
		return 0, false
	}
	return i, true
}

// Offset returns the absolute vector position backing addr.
func (m BitMap[P]) Offset(addr uint64) (uint64, bool) {
	i, ok := m.Containing(addr)
	if !ok {
		return 0, false
	}
	return m.set.ChildOffset(i) + addr - m.set.Key(i), true
}

// Fill makes [addr, addr+length) present, extending or absorbing the slices it
// touches and merging neighbours, and returns the absolute vector position
// now backing addr. Newly covered addresses read as zero.
func (m BitMap[P]) Fill(addr, length uint64) uint64 {
	if length == 0 {
		panic(fmt.Errorf("%w: fill of zero addresses at %d", ErrContract, addr))
	}
	target := addr + length

	i, found := m.set.FindKey(addr)
	var cur uint64
	switch {
	case found:
		cur = i
	case i > 0 && m.end(i-1) >= addr:
		cur = i - 1
	default:
		m.set.InsertRange(i, 1)
		m.set.SetKey(i, addr)
		cur = i
	}
	if m.end(cur) >= target {
		return m.position(cur, addr)
	}

	for cur+1 < m.Len() && m.set.Key(cur+1) <= target {
		if gap := m.set.Key(cur+1) - m.end(cur); gap > 0 {
			m.set.GrowChild(cur, m.set.ChildLength(cur), gap)
		}
		m.Merge(cur)
	}
	if e := m.end(cur); e < target {
		m.set.GrowChild(cur, m.set.ChildLength(cur), target-e)
	}

	m.Merge(cur)
	if cur > 0 && m.Merge(cur-1) {
		cur--
	}
	return m.position(cur, addr)
}

// Clear removes [addr, addr+length), trimming partially covered slices and
// splitting a slice that strictly contains the range.
func (m BitMap[P]) Clear(addr, length uint64) {
	if length == 0 {
		return
	}
	target := addr + length

	i, _ := m.set.FindKey(addr)
	if i > 0 && m.end(i-1) > addr {
		p := i - 1
		start, end := m.set.Key(p), m.end(p)
		if end > target {
			m.set.Split(p, target-start, target)
			m.set.ShrinkChild(p, addr-start, length)
			return
		}
		m.set.ShrinkChild(p, addr-start, end-addr)
	}

	for i < m.Len() && m.end(i) <= target {
		m.set.EraseRange(i, 1)
	}
	if i < m.Len() {
		if start := m.set.Key(i); start < target {
			m.set.ShrinkChild(i, 0, target-start)
			m.set.SetKey(i, target)
		}
	}
}

// Move renumbers the addresses [src, src+length) to [dst, dst+length),
// carrying their payload bits along. Whatever dst previously held in that
// range is cleared; addresses of the source range not overlapped by the
// destination become absent.
func (m BitMap[P]) Move(dst, src, length uint64) {
	if length == 0 || dst == src {
		return
	}
	m.splitAt(src)
	m.splitAt(src + length)

	switch {
	case dst > src && dst < src+length:
		m.Clear(src+length, dst-src)
	case dst < src && src < dst+length:
		m.Clear(dst, src-dst)
	default:
		m.Clear(dst, length)
	}

	lo, _ := m.set.FindKey(src)
	hi, _ := m.set.FindKey(src + length)
	if dst > src {
		delta := dst - src
		for j := hi; j > lo; j-- {
			m.rekey(j-1, m.set.Key(j-1)+delta)
		}
	} else {
		delta := src - dst
		for j := lo; j < hi; j++ {
			m.rekey(j, m.set.Key(j)-delta)
		}
	}
	m.normalize()
}

// Merge joins slice i with slice i+1 if slice i ends exactly where slice i+1
// starts. Their payloads are already contiguous, so only the index entry of
// slice i+1 is dropped.
func (m BitMap[P]) Merge(i uint64) bool {
	if i+1 >= m.Len() || m.end(i) != m.set.Key(i+1) {
		return false
	}
	m.set.UnlinkRange(i+1, 1)
	return true
}

// Read returns up to 64 bits stored for [addr, addr+length), which must lie
// within one slice.
func (m BitMap[P]) Read(addr, length uint64) uint64 {
	i := m.mustContain(addr, length)
	return m.set.Vector().Read(m.position(i, addr), length)
}

// Write stores up to 64 bits for [addr, addr+length), which must lie within
// one slice.
func (m BitMap[P]) Write(addr, length, value uint64) {
	i := m.mustContain(addr, length)
	m.set.Vector().Write(m.position(i, addr), length, value)
}

func (m BitMap[P]) mustContain(addr, length uint64) uint64 {
	i, ok := m.ContainingRange(addr, length)
	if !ok {
		panic(fmt.Errorf("%w: addresses [%d, %d) not present", ErrOutOfRange, addr, addr+length))
	}
	return i
}

func (m BitMap[P]) end(i uint64) uint64 {
	return m.set.Key(i) + m.set.ChildLength(i)
}

func (m BitMap[P]) position(i, addr uint64) uint64 {
	return m.set.ChildOffset(i) + addr - m.set.Key(i)
}

// splitAt cuts the slice strictly containing addr into two at addr.
func (m BitMap[P]) splitAt(addr uint64) {
	i, ok := m.Containing(addr)
	if !ok {
		return
	}
	if start := m.set.Key(i); start < addr {
		m.set.Split(i, addr-start, addr)
	}
}

func (m BitMap[P]) rekey(i, k uint64) {
	if !m.set.SetKeyAt(i, k) {
		panic(fmt.Errorf("%w: slice %d collides at address %d", ErrContract, i, k))
	}
}

// normalize merges every address-adjacent pair.
func (m BitMap[P]) normalize() {
	for i := uint64(0); i+1 < m.Len(); {
		if !m.Merge(i) {
			i++
		}
	}
}
