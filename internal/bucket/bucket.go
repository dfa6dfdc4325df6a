// Package bucket implements size-classed slab allocation of bit records
// inside arena pages.
//
// Every bucket page serves one size class. It starts with a header word
//
//	bits  0..15  size class id
//	bits 16..31  occupied slot count
//	bits 32..47  free-list head (0xFFFF = none)
//
// followed by maxCount equal slots of
//
//	[size: Layout.SizeBits][owner: 64][payload: class bits]
//
// A free slot reuses its owner field as the link to the next free slot.
// Pages with at least one free slot are indexed per class; full pages are
// indexed globally. A page whose last slot is freed goes back to the arena.
package bucket

import (
	"errors"
	"fmt"
	"iter"
	"sort"

	"github.com/hupe1980/bitslab/internal/arena"
	"github.com/hupe1980/bitslab/internal/bitops"
	"github.com/hupe1980/bitslab/internal/pageset"
)

const (
	// OwnerBits is the width of a slot's owner field.
	OwnerBits = 64

	headerBits = 64
	noSlot     = 0xFFFF
)

var (
	// ErrInvalidLayout is returned by New for an unusable class table.
	ErrInvalidLayout = errors.New("bucket: invalid layout")
	// ErrTooLarge is wrapped by the panic raised for sizes above the largest class.
	ErrTooLarge = errors.New("bucket: size exceeds largest class")
	// ErrExhausted is wrapped by the panic raised when a page indexed as having
	// free slots has none.
	ErrExhausted = errors.New("bucket: page has no free slot")
	// ErrInvalidSlot is wrapped by panics for slots that are not allocated.
	ErrInvalidSlot = errors.New("bucket: invalid slot")
)

// Layout parametrizes an allocator instance.
type Layout struct {
	// Name identifies the instance in stats and logs.
	Name string
	// Classes are the ascending payload capacities in bits.
	Classes []uint64
	// SizeBits is the width of each slot's size field.
	SizeBits uint64
}

// BitVectors serves small symbol bit-vectors.
var BitVectors = Layout{
	Name:     "bitvector",
	Classes:  []uint64{64, 128, 256, 512, 1024, 2048, 4096},
	SizeBits: 13,
}

// Blobs serves large bit-vectors, up to the largest payload one page holds.
var Blobs = Layout{
	Name:     "blob",
	Classes:  []uint64{5120, 8192, 10816, 16256, 32624},
	SizeBits: 16,
}

// Slot addresses one allocated record.
type Slot struct {
	Page  arena.PageRef
	Index uint16
}

func (s Slot) String() string {
	return fmt.Sprintf("%d/%d", s.Page, s.Index)
}

// Allocator hands out slots of the classes in its Layout.
//
// Allocator is not safe for concurrent use.
type Allocator struct {
	layout   Layout
	arena    *arena.Arena
	full     *pageset.Set
	free     []*pageset.Set
	maxCount []uint64

	pages []uint64 // per class
	slots []uint64 // occupied, per class
	used  []uint64 // sum of size fields, per class
}

// New creates an allocator drawing pages from a.
func New(a *arena.Arena, layout Layout) (*Allocator, error) {
	if err := layout.validate(); err != nil {
		return nil, err
	}

	n := len(layout.Classes)
	b := &Allocator{
		layout:   layout,
		arena:    a,
		full:     pageset.New(),
		free:     make([]*pageset.Set, n),
		maxCount: make([]uint64, n),
		pages:    make([]uint64, n),
		slots:    make([]uint64, n),
		used:     make([]uint64, n),
	}
	for c := range n {
		b.free[c] = pageset.New()
		b.maxCount[c] = (arena.PageBits - headerBits) / layout.slotBits(c)
	}
	return b, nil
}

func (l Layout) slotBits(c int) uint64 {
	return l.SizeBits + OwnerBits + l.Classes[c]
}

func (l Layout) validate() error {
	if len(l.Classes) == 0 || len(l.Classes) >= noSlot {
		return fmt.Errorf("%w: %q has %d classes", ErrInvalidLayout, l.Name, len(l.Classes))
	}
	if l.SizeBits == 0 || l.SizeBits > 32 {
		return fmt.Errorf("%w: %q size field of %d bits", ErrInvalidLayout, l.Name, l.SizeBits)
	}
	for c, size := range l.Classes {
		if c > 0 && size <= l.Classes[c-1] {
			return fmt.Errorf("%w: %q classes not ascending at %d", ErrInvalidLayout, l.Name, c)
		}
		if size >= 1<<l.SizeBits {
			return fmt.Errorf("%w: %q class %d does not fit the size field", ErrInvalidLayout, l.Name, size)
		}
		count := (arena.PageBits - headerBits) / l.slotBits(c)
		if count == 0 || count >= noSlot {
			return fmt.Errorf("%w: %q class %d yields %d slots per page", ErrInvalidLayout, l.Name, size, count)
		}
	}
	return nil
}

// Layout returns the allocator's layout.
func (b *Allocator) Layout() Layout { return b.layout }

// ClassOf returns the smallest class holding size bits.
func (b *Allocator) ClassOf(size uint64) (int, bool) {
	c := sort.Search(len(b.layout.Classes), func(i int) bool {
		return b.layout.Classes[i] >= size
	})
	return c, c < len(b.layout.Classes)
}

// ClassSize returns the payload capacity of class c in bits.
func (b *Allocator) ClassSize(c int) uint64 { return b.layout.Classes[c] }

// MaxSize returns the largest payload the allocator can hold.
func (b *Allocator) MaxSize() uint64 { return b.layout.Classes[len(b.layout.Classes)-1] }

// Capacity returns the number of slots per page of class c.
func (b *Allocator) Capacity(c int) uint64 { return b.maxCount[c] }

// Allocate reserves a slot able to hold size bits, records size and owner
// and returns it. The payload is not cleared.
func (b *Allocator) Allocate(size, owner uint64) Slot {
	c, ok := b.ClassOf(size)
	if !ok {
		panic(fmt.Errorf("%w: %d bits in %s (max %d)", ErrTooLarge, size, b.layout.Name, b.MaxSize()))
	}

	ref, ok := b.free[c].Min()
	if !ok {
		ref = b.arena.Acquire()
		b.initPage(ref, c)
		b.free[c].Insert(ref)
		b.pages[c]++
	}

	p := b.page(ref)
	idx := p.freeHead()
	if idx == noSlot {
		panic(fmt.Errorf("%w: page %d of class %d", ErrExhausted, ref, c))
	}
	slot := Slot{Page: ref, Index: idx}
	pos := b.slotPos(c, idx)

	p.setFreeHead(uint16(bitops.Read(p.words, pos+b.layout.SizeBits, OwnerBits))) //nolint:gosec // link fits 16 bits
	count := p.count() + 1
	p.setCount(count)
	bitops.Write(p.words, pos, b.layout.SizeBits, size)
	bitops.Write(p.words, pos+b.layout.SizeBits, OwnerBits, owner)

	b.slots[c]++
	b.used[c] += size

	if uint64(count) == b.maxCount[c] {
		b.free[c].Erase(ref)
		b.full.Insert(ref)
	}
	return slot
}

// Free returns slot to its page. A page left empty goes back to the arena.
func (b *Allocator) Free(slot Slot) {
	p, c := b.checkSlot(slot)
	if b.IsFree(slot) {
		panic(fmt.Errorf("%w: %s in %s already free", ErrInvalidSlot, slot, b.layout.Name))
	}
	pos := b.slotPos(c, slot.Index)
	count := p.count()
	wasFull := uint64(count) == b.maxCount[c]

	b.slots[c]--
	b.used[c] -= bitops.Read(p.words, pos, b.layout.SizeBits)

	count--
	if count == 0 {
		if wasFull {
			b.full.Erase(slot.Page)
		} else {
			b.free[c].Erase(slot.Page)
		}
		b.pages[c]--
		b.arena.Release(slot.Page)
		return
	}

	p.setCount(count)
	bitops.Write(p.words, pos, b.layout.SizeBits, 0)
	bitops.Write(p.words, pos+b.layout.SizeBits, OwnerBits, uint64(p.freeHead()))
	p.setFreeHead(slot.Index)

	if wasFull {
		b.full.Erase(slot.Page)
		b.free[c].Insert(slot.Page)
	}
}

// Class returns the size class of the page holding slot.
func (b *Allocator) Class(slot Slot) int {
	_, c := b.checkSlot(slot)
	return c
}

// Size returns the size field of slot.
func (b *Allocator) Size(slot Slot) uint64 {
	p, c := b.checkSlot(slot)
	return bitops.Read(p.words, b.slotPos(c, slot.Index), b.layout.SizeBits)
}

// SetSize updates the size field of slot; size must fit the slot's class.
func (b *Allocator) SetSize(slot Slot, size uint64) {
	p, c := b.checkSlot(slot)
	if size > b.layout.Classes[c] {
		panic(fmt.Errorf("%w: %d bits in class %d", ErrTooLarge, size, b.layout.Classes[c]))
	}
	pos := b.slotPos(c, slot.Index)
	b.used[c] = b.used[c] - bitops.Read(p.words, pos, b.layout.SizeBits) + size
	bitops.Write(p.words, pos, b.layout.SizeBits, size)
}

// Owner returns the owner field of slot.
func (b *Allocator) Owner(slot Slot) uint64 {
	p, c := b.checkSlot(slot)
	return bitops.Read(p.words, b.slotPos(c, slot.Index)+b.layout.SizeBits, OwnerBits)
}

// SetOwner updates the owner field of slot.
func (b *Allocator) SetOwner(slot Slot, owner uint64) {
	p, c := b.checkSlot(slot)
	bitops.Write(p.words, b.slotPos(c, slot.Index)+b.layout.SizeBits, OwnerBits, owner)
}

// Payload returns the page words holding slot's payload and the bit offset
// where it starts. Its capacity is ClassSize(Class(slot)) bits.
func (b *Allocator) Payload(slot Slot) ([]uint64, uint64) {
	p, c := b.checkSlot(slot)
	return p.words, b.slotPos(c, slot.Index) + b.layout.SizeBits + OwnerBits
}

// Occupied returns the occupied slot count and free-list head of page ref.
func (b *Allocator) Occupied(ref arena.PageRef) (count uint16, freeHead uint16) {
	p := b.page(ref)
	return p.count(), p.freeHead()
}

// IsFree reports whether slot is on its page's free-list.
func (b *Allocator) IsFree(slot Slot) bool {
	for idx := range b.freeSlots(slot.Page) {
		if idx == slot.Index {
			return true
		}
	}
	return false
}

// Holds reports whether slot is an occupied slot on one of the allocator's
// pages.
func (b *Allocator) Holds(slot Slot) bool {
	if uint32(slot.Page) >= b.arena.PageCount() {
		return false
	}
	c := int(b.page(slot.Page).class())
	if c >= len(b.free) || uint64(slot.Index) >= b.maxCount[c] {
		return false
	}
	if !b.full.Contains(slot.Page) && !b.free[c].Contains(slot.Page) {
		return false
	}
	return !b.IsFree(slot)
}

// freeSlots walks the free-list of page ref, stopping after Capacity steps.
func (b *Allocator) freeSlots(ref arena.PageRef) iter.Seq[uint16] {
	return func(yield func(uint16) bool) {
		p := b.page(ref)
		c := int(p.class())
		if c >= len(b.free) {
			return
		}
		idx := p.freeHead()
		for range b.maxCount[c] {
			if idx == noSlot || uint64(idx) >= b.maxCount[c] || !yield(idx) {
				return
			}
			idx = uint16(bitops.Read(p.words, b.slotPos(c, idx)+b.layout.SizeBits, OwnerBits)) //nolint:gosec // link fits 16 bits
		}
	}
}

// Pages iterates over every page the allocator holds, full or not.
func (b *Allocator) Pages() iter.Seq[arena.PageRef] {
	return func(yield func(arena.PageRef) bool) {
		for ref := range b.full.All() {
			if !yield(ref) {
				return
			}
		}
		for _, set := range b.free {
			for ref := range set.All() {
				if !yield(ref) {
					return
				}
			}
		}
	}
}

// ClassStats describes one size class.
type ClassStats struct {
	Size        uint64 // payload capacity per slot in bits
	Capacity    uint64 // slots per page
	Pages       uint64
	Slots       uint64 // occupied
	UsedBits    uint64 // sum of size fields
	PaddingBits uint64 // Slots*Size - UsedBits
}

// Stats describes an allocator instance.
type Stats struct {
	Name      string
	FullPages uint64
	Classes   []ClassStats
}

// PaddingBits sums the internal fragmentation over all classes.
func (s Stats) PaddingBits() uint64 {
	var n uint64
	for _, c := range s.Classes {
		n += c.PaddingBits
	}
	return n
}

// SlotCount sums the occupied slots over all classes.
func (s Stats) SlotCount() uint64 {
	var n uint64
	for _, c := range s.Classes {
		n += c.Slots
	}
	return n
}

// Stats returns occupancy and padding per class.
func (b *Allocator) Stats() Stats {
	s := Stats{Name: b.layout.Name, FullPages: b.full.Len(), Classes: make([]ClassStats, len(b.layout.Classes))}
	for c, size := range b.layout.Classes {
		s.Classes[c] = ClassStats{
			Size:        size,
			Capacity:    b.maxCount[c],
			Pages:       b.pages[c],
			Slots:       b.slots[c],
			UsedBits:    b.used[c],
			PaddingBits: b.slots[c]*size - b.used[c],
		}
	}
	return s
}

func (b *Allocator) slotPos(c int, idx uint16) uint64 {
	return headerBits + uint64(idx)*b.layout.slotBits(c)
}

// initPage writes the header of a fresh page and chains all slots into its
// free-list in ascending order.
func (b *Allocator) initPage(ref arena.PageRef, c int) {
	p := b.page(ref)
	n := b.maxCount[c]
	p.words[0] = 0
	p.setClass(uint16(c)) //nolint:gosec // validated < noSlot
	p.setCount(0)
	p.setFreeHead(0)
	for i := range n {
		next := uint64(noSlot)
		if i+1 < n {
			next = i + 1
		}
		pos := b.slotPos(c, uint16(i)) //nolint:gosec // validated < noSlot
		bitops.Write(p.words, pos, b.layout.SizeBits, 0)
		bitops.Write(p.words, pos+b.layout.SizeBits, OwnerBits, next)
	}
}

func (b *Allocator) checkSlot(slot Slot) (page, int) {
	p := b.page(slot.Page)
	c := int(p.class())
	if c >= len(b.layout.Classes) || uint64(slot.Index) >= b.maxCount[c] || p.count() == 0 {
		panic(fmt.Errorf("%w: %s in %s", ErrInvalidSlot, slot, b.layout.Name))
	}
	return p, c
}

func (b *Allocator) page(ref arena.PageRef) page {
	return page{words: b.arena.Page(ref)}
}

// page decodes the header word of a bucket page.
type page struct {
	words []uint64
}

func (p page) class() uint16    { return uint16(p.words[0]) }
func (p page) count() uint16    { return uint16(p.words[0] >> 16) }
func (p page) freeHead() uint16 { return uint16(p.words[0] >> 32) }

func (p page) setClass(v uint16)    { p.set(0, v) }
func (p page) setCount(v uint16)    { p.set(16, v) }
func (p page) setFreeHead(v uint16) { p.set(32, v) }

func (p page) set(shift uint, v uint16) {
	p.words[0] = p.words[0]&^(0xFFFF<<shift) | uint64(v)<<shift
}
