package bitslab

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hupe1980/bitslab/bitvec"
	"github.com/hupe1980/bitslab/internal/arena"
	"github.com/hupe1980/bitslab/internal/bitops"
	"github.com/hupe1980/bitslab/internal/bucket"
)

// location packs where a symbol's vector lives:
//
//	bits 62..63  kind (0 unused, 1 empty, 2 bit-vector slot, 3 blob slot)
//	bits 16..47  page
//	bits  0..15  slot index
//
// The zero location marks an unused symbol table entry.
type location uint64

const (
	kindShift = 62

	kindEmpty  = 1
	kindVector = 2
	kindBlob   = 3

	locEmpty location = kindEmpty << kindShift
)

func slotLocation(kind uint64, slot bucket.Slot) location {
	return location(kind<<kindShift | uint64(slot.Page)<<16 | uint64(slot.Index))
}

func (l location) kind() uint64 { return uint64(l) >> kindShift }

func (l location) slot() bucket.Slot {
	return bucket.Slot{
		Page:  arena.PageRef(uint32(l >> 16)),
		Index: uint16(l),
	}
}

// slotOf resolves loc to its allocator and slot; ok is false for an empty
// vector.
func (s *Store) slotOf(loc location) (*bucket.Allocator, bucket.Slot, bool) {
	switch loc.kind() {
	case kindVector:
		return s.vectors, loc.slot(), true
	case kindBlob:
		return s.blobs, loc.slot(), true
	default:
		return nil, bucket.Slot{}, false
	}
}

// allocatorFor picks the allocator whose classes serve size bits.
func (s *Store) allocatorFor(size uint64) (*bucket.Allocator, uint64) {
	if size <= s.vectors.MaxSize() {
		return s.vectors, kindVector
	}
	return s.blobs, kindBlob
}

func (s *Store) allocate(sym Symbol, size uint64) (location, *bucket.Allocator, bucket.Slot) {
	before := s.arena.Stats()
	a, kind := s.allocatorFor(size)
	slot := a.Allocate(size, uint64(sym))
	s.opts.metricsCollector.RecordAllocate(a.ClassSize(a.Class(slot)))
	s.tracePages(before)
	return slotLocation(kind, slot), a, slot
}

func (s *Store) free(a *bucket.Allocator, slot bucket.Slot) {
	before := s.arena.Stats()
	classBits := a.ClassSize(a.Class(slot))
	a.Free(slot)
	s.opts.metricsCollector.RecordFree(classBits)
	s.tracePages(before)
}

func (s *Store) tracePages(before arena.Stats) {
	ctx := context.Background()
	if !s.opts.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	after := s.arena.Stats()
	s.opts.logger.LogPages(ctx, after.Acquired-before.Acquired, after.Released-before.Released, after.Pages)
}

// symbolVector is the bitvec.Vector view of one symbol. It resolves the slot
// on every call, so it survives migrations between size classes.
type symbolVector struct {
	store *Store
	sym   Symbol
}

var _ bitvec.Vector = symbolVector{}

// locate returns the vector's current allocator, slot and size; a is nil for
// an empty vector.
func (v symbolVector) locate() (a *bucket.Allocator, slot bucket.Slot, size uint64) {
	loc := v.store.mustLocate(v.sym)
	a, slot, ok := v.store.slotOf(loc)
	if !ok {
		return nil, slot, 0
	}
	return a, slot, a.Size(slot)
}

func (v symbolVector) Size() uint64 {
	_, _, size := v.locate()
	return size
}

func (v symbolVector) Read(offset, length uint64) uint64 {
	a, slot, size := v.locate()
	bitvec.CheckRange(size, offset, length)
	if length == 0 {
		return 0
	}
	words, base := a.Payload(slot)
	return bitops.Read(words, base+offset, length)
}

func (v symbolVector) Write(offset, length, value uint64) {
	a, slot, size := v.locate()
	bitvec.CheckRange(size, offset, length)
	if length == 0 {
		return
	}
	words, base := a.Payload(slot)
	bitops.Write(words, base+offset, length, value)
}

// Grow inserts length zero bits at offset. The vector stays in its slot
// while the class has room and migrates to the next fitting class
// otherwise.
func (v symbolVector) Grow(offset, length uint64) {
	a, slot, size := v.locate()
	bitvec.CheckRange(size, offset, 0)
	if length == 0 {
		return
	}
	grown := size + length
	if grown < size {
		panic(fmt.Errorf("%w: growing %d bits by %d overflows", ErrContractViolation, size, length))
	}

	if a != nil && grown <= a.ClassSize(a.Class(slot)) {
		words, base := a.Payload(slot)
		bitops.Copy(words, base+offset+length, words, base+offset, size-offset)
		bitops.Zero(words, base+offset, length)
		a.SetSize(slot, grown)
		return
	}

	v.migrate(a, slot, grown, func(dst []uint64, dstBase uint64, src []uint64, srcBase uint64) {
		bitops.Copy(dst, dstBase, src, srcBase, offset)
		bitops.Zero(dst, dstBase+offset, length)
		bitops.Copy(dst, dstBase+offset+length, src, srcBase+offset, size-offset)
	})
}

// Shrink removes length bits at offset. A vector that fits a smaller class
// afterwards migrates down; an emptied vector gives its slot back.
func (v symbolVector) Shrink(offset, length uint64) {
	a, slot, size := v.locate()
	bitvec.CheckRange(size, offset, length)
	if length == 0 {
		return
	}
	shrunk := size - length

	if shrunk == 0 {
		v.store.free(a, slot)
		v.store.symbols.Set(uint64(v.sym), locEmpty)
		return
	}

	target, _ := v.store.allocatorFor(shrunk)
	if c, _ := target.ClassOf(shrunk); target == a && c == a.Class(slot) {
		words, base := a.Payload(slot)
		bitops.Copy(words, base+offset, words, base+offset+length, size-offset-length)
		a.SetSize(slot, shrunk)
		return
	}

	v.migrate(a, slot, shrunk, func(dst []uint64, dstBase uint64, src []uint64, srcBase uint64) {
		bitops.Copy(dst, dstBase, src, srcBase, offset)
		bitops.Copy(dst, dstBase+offset, src, srcBase+offset+length, size-offset-length)
	})
}

// migrate moves the vector into a fresh slot sized for size bits. fill copies
// the payload across; from is nil when the vector had no slot.
func (v symbolVector) migrate(from *bucket.Allocator, slot bucket.Slot, size uint64,
	fill func(dst []uint64, dstBase uint64, src []uint64, srcBase uint64),
) {
	loc, to, fresh := v.store.allocate(v.sym, size)
	dst, dstBase := to.Payload(fresh)

	if from == nil {
		bitops.Zero(dst, dstBase, size)
	} else {
		src, srcBase := from.Payload(slot)
		fill(dst, dstBase, src, srcBase)
		fromBits := from.ClassSize(from.Class(slot))
		v.store.free(from, slot)
		v.store.opts.metricsCollector.RecordMigrate(fromBits, to.ClassSize(to.Class(fresh)))
	}

	v.store.symbols.Set(uint64(v.sym), loc)
}
