package bitslab

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/bitslab/bitvec"
	"github.com/hupe1980/bitslab/container"
	"github.com/hupe1980/bitslab/internal/arena"
	"github.com/hupe1980/bitslab/internal/bucket"
	"github.com/hupe1980/bitslab/internal/resource"
	"github.com/hupe1980/bitslab/internal/symtab"
)

// Symbol is the opaque identity of one resizable bit-vector in a Store.
type Symbol uint64

// Void is the reserved symbol that never names a vector.
const Void Symbol = 0

// Store owns a page arena, the two slab allocators carved from it and the
// table mapping every live Symbol to the slot holding its bit-vector.
//
// Store is not safe for concurrent use; callers serialize access.
type Store struct {
	opts options
	rc   *resource.Controller

	arena   *arena.Arena
	vectors *bucket.Allocator
	blobs   *bucket.Allocator

	symbols  *symtab.Table[location]
	released *roaring64.Bitmap
	next     Symbol // highest symbol ever created
	live     uint64

	closed bool
}

// Stats describes a Store's memory layout.
type Stats struct {
	Symbols     uint64 // live symbols
	Released    uint64 // released symbols awaiting reuse
	Arena       arena.Stats
	BitVectors  bucket.Stats
	Blobs       bucket.Stats
	MemoryUsage int64 // bytes charged against the memory limit
}

// PaddingBits returns the slot capacity not covered by vector sizes.
func (s Stats) PaddingBits() uint64 {
	return s.BitVectors.PaddingBits() + s.Blobs.PaddingBits()
}

// New creates an empty Store.
func New(optFns ...Option) (*Store, error) {
	return newStore(applyOptions(optFns))
}

func newStore(o options) (*Store, error) {
	rc := resource.NewController(resource.Config{
		MemoryLimitBytes: o.memoryLimit,
	})

	a := arena.New(arena.WithMemoryAcquirer(rc), arena.WithChunkPages(o.chunkPages))

	vectors, err := bucket.New(a, bucket.BitVectors)
	if err != nil {
		return nil, err
	}
	blobs, err := bucket.New(a, bucket.Blobs)
	if err != nil {
		return nil, err
	}

	return &Store{
		opts:     o,
		rc:       rc,
		arena:    a,
		vectors:  vectors,
		blobs:    blobs,
		symbols:  symtab.New[location](),
		released: roaring64.New(),
	}, nil
}

// Close unmaps all memory. Every vector and view obtained from the Store
// becomes invalid.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.arena.Close()
}

// Create returns a fresh symbol owning an empty bit-vector. Released symbols
// are reused, lowest first.
func (s *Store) Create() Symbol {
	s.checkOpen()

	var sym Symbol
	if !s.released.IsEmpty() {
		sym = Symbol(s.released.Minimum())
		s.released.Remove(uint64(sym))
	} else {
		s.next++
		sym = s.next
	}

	s.symbols.Set(uint64(sym), locEmpty)
	s.live++
	return sym
}

// Release frees sym and its bit-vector. sym may be handed out again by Create.
func (s *Store) Release(sym Symbol) {
	loc := s.mustLocate(sym)

	var bits uint64
	if a, slot, ok := s.slotOf(loc); ok {
		bits = a.Size(slot)
		s.free(a, slot)
	}

	s.symbols.Set(uint64(sym), 0)
	s.released.Add(uint64(sym))
	s.live--

	if s.opts.logger.Enabled(context.Background(), slog.LevelDebug) {
		s.opts.logger.LogRelease(context.Background(), sym, bits)
	}
}

// Exists reports whether sym is live.
func (s *Store) Exists(sym Symbol) bool {
	if s.closed || sym == Void {
		return false
	}
	_, ok := s.symbols.Get(uint64(sym))
	return ok
}

// Vector returns sym's bit-vector. The returned value stays valid across
// growth and migration; it is invalidated by Release(sym) or Close.
func (s *Store) Vector(sym Symbol) bitvec.Vector {
	s.mustLocate(sym)
	return symbolVector{store: s, sym: sym}
}

// Root returns the parent for building containers over sym's bit-vector.
func (s *Store) Root(sym Symbol) container.Root {
	return container.NewRoot(s.Vector(sym))
}

// Len returns the number of live symbols.
func (s *Store) Len() uint64 { return s.live }

// Stats returns the current memory layout statistics.
func (s *Store) Stats() Stats {
	return Stats{
		Symbols:     s.live,
		Released:    s.released.GetCardinality(),
		Arena:       s.arena.Stats(),
		BitVectors:  s.vectors.Stats(),
		Blobs:       s.blobs.Stats(),
		MemoryUsage: s.rc.MemoryUsage(),
	}
}

// Interner is a content-ordered symbol set, such as container.Set.
type Interner interface {
	InsertDedup(k, v uint64, d container.Deduplicator) (uint64, bool)
}

// Intern inserts sym into set unless a symbol with an equal bit-vector is
// already present, in which case sym is released and the existing symbol is
// returned with inserted == false.
func (s *Store) Intern(set Interner, sym Symbol) (Symbol, bool) {
	s.mustLocate(sym)
	owner, inserted := set.InsertDedup(uint64(sym), 0, s.Deduplicator())
	return Symbol(owner), inserted
}

// Deduplicator returns the content order over symbols used by Intern.
func (s *Store) Deduplicator() container.Deduplicator {
	return dedup{store: s}
}

type dedup struct {
	store *Store
}

func (d dedup) Compare(a, b uint64) int {
	return bitvec.Compare(d.store.Vector(Symbol(a)), d.store.Vector(Symbol(b)))
}

func (d dedup) Release(key uint64) {
	d.store.Release(Symbol(key))
}

func (s *Store) String() string {
	st := s.Stats()
	return fmt.Sprintf("Store{symbols: %d, pages: %d, padding: %d bits}",
		st.Symbols, st.Arena.Pages, st.PaddingBits())
}

func (s *Store) mustLocate(sym Symbol) location {
	s.checkOpen()
	loc, ok := s.symbols.Get(uint64(sym))
	if !ok || sym == Void {
		panic(&ErrUnknownSymbol{Symbol: sym})
	}
	return loc
}

func (s *Store) checkOpen() {
	if s.closed {
		panic(fmt.Errorf("%w: %w", ErrContractViolation, ErrClosed))
	}
}
