// Package pageset implements order-statistics sets of page references,
// backed by a Roaring bitmap. The bucket allocator keeps its "page is full"
// and "page has free slots" indices in them.
package pageset

import (
	"io"
	"iter"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/bitslab/internal/arena"
)

// Set is a set of page references.
type Set struct {
	rb *roaring.Bitmap
}

// New creates an empty set.
func New() *Set {
	return &Set{rb: roaring.New()}
}

// Insert adds ref and reports whether it was absent.
func (s *Set) Insert(ref arena.PageRef) bool {
	return s.rb.CheckedAdd(uint32(ref))
}

// Erase removes ref and reports whether it was present.
func (s *Set) Erase(ref arena.PageRef) bool {
	return s.rb.CheckedRemove(uint32(ref))
}

// Contains reports whether ref is in the set.
func (s *Set) Contains(ref arena.PageRef) bool {
	return s.rb.Contains(uint32(ref))
}

// IsEmpty returns true if the set is empty.
func (s *Set) IsEmpty() bool {
	return s.rb.IsEmpty()
}

// Len returns the number of references in the set.
func (s *Set) Len() uint64 {
	return s.rb.GetCardinality()
}

// Min returns the lowest reference. ok is false on an empty set.
func (s *Set) Min() (ref arena.PageRef, ok bool) {
	if s.rb.IsEmpty() {
		return 0, false
	}
	return arena.PageRef(s.rb.Minimum()), true
}

// Rank returns the number of references <= ref.
func (s *Set) Rank(ref arena.PageRef) uint64 {
	return s.rb.Rank(uint32(ref))
}

// Select returns the i-th smallest reference (0-based).
func (s *Set) Select(i uint64) (arena.PageRef, bool) {
	if i >= s.rb.GetCardinality() {
		return 0, false
	}
	v, err := s.rb.Select(uint32(i)) //nolint:gosec // bounded by cardinality
	if err != nil {
		return 0, false
	}
	return arena.PageRef(v), true
}

// All iterates over the references in ascending order.
func (s *Set) All() iter.Seq[arena.PageRef] {
	return func(yield func(arena.PageRef) bool) {
		it := s.rb.Iterator()
		for it.HasNext() {
			if !yield(arena.PageRef(it.Next())) {
				return
			}
		}
	}
}

// Clear removes all references.
func (s *Set) Clear() {
	s.rb.Clear()
}

// Clone returns a deep copy.
func (s *Set) Clone() *Set {
	return &Set{rb: s.rb.Clone()}
}

// Equals reports whether both sets hold the same references.
func (s *Set) Equals(other *Set) bool {
	return s.rb.Equals(other.rb)
}

// WriteTo writes the set in the portable Roaring format.
func (s *Set) WriteTo(w io.Writer) (int64, error) {
	s.rb.RunOptimize()
	return s.rb.WriteTo(w)
}

// ReadFrom replaces the set with one read from r.
func (s *Set) ReadFrom(r io.Reader) (int64, error) {
	s.rb.Clear()
	return s.rb.ReadFrom(r)
}
