package container

import (
	"cmp"
	"fmt"
	"sort"
)

// keyed is the element access a sorted view needs from the array beneath it.
type keyed interface {
	Len() uint64
	Key(i uint64) uint64
	SetKey(i, k uint64)
	MoveElementAt(dst, src uint64)
}

// lowerBound returns the first index whose key does not order before the
// probe, and whether that key orders equal to it. order(k) compares an
// element key against the probe.
func lowerBound[S keyed](s S, order func(k uint64) int) (uint64, bool) {
	n := s.Len()
	i := uint64(sort.Search(int(n), func(j int) bool { //nolint:gosec // element counts fit in int
		return order(s.Key(uint64(j))) >= 0
	}))
	return i, i < n && order(s.Key(i)) == 0
}

func numericOrder(probe uint64) func(uint64) int {
	return func(k uint64) int { return cmp.Compare(k, probe) }
}

// relocateKey moves element i to the sorted position of k and writes k.
// It fails without mutation when k is already held by another element.
func relocateKey[S keyed](s S, i, k uint64) bool {
	checkIndex(i, s.Len())
	p, found := lowerBound(s, numericOrder(k))
	if found {
		return p == i
	}
	dst := p
	if p > i {
		dst = p - 1
	}
	s.MoveElementAt(dst, i)
	s.SetKey(dst, k)
	return true
}

// Deduplicator orders keys by the content they refer to and retires keys that
// turn out to duplicate an existing element.
type Deduplicator interface {
	// Compare orders the contents behind keys a and b.
	Compare(a, b uint64) int
	// Release retires key, whose content duplicates an element already present.
	Release(key uint64)
}

// Set is a PairArray kept in ascending key order with unique keys.
type Set[P Parent] struct {
	pairs PairArray[P]
}

// NewSet returns the sorted set stored in child index of parent.
func NewSet[P Parent](parent P, index, keyBits, valueBits uint64) Set[P] {
	return Set[P]{pairs: NewPairArray(parent, index, keyBits, valueBits)}
}

// Len returns the number of elements.
func (s Set[P]) Len() uint64 { return s.pairs.Len() }

// Key returns the key of element i.
func (s Set[P]) Key(i uint64) uint64 { return s.pairs.Key(i) }

// Value returns the value of element i.
func (s Set[P]) Value(i uint64) uint64 { return s.pairs.Value(i) }

// SetValue overwrites the value of element i.
func (s Set[P]) SetValue(i, v uint64) { s.pairs.SetValue(i, v) }

// FindKey returns the first index whose key is >= k and whether it equals k.
func (s Set[P]) FindKey(k uint64) (uint64, bool) {
	return lowerBound(s.pairs, numericOrder(k))
}

// FindFunc is FindKey under a caller-supplied order; order(k) compares an
// element key against the probe.
func (s Set[P]) FindFunc(order func(k uint64) int) (uint64, bool) {
	return lowerBound(s.pairs, order)
}

// Insert adds (k, v). It returns the element index and false without mutation
// when k is already present.
func (s Set[P]) Insert(k, v uint64) (uint64, bool) {
	i, found := s.FindKey(k)
	if found {
		return i, false
	}
	s.pairs.InsertAt(i, k, v)
	return i, true
}

// InsertDedup adds (k, v) to a set ordered by content. If an element with
// equal content exists, d.Release(k) is called and the existing key returned
// with inserted == false.
func (s Set[P]) InsertDedup(k, v uint64, d Deduplicator) (owner uint64, inserted bool) {
	i, found := lowerBound(s.pairs, func(e uint64) int { return d.Compare(e, k) })
	if found {
		existing := s.pairs.Key(i)
		if existing != k {
			d.Release(k)
		}
		return existing, false
	}
	s.pairs.InsertAt(i, k, v)
	return k, true
}

// EraseAt removes element i.
func (s Set[P]) EraseAt(i uint64) { s.pairs.EraseAt(i) }

// EraseByKey removes k and reports whether it was present.
func (s Set[P]) EraseByKey(k uint64) bool {
	i, found := s.FindKey(k)
	if !found {
		return false
	}
	s.pairs.EraseAt(i)
	return true
}

// SetKeyAt rekeys element i to k, moving it to keep the set ordered. It
// returns false and leaves the set unchanged if another element holds k.
func (s Set[P]) SetKeyAt(i, k uint64) bool {
	return relocateKey(s.pairs, i, k)
}

// Keys returns a copy of all keys in order.
func (s Set[P]) Keys() []uint64 {
	n := s.Len()
	out := make([]uint64, n)
	for i := range n {
		out[i] = s.pairs.Key(i)
	}
	return out
}

// MustInsert is Insert that panics on a duplicate key.
func (s Set[P]) MustInsert(k, v uint64) uint64 {
	i, ok := s.Insert(k, v)
	if !ok {
		panic(fmt.Errorf("%w: duplicate key %d", ErrContract, k))
	}
	return i
}
