package container

// VarSet is a VarArray kept in ascending key order with unique keys. Like
// VarArray it is a Parent whose children are the element payloads.
type VarSet[P Parent] struct {
	VarArray[P]
}

var _ Parent = VarSet[Root]{}

// NewVarSet returns the self-describing set stored in child index of parent.
func NewVarSet[P Parent](parent P, index uint64, layout Layout) VarSet[P] {
	checkWidth("key", layout.KeyBits)
	return VarSet[P]{VarArray: NewVarArray(parent, index, layout)}
}

// FindKey returns the first index whose key is >= k and whether it equals k.
func (s VarSet[P]) FindKey(k uint64) (uint64, bool) {
	return lowerBound(s.VarArray, numericOrder(k))
}

// Insert adds k with an empty payload. It returns the element index and false
// without mutation when k is already present.
func (s VarSet[P]) Insert(k uint64) (uint64, bool) {
	i, found := s.FindKey(k)
	if found {
		return i, false
	}
	s.InsertRange(i, 1)
	s.SetKey(i, k)
	return i, true
}

// EraseByKey removes k and its payload and reports whether it was present.
func (s VarSet[P]) EraseByKey(k uint64) bool {
	i, found := s.FindKey(k)
	if !found {
		return false
	}
	s.EraseRange(i, 1)
	return true
}

// SetKeyAt rekeys element i to k, relocating it together with its payload to
// keep the set ordered. It returns false and leaves the set unchanged if
// another element holds k.
func (s VarSet[P]) SetKeyAt(i, k uint64) bool {
	return relocateKey(s.VarArray, i, k)
}

// Keys returns a copy of all keys in order.
func (s VarSet[P]) Keys() []uint64 {
	n := s.Len()
	out := make([]uint64, n)
	for i := range n {
		out[i] = s.Key(i)
	}
	return out
}
