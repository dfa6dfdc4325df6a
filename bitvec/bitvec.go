// Package bitvec defines the resizable, bit-addressable vector every container
// in bitslab is laid out in, together with a heap-backed implementation.
//
// A Vector behaves like a byte slice whose unit is one bit: Grow and Shrink
// insert or remove bits at an arbitrary position and shift everything after it.
// Read and Write access at most 64 bits at a time.
//
// Implementations panic with ErrOutOfRange when an access exceeds Size; that is
// a caller bug, never a runtime condition.
package bitvec

import (
	"errors"
	"fmt"

	"github.com/hupe1980/bitslab/internal/bitops"
)

// ErrOutOfRange is the panic value (wrapped) for accesses beyond a vector's size.
var ErrOutOfRange = errors.New("bitvec: access out of range")

// Vector is the storage contract consumed by the container algebra.
//
// Implementations used with Copy on themselves must be comparable.
type Vector interface {
	// Size returns the length in bits.
	Size() uint64
	// Grow inserts length zero bits at offset.
	Grow(offset, length uint64)
	// Shrink removes length bits at offset.
	Shrink(offset, length uint64)
	// Read returns length (<= 64) bits at offset.
	Read(offset, length uint64) uint64
	// Write stores the low length (<= 64) bits of value at offset.
	Write(offset, length, value uint64)
}

// Copy copies n bits from src at srcOff to dst at dstOff. dst and src may be the
// same vector with overlapping ranges.
func Copy(dst Vector, dstOff uint64, src Vector, srcOff, n uint64) {
	if n == 0 {
		return
	}
	if dstOff+n > dst.Size() || srcOff+n > src.Size() {
		panic(fmt.Errorf("%w: copy of %d bits (dst %d/%d, src %d/%d)",
			ErrOutOfRange, n, dstOff, dst.Size(), srcOff, src.Size()))
	}
	if d, ok := dst.(*Buffer); ok {
		if s, ok := src.(*Buffer); ok {
			bitops.Copy(d.words, dstOff, s.words, srcOff, n)
			return
		}
	}
	if dst == src && dstOff > srcOff && dstOff < srcOff+n {
		for rest := n; rest > 0; {
			k := min(rest, bitops.WordBits)
			rest -= k
			dst.Write(dstOff+rest, k, src.Read(srcOff+rest, k))
		}
		return
	}
	for done := uint64(0); done < n; {
		k := min(n-done, bitops.WordBits)
		dst.Write(dstOff+done, k, src.Read(srcOff+done, k))
		done += k
	}
}

// Compare orders two vectors lexicographically over their bits; a vector that
// is a proper prefix of the other sorts first. It returns -1, 0 or +1.
func Compare(a, b Vector) int {
	na, nb := a.Size(), b.Size()
	n := min(na, nb)
	for done := uint64(0); done < n; {
		k := min(n-done, bitops.WordBits)
		x, y := a.Read(done, k), b.Read(done, k)
		if d := x ^ y; d != 0 {
			if x&(d&-d) == 0 {
				return -1
			}
			return 1
		}
		done += k
	}
	switch {
	case na < nb:
		return -1
	case na > nb:
		return 1
	default:
		return 0
	}
}

// Equal reports whether a and b hold the same bits.
func Equal(a, b Vector) bool {
	return a.Size() == b.Size() && Compare(a, b) == 0
}

// CheckRange panics with ErrOutOfRange unless [offset, offset+length) lies
// within a vector of the given size.
func CheckRange(size, offset, length uint64) {
	if offset > size || length > size-offset {
		panic(fmt.Errorf("%w: [%d, %d) of %d bits", ErrOutOfRange, offset, offset+length, size))
	}
}
