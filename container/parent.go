package container

import (
	"errors"
	"fmt"

	"github.com/hupe1980/bitslab/bitvec"
)

var (
	// ErrOutOfRange is wrapped by panics for element indices or bit ranges
	// outside a container.
	ErrOutOfRange = errors.New("container: index out of range")
	// ErrContract is wrapped by panics for any other misuse (invalid widths,
	// malformed layouts, order violations).
	ErrContract = errors.New("container: contract violation")
)

// Parent hands out bit ranges to indexed children and can resize them.
//
// Offsets returned by ChildOffset are absolute positions in Vector. The at
// argument of GrowChild and ShrinkChild is relative to the child's start.
type Parent interface {
	Vector() bitvec.Vector
	ChildOffset(index uint64) uint64
	ChildLength(index uint64) uint64
	GrowChild(index, at, length uint64)
	ShrinkChild(index, at, length uint64)
}

// Root adapts a whole vector as a parent with exactly one child, index 0.
type Root struct {
	vec bitvec.Vector
}

var _ Parent = Root{}

// NewRoot returns a Root over vec.
func NewRoot(vec bitvec.Vector) Root {
	return Root{vec: vec}
}

// Vector implements Parent.
func (r Root) Vector() bitvec.Vector { return r.vec }

// ChildOffset implements Parent.
func (r Root) ChildOffset(index uint64) uint64 {
	checkRootIndex(index)
	return 0
}

// ChildLength implements Parent.
func (r Root) ChildLength(index uint64) uint64 {
	checkRootIndex(index)
	return r.vec.Size()
}

// GrowChild implements Parent.
func (r Root) GrowChild(index, at, length uint64) {
	checkRootIndex(index)
	r.vec.Grow(at, length)
}

// ShrinkChild implements Parent.
func (r Root) ShrinkChild(index, at, length uint64) {
	checkRootIndex(index)
	r.vec.Shrink(at, length)
}

func checkRootIndex(index uint64) {
	if index != 0 {
		panic(fmt.Errorf("%w: root child %d", ErrOutOfRange, index))
	}
}

func checkIndex(i, n uint64) {
	if i >= n {
		panic(fmt.Errorf("%w: %d of %d", ErrOutOfRange, i, n))
	}
}

func checkSpan(i, count, n uint64) {
	if i > n || count > n-i {
		panic(fmt.Errorf("%w: [%d, %d) of %d", ErrOutOfRange, i, i+count, n))
	}
}

func checkWidth(name string, bits uint64) {
	if bits == 0 || bits > 64 {
		panic(fmt.Errorf("%w: %s width %d not in [1, 64]", ErrContract, name, bits))
	}
}
