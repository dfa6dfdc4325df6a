package bitvec

import (
	"fmt"

	"github.com/hupe1980/bitslab/internal/bitops"
)

// Buffer is a heap-backed Vector. The zero value is an empty buffer ready to use.
type Buffer struct {
	words []uint64
	size  uint64
}

var _ Vector = (*Buffer)(nil)

// New returns an empty Buffer with room for capacity bits.
func New(capacity uint64) *Buffer {
	return &Buffer{words: make([]uint64, 0, bitops.WordsFor(capacity))}
}

// FromWords returns a Buffer of size bits initialised from words.
func FromWords(words []uint64, size uint64) *Buffer {
	if uint64(len(words))*bitops.WordBits < size {
		panic(fmt.Errorf("%w: %d words cannot hold %d bits", ErrOutOfRange, len(words), size))
	}
	b := &Buffer{words: append([]uint64(nil), words[:bitops.WordsFor(size)]...), size: size}
	b.clearTail()
	return b
}

// Size implements Vector.
func (b *Buffer) Size() uint64 { return b.size }

// Words returns the backing words. Bits at and beyond Size are zero.
func (b *Buffer) Words() []uint64 { return b.words }

// Grow implements Vector.
func (b *Buffer) Grow(offset, length uint64) {
	CheckRange(b.size, offset, 0)
	if length == 0 {
		return
	}
	old := b.size
	b.size += length
	need := bitops.WordsFor(b.size)
	if need > uint64(len(b.words)) {
		if need <= uint64(cap(b.words)) {
			b.words = b.words[:need]
		} else {
			grown := make([]uint64, need, max(need, 2*uint64(cap(b.words))))
			copy(grown, b.words)
			b.words = grown
		}
	}
	bitops.Copy(b.words, offset+length, b.words, offset, old-offset)
	bitops.Zero(b.words, offset, length)
}

// Shrink implements Vector.
func (b *Buffer) Shrink(offset, length uint64) {
	CheckRange(b.size, offset, length)
	if length == 0 {
		return
	}
	bitops.Copy(b.words, offset, b.words, offset+length, b.size-offset-length)
	b.size -= length
	b.clearTail()
	b.words = b.words[:bitops.WordsFor(b.size)]
}

// Read implements Vector.
func (b *Buffer) Read(offset, length uint64) uint64 {
	CheckRange(b.size, offset, length)
	return bitops.Read(b.words, offset, length)
}

// Write implements Vector.
func (b *Buffer) Write(offset, length, value uint64) {
	CheckRange(b.size, offset, length)
	bitops.Write(b.words, offset, length, value)
}

// Reset truncates the buffer to zero bits, keeping its capacity.
func (b *Buffer) Reset() {
	clear(b.words)
	b.words = b.words[:0]
	b.size = 0
}

// String renders the bits lowest offset first, e.g. "0110".
func (b *Buffer) String() string {
	out := make([]byte, b.size)
	for i := range b.size {
		out[i] = '0' + byte(bitops.Read(b.words, i, 1))
	}
	return string(out)
}

func (b *Buffer) clearTail() {
	if tail := b.size % bitops.WordBits; tail != 0 {
		last := b.size / bitops.WordBits
		b.words[last] &= bitops.Mask(tail)
	}
	for i := bitops.WordsFor(b.size); i < uint64(len(b.words)); i++ {
		b.words[i] = 0
	}
}
