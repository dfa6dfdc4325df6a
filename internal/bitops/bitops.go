// Package bitops implements bit-granular access to little-endian word slices.
//
// Bit i of a slice lives in word i/64 at position i%64 (least significant bit
// first). All functions operate on at most 64 bits per call except Copy, Zero
// and Compare, which walk arbitrary ranges in word-sized chunks.
//
// Callers are responsible for bounds; out-of-range access panics with the usual
// index-out-of-range runtime error.
package bitops

// WordBits is the number of bits per storage word.
const WordBits = 64

// Mask returns a mask with the low n bits set (n <= 64).
func Mask(n uint64) uint64 {
	if n >= WordBits {
		return ^uint64(0)
	}
	return (uint64(1) << n) - 1
}

// WordsFor returns the number of words needed to hold n bits.
func WordsFor(n uint64) uint64 {
	return (n + WordBits - 1) / WordBits
}

// Read returns n bits (n <= 64) starting at bit offset off.
func Read(words []uint64, off, n uint64) uint64 {
	if n == 0 {
		return 0
	}
	w := off / WordBits
	shift := off % WordBits
	v := words[w] >> shift
	if shift+n > WordBits {
		v |= words[w+1] << (WordBits - shift)
	}
	return v & Mask(n)
}

// Write stores the low n bits (n <= 64) of value at bit offset off.
func Write(words []uint64, off, n, value uint64) {
	if n == 0 {
		return
	}
	value &= Mask(n)
	w := off / WordBits
	shift := off % WordBits
	lo := Mask(n) << shift
	words[w] = words[w]&^lo | value<<shift
	if shift+n > WordBits {
		spill := shift + n - WordBits
		hi := Mask(spill)
		words[w+1] = words[w+1]&^hi | value>>(WordBits-shift)
	}
}

// Zero clears n bits starting at off.
func Zero(words []uint64, off, n uint64) {
	for n > 0 {
		shift := off % WordBits
		k := min(WordBits-shift, n)
		if k == WordBits {
			words[off/WordBits] = 0
		} else {
			Write(words, off, k, 0)
		}
		off += k
		n -= k
	}
}

// Copy moves n bits from src[srcOff:] to dst[dstOff:].
//
// dst and src may be the same slice with overlapping ranges: the copy direction
// is chosen so that every source bit is read before it is overwritten.
func Copy(dst []uint64, dstOff uint64, src []uint64, srcOff, n uint64) {
	if n == 0 {
		return
	}
	if sameBacking(dst, src) && dstOff > srcOff && dstOff < srcOff+n {
		for rest := n; rest > 0; {
			k := min(rest, WordBits)
			rest -= k
			Write(dst, dstOff+rest, k, Read(src, srcOff+rest, k))
		}
		return
	}
	for done := uint64(0); done < n; {
		k := min(n-done, WordBits)
		Write(dst, dstOff+done, k, Read(src, srcOff+done, k))
		done += k
	}
}

// Compare orders the n-bit range a[aOff:] against b[bOff:] lexicographically:
// the first differing bit (lowest offset) decides, a clear bit sorting first.
// It returns -1, 0 or +1.
func Compare(a []uint64, aOff uint64, b []uint64, bOff, n uint64) int {
	for done := uint64(0); done < n; {
		k := min(n-done, WordBits)
		x := Read(a, aOff+done, k)
		y := Read(b, bOff+done, k)
		if d := x ^ y; d != 0 {
			if x&(d&-d) == 0 {
				return -1
			}
			return 1
		}
		done += k
	}
	return 0
}

func sameBacking(a, b []uint64) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	return &a[:1][0] == &b[:1][0]
}
