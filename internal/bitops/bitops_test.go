package bitops

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// naive reference: one bool per bit.
func toBools(words []uint64, n uint64) []bool {
	out := make([]bool, n)
	for i := range n {
		out[i] = words[i/64]>>(i%64)&1 == 1
	}
	return out
}

func TestReadWrite(t *testing.T) {
	words := make([]uint64, 4)

	tests := []struct {
		name  string
		off   uint64
		n     uint64
		value uint64
	}{
		{"aligned word", 0, 64, 0xDEADBEEFCAFEBABE},
		{"small", 3, 4, 0xA},
		{"straddle", 60, 10, 0x2AB},
		{"straddle full width", 100, 64, 0x0123456789ABCDEF},
		{"single bit", 255, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Write(words, tt.off, tt.n, tt.value)
			assert.Equal(t, tt.value&Mask(tt.n), Read(words, tt.off, tt.n))
		})
	}
}

func TestWriteDoesNotTouchNeighbours(t *testing.T) {
	words := []uint64{^uint64(0), ^uint64(0)}
	Write(words, 62, 4, 0)

	assert.Equal(t, uint64(0x3), Read(words, 60, 2))
	assert.Equal(t, uint64(0), Read(words, 62, 4))
	assert.Equal(t, uint64(0x3), Read(words, 66, 2))
}

func TestZero(t *testing.T) {
	words := []uint64{^uint64(0), ^uint64(0), ^uint64(0)}
	Zero(words, 10, 150)

	assert.Equal(t, uint64(1<<10-1), Read(words, 0, 10))
	assert.Equal(t, uint64(0), Read(words, 10, 54))
	assert.Equal(t, uint64(0), Read(words, 64, 64))
	assert.Equal(t, uint64(0), Read(words, 128, 32))
	assert.Equal(t, uint64(1<<32-1), Read(words, 160, 32))
}

func TestCopyOverlap(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for range 200 {
		words := make([]uint64, 8)
		for i := range words {
			words[i] = rng.Uint64()
		}
		total := uint64(len(words) * 64)
		n := rng.Uint64N(200) + 1
		src := rng.Uint64N(total - n)
		dst := rng.Uint64N(total - n)

		want := toBools(words, total)
		copy(want[dst:dst+n], append([]bool(nil), want[src:src+n]...))

		Copy(words, dst, words, src, n)
		require.Equal(t, want, toBools(words, total), "dst=%d src=%d n=%d", dst, src, n)
	}
}

func TestCompare(t *testing.T) {
	a := []uint64{0b0110}
	b := []uint64{0b0101}

	// first differing bit is bit 0: a has 0, b has 1.
	assert.Equal(t, -1, Compare(a, 0, b, 0, 4))
	assert.Equal(t, 1, Compare(b, 0, a, 0, 4))
	assert.Equal(t, 0, Compare(a, 1, a, 1, 3))
	assert.Equal(t, 0, Compare(a, 0, b, 0, 0))
}
