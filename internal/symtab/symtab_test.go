package symtab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_GetSet(t *testing.T) {
	tab := New[uint64]()

	_, ok := tab.Get(5)
	assert.False(t, ok)

	tab.Set(5, 50)
	tab.Set(segmentSize+1, 7)
	v, ok := tab.Get(5)
	require.True(t, ok)
	assert.Equal(t, uint64(50), v)
	assert.Equal(t, uint64(segmentSize+2), tab.Len())
	assert.Equal(t, uint64(2), tab.Count())

	_, ok = tab.Get(6)
	assert.False(t, ok)
	_, ok = tab.Get(1 << 40)
	assert.False(t, ok)
}

func TestTable_ClearDropsSegment(t *testing.T) {
	tab := New[uint64]()
	tab.Set(3*segmentSize+9, 1)
	require.NotNil(t, tab.segments[3])

	tab.Set(3*segmentSize+9, 0)
	assert.Nil(t, tab.segments[3])
	assert.Equal(t, uint64(0), tab.Count())

	// Clearing an entry that was never set allocates nothing.
	tab.Set(10*segmentSize, 0)
	assert.Len(t, tab.segments, 4)
}

func TestTable_Truncate(t *testing.T) {
	tests := []struct {
		name string
		n    uint64
		want []uint64
	}{
		{"inside first segment", 3, []uint64{1, 2}},
		{"segment boundary", segmentSize, []uint64{1, 2, 10}},
		{"beyond end", 1 << 20, []uint64{1, 2, 10, segmentSize, 2*segmentSize + 5}},
		{"everything", 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tab := New[uint64]()
			for _, i := range []uint64{1, 2, 10, segmentSize, 2*segmentSize + 5} {
				tab.Set(i, i+100)
			}

			tab.Truncate(tt.n)

			var got []uint64
			for i, v := range tab.All() {
				assert.Equal(t, i+100, v)
				got = append(got, i)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, uint64(len(tt.want)), tab.Count())
			assert.LessOrEqual(t, tab.Len(), max(tt.n, 1))
		})
	}
}

func TestTable_AllStopsEarly(t *testing.T) {
	tab := New[uint32]()
	for i := range uint64(100) {
		tab.Set(i*50, uint32(i+1))
	}

	seen := 0
	for range tab.All() {
		seen++
		if seen == 10 {
			break
		}
	}
	assert.Equal(t, 10, seen)
}

func BenchmarkTable_Set(b *testing.B) {
	tab := New[uint64]()
	var i uint64
	for b.Loop() {
		tab.Set(i&(1<<20-1), i|1)
		i++
	}
}
