package pageset

import (
	"bytes"
	"slices"
	"testing"

	"github.com/hupe1980/bitslab/internal/arena"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet_InsertErase(t *testing.T) {
	s := New()
	assert.True(t, s.IsEmpty())

	assert.True(t, s.Insert(7))
	assert.False(t, s.Insert(7))
	assert.True(t, s.Insert(3))
	assert.True(t, s.Contains(3))
	assert.Equal(t, uint64(2), s.Len())

	assert.True(t, s.Erase(7))
	assert.False(t, s.Erase(7))
	assert.False(t, s.IsEmpty())

	assert.True(t, s.Erase(3))
	assert.True(t, s.IsEmpty())
}

func TestSet_OrderStatistics(t *testing.T) {
	s := New()
	_, ok := s.Min()
	assert.False(t, ok)

	for _, ref := range []arena.PageRef{40, 10, 30, 20} {
		s.Insert(ref)
	}

	minRef, ok := s.Min()
	require.True(t, ok)
	assert.Equal(t, arena.PageRef(10), minRef)

	assert.Equal(t, uint64(0), s.Rank(5))
	assert.Equal(t, uint64(2), s.Rank(20))
	assert.Equal(t, uint64(2), s.Rank(25))

	ref, ok := s.Select(2)
	require.True(t, ok)
	assert.Equal(t, arena.PageRef(30), ref)
	_, ok = s.Select(4)
	assert.False(t, ok)

	assert.Equal(t, []arena.PageRef{10, 20, 30, 40}, slices.Collect(s.All()))
}

func TestSet_WriteReadFrom(t *testing.T) {
	s := New()
	for ref := arena.PageRef(100); ref < 300; ref += 3 {
		s.Insert(ref)
	}

	var buf bytes.Buffer
	_, err := s.WriteTo(&buf)
	require.NoError(t, err)

	got := New()
	got.Insert(1)
	_, err = got.ReadFrom(&buf)
	require.NoError(t, err)
	assert.True(t, s.Equals(got))
	assert.False(t, got.Contains(1))

	c := got.Clone()
	c.Clear()
	assert.True(t, c.IsEmpty())
	assert.False(t, got.IsEmpty())
}
