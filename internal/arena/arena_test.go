package arena

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArena_AcquireRelease(t *testing.T) {
	a := New(WithChunkPages(4))
	defer a.Close()

	refs := make([]PageRef, 6)
	for i := range refs {
		refs[i] = a.Acquire()
		assert.Equal(t, PageRef(i), refs[i])
	}
	assert.Equal(t, uint32(6), a.PageCount())
	assert.Equal(t, uint32(2), a.Stats().Chunks)

	// A middle page goes onto the free-list and comes back first.
	a.Release(refs[2])
	assert.True(t, a.IsFree(refs[2]))
	assert.Equal(t, uint32(1), a.Stats().FreePages)
	assert.Equal(t, uint32(6), a.PageCount())

	a.Release(refs[1])
	assert.Equal(t, refs[1], a.Acquire())
	assert.Equal(t, refs[2], a.Acquire())
	assert.Zero(t, a.Stats().FreePages)

	// Releasing the top page shrinks the address space and unmaps the
	// chunk that became unused.
	a.Release(refs[5])
	a.Release(refs[4])
	assert.Equal(t, uint32(4), a.PageCount())
	assert.Equal(t, uint32(1), a.Stats().Chunks)
	assert.Equal(t, PageRef(4), a.Acquire())
}

func TestArena_PagesAreZeroedAndDisjoint(t *testing.T) {
	a := New(WithChunkPages(2))
	defer a.Close()

	p0, p1, p2 := a.Acquire(), a.Acquire(), a.Acquire()
	for i, ref := range []PageRef{p0, p1, p2} {
		page := a.Page(ref)
		require.Len(t, page, PageWords)
		for j := range page {
			page[j] = uint64(i + 1)
		}
	}
	assert.Equal(t, uint64(1), a.Page(p0)[PageWords-1])
	assert.Equal(t, uint64(2), a.Page(p1)[0])
	assert.Equal(t, uint64(3), a.Page(p2)[0])

	a.Release(p1)
	again := a.Acquire()
	require.Equal(t, p1, again)
	for _, w := range a.Page(again) {
		require.Zero(t, w)
	}
}

func TestArena_Resize(t *testing.T) {
	a := New(WithChunkPages(3))
	defer a.Close()

	a.Resize(7)
	assert.Equal(t, uint32(7), a.PageCount())
	assert.Equal(t, uint32(3), a.Stats().Chunks)
	a.Page(6)[0] = 42

	a.Resize(2)
	assert.Equal(t, uint32(1), a.Stats().Chunks)

	a.Resize(7)
	assert.Zero(t, a.Page(6)[0], "regrown pages are zeroed")
}

func TestArena_FreeListRoundTrip(t *testing.T) {
	a := New()
	defer a.Close()

	for range 5 {
		a.Acquire()
	}
	a.Release(1)
	a.Release(3)
	head, count := a.FreeList(), a.Stats().FreePages

	require.NoError(t, a.SetFreeList(0, 0))
	assert.False(t, a.IsFree(1))

	require.NoError(t, a.SetFreeList(head, count))
	assert.True(t, a.IsFree(1))
	assert.True(t, a.IsFree(3))

	var free []PageRef
	for ref := range a.FreePages() {
		free = append(free, ref)
	}
	assert.Equal(t, []PageRef{3, 1}, free)

	t.Run("corrupt", func(t *testing.T) {
		assert.ErrorIs(t, a.SetFreeList(head, count+1), ErrCorruptFreeList)
		assert.ErrorIs(t, a.SetFreeList(head, 1), ErrCorruptFreeList)
		assert.ErrorIs(t, a.SetFreeList(99, 1), ErrCorruptFreeList)

		// A page linking to itself forms a cycle.
		a.Page(2)[0] = 3
		assert.ErrorIs(t, a.SetFreeList(3, 2), ErrCorruptFreeList)
		a.Page(2)[0] = 0
	})

	require.NoError(t, a.SetFreeList(head, count))
	assert.Equal(t, PageRef(3), a.Acquire())
}

type budget struct {
	limit, used int64
}

func (b *budget) AcquireMemory(n int64) error {
	if b.used+n > b.limit {
		return errors.New("over budget")
	}
	b.used += n
	return nil
}

func (b *budget) ReleaseMemory(n int64) { b.used -= n }

func TestArena_MemoryAcquirer(t *testing.T) {
	b := &budget{limit: 2 * PageBytes}
	a := New(WithChunkPages(1), WithMemoryAcquirer(b))

	a.Acquire()
	top := a.Acquire()
	assert.Equal(t, int64(2*PageBytes), b.used)

	requirePanicIs(t, ErrMemoryLimit, func() { a.Acquire() })

	a.Release(top)
	assert.Equal(t, int64(PageBytes), b.used)

	require.NoError(t, a.Close())
	assert.Zero(t, b.used)
	requirePanicIs(t, ErrClosed, func() { a.Acquire() })
}

func TestArena_InvalidRef(t *testing.T) {
	a := New()
	defer a.Close()

	a.Acquire()
	requirePanicIs(t, ErrInvalidPage, func() { a.Page(1) })
	requirePanicIs(t, ErrInvalidPage, func() { a.Release(7) })
}

func requirePanicIs(t *testing.T, target error, fn func()) {
	t.Helper()

	defer func() {
		r := recover()
		require.NotNil(t, r, "expected panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		require.ErrorIs(t, err, target)
	}()

	fn()
}

func BenchmarkArena_AcquireRelease(b *testing.B) {
	a := New()
	defer a.Close()

	// Free every other page so the loop runs on the free-list.
	floor := make([]PageRef, 64)
	for i := range floor {
		floor[i] = a.Acquire()
	}
	for i := 0; i < len(floor)-1; i += 2 {
		a.Release(floor[i])
	}

	b.ReportAllocs()
	for b.Loop() {
		a.Release(a.Acquire())
	}
}
