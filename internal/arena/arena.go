package arena

import (
	"errors"
	"fmt"
	"iter"

	"github.com/hupe1980/bitslab/internal/mmap"
)

// PageRef addresses one page of the arena.
type PageRef uint32

const (
	// PageBits is the size of a page in bits.
	PageBits = 1 << 15
	// PageWords is the size of a page in 64-bit words.
	PageWords = PageBits / 64
	// PageBytes is the size of a page in bytes.
	PageBytes = PageWords * 8
	// DefaultChunkPages is the number of pages mapped at once (256 KiB).
	DefaultChunkPages = 64
	// MaxPages bounds the address space; PageRef+1 must fit the free-list link.
	MaxPages = 1<<32 - 1
)

var (
	// ErrMemoryLimit is wrapped by the panic raised when mapping another chunk
	// would exceed the configured memory budget.
	ErrMemoryLimit = errors.New("arena: memory limit exceeded")
	// ErrMapFailed is wrapped by the panic raised when the OS refuses a mapping.
	ErrMapFailed = errors.New("arena: mapping failed")
	// ErrInvalidPage is wrapped by panics for references outside the arena.
	ErrInvalidPage = errors.New("arena: invalid page reference")
	// ErrClosed is wrapped by panics for use after Close.
	ErrClosed = errors.New("arena: closed")
	// ErrCorruptFreeList is returned by SetFreeList for an inconsistent list.
	ErrCorruptFreeList = errors.New("arena: corrupt free-list")
)

// MemoryAcquirer reserves memory before the arena maps it.
type MemoryAcquirer interface {
	AcquireMemory(bytes int64) error
	ReleaseMemory(bytes int64)
}

// Stats describes the arena's address space.
type Stats struct {
	Pages         uint32 // pages in the address space, free or not
	FreePages     uint32 // pages on the free-list
	Chunks        uint32 // mapped chunks
	BytesReserved uint64 // bytes mapped from the OS
	Acquired      uint64 // cumulative Acquire calls
	Released      uint64 // cumulative Release calls
}

type chunk struct {
	mapping *mmap.Mapping
	words   []uint64
}

// Arena is a linear address space of fixed-size pages carved from anonymous
// memory mappings. Unused pages form a free-list whose links live in the
// first word of each free page.
//
// Arena is not safe for concurrent use.
type Arena struct {
	chunkPages int
	chunks     []chunk
	pages      uint32
	freeHead   uint32 // PageRef+1 of the first free page, 0 if none
	freeCount  uint32
	acquirer   MemoryAcquirer
	closed     bool

	acquired uint64
	released uint64
}

// Option is a configuration option for Arena.
type Option func(*Arena)

// WithMemoryAcquirer charges every mapped chunk against acquirer.
func WithMemoryAcquirer(acquirer MemoryAcquirer) Option {
	return func(a *Arena) {
		a.acquirer = acquirer
	}
}

// WithChunkPages sets how many pages are mapped at once.
func WithChunkPages(n int) Option {
	return func(a *Arena) {
		if n > 0 {
			a.chunkPages = n
		}
	}
}

// New creates an empty arena. No memory is mapped until the first Acquire.
func New(opts ...Option) *Arena {
	a := &Arena{chunkPages: DefaultChunkPages}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Acquire returns a zeroed page, popping the free-list or growing the
// address space by one page.
func (a *Arena) Acquire() PageRef {
	a.checkOpen()
	a.acquired++

	if a.freeHead != 0 {
		ref := PageRef(a.freeHead - 1)
		page := a.Page(ref)
		a.freeHead = uint32(page[0])
		a.freeCount--
		clear(page)
		return ref
	}

	if a.pages == MaxPages {
		panic(fmt.Errorf("%w: address space exhausted", ErrMemoryLimit))
	}
	ref := PageRef(a.pages)
	a.Resize(a.pages + 1)
	return ref
}

// Release gives a page back. The highest page shrinks the address space;
// any other page is pushed onto the free-list.
func (a *Arena) Release(ref PageRef) {
	a.checkOpen()
	a.checkRef(ref)
	a.released++

	if uint32(ref) == a.pages-1 {
		a.Resize(a.pages - 1)
		return
	}

	page := a.Page(ref)
	page[0] = uint64(a.freeHead)
	a.freeHead = uint32(ref) + 1
	a.freeCount++
}

// Page returns the words of page ref. The slice stays valid until the page
// is released or the arena shrinks past it.
func (a *Arena) Page(ref PageRef) []uint64 {
	a.checkRef(ref)
	per := uint32(a.chunkPages) //nolint:gosec // chunkPages is small
	c := a.chunks[uint32(ref)/per]
	off := int(uint32(ref)%per) * PageWords
	return c.words[off : off+PageWords : off+PageWords]
}

// Resize sets the number of pages in the address space, mapping or unmapping
// chunks as needed. New pages are zeroed. Pages beyond the new size are
// dropped and must not be on the free-list.
func (a *Arena) Resize(pages uint32) {
	a.checkOpen()

	for a.capacity() < uint64(pages) {
		a.mapChunk()
	}
	if pages > a.pages {
		for ref := a.pages; ref < pages; ref++ {
			a.pages = ref + 1
			clear(a.Page(PageRef(ref)))
		}
		return
	}

	a.pages = pages
	for len(a.chunks) > 0 && uint64(len(a.chunks)-1)*uint64(a.chunkPages) >= uint64(pages) {
		a.unmapChunk()
	}
}

// PageCount returns the number of pages in the address space.
func (a *Arena) PageCount() uint32 { return a.pages }

// FreeList returns the free-list head as stored (PageRef+1, 0 if empty).
func (a *Arena) FreeList() uint32 { return a.freeHead }

// SetFreeList restores a free-list head previously returned by FreeList.
// The links themselves live in the pages; the list must hold exactly count
// distinct pages.
func (a *Arena) SetFreeList(head uint32, count uint32) error {
	seen := make(map[uint32]struct{}, count)
	for next := head; next != 0; next = uint32(a.Page(PageRef(next - 1))[0]) {
		if next > a.pages {
			return fmt.Errorf("%w: link %d of %d pages", ErrCorruptFreeList, next, a.pages)
		}
		if _, dup := seen[next]; dup || uint32(len(seen)) == count {
			return fmt.Errorf("%w: more than %d pages or a cycle", ErrCorruptFreeList, count)
		}
		seen[next] = struct{}{}
	}
	if uint32(len(seen)) != count {
		return fmt.Errorf("%w: %d of %d pages", ErrCorruptFreeList, len(seen), count)
	}
	a.freeHead = head
	a.freeCount = count
	return nil
}

// IsFree reports whether ref is on the free-list. It walks the list.
func (a *Arena) IsFree(ref PageRef) bool {
	for free := range a.FreePages() {
		if free == ref {
			return true
		}
	}
	return false
}

// FreePages iterates over the free-list from its head.
func (a *Arena) FreePages() iter.Seq[PageRef] {
	return func(yield func(PageRef) bool) {
		next := a.freeHead
		for range a.freeCount {
			if next == 0 || !yield(PageRef(next-1)) {
				return
			}
			next = uint32(a.Page(PageRef(next - 1))[0])
		}
	}
}

// Stats returns the current arena statistics.
func (a *Arena) Stats() Stats {
	return Stats{
		Pages:         a.pages,
		FreePages:     a.freeCount,
		Chunks:        uint32(len(a.chunks)), //nolint:gosec // bounded by MaxPages
		BytesReserved: uint64(len(a.chunks)) * uint64(a.chunkBytes()),
		Acquired:      a.acquired,
		Released:      a.released,
	}
}

// Close unmaps all memory. The arena cannot be used afterwards.
func (a *Arena) Close() error {
	if a.closed {
		return nil
	}
	var errs []error
	for len(a.chunks) > 0 {
		if err := a.unmapChunk(); err != nil {
			errs = append(errs, err)
		}
	}
	a.pages, a.freeHead, a.freeCount = 0, 0, 0
	a.closed = true
	return errors.Join(errs...)
}

func (a *Arena) String() string {
	s := a.Stats()
	return fmt.Sprintf("Arena{pages: %d, free: %d, chunks: %d, reserved: %.2f MB}",
		s.Pages, s.FreePages, s.Chunks, float64(s.BytesReserved)/(1024*1024))
}

func (a *Arena) capacity() uint64 {
	return uint64(len(a.chunks)) * uint64(a.chunkPages)
}

func (a *Arena) chunkBytes() int {
	return a.chunkPages * PageBytes
}

func (a *Arena) mapChunk() {
	size := a.chunkBytes()
	if a.acquirer != nil {
		if err := a.acquirer.AcquireMemory(int64(size)); err != nil {
			panic(fmt.Errorf("%w: chunk of %d bytes: %w", ErrMemoryLimit, size, err))
		}
	}

	mapping, err := mmap.MapAnon(size)
	if err != nil {
		if a.acquirer != nil {
			a.acquirer.ReleaseMemory(int64(size))
		}
		panic(fmt.Errorf("%w: %w", ErrMapFailed, err))
	}

	a.chunks = append(a.chunks, chunk{mapping: mapping, words: mapping.Words()})
}

func (a *Arena) unmapChunk() error {
	last := len(a.chunks) - 1
	c := a.chunks[last]
	a.chunks[last] = chunk{}
	a.chunks = a.chunks[:last]

	err := c.mapping.Close()
	if a.acquirer != nil {
		a.acquirer.ReleaseMemory(int64(a.chunkBytes()))
	}
	return err
}

func (a *Arena) checkRef(ref PageRef) {
	if uint32(ref) >= a.pages {
		panic(fmt.Errorf("%w: %d of %d pages", ErrInvalidPage, ref, a.pages))
	}
}

func (a *Arena) checkOpen() {
	if a.closed {
		panic(ErrClosed)
	}
}
