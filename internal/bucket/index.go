package bucket

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/bitslab/internal/bitops"
	"github.com/hupe1980/bitslab/internal/conv"
	"github.com/hupe1980/bitslab/internal/pageset"
)

// ErrCorruptIndex is returned by ReadIndex for inconsistent index data.
var ErrCorruptIndex = errors.New("bucket: corrupt page index")

// WriteIndex writes the full-page set followed by every class's free-page
// set, each length-prefixed. Page contents are not included.
func (b *Allocator) WriteIndex(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b.free))); err != nil { //nolint:gosec // validated < noSlot
		return err
	}
	for _, set := range append([]*pageset.Set{b.full}, b.free...) {
		var buf bytes.Buffer
		if _, err := set.WriteTo(&buf); err != nil {
			return err
		}
		n, err := conv.IntToUint32(buf.Len())
		if err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, n); err != nil {
			return err
		}
		if _, err := w.Write(buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// ReadIndex replaces the page sets with ones written by WriteIndex and
// recomputes the per-class counters from the pages, which must already be
// present in the arena.
func (b *Allocator) ReadIndex(r io.Reader) error {
	var classes uint32
	if err := binary.Read(r, binary.LittleEndian, &classes); err != nil {
		return err
	}
	if int(classes) != len(b.free) {
		return fmt.Errorf("%w: %d classes, layout %q has %d", ErrCorruptIndex, classes, b.layout.Name, len(b.free))
	}

	sets := make([]*pageset.Set, 0, classes+1)
	for range classes + 1 {
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return err
		}
		set := pageset.New()
		if _, err := set.ReadFrom(io.LimitReader(r, int64(n))); err != nil {
			return fmt.Errorf("%w: %w", ErrCorruptIndex, err)
		}
		sets = append(sets, set)
	}

	b.full, b.free = sets[0], sets[1:]
	return b.recount()
}

func (b *Allocator) recount() error {
	clear(b.pages)
	clear(b.slots)
	clear(b.used)

	pages := b.arena.PageCount()
	for ref := range b.Pages() {
		if uint32(ref) >= pages {
			return fmt.Errorf("%w: page %d beyond arena of %d pages", ErrCorruptIndex, ref, pages)
		}
		p := b.page(ref)
		c := int(p.class())
		if c >= len(b.layout.Classes) {
			return fmt.Errorf("%w: page %d has class %d", ErrCorruptIndex, ref, c)
		}
		count := uint64(p.count())
		full := b.full.Contains(ref)
		if !full && !b.free[c].Contains(ref) {
			return fmt.Errorf("%w: page %d indexed under the wrong class", ErrCorruptIndex, ref)
		}
		if count == 0 || count > b.maxCount[c] || full != (count == b.maxCount[c]) {
			return fmt.Errorf("%w: page %d holds %d of %d slots", ErrCorruptIndex, ref, count, b.maxCount[c])
		}
		var free uint64
		for range b.freeSlots(ref) {
			free++
		}
		if free != b.maxCount[c]-count {
			return fmt.Errorf("%w: page %d lists %d free slots, want %d", ErrCorruptIndex, ref, free, b.maxCount[c]-count)
		}

		b.pages[c]++
		b.slots[c] += count
		for i := range b.maxCount[c] {
			b.used[c] += bitops.Read(p.words, b.slotPos(c, uint16(i)), b.layout.SizeBits) //nolint:gosec // validated < noSlot
		}
	}
	return nil
}
