package bitslab

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"time"

	"github.com/hupe1980/bitslab/blobstore"
	"github.com/hupe1980/bitslab/image"
	"github.com/hupe1980/bitslab/internal/arena"
	"github.com/hupe1980/bitslab/internal/bucket"
	"github.com/hupe1980/bitslab/internal/conv"
	"github.com/hupe1980/bitslab/internal/pageset"
)

// imageMeta is the fixed-size head of an image's meta section. It is
// followed by the two allocator indices, the released-symbol set and the
// symbol table, each length-prefixed.
type imageMeta struct {
	Next      uint64
	Live      uint64
	FreeHead  uint32
	FreeCount uint32
}

// reservedLocBits must be zero in every stored location.
const reservedLocBits = location(0x3FFF) << 48

// SaveImage writes an image of the Store to w and returns the bytes written.
func (s *Store) SaveImage(ctx context.Context, w io.Writer) (int64, error) {
	return s.saveImage(ctx, w, "")
}

// SaveImageTo writes an image of the Store to bs under name.
func (s *Store) SaveImageTo(ctx context.Context, bs blobstore.Store, name string) error {
	var buf bytes.Buffer
	if _, err := s.saveImage(ctx, &buf, name); err != nil {
		return err
	}
	if err := bs.Put(ctx, name, buf.Bytes()); err != nil {
		return fmt.Errorf("bitslab: put image %q: %w", name, err)
	}
	return nil
}

func (s *Store) saveImage(ctx context.Context, w io.Writer, name string) (n int64, err error) {
	if s.closed {
		return 0, ErrClosed
	}

	start := time.Now()
	defer func() {
		s.opts.metricsCollector.RecordImage(ImageSave, n, time.Since(start), err)
		s.opts.logger.LogSaveImage(ctx, name, s.arena.PageCount(), n, err)
	}()

	meta, err := s.encodeMeta()
	if err != nil {
		return 0, err
	}

	enc := image.NewEncoder(w,
		image.WithCompression(s.opts.compression),
		image.WithWorkers(int(s.opts.workers)),
		image.WithIOLimit(s.opts.ioLimit),
	)
	return enc.Encode(ctx, s.arena, meta)
}

// Load rebuilds a Store from an image written by SaveImage. opts configure
// the new Store as for New.
func Load(ctx context.Context, r io.Reader, optFns ...Option) (*Store, error) {
	return load(ctx, r, "", applyOptions(optFns))
}

// LoadFrom rebuilds a Store from the image stored in bs under name.
func LoadFrom(ctx context.Context, bs blobstore.Store, name string, optFns ...Option) (*Store, error) {
	blob, err := bs.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("bitslab: open image %q: %w", name, err)
	}
	defer blob.Close()

	return load(ctx, blobstore.NewReader(blob), name, applyOptions(optFns))
}

func load(ctx context.Context, r io.Reader, name string, o options) (st *Store, err error) {
	start := time.Now()
	var (
		read  countingReader
		pages uint32
	)
	defer func() {
		o.metricsCollector.RecordImage(ImageLoad, read.n, time.Since(start), err)
		var symbols uint64
		if st != nil {
			symbols = st.live
		}
		o.logger.LogLoadImage(ctx, name, pages, symbols, err)
	}()

	s, err := newStore(o)
	if err != nil {
		return nil, err
	}

	read.r = r
	meta, err := s.decodePages(ctx, image.NewDecoder(&read, image.WithIOLimit(o.ioLimit)))
	if err == nil {
		pages = s.arena.PageCount()
		err = s.restore(meta)
	}
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// decodePages fills the arena from dec. Failing to map memory for the image
// is reported as an error.
func (s *Store) decodePages(ctx context.Context, dec *image.Decoder) (meta []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			rerr, ok := r.(error)
			if !ok || !errors.Is(rerr, arena.ErrMemoryLimit) && !errors.Is(rerr, arena.ErrMapFailed) {
				panic(r)
			}
			err = rerr
		}
	}()

	_, meta, err = dec.Decode(ctx, s.arena)
	if errors.Is(err, image.ErrFormat) || errors.Is(err, image.ErrUnsupportedVersion) {
		return nil, corrupt("pages", err)
	}
	return meta, err
}

func (s *Store) encodeMeta() ([]byte, error) {
	var buf bytes.Buffer

	m := imageMeta{
		Next:      uint64(s.next),
		Live:      s.live,
		FreeHead:  s.arena.FreeList(),
		FreeCount: s.arena.Stats().FreePages,
	}
	if err := binary.Write(&buf, binary.LittleEndian, m); err != nil {
		return nil, err
	}

	for _, a := range []*bucket.Allocator{s.vectors, s.blobs} {
		var index bytes.Buffer
		if err := a.WriteIndex(&index); err != nil {
			return nil, fmt.Errorf("bitslab: %s index: %w", a.Layout().Name, err)
		}
		if err := writeSection(&buf, index.Bytes()); err != nil {
			return nil, fmt.Errorf("bitslab: %s index: %w", a.Layout().Name, err)
		}
	}

	released, err := s.released.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("bitslab: released symbols: %w", err)
	}
	if err := writeSection(&buf, released); err != nil {
		return nil, fmt.Errorf("bitslab: released symbols: %w", err)
	}

	var entry [16]byte
	binary.LittleEndian.PutUint64(entry[:8], s.live)
	buf.Write(entry[:8])
	for sym, loc := range s.symbols.All() {
		binary.LittleEndian.PutUint64(entry[0:], sym)
		binary.LittleEndian.PutUint64(entry[8:], uint64(loc))
		buf.Write(entry[:])
	}
	return buf.Bytes(), nil
}

// restore rebuilds the allocator indices and the symbol table from meta and
// cross-checks them against the decoded pages.
func (s *Store) restore(meta []byte) error {
	r := bytes.NewReader(meta)

	var m imageMeta
	if err := binary.Read(r, binary.LittleEndian, &m); err != nil {
		return corrupt("meta", err)
	}
	if err := s.arena.SetFreeList(m.FreeHead, m.FreeCount); err != nil {
		return corrupt("free-list", err)
	}

	for _, a := range []*bucket.Allocator{s.vectors, s.blobs} {
		section, err := readSection(r)
		if err != nil {
			return corrupt(a.Layout().Name, err)
		}
		if err := a.ReadIndex(bytes.NewReader(section)); err != nil {
			return corrupt(a.Layout().Name, err)
		}
	}
	if err := s.checkPageOwnership(); err != nil {
		return corrupt("pages", err)
	}

	section, err := readSection(r)
	if err != nil {
		return corrupt("released", err)
	}
	if err := s.released.UnmarshalBinary(section); err != nil {
		return corrupt("released", err)
	}

	s.next = Symbol(m.Next)
	if err := s.restoreSymbols(r); err != nil {
		return corrupt("symbols", err)
	}
	if s.live != m.Live {
		return corrupt("symbols", fmt.Errorf("%d live symbols, header says %d", s.live, m.Live))
	}
	if r.Len() != 0 {
		return corrupt("meta", fmt.Errorf("%d trailing bytes", r.Len()))
	}
	return nil
}

// checkPageOwnership verifies every arena page is on exactly one of the
// free-list and the two allocators.
func (s *Store) checkPageOwnership() error {
	owned := pageset.New()
	for _, pages := range []iter.Seq[arena.PageRef]{
		s.arena.FreePages(), s.vectors.Pages(), s.blobs.Pages(),
	} {
		for ref := range pages {
			if !owned.Insert(ref) {
				return fmt.Errorf("page %d claimed twice", ref)
			}
		}
	}
	if total := uint64(s.arena.PageCount()); owned.Len() != total {
		return fmt.Errorf("%d of %d pages accounted for", owned.Len(), total)
	}
	return nil
}

func (s *Store) restoreSymbols(r io.Reader) error {
	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return err
	}

	var slots uint64
	var entry [16]byte
	for range count {
		if _, err := io.ReadFull(r, entry[:]); err != nil {
			return err
		}
		sym := Symbol(binary.LittleEndian.Uint64(entry[0:]))
		loc := location(binary.LittleEndian.Uint64(entry[8:]))

		if sym == Void || sym > s.next {
			return fmt.Errorf("symbol %d outside 1..%d", sym, s.next)
		}
		if _, dup := s.symbols.Get(uint64(sym)); dup {
			return fmt.Errorf("symbol %d listed twice", sym)
		}
		if s.released.Contains(uint64(sym)) {
			return fmt.Errorf("symbol %d is both live and released", sym)
		}
		if err := s.checkLocation(sym, loc); err != nil {
			return err
		}
		if loc != locEmpty {
			slots++
		}
		s.symbols.Set(uint64(sym), loc)
		s.live++
	}

	if held := s.vectors.Stats().SlotCount() + s.blobs.Stats().SlotCount(); held != slots {
		return fmt.Errorf("%d slots allocated, %d owned by symbols", held, slots)
	}
	if !s.released.IsEmpty() && (s.released.Minimum() == 0 || s.released.Maximum() > uint64(s.next)) {
		return fmt.Errorf("released symbols outside 1..%d", s.next)
	}
	if s.released.GetCardinality()+s.live != uint64(s.next) {
		return fmt.Errorf("%d live and %d released symbols, want %d",
			s.live, s.released.GetCardinality(), s.next)
	}
	return nil
}

// checkLocation verifies loc names a slot owned by sym whose class is the one
// its size would be allocated in.
func (s *Store) checkLocation(sym Symbol, loc location) error {
	if loc == locEmpty {
		return nil
	}
	if loc&reservedLocBits != 0 {
		return fmt.Errorf("symbol %d has malformed location %#x", sym, uint64(loc))
	}
	a, slot, ok := s.slotOf(loc)
	if !ok {
		return fmt.Errorf("symbol %d has malformed location %#x", sym, uint64(loc))
	}
	if !a.Holds(slot) || a.Owner(slot) != uint64(sym) {
		return fmt.Errorf("symbol %d does not own %s slot %s", sym, a.Layout().Name, slot)
	}

	size := a.Size(slot)
	want, _ := s.allocatorFor(size)
	c, fits := a.ClassOf(size)
	if size == 0 || want != a || !fits || c != a.Class(slot) {
		return fmt.Errorf("symbol %d: %d bits in %s class %d", sym, size, a.Layout().Name, a.Class(slot))
	}
	return nil
}

func writeSection(buf *bytes.Buffer, data []byte) error {
	n, err := conv.IntToUint32(len(data))
	if err != nil {
		return err
	}
	buf.Write(binary.LittleEndian.AppendUint32(nil, n))
	buf.Write(data)
	return nil
}

func readSection(r *bytes.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if int64(n) > int64(r.Len()) {
		return nil, fmt.Errorf("section of %d bytes, %d left", n, r.Len())
	}
	data := make([]byte, n)
	_, err := io.ReadFull(r, data)
	return data, err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
