package image

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/bitslab/internal/arena"
	"github.com/hupe1980/bitslab/internal/conv"
	"github.com/hupe1980/bitslab/internal/hash"
	"github.com/hupe1980/bitslab/internal/resource"
)

const (
	// Magic opens and closes every image.
	Magic = "BSLB"
	// Version is the format version written by Encoder.
	Version uint16 = 1
	// DefaultBlockPages is the number of pages compressed as one block (256 KiB).
	DefaultBlockPages = 64

	headerSize      = 16
	blockHeaderSize = 12
)

var (
	// ErrFormat is wrapped by every decoding error caused by malformed input.
	ErrFormat = errors.New("image: invalid format")
	// ErrUnsupportedVersion is returned for images written by a newer format.
	ErrUnsupportedVersion = errors.New("image: unsupported version")
)

// Header is the fixed-size prefix of an image.
//
// Layout (little endian): magic[4] version u16 compression u8 reserved u8
// pages u32 blockPages u32.
type Header struct {
	Version     uint16
	Compression Compression
	Pages       uint32
	BlockPages  uint32
}

// Blocks returns the number of page blocks following the header.
func (h Header) Blocks() uint32 {
	if h.BlockPages == 0 {
		return 0
	}
	return (h.Pages + h.BlockPages - 1) / h.BlockPages
}

func (h Header) encode() []byte {
	buf := make([]byte, headerSize)
	copy(buf, Magic)
	binary.LittleEndian.PutUint16(buf[4:], h.Version)
	buf[6] = byte(h.Compression)
	binary.LittleEndian.PutUint32(buf[8:], h.Pages)
	binary.LittleEndian.PutUint32(buf[12:], h.BlockPages)
	return buf
}

func readHeader(r io.Reader) (Header, error) {
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, fmt.Errorf("%w: header: %w", ErrFormat, err)
	}
	if string(buf[:4]) != Magic {
		return Header{}, fmt.Errorf("%w: bad magic %q", ErrFormat, buf[:4])
	}
	h := Header{
		Version:     binary.LittleEndian.Uint16(buf[4:]),
		Compression: Compression(buf[6]),
		Pages:       binary.LittleEndian.Uint32(buf[8:]),
		BlockPages:  binary.LittleEndian.Uint32(buf[12:]),
	}
	if h.Version != Version {
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	if !h.Compression.valid() {
		return Header{}, fmt.Errorf("%w: unknown compression %d", ErrFormat, buf[6])
	}
	if h.BlockPages == 0 && h.Pages > 0 {
		return Header{}, fmt.Errorf("%w: zero block size", ErrFormat)
	}
	if uint64(h.BlockPages)*arena.PageBytes > 1<<31 {
		return Header{}, fmt.Errorf("%w: block of %d pages", ErrFormat, h.BlockPages)
	}
	return h, nil
}

// PageSource is read by Encoder. *arena.Arena implements it.
type PageSource interface {
	PageCount() uint32
	Page(ref arena.PageRef) []uint64
}

// PageSink is filled by Decoder. *arena.Arena implements it.
type PageSink interface {
	Resize(pages uint32)
	Page(ref arena.PageRef) []uint64
}

type config struct {
	compression Compression
	blockPages  uint32
	workers     int64
	ioLimit     int64
}

// Option configures an Encoder or Decoder.
type Option func(*config)

// WithCompression selects the block compression. Decoders ignore it.
func WithCompression(c Compression) Option {
	return func(o *config) {
		o.compression = c
	}
}

// WithBlockPages sets the number of pages per block.
func WithBlockPages(n uint32) Option {
	return func(o *config) {
		if n > 0 {
			o.blockPages = n
		}
	}
}

// WithWorkers bounds the goroutines compressing blocks concurrently.
func WithWorkers(n int) Option {
	return func(o *config) {
		o.workers = int64(n)
	}
}

// WithIOLimit caps throughput in bytes per second. Zero means unlimited.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *config) {
		o.ioLimit = bytesPerSec
	}
}

func newConfig(opts []Option) (config, *resource.Controller) {
	cfg := config{
		compression: CompressionZSTD,
		blockPages:  DefaultBlockPages,
		workers:     1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg, resource.NewController(resource.Config{
		MaxWorkers:         cfg.workers,
		IOLimitBytesPerSec: cfg.ioLimit,
	})
}

// Encoder writes images.
type Encoder struct {
	w   io.Writer
	cfg config
	rc  *resource.Controller
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer, opts ...Option) *Encoder {
	cfg, rc := newConfig(opts)
	return &Encoder{w: w, cfg: cfg, rc: rc}
}

// Encode writes the header, every page of src in compressed blocks, then
// meta and the closing magic. It returns the number of bytes written.
//
// Blocks are compressed concurrently, a window at a time, and written in
// page order.
func (e *Encoder) Encode(ctx context.Context, src PageSource, meta []byte) (int64, error) {
	if !e.cfg.compression.valid() {
		return 0, fmt.Errorf("image: unknown compression %d", e.cfg.compression)
	}

	cw := &countingWriter{w: resource.NewRateLimitedWriter(ctx, e.w, e.rc)}
	bw := bufio.NewWriterSize(cw, 64*1024)

	h := Header{
		Version:     Version,
		Compression: e.cfg.compression,
		Pages:       src.PageCount(),
		BlockPages:  e.cfg.blockPages,
	}
	if _, err := bw.Write(h.encode()); err != nil {
		return cw.n, err
	}

	window := uint32(max(2*e.rc.MaxWorkers(), 1)) //nolint:gosec // small
	for first := uint32(0); first < h.Blocks(); first += window {
		if err := ctx.Err(); err != nil {
			return cw.n, err
		}
		n := min(window, h.Blocks()-first)
		blocks, err := e.compressWindow(ctx, src, h, first, n)
		if err != nil {
			return cw.n, err
		}
		for _, b := range blocks {
			if _, err := bw.Write(b); err != nil {
				return cw.n, err
			}
		}
	}

	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(meta)))
	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], hash.CRC32C(meta))
	for _, p := range [][]byte{lenBuf[:], meta, crcBuf[:], []byte(Magic)} {
		if _, err := bw.Write(p); err != nil {
			return cw.n, err
		}
	}
	if err := bw.Flush(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// compressWindow encodes blocks [first, first+n) into framed byte slices.
func (e *Encoder) compressWindow(ctx context.Context, src PageSource, h Header, first, n uint32) ([][]byte, error) {
	out := make([][]byte, n)
	g, gctx := errgroup.WithContext(ctx)

	for i := range n {
		g.Go(func() error {
			if err := e.rc.AcquireWorker(gctx); err != nil {
				return err
			}
			defer e.rc.ReleaseWorker()

			raw := pageBytes(src, h, first+i)
			compressed, err := compressBlock(raw, h.Compression)
			if err != nil {
				return fmt.Errorf("image: compress block %d: %w", first+i, err)
			}

			payload := raw
			if compressed != nil {
				payload = compressed
			}
			framed := make([]byte, blockHeaderSize+len(payload))
			binary.LittleEndian.PutUint32(framed[0:], uint32(len(raw)))        //nolint:gosec // bounded by readHeader's block limit
			binary.LittleEndian.PutUint32(framed[4:], uint32(len(compressed))) //nolint:gosec // <= len(raw)
			binary.LittleEndian.PutUint32(framed[8:], hash.CRC32C(raw))
			copy(framed[blockHeaderSize:], payload)
			out[i] = framed
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// pageBytes serializes the pages of one block as little-endian words.
func pageBytes(src PageSource, h Header, block uint32) []byte {
	lo := block * h.BlockPages
	hi := min(lo+h.BlockPages, h.Pages)
	buf := make([]byte, 0, uint64(hi-lo)*arena.PageBytes)
	for ref := lo; ref < hi; ref++ {
		for _, w := range src.Page(arena.PageRef(ref)) {
			buf = binary.LittleEndian.AppendUint64(buf, w)
		}
	}
	return buf
}

// Decoder reads images.
type Decoder struct {
	r  io.Reader
	rc *resource.Controller
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader, opts ...Option) *Decoder {
	_, rc := newConfig(opts)
	return &Decoder{r: r, rc: rc}
}

// Decode grows dst block by block as each block passes its checks, fills
// every page and returns the header and the meta section. A failed decode may
// leave dst partially grown.
func (d *Decoder) Decode(ctx context.Context, dst PageSink) (Header, []byte, error) {
	br := bufio.NewReaderSize(resource.NewRateLimitedReader(ctx, d.r, d.rc), 64*1024)

	h, err := readHeader(br)
	if err != nil {
		return Header{}, nil, err
	}

	var (
		frame      [blockHeaderSize]byte
		compressed []byte
		raw        []byte
	)
	for block := range h.Blocks() {
		if err := ctx.Err(); err != nil {
			return h, nil, err
		}
		if _, err := io.ReadFull(br, frame[:]); err != nil {
			return h, nil, fmt.Errorf("%w: block %d header: %w", ErrFormat, block, err)
		}
		rawLen := binary.LittleEndian.Uint32(frame[0:])
		compLen := binary.LittleEndian.Uint32(frame[4:])
		sum := binary.LittleEndian.Uint32(frame[8:])

		lo := block * h.BlockPages
		hi := min(lo+h.BlockPages, h.Pages)
		if want := uint64(hi-lo) * arena.PageBytes; uint64(rawLen) != want {
			return h, nil, fmt.Errorf("%w: block %d holds %d bytes, want %d", ErrFormat, block, rawLen, want)
		}
		if compLen > rawLen {
			return h, nil, fmt.Errorf("%w: block %d compressed to %d of %d bytes", ErrFormat, block, compLen, rawLen)
		}

		raw = grow(raw, int(rawLen))
		if compLen == 0 {
			if _, err := io.ReadFull(br, raw); err != nil {
				return h, nil, fmt.Errorf("%w: block %d: %w", ErrFormat, block, err)
			}
		} else {
			if h.Compression == CompressionNone {
				return h, nil, fmt.Errorf("%w: compressed block %d in uncompressed image", ErrFormat, block)
			}
			compressed = grow(compressed, int(compLen))
			if _, err := io.ReadFull(br, compressed); err != nil {
				return h, nil, fmt.Errorf("%w: block %d: %w", ErrFormat, block, err)
			}
			if err := decompressBlock(raw, compressed, h.Compression); err != nil {
				return h, nil, fmt.Errorf("%w: block %d: %w", ErrFormat, block, err)
			}
		}

		if hash.CRC32C(raw) != sum {
			return h, nil, fmt.Errorf("%w: block %d checksum mismatch", ErrFormat, block)
		}

		dst.Resize(hi)
		for ref := lo; ref < hi; ref++ {
			page := dst.Page(arena.PageRef(ref))
			base := int(ref-lo) * arena.PageBytes
			for i := range page {
				page[i] = binary.LittleEndian.Uint64(raw[base+i*8:])
			}
		}
	}

	var lenBuf [8]byte
	if _, err := io.ReadFull(br, lenBuf[:]); err != nil {
		return h, nil, fmt.Errorf("%w: meta length: %w", ErrFormat, err)
	}
	metaLen, err := conv.Uint64ToInt(binary.LittleEndian.Uint64(lenBuf[:]))
	if err != nil {
		return h, nil, fmt.Errorf("%w: meta length: %w", ErrFormat, err)
	}

	var meta bytes.Buffer
	if n, err := io.Copy(&meta, io.LimitReader(br, int64(metaLen))); err != nil || n != int64(metaLen) {
		return h, nil, fmt.Errorf("%w: meta section truncated at %d of %d bytes", ErrFormat, n, metaLen)
	}

	var crcBuf [4]byte
	if _, err := io.ReadFull(br, crcBuf[:]); err != nil {
		return h, nil, fmt.Errorf("%w: meta checksum: %w", ErrFormat, err)
	}
	if hash.CRC32C(meta.Bytes()) != binary.LittleEndian.Uint32(crcBuf[:]) {
		return h, nil, fmt.Errorf("%w: meta checksum mismatch", ErrFormat)
	}

	var trailer [4]byte
	if _, err := io.ReadFull(br, trailer[:]); err != nil || string(trailer[:]) != Magic {
		return h, nil, fmt.Errorf("%w: missing trailer", ErrFormat)
	}
	return h, meta.Bytes(), nil
}

func grow(b []byte, n int) []byte {
	if cap(b) < n {
		return make([]byte, n)
	}
	return b[:n]
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
