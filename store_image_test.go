package bitslab

import (
	"bytes"
	"context"
	"encoding/binary"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/bitslab/bitvec"
	"github.com/hupe1980/bitslab/blobstore"
	"github.com/hupe1980/bitslab/image"
	"github.com/hupe1980/bitslab/internal/arena"
)

// populate fills st with vectors of assorted sizes, releasing some of them
// so the image carries free pages and recyclable symbols.
func populate(t *testing.T, st *Store) []Symbol {
	t.Helper()

	rng := rand.New(rand.NewPCG(3, 5))
	var live []Symbol
	for i := range uint64(300) {
		var size uint64
		switch rng.IntN(3) {
		case 0:
			size = 0
		case 1:
			size = rng.Uint64N(4096) + 1
		default:
			size = rng.Uint64N(32624-4096) + 4097
		}
		live = append(live, fill(st, size, i))
	}
	rng.Shuffle(len(live), func(i, j int) { live[i], live[j] = live[j], live[i] })
	for _, sym := range live[:120] {
		st.Release(sym)
	}
	return live[120:]
}

func requireSameStore(t *testing.T, want, got *Store, live []Symbol) {
	t.Helper()

	ws, gs := want.Stats(), got.Stats()
	assert.Equal(t, ws.Symbols, gs.Symbols)
	assert.Equal(t, ws.Released, gs.Released)
	assert.Equal(t, ws.Arena.Pages, gs.Arena.Pages)
	assert.Equal(t, ws.Arena.FreePages, gs.Arena.FreePages)
	assert.Equal(t, ws.BitVectors, gs.BitVectors)
	assert.Equal(t, ws.Blobs, gs.Blobs)

	for _, sym := range live {
		require.True(t, got.Exists(sym))
		require.True(t, bitvec.Equal(want.Vector(sym), got.Vector(sym)), "symbol %d", sym)
	}
}

func TestStore_ImageRoundTrip(t *testing.T) {
	tests := []struct {
		name        string
		compression image.Compression
	}{
		{"none", image.CompressionNone},
		{"lz4", image.CompressionLZ4},
		{"zstd", image.CompressionZSTD},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := &BasicMetricsCollector{}
			st := newTestStore(t, WithImageCompression(tt.compression), WithMetricsCollector(metrics))
			live := populate(t, st)

			var buf bytes.Buffer
			n, err := st.SaveImage(t.Context(), &buf)
			require.NoError(t, err)
			assert.Equal(t, int64(buf.Len()), n)

			restored, err := Load(t.Context(), &buf, WithMetricsCollector(metrics))
			require.NoError(t, err)
			t.Cleanup(func() { _ = restored.Close() })

			requireSameStore(t, st, restored, live)

			// Both stores continue identically.
			assert.Equal(t, st.Create(), restored.Create())
			assert.Equal(t, fill(st, 9000, 1), fill(restored, 9000, 1))
			requireSameStore(t, st, restored, live)

			stats := metrics.GetStats()
			assert.Equal(t, int64(1), stats.SaveCount)
			assert.Equal(t, int64(1), stats.LoadCount)
			assert.Equal(t, n, stats.SaveBytes)
			assert.Equal(t, n, stats.LoadBytes)
		})
	}
}

func TestStore_ImageEmpty(t *testing.T) {
	st := newTestStore(t)

	var buf bytes.Buffer
	_, err := st.SaveImage(t.Context(), &buf)
	require.NoError(t, err)

	restored, err := Load(t.Context(), &buf)
	require.NoError(t, err)
	defer restored.Close()

	assert.Zero(t, restored.Len())
	assert.Equal(t, Symbol(1), restored.Create())
}

func TestStore_ImageBlobStores(t *testing.T) {
	stores := map[string]blobstore.Store{
		"memory": blobstore.NewMemoryStore(),
		"local":  blobstore.NewLocalStore(t.TempDir()),
	}

	for name, bs := range stores {
		t.Run(name, func(t *testing.T) {
			st := newTestStore(t)
			live := populate(t, st)

			require.NoError(t, st.SaveImageTo(t.Context(), bs, "images/v1.img"))

			names, err := bs.List(t.Context(), "images/")
			require.NoError(t, err)
			assert.Equal(t, []string{"images/v1.img"}, names)

			restored, err := LoadFrom(t.Context(), bs, "images/v1.img")
			require.NoError(t, err)
			defer restored.Close()
			requireSameStore(t, st, restored, live)

			_, err = LoadFrom(t.Context(), bs, "images/missing.img")
			assert.ErrorIs(t, err, blobstore.ErrNotFound)
		})
	}
}

func TestStore_ImageCorrupt(t *testing.T) {
	save := func(t *testing.T, tamper func(st *Store)) []byte {
		t.Helper()

		st := newTestStore(t, WithImageCompression(image.CompressionNone))
		populate(t, st)
		tamper(st)

		var buf bytes.Buffer
		_, err := st.SaveImage(t.Context(), &buf)
		require.NoError(t, err)
		return buf.Bytes()
	}

	tests := []struct {
		name    string
		data    func(t *testing.T) []byte
		section string
	}{
		{"garbage", func(*testing.T) []byte { return []byte("not an image at all") }, "pages"},
		{"truncated", func(t *testing.T) []byte {
			data := save(t, func(*Store) {})
			return data[:len(data)/2]
		}, "pages"},
		{"truncated meta", func(t *testing.T) []byte {
			data := save(t, func(*Store) {})
			return data[:len(data)-200]
		}, "pages"},
		{"live count", func(t *testing.T) []byte {
			return save(t, func(st *Store) { st.live++ })
		}, "symbols"},
		{"symbol beyond next", func(t *testing.T) []byte {
			return save(t, func(st *Store) { st.next-- })
		}, "symbols"},
		{"symbol not in release set", func(t *testing.T) []byte {
			return save(t, func(st *Store) { st.released.Clear() })
		}, "symbols"},
		{"foreign slot", func(t *testing.T) []byte {
			return save(t, func(st *Store) {
				var first location
				for sym, loc := range st.symbols.All() {
					if loc == locEmpty {
						continue
					}
					if first == 0 {
						first = loc
						continue
					}
					st.symbols.Set(sym, first)
					return
				}
			})
		}, "symbols"},
		{"oversized page count", func(*testing.T) []byte {
			h := []byte(image.Magic)
			h = binary.LittleEndian.AppendUint16(h, image.Version)
			h = append(h, byte(image.CompressionNone), 0)
			h = binary.LittleEndian.AppendUint32(h, 0xFFFFFFFF)
			return binary.LittleEndian.AppendUint32(h, image.DefaultBlockPages)
		}, "pages"},
		{"orphan page", func(t *testing.T) []byte {
			return save(t, func(st *Store) { st.arena.Acquire() })
		}, "pages"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := &BasicMetricsCollector{}
			_, err := Load(t.Context(), bytes.NewReader(tt.data(t)), WithMetricsCollector(metrics))

			var corruptErr *ErrCorruptImage
			require.ErrorAs(t, err, &corruptErr)
			assert.Equal(t, tt.section, corruptErr.Section)
			assert.Equal(t, int64(1), metrics.GetStats().LoadErrors)
		})
	}
}

func TestStore_ImageMemoryLimit(t *testing.T) {
	st := newTestStore(t)
	populate(t, st)

	var buf bytes.Buffer
	_, err := st.SaveImage(t.Context(), &buf)
	require.NoError(t, err)

	_, err = Load(t.Context(), &buf, WithMemoryLimit(arena.PageBytes))
	assert.ErrorIs(t, err, arena.ErrMemoryLimit)
}

func TestStore_ImageCanceled(t *testing.T) {
	st := newTestStore(t)
	populate(t, st)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := st.SaveImage(ctx, &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}

func BenchmarkStore_SaveImage(b *testing.B) {
	st := newTestStore(b)
	for i := range uint64(200) {
		fill(st, 100+i*150, i)
	}

	var buf bytes.Buffer
	b.ReportAllocs()
	for b.Loop() {
		buf.Reset()
		if _, err := st.SaveImage(b.Context(), &buf); err != nil {
			b.Fatal(err)
		}
	}
}
