package bitslab

import (
	"log/slog"

	"github.com/hupe1980/bitslab/image"
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	memoryLimit      int64
	chunkPages       int
	compression      image.Compression
	ioLimit          int64
	workers          int64
}

// Option configures New and Load.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for allocator and
// image activity. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &bitslab.BasicMetricsCollector{}
//	st, _ := bitslab.New(bitslab.WithMetricsCollector(metrics))
//	// ... use st ...
//	stats := metrics.GetStats()
//	fmt.Printf("Allocations: %d, migrations: %d\n", stats.AllocateCount, stats.MigrateCount)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := bitslab.NewJSONLogger(slog.LevelInfo)
//	st, _ := bitslab.New(bitslab.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMemoryLimit caps the bytes the page arena may map. Exceeding the limit
// is fatal: the allocation that needed another chunk panics with an error
// wrapping arena.ErrMemoryLimit. Zero means unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithChunkPages sets how many 4 KiB pages the arena maps at once.
func WithChunkPages(n int) Option {
	return func(o *options) {
		o.chunkPages = n
	}
}

// WithImageCompression selects the block compression used by SaveImage.
// The default is image.CompressionZSTD.
func WithImageCompression(c image.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithImageIOLimit caps image read and write throughput in bytes per second.
// Zero means unlimited.
func WithImageIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimit = bytesPerSec
	}
}

// WithImageWorkers bounds the goroutines compressing image blocks.
func WithImageWorkers(n int) Option {
	return func(o *options) {
		o.workers = int64(n)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		compression:      image.CompressionZSTD,
		workers:          4,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
