package bitslab

import (
	"sync/atomic"
	"time"
)

// ImageOp distinguishes image saves from loads in RecordImage.
type ImageOp uint8

const (
	// ImageSave is an image written by SaveImage or SaveImageTo.
	ImageSave ImageOp = iota
	// ImageLoad is an image read by Load or LoadFrom.
	ImageLoad
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordAllocate is called after a slot of the given class size (in
	// bits) is allocated for a symbol's vector.
	RecordAllocate(classBits uint64)

	// RecordFree is called after a slot of the given class size is freed.
	RecordFree(classBits uint64)

	// RecordMigrate is called when a vector moves between size classes.
	RecordMigrate(fromBits, toBits uint64)

	// RecordImage is called after each image save or load.
	// bytes is the encoded image size, err is nil if successful.
	RecordImage(op ImageOp, bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAllocate(uint64)                            {}
func (NoopMetricsCollector) RecordFree(uint64)                                {}
func (NoopMetricsCollector) RecordMigrate(uint64, uint64)                     {}
func (NoopMetricsCollector) RecordImage(ImageOp, int64, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AllocateCount  atomic.Int64
	AllocateBits   atomic.Int64
	FreeCount      atomic.Int64
	MigrateCount   atomic.Int64
	MigrateUp      atomic.Int64
	SaveCount      atomic.Int64
	SaveErrors     atomic.Int64
	SaveBytes      atomic.Int64
	SaveTotalNanos atomic.Int64
	LoadCount      atomic.Int64
	LoadErrors     atomic.Int64
	LoadBytes      atomic.Int64
	LoadTotalNanos atomic.Int64
}

// RecordAllocate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAllocate(classBits uint64) {
	b.AllocateCount.Add(1)
	b.AllocateBits.Add(int64(classBits)) //nolint:gosec // class sizes fit a page
}

// RecordFree implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFree(uint64) {
	b.FreeCount.Add(1)
}

// RecordMigrate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMigrate(fromBits, toBits uint64) {
	b.MigrateCount.Add(1)
	if toBits > fromBits {
		b.MigrateUp.Add(1)
	}
}

// RecordImage implements MetricsCollector.
func (b *BasicMetricsCollector) RecordImage(op ImageOp, bytes int64, duration time.Duration, err error) {
	switch op {
	case ImageSave:
		b.SaveCount.Add(1)
		b.SaveBytes.Add(bytes)
		b.SaveTotalNanos.Add(duration.Nanoseconds())
		if err != nil {
			b.SaveErrors.Add(1)
		}
	case ImageLoad:
		b.LoadCount.Add(1)
		b.LoadBytes.Add(bytes)
		b.LoadTotalNanos.Add(duration.Nanoseconds())
		if err != nil {
			b.LoadErrors.Add(1)
		}
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AllocateCount: b.AllocateCount.Load(),
		AllocateBits:  b.AllocateBits.Load(),
		FreeCount:     b.FreeCount.Load(),
		MigrateCount:  b.MigrateCount.Load(),
		MigrateUp:     b.MigrateUp.Load(),
		SaveCount:     b.SaveCount.Load(),
		SaveErrors:    b.SaveErrors.Load(),
		SaveBytes:     b.SaveBytes.Load(),
		SaveAvgNanos:  avg(b.SaveTotalNanos.Load(), b.SaveCount.Load()),
		LoadCount:     b.LoadCount.Load(),
		LoadErrors:    b.LoadErrors.Load(),
		LoadBytes:     b.LoadBytes.Load(),
		LoadAvgNanos:  avg(b.LoadTotalNanos.Load(), b.LoadCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AllocateCount int64
	AllocateBits  int64
	FreeCount     int64
	MigrateCount  int64
	MigrateUp     int64
	SaveCount     int64
	SaveErrors    int64
	SaveBytes     int64
	SaveAvgNanos  int64
	LoadCount     int64
	LoadErrors    int64
	LoadBytes     int64
	LoadAvgNanos  int64
}
