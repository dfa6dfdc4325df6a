// Package mmap provides memory mappings: read-only file mappings for loading
// images and anonymous mappings that back the page arena.
//
// # Usage
//
//	m, err := mmap.MapAnon(64 * 4096)
//	if err != nil { ... }
//	defer m.Close()
//
//	words := m.Words() // zero-filled, outside the Go heap
//
//	f, err := mmap.Open("store.img")
//	if err != nil { ... }
//	defer f.Close()
//	_ = f.Advise(mmap.AccessSequential)
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2) with madvise(2) for access hints
//   - Windows: CreateFileMapping/MapViewOfFile for files, VirtualAlloc for
//     anonymous memory (Advise is a no-op)
//
// # Thread Safety
//
// Close is idempotent and protected by an atomic flag. Callers must ensure
// no goroutine touches Bytes or Words after Close returns.
package mmap
